package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"workflow/internal/eventbus"
	"workflow/internal/policy"
	"workflow/internal/registry"
	logx "workflow/pkg/logx"
)

// Service is safe for concurrent use. Poll and Drain may run at the same
// time; each registration is mutated only through the registry.
type Service struct {
	reg     *registry.Registry
	auth    Refresher
	fetcher Fetcher
	sender  Sender
	bus     eventbus.Bus
	log     logx.Logger
	now     func() time.Time

	mu      sync.Mutex
	cfg     Config
	policy  *policy.Engine
	limiter *rate.Limiter

	smu   sync.Mutex
	stats Stats
}

type Option func(*Service)

func WithLogger(log logx.Logger) Option    { return func(s *Service) { s.log = log } }
func WithBus(b eventbus.Bus) Option        { return func(s *Service) { s.bus = b } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithClassroom enables server-side refetching for registrations that carry
// a refresh token.
func WithClassroom(auth Refresher, fetcher Fetcher) Option {
	return func(s *Service) {
		s.auth = auth
		s.fetcher = fetcher
	}
}

func New(cfg Config, reg *registry.Registry, pol *policy.Engine, sender Sender, opts ...Option) *Service {
	s := &Service{
		reg:    reg,
		sender: sender,
		policy: pol,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	if s.bus == nil {
		s.bus = eventbus.Nop()
	}
	if s.policy == nil {
		s.policy = policy.New()
	}
	s.Apply(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.limiter = nil
	if cfg.SendRatePerSec > 0 {
		burst := max(int(cfg.SendRatePerSec), 1)
		s.limiter = rate.NewLimiter(rate.Limit(cfg.SendRatePerSec), burst)
	}
}

// SetPolicy swaps the policy engine used by subsequent polls.
func (s *Service) SetPolicy(p *policy.Engine) {
	if p == nil {
		return
	}
	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
}

func (s *Service) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Service) Stats() Stats {
	s.smu.Lock()
	defer s.smu.Unlock()
	return s.stats
}

func (s *Service) snapshot() (Config, *policy.Engine, *rate.Limiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.policy, s.limiter
}

func (s *Service) count(fn func(st *Stats)) {
	s.smu.Lock()
	fn(&s.stats)
	s.smu.Unlock()
}

// forEach runs fn for every id with at most workers in flight. Results keep
// the order of ids. Registrations not started before ctx ends are reported
// as skipped.
func forEach(ctx context.Context, ids []string, workers int, fn func(ctx context.Context, id string) RecipientResult) []RecipientResult {
	out := make([]RecipientResult, len(ids))
	sem := make(chan struct{}, max(workers, 1))
	var wg sync.WaitGroup
	for i, id := range ids {
		if ctx.Err() != nil {
			out[i] = RecipientResult{ClientID: id, Outcome: OutcomeSkipped, Err: ctx.Err()}
			continue
		}
		select {
		case <-ctx.Done():
			out[i] = RecipientResult{ClientID: id, Outcome: OutcomeSkipped, Err: ctx.Err()}
			continue
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					out[i] = RecipientResult{ClientID: id, Outcome: OutcomeSkipped, Err: fmt.Errorf("panic: %v", r)}
				}
			}()
			out[i] = fn(ctx, id)
		}(i, id)
	}
	wg.Wait()
	return out
}

func newCycle(kind string, log logx.Logger) (string, logx.Logger) {
	id := uuid.NewString()
	return id, log.With(logx.String("pass", kind), logx.String("cycle", id))
}
