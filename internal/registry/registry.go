package registry

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"workflow/internal/domain"
	"workflow/internal/eventbus"
	"workflow/internal/storage"
	"workflow/pkg/logx"
)

var (
	ErrNotFound     = errors.New("registration not found")
	ErrNoClientID   = errors.New("client id is required")
	ErrNoSubscriber = errors.New("subscription is required for a new client")

	// ErrSkip returned from an Update callback discards the change without error.
	ErrSkip = errors.New("registry: no change")
)

const persistTimeout = 10 * time.Second

// Upsert carries the fields of a subscribe call. Nil/empty fields are "omitted".
type Upsert struct {
	Subscription *domain.Subscription
	Assignments  *[]domain.Assignment
	RefreshToken string
	UserID       string
}

// Result reports what an Upsert did.
type Result struct {
	Registration  domain.Registration
	Created       bool
	OwnerSwitched bool
}

type Registry struct {
	mu    sync.Mutex
	recs  map[string]*domain.Registration
	store storage.Store

	log logx.Logger
	bus eventbus.Bus
	now func() time.Time

	persistFailures atomic.Uint64
}

type Option func(*Registry)

func WithLogger(log logx.Logger) Option { return func(r *Registry) { r.log = log } }
func WithBus(b eventbus.Bus) Option     { return func(r *Registry) { r.bus = b } }

// WithClock overrides time.Now for tests.
func WithClock(now func() time.Time) Option { return func(r *Registry) { r.now = now } }

// Open loads every stored registration. Records that fail to decode are
// logged and skipped so one corrupt entry cannot keep the server down.
func Open(ctx context.Context, store storage.Store, opts ...Option) (*Registry, error) {
	if store == nil {
		store = storage.NewMemory()
	}
	r := &Registry{
		recs:  map[string]*domain.Registration{},
		store: store,
		log:   logx.Nop(),
		bus:   eventbus.Nop(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(r)
	}

	raw, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	for id, doc := range raw {
		var rec domain.Registration
		if err := json.Unmarshal(doc, &rec); err != nil {
			r.log.Warn("skipping unreadable registration", logx.String("client_id", id), logx.Err(err))
			continue
		}
		rec.ClientID = id
		if rec.LastNotified == nil {
			rec.LastNotified = map[string]int64{}
		}
		r.recs[id] = &rec
	}
	r.log.Info("registry loaded", logx.Int("registrations", len(r.recs)))
	return r, nil
}

// Upsert creates or merges the registration for clientID.
//
// Subscription and assignments overwrite when present. Refresh token and
// owner id keep their previous values when omitted. When both the stored and
// the incoming owner id are set and differ, the record belonged to another
// account: its delivery history, queue, credential and assignments are
// cleared before the merge.
func (r *Registry) Upsert(ctx context.Context, clientID string, in Upsert) (Result, error) {
	if clientID == "" {
		return Result{}, ErrNoClientID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UnixMilli()
	rec, ok := r.recs[clientID]
	res := Result{Created: !ok}
	if !ok {
		if in.Subscription == nil {
			return Result{}, ErrNoSubscriber
		}
		rec = &domain.Registration{
			ClientID:     clientID,
			LastNotified: map[string]int64{},
			CreatedAt:    now,
		}
	}

	next := rec.Clone()
	if in.UserID != "" && next.UserID != "" && in.UserID != next.UserID {
		next.ResetDelivery()
		next.RefreshToken = ""
		next.Assignments = nil
		res.OwnerSwitched = true
	}
	if in.Subscription != nil {
		next.Subscription = *in.Subscription
	}
	if in.Assignments != nil {
		next.Assignments = slices.Clone(*in.Assignments)
	}
	if in.RefreshToken != "" {
		next.RefreshToken = in.RefreshToken
	}
	if in.UserID != "" {
		next.UserID = in.UserID
	}
	next.UpdatedAt = now

	r.recs[clientID] = &next
	r.persistLocked(ctx)

	switch {
	case res.Created:
		r.audit(ctx, storage.AuditEntry{ClientID: clientID, UserID: next.UserID, Action: "created"})
		r.bus.Publish(eventbus.Event{Type: eventbus.TypeSubscribed, Data: eventbus.Recipient{ClientID: clientID, UserID: next.UserID}})
	case res.OwnerSwitched:
		r.audit(ctx, storage.AuditEntry{ClientID: clientID, UserID: next.UserID, Action: "owner_switched"})
		r.log.Info("registration switched owner", logx.String("client_id", clientID))
	}

	res.Registration = next.Clone()
	return res, nil
}

// Get returns a copy of the registration.
func (r *Registry) Get(clientID string) (domain.Registration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[clientID]
	if !ok {
		return domain.Registration{}, false
	}
	return rec.Clone(), true
}

// All returns copies of every registration ordered by client id.
func (r *Registry) All() []domain.Registration {
	r.mu.Lock()
	out := make([]domain.Registration, 0, len(r.recs))
	for _, rec := range r.recs {
		out = append(out, rec.Clone())
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recs)
}

// Delete removes the registration. It reports whether one existed.
func (r *Registry) Delete(ctx context.Context, clientID, reason string) bool {
	r.mu.Lock()
	rec, ok := r.recs[clientID]
	if ok {
		delete(r.recs, clientID)
		r.persistLocked(ctx)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}

	r.audit(ctx, storage.AuditEntry{ClientID: clientID, UserID: rec.UserID, Action: "removed", Detail: reason})
	r.bus.Publish(eventbus.Event{Type: eventbus.TypeRemoved, Data: eventbus.Recipient{ClientID: clientID, UserID: rec.UserID, Reason: reason}})
	r.log.Info("registration removed", logx.String("client_id", clientID), logx.String("reason", reason))
	return true
}

// Update applies fn to a copy of the registration and, if fn succeeds,
// swaps the copy in and persists. fn runs under the registry lock, so it must
// not block on I/O.
func (r *Registry) Update(ctx context.Context, clientID string, fn func(rec *domain.Registration) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.recs[clientID]
	if !ok {
		return ErrNotFound
	}
	next := rec.Clone()
	if err := fn(&next); err != nil {
		if errors.Is(err, ErrSkip) {
			return nil
		}
		return err
	}
	next.ClientID = clientID
	next.UpdatedAt = r.now().UnixMilli()
	r.recs[clientID] = &next
	r.persistLocked(ctx)
	return nil
}

// PersistFailures counts writes that failed since start.
func (r *Registry) PersistFailures() uint64 { return r.persistFailures.Load() }

func (r *Registry) persistLocked(ctx context.Context) {
	docs := make(map[string]json.RawMessage, len(r.recs))
	for id, rec := range r.recs {
		b, err := json.Marshal(rec)
		if err != nil {
			r.persistFailures.Add(1)
			r.log.Error("persist failed: encode", logx.String("client_id", id), logx.Err(err))
			return
		}
		docs[id] = b
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := r.store.SaveAll(pctx, docs); err != nil {
		r.persistFailures.Add(1)
		r.log.Error("persist failed", logx.Int("registrations", len(docs)), logx.Err(err))
	}
}

func (r *Registry) audit(ctx context.Context, e storage.AuditEntry) {
	if e.At.IsZero() {
		e.At = r.now()
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := r.store.AppendAudit(actx, e); err != nil {
		r.log.Warn("audit append failed", logx.String("action", e.Action), logx.Err(err))
	}
}
