package app

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"workflow/internal/chat"
	"workflow/internal/classroom"
	"workflow/internal/config"
	"workflow/internal/notifier"
	"workflow/internal/policy"
	"workflow/internal/push"
	"workflow/internal/storage"
	"workflow/internal/task/scheduler"
	logx "workflow/pkg/logx"
)

const (
	defaultAddr            = ":3000"
	defaultShutdownTimeout = 10 * time.Second
	defaultGoogleTimeout   = 20 * time.Second
	defaultGoogleRate      = 5

	defaultPollSchedule  = "15m"
	defaultDrainSchedule = "1m"
	pollJobTimeout       = 10 * time.Minute
	drainJobTimeout      = 5 * time.Minute
)

const (
	jobPoll  = "poll"
	jobDrain = "drain"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		JSON:    cfg.Logging.JSON,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{Driver: "file", Path: storage.DefaultPath}, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "none", "memory":
		return storage.Config{Driver: "memory"}, nil
	case "", "file":
		if path == "" {
			path = storage.DefaultPath
		}
		return storage.Config{Driver: "file", Path: path}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

type serverSettings struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
}

func mapServerConfig(cfg *config.Config) (serverSettings, error) {
	s := cfg.Server
	out := serverSettings{addr: strings.TrimSpace(s.Addr)}
	if out.addr == "" {
		out.addr = defaultAddr
	}
	var err error
	if out.readTimeout, err = config.ParseDurationOrDefault("server.read_timeout", s.ReadTimeout, 30*time.Second); err != nil {
		return serverSettings{}, err
	}
	if out.writeTimeout, err = config.ParseDurationOrDefault("server.write_timeout", s.WriteTimeout, 90*time.Second); err != nil {
		return serverSettings{}, err
	}
	if out.shutdownTimeout, err = config.ParseDurationOrDefault("server.shutdown_timeout", s.ShutdownTimeout, defaultShutdownTimeout); err != nil {
		return serverSettings{}, err
	}
	return out, nil
}

func mapPushConfig(cfg *config.Config, keys push.Keys) (push.Config, error) {
	ttl, err := config.ParseDurationOrDefault("push.ttl", cfg.Push.TTL, push.DefaultTTL)
	if err != nil {
		return push.Config{}, err
	}
	timeout, err := config.ParseDurationOrDefault("push.timeout", cfg.Push.Timeout, push.DefaultTimeout)
	if err != nil {
		return push.Config{}, err
	}
	return push.Config{
		Keys:    keys,
		Subject: strings.TrimSpace(cfg.Push.Subject),
		TTL:     ttl,
		Timeout: timeout,
	}, nil
}

type googleSettings struct {
	auth    classroom.AuthConfig
	fetch   classroom.FetcherConfig
	timeout time.Duration
	limiter *rate.Limiter
}

func mapGoogleConfig(cfg *config.Config, loc *time.Location) (googleSettings, error) {
	g := cfg.Google
	timeout, err := config.ParseDurationOrDefault("google.timeout", g.Timeout, defaultGoogleTimeout)
	if err != nil {
		return googleSettings{}, err
	}
	if g.RatePerSec < 0 {
		return googleSettings{}, fmt.Errorf("google.rate_per_sec must be >= 0")
	}
	rps := g.RatePerSec
	if rps == 0 {
		rps = defaultGoogleRate
	}
	return googleSettings{
		auth: classroom.AuthConfig{
			ClientID:     strings.TrimSpace(g.ClientID),
			ClientSecret: strings.TrimSpace(g.ClientSecret),
			RedirectURL:  strings.TrimSpace(g.RedirectURL),
			TokenURL:     strings.TrimSpace(g.TokenURL),
		},
		fetch: classroom.FetcherConfig{
			Endpoint: strings.TrimSpace(g.Endpoint),
			Timeout:  timeout,
			Location: loc,
		},
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

func mapChatConfig(cfg *config.Config) (chat.Config, error) {
	if cfg.Chat == nil {
		return chat.Config{Timeout: chat.DefaultTimeout}, nil
	}
	timeout, err := config.ParseDurationOrDefault("chat.timeout", cfg.Chat.Timeout, chat.DefaultTimeout)
	if err != nil {
		return chat.Config{}, err
	}
	return chat.Config{
		Endpoint: strings.TrimSpace(cfg.Chat.Endpoint),
		APIKey:   strings.TrimSpace(cfg.Chat.APIKey),
		Timeout:  timeout,
	}, nil
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	n := cfg.Notifier
	if n == nil {
		return notifier.Config{}, nil
	}
	if n.Workers < 0 {
		return notifier.Config{}, fmt.Errorf("notifier.workers must be >= 0")
	}
	drain, err := config.ParseDurationField("notifier.drain_interval", n.DrainInterval)
	if err != nil {
		return notifier.Config{}, err
	}
	timeout, err := config.ParseDurationField("notifier.recipient_timeout", n.RecipientTimeout)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		DrainInterval:    drain,
		Workers:          n.Workers,
		RecipientTimeout: timeout,
		SendRatePerSec:   n.SendRatePerSec,
	}, nil
}

// mapPolicy builds the reminder policy and returns the zone it evaluates in.
func mapPolicy(cfg *config.Config) (*policy.Engine, *time.Location, error) {
	var cooldownRaw, tz string
	if cfg.Notifier != nil {
		cooldownRaw = cfg.Notifier.Cooldown
		tz = strings.TrimSpace(cfg.Notifier.Timezone)
	}
	cooldown, err := config.ParseDurationOrDefault("notifier.cooldown", cooldownRaw, policy.DefaultCooldown)
	if err != nil {
		return nil, nil, err
	}
	loc := time.Local
	if tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return nil, nil, fmt.Errorf("notifier.timezone: %w", err)
		}
	}
	return policy.New(policy.WithCooldown(cooldown), policy.WithLocation(loc)), loc, nil
}

type jobSettings struct {
	timezone   string
	poll       string
	drain      string
	runOnStart bool
}

func mapSchedulerConfig(cfg *config.Config) (jobSettings, error) {
	out := jobSettings{poll: defaultPollSchedule, drain: defaultDrainSchedule, runOnStart: true}
	s := cfg.Scheduler
	if s == nil {
		return out, nil
	}
	out.timezone = strings.TrimSpace(s.Timezone)
	if v := strings.TrimSpace(s.Poll); v != "" {
		out.poll = v
	}
	if v := strings.TrimSpace(s.Drain); v != "" {
		out.drain = v
	}
	if s.RunOnStart != nil {
		out.runOnStart = *s.RunOnStart
	}
	for name, raw := range map[string]string{"scheduler.poll": out.poll, "scheduler.drain": out.drain} {
		if _, err := scheduler.ParseSchedule(raw); err != nil {
			return jobSettings{}, fmt.Errorf("%s: %w", name, err)
		}
	}
	return out, nil
}
