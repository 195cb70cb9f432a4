package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"workflow/internal/task/scheduler"
)

// Validate checks the fields that must be well-formed before anything starts.
// Missing optional values are left for the consumers' defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	check := func(path, raw string) {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}

	check("server.read_timeout", cfg.Server.ReadTimeout)
	check("server.write_timeout", cfg.Server.WriteTimeout)
	check("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	check("push.ttl", cfg.Push.TTL)
	check("push.timeout", cfg.Push.Timeout)
	check("google.timeout", cfg.Google.Timeout)

	if strings.TrimSpace(cfg.Push.KeysPath) == "" {
		errs = append(errs, errors.New("push.keys_path is required"))
	}
	if s := strings.TrimSpace(cfg.Push.Subject); s != "" && !strings.HasPrefix(s, "mailto:") && !strings.HasPrefix(s, "https://") {
		errs = append(errs, fmt.Errorf("push.subject must be a mailto: or https: URL, got %q", s))
	}
	if cfg.Google.RatePerSec < 0 {
		errs = append(errs, errors.New("google.rate_per_sec must be >= 0"))
	}

	if c := cfg.Chat; c != nil {
		check("chat.timeout", c.Timeout)
	}
	if st := cfg.Storage; st != nil {
		check("storage.busy_timeout", st.BusyTimeout)
		switch strings.ToLower(strings.TrimSpace(st.Driver)) {
		case "", "file", "none", "memory":
		case "sqlite", "sqlite3":
			if strings.TrimSpace(st.Path) == "" {
				errs = append(errs, fmt.Errorf("storage.path is required when storage.driver=%s", st.Driver))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown storage.driver: %s", st.Driver))
		}
	}
	if n := cfg.Notifier; n != nil {
		check("notifier.cooldown", n.Cooldown)
		check("notifier.drain_interval", n.DrainInterval)
		check("notifier.recipient_timeout", n.RecipientTimeout)
		if n.Workers < 0 {
			errs = append(errs, errors.New("notifier.workers must be >= 0"))
		}
		if n.SendRatePerSec < 0 {
			errs = append(errs, errors.New("notifier.send_rate_per_sec must be >= 0"))
		}
		if tz := strings.TrimSpace(n.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				errs = append(errs, fmt.Errorf("notifier.timezone: %w", err))
			}
		}
	}
	if s := cfg.Scheduler; s != nil {
		for path, raw := range map[string]string{"scheduler.poll": s.Poll, "scheduler.drain": s.Drain} {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			if _, err := scheduler.ParseSchedule(raw); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
			}
		}
		if tz := strings.TrimSpace(s.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}
