package config

import (
	"reflect"
	"sort"
	"strings"

	"workflow/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections and
// (2) safe structured attrs for logging (never includes secrets).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Server, newCfg.Server) {
		changed = append(changed, "server")
		attrs = append(attrs,
			logx.String("server.addr", newCfg.Server.Addr),
			logx.Bool("server.pprof", newCfg.Server.Pprof),
		)
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		var driver string
		var pathSet bool
		if newCfg.Storage != nil {
			driver = strings.TrimSpace(newCfg.Storage.Driver)
			pathSet = strings.TrimSpace(newCfg.Storage.Path) != ""
		}
		attrs = append(attrs, logx.String("storage.driver", driver), logx.Bool("storage.path_set", pathSet))
	}

	if !reflect.DeepEqual(oldCfg.Push, newCfg.Push) {
		changed = append(changed, "push")
		attrs = append(attrs,
			logx.String("push.keys_path", newCfg.Push.KeysPath),
			logx.String("push.ttl", newCfg.Push.TTL),
		)
	}

	// Google (never log the client secret)
	og, ng := oldCfg.Google, newCfg.Google
	if og.ClientID != ng.ClientID || og.RedirectURL != ng.RedirectURL || og.Endpoint != ng.Endpoint ||
		og.TokenURL != ng.TokenURL || og.Timeout != ng.Timeout || og.RatePerSec != ng.RatePerSec ||
		(og.ClientSecret != "") != (ng.ClientSecret != "") {
		changed = append(changed, "google")
		attrs = append(attrs,
			logx.Bool("google.client_id_set", ng.ClientID != ""),
			logx.Bool("google.client_secret_set", ng.ClientSecret != ""),
			logx.Int("google.rate_per_sec", ng.RatePerSec),
		)
	}

	// Chat (never log the key)
	oc, nc := derefChat(oldCfg.Chat), derefChat(newCfg.Chat)
	if oc.Endpoint != nc.Endpoint || oc.Timeout != nc.Timeout || (oc.APIKey != "") != (nc.APIKey != "") {
		changed = append(changed, "chat")
		attrs = append(attrs,
			logx.String("chat.endpoint", nc.Endpoint),
			logx.Bool("chat.api_key_set", nc.APIKey != ""),
		)
	}

	if !reflect.DeepEqual(oldCfg.Notifier, newCfg.Notifier) {
		changed = append(changed, "notifier")
		n := NotifierConfig{}
		if newCfg.Notifier != nil {
			n = *newCfg.Notifier
		}
		attrs = append(attrs,
			logx.String("notifier.cooldown", n.Cooldown),
			logx.String("notifier.drain_interval", n.DrainInterval),
			logx.Int("notifier.workers", n.Workers),
		)
	}

	if !reflect.DeepEqual(oldCfg.Scheduler, newCfg.Scheduler) {
		changed = append(changed, "scheduler")
		s := SchedulerConfig{}
		if newCfg.Scheduler != nil {
			s = *newCfg.Scheduler
		}
		attrs = append(attrs,
			logx.String("scheduler.poll", s.Poll),
			logx.String("scheduler.drain", s.Drain),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// RestartRequired reports sections that only take effect after a restart.
func RestartRequired(changed []string) []string {
	var out []string
	for _, c := range changed {
		switch c {
		case "logging", "notifier":
		default:
			out = append(out, c)
		}
	}
	return out
}

func derefChat(c *ChatConfig) ChatConfig {
	if c == nil {
		return ChatConfig{}
	}
	return *c
}
