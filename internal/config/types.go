package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings ("500ms", "30m", "24h").
// Optional sections are pointers so an omitted block falls back to defaults.
type Config struct {
	Server    ServerConfig     `json:"server"`
	Logging   LoggingConfig    `json:"logging"`
	Storage   *StorageConfig   `json:"storage,omitempty"`
	Push      PushConfig       `json:"push"`
	Google    GoogleConfig     `json:"google"`
	Chat      *ChatConfig      `json:"chat,omitempty"`
	Notifier  *NotifierConfig  `json:"notifier,omitempty"`
	Scheduler *SchedulerConfig `json:"scheduler,omitempty"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr string `json:"addr"` // default ":3000"

	// StaticDir serves the web client from disk when set.
	StaticDir string `json:"static_dir,omitempty"`

	// Pprof mounts /debug/pprof/* on the API listener. Keep it off on public hosts.
	Pprof bool `json:"pprof,omitempty"`

	ReadTimeout     string `json:"read_timeout,omitempty"`
	WriteTimeout    string `json:"write_timeout,omitempty"`
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"`
	BodyLimit       string `json:"body_limit,omitempty"` // echo size string, default "1M"
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	JSON    bool        `json:"json,omitempty"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects where registrations are persisted.
// Omitted, it is the file driver at ./subscriptions.json; memory must be
// set explicitly.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./subscriptions.json" }
type StorageConfig struct {
	Driver      string `json:"driver"` // file (default) | sqlite | memory
	Path        string `json:"path"`   // required for sqlite
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
}

// PushConfig controls Web Push delivery.
type PushConfig struct {
	// KeysPath is where the VAPID key pair lives; created on first start.
	KeysPath string `json:"keys_path"`
	// Subject is the VAPID "sub" claim (mailto: or https: URL).
	Subject string `json:"subject"`
	TTL     string `json:"ttl,omitempty"`     // default "24h"
	Timeout string `json:"timeout,omitempty"` // per send, default "15s"
}

// GoogleConfig holds the OAuth client used for the Classroom API.
// ClientSecret may be supplied through GOOGLE_CLIENT_SECRET instead.
type GoogleConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
	RedirectURL  string `json:"redirect_url,omitempty"` // default "postmessage"

	// Endpoint overrides the Classroom API base URL (tests, proxies).
	Endpoint string `json:"endpoint,omitempty"`
	TokenURL string `json:"token_url,omitempty"`

	Timeout    string `json:"timeout,omitempty"`      // per request, default "20s"
	RatePerSec int    `json:"rate_per_sec,omitempty"` // default 5
}

// ChatConfig configures the LLM relay behind POST /api/chat.
// APIKey may be supplied through OPENAI_API_KEY instead.
type ChatConfig struct {
	Endpoint string `json:"endpoint,omitempty"` // default OpenAI chat completions
	APIKey   string `json:"api_key,omitempty"`
	Timeout  string `json:"timeout,omitempty"` // default "60s"
}

// NotifierConfig tunes the poll and drain jobs. Hot-reloadable.
//
// Defaults (when fields are omitted/zero):
//   - cooldown: "24h"
//   - drain_interval: "30m"
//   - workers: 4
//   - recipient_timeout: "2m"
//   - timezone: server local time
type NotifierConfig struct {
	Cooldown         string `json:"cooldown,omitempty"`
	DrainInterval    string `json:"drain_interval,omitempty"`
	Workers          int    `json:"workers,omitempty"`
	RecipientTimeout string `json:"recipient_timeout,omitempty"`
	Timezone         string `json:"timezone,omitempty"`

	// SendRatePerSec caps outbound pushes across all recipients; 0 disables the cap.
	SendRatePerSec float64 `json:"send_rate_per_sec,omitempty"`
}

// SchedulerConfig controls when the poll and drain jobs fire.
//
// Schedules accept cron expressions, Go durations ("15m", "every:30s") and
// descriptors ("@hourly").
//
// Defaults:
//   - poll: "15m"
//   - drain: "1m"
//   - run_on_start: true
type SchedulerConfig struct {
	Poll       string `json:"poll,omitempty"`
	Drain      string `json:"drain,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
	RunOnStart *bool  `json:"run_on_start,omitempty"`
}
