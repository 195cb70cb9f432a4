package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow/pkg/logx"
)

const sampleYAML = `
server:
  addr: ":8080"
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
storage:
  driver: file
  path: ./subscriptions.json
push:
  keys_path: ./vapid.json
  subject: mailto:ops@example.com
google:
  client_id: abc.apps.googleusercontent.com
notifier:
  cooldown: 24h
  drain_interval: 30m
scheduler:
  poll: 15m
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestParseYAML(t *testing.T) {
	m := NewConfigManager(writeFile(t, "config.yaml", sampleYAML))
	cfg, err := m.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.NotNil(t, cfg.Storage)
	assert.Equal(t, "file", cfg.Storage.Driver)
	require.NotNil(t, cfg.Notifier)
	assert.Equal(t, "30m", cfg.Notifier.DrainInterval)
	assert.Same(t, cfg, m.Get())
}

func TestParseRejectsUnknownFields(t *testing.T) {
	m := NewConfigManager(writeFile(t, "config.json", `{"push":{"keys_path":"v.json"},"telegram":{}}`))
	_, err := m.Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
}

func TestParseRejectsTrailingData(t *testing.T) {
	m := NewConfigManager(writeFile(t, "config.json", `{"push":{"keys_path":"v.json"}} {}`))
	_, err := m.Parse()
	require.Error(t, err)
}

func TestParseValidates(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing keys path", `{}`, "push.keys_path"},
		{"bad duration", `{"push":{"keys_path":"v.json"},"notifier":{"cooldown":"soon"}}`, "notifier.cooldown"},
		{"bad subject", `{"push":{"keys_path":"v.json","subject":"ops@example.com"}}`, "push.subject"},
		{"sqlite without path", `{"push":{"keys_path":"v.json"},"storage":{"driver":"sqlite"}}`, "storage.path"},
		{"unknown driver", `{"push":{"keys_path":"v.json"},"storage":{"driver":"redis","path":"x"}}`, "unknown storage.driver"},
		{"bad timezone", `{"push":{"keys_path":"v.json"},"notifier":{"timezone":"Mars/Olympus"}}`, "notifier.timezone"},
		{"bad poll schedule", `{"push":{"keys_path":"v.json"},"scheduler":{"poll":"whenever"}}`, "scheduler.poll"},
		{"negative send rate", `{"push":{"keys_path":"v.json"},"notifier":{"send_rate_per_sec":-1}}`, "send_rate_per_sec"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewConfigManager(writeFile(t, "config.json", tc.body)).Parse()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParseAcceptsFileDriverWithoutPath(t *testing.T) {
	cfg, err := NewConfigManager(writeFile(t, "config.json", `{"push":{"keys_path":"v.json"},"storage":{"driver":"file"}}`)).Parse()
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Storage.Driver)
}

func TestApplyEnvOverridesSecrets(t *testing.T) {
	t.Setenv(EnvGoogleClientSecret, "from-env")
	t.Setenv(EnvOpenAIKey, "sk-env")

	cfg, err := NewConfigManager(writeFile(t, "config.yaml", sampleYAML)).Parse()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Google.ClientSecret)
	require.NotNil(t, cfg.Chat)
	assert.Equal(t, "sk-env", cfg.Chat.APIKey)
}

func TestLoadDotEnvSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(p, []byte("WORKFLOW_DOTENV_TEST=yes\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("WORKFLOW_DOTENV_TEST") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), p))
	assert.Equal(t, "yes", os.Getenv("WORKFLOW_DOTENV_TEST"))
}

func TestSummarizeConfigChangeHidesSecrets(t *testing.T) {
	oldCfg := &Config{Google: GoogleConfig{ClientSecret: "old-secret"}}
	newCfg := &Config{
		Google:   GoogleConfig{ClientSecret: "new-secret"},
		Chat:     &ChatConfig{APIKey: "sk-secret"},
		Notifier: &NotifierConfig{Cooldown: "12h"},
	}

	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	assert.Equal(t, []string{"chat", "notifier"}, changed)

	var buf strings.Builder
	log := logx.NewWriter(&buf, "debug")
	log.Info("config changed", attrs...)
	out := buf.String()
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, "12h")

	assert.Equal(t, []string{"chat"}, RestartRequired(changed))
}

func TestWatchPublishesChanges(t *testing.T) {
	path := writeFile(t, "config.yaml", sampleYAML)
	m := NewConfigManager(path)
	_, err := m.Load()
	require.NoError(t, err)

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	updated := strings.Replace(sampleYAML, "level: debug", "level: warn", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	select {
	case cfg := <-ch:
		assert.Equal(t, "warn", cfg.Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("config change not published")
	}
	cancel()
	<-done
}

func TestParseDurationOrDefault(t *testing.T) {
	d, err := ParseDurationOrDefault("push.ttl", "", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, d)

	d, err = ParseDurationOrDefault("push.ttl", " 90s ", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = ParseDurationOrDefault("push.ttl", "-1s", time.Hour)
	require.ErrorContains(t, err, "push.ttl")
	_, err = ParseDurationOrDefault("push.ttl", "a day", time.Hour)
	require.ErrorContains(t, err, "push.ttl")
}

func TestYAMLToJSONStringifiesKeys(t *testing.T) {
	out, err := yamlToJSON([]byte("a:\n  1: one\n  list: [x, {2: two}]\n"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":{"1":"one","list":["x",{"2":"two"}]}}`, string(out))

	_, err = yamlToJSON([]byte("a: [unterminated"))
	require.Error(t, err)
}
