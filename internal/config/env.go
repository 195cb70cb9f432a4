package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override secrets in the config file.
const (
	EnvGoogleClientID     = "GOOGLE_CLIENT_ID"
	EnvGoogleClientSecret = "GOOGLE_CLIENT_SECRET"
	EnvOpenAIKey          = "OPENAI_API_KEY"
	EnvVAPIDSubject       = "VAPID_SUBJECT"
)

// LoadDotEnv reads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if err := godotenv.Load(p); err != nil {
			return err
		}
	}
	return nil
}

// ApplyEnv copies secrets from the environment into cfg.
// Non-empty environment values win over the file.
func ApplyEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	if v := env(EnvGoogleClientID); v != "" {
		cfg.Google.ClientID = v
	}
	if v := env(EnvGoogleClientSecret); v != "" {
		cfg.Google.ClientSecret = v
	}
	if v := env(EnvVAPIDSubject); v != "" {
		cfg.Push.Subject = v
	}
	if v := env(EnvOpenAIKey); v != "" {
		if cfg.Chat == nil {
			cfg.Chat = &ChatConfig{}
		}
		cfg.Chat.APIKey = v
	}
}

func env(k string) string { return strings.TrimSpace(os.Getenv(k)) }
