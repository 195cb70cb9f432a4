// Package chat forwards chat requests from the web client to an
// OpenAI-compatible completions endpoint. Bodies pass through untouched.
package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"
	DefaultTimeout  = 60 * time.Second

	maxResponseBytes = 4 << 20
)

// ErrNotConfigured means no API key is set.
var ErrNotConfigured = errors.New("chat relay not configured")

type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// Response is the upstream answer as received.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

type Relay struct {
	cfg    Config
	client *http.Client
}

// NewRelay builds a Relay. client carries retries; nil uses a plain client.
func NewRelay(cfg Config, client *http.Client) *Relay {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Relay{cfg: cfg, client: client}
}

func (r *Relay) Configured() bool { return r != nil && strings.TrimSpace(r.cfg.APIKey) != "" }

// Forward posts body to the upstream endpoint with the server's API key.
func (r *Relay) Forward(ctx context.Context, body []byte) (Response, error) {
	if !r.Configured() {
		return Response{}, ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("chat upstream: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, fmt.Errorf("chat upstream: read: %w", err)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/json"
	}
	return Response{Status: resp.StatusCode, ContentType: ct, Body: b}, nil
}
