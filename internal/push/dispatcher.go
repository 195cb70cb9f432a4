package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"workflow/internal/domain"
)

var (
	// ErrGone means the push service no longer knows the subscription (404/410).
	ErrGone = errors.New("push subscription gone")
	// ErrTransient covers every other failed delivery.
	ErrTransient = errors.New("push delivery failed")
)

const (
	DefaultTTL     = 24 * time.Hour
	DefaultTimeout = 15 * time.Second
)

type Config struct {
	Keys Keys
	// Subject is the VAPID contact, "mailto:..." or "https://...".
	Subject string
	TTL     time.Duration
	Timeout time.Duration
}

// Dispatcher sends one encrypted message per call.
type Dispatcher struct {
	cfg    Config
	client *http.Client
}

// NewDispatcher builds a Dispatcher. client carries retries; nil uses a plain
// client with cfg.Timeout.
func NewDispatcher(cfg Config, client *http.Client) *Dispatcher {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Dispatcher{cfg: cfg, client: client}
}

func (d *Dispatcher) PublicKey() string { return d.cfg.Keys.PublicKey }

// Send encrypts payload for sub and posts it to the subscription endpoint.
func (d *Dispatcher) Send(ctx context.Context, sub domain.Subscription, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
	}, &webpush.Options{
		HTTPClient:      d.client,
		Subscriber:      subscriber(d.cfg.Subject),
		VAPIDPublicKey:  d.cfg.Keys.PublicKey,
		VAPIDPrivateKey: d.cfg.Keys.PrivateKey,
		TTL:             int(d.cfg.TTL.Seconds()),
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil
	case code == http.StatusNotFound || code == http.StatusGone:
		return fmt.Errorf("%w: status %d", ErrGone, code)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrTransient, code, strings.TrimSpace(string(body)))
	}
}

// subscriber strips "mailto:"; the library adds it back for anything that is
// not an https URL.
func subscriber(subject string) string {
	s := strings.TrimSpace(subject)
	if s == "" {
		return "admin@localhost"
	}
	return strings.TrimPrefix(s, "mailto:")
}
