package notifier

import (
	"context"
	"time"

	"workflow/internal/domain"
)

const (
	DefaultDrainInterval    = 30 * time.Minute
	DefaultWorkers          = 4
	DefaultRecipientTimeout = 2 * time.Minute
)

// Config holds the hot-reloadable notifier tunables.
type Config struct {
	DrainInterval    time.Duration // minimum gap between two pushes to one registration
	Workers          int
	RecipientTimeout time.Duration
	SendRatePerSec   float64 // global outbound push rate; 0 means unlimited
}

func (c Config) withDefaults() Config {
	if c.DrainInterval <= 0 {
		c.DrainInterval = DefaultDrainInterval
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.RecipientTimeout <= 0 {
		c.RecipientTimeout = DefaultRecipientTimeout
	}
	if c.SendRatePerSec < 0 {
		c.SendRatePerSec = 0
	}
	return c
}

// Refresher trades a refresh token for an access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

// Fetcher lists the coursework visible to an access token.
type Fetcher interface {
	Fetch(ctx context.Context, accessToken string) ([]domain.Assignment, error)
}

// Sender delivers one encrypted payload to a push subscription.
type Sender interface {
	Send(ctx context.Context, sub domain.Subscription, payload []byte) error
}

type Outcome string

const (
	// poll
	OutcomeEnqueued  Outcome = "enqueued"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeRefreshed Outcome = "refreshed" // assignments replaced, nothing new to send
	OutcomeSkipped   Outcome = "skipped"

	// drain
	OutcomeSent      Outcome = "sent"
	OutcomeGone      Outcome = "gone"
	OutcomeDropped   Outcome = "dropped"
	OutcomeThrottled Outcome = "throttled"
	OutcomeIdle      Outcome = "idle"
)

// RecipientResult is the outcome of one registration in one pass.
type RecipientResult struct {
	ClientID  string
	Outcome   Outcome
	Enqueued  int
	DedupeKey string
	Err       error
}

type Report struct {
	Cycle   string
	Started time.Time
	Took    time.Duration
	Results []RecipientResult
}

// Count returns how many registrations ended with o.
func (r Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Stats are cumulative counters since start.
type Stats struct {
	Polls     uint64    `json:"polls"`
	Drains    uint64    `json:"drains"`
	Enqueued  uint64    `json:"enqueued"`
	Sent      uint64    `json:"sent"`
	Dropped   uint64    `json:"dropped"`
	Gone      uint64    `json:"gone"`
	LastPoll  time.Time `json:"lastPoll"`
	LastDrain time.Time `json:"lastDrain"`
}
