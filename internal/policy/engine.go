package policy

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"time"

	"workflow/internal/domain"
)

const (
	DefaultCooldown = 24 * time.Hour

	dueSoonHorizonDays = 7

	iconPath  = "/icons/icon-192x192.png"
	badgePath = "/icons/icon-72x72.png"
)

// Decision is a reminder the engine wants to send.
type Decision struct {
	Kind      domain.Kind
	Days      int
	DedupeKey string
	Payload   domain.Payload
}

// Engine evaluates assignments. It is safe for concurrent use.
type Engine struct {
	cooldown time.Duration
	loc      *time.Location
	pick     func(n int) int
}

type Option func(*Engine)

func WithCooldown(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.cooldown = d
		}
	}
}

// WithLocation sets the zone used to turn due dates into instants.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithPicker replaces the random phrase choice; pick returns an index in [0, n).
func WithPicker(pick func(n int) int) Option {
	return func(e *Engine) {
		if pick != nil {
			e.pick = pick
		}
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{cooldown: DefaultCooldown, loc: time.Local, pick: rand.IntN}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Cooldown() time.Duration { return e.cooldown }

// Classify applies the kind rules without looking at delivery history.
func (e *Engine) Classify(a domain.Assignment, now time.Time) (domain.Kind, int, bool) {
	switch a.Status {
	case domain.StatusLate:
		if !a.DueDate.Valid() {
			return domain.KindOverdue, 0, true
		}
		days := ceilDays(now.Sub(a.DueDate.Midnight(e.loc)))
		return domain.KindOverdue, max(days, 1), true
	case domain.StatusPending:
		if !a.DueDate.Valid() {
			return "", 0, false
		}
		days := ceilDays(a.DueDate.Midnight(e.loc).Sub(now))
		switch {
		case days >= 0 && days <= 1:
			return domain.KindDueTomorrow, days, true
		case days > 1 && days <= dueSoonHorizonDays:
			return domain.KindDueSoon, days, true
		}
	}
	return "", 0, false
}

// Evaluate decides whether a reminder for a should be queued now.
// queued reports whether a dedupe key is already waiting; nil means none are.
func (e *Engine) Evaluate(a domain.Assignment, now time.Time, lastNotified map[string]int64, queued func(key string) bool) (Decision, bool) {
	kind, days, ok := e.Classify(a, now)
	if !ok {
		return Decision{}, false
	}
	key := domain.DedupeKey(a.Title, a.CourseName, kind)
	if queued != nil && queued(key) {
		return Decision{}, false
	}
	if last, seen := lastNotified[key]; seen && now.UnixMilli()-last < e.cooldown.Milliseconds() {
		return Decision{}, false
	}
	return Decision{Kind: kind, Days: days, DedupeKey: key, Payload: e.payload(a, kind, days)}, true
}

// Enqueue evaluates every assignment of rec and appends the new reminders to
// its queue. It returns what was added.
func (e *Engine) Enqueue(rec *domain.Registration, now time.Time) ([]domain.QueuedNotification, error) {
	var added []domain.QueuedNotification
	for _, a := range rec.Assignments {
		d, ok := e.Evaluate(a, now, rec.LastNotified, rec.Queued)
		if !ok {
			continue
		}
		b, err := json.Marshal(d.Payload)
		if err != nil {
			return added, err
		}
		n := domain.QueuedNotification{Payload: b, DedupeKey: d.DedupeKey, EnqueuedAt: now.UnixMilli()}
		if rec.Enqueue(n) {
			added = append(added, n)
		}
	}
	return added, nil
}

func (e *Engine) payload(a domain.Assignment, kind domain.Kind, days int) domain.Payload {
	tmpls := phrases[kind]
	body := render(tmpls[e.pick(len(tmpls))], a.Title, days)

	url := a.Link
	if url == "" {
		url = "/"
	}
	return domain.Payload{
		Title:              titles[kind],
		Body:               body,
		Icon:               iconPath,
		Badge:              badgePath,
		Tag:                "assignment-" + a.Title,
		RequireInteraction: kind == domain.KindOverdue,
		Data: domain.PayloadData{
			URL:          url,
			AssignmentID: a.Title,
			Kind:         kind,
			Days:         days,
		},
	}
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(d.Hours() / 24))
}
