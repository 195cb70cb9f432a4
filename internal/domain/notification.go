package domain

import (
	"encoding/json"
	"fmt"
)

// Kind of reminder derived from an assignment.
type Kind string

const (
	KindOverdue     Kind = "overdue"
	KindDueTomorrow Kind = "dueTomorrow"
	KindDueSoon     Kind = "dueSoon"
)

// DedupeKey identifies a reminder for cooldown and queue de-duplication.
func DedupeKey(title, courseName string, kind Kind) string {
	return fmt.Sprintf("%s_%s_%s", title, courseName, kind)
}

// Payload is the JSON document the service worker renders.
type Payload struct {
	Title              string      `json:"title"`
	Body               string      `json:"body"`
	Icon               string      `json:"icon,omitempty"`
	Badge              string      `json:"badge,omitempty"`
	Tag                string      `json:"tag,omitempty"`
	RequireInteraction bool        `json:"requireInteraction,omitempty"`
	Data               PayloadData `json:"data"`
}

type PayloadData struct {
	URL          string `json:"url"`
	AssignmentID string `json:"assignmentId"`
	Kind         Kind   `json:"kind"`
	Days         int    `json:"days"`
}

// QueuedNotification waits in a recipient's delivery queue.
// Payload is the encoded Payload, kept as raw JSON so it is sent byte-for-byte.
type QueuedNotification struct {
	Payload    json.RawMessage `json:"payload"`
	DedupeKey  string          `json:"dedupeKey"`
	EnqueuedAt int64           `json:"enqueuedAt"`
}
