package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrClosed   = errors.New("storage closed")
)

// DefaultPath is used by the file driver when no path is configured.
const DefaultPath = "./subscriptions.json"

// Config configures storage.
//
// Driver values:
//   - "file" (or empty): a single JSON document replaced atomically, plus an audit JSONL file
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//   - "memory" (or "none"): process memory only, lost on restart
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records a registration lifecycle event.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At       time.Time `json:"at"`
	ClientID string    `json:"client_id"`
	UserID   string    `json:"user_id,omitempty"`
	Action   string    `json:"action"`
	Detail   string    `json:"detail,omitempty"`
}
