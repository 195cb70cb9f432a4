package storage

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory keeps records in process memory. Used when persistence is off and in tests.
type Memory struct {
	mu      sync.Mutex
	records map[string]json.RawMessage
	audit   []AuditEntry
	closed  bool
}

func NewMemory() *Memory {
	return &Memory{records: map[string]json.RawMessage{}}
}

func (m *Memory) Load(ctx context.Context) (map[string]json.RawMessage, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	return cloneRecords(m.records), nil
}

func (m *Memory) SaveAll(ctx context.Context, records map[string]json.RawMessage) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.records = cloneRecords(records)
	return nil
}

func (m *Memory) AppendAudit(ctx context.Context, e AuditEntry) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.audit = append(m.audit, e)
	return nil
}

// Audit returns a copy of the recorded audit trail.
func (m *Memory) Audit() []AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AuditEntry(nil), m.audit...)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
