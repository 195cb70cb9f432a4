package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"workflow/pkg/logx"
)

// Store is the persistence API used by the registry.
//
// SaveAll replaces the full record set: ids missing from the map are removed.
// Implementations must leave the previous state intact if SaveAll fails.
type Store interface {
	Load(ctx context.Context) (map[string]json.RawMessage, error)
	SaveAll(ctx context.Context, records map[string]json.RawMessage) error
	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// Open initializes the configured store.
// An empty driver is the file store; memory must be asked for by name.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "none", "memory":
		log.Warn("registrations are kept in memory only and are lost on restart")
		return NewMemory(), nil
	case "", "file":
		if strings.TrimSpace(cfg.Path) == "" {
			cfg.Path = DefaultPath
		}
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

func cloneRecords(in map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
