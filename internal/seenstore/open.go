package seenstore

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "resaleradar/pkg/logx"
)

// Store is the persistence API used by the monitor.
type Store interface {
	Has(ctx context.Context, source, id string) (bool, error)
	MarkSeen(ctx context.Context, source, id string, at time.Time) error
	CountBySource(ctx context.Context, source string) (int, error)
	// PruneBefore deletes records first seen before cutoff and reports how
	// many were removed.
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown seenstore driver: " + driver)
	}
}
