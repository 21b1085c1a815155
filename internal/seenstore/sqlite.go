//go:build sqlite
// +build sqlite

package seenstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "resaleradar/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, ioErr("mkdir", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ioErr("open", err)
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, ioErr("migrate", err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Has(ctx context.Context, source, id string) (bool, error) {
	if source == "" || id == "" {
		return false, nil
	}
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM seen_items WHERE source = ? AND item_id = ?`, source, id,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, ioErr("has", err)
	}
	return true, nil
}

func (s *sqliteStore) MarkSeen(ctx context.Context, source, id string, at time.Time) error {
	if source == "" || id == "" {
		return nil
	}
	if at.IsZero() {
		at = time.Now()
	}
	// First-seen time is immutable, so conflicts are ignored.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO seen_items(source, item_id, first_seen) VALUES(?,?,?)
		 ON CONFLICT(source, item_id) DO NOTHING`,
		source, id, at.UnixMilli(),
	)
	return ioErr("mark", err)
}

func (s *sqliteStore) CountBySource(ctx context.Context, source string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM seen_items WHERE source = ?`, source,
	).Scan(&n)
	if err != nil {
		return 0, ioErr("count", err)
	}
	return n, nil
}

func (s *sqliteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM seen_items WHERE first_seen < ?`, cutoff.UnixMilli(),
	)
	if err != nil {
		return 0, ioErr("prune", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
