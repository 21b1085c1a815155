package seenstore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "resaleradar/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.seen.snapshot.json (periodic snapshot)
//   - <prefix>.seen.journal.jsonl (append-only journal)
//
// The journal is periodically compacted into the snapshot. Every journal
// append is followed by fsync so a committed MarkSeen survives a crash.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journalFile  *os.File
	seen         map[string]int64 // seenKey(source,id) -> first seen, unix milli

	writes int
}

type seenRecord struct {
	Source string `json:"source"`
	ID     string `json:"id"`
	At     int64  `json:"at"`
}

// seenKey joins source and id with a separator that cannot appear in either
// (ids come from URLs, sources are registry names).
func seenKey(source, id string) string { return source + "\x00" + id }

func splitSeenKey(key string) (source, id string, ok bool) {
	i := strings.IndexByte(key, 0)
	if i < 0 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("seenstore path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ioErr("mkdir", err)
	}

	snapPath := prefix + ".seen.snapshot.json"
	journalPath := prefix + ".seen.journal.jsonl"

	seen := map[string]int64{}
	_ = loadSeenSnapshot(snapPath, seen)
	_ = replaySeenJournal(journalPath, seen)

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, ioErr("open journal", err)
	}

	log.Debug("seenstore loaded",
		logx.String("driver", "file"),
		logx.String("path", prefix),
		logx.Int("records", len(seen)),
	)

	return &fileStore{
		log:          log,
		snapshotPath: snapPath,
		journalFile:  jf,
		seen:         seen,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return nil
	}
	err := s.journalFile.Close()
	s.journalFile = nil
	return err
}

func (s *fileStore) Has(ctx context.Context, source, id string) (bool, error) {
	_ = ctx
	if source == "" || id == "" {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return false, ioErr("has", errors.New("store closed"))
	}
	_, ok := s.seen[seenKey(source, id)]
	return ok, nil
}

func (s *fileStore) MarkSeen(ctx context.Context, source, id string, at time.Time) error {
	_ = ctx
	if source == "" || id == "" {
		return nil
	}
	if at.IsZero() {
		at = time.Now()
	}
	ms := at.UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return ioErr("mark", errors.New("store closed"))
	}

	key := seenKey(source, id)
	if _, ok := s.seen[key]; ok {
		// First-seen time is immutable; re-marking is a no-op.
		return nil
	}

	enc := json.NewEncoder(s.journalFile)
	if err := enc.Encode(seenRecord{Source: source, ID: id, At: ms}); err != nil {
		return ioErr("journal append", err)
	}
	if err := s.journalFile.Sync(); err != nil {
		return ioErr("journal sync", err)
	}
	s.seen[key] = ms

	s.writes++
	if s.writes%1000 == 0 {
		// Best-effort compact.
		if err := s.compactLocked(); err != nil {
			s.log.Debug("seenstore compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) CountBySource(ctx context.Context, source string) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return 0, ioErr("count", errors.New("store closed"))
	}
	n := 0
	for key := range s.seen {
		if src, _, ok := splitSeenKey(key); ok && src == source {
			n++
		}
	}
	return n, nil
}

func (s *fileStore) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	_ = ctx
	ms := cutoff.UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return 0, ioErr("prune", errors.New("store closed"))
	}
	removed := 0
	for key, at := range s.seen {
		if at < ms {
			delete(s.seen, key)
			removed++
		}
	}
	if removed > 0 {
		if err := s.compactLocked(); err != nil {
			return removed, ioErr("prune compact", err)
		}
	}
	return removed, nil
}

func (s *fileStore) compactLocked() error {
	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.seen); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	// Truncate journal.
	if err := s.journalFile.Truncate(0); err != nil {
		return err
	}
	_, err = s.journalFile.Seek(0, 2)
	return err
}

func loadSeenSnapshot(path string, out map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]int64
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replaySeenJournal(path string, out map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r seenRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			// Torn tail write from a crash; older records are intact.
			continue
		}
		if r.Source == "" || r.ID == "" {
			continue
		}
		key := seenKey(r.Source, r.ID)
		if _, ok := out[key]; !ok {
			out[key] = r.At
		}
	}
	return sc.Err()
}
