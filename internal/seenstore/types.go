package seenstore

import (
	"fmt"
	"time"
)

// Config configures the store.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl journal + snapshot)
//   - "sqlite": SQLite database file (optional build tag)
//
// An empty Driver selects "file".
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// IOError marks a store failure as an IO problem rather than a logical miss.
// Read and write failures must surface loudly: treating them as "not seen"
// would re-notify the whole result set, treating them as "seen" would
// silently drop listings.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("seenstore %s: %v", e.Op, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

func ioErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Err: err}
}
