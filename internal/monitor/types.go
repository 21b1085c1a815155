package monitor

import (
	"time"
)

// Config is the runtime monitor configuration (already parsed durations).
type Config struct {
	Enabled bool

	// Schedule accepts cron specs, "HH:MM" intervals, and Go durations;
	// see ParseSchedule. Empty means DefaultSchedule.
	Schedule string

	// RequestInterval paces keyword searches within a cycle.
	RequestInterval time.Duration

	// HistorySize bounds the in-memory cycle result history.
	HistorySize int

	// Timezone for cron triggers (IANA name). Empty means local time.
	Timezone string

	Sources []SourceJob
}

const (
	DefaultSchedule        = "30m"
	DefaultRequestInterval = 2 * time.Second
	DefaultHistorySize     = 50
)

// SourceJob is the monitoring job for one source.
type SourceJob struct {
	Name     string
	Keywords []string

	// MinPrice drops listings priced below it. When set (> 0), listings
	// without a parseable price are dropped too.
	MinPrice int

	// SeedOnFirstRun registers the whole first-ever result set as seen
	// without notifying.
	SeedOnFirstRun bool
}

// KeywordResult summarizes one keyword search within a cycle.
type KeywordResult struct {
	Keyword  string
	Found    int // items returned by the source
	Filtered int // dropped by the price floor, never marked seen
	Fresh    int // not in the seen store
	Notified int
	Failed   int // send attempts that errored (items still marked seen)
	Seeded   int
	Err      string // fetch/parse failure, empty on success
}

// SourceResult summarizes one source within a cycle.
type SourceResult struct {
	Source   string
	Keywords []KeywordResult
	Err      string
	Took     time.Duration
}

// CycleResult summarizes one full monitoring cycle.
type CycleResult struct {
	Started time.Time
	Took    time.Duration
	Sources []SourceResult
	Err     string // set when the cycle aborted (store IO failure)
}

// Event types published on the bus.
const (
	EventCycleStart = "monitor.cycle.start"
	EventCycleDone  = "monitor.cycle.done"
	EventSourceDone = "monitor.source.done"
	EventNotified   = "monitor.item.notified"
	EventNotifyFail = "monitor.item.notify_failed"
)
