package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Monitor  MonitorConfig  `json:"monitor"`

	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
}

type TelegramConfig struct {
	// Token may be omitted; the daemon then falls back to the
	// RADAR_TELEGRAM_TOKEN environment variable.
	Token    string `json:"token,omitempty"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram mirrors warn/error log lines into the notification chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// MonitorConfig controls the polling engine.
//
// All durations are Go duration strings (e.g. "2s", "30m").
//
// Schedule accepts:
//   - a plain duration ("30m") or "interval:30m" — fixed interval
//   - "cron:*/30 * * * *" or "@hourly" — cron expression
//   - "HH:MM" — interval of HH hours and MM minutes ("01:30" = every 90m)
//
// Defaults (when fields are omitted/zero):
//   - schedule: "30m"
//   - request_interval: "2s"
//   - history_size: 50
type MonitorConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"`

	// RequestInterval paces keyword searches within a cycle so sources
	// are not hammered.
	RequestInterval string `json:"request_interval,omitempty"`

	HistorySize int `json:"history_size,omitempty"`

	// Trigger timezone (IANA name). Empty means local time.
	Timezone string `json:"timezone,omitempty"`

	Sources map[string]SourceConfig `json:"sources"`
}

// SourceConfig configures one listing source.
type SourceConfig struct {
	Enabled  bool     `json:"enabled"`
	Keywords []string `json:"keywords"`

	// MinPrice drops listings priced below this value (source currency).
	// Zero means no floor.
	MinPrice int `json:"min_price,omitempty"`

	// SeedOnFirstRun registers every hit of a keyword's first-ever fetch as
	// seen without notifying, so a fresh deployment doesn't flood the chat.
	SeedOnFirstRun bool `json:"seed_on_first_run,omitempty"`
}

// NotifierConfig controls outbound delivery.
//
// If the whole section is omitted, the notifier defaults to rate_per_sec=1.
type NotifierConfig struct {
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// StorageConfig controls the seen-item persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./radar_store" }
//
// Retention, when set, prunes seen records older than the window at the end
// of each cycle. Empty or "0s" keeps records forever.
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	Retention   string `json:"retention,omitempty"`
}
