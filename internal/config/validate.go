package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// EnvTelegramToken is consulted when telegram.token is absent from config.
const EnvTelegramToken = "RADAR_TELEGRAM_TOKEN"

// ResolveToken returns the effective bot token (config first, then env).
func (c *Config) ResolveToken() string {
	if t := strings.TrimSpace(c.Telegram.Token); t != "" {
		return t
	}
	return strings.TrimSpace(os.Getenv(EnvTelegramToken))
}

// Validate checks structural invariants that don't require live components.
// Schedule syntax is validated separately (the app installs a validator that
// also parses monitor.schedule).
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}

	if c.ResolveToken() == "" {
		return fmt.Errorf("telegram.token missing (set it in config or %s)", EnvTelegramToken)
	}
	if c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram.chat_id is required")
	}

	if _, err := ParseDurationField("monitor.request_interval", c.Monitor.RequestInterval); err != nil {
		return err
	}
	if c.Monitor.HistorySize < 0 {
		return fmt.Errorf("monitor.history_size must be >= 0")
	}
	if tz := strings.TrimSpace(c.Monitor.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("monitor.timezone: %w", err)
		}
	}

	for name, src := range c.Monitor.Sources {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("monitor.sources: empty source name")
		}
		if src.MinPrice < 0 {
			return fmt.Errorf("monitor.sources.%s.min_price must be >= 0", name)
		}
		// An enabled source with no keywords is valid: it pauses the source
		// without removing its config.
	}

	if c.Notifier != nil && c.Notifier.RatePerSec < 0 {
		return fmt.Errorf("notifier.rate_per_sec must be >= 0")
	}

	if s := c.Storage; s != nil {
		switch strings.TrimSpace(strings.ToLower(s.Driver)) {
		case "", "file", "sqlite":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q (want file or sqlite)", s.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			return err
		}
		if _, err := ParseDurationField("storage.retention", s.Retention); err != nil {
			return err
		}
	}

	return nil
}
