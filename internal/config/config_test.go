package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  chat_id: -100200300
logging:
  level: INFO
  console: true
  file:
    enabled: true
    path: ./radar.log
  telegram:
    enabled: false
    min_level: WARN
    rate_per_sec: 1
monitor:
  enabled: true
  schedule: "30m"
  request_interval: "2s"
  sources:
    yahoo:
      enabled: true
      keywords: ["vintage camera", "film scanner"]
      min_price: 3000
      seed_on_first_run: true
storage:
  driver: file
  path: ./radar_store
  retention: "720h"
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestManagerParseYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", sampleYAML))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if cfg.Telegram.ChatID != -100200300 {
		t.Fatalf("chat_id = %d", cfg.Telegram.ChatID)
	}
	src, ok := cfg.Monitor.Sources["yahoo"]
	if !ok {
		t.Fatal("yahoo source missing")
	}
	if !src.Enabled || len(src.Keywords) != 2 || src.MinPrice != 3000 || !src.SeedOnFirstRun {
		t.Fatalf("yahoo source = %+v", src)
	}
	if cfg.Storage == nil || cfg.Storage.Retention != "720h" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}

func TestManagerRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	body := sampleYAML + "\nnot_a_section:\n  x: 1\n"
	m := NewManager(writeConfig(t, "config.yaml", body))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected unknown-field error")
	}
}

func TestManagerRejectsTrailingJSON(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.json", `{"telegram":{"chat_id":1},"logging":{},"monitor":{"sources":{}}}{}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected trailing-data error")
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		return &Config{
			Telegram: TelegramConfig{Token: "123:abc", ChatID: 42},
			Monitor: MonitorConfig{
				Sources: map[string]SourceConfig{
					"yahoo": {Enabled: true, Keywords: []string{"camera"}},
				},
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing chat_id", func(c *Config) { c.Telegram.ChatID = 0 }},
		{"bad request_interval", func(c *Config) { c.Monitor.RequestInterval = "soon" }},
		{"negative min_price", func(c *Config) {
			c.Monitor.Sources["yahoo"] = SourceConfig{Enabled: true, Keywords: []string{"x"}, MinPrice: -1}
		}},
		{"bad timezone", func(c *Config) { c.Monitor.Timezone = "Mars/Olympus" }},
		{"bad storage driver", func(c *Config) { c.Storage = &StorageConfig{Driver: "redis"} }},
		{"bad retention", func(c *Config) { c.Storage = &StorageConfig{Driver: "file", Retention: "later"} }},
		{"negative notifier rate", func(c *Config) { c.Notifier = &NotifierConfig{RatePerSec: -1} }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("base config must validate: %v", err)
	}
}

func TestValidateAllowsEnabledSourceWithoutKeywords(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		Telegram: TelegramConfig{Token: "123:abc", ChatID: 42},
		Monitor: MonitorConfig{
			Enabled: true,
			Sources: map[string]SourceConfig{
				// Emptying the keyword list pauses a source without a restart;
				// it must not be a config error.
				"yahoo": {Enabled: true},
			},
		},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("enabled source with empty keywords must validate: %v", err)
	}
}

func TestResolveTokenEnvFallback(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{ChatID: 1}}
	t.Setenv(EnvTelegramToken, "999:env")
	if got := cfg.ResolveToken(); got != "999:env" {
		t.Fatalf("ResolveToken = %q, want env fallback", got)
	}
	cfg.Telegram.Token = "123:cfg"
	if got := cfg.ResolveToken(); got != "123:cfg" {
		t.Fatalf("ResolveToken = %q, want config value to win", got)
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", " 90s "); err != nil || d != 90*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: got %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatal("negative duration must error")
	}
	if d, err := ParseDurationOrDefault("x", "", 5*time.Second); err != nil || d != 5*time.Second {
		t.Fatalf("default: got %v, %v", d, err)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Telegram: TelegramConfig{ChatID: 1}}
	newCfg := &Config{
		Telegram: TelegramConfig{ChatID: 2},
		Monitor:  MonitorConfig{Enabled: true, Schedule: "15m"},
	}
	sections, _ := SummarizeConfigChange(oldCfg, newCfg)
	want := map[string]bool{"telegram": true, "monitor": true}
	if len(sections) != 2 || !want[sections[0]] || !want[sections[1]] {
		t.Fatalf("sections = %v, want monitor+telegram", sections)
	}

	same, _ := SummarizeConfigChange(newCfg, newCfg)
	if len(same) != 0 {
		t.Fatalf("identical configs reported changes: %v", same)
	}
}
