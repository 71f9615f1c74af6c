package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.AFDOffice != "MPX" {
		t.Errorf("expected MPX, got %s", cfg.AFDOffice)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("expected 10s timeout, got %s", cfg.HTTPTimeout)
	}
	if cfg.MaxTokens != 1000 || cfg.Temperature != 0.5 {
		t.Errorf("unexpected sampling defaults: %d %v", cfg.MaxTokens, cfg.Temperature)
	}
	if len(cfg.FocusRegions) != 5 {
		t.Errorf("expected five focus regions, got %v", cfg.FocusRegions)
	}
	if cfg.MarkerBackend != "file" || cfg.HistoryBackend != "memory" {
		t.Errorf("unexpected backends: %s %s", cfg.MarkerBackend, cfg.HistoryBackend)
	}

	days := cfg.Outlooks()
	if len(days) != 4 || days[0].Key != "day1" || days[3].Key != "day4-8" {
		t.Errorf("unexpected outlooks %+v", days)
	}
}

func TestLoadOutlookOrderFollowsDays(t *testing.T) {
	t.Setenv("OUTLOOK_DAYS", "day3,day1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	days := cfg.Outlooks()
	if len(days) != 2 || days[0].Key != "day1" || days[1].Key != "day3" {
		t.Fatalf("outlooks must be in ascending day order, got %+v", days)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "unknown outlook", key: "OUTLOOK_DAYS", val: "day1,day9"},
		{name: "bad timeout", key: "HTTP_TIMEOUT", val: "soon"},
		{name: "unknown provider", key: "SUMMARIZER_PROVIDER", val: "markov"},
		{name: "unknown persona", key: "PERSONA", val: "pirate"},
		{name: "four regions", key: "FOCUS_REGIONS", val: "Minnesota,Iowa,Wisconsin,Nebraska"},
		{name: "bad cron", key: "SCHEDULE_CRON", val: "every tuesday"},
		{name: "redis without url", key: "MARKER_BACKEND", val: "redis"},
		{name: "sqlite without path", key: "HISTORY_BACKEND", val: "sqlite"},
		{name: "bad office", key: "AFD_OFFICE", val: "MPX1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}

func TestLoadAcceptsCron(t *testing.T) {
	t.Setenv("SCHEDULE_CRON", "15 */2 * * *")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ScheduleCron != "15 */2 * * *" {
		t.Fatalf("unexpected cron %q", cfg.ScheduleCron)
	}
}

func TestRequireSecrets(t *testing.T) {
	t.Setenv("TELEGRAM_KEY", "")
	t.Setenv("TELEGRAM_CHANNEL_ID", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = cfg.RequireSecrets()
	if err == nil {
		t.Fatal("expected missing secrets error")
	}
	for _, key := range []string{"TELEGRAM_KEY", "TELEGRAM_CHANNEL_ID", "OPENAI_API_KEY"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error should mention %s: %v", key, err)
		}
	}

	cfg.TelegramToken, cfg.TelegramChannelID, cfg.OpenAIAPIKey = "t", "c", "k"
	if err := cfg.RequireSecrets(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
