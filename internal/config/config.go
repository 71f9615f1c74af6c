package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/i474232898/forecast-digest/internal/common"
	"github.com/i474232898/forecast-digest/internal/forecast/sources"
	"github.com/i474232898/forecast-digest/internal/summarize"
)

var validate = validator.New()

type AppConfig struct {
	TelegramToken     string
	TelegramChannelID string
	TelegramAPIBase   string

	OpenAIAPIKey    string
	AnthropicAPIKey string

	// Summarizer selects the language model provider. SummarizerBaseURL
	// points its SDK at a compatible endpoint.
	Summarizer        string `validate:"oneof=openai anthropic"`
	SummarizerModel   string
	SummarizerBaseURL string
	MaxTokens         int64    `validate:"gt=0"`
	Temperature       float64  `validate:"gte=0,lte=2"`
	Persona           string
	FocusRegions      []string `validate:"len=5,dive,required"`

	// AFDOffice is the NWS forecast office, e.g. MPX.
	AFDOffice    string        `validate:"required,alpha,len=3"`
	OutlookDays  []string      `validate:"dive,oneof=day1 day2 day3 day4-8"`
	HTTPTimeout  time.Duration `validate:"gt=0"`
	RequestPause time.Duration `validate:"gte=0"`
	UserAgent    string

	// DataDir holds the marker file and the replay cache.
	DataDir    string `validate:"required"`
	ReplayMode bool

	MarkerBackend string `validate:"oneof=file redis"`
	RedisURL      string `validate:"required_if=MarkerBackend redis"`
	RedisPrefix   string

	HistoryBackend    string `validate:"oneof=memory sqlite"`
	HistorySQLitePath string `validate:"required_if=HistoryBackend sqlite"`
	HistoryMaxRecords int
	HistoryMaxAge     time.Duration

	// FetchInterval controls how often serve mode runs the pipeline
	// unless ScheduleCron is set.
	FetchInterval time.Duration `validate:"gt=0"`
	ScheduleCron  string

	Port      string
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=text json"`
}

// Load reads configuration from environment (and .env if present) with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	cfg := &AppConfig{}

	cfg.TelegramToken = os.Getenv("TELEGRAM_KEY")
	cfg.TelegramChannelID = os.Getenv("TELEGRAM_CHANNEL_ID")
	cfg.TelegramAPIBase = os.Getenv("TELEGRAM_API_BASE")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")

	cfg.Summarizer = strings.ToLower(getenvDefault("SUMMARIZER_PROVIDER", "openai"))
	cfg.SummarizerModel = os.Getenv("SUMMARIZER_MODEL")
	cfg.SummarizerBaseURL = os.Getenv("SUMMARIZER_BASE_URL")
	cfg.MaxTokens = int64(getenvInt("SUMMARIZER_MAX_TOKENS", 1000))

	temp, err := strconv.ParseFloat(getenvDefault("SUMMARIZER_TEMPERATURE", "0.5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SUMMARIZER_TEMPERATURE: %w", err)
	}
	cfg.Temperature = temp

	cfg.Persona = strings.ToLower(getenvDefault("PERSONA", "expert"))
	if _, ok := summarize.LookupPersona(cfg.Persona); !ok {
		return nil, fmt.Errorf("invalid PERSONA %q: must be one of %v", cfg.Persona, summarize.PersonaNames())
	}
	cfg.FocusRegions = common.SplitList(getenvDefault("FOCUS_REGIONS", strings.Join(summarize.DefaultRegions, ",")))

	cfg.AFDOffice = strings.ToUpper(getenvDefault("AFD_OFFICE", "MPX"))
	cfg.OutlookDays = common.SplitList(getenvDefault("OUTLOOK_DAYS", "day1,day2,day3,day4-8"))

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.RequestPause, err = getenvDuration("REQUEST_PAUSE", "2s"); err != nil {
		return nil, err
	}
	cfg.UserAgent = getenvDefault("USER_AGENT", sources.DefaultUserAgent)

	cfg.DataDir = getenvDefault("DATA_DIR", "data")
	cfg.ReplayMode = getenvBool("REPLAY_MODE", false)

	cfg.MarkerBackend = strings.ToLower(getenvDefault("MARKER_BACKEND", "file"))
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.RedisPrefix = getenvDefault("REDIS_PREFIX", "forecast-digest")

	cfg.HistoryBackend = strings.ToLower(getenvDefault("HISTORY_BACKEND", "memory"))
	cfg.HistorySQLitePath = os.Getenv("HISTORY_SQLITE_PATH")
	cfg.HistoryMaxRecords = getenvInt("HISTORY_MAX_RECORDS", 500)
	if cfg.HistoryMaxAge, err = getenvDuration("HISTORY_MAX_AGE", "720h"); err != nil {
		return nil, err
	}

	// Scheduler interval: default 1 hour.
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", "1h"); err != nil {
		return nil, err
	}
	cfg.ScheduleCron = os.Getenv("SCHEDULE_CRON")
	if cfg.ScheduleCron != "" {
		if _, err := cron.ParseStandard(cfg.ScheduleCron); err != nil {
			return nil, fmt.Errorf("invalid SCHEDULE_CRON: %w", err)
		}
	}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", "info"))
	cfg.LogFormat = strings.ToLower(getenvDefault("LOG_FORMAT", "text"))

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Outlooks resolves the configured outlook day keys in ascending day order.
func (c *AppConfig) Outlooks() []sources.OutlookDay {
	var days []sources.OutlookDay
	for _, d := range sources.OutlookDays {
		for _, key := range c.OutlookDays {
			if key == d.Key {
				days = append(days, d)
				break
			}
		}
	}
	return days
}

// SlogLevel maps LogLevel onto slog.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RequireSecrets checks the secrets a live run needs.
func (c *AppConfig) RequireSecrets() error {
	var missing []string
	if c.TelegramToken == "" {
		missing = append(missing, "TELEGRAM_KEY")
	}
	if c.TelegramChannelID == "" {
		missing = append(missing, "TELEGRAM_CHANNEL_ID")
	}
	switch c.Summarizer {
	case "openai":
		if c.OpenAIAPIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			missing = append(missing, "ANTHROPIC_API_KEY")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required secrets: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
