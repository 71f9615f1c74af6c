package summarize

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/i474232898/forecast-digest/internal/forecast"
)

var errEmptyCompletion = errors.New("completion is empty")

// CompletionRequest is the text-in half of the summarization contract.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int64
	Temperature float64
}

// Completer is the external language model. Implementations must not retry.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Config controls prompt rendering and sampling.
type Config struct {
	Persona     Persona
	Regions     []string
	Office      string
	MaxTokens   int64
	Temperature float64
}

// Gateway builds the prompt, calls the completer once and post-processes the result.
type Gateway struct {
	completer Completer
	builder   PromptBuilder
	maxTokens int64
	temp      float64
	now       func() time.Time
	logger    *slog.Logger
}

// NewGateway creates a Gateway. now may be nil to use the wall clock.
func NewGateway(completer Completer, cfg Config, now func() time.Time, logger *slog.Logger) *Gateway {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	return &Gateway{
		completer: completer,
		builder: PromptBuilder{
			Persona: cfg.Persona,
			Regions: cfg.Regions,
			Office:  cfg.Office,
		},
		maxTokens: cfg.MaxTokens,
		temp:      cfg.Temperature,
		now:       now,
		logger:    logger,
	}
}

// Summarize returns the Markdown summary for payload. Any completer failure or
// blank completion is a *forecast.SummarizationError.
func (g *Gateway) Summarize(ctx context.Context, payload forecast.Payload) (string, error) {
	prompt := g.builder.Build(payload, g.now())

	g.logger.Debug("requesting summary", "provider", g.completer.Name(), "prompt_chars", len(prompt.User))

	text, err := g.completer.Complete(ctx, CompletionRequest{
		System:      prompt.System,
		Prompt:      prompt.User,
		MaxTokens:   g.maxTokens,
		Temperature: g.temp,
	})
	if err != nil {
		return "", &forecast.SummarizationError{Provider: g.completer.Name(), Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &forecast.SummarizationError{Provider: g.completer.Name(), Err: errEmptyCompletion}
	}

	return BoldWeekdays(text), nil
}
