package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/i474232898/forecast-digest/internal/config"
	"github.com/i474232898/forecast-digest/internal/forecast"
	"github.com/i474232898/forecast-digest/internal/forecast/sources"
	"github.com/i474232898/forecast-digest/internal/notify"
	"github.com/i474232898/forecast-digest/internal/store"
	"github.com/i474232898/forecast-digest/internal/summarize"
)

// app holds everything one command needs, plus the cleanup for it.
type app struct {
	cfg      *config.AppConfig
	logger   *slog.Logger
	markers  forecast.MarkerStore
	history  forecast.HistoryStore
	pipeline *forecast.Pipeline
	closers  []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("cleanup failed", "error", err)
		}
	}
}

func newLogger(cfg *config.AppConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With("service", "forecast-digest")
	slog.SetDefault(logger)
	return logger
}

// openMarkers builds only the marker store; the marker subcommands need nothing else.
func openMarkers(ctx context.Context, a *app) error {
	switch a.cfg.MarkerBackend {
	case "redis":
		client, err := store.Connect(ctx, a.cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.markers = store.NewRedisMarkerStore(client, a.cfg.RedisPrefix)
	default:
		a.markers = store.NewFileMarkerStore(a.cfg.DataDir)
	}
	return nil
}

func openHistory(a *app) error {
	switch a.cfg.HistoryBackend {
	case "sqlite":
		h, err := store.OpenSQLHistory(a.cfg.HistorySQLitePath)
		if err != nil {
			return fmt.Errorf("open run history: %w", err)
		}
		a.closers = append(a.closers, h.Close)
		a.history = h
	default:
		a.history = store.NewMemoryHistory(a.cfg.HistoryMaxRecords, a.cfg.HistoryMaxAge)
	}
	return nil
}

// buildSources returns the primary and secondary sources for the configured mode.
func buildSources(cfg *config.AppConfig, logger *slog.Logger) (forecast.Source, []forecast.Source) {
	days := cfg.Outlooks()
	secondaries := make([]forecast.Source, 0, len(days))

	if cfg.ReplayMode {
		primary := sources.NewFileSource(cfg.DataDir, forecast.SourceAFD, "AFD", true).
			WithURL(sources.AFDProductURL(cfg.AFDOffice))
		for _, d := range days {
			secondaries = append(secondaries, sources.NewFileSource(cfg.DataDir, d.ID, d.Label, false).WithURL(d.URL))
		}
		return primary, secondaries
	}

	// Shared HTTP client for outbound source calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	primary := sources.NewCachingSource(sources.NewAFDSource(httpClient, cfg.UserAgent, cfg.AFDOffice), cfg.DataDir, logger)
	for _, d := range days {
		secondaries = append(secondaries, sources.NewCachingSource(sources.NewOutlookSource(httpClient, cfg.UserAgent, d), cfg.DataDir, logger))
	}
	return primary, secondaries
}

func buildCompleter(cfg *config.AppConfig) summarize.Completer {
	if cfg.Summarizer == "anthropic" {
		return summarize.NewAnthropicCompleter(cfg.AnthropicAPIKey, cfg.SummarizerModel, cfg.SummarizerBaseURL, cfg.HTTPTimeout)
	}
	return summarize.NewOpenAICompleter(cfg.OpenAIAPIKey, cfg.SummarizerModel, cfg.SummarizerBaseURL, cfg.HTTPTimeout)
}

// buildApp wires the full pipeline.
func buildApp(ctx context.Context, cfg *config.AppConfig) (*app, error) {
	if err := cfg.RequireSecrets(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: newLogger(cfg)}
	if err := openMarkers(ctx, a); err != nil {
		return nil, err
	}
	if err := openHistory(a); err != nil {
		a.Close()
		return nil, err
	}

	primary, secondaries := buildSources(cfg, a.logger)
	for _, s := range append([]forecast.Source{primary}, secondaries...) {
		a.logger.Debug("source configured", "source", sources.Describe(s))
	}

	persona, _ := summarize.LookupPersona(cfg.Persona)
	gateway := summarize.NewGateway(buildCompleter(cfg), summarize.Config{
		Persona:     persona,
		Regions:     cfg.FocusRegions,
		Office:      cfg.AFDOffice,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}, nil, a.logger)

	telegram := notify.NewTelegram(notify.TelegramConfig{
		Token:     cfg.TelegramToken,
		ChannelID: cfg.TelegramChannelID,
		APIBase:   cfg.TelegramAPIBase,
		Timeout:   cfg.HTTPTimeout,
	})

	a.pipeline = forecast.NewPipeline(forecast.PipelineConfig{
		Primary:     primary,
		Secondaries: secondaries,
		Markers:     a.markers,
		Summarizer:  gateway,
		Notifier:    telegram,
		History:     a.history,
		Pause:       cfg.RequestPause,
		Logger:      a.logger,
	})
	return a, nil
}
