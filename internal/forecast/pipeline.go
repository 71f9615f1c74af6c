package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PipelineConfig wires the collaborators of one Pipeline.
type PipelineConfig struct {
	Primary     Source
	Secondaries []Source
	Markers     MarkerStore
	Summarizer  Summarizer
	Notifier    Notifier

	// History is optional; every outcome is recorded when set.
	History HistoryStore

	// Pause precedes every secondary request.
	Pause time.Duration

	Logger *slog.Logger
}

// Option customizes a Pipeline during construction.
type Option func(*Pipeline)

// WithClock overrides the clock used for run timestamps.
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = clock
	}
}

// WithSleeper overrides how the pipeline waits between secondary requests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pipeline) {
		p.sleep = sleep
	}
}

// Pipeline is the Run Controller: fetch, gate on the primary marker, aggregate,
// summarize, notify and only then commit the marker.
type Pipeline struct {
	primary     Source
	secondaries []Source
	tracker     *Tracker
	summarizer  Summarizer
	notifier    Notifier
	history     HistoryStore
	pause       time.Duration
	logger      *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	// mu serializes runs so the marker read-compare-write never interleaves.
	mu sync.Mutex
}

// NewPipeline creates a Pipeline.
func NewPipeline(cfg PipelineConfig, opts ...Option) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{
		primary:     cfg.Primary,
		secondaries: cfg.Secondaries,
		tracker:     NewTracker(cfg.Markers),
		summarizer:  cfg.Summarizer,
		notifier:    cfg.Notifier,
		history:     cfg.History,
		pause:       cfg.Pause,
		logger:      logger,
		now:         time.Now,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tracker exposes the change tracker used by the pipeline.
func (p *Pipeline) Tracker() *Tracker {
	return p.tracker
}

// PrimarySource returns the id of the gating source.
func (p *Pipeline) PrimarySource() SourceID {
	return p.primary.ID()
}

// Outcome is the terminal result of one run.
type Outcome struct {
	RunID        string
	State        State
	FailedAt     State
	Err          error
	Primary      Document
	StoredMarker string
	Summary      string
	Receipt      Receipt
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Record converts the outcome into its persisted form.
func (o Outcome) Record() RunRecord {
	rec := RunRecord{
		ID:         o.RunID,
		StartedAt:  o.StartedAt,
		FinishedAt: o.FinishedAt,
		State:      o.State,
		FailedAt:   o.FailedAt,
		SourceID:   o.Primary.SourceID,
		Marker:     o.Primary.Marker,
		Notified:   o.Receipt.StatusCode != 0,
		MessageID:  o.Receipt.MessageID,
	}
	if o.Err != nil {
		rec.Error = o.Err.Error()
	}
	return rec
}

// Run executes one pass through the state machine. It never panics on
// collaborator failures; the returned Outcome always carries a terminal State.
func (p *Pipeline) Run(ctx context.Context) Outcome {
	out := Outcome{
		RunID:     uuid.NewString(),
		StartedAt: p.now().UTC(),
	}

	if !p.mu.TryLock() {
		out.State = StateDoneWithError
		out.Err = ErrRunInProgress
		out.FinishedAt = p.now().UTC()
		p.logger.Warn("run skipped", "run_id", out.RunID, "error", ErrRunInProgress)
		return out
	}
	defer p.mu.Unlock()

	logger := p.logger.With("run_id", out.RunID)
	out = p.run(ctx, logger, out)
	out.FinishedAt = p.now().UTC()

	switch out.State {
	case StateDoneWithError:
		logger.Error("run failed", "stage", out.FailedAt, "error", out.Err)
	case StateDoneNoChange:
		logger.Info("no new content", "source", out.Primary.SourceID, "marker", out.Primary.Marker)
	default:
		logger.Info("run completed", "source", out.Primary.SourceID, "marker", out.Primary.Marker, "message_id", out.Receipt.MessageID)
	}

	if p.history != nil {
		if err := p.history.SaveRun(ctx, out.Record()); err != nil {
			logger.Warn("failed to record run", "error", err)
		}
	}
	return out
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, out Outcome) Outcome {
	fail := func(stage State, err error) Outcome {
		out.State = StateDoneWithError
		out.FailedAt = stage
		out.Err = err
		return out
	}

	// FETCH_PRIMARY
	primary, err := p.primary.Fetch(ctx)
	if err != nil {
		return fail(StateFetchPrimary, err)
	}
	out.Primary = primary
	logger.Debug("fetched primary", "source", primary.SourceID, "marker", primary.Marker, "bytes", len(primary.Body))

	// CHECK_NEW
	isNew, stored, err := p.tracker.Check(ctx, primary)
	if err != nil {
		return fail(StateCheckNew, err)
	}
	out.StoredMarker = stored
	if !isNew {
		out.State = StateDoneNoChange
		return out
	}
	logger.Info("new content available", "source", primary.SourceID, "marker", primary.Marker, "previous", stored)

	// FETCH_SECONDARIES
	results, err := p.fetchSecondaries(ctx, logger)
	if err != nil {
		return fail(StateFetchSecondaries, err)
	}

	// AGGREGATE
	payload, err := Combine(primary, results)
	if err != nil {
		return fail(StateAggregate, err)
	}

	// SUMMARIZE
	summary, err := p.summarizer.Summarize(ctx, payload)
	if err != nil {
		var sErr *SummarizationError
		if !errors.As(err, &sErr) {
			err = &SummarizationError{Provider: "unknown", Err: err}
		}
		return fail(StateSummarize, err)
	}
	out.Summary = summary

	// NOTIFY
	receipt, err := p.notifier.Notify(ctx, ComposeMessage(summary, primary))
	if err != nil {
		var dErr *DeliveryError
		if !errors.As(err, &dErr) {
			err = &DeliveryError{Err: err}
		}
		return fail(StateNotify, err)
	}
	out.Receipt = receipt

	// COMMIT
	if err := p.tracker.Commit(ctx, primary.SourceID, primary.Marker); err != nil {
		return fail(StateCommit, err)
	}

	out.State = StateDone
	return out
}

// fetchSecondaries fetches every secondary source one at a time with a fixed pause
// before each request. Individual failures are kept in the results; only context
// cancellation during a pause aborts.
func (p *Pipeline) fetchSecondaries(ctx context.Context, logger *slog.Logger) ([]SecondaryResult, error) {
	results := make([]SecondaryResult, 0, len(p.secondaries))
	for _, s := range p.secondaries {
		if err := p.sleep(ctx, p.pause); err != nil {
			return nil, fmt.Errorf("pause before %s: %w", s.ID(), err)
		}

		doc, err := s.Fetch(ctx)
		if err != nil {
			logger.Warn("secondary fetch failed; using placeholder", "source", s.ID(), "error", err)
		}
		results = append(results, SecondaryResult{
			SourceID: s.ID(),
			Label:    s.Label(),
			Document: doc,
			Err:      err,
		})
	}
	return results, nil
}

// ComposeMessage appends a link to the full product when the document has one.
func ComposeMessage(summary string, primary Document) string {
	if primary.URL == "" {
		return summary
	}
	return fmt.Sprintf("%s\n\nRead the full %s here: %s", summary, primary.Label, primary.URL)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
