package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/forecast-digest/internal/forecast"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context) forecast.Outcome
}

// Scheduler periodically runs the pipeline.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	runner     Runner
	interval   time.Duration
	cronExpr   string
	runTimeout time.Duration
	logger     *slog.Logger

	// ctx is cancelled by Stop so a run in flight ends with the scheduler.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Scheduler. cronExpr, when set, takes precedence over interval.
func New(runner Runner, interval time.Duration, cronExpr string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := gocron.NewScheduler(time.UTC)
	// A run that outlives its slot is never overlapped by the next one.
	s.SingletonModeAll()
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler:  s,
		runner:     runner,
		interval:   interval,
		cronExpr:   cronExpr,
		runTimeout: 5 * time.Minute,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first run happens immediately.
func (s *Scheduler) Start() error {
	var job *gocron.Scheduler
	if s.cronExpr != "" {
		job = s.scheduler.Cron(s.cronExpr)
	} else {
		interval := s.interval
		if interval <= 0 {
			interval = time.Hour
		}
		job = s.scheduler.Every(interval).StartImmediately()
	}

	_, err := job.Do(s.runOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "interval", s.interval, "cron", s.cronExpr)
	return nil
}

func (s *Scheduler) runOnce() {
	s.logger.Info("scheduler: running forecast digest job")

	ctx, cancel := context.WithTimeout(s.ctx, s.runTimeout)
	defer cancel()

	out := s.runner.Run(ctx)
	s.logger.Info("scheduler: completed forecast digest job", "state", out.State, "run_id", out.RunID)
}

// Stop cancels a run in flight, then stops the scheduler and any future jobs.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
