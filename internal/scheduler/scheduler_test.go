package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/forecast-digest/internal/forecast"
)

type countingRunner struct {
	calls atomic.Int32
}

func (r *countingRunner) Run(context.Context) forecast.Outcome {
	r.calls.Add(1)
	return forecast.Outcome{State: forecast.StateDoneNoChange}
}

func TestSchedulerRunsImmediately(t *testing.T) {
	runner := &countingRunner{}
	s := New(runner, time.Hour, "", nil)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for runner.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := runner.calls.Load(); got != 1 {
		t.Fatalf("expected one immediate run, got %d", got)
	}
}

func TestSchedulerRejectsBadCron(t *testing.T) {
	s := New(&countingRunner{}, 0, "not a cron", nil)
	if err := s.Start(); err == nil {
		s.Stop()
		t.Fatal("expected error for invalid cron expression")
	}
}

type blockingRunner struct {
	started chan struct{}
	done    chan error
}

func (r *blockingRunner) Run(ctx context.Context) forecast.Outcome {
	close(r.started)
	<-ctx.Done()
	r.done <- ctx.Err()
	return forecast.Outcome{State: forecast.StateDoneWithError, Err: ctx.Err()}
}

func TestSchedulerStopCancelsRunInFlight(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}), done: make(chan error, 1)}
	s := New(runner, time.Hour, "", nil)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		s.Stop()
		t.Fatal("run never started")
	}

	go s.Stop()

	select {
	case err := <-runner.done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the running job")
	}
}
