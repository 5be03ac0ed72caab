package sched

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"telegram-channel-subscription/internal/domain"
	"telegram-channel-subscription/internal/usecase"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeRunner) Sweep(ctx context.Context) (*usecase.SweepReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.SweepReport{Processed: 1, Succeeded: 1}, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestDeliveryWorker_StartupSweep(t *testing.T) {
	runner := &fakeRunner{}
	w := NewDeliveryWorker(time.Hour, true, runner, testLogger())
	w.Start(context.Background())
	defer w.Stop()

	waitFor(t, time.Second, func() bool { return runner.callCount() == 1 })
}

func TestDeliveryWorker_PeriodicSweep(t *testing.T) {
	runner := &fakeRunner{}
	w := NewDeliveryWorker(20*time.Millisecond, false, runner, testLogger())
	w.Start(context.Background())
	defer w.Stop()

	waitFor(t, time.Second, func() bool { return runner.callCount() >= 2 })
}

func TestDeliveryWorker_StartIsIdempotent(t *testing.T) {
	runner := &fakeRunner{}
	w := NewDeliveryWorker(time.Hour, true, runner, testLogger())
	w.Start(context.Background())
	w.Start(context.Background())
	defer w.Stop()

	waitFor(t, time.Second, func() bool { return runner.callCount() == 1 })
	// a second loop would have run the startup sweep again
	time.Sleep(50 * time.Millisecond)
	if runner.callCount() != 1 {
		t.Fatalf("expected a single loop, runner called %d times", runner.callCount())
	}
}

func TestDeliveryWorker_StopWaitsAndIsIdempotent(t *testing.T) {
	runner := &fakeRunner{}
	w := NewDeliveryWorker(time.Hour, false, runner, testLogger())
	w.Start(context.Background())
	w.Stop()
	w.Stop() // second call is a no-op

	// a stopped worker can be started again
	w.Start(context.Background())
	defer w.Stop()
}

func TestDeliveryWorker_RunOnce(t *testing.T) {
	runner := &fakeRunner{}
	w := NewDeliveryWorker(time.Hour, false, runner, testLogger())

	rep, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if rep.Processed != 1 {
		t.Errorf("unexpected report: %+v", rep)
	}

	runner.err = domain.ErrSweepInProgress
	if _, err := w.RunOnce(context.Background()); !errors.Is(err, domain.ErrSweepInProgress) {
		t.Fatalf("expected ErrSweepInProgress, got: %v", err)
	}
}
