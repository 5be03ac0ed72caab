package sched

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-channel-subscription/internal/usecase"
)

// SweepRunner is the minimal interface the worker needs from the recovery
// use case.
type SweepRunner interface {
	Sweep(ctx context.Context) (*usecase.SweepReport, error)
}

// DeliveryWorker periodically runs the failed-delivery sweep. Start is
// idempotent; Stop cancels the loop and waits for it to finish.
type DeliveryWorker struct {
	interval     time.Duration
	runOnStartup bool
	runner       SweepRunner
	log          *zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewDeliveryWorker(interval time.Duration, runOnStartup bool, runner SweepRunner, logger *zerolog.Logger) *DeliveryWorker {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	wLog := logger.With().Str("component", "DeliveryWorker").Logger()
	return &DeliveryWorker{
		interval:     interval,
		runOnStartup: runOnStartup,
		runner:       runner,
		log:          &wLog,
	}
}

// Start begins the sweep loop in a background goroutine. Calling Start while
// already scheduled is a no-op.
func (w *DeliveryWorker) Start(parentCtx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.log.Debug().Msg("already started")
		return
	}
	ctx, cancel := context.WithCancel(parentCtx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(ctx, w.done)
	w.log.Info().Dur("interval", w.interval).Msg("delivery worker started")
}

func (w *DeliveryWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if w.runOnStartup {
		w.runSweep(ctx)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("delivery worker stopping")
			return
		case <-ticker.C:
			w.runSweep(ctx)
		}
	}
}

func (w *DeliveryWorker) runSweep(ctx context.Context) {
	rep, err := w.runner.Sweep(ctx)
	if err != nil {
		// ErrSweepInProgress here means a manual trigger got there first.
		w.log.Warn().Err(err).Msg("scheduled sweep did not run")
		return
	}
	if rep.Processed > 0 {
		w.log.Info().Int("processed", rep.Processed).Int("succeeded", rep.Succeeded).Msg("scheduled sweep finished")
	}
}

// RunOnce triggers a single sweep synchronously, for administrative use. It
// does not queue: when a sweep is active the call fails with
// ErrSweepInProgress.
func (w *DeliveryWorker) RunOnce(ctx context.Context) (*usecase.SweepReport, error) {
	return w.runner.Sweep(ctx)
}

// Stop cancels the worker and waits for the loop to finish. Idempotent.
func (w *DeliveryWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.cancel = nil
	w.done = nil
	w.log.Info().Msg("delivery worker stopped")
}
