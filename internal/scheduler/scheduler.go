// Package scheduler triggers store sessions on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"review-reply-automation/internal/metrics"
	"review-reply-automation/internal/processor"
	"review-reply-automation/internal/runner"
	ksync "review-reply-automation/internal/sync"
	"review-reply-automation/internal/worker"
)

// Scheduler queues one job per store on every cron tick. A store whose
// previous session is still running is skipped for that tick.
type Scheduler struct {
	cron   *cron.Cron
	pool   *worker.Pool
	runner runner.StoreRunner
	locks  *ksync.KeyLock
	stores func() []string
}

// New creates a scheduler. stores is evaluated on every tick.
func New(spec string, pool *worker.Pool, sr runner.StoreRunner, stores func() []string) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(cron.WithParser(cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
		pool:   pool,
		runner: sr,
		locks:  ksync.NewKeyLock(),
		stores: stores,
	}
	if _, err := s.cron.AddFunc(spec, s.Tick); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins firing ticks.
func (s *Scheduler) Start() {
	slog.Info("scheduler started", "entries", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop stops firing ticks. Queued jobs are left to the worker pool.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("scheduler stopped")
}

// Tick queues a session for every store.
func (s *Scheduler) Tick() {
	runID := uuid.NewString()
	codes := s.stores()
	slog.Info("scheduled run", "run_id", runID, "stores", len(codes))

	for _, code := range codes {
		if err := s.pool.Submit(s.job(runID, code)); err != nil {
			if errors.Is(err, worker.ErrQueueFull) {
				slog.Warn("store run dropped, queue full", "run_id", runID, "store", code)
			} else {
				slog.Warn("store run not queued", "run_id", runID, "store", code, "error", err)
			}
			metrics.StoreRuns.WithLabelValues(code, "dropped").Inc()
		}
	}
}

func (s *Scheduler) job(runID, code string) worker.Job {
	return func(ctx context.Context) error {
		var err error
		ran := s.locks.TryRun(code, func() {
			var stats processor.RunStats
			stats, err = s.runner.RunStore(ctx, code)
			slog.Debug("scheduled store run done", "run_id", runID, "store", code, "stats", stats.String())
		})
		if !ran {
			slog.Info("store run still in progress, skipping", "run_id", runID, "store", code)
			metrics.StoreRuns.WithLabelValues(code, "skipped").Inc()
			return nil
		}
		if err != nil {
			return fmt.Errorf("store %s: %w", code, err)
		}
		return nil
	}
}
