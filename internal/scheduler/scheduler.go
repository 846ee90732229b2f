// Package scheduler runs named jobs at fixed intervals, each in its own
// goroutine. A failing or panicking job is logged and retried on its next
// tick; it never stops the other jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitalis-app/sentinel/internal/telemetry"
)

// Job is a unit of periodic work. The context is cancelled on shutdown;
// jobs that block should honour it.
type Job func(ctx context.Context) error

// Scheduler owns the lifecycle of all registered job loops.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	wg   sync.WaitGroup
	mu   sync.Mutex
	jobs []string
}

// New creates a scheduler whose jobs stop when parent is cancelled or
// CancelAll is called.
func New(parent context.Context, logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{
		ctx:    ctx,
		cancel: cancel,
		logger: logger.Named("scheduler"),
	}
}

// Every starts job immediately and then repeats it interval after each run
// finishes. Runs of the same job never overlap.
func (s *Scheduler) Every(name string, interval time.Duration, job Job) {
	if interval <= 0 {
		s.logger.Warn("Non-positive interval, using 1s", zap.String("job", name))
		interval = time.Second
	}

	s.mu.Lock()
	s.jobs = append(s.jobs, name)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(name, interval, job)

	s.logger.Info("Scheduled job",
		zap.String("job", name),
		zap.Duration("interval", interval))
}

// Jobs returns the names of all registered jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.jobs))
	copy(out, s.jobs)
	return out
}

// CancelAll signals every job loop to exit. In-flight runs finish first.
func (s *Scheduler) CancelAll() {
	s.cancel()
}

// Wait blocks until every job loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(name string, interval time.Duration, job Job) {
	defer s.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debug("Job stopped", zap.String("job", name))
			return
		case <-timer.C:
		}

		s.run(name, job)
		timer.Reset(interval)
	}
}

// run executes one iteration, converting panics into logged errors.
func (s *Scheduler) run(name string, job Job) {
	start := time.Now()
	status := "ok"

	defer func() {
		if r := recover(); r != nil {
			status = "panic"
			s.logger.Error("Job panicked",
				zap.String("job", name),
				zap.String("panic", fmt.Sprint(r)),
				zap.Stack("stack"))
		}
		telemetry.JobRunsTotal.WithLabelValues(name, status).Inc()
		telemetry.JobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	if err := job(s.ctx); err != nil {
		status = "error"
		s.logger.Error("Job failed", zap.String("job", name), zap.Error(err))
	}
}
