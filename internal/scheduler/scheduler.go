package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FastFirstRunDivisor shortens the first delay of a fast-starting schedule.
const FastFirstRunDivisor = 100

// Job is one independently repeating unit of work.
type Job interface {
	Name() string
	Interval() time.Duration
	FirstDelay() time.Duration
	Run(ctx context.Context)
}

// Scheduler runs every job on its own timer chain: wait, run to completion,
// re-arm for the full interval. Chains never wait on one another.
type Scheduler struct {
	Logger *zap.Logger
	wg     sync.WaitGroup
}

func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{Logger: logger}
}

type funcJob struct {
	name     string
	interval time.Duration
	first    time.Duration
	fn       func(context.Context)
}

func (j funcJob) Name() string              { return j.name }
func (j funcJob) Interval() time.Duration   { return j.interval }
func (j funcJob) FirstDelay() time.Duration { return j.first }
func (j funcJob) Run(ctx context.Context)   { j.fn(ctx) }

// Schedule runs fn every interval until ctx is cancelled. With fastFirstRun
// the first firing comes after interval/100 instead of interval.
func (s *Scheduler) Schedule(ctx context.Context, name string, interval time.Duration, fn func(context.Context), fastFirstRun bool) {
	first := interval
	if fastFirstRun {
		first = interval / FastFirstRunDivisor
	}
	s.Add(ctx, funcJob{name: name, interval: interval, first: first, fn: fn})
}

// Add starts the timer chain for j. It returns immediately.
func (s *Scheduler) Add(ctx context.Context, j Job) {
	if j.Interval() <= 0 {
		s.Logger.Warn("scheduler_job_disabled", zap.String("job", j.Name()))
		return
	}
	s.wg.Add(1)
	go s.loop(ctx, j)
}

// Wait blocks until every chain has observed cancellation.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j Job) {
	defer s.wg.Done()

	log := s.Logger.With(zap.String("job", j.Name()))
	delay := j.FirstDelay()
	if delay < 0 {
		delay = 0
	}
	log.Info("scheduler_job_started",
		zap.Duration("first_delay", delay),
		zap.Duration("interval", j.Interval()),
	)

	t := time.NewTimer(delay)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler_job_stopped")
			return
		case <-t.C:
		}

		s.fire(ctx, log, j)

		// relative to completion, so a slow run delays every later firing
		t.Reset(j.Interval())
	}
}

func (s *Scheduler) fire(ctx context.Context, log *zap.Logger, j Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("scheduler_job_panic", zap.Any("panic", r), zap.Stack("stacktrace"))
		}
	}()
	start := time.Now()
	j.Run(ctx)
	log.Debug("scheduler_job_ran", zap.Duration("took", time.Since(start)))
}
