// Package scheduler reruns the forecast grid on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/FlavioCFOliveira/rollcast/internal/logger"
)

// Job is one scheduled grid run.
type Job func(ctx context.Context) error

// Scheduler runs a Job on a six-field (seconds first) cron spec. A run that
// is still going when the next tick arrives makes that tick a no-op.
type Scheduler struct {
	Cron *cron.Cron

	job Job
	log *logger.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	runs    int
}

// New parses spec and registers job. The scheduler is idle until Start.
func New(spec string, job Job, log *logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.Nop()
	}
	s := &Scheduler{
		Cron: cron.New(cron.WithSeconds()),
		job:  job,
		log:  log,
	}
	if _, err := s.Cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("register grid job %q: %w", spec, err)
	}
	return s, nil
}

// Start starts the cron loop. Jobs receive a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	s.Cron.Start()
	s.log.Info("scheduler started")
}

// Stop cancels a job in flight and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	<-s.Cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunNow executes the job immediately, e.g. on start-up.
func (s *Scheduler) RunNow() { s.tick() }

// Runs reports how many job executions have completed.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("previous grid run still in progress, skipping tick")
		return
	}
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.runs++
		s.mu.Unlock()
	}()

	s.log.Info("scheduled grid run starting")
	if err := s.job(ctx); err != nil {
		s.log.Error("scheduled grid run failed", logger.Error(err))
		return
	}
	s.log.Info("scheduled grid run finished")
}
