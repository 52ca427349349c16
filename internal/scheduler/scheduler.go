package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a periodic task.
type Job func(ctx context.Context) error

// Scheduler runs named jobs on cron specs.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger
}

func New(log *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}
}

// Add registers job under spec, e.g. "@every 5m" or "0 3 * * *".
func (s *Scheduler) Add(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	start := time.Now()
	if err := job(s.ctx); err != nil {
		s.log.Error("scheduled job failed", "job", name, "error", err)
		return
	}
	s.log.Debug("scheduled job done", "job", name, "duration", time.Since(start))
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop waits for running jobs and cancels their context.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
	s.log.Info("scheduler stopped")
}
