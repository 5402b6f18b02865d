package scheduler

import (
	"context"
	"fmt"
	"github.com/PayRam/go-fundraising/service"
	"github.com/robfig/cron/v3"
	"log"
	"time"
)

// Job is one reconciliation job as registered with the scheduler.
type Job func(ctx context.Context) (service.JobResult, error)

type Specs struct {
	ProgressSync        string
	ExpirationSweep     string
	ExpirationReminders string
	WeeklyReport        string
	MonthlyReport       string
}

func DefaultSpecs() Specs {
	return Specs{
		ProgressSync:        "@every 15m",
		ExpirationSweep:     "@hourly",
		ExpirationReminders: "0 9 * * *",
		WeeklyReport:        "0 9 * * 1",
		MonthlyReport:       "0 9 1 * *",
	}
}

// JobNames lists the job names in the order they are registered.
func JobNames() []string {
	return []string{
		service.JobProgressSync, service.JobExpirationSweep, service.JobExpirationReminders,
		service.JobWeeklyReport, service.JobMonthlyReport,
	}
}

// Jobs maps job names to the worker methods backing them.
func Jobs(w service.Worker) map[string]Job {
	return map[string]Job{
		service.JobProgressSync:        w.SyncProgress,
		service.JobExpirationSweep:     w.SweepExpired,
		service.JobExpirationReminders: w.SendExpirationReminders,
		service.JobWeeklyReport:        w.SendWeeklyReports,
		service.JobMonthlyReport:       w.SendMonthlyReports,
	}
}

func (s Specs) byName() map[string]string {
	return map[string]string{
		service.JobProgressSync:        s.ProgressSync,
		service.JobExpirationSweep:     s.ExpirationSweep,
		service.JobExpirationReminders: s.ExpirationReminders,
		service.JobWeeklyReport:        s.WeeklyReport,
		service.JobMonthlyReport:       s.MonthlyReport,
	}
}

type Scheduler struct {
	cron   *cron.Cron
	logger *log.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New registers every job on its spec, evaluated in loc. A run that is still going
// when its next tick fires is skipped, and a panicking run is recovered and logged.
func New(w service.Worker, specs Specs, loc *time.Location, logger *log.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = log.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	cronLogger := cron.PrintfLogger(logger)
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: c, logger: logger, ctx: ctx, cancel: cancel}

	jobs := Jobs(w)
	bySpec := specs.byName()
	for _, name := range JobNames() {
		spec := bySpec[name]
		if spec == "" {
			continue
		}
		if _, err := c.AddFunc(spec, s.run(name, jobs[name])); err != nil {
			cancel()
			return nil, fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
		}
	}
	return s, nil
}

func (s *Scheduler) run(name string, job Job) func() {
	return func() {
		started := time.Now()
		result, err := job(s.ctx)
		if err != nil {
			s.logger.Printf("job=%s failed after %s: %v", name, time.Since(started), err)
			return
		}
		s.logger.Printf("job=%s done in %s: tenants=%d processed=%d failed=%d",
			name, time.Since(started), result.Tenants, result.Processed, result.Failed)
	}
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs to return. Jobs still running when
// ctx expires have their context cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	defer s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
