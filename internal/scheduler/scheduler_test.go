package scheduler

import (
	"context"
	"github.com/PayRam/go-fundraising/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync/atomic"
	"testing"
	"time"
)

type countingWorker struct {
	syncs int32
}

func (w *countingWorker) SyncProgress(context.Context) (service.JobResult, error) {
	atomic.AddInt32(&w.syncs, 1)
	return service.JobResult{Job: service.JobProgressSync}, nil
}

func (w *countingWorker) SweepExpired(context.Context) (service.JobResult, error) {
	return service.JobResult{Job: service.JobExpirationSweep}, nil
}

func (w *countingWorker) SendExpirationReminders(context.Context) (service.JobResult, error) {
	return service.JobResult{Job: service.JobExpirationReminders}, nil
}

func (w *countingWorker) SendWeeklyReports(context.Context) (service.JobResult, error) {
	return service.JobResult{Job: service.JobWeeklyReport}, nil
}

func (w *countingWorker) SendMonthlyReports(context.Context) (service.JobResult, error) {
	return service.JobResult{Job: service.JobMonthlyReport}, nil
}

func TestNewRegistersEveryJob(t *testing.T) {
	s, err := New(&countingWorker{}, DefaultSpecs(), time.UTC, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, s.Entries())
}

func TestNewRejectsInvalidSpec(t *testing.T) {
	specs := DefaultSpecs()
	specs.WeeklyReport = "every monday"
	_, err := New(&countingWorker{}, specs, time.UTC, nil)
	assert.Error(t, err)
}

func TestEmptySpecDisablesJob(t *testing.T) {
	specs := DefaultSpecs()
	specs.MonthlyReport = ""
	s, err := New(&countingWorker{}, specs, time.UTC, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Entries())
}

func TestJobsDispatchToWorker(t *testing.T) {
	w := &countingWorker{}
	jobs := Jobs(w)
	require.Len(t, jobs, len(JobNames()))

	for _, name := range JobNames() {
		result, err := jobs[name](context.Background())
		require.NoError(t, err)
		assert.Equal(t, name, result.Job)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&w.syncs))
}

func TestSchedulerRunsAndStops(t *testing.T) {
	w := &countingWorker{}
	specs := Specs{ProgressSync: "@every 1s"}
	s, err := New(w, specs, time.UTC, nil)
	require.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&w.syncs) > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
