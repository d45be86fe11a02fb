package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careerforge/console/pkg/logger"
)

type stubJob struct {
	name     string
	schedule string

	mu    sync.Mutex
	calls int
	errs  []error // returned in order, nil afterwards
}

func (j *stubJob) Name() string     { return j.name }
func (j *stubJob) Schedule() string { return j.schedule }

func (j *stubJob) Run(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.calls++
	if len(j.errs) == 0 {
		return nil
	}
	err := j.errs[0]
	j.errs = j.errs[1:]
	return err
}

func (j *stubJob) Calls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.calls
}

func newTestScheduler() *Scheduler {
	return New(logger.Nop(), Options{MaxRetries: 2, RetryDelay: time.Millisecond})
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.AddJob(&stubJob{name: "b", schedule: "0 0 3 * * *"}))
	require.NoError(t, s.AddJob(&stubJob{name: "a", schedule: "@daily"}))

	err := s.AddJob(&stubJob{name: "a", schedule: "@daily"})
	assert.ErrorContains(t, err, "already exists")

	err = s.AddJob(&stubJob{name: "bad", schedule: "not a cron"})
	assert.Error(t, err)

	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())
}

func TestRemoveJob(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(&stubJob{name: "a", schedule: "@daily"}))

	require.NoError(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())
	assert.Empty(t, s.cron.Entries())

	assert.Error(t, s.RemoveJob("a"))
}

func TestRunJobSync_Success(t *testing.T) {
	s := newTestScheduler()
	job := &stubJob{name: "a", schedule: "@daily"}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJobSync(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, job.Calls())
}

func TestRunJobSync_RetriesThenSucceeds(t *testing.T) {
	s := newTestScheduler()
	job := &stubJob{name: "a", schedule: "@daily", errs: []error{errors.New("db down"), errors.New("db down")}}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJobSync(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, job.Calls())
}

func TestRunJobSync_FailsAfterRetries(t *testing.T) {
	s := newTestScheduler()
	boom := errors.New("boom")
	job := &stubJob{name: "a", schedule: "@daily", errs: []error{boom, boom, boom, boom}}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJobSync(context.Background(), "a")
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "boom", result.Error)
	assert.Equal(t, 3, job.Calls())

	stats := s.GetJobStats()["a"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.FailureCount)
	assert.NotNil(t, stats.LastFailure)
	assert.Nil(t, stats.LastSuccess)
}

func TestRunJobSync_CancelledContextStopsRetrying(t *testing.T) {
	s := New(logger.Nop(), Options{MaxRetries: 5, RetryDelay: time.Hour})
	job := &stubJob{name: "a", schedule: "@daily", errs: []error{errors.New("boom")}}
	require.NoError(t, s.AddJob(job))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := s.RunJobSync(ctx, "a")
	require.Error(t, err)
	assert.Equal(t, context.Canceled.Error(), result.Error)
	assert.Equal(t, 1, job.Calls())
}

func TestRunJobSync_UnknownJob(t *testing.T) {
	_, err := newTestScheduler().RunJobSync(context.Background(), "missing")
	assert.ErrorContains(t, err, "not found")
}

func TestRunJob_Async(t *testing.T) {
	s := newTestScheduler()
	job := &stubJob{name: "a", schedule: "@daily"}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("a"))
	require.Eventually(t, func() bool { return job.Calls() == 1 }, time.Second, 5*time.Millisecond)
}

func TestNextRun(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(&stubJob{name: "a", schedule: "0 0 3 * * *"}))

	s.Start()
	defer s.Stop()

	next, ok := s.NextRun("a")
	require.True(t, ok)
	assert.Equal(t, 3, next.Hour())
	assert.Equal(t, 0, next.Minute())

	_, ok = s.NextRun("missing")
	assert.False(t, ok)
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	assert.Equal(t, 0.0, h.GetSuccessRate())
	assert.Empty(t, h.GetLatestResults(5))

	for i := 0; i < maxHistory+20; i++ {
		h.AddResult(JobResult{JobName: "a", Success: i%4 != 0})
	}

	assert.Len(t, h.Results, maxHistory)
	assert.Len(t, h.GetLatestResults(10), 10)
	assert.Len(t, h.GetFailedResults(), maxHistory/4)
	assert.InDelta(t, 0.75, h.GetSuccessRate(), 1e-9)
}
