package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careerforge/console/internal/abtest"
	"github.com/careerforge/console/internal/contracts"
	"github.com/careerforge/console/pkg/logger"
)

type stubRunner struct {
	opts    abtest.Options
	summary *abtest.RunSummary
	err     error
}

func (r *stubRunner) RunAll(ctx context.Context, opts abtest.Options) (*abtest.RunSummary, error) {
	r.opts = opts
	return r.summary, r.err
}

func TestABTestEvaluationJob(t *testing.T) {
	runner := &stubRunner{summary: &abtest.RunSummary{
		RunID:   "run-1",
		Total:   2,
		Winners: 1,
		Failed:  map[string]string{"voucher-subject": "invalid input"},
	}}
	job := NewABTestEvaluationJob(runner, "0 0 3 * * *", logger.Nop())

	assert.Equal(t, ABTestEvaluationJobName, job.Name())
	assert.Equal(t, "0 0 3 * * *", job.Schedule())

	// Partial failures do not fail the job
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, contracts.TriggerScheduled, runner.opts.Trigger)
	assert.False(t, runner.opts.DryRun)
}

func TestABTestEvaluationJob_ListFailure(t *testing.T) {
	runner := &stubRunner{err: errors.New("connection refused")}
	job := NewABTestEvaluationJob(runner, "@daily", logger.Nop())

	err := job.Run(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

type stubPurger struct {
	before  time.Time
	removed int64
	err     error
}

func (p *stubPurger) PurgeEvaluations(ctx context.Context, before time.Time) (int64, error) {
	p.before = before
	return p.removed, p.err
}

func TestEvaluationRetentionJob(t *testing.T) {
	purger := &stubPurger{removed: 12}
	job := NewEvaluationRetentionJob(purger, 90*24*time.Hour, "0 30 4 * * *", logger.Nop())
	now := time.Date(2026, 10, 19, 4, 30, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	assert.Equal(t, EvaluationRetentionJobName, job.Name())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.Add(-90*24*time.Hour), purger.before)
}

func TestEvaluationRetentionJob_Disabled(t *testing.T) {
	purger := &stubPurger{}
	job := NewEvaluationRetentionJob(purger, 0, "@daily", logger.Nop())

	require.NoError(t, job.Run(context.Background()))
	assert.True(t, purger.before.IsZero())
}

func TestEvaluationRetentionJob_Error(t *testing.T) {
	purger := &stubPurger{err: errors.New("timeout")}
	job := NewEvaluationRetentionJob(purger, time.Hour, "@daily", logger.Nop())

	assert.ErrorContains(t, job.Run(context.Background()), "timeout")
}
