package jobs

import (
	"context"
	"fmt"

	"github.com/careerforge/console/internal/abtest"
	"github.com/careerforge/console/internal/contracts"
	"github.com/careerforge/console/pkg/logger"
)

// ABTestEvaluationJobName is the scheduler key of the evaluation job
const ABTestEvaluationJobName = "abtest_evaluation"

// EvaluationRunner runs one pass over every A/B test
type EvaluationRunner interface {
	RunAll(ctx context.Context, opts abtest.Options) (*abtest.RunSummary, error)
}

// ABTestEvaluationJob picks winners for every running campaign test
type ABTestEvaluationJob struct {
	runner   EvaluationRunner
	schedule string
	logger   *logger.Logger
}

// NewABTestEvaluationJob creates a new evaluation job
func NewABTestEvaluationJob(runner EvaluationRunner, schedule string, log *logger.Logger) *ABTestEvaluationJob {
	return &ABTestEvaluationJob{
		runner:   runner,
		schedule: schedule,
		logger:   log.Component("job_" + ABTestEvaluationJobName),
	}
}

// Name returns the job name
func (j *ABTestEvaluationJob) Name() string {
	return ABTestEvaluationJobName
}

// Schedule returns the cron schedule (daily by default)
func (j *ABTestEvaluationJob) Schedule() string {
	return j.schedule
}

// Run executes one evaluation pass.
// Per-test failures are retried by the runner and only logged here.
func (j *ABTestEvaluationJob) Run(ctx context.Context) error {
	summary, err := j.runner.RunAll(ctx, abtest.Options{Trigger: contracts.TriggerScheduled})
	if err != nil {
		return fmt.Errorf("evaluation pass failed: %w", err)
	}

	for name, reason := range summary.Failed {
		j.logger.WithFields(map[string]interface{}{
			"run_id":    summary.RunID,
			"test_name": name,
			"error":     reason,
		}).Error("Test evaluation failed for this cycle")
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":  summary.RunID,
		"tests":   summary.Total,
		"winners": summary.Winners,
		"failed":  len(summary.Failed),
	}).Info("Scheduled evaluation finished")

	return nil
}
