package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/careerforge/console/pkg/logger"
)

// EvaluationRetentionJobName is the scheduler key of the purge job
const EvaluationRetentionJobName = "evaluation_retention"

// EvaluationPurger deletes evaluation history older than a cutoff
type EvaluationPurger interface {
	PurgeEvaluations(ctx context.Context, before time.Time) (int64, error)
}

// EvaluationRetentionJob trims old evaluation history
type EvaluationRetentionJob struct {
	store     EvaluationPurger
	retention time.Duration
	schedule  string
	logger    *logger.Logger
	now       func() time.Time
}

// NewEvaluationRetentionJob creates a new retention job
func NewEvaluationRetentionJob(store EvaluationPurger, retention time.Duration, schedule string, log *logger.Logger) *EvaluationRetentionJob {
	return &EvaluationRetentionJob{
		store:     store,
		retention: retention,
		schedule:  schedule,
		logger:    log.Component("job_" + EvaluationRetentionJobName),
		now:       time.Now,
	}
}

// Name returns the job name
func (j *EvaluationRetentionJob) Name() string {
	return EvaluationRetentionJobName
}

// Schedule returns the cron schedule
func (j *EvaluationRetentionJob) Schedule() string {
	return j.schedule
}

// Run deletes evaluations older than the retention window
func (j *EvaluationRetentionJob) Run(ctx context.Context) error {
	if j.retention <= 0 {
		j.logger.Debug("Retention disabled, nothing to purge")
		return nil
	}

	cutoff := j.now().Add(-j.retention)

	removed, err := j.store.PurgeEvaluations(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge evaluations: %w", err)
	}

	if removed > 0 {
		j.logger.WithFields(map[string]interface{}{
			"removed": removed,
			"cutoff":  cutoff,
		}).Info("Evaluation history purged")
	}

	return nil
}
