package abtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/careerforge/console/internal/contracts"
	"github.com/careerforge/console/pkg/config"
	"github.com/careerforge/console/pkg/logger"
	"github.com/careerforge/console/pkg/metrics"
	"github.com/careerforge/console/pkg/redis"
)

// ErrEvaluationInProgress is returned when another writer holds the test lock
var ErrEvaluationInProgress = errors.New("evaluation already in progress")

// Locker serialises writers per test
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// Cache keeps the latest evaluation per test
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Notifier is told about every recorded evaluation
type Notifier interface {
	Notify(ctx context.Context, record *contracts.EvaluationRecord) error
}

// RunnerConfig holds the evaluation cycle knobs
type RunnerConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
	LockTTL    time.Duration
	CacheTTL   time.Duration
}

// NewRunnerConfig maps the environment config onto runner settings
func NewRunnerConfig(cfg config.ABTestConfig) RunnerConfig {
	return RunnerConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		LockTTL:    cfg.LockTTL,
		CacheTTL:   cfg.CacheTTL,
	}
}

// Options controls a single evaluation run
type Options struct {
	Trigger contracts.Trigger
	DryRun  bool // decide only, write nothing
}

// RunSummary aggregates one pass over every test
type RunSummary struct {
	RunID     string            `json:"run_id"`
	Trigger   contracts.Trigger `json:"trigger"`
	DryRun    bool              `json:"dry_run"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`

	Total            int `json:"total"`
	Winners          int `json:"winners"`
	Inconclusive     int `json:"inconclusive"`
	InsufficientData int `json:"insufficient_data"`
	SingleVariant    int `json:"single_variant"`
	InProgress       int `json:"in_progress"` // lock held elsewhere

	Failed  map[string]string             `json:"failed,omitempty"`
	Records []*contracts.EvaluationRecord `json:"records"`
}

// Runner drives the fetch-evaluate-write cycle
// ⭐ SSOT: 평가 사이클(조회 → 선택 → 기록 → 캐시 → 알림)은 여기서만
type Runner struct {
	store    contracts.ABTestRepository
	locker   Locker
	cache    Cache
	notifier Notifier
	cfg      RunnerConfig
	logger   *logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a new evaluation runner
func NewRunner(
	store contracts.ABTestRepository,
	locker Locker,
	cache Cache,
	notifier Notifier,
	cfg RunnerConfig,
	log *logger.Logger,
) *Runner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}

	return &Runner{
		store:    store,
		locker:   locker,
		cache:    cache,
		notifier: notifier,
		cfg:      cfg,
		logger:   log.Component("abtest_runner"),
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// EvaluateTest runs one cycle for a single test
func (r *Runner) EvaluateTest(ctx context.Context, testName string, opts Options) (*contracts.EvaluationRecord, error) {
	start := r.now()
	log := r.logger.WithTest(testName).WithField("trigger", opts.Trigger)

	if !opts.DryRun {
		release, err := r.locker.Acquire(ctx, redis.TestLockKey(testName), r.cfg.LockTTL)
		if errors.Is(err, redis.ErrLockHeld) {
			log.Info("Evaluation skipped, lock held by another writer")
			return nil, ErrEvaluationInProgress
		}
		if err != nil {
			return nil, fmt.Errorf("acquire lock for %s: %w", testName, err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.WithError(err).Warn("Failed to release evaluation lock")
			}
		}()
	}

	var previousWinner string
	if !opts.DryRun {
		previousWinner = r.currentWinner(ctx, testName)
	}

	// One ID for all attempts so a retried write stays idempotent
	recordID := uuid.NewString()

	var record *contracts.EvaluationRecord
	var err error
	delay := r.cfg.RetryDelay

	for attempt := 0; ; attempt++ {
		record, err = r.cycle(ctx, testName, recordID, opts)
		if err == nil || !isRetryable(ctx, err) || attempt >= r.cfg.MaxRetries {
			break
		}

		log.WithFields(map[string]interface{}{
			"attempt": attempt + 1,
			"delay":   delay,
			"error":   err.Error(),
		}).Warn("Evaluation cycle failed, retrying")

		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			err = sleepErr
			break
		}
		delay *= 2
	}

	took := r.now().Sub(start)

	if err != nil {
		metrics.ObserveFailure(string(opts.Trigger), took)
		log.WithError(err).Error("Evaluation failed")
		return nil, fmt.Errorf("evaluate %s: %w", testName, err)
	}

	metrics.ObserveEvaluation(string(record.Reason), string(opts.Trigger),
		len(record.Deactivated), len(record.SkippedOverride), took)

	for _, id := range record.SkippedOverride {
		log.WithField("variant_id", id).Info("Losing variant kept active by manual override")
	}

	log.WithFields(map[string]interface{}{
		"reason":      record.Reason,
		"winner_id":   record.WinnerID,
		"deactivated": len(record.Deactivated),
		"dry_run":     opts.DryRun,
		"duration":    took,
	}).Info("Evaluation completed")

	if opts.DryRun {
		return record, nil
	}

	if err := r.cache.Set(ctx, redis.LatestEvaluationKey(testName), record, r.cfg.CacheTTL); err != nil {
		log.WithError(err).Warn("Failed to cache evaluation")
	}

	if record.Reason == contracts.ReasonWinnerSelected && record.WinnerID == previousWinner {
		log.WithField("winner_id", record.WinnerID).Debug("Winner unchanged, notification skipped")
		return record, nil
	}

	if err := r.notifier.Notify(ctx, record); err != nil {
		log.WithError(err).Warn("Failed to notify evaluation")
	}

	return record, nil
}

// currentWinner is the winner of the latest recorded evaluation, if any
func (r *Runner) currentWinner(ctx context.Context, testName string) string {
	latest, err := r.LatestEvaluation(ctx, testName)
	if err != nil {
		r.logger.WithTest(testName).WithError(err).Warn("Failed to read previous evaluation")
		return ""
	}
	if latest == nil || latest.Reason != contracts.ReasonWinnerSelected {
		return ""
	}
	return latest.WinnerID
}

// cycle is one fetch-evaluate-write attempt
func (r *Runner) cycle(ctx context.Context, testName, recordID string, opts Options) (*contracts.EvaluationRecord, error) {
	variants, err := r.store.LoadVariants(ctx, testName)
	if err != nil {
		return nil, err
	}

	result, err := SelectAndReallocate(testName, variants)
	if err != nil {
		return nil, err
	}

	record := contracts.NewEvaluationRecord(recordID, result, opts.Trigger, r.now().UTC())
	record.DryRun = opts.DryRun

	if opts.DryRun {
		return record, nil
	}

	if err := r.store.RecordEvaluation(ctx, record, result.Updates); err != nil {
		return nil, err
	}

	return record, nil
}

// RunAll evaluates every known test with bounded parallelism.
// A failing test is reported in the summary and never stops the others;
// only failing to list tests is returned as an error.
func (r *Runner) RunAll(ctx context.Context, opts Options) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:     uuid.NewString(),
		Trigger:   opts.Trigger,
		DryRun:    opts.DryRun,
		StartedAt: r.now(),
		Failed:    make(map[string]string),
		Records:   make([]*contracts.EvaluationRecord, 0),
	}

	log := r.logger.WithField("run_id", summary.RunID)

	names, err := r.store.ListTestNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	summary.Total = len(names)

	log.WithFields(map[string]interface{}{
		"tests":   len(names),
		"workers": r.cfg.Workers,
		"trigger": opts.Trigger,
	}).Info("Evaluation run started")

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)

	for _, name := range names {
		g.Go(func() error {
			record, err := r.EvaluateTest(ctx, name, opts)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case errors.Is(err, ErrEvaluationInProgress):
				summary.InProgress++
			case err != nil:
				summary.Failed[name] = err.Error()
			default:
				summary.Records = append(summary.Records, record)
				summary.count(record.Reason)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(summary.Records, func(i, j int) bool {
		return summary.Records[i].TestName < summary.Records[j].TestName
	})
	summary.Duration = r.now().Sub(summary.StartedAt)

	log.WithFields(map[string]interface{}{
		"winners":      summary.Winners,
		"inconclusive": summary.Inconclusive,
		"failed":       len(summary.Failed),
		"in_progress":  summary.InProgress,
		"duration":     summary.Duration,
	}).Info("Evaluation run finished")

	return summary, nil
}

func (s *RunSummary) count(reason contracts.SelectionReason) {
	switch reason {
	case contracts.ReasonWinnerSelected:
		s.Winners++
	case contracts.ReasonInconclusive:
		s.Inconclusive++
	case contracts.ReasonInsufficientData:
		s.InsufficientData++
	case contracts.ReasonSingleVariant:
		s.SingleVariant++
	}
}

// Tests lists every known test name
func (r *Runner) Tests(ctx context.Context) ([]string, error) {
	return r.store.ListTestNames(ctx)
}

// Variants returns the current snapshot of a test
func (r *Runner) Variants(ctx context.Context, testName string) ([]contracts.VariantPerformance, error) {
	return r.store.LoadVariants(ctx, testName)
}

// LatestEvaluation returns the newest recorded evaluation, or nil if none exists
func (r *Runner) LatestEvaluation(ctx context.Context, testName string) (*contracts.EvaluationRecord, error) {
	var cached contracts.EvaluationRecord
	found, err := r.cache.Get(ctx, redis.LatestEvaluationKey(testName), &cached)
	if err != nil {
		r.logger.WithTest(testName).WithError(err).Warn("Cache read failed, falling back to store")
	}
	if found {
		return &cached, nil
	}

	records, err := r.store.ListEvaluations(ctx, testName, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// History returns up to limit evaluations, newest first
func (r *Runner) History(ctx context.Context, testName string, limit int) ([]contracts.EvaluationRecord, error) {
	return r.store.ListEvaluations(ctx, testName, limit)
}

// SetOverride toggles the manual override flag of one variant
func (r *Runner) SetOverride(ctx context.Context, testName, variantID string, active bool) error {
	if err := r.store.SetManualOverride(ctx, testName, variantID, active); err != nil {
		return err
	}

	// the cached verdict predates the override
	if err := r.cache.Delete(ctx, redis.LatestEvaluationKey(testName)); err != nil {
		r.logger.WithTest(testName).WithError(err).Warn("Failed to drop cached evaluation")
	}

	r.logger.WithTest(testName).WithFields(map[string]interface{}{
		"variant_id": variantID,
		"active":     active,
	}).Info("Manual override updated")

	return nil
}

// isRetryable reports whether another attempt could succeed.
// Bad data and unknown tests fail the same way every time.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, contracts.ErrInvalidInput) && !errors.Is(err, contracts.ErrTestNotFound)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, *contracts.EvaluationRecord) error { return nil }
