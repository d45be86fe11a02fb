package abtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careerforge/console/internal/contracts"
	"github.com/careerforge/console/pkg/database"
)

// Repository handles A/B test persistence
// ⭐ SSOT: campaign.ab_variants / ab_evaluations 접근은 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

var _ contracts.ABTestRepository = (*Repository)(nil)

// NewRepository creates a new A/B test repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListTestNames returns every test that has at least one variant
func (r *Repository) ListTestNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT test_name
		FROM campaign.ab_variants
		ORDER BY test_name
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query test names: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan test name: %w", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

// LoadVariants returns the current counters of a test ordered by variant_id
func (r *Repository) LoadVariants(ctx context.Context, testName string) ([]contracts.VariantPerformance, error) {
	query := `
		SELECT variant_id, variant_label, test_name,
		       sends_count, opens_count, clicks_count,
		       manual_override_active, traffic_weight, is_active, updated_at
		FROM campaign.ab_variants
		WHERE test_name = $1
		ORDER BY variant_id
	`

	rows, err := r.pool.Query(ctx, query, testName)
	if err != nil {
		return nil, fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()

	variants := make([]contracts.VariantPerformance, 0)
	for rows.Next() {
		var v contracts.VariantPerformance
		err := rows.Scan(
			&v.VariantID, &v.VariantLabel, &v.TestName,
			&v.SendsCount, &v.OpensCount, &v.ClicksCount,
			&v.ManualOverrideActive, &v.TrafficWeight, &v.IsActive, &v.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate variants: %w", err)
	}

	if len(variants) == 0 {
		return nil, fmt.Errorf("%w: %s", contracts.ErrTestNotFound, testName)
	}

	return variants, nil
}

// RecordEvaluation stores the evaluation row and applies the variant
// updates in one transaction
func (r *Repository) RecordEvaluation(ctx context.Context, record *contracts.EvaluationRecord, updates []contracts.VariantUpdate) error {
	deactivatedJSON, err := json.Marshal(record.Deactivated)
	if err != nil {
		return fmt.Errorf("failed to marshal deactivated: %w", err)
	}
	skippedJSON, err := json.Marshal(record.SkippedOverride)
	if err != nil {
		return fmt.Errorf("failed to marshal skipped overrides: %w", err)
	}

	var zScore, pValue *float64
	significant := false
	if record.Verdict != nil {
		zScore, pValue = &record.Verdict.ZScore, &record.Verdict.PValue
		significant = record.Verdict.Significant
	}

	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, u := range updates {
			tag, err := tx.Exec(ctx, `
				UPDATE campaign.ab_variants
				SET is_active = $3, traffic_weight = $4, updated_at = NOW()
				WHERE test_name = $1 AND variant_id = $2
			`, record.TestName, u.VariantID, u.IsActive, u.TrafficWeight)
			if err != nil {
				return fmt.Errorf("failed to update variant %s: %w", u.VariantID, err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("%w: %s/%s", contracts.ErrVariantNotFound, record.TestName, u.VariantID)
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO campaign.ab_evaluations (
				id, test_name, evaluated_at, reason, leader_id, winner_id, runner_up_id,
				z_score, p_value, significant, deactivated, skipped_override, trigger
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (id) DO NOTHING
		`,
			record.ID, record.TestName, record.EvaluatedAt, string(record.Reason),
			record.LeaderID, record.WinnerID, record.RunnerUpID, zScore, pValue, significant,
			deactivatedJSON, skippedJSON, string(record.Trigger),
		)
		if err != nil {
			return fmt.Errorf("failed to insert evaluation: %w", err)
		}

		return nil
	})
}

// ListEvaluations returns the newest evaluations of a test first
func (r *Repository) ListEvaluations(ctx context.Context, testName string, limit int) ([]contracts.EvaluationRecord, error) {
	query := `
		SELECT id::text, test_name, evaluated_at, reason, leader_id, winner_id, runner_up_id,
		       z_score, p_value, significant, deactivated, skipped_override, trigger
		FROM campaign.ab_evaluations
		WHERE test_name = $1
		ORDER BY evaluated_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, testName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	records := make([]contracts.EvaluationRecord, 0)
	for rows.Next() {
		var (
			rec                          contracts.EvaluationRecord
			reason, trigger              string
			zScore, pValue               *float64
			significant                  bool
			deactivatedJSON, skippedJSON []byte
		)

		err := rows.Scan(
			&rec.ID, &rec.TestName, &rec.EvaluatedAt, &reason, &rec.LeaderID, &rec.WinnerID, &rec.RunnerUpID,
			&zScore, &pValue, &significant, &deactivatedJSON, &skippedJSON, &trigger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}

		rec.Reason = contracts.SelectionReason(reason)
		rec.Trigger = contracts.Trigger(trigger)
		if zScore != nil && pValue != nil {
			rec.Verdict = &contracts.SignificanceVerdict{ZScore: *zScore, PValue: *pValue, Significant: significant}
		}

		if err := json.Unmarshal(deactivatedJSON, &rec.Deactivated); err != nil {
			return nil, fmt.Errorf("failed to unmarshal deactivated: %w", err)
		}
		if err := json.Unmarshal(skippedJSON, &rec.SkippedOverride); err != nil {
			return nil, fmt.Errorf("failed to unmarshal skipped overrides: %w", err)
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}

// PurgeEvaluations deletes evaluation rows older than before
func (r *Repository) PurgeEvaluations(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM campaign.ab_evaluations WHERE evaluated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge evaluations: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SetManualOverride pins or unpins a variant
func (r *Repository) SetManualOverride(ctx context.Context, testName, variantID string, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaign.ab_variants
		SET manual_override_active = $3, updated_at = NOW()
		WHERE test_name = $1 AND variant_id = $2
	`, testName, variantID, active)
	if err != nil {
		return fmt.Errorf("failed to set manual override: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s/%s", contracts.ErrVariantNotFound, testName, variantID)
	}
	return nil
}

// UpsertVariants inserts catalog variants in one transaction.
// Existing rows keep their counters and state unless reset is set. A
// variant ID owned by another test is left untouched.
func (r *Repository) UpsertVariants(ctx context.Context, variants []contracts.VariantPerformance, reset bool) (int64, error) {
	conflict := `ON CONFLICT (variant_id) DO UPDATE SET variant_label = EXCLUDED.variant_label, updated_at = NOW()
		WHERE campaign.ab_variants.test_name = EXCLUDED.test_name`
	if reset {
		conflict = `ON CONFLICT (variant_id) DO UPDATE SET
			variant_label = EXCLUDED.variant_label,
			sends_count = EXCLUDED.sends_count,
			opens_count = EXCLUDED.opens_count,
			clicks_count = EXCLUDED.clicks_count,
			manual_override_active = EXCLUDED.manual_override_active,
			traffic_weight = EXCLUDED.traffic_weight,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
		WHERE campaign.ab_variants.test_name = EXCLUDED.test_name`
	}

	query := `
		INSERT INTO campaign.ab_variants (
			variant_id, test_name, variant_label,
			sends_count, opens_count, clicks_count,
			manual_override_active, traffic_weight, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	` + conflict

	var written int64
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, v := range variants {
			batch.Queue(query,
				v.VariantID, v.TestName, v.VariantLabel,
				v.SendsCount, v.OpensCount, v.ClicksCount,
				v.ManualOverrideActive, v.TrafficWeight, v.IsActive,
			)
		}

		results := tx.SendBatch(ctx, batch)
		for _, v := range variants {
			tag, err := results.Exec()
			if err != nil {
				results.Close()
				return fmt.Errorf("failed to upsert variant %s: %w", v.VariantID, err)
			}
			written += tag.RowsAffected()
		}
		return results.Close()
	})
	if err != nil {
		return 0, err
	}

	return written, nil
}

// IsNotFound reports whether err means the test or variant does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, contracts.ErrTestNotFound) || errors.Is(err, contracts.ErrVariantNotFound)
}
