package contracts

import (
	"context"
	"time"
)

// ABTestRepository reads variant counters and persists evaluation decisions
// ⭐ SSOT: A/B 테스트 저장소 인터페이스
type ABTestRepository interface {
	ListTestNames(ctx context.Context) ([]string, error)
	LoadVariants(ctx context.Context, testName string) ([]VariantPerformance, error)

	// RecordEvaluation stores the record and applies updates atomically
	RecordEvaluation(ctx context.Context, record *EvaluationRecord, updates []VariantUpdate) error
	ListEvaluations(ctx context.Context, testName string, limit int) ([]EvaluationRecord, error)
	PurgeEvaluations(ctx context.Context, before time.Time) (int64, error)

	SetManualOverride(ctx context.Context, testName, variantID string, active bool) error
}
