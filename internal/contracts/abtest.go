package contracts

import (
	"fmt"
	"time"
)

// VariantPerformance is a read-only snapshot of one A/B test variant
// ⭐ SSOT: 캠페인 A/B 테스트 변형(variant) 스냅샷
type VariantPerformance struct {
	VariantID    string `json:"variant_id"`
	VariantLabel string `json:"variant_label"` // "A", "B", ...
	TestName     string `json:"test_name"`

	SendsCount  int64 `json:"sends_count"`
	OpensCount  int64 `json:"opens_count"`
	ClicksCount int64 `json:"clicks_count"`

	ManualOverrideActive bool      `json:"manual_override_active"`
	TrafficWeight        int       `json:"traffic_weight"` // 0-100
	IsActive             bool      `json:"is_active"`
	UpdatedAt            time.Time `json:"updated_at,omitempty"`
}

// OpenRate returns opens/sends as a percentage.
// ok is false when nothing was sent; the rate is undefined, not zero.
func (v VariantPerformance) OpenRate() (rate float64, ok bool) {
	if v.SendsCount == 0 {
		return 0, false
	}
	return float64(v.OpensCount) / float64(v.SendsCount) * 100, true
}

// ClickRate returns clicks/sends as a percentage, undefined when sends is zero
func (v VariantPerformance) ClickRate() (rate float64, ok bool) {
	if v.SendsCount == 0 {
		return 0, false
	}
	return float64(v.ClicksCount) / float64(v.SendsCount) * 100, true
}

// openFraction is the raw proportion used for ranking
func (v VariantPerformance) openFraction() (float64, bool) {
	if v.SendsCount == 0 {
		return 0, false
	}
	return float64(v.OpensCount) / float64(v.SendsCount), true
}

// RanksAbove reports whether v sorts before other by open rate.
// Undefined rates sort last; ties fall back to ascending VariantID.
func (v VariantPerformance) RanksAbove(other VariantPerformance) bool {
	rv, okV := v.openFraction()
	ro, okO := other.openFraction()

	if okV != okO {
		return okV
	}
	if okV && rv != ro {
		return rv > ro
	}
	return v.VariantID < other.VariantID
}

// Validate checks the counter invariants.
// Violations mean upstream corruption and are never clamped.
func (v VariantPerformance) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return &InvalidInputError{
			TestName:  v.TestName,
			VariantID: v.VariantID,
			Reason:    fmt.Sprintf(format, args...),
		}
	}

	switch {
	case v.VariantID == "":
		return invalid("variant_id is empty")
	case v.SendsCount < 0 || v.OpensCount < 0 || v.ClicksCount < 0:
		return invalid("negative counter (sends=%d opens=%d clicks=%d)", v.SendsCount, v.OpensCount, v.ClicksCount)
	case v.OpensCount > v.SendsCount:
		return invalid("opens_count %d exceeds sends_count %d", v.OpensCount, v.SendsCount)
	case v.ClicksCount > v.SendsCount:
		return invalid("clicks_count %d exceeds sends_count %d", v.ClicksCount, v.SendsCount)
	case v.TrafficWeight < 0 || v.TrafficWeight > 100:
		return invalid("traffic_weight %d outside 0-100", v.TrafficWeight)
	}

	return nil
}

// SignificanceVerdict is the outcome of a two-proportion z-test on open rate
type SignificanceVerdict struct {
	ZScore      float64 `json:"z_score"`     // >= 0
	PValue      float64 `json:"p_value"`     // [0, 1]
	Significant bool    `json:"significant"` // p_value < 0.05
}

// SelectionReason explains why a selection did or did not reallocate traffic
type SelectionReason string

const (
	ReasonWinnerSelected   SelectionReason = "winner_selected"
	ReasonInconclusive     SelectionReason = "inconclusive"      // z-test says no difference yet
	ReasonInsufficientData SelectionReason = "insufficient_data" // leader or runner-up has zero sends
	ReasonSingleVariant    SelectionReason = "single_variant"    // fewer than two variants
)

// VariantUpdate is one write the storage layer must apply
type VariantUpdate struct {
	VariantID     string `json:"variant_id"`
	IsActive      bool   `json:"is_active"`
	TrafficWeight int    `json:"traffic_weight"`
}

// SelectionResult is the winner selector's decision for one test snapshot
type SelectionResult struct {
	TestName   string               `json:"test_name"`
	LeaderID   string               `json:"leader_id,omitempty"`    // best open rate
	RunnerUpID string               `json:"runner_up_id,omitempty"` // second best
	WinnerID   string               `json:"winner_id,omitempty"`    // set only when significant
	Verdict    *SignificanceVerdict `json:"verdict,omitempty"`
	Reason     SelectionReason      `json:"reason"`

	Deactivated     []string        `json:"deactivated"`
	SkippedOverride []string        `json:"skipped_override"`
	Updates         []VariantUpdate `json:"updates"`
}

// HasReallocation reports whether the decision changes any variant
func (r *SelectionResult) HasReallocation() bool {
	return len(r.Updates) > 0
}

// Trigger records what started an evaluation
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
	TriggerCLI       Trigger = "cli"
)

// EvaluationRecord is one persisted run of the selector over a test
type EvaluationRecord struct {
	ID          string    `json:"id"`
	TestName    string    `json:"test_name"`
	EvaluatedAt time.Time `json:"evaluated_at"`
	Trigger     Trigger   `json:"trigger"`
	DryRun      bool      `json:"dry_run,omitempty"`

	Reason          SelectionReason      `json:"reason"`
	LeaderID        string               `json:"leader_id,omitempty"`
	RunnerUpID      string               `json:"runner_up_id,omitempty"`
	WinnerID        string               `json:"winner_id,omitempty"`
	Verdict         *SignificanceVerdict `json:"verdict,omitempty"`
	Deactivated     []string             `json:"deactivated"`
	SkippedOverride []string             `json:"skipped_override"`
}

// NewEvaluationRecord copies a selection result into a record
func NewEvaluationRecord(id string, result *SelectionResult, trigger Trigger, at time.Time) *EvaluationRecord {
	return &EvaluationRecord{
		ID:              id,
		TestName:        result.TestName,
		EvaluatedAt:     at,
		Trigger:         trigger,
		Reason:          result.Reason,
		LeaderID:        result.LeaderID,
		RunnerUpID:      result.RunnerUpID,
		WinnerID:        result.WinnerID,
		Verdict:         result.Verdict,
		Deactivated:     append([]string{}, result.Deactivated...),
		SkippedOverride: append([]string{}, result.SkippedOverride...),
	}
}

// Status renders the record the way the dashboard shows it
func (r *EvaluationRecord) Status() string {
	switch r.Reason {
	case ReasonWinnerSelected:
		return fmt.Sprintf("winner %s (p=%.4f, z=%.3f)", r.WinnerID, r.Verdict.PValue, r.Verdict.ZScore)
	case ReasonInconclusive:
		return fmt.Sprintf("not yet significant (p=%.4f, z=%.3f)", r.Verdict.PValue, r.Verdict.ZScore)
	case ReasonInsufficientData:
		return "insufficient data"
	case ReasonSingleVariant:
		return "single variant, nothing to compare"
	default:
		return string(r.Reason)
	}
}
