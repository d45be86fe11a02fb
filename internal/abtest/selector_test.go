package abtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careerforge/console/internal/contracts"
)

func threeWay() []contracts.VariantPerformance {
	return []contracts.VariantPerformance{
		variant("A", 500, 100),
		variant("B", 500, 140),
		variant("C", 500, 95),
	}
}

func TestSelectAndReallocate_ThreeVariants(t *testing.T) {
	result, err := SelectAndReallocate("welcome-subject", threeWay())
	require.NoError(t, err)

	assert.Equal(t, contracts.ReasonWinnerSelected, result.Reason)
	assert.Equal(t, "B", result.WinnerID)
	assert.Equal(t, "B", result.LeaderID)
	assert.Equal(t, "A", result.RunnerUpID)
	require.NotNil(t, result.Verdict)
	assert.True(t, result.Verdict.Significant)

	assert.Equal(t, []string{"A", "C"}, result.Deactivated)
	assert.Empty(t, result.SkippedOverride)
	assert.Equal(t, []contracts.VariantUpdate{
		{VariantID: "B", IsActive: true, TrafficWeight: 100},
		{VariantID: "A", IsActive: false, TrafficWeight: 0},
		{VariantID: "C", IsActive: false, TrafficWeight: 0},
	}, result.Updates)
	assert.True(t, result.HasReallocation())
}

func TestSelectAndReallocate_OverrideRespected(t *testing.T) {
	variants := threeWay()
	variants[2].ManualOverrideActive = true // C pinned
	variants[0].ManualOverrideActive = true // A pinned

	result, err := SelectAndReallocate("welcome-subject", variants)
	require.NoError(t, err)

	assert.Equal(t, contracts.ReasonWinnerSelected, result.Reason)
	assert.Empty(t, result.Deactivated)
	assert.Equal(t, []string{"A", "C"}, result.SkippedOverride)
	assert.Equal(t, []contracts.VariantUpdate{
		{VariantID: "B", IsActive: true, TrafficWeight: 100},
	}, result.Updates)
}

func TestSelectAndReallocate_OverrideOnWinnerDoesNotMatter(t *testing.T) {
	variants := threeWay()
	variants[1].ManualOverrideActive = true

	result, err := SelectAndReallocate("welcome-subject", variants)
	require.NoError(t, err)

	assert.Equal(t, "B", result.WinnerID)
	assert.Equal(t, []string{"A", "C"}, result.Deactivated)
}

func TestSelectAndReallocate_ZeroSendRunnerUpAbstains(t *testing.T) {
	variants := []contracts.VariantPerformance{
		variant("A", 800, 200),
		variant("D", 0, 0),
	}

	result, err := SelectAndReallocate("welcome-subject", variants)
	require.NoError(t, err)

	assert.Equal(t, contracts.ReasonInsufficientData, result.Reason)
	assert.Equal(t, "A", result.LeaderID)
	assert.Equal(t, "D", result.RunnerUpID)
	assert.Nil(t, result.Verdict)
	assert.Empty(t, result.WinnerID)
	assert.False(t, result.HasReallocation())
}

func TestSelectAndReallocate_ZeroSendsSortLast(t *testing.T) {
	variants := []contracts.VariantPerformance{
		variant("A", 0, 0),
		variant("B", 1000, 10),
		variant("C", 1000, 300),
	}

	result, err := SelectAndReallocate("welcome-subject", variants)
	require.NoError(t, err)

	assert.Equal(t, "C", result.LeaderID)
	assert.Equal(t, "B", result.RunnerUpID)
	assert.Equal(t, contracts.ReasonWinnerSelected, result.Reason)
	assert.Equal(t, []string{"B", "A"}, result.Deactivated)
}

func TestSelectAndReallocate_Inconclusive(t *testing.T) {
	variants := []contracts.VariantPerformance{
		variant("A", 50, 10),
		variant("B", 50, 9),
	}

	result, err := SelectAndReallocate("welcome-subject", variants)
	require.NoError(t, err)

	assert.Equal(t, contracts.ReasonInconclusive, result.Reason)
	require.NotNil(t, result.Verdict)
	assert.False(t, result.Verdict.Significant)
	assert.Empty(t, result.WinnerID)
	assert.Empty(t, result.Updates)
}

func TestSelectAndReallocate_SingleVariant(t *testing.T) {
	for _, variants := range [][]contracts.VariantPerformance{
		nil,
		{variant("A", 100, 20)},
	} {
		result, err := SelectAndReallocate("welcome-subject", variants)
		require.NoError(t, err)
		assert.Equal(t, contracts.ReasonSingleVariant, result.Reason)
		assert.False(t, result.HasReallocation())
	}
}

func TestSelectAndReallocate_TieBreakByID(t *testing.T) {
	variants := []contracts.VariantPerformance{
		variant("v-b", 1000, 300),
		variant("v-a", 2000, 600),
		variant("v-c", 1000, 100),
	}

	result, err := SelectAndReallocate("welcome-subject", variants)
	require.NoError(t, err)

	assert.Equal(t, "v-a", result.LeaderID)
	assert.Equal(t, "v-b", result.RunnerUpID)
	assert.Equal(t, contracts.ReasonInconclusive, result.Reason)
}

func TestSelectAndReallocate_Idempotent(t *testing.T) {
	variants := threeWay()
	variants[2].ManualOverrideActive = true
	snapshot := append([]contracts.VariantPerformance(nil), variants...)

	first, err := SelectAndReallocate("welcome-subject", variants)
	require.NoError(t, err)
	second, err := SelectAndReallocate("welcome-subject", variants)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, variants, "input must not be mutated")
}

func TestSelectAndReallocate_InvalidInput(t *testing.T) {
	other := variant("Z", 100, 10)
	other.TestName = "voucher-q3"

	dup := threeWay()
	dup[2].VariantID = "A"

	broken := threeWay()
	broken[1].OpensCount = 501

	tests := []struct {
		name     string
		variants []contracts.VariantPerformance
	}{
		{"mixed tests", append(threeWay(), other)},
		{"duplicate ids", dup},
		{"opens exceed sends", broken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := SelectAndReallocate("welcome-subject", tt.variants)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, contracts.ErrInvalidInput)
		})
	}
}
