package abtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careerforge/console/internal/contracts"
)

func variant(id string, sends, opens int64) contracts.VariantPerformance {
	return contracts.VariantPerformance{
		VariantID:    id,
		VariantLabel: id,
		TestName:     "welcome-subject",
		SendsCount:   sends,
		OpensCount:   opens,
		IsActive:     true,
	}
}

func TestNormalCDF(t *testing.T) {
	tests := []struct {
		x    float64
		want float64
	}{
		{0, 0.5},
		{1, 0.8413447},
		{1.96, 0.9750021},
		{-1.96, 0.0249978},
		{3, 0.9986500},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, NormalCDF(tt.x), 1e-6, "Φ(%v)", tt.x)
	}
}

func TestNormalCDF_AgreesWithErf(t *testing.T) {
	for x := -4.0; x <= 4.0; x += 0.25 {
		exact := 0.5 * (1 + math.Erf(x/math.Sqrt2))
		// rounded coefficients cap accuracy near 2e-7
		assert.InDelta(t, exact, NormalCDF(x), 3e-7, "Φ(%v)", x)
	}
}

func TestEvaluate_LargeSampleSignificant(t *testing.T) {
	verdict, err := Evaluate(variant("A", 1000, 200), variant("B", 1000, 150))
	require.NoError(t, err)

	// p1=0.20 p2=0.15 pooled=0.175 se≈0.01699
	assert.InDelta(t, 2.942, verdict.ZScore, 0.01)
	assert.InDelta(t, 0.0033, verdict.PValue, 0.0002)
	assert.True(t, verdict.Significant)
}

func TestEvaluate_SmallSampleNotSignificant(t *testing.T) {
	verdict, err := Evaluate(variant("A", 50, 10), variant("B", 50, 9))
	require.NoError(t, err)

	assert.Greater(t, verdict.PValue, SignificanceLevel)
	assert.False(t, verdict.Significant)
	assert.InDelta(t, 0.255, verdict.ZScore, 0.001)
}

func TestEvaluate_Symmetry(t *testing.T) {
	pairs := [][2]contracts.VariantPerformance{
		{variant("A", 1000, 200), variant("B", 1000, 150)},
		{variant("A", 50, 10), variant("B", 50, 9)},
		{variant("A", 731, 88), variant("B", 1204, 171)},
		{variant("A", 3, 3), variant("B", 9000, 1)},
	}

	for _, p := range pairs {
		ab, err := Evaluate(p[0], p[1])
		require.NoError(t, err)
		ba, err := Evaluate(p[1], p[0])
		require.NoError(t, err)

		assert.Equal(t, ab.ZScore, ba.ZScore)
		assert.Equal(t, ab.PValue, ba.PValue)
		assert.Equal(t, ab.Significant, ba.Significant)
	}
}

func TestEvaluate_DegenerateEquality(t *testing.T) {
	tests := []struct {
		name string
		a, b contracts.VariantPerformance
	}{
		{"both zero percent", variant("A", 400, 0), variant("B", 250, 0)},
		{"both hundred percent", variant("A", 10, 10), variant("B", 70, 70)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := Evaluate(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, contracts.SignificanceVerdict{ZScore: 0, PValue: 1, Significant: false}, verdict)
		})
	}
}

func TestEvaluate_MonotonicInGap(t *testing.T) {
	a := variant("A", 1000, 200)
	prev := -1.0

	for opens := int64(200); opens >= 0; opens -= 5 {
		verdict, err := Evaluate(a, variant("B", 1000, opens))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, verdict.ZScore, prev, "opens=%d", opens)
		prev = verdict.ZScore
	}
}

func TestEvaluate_PValueBounds(t *testing.T) {
	verdict, err := Evaluate(variant("A", 100000, 90000), variant("B", 100000, 10))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, verdict.PValue, 0.0)
	assert.LessOrEqual(t, verdict.PValue, 1.0)
	assert.True(t, verdict.Significant)
}

func TestEvaluate_HugeCountersStayInRange(t *testing.T) {
	a := variant("A", math.MaxInt64, math.MaxInt64/2)
	b := variant("B", math.MaxInt64, math.MaxInt64/4)

	verdict, err := Evaluate(a, b)
	require.NoError(t, err)

	assert.False(t, math.IsNaN(verdict.PValue))
	assert.False(t, math.IsNaN(verdict.ZScore))
	assert.GreaterOrEqual(t, verdict.PValue, 0.0)
	assert.LessOrEqual(t, verdict.PValue, 1.0)
	assert.True(t, verdict.Significant)
}

func TestEvaluate_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		a, b contracts.VariantPerformance
	}{
		{"zero sends", variant("A", 0, 0), variant("B", 100, 10)},
		{"opens exceed sends", variant("A", 100, 101), variant("B", 100, 10)},
		{"clicks exceed sends", func() contracts.VariantPerformance {
			v := variant("A", 100, 10)
			v.ClicksCount = 101
			return v
		}(), variant("B", 100, 10)},
		{"negative sends", variant("A", 100, 10), variant("B", -1, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.a, tt.b)
			require.Error(t, err)
			assert.ErrorIs(t, err, contracts.ErrInvalidInput)

			var invalid *contracts.InvalidInputError
			assert.ErrorAs(t, err, &invalid)
		})
	}
}

func TestEvaluate_ClicksAboveOpensAllowed(t *testing.T) {
	a := variant("A", 100, 10)
	a.ClicksCount = 40

	_, err := Evaluate(a, variant("B", 100, 12))
	assert.NoError(t, err)
}
