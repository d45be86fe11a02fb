package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cat, snap, err := Load("testdata/campaigns.yaml")
	require.NoError(t, err)

	require.Len(t, cat.Tests, 2)
	assert.Equal(t, "welcome-subject", cat.Tests[0].Name)
	assert.Equal(t, 2, snap.Tests)
	assert.Equal(t, 5, snap.Variants)
	assert.Len(t, snap.Hash, 64)

	variants := cat.Variants()
	require.Len(t, variants, 5)
	assert.Equal(t, "welcome-b", variants[1].VariantID)
	assert.Equal(t, "welcome-subject", variants[1].TestName)
	assert.Equal(t, int64(140), variants[1].OpensCount)
	assert.True(t, variants[1].IsActive)
	assert.True(t, variants[4].ManualOverrideActive)
}

func TestHash_Deterministic(t *testing.T) {
	cat, _, err := Load("testdata/campaigns.yaml")
	require.NoError(t, err)

	h1, err := Hash(cat)
	require.NoError(t, err)
	h2, err := Hash(cat)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	cat.Tests[0].Variants[0].TrafficWeight = 49
	h3, err := Hash(cat)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestParse_UnknownField(t *testing.T) {
	_, _, err := Parse([]byte(`
tests:
  - name: t
    variants:
      - id: a
        label: A
        trafic_weight: 100
`))
	require.Error(t, err)
	assert.False(t, IsValidationError(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"no tests", `tests: []`, "tests"},
		{"missing name", `
tests:
  - variants: [{id: a, label: A, traffic_weight: 100}]
`, "tests[0].name"},
		{"duplicate test", `
tests:
  - name: t
    variants: [{id: a, label: A, traffic_weight: 100}]
  - name: t
    variants: [{id: b, label: B, traffic_weight: 100}]
`, "tests[1].name"},
		{"duplicate variant across tests", `
tests:
  - name: t1
    variants: [{id: a, label: A, traffic_weight: 100}]
  - name: t2
    variants: [{id: a, label: A, traffic_weight: 100}]
`, "tests[1].variants[0].id"},
		{"missing label", `
tests:
  - name: t
    variants: [{id: a, traffic_weight: 100}]
`, "tests[0].variants[0].label"},
		{"opens above sends", `
tests:
  - name: t
    variants: [{id: a, label: A, traffic_weight: 100, sends: 10, opens: 11}]
`, "tests[0].variants[0]"},
		{"weights not 100", `
tests:
  - name: t
    variants: [{id: a, label: A, traffic_weight: 60}, {id: b, label: B, traffic_weight: 30}]
`, "tests[0].variants"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			require.True(t, IsValidationError(err), "got %v", err)

			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}
