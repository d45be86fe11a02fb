package catalog

import (
	"time"

	"github.com/careerforge/console/internal/contracts"
)

// Catalog declares campaign A/B tests and their variants
// ⭐ SSOT: 테스트/변형 정의 파일 스키마는 여기서만
type Catalog struct {
	Tests []Test `yaml:"tests" json:"tests"`
}

// Test is one experiment
type Test struct {
	Name     string    `yaml:"name" json:"name"`
	Variants []Variant `yaml:"variants" json:"variants"`
}

// Variant is one arm of a test. Counters are optional and meant for fixtures.
type Variant struct {
	ID             string `yaml:"id" json:"id"`
	Label          string `yaml:"label" json:"label"`
	TrafficWeight  int    `yaml:"traffic_weight" json:"traffic_weight"`
	ManualOverride bool   `yaml:"manual_override" json:"manual_override"`
	Sends          int64  `yaml:"sends" json:"sends"`
	Opens          int64  `yaml:"opens" json:"opens"`
	Clicks         int64  `yaml:"clicks" json:"clicks"`
}

// Performance converts the declaration into a storage snapshot
func (v Variant) Performance(testName string) contracts.VariantPerformance {
	return contracts.VariantPerformance{
		VariantID:            v.ID,
		VariantLabel:         v.Label,
		TestName:             testName,
		SendsCount:           v.Sends,
		OpensCount:           v.Opens,
		ClicksCount:          v.Clicks,
		ManualOverrideActive: v.ManualOverride,
		TrafficWeight:        v.TrafficWeight,
		IsActive:             true,
	}
}

// Variants flattens the catalog in declaration order
func (c *Catalog) Variants() []contracts.VariantPerformance {
	out := make([]contracts.VariantPerformance, 0)
	for _, t := range c.Tests {
		for _, v := range t.Variants {
			out = append(out, v.Performance(t.Name))
		}
	}
	return out
}

// Snapshot records which catalog was applied
type Snapshot struct {
	Hash      string    `json:"hash"`
	Tests     int       `json:"tests"`
	Variants  int       `json:"variants"`
	LoadedAt  time.Time `json:"loaded_at"`
	SourceLen int       `json:"source_len"`
}
