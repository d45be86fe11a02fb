package abtest

import (
	"math"

	"github.com/careerforge/console/internal/contracts"
)

// SignificanceLevel is the fixed two-sided alpha (95% confidence)
const SignificanceLevel = 0.05

// Zelen–Severo coefficients (Abramowitz & Stegun 26.2.17).
// Persisted p-values were produced with exactly these; do not swap in math.Erf.
const (
	zsP  = 0.2316419
	zsD  = 0.3989423
	zsB1 = 0.3193815
	zsB2 = -0.3565638
	zsB3 = 1.781478
	zsB4 = -1.821256
	zsB5 = 1.330274
)

// NormalCDF approximates the standard normal CDF Φ(x)
func NormalCDF(x float64) float64 {
	t := 1 / (1 + zsP*math.Abs(x))
	d := zsD * math.Exp(-x*x/2)
	prob := d * t * (zsB1 + t*(zsB2+t*(zsB3+t*(zsB4+t*zsB5))))

	if x > 0 {
		return 1 - prob
	}
	return prob
}

// Evaluate runs a two-proportion z-test on the open rates of a and b.
// Both variants need at least one send; the caller decides how to treat
// zero-send variants (the selector abstains instead of calling this).
func Evaluate(a, b contracts.VariantPerformance) (contracts.SignificanceVerdict, error) {
	for _, v := range []contracts.VariantPerformance{a, b} {
		if err := v.Validate(); err != nil {
			return contracts.SignificanceVerdict{}, err
		}
		if v.SendsCount == 0 {
			return contracts.SignificanceVerdict{}, &contracts.InvalidInputError{
				TestName:  v.TestName,
				VariantID: v.VariantID,
				Reason:    "sends_count must be positive to evaluate significance",
			}
		}
	}

	// Sums in float64: int64 counters near the limit would overflow
	n1, n2 := float64(a.SendsCount), float64(b.SendsCount)
	o1, o2 := float64(a.OpensCount), float64(b.OpensCount)
	p1 := o1 / n1
	p2 := o2 / n2

	pooled := (o1 + o2) / (n1 + n2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/n1 + 1/n2))

	// 0% or 100% pooled: no variance, nothing to test
	if se == 0 || math.IsNaN(se) {
		return contracts.SignificanceVerdict{ZScore: 0, PValue: 1, Significant: false}, nil
	}

	z := math.Abs(p1-p2) / se
	p := 2 * (1 - NormalCDF(z))
	p = math.Min(1, math.Max(0, p))

	return contracts.SignificanceVerdict{
		ZScore:      z,
		PValue:      p,
		Significant: p < SignificanceLevel,
	}, nil
}
