package abtest

import (
	"sort"

	"github.com/careerforge/console/internal/contracts"
)

// SelectAndReallocate decides what should change for one test snapshot.
//
// The leader by open rate is compared against the runner-up. When the
// difference is significant every other variant is deactivated unless an
// operator pinned it with a manual override, and the leader takes all
// traffic. The input is never mutated; persisting Updates is the caller's job.
func SelectAndReallocate(testName string, variants []contracts.VariantPerformance) (*contracts.SelectionResult, error) {
	seen := make(map[string]struct{}, len(variants))
	for _, v := range variants {
		if v.TestName != testName {
			return nil, &contracts.InvalidInputError{
				TestName:  testName,
				VariantID: v.VariantID,
				Reason:    "variant belongs to test " + v.TestName,
			}
		}
		if err := v.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[v.VariantID]; dup {
			return nil, &contracts.InvalidInputError{
				TestName:  testName,
				VariantID: v.VariantID,
				Reason:    "duplicate variant_id",
			}
		}
		seen[v.VariantID] = struct{}{}
	}

	result := &contracts.SelectionResult{
		TestName:        testName,
		Deactivated:     []string{},
		SkippedOverride: []string{},
		Updates:         []contracts.VariantUpdate{},
	}

	if len(variants) < 2 {
		result.Reason = contracts.ReasonSingleVariant
		return result, nil
	}

	ranked := make([]contracts.VariantPerformance, len(variants))
	copy(ranked, variants)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RanksAbove(ranked[j])
	})

	leader, runnerUp := ranked[0], ranked[1]
	result.LeaderID = leader.VariantID
	result.RunnerUpID = runnerUp.VariantID

	if leader.SendsCount == 0 || runnerUp.SendsCount == 0 {
		result.Reason = contracts.ReasonInsufficientData
		return result, nil
	}

	verdict, err := Evaluate(leader, runnerUp)
	if err != nil {
		return nil, err
	}
	result.Verdict = &verdict

	if !verdict.Significant {
		result.Reason = contracts.ReasonInconclusive
		return result, nil
	}

	result.Reason = contracts.ReasonWinnerSelected
	result.WinnerID = leader.VariantID
	result.Updates = append(result.Updates, contracts.VariantUpdate{
		VariantID:     leader.VariantID,
		IsActive:      true,
		TrafficWeight: 100,
	})

	for _, v := range ranked[1:] {
		if v.ManualOverrideActive {
			result.SkippedOverride = append(result.SkippedOverride, v.VariantID)
			continue
		}
		result.Deactivated = append(result.Deactivated, v.VariantID)
		result.Updates = append(result.Updates, contracts.VariantUpdate{
			VariantID:     v.VariantID,
			IsActive:      false,
			TrafficWeight: 0,
		})
	}

	return result, nil
}
