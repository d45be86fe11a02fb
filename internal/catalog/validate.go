package catalog

import (
	"errors"
	"fmt"
)

// ValidationError 검증 실패 (로드 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks all catalog constraints
func Validate(cat *Catalog) error {
	if len(cat.Tests) == 0 {
		return ValidationError{"tests", "at least one test required"}
	}

	testNames := make(map[string]bool)
	variantIDs := make(map[string]string)

	for i, t := range cat.Tests {
		field := fmt.Sprintf("tests[%d]", i)

		if t.Name == "" {
			return ValidationError{field + ".name", "required"}
		}
		if testNames[t.Name] {
			return ValidationError{field + ".name", fmt.Sprintf("duplicate test %q", t.Name)}
		}
		testNames[t.Name] = true

		if len(t.Variants) == 0 {
			return ValidationError{field + ".variants", "at least one variant required"}
		}

		weightSum := 0
		for j, v := range t.Variants {
			vfield := fmt.Sprintf("%s.variants[%d]", field, j)

			if v.ID == "" {
				return ValidationError{vfield + ".id", "required"}
			}
			if owner, ok := variantIDs[v.ID]; ok {
				return ValidationError{vfield + ".id", fmt.Sprintf("variant %q already declared in test %q", v.ID, owner)}
			}
			variantIDs[v.ID] = t.Name

			if v.Label == "" {
				return ValidationError{vfield + ".label", "required"}
			}

			if err := v.Performance(t.Name).Validate(); err != nil {
				return ValidationError{vfield, err.Error()}
			}

			weightSum += v.TrafficWeight
		}

		if weightSum != 100 {
			return ValidationError{field + ".variants", fmt.Sprintf("traffic weights sum to %d, want 100", weightSum)}
		}
	}

	return nil
}

// IsValidationError reports whether err came from Validate
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
