package contracts

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput matches every *InvalidInputError via errors.Is
	ErrInvalidInput = errors.New("invalid input")

	ErrTestNotFound    = errors.New("ab test not found")
	ErrVariantNotFound = errors.New("variant not found")
)

// InvalidInputError reports variant data that breaks the counter contract
type InvalidInputError struct {
	TestName  string
	VariantID string
	Reason    string
}

func (e *InvalidInputError) Error() string {
	switch {
	case e.VariantID != "":
		return fmt.Sprintf("invalid input: test %q variant %q: %s", e.TestName, e.VariantID, e.Reason)
	case e.TestName != "":
		return fmt.Sprintf("invalid input: test %q: %s", e.TestName, e.Reason)
	default:
		return "invalid input: " + e.Reason
	}
}

// Is lets callers test with errors.Is(err, ErrInvalidInput)
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}
