package notify

import (
	"context"
	"errors"

	"github.com/careerforge/console/internal/contracts"
)

// Notifier receives every recorded evaluation
type Notifier interface {
	Notify(ctx context.Context, record *contracts.EvaluationRecord) error
}

// Multi fans a record out to several notifiers.
// Every notifier is called even when an earlier one fails.
type Multi []Notifier

// Notify implements Notifier
func (m Multi) Notify(ctx context.Context, record *contracts.EvaluationRecord) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
