package models

import (
	"fmt"

	dErrors "caseflow/pkg/domain-errors"
)

// InvalidTransitionError reports an action that is not structurally valid
// for the record's current status. It carries the status and the currently
// valid actions so callers can show what is allowed instead.
type InvalidTransitionError struct {
	Status       Status
	ValidActions []Action
	err          *dErrors.Error
}

// NewInvalidTransition builds the error for a record sitting in status.
func NewInvalidTransition(action Action, status Status) *InvalidTransitionError {
	return &InvalidTransitionError{
		Status:       status,
		ValidActions: ActionsFrom(status),
		err:          dErrors.Newf(dErrors.CodeInvalidTransition, "action %q is not valid for status %q", action, status),
	}
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%v (valid actions: %v)", e.err, e.ValidActions)
}

func (e *InvalidTransitionError) Unwrap() error { return e.err }
