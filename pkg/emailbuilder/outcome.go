package emailbuilder

import (
	"errors"
)

// Outcome is the result of a store operation.
// Only OK operations may have changed the tree or the selection.
type Outcome int

const (
	OK Outcome = iota
	NotFound
	InvalidOperation
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case NotFound:
		return "not_found"
	case InvalidOperation:
		return "invalid_operation"
	default:
		return "unknown"
	}
}

// IsOK checks if the operation succeeded
func (o Outcome) IsOK() bool {
	return o == OK
}

// outcomeFromError maps tree errors onto outcomes
func outcomeFromError(err error) Outcome {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, ErrBlockNotFound):
		return NotFound
	default:
		return InvalidOperation
	}
}
