package contracts

import "fmt"

// The four error kinds the contract lifecycle can fail with. Handlers map
// each to a status code; callers never retry automatically (a conflict MAY
// be retried once after re-reading fresh state, but that is caller policy).

// NotFoundError means a referenced job, proposal or contract does not exist.
type NotFoundError struct{ msg string }

func (e *NotFoundError) Error() string { return e.msg }

// PreconditionError means a status, ownership or value constraint was
// violated; retrying without a new user action is pointless.
type PreconditionError struct{ msg string }

func (e *PreconditionError) Error() string { return e.msg }

// ConflictError means a concurrent transition won the race; detected by the
// compare-and-set on the status column inside the transaction.
type ConflictError struct{ msg string }

func (e *ConflictError) Error() string { return e.msg }

// ValidationError means the input itself is malformed (rating out of range,
// text length out of bounds).
type ValidationError struct{ msg string }

func (e *ValidationError) Error() string { return e.msg }

func notFoundf(format string, args ...any) error {
	return &NotFoundError{msg: fmt.Sprintf(format, args...)}
}

func preconditionf(format string, args ...any) error {
	return &PreconditionError{msg: fmt.Sprintf(format, args...)}
}

func conflictf(format string, args ...any) error {
	return &ConflictError{msg: fmt.Sprintf(format, args...)}
}

func validationf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}
