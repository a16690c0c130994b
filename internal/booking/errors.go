package booking

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates malformed lease terms or payment input.
	ErrValidation = errors.New("booking: validation failed")
	// ErrReferential indicates a missing or unpublished external reference.
	ErrReferential = errors.New("booking: invalid reference")
	// ErrNotFound indicates the booking does not exist.
	ErrNotFound = errors.New("booking: not found")
	// ErrConflict indicates a lost optimistic-concurrency race or a
	// duplicate booking identifier. The service retries it a bounded
	// number of times before surfacing.
	ErrConflict = errors.New("booking: concurrent modification")
	// ErrPersistence indicates storage failure; safe to retry by the caller.
	ErrPersistence = errors.New("booking: storage unavailable")
)

// StateError reports a disallowed lifecycle transition or a mutation
// attempted against a terminal booking. It always names the current state
// and the attempted operation.
type StateError struct {
	Current   BookingStatus
	Attempted string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("booking: cannot %s while %s", e.Attempted, e.Current)
}

// IsStateError reports whether err is a StateError.
func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func referentialErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrReferential, fmt.Sprintf(format, args...))
}

func persistenceErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}
