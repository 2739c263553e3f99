package collab

import "errors"

var (
	// ErrInvalidState is returned when an operation's preconditions are not met,
	// e.g. rejecting a candidate that is not accepted or starting with quota < 1.
	ErrInvalidState = errors.New("invalid state")

	// ErrNotFound is returned when an operation references an unknown candidate.
	ErrNotFound = errors.New("not found")
)

// IsInvalidState returns true if err wraps ErrInvalidState.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsNotFound returns true if err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
