package preferences

import (
	"errors"
	"fmt"
)

// FailurePolicy names how a code path reacts to a store failure.
type FailurePolicy int

const (
	// DegradeToDefaults logs the failure and continues with default state.
	DegradeToDefaults FailurePolicy = iota
	// FailOperation aborts the operation and leaves prior state intact.
	FailOperation
)

func (p FailurePolicy) String() string {
	switch p {
	case DegradeToDefaults:
		return "degrade_to_defaults"
	case FailOperation:
		return "fail_operation"
	default:
		return fmt.Sprintf("FailurePolicy(%d)", int(p))
	}
}

const (
	// ReadPolicy applies when populating preferences.
	ReadPolicy = DegradeToDefaults
	// TransitionPolicy applies to SetLayoutAndPreferences.
	TransitionPolicy = FailOperation
)

var (
	ErrUnmapped  = errors.New("no profile is mapped for this client")
	ErrNoProfile = errors.New("preferences carry no profile")
)

// InitializationError reports that a Manager could not be constructed.
type InitializationError struct {
	UserID string
	Cause  error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("failed to initialize preferences for user %s: %v", e.UserID, e.Cause)
}

func (e *InitializationError) Unwrap() error { return e.Cause }

// TransitionError reports a failed SetLayoutAndPreferences. The manager state
// is unchanged when it is returned.
type TransitionError struct {
	Profile string
	Cause   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("failed to switch preferences to profile %q: %v", e.Profile, e.Cause)
}

func (e *TransitionError) Unwrap() error { return e.Cause }
