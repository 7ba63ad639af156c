package domain

import "errors"

// Business rule failures. None of them is transient; callers must not retry.
var (
	ErrActiveTimerConflict = errors.New("user already has a running timer")
	ErrTaskNotFound        = errors.New("task not found")
	ErrEntryNotFound       = errors.New("time entry not found")
	ErrNotOwner            = errors.New("time entry belongs to another user")
	ErrInvalidState        = errors.New("operation not allowed in the entry's current state")
	ErrInvalidDuration     = errors.New("duration must be a positive number of minutes")
	ErrInvalidRange        = errors.New("end time is before start time")
	ErrBadArguments        = errors.New("bad arguments")
)

// ErrUnavailable marks infrastructure failures of a collaborator. It is the
// only error class worth retrying.
var ErrUnavailable = errors.New("dependency unavailable")
