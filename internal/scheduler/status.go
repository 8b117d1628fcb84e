package scheduler

import (
	"errors"
	"fmt"
)

// Status describes where a session sits in its lifecycle.
type Status string

const (
	// StatusPlanned is the initial status of every booked session.
	StatusPlanned Status = "PLANNED"
	// StatusInProgress marks a session that has started.
	StatusInProgress Status = "IN_PROGRESS"
	// StatusCompleted marks a session that took place. Terminal.
	StatusCompleted Status = "COMPLETED"
	// StatusCancelled marks a session that was called off. Terminal.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition indicates a status change that would move a session backwards.
var ErrInvalidTransition = errors.New("scheduler: invalid status transition")

// TransitionError details a rejected status change.
type TransitionError struct {
	From Status
	To   Status
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("scheduler: cannot move session from %s to %s", e.From, e.To)
}

// Is reports whether the error matches ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// rank orders the non-cancelled statuses.
func (s Status) rank() int {
	switch s {
	case StatusPlanned:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	default:
		return -1
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusCancelled || s.rank() >= 0
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Active reports whether the session still holds its time slot.
func (s Status) Active() bool {
	return s != StatusCancelled
}

// ParseStatus converts a caller supplied string into a Status.
func ParseStatus(value string) (Status, error) {
	status := Status(value)
	if !status.Valid() {
		return "", fmt.Errorf("scheduler: unknown status %q", value)
	}
	return status, nil
}

// Transition validates moving a session from current to next and returns the new status.
//
// Statuses advance along PLANNED < IN_PROGRESS < COMPLETED and never move backwards.
// CANCELLED can be reached from PLANNED or IN_PROGRESS only, and nothing leaves it.
// Requesting the current status is accepted as a no-op.
func Transition(current, next Status) (Status, error) {
	if !current.Valid() || !next.Valid() {
		return current, &TransitionError{From: current, To: next}
	}
	if current == next {
		return next, nil
	}
	if current == StatusCancelled {
		return current, &TransitionError{From: current, To: next}
	}
	if next == StatusCancelled {
		if current == StatusCompleted {
			return current, &TransitionError{From: current, To: next}
		}
		return next, nil
	}
	if next.rank() < current.rank() {
		return current, &TransitionError{From: current, To: next}
	}
	return next, nil
}
