package application

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/example/autoecole-scheduler/internal/persistence"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

var (
	// ErrNotFound is returned when a referenced session, instructor, vehicle or candidate does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a record with the same identity or unique key exists.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrSlotConflict is returned when a booking overlaps an existing commitment.
	ErrSlotConflict = errors.New("application: slot conflict")
	// ErrInstructorConflict is the slot conflict of an instructor.
	ErrInstructorConflict = errors.New("application: instructor conflict")
	// ErrVehicleConflict is the slot conflict of a vehicle.
	ErrVehicleConflict = errors.New("application: vehicle conflict")
	// ErrCapacityExceeded is returned when a theory session is full or a practical session already has its candidate.
	ErrCapacityExceeded = errors.New("application: capacity exceeded")
	// ErrAlreadyEnrolled is returned for duplicate enrollments and assignments.
	ErrAlreadyEnrolled = errors.New("application: already enrolled")
	// ErrInvalidTransition is returned when a status change would move a session backwards.
	ErrInvalidTransition = scheduler.ErrInvalidTransition
	// ErrStorageUnavailable wraps transient persistence failures. Nothing is retried internally.
	ErrStorageUnavailable = errors.New("application: storage unavailable")
)

// ConflictError identifies the commitment that blocked a booking.
// It matches ErrSlotConflict and the resource specific sentinel.
type ConflictError struct {
	Resource             scheduler.ResourceRef
	ConflictingSessionID string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("application: %s %s is already booked by session %s",
		e.Resource.Kind, e.Resource.ID, e.ConflictingSessionID)
}

// Is reports whether the error matches target.
func (e *ConflictError) Is(target error) bool {
	switch target {
	case ErrSlotConflict:
		return true
	case ErrInstructorConflict:
		return e.Resource.Kind == scheduler.ResourceInstructor
	case ErrVehicleConflict:
		return e.Resource.Kind == scheduler.ResourceVehicle
	default:
		return false
	}
}

func conflictError(c scheduler.Conflict) *ConflictError {
	return &ConflictError{Resource: c.Resource, ConflictingSessionID: c.WithSessionID}
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := slices.Sorted(maps.Keys(v.FieldErrors))
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	v.addAll(other.FieldErrors)
}

// addAll copies entries from a field map, as returned by scheduler validation.
func (v *ValidationError) addAll(fields map[string]string) {
	for field, msg := range fields {
		v.add(field, msg)
	}
}

func validationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.add(field, message)
	return v
}

// mapRepoError translates persistence failures into application errors. Errors that are
// already application errors pass through; anything unclassified is reported as
// ErrStorageUnavailable with the cause attached.
func mapRepoError(err error) error {
	if err == nil {
		return nil
	}

	var vErr *ValidationError
	var cErr *ConflictError
	if errors.As(err, &vErr) || errors.As(err, &cErr) {
		return err
	}
	for _, known := range []error{
		ErrNotFound, ErrAlreadyExists, ErrSlotConflict, ErrCapacityExceeded,
		ErrAlreadyEnrolled, ErrInvalidTransition, ErrStorageUnavailable,
	} {
		if errors.Is(err, known) {
			return err
		}
	}

	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return fmt.Errorf("%w: referenced record is missing", ErrNotFound)
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConstraintViolation):
		return validationError("record", "record violates a storage constraint")
	case errors.Is(err, context.Canceled):
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}
