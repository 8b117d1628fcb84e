package application

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/example/autoecole-scheduler/internal/persistence"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"start": "invalid", "capacity": "invalid"}}
	if got := withFields.Error(); got != "validation failed: capacity, start" {
		t.Fatalf("expected sorted field names in message, got %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if err := (&ValidationError{}).HasErrors(); err {
		t.Fatalf("expected HasErrors to report false for empty error")
	}

	if err := (&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors(); !err {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", "value")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected add to populate map, got %q", got)
	}

	other := &ValidationError{FieldErrors: map[string]string{"second": "another"}}
	base.merge(other)
	if got := base.FieldErrors["second"]; got != "another" {
		t.Fatalf("expected merge to copy field, got %q", got)
	}

	base.merge(nil)
	base.addAll(nil)
	if len(base.FieldErrors) != 2 {
		t.Fatalf("expected merge with nil to leave fields unchanged")
	}
}

func TestConflictError_MatchesSentinels(t *testing.T) {
	t.Parallel()

	instructor := &ConflictError{Resource: scheduler.InstructorResource("inst-1"), ConflictingSessionID: "sess-1"}
	if !errors.Is(instructor, ErrSlotConflict) || !errors.Is(instructor, ErrInstructorConflict) {
		t.Fatalf("expected instructor conflict to match slot and instructor sentinels")
	}
	if errors.Is(instructor, ErrVehicleConflict) {
		t.Fatalf("expected instructor conflict not to match vehicle sentinel")
	}

	wrapped := fmt.Errorf("reserve: %w", &ConflictError{Resource: scheduler.VehicleResource("veh-1"), ConflictingSessionID: "sess-2"})
	if !errors.Is(wrapped, ErrVehicleConflict) {
		t.Fatalf("expected wrapped vehicle conflict to match")
	}
	var cErr *ConflictError
	if !errors.As(wrapped, &cErr) || cErr.ConflictingSessionID != "sess-2" {
		t.Fatalf("expected conflicting session to be exposed, got %+v", cErr)
	}
}

func TestMapRepoError(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk I/O error")
	tests := []struct {
		name string
		in   error
		want error
	}{
		{name: "not found", in: persistence.ErrNotFound, want: ErrNotFound},
		{name: "foreign key", in: fmt.Errorf("%w: FOREIGN KEY constraint failed", persistence.ErrForeignKeyViolation), want: ErrNotFound},
		{name: "duplicate", in: persistence.ErrDuplicate, want: ErrAlreadyExists},
		{name: "unavailable", in: fmt.Errorf("%w: database is locked", persistence.ErrUnavailable), want: ErrStorageUnavailable},
		{name: "unclassified", in: cause, want: ErrStorageUnavailable},
		{name: "application error passes", in: ErrCapacityExceeded, want: ErrCapacityExceeded},
		{name: "canceled", in: context.Canceled, want: context.Canceled},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := mapRepoError(tt.in)
			if !errors.Is(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}

	if got := mapRepoError(cause); !errors.Is(got, cause) {
		t.Fatalf("expected unclassified cause to stay attached, got %v", got)
	}

	var vErr *ValidationError
	if got := mapRepoError(persistence.ErrConstraintViolation); !errors.As(got, &vErr) {
		t.Fatalf("expected constraint violation to map to ValidationError, got %v", got)
	}

	if mapRepoError(nil) != nil {
		t.Fatalf("expected nil to map to nil")
	}
}
