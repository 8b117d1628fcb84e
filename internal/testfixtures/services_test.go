package testfixtures

import (
	"context"
	"errors"
	"testing"

	"github.com/example/autoecole-scheduler/internal/application"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

func TestServiceFactoryNewServices(t *testing.T) {
	t.Parallel()

	harness := NewSQLiteHarness(t)
	factory := NewServiceFactory(WithIDGenerator(NewIDGenerator("gen")))
	services := factory.NewServices(ServicesDeps{Stores: harness.Stores()})

	instructor, err := services.Directory.RegisterInstructor(context.Background(), InstructorParams(NewInstructor()))
	if err != nil {
		t.Fatalf("RegisterInstructor returned error: %v", err)
	}
	if instructor.ID != "gen-0001" {
		t.Fatalf("expected generated ID gen-0001, got %q", instructor.ID)
	}
	if !instructor.CreatedAt.Equal(ReferenceTime()) {
		t.Fatalf("expected factory clock time, got %v", instructor.CreatedAt)
	}

	session, err := services.Sessions.CreateTheorySession(context.Background(), application.CreateTheorySessionParams{
		InstructorID:    instructor.ID,
		Start:           At(1, 18, 0),
		DurationMinutes: 120,
	})
	if err != nil {
		t.Fatalf("CreateTheorySession returned error: %v", err)
	}
	if session.Theory.Capacity != application.DefaultTheoryCapacity {
		t.Fatalf("expected default capacity %d, got %d", application.DefaultTheoryCapacity, session.Theory.Capacity)
	}
}

func TestSQLiteHarnessSeeds(t *testing.T) {
	t.Parallel()

	harness := NewSQLiteHarness(t)
	instructor := NewInstructor(WithSpecialties("A", "B"))
	candidate := NewCandidate()
	vehicle := NewVehicle()
	harness.SeedInstructors(instructor)
	harness.SeedCandidates(candidate)
	harness.SeedVehicles(vehicle)

	ctx := context.Background()
	stored, err := harness.Store.Directory.GetInstructor(ctx, instructor.ID)
	if err != nil {
		t.Fatalf("GetInstructor returned error: %v", err)
	}
	if !stored.HasSpecialty("A") || !stored.HasSpecialty("B") {
		t.Fatalf("expected specialties to round-trip, got %v", stored.Specialties)
	}
	if _, err := harness.Store.Directory.GetCandidate(ctx, candidate.ID); err != nil {
		t.Fatalf("GetCandidate returned error: %v", err)
	}
	if _, err := harness.Store.Directory.GetVehicle(ctx, "missing"); err == nil {
		t.Fatalf("expected missing vehicle to fail")
	}

	services := NewServiceFactory().NewServices(ServicesDeps{Stores: harness.Stores()})
	_, err = services.Sessions.CreatePracticalSession(ctx, application.CreatePracticalSessionParams{
		InstructorID:    instructor.ID,
		VehicleID:       vehicle.ID,
		CandidateID:     candidate.ID,
		Start:           At(2, 10, 0),
		DurationMinutes: 60,
		MeetingPoint:    scheduler.MeetingPoint{Address: "Place Bellecour"},
	})
	if err != nil {
		t.Fatalf("CreatePracticalSession returned error: %v", err)
	}
	_, err = services.Sessions.CreatePracticalSession(ctx, application.CreatePracticalSessionParams{
		InstructorID:    instructor.ID,
		Start:           At(2, 10, 30),
		DurationMinutes: 60,
		MeetingPoint:    scheduler.MeetingPoint{Address: "Place Bellecour"},
	})
	if !errors.Is(err, application.ErrInstructorConflict) {
		t.Fatalf("expected instructor conflict, got %v", err)
	}
}
