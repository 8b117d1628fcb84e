package application

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/example/autoecole-scheduler/internal/scheduler"
)

func TestRegisterInstructorNormalizesSpecialties(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	instructor, err := env.services.Directory.RegisterInstructor(ctx, RegisterInstructorParams{
		FirstName:   " Lucie ",
		LastName:    "Bernard",
		Email:       "Lucie.Bernard@AutoEcole.fr",
		Specialties: []scheduler.PermitCategory{"b", " a2", "B"},
	})
	if err != nil {
		t.Fatalf("expected instructor, got %v", err)
	}
	if instructor.FirstName != "Lucie" || instructor.Email != "lucie.bernard@autoecole.fr" {
		t.Fatalf("expected trimmed name and lower-cased email, got %+v", instructor)
	}
	if !slices.Equal(instructor.Specialties, []scheduler.PermitCategory{"A2", "B"}) {
		t.Fatalf("expected specialties [A2 B], got %v", instructor.Specialties)
	}

	updated, err := env.services.Directory.AddSpecialty(ctx, instructor.ID, "c")
	if err != nil {
		t.Fatalf("expected specialty added, got %v", err)
	}
	if !updated.HasSpecialty("C") {
		t.Fatalf("expected specialty C, got %v", updated.Specialties)
	}
	updated, err = env.services.Directory.RemoveSpecialty(ctx, instructor.ID, "A2")
	if err != nil {
		t.Fatalf("expected specialty removed, got %v", err)
	}
	if !slices.Equal(updated.Specialties, []scheduler.PermitCategory{"B", "C"}) {
		t.Fatalf("expected specialties [B C], got %v", updated.Specialties)
	}

	if _, err := env.services.Directory.AddSpecialty(ctx, "inst-404", "B"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	var vErr *ValidationError
	_, err := env.services.Directory.RegisterCandidate(ctx, RegisterCandidateParams{Email: "pas-un-email"})
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"first_name", "last_name", "email"} {
		if vErr.FieldErrors[field] == "" {
			t.Fatalf("expected a %s error, got %v", field, vErr.FieldErrors)
		}
	}

	if _, err := env.services.Directory.RegisterVehicle(ctx, RegisterVehicleParams{Registration: "  "}); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for a vehicle without registration, got %v", err)
	}

	vehicle, err := env.services.Directory.RegisterVehicle(ctx, RegisterVehicleParams{Registration: "gh-123-jk", Model: "208", Category: "b"})
	if err != nil {
		t.Fatalf("expected vehicle, got %v", err)
	}
	if vehicle.Registration != "GH-123-JK" || vehicle.Category != "B" {
		t.Fatalf("expected normalised vehicle, got %+v", vehicle)
	}
	if _, err := env.services.Directory.RegisterVehicle(ctx, RegisterVehicleParams{Registration: "GH-123-JK", Category: "B"}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected already exists for a duplicate registration, got %v", err)
	}
}

func TestRecordExamTracksAttempts(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	outcomes := []scheduler.ExamOutcome{scheduler.ExamFailed, scheduler.ExamFailed, scheduler.ExamPassed}
	for i, outcome := range outcomes {
		if _, err := env.services.Directory.RecordExam(ctx, RecordExamParams{
			CandidateID: "cand-8",
			Type:        scheduler.ExamTheory,
			Date:        at(7*(i+1), 10, 0),
			Outcome:     outcome,
		}); err != nil {
			t.Fatalf("expected exam %d, got %v", i, err)
		}
	}

	snap, err := env.services.Progression.GetProgression(ctx, "cand-8")
	if err != nil {
		t.Fatalf("expected progression, got %v", err)
	}
	stats := snap.Exams[scheduler.ExamTheory]
	if stats.Attempts != 3 || !stats.Passed {
		t.Fatalf("expected three attempts with a pass, got %+v", stats)
	}

	pending, err := env.services.Directory.RecordExam(ctx, RecordExamParams{CandidateID: "cand-8", Type: scheduler.ExamPractical, Date: at(40, 9, 0)})
	if err != nil {
		t.Fatalf("expected pending exam, got %v", err)
	}
	if pending.Outcome != scheduler.ExamPending {
		t.Fatalf("expected pending outcome by default, got %s", pending.Outcome)
	}
	graded, err := env.services.Directory.GradeExam(ctx, pending.ID, scheduler.ExamPassed)
	if err != nil {
		t.Fatalf("expected grading, got %v", err)
	}
	if graded.Outcome != scheduler.ExamPassed {
		t.Fatalf("expected passed, got %s", graded.Outcome)
	}

	snap, err = env.services.Progression.GetProgression(ctx, "cand-8")
	if err != nil {
		t.Fatalf("expected progression, got %v", err)
	}
	if practical := snap.Exams[scheduler.ExamPractical]; !practical.Passed || practical.Pending != 0 {
		t.Fatalf("expected the graded exam to be visible, got %+v", practical)
	}

	if _, err := env.services.Directory.RecordExam(ctx, RecordExamParams{CandidateID: "cand-404", Type: scheduler.ExamTheory, Date: at(1, 9, 0)}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
