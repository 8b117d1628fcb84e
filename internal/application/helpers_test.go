package application

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/autoecole-scheduler/internal/scheduler"
)

var testNow = time.Date(2024, time.May, 6, 8, 0, 0, 0, time.UTC)

// at returns a UTC instant days after testNow's date at the given hour and minute.
func at(days, hour, minute int) time.Time {
	return time.Date(2024, time.May, 6+days, hour, minute, 0, 0, time.UTC)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	store    *memoryStore
	services *Services
}

// newTestEnv wires the services over a memory store seeded with two instructors, three
// vehicles and thirty candidates.
func newTestEnv(t *testing.T, tweak ...func(*Options)) *testEnv {
	t.Helper()

	store := newMemoryStore()
	store.instructors["inst-1"] = scheduler.Instructor{ID: "inst-1", FirstName: "Claire", LastName: "Martin", Specialties: []scheduler.PermitCategory{"B"}}
	store.instructors["inst-2"] = scheduler.Instructor{ID: "inst-2", FirstName: "Paul", LastName: "Durand", Specialties: []scheduler.PermitCategory{"A", "B"}}
	store.vehicles["veh-1"] = scheduler.Vehicle{ID: "veh-1", Registration: "AA-001-AA", Category: "B"}
	store.vehicles["veh-2"] = scheduler.Vehicle{ID: "veh-2", Registration: "AA-002-AA", Category: "B"}
	store.vehicles["moto-1"] = scheduler.Vehicle{ID: "moto-1", Registration: "AA-003-AA", Category: "A"}
	for i := 1; i <= 30; i++ {
		id := fmt.Sprintf("cand-%d", i)
		store.candidates[id] = scheduler.Candidate{ID: id, FirstName: "Eleve", LastName: id, TargetCategory: "B"}
	}

	opts := Options{
		IDGenerator: sequence("sess"),
		Now:         func() time.Time { return testNow },
		Logger:      discardLogger(),
		Location:    time.UTC,
	}
	for _, fn := range tweak {
		fn(&opts)
	}
	return &testEnv{store: store, services: NewServices(store.stores(), opts)}
}

func practicalParams(instructorID, vehicleID, candidateID string, start time.Time, minutes int) CreatePracticalSessionParams {
	return CreatePracticalSessionParams{
		InstructorID:    instructorID,
		VehicleID:       vehicleID,
		CandidateID:     candidateID,
		Start:           start,
		DurationMinutes: minutes,
		PriceCents:      4500,
		MeetingPoint:    scheduler.MeetingPoint{Address: "12 rue de la Gare, Lyon"},
	}
}

func theoryParams(instructorID string, start time.Time, minutes, capacity int) CreateTheorySessionParams {
	return CreateTheorySessionParams{
		InstructorID:    instructorID,
		Start:           start,
		DurationMinutes: minutes,
		Capacity:        capacity,
		PriceCents:      2000,
	}
}

func practicalSessionFor(instructorID, vehicleID string) scheduler.Session {
	return scheduler.Session{
		ID:              "draft",
		Kind:            scheduler.KindPractical,
		Start:           at(1, 9, 0),
		DurationMinutes: 60,
		InstructorID:    instructorID,
		Status:          scheduler.StatusPlanned,
		Practical:       &scheduler.PracticalDetails{VehicleID: vehicleID},
	}
}
