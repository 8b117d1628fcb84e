package application

import (
	"github.com/example/autoecole-scheduler/internal/persistence"
)

// SessionStore persists sessions together with the commitments they hold.
type SessionStore interface {
	persistence.SessionRepository
	persistence.CommitmentRepository
}

// DirectoryStore resolves the people and vehicles sessions refer to.
type DirectoryStore interface {
	persistence.InstructorRepository
	persistence.CandidateRepository
	persistence.VehicleRepository
}

// Stores groups the repositories the core services depend on.
type Stores struct {
	Sessions  SessionStore
	Presence  persistence.PresenceRepository
	Exams     persistence.ExamRepository
	Directory DirectoryStore
}
