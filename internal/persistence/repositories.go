package persistence

import (
	"context"
	"time"

	"github.com/example/autoecole-scheduler/internal/scheduler"
)

// SessionRepository stores sessions together with their roster and commitments.
type SessionRepository interface {
	// CreateSession inserts the session, its roster and commitments in one transaction.
	CreateSession(ctx context.Context, change SessionChange) error
	// UpdateSession rewrites the session row, replaces its roster and (unless KeepCommitments)
	// its commitments, and upserts the given presence rows in one transaction.
	UpdateSession(ctx context.Context, change SessionChange) error
	GetSession(ctx context.Context, id string) (scheduler.Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]scheduler.Session, error)
}

// CommitmentRepository reads and releases availability register entries.
type CommitmentRepository interface {
	ListCommitments(ctx context.Context, filter CommitmentFilter) ([]scheduler.Commitment, error)
	// DeleteCommitments removes every commitment of the session. Absent rows are not an error.
	DeleteCommitments(ctx context.Context, sessionID string) error
}

// PresenceRepository stores attendance facts.
type PresenceRepository interface {
	// UpsertPresence writes the record, replacing any previous value for the same pair.
	UpsertPresence(ctx context.Context, record scheduler.PresenceRecord) error
	ListPresence(ctx context.Context, filter PresenceFilter) ([]scheduler.PresenceRecord, error)
	// CountPresent counts present=true rows of the candidate for sessions of the given kind,
	// optionally restricted to sessions starting at or after since.
	CountPresent(ctx context.Context, candidateID string, kind scheduler.Kind, since *time.Time) (int, error)
}

// ExamRepository stores exam attempts.
type ExamRepository interface {
	CreateExamRecord(ctx context.Context, record scheduler.ExamRecord) error
	UpdateExamOutcome(ctx context.Context, id string, outcome scheduler.ExamOutcome) error
	GetExamRecord(ctx context.Context, id string) (scheduler.ExamRecord, error)
	ListExamRecords(ctx context.Context, candidateID string) ([]scheduler.ExamRecord, error)
}

// InstructorRepository stores instructors and their specialties.
type InstructorRepository interface {
	CreateInstructor(ctx context.Context, instructor scheduler.Instructor) error
	UpdateInstructor(ctx context.Context, instructor scheduler.Instructor) error
	GetInstructor(ctx context.Context, id string) (scheduler.Instructor, error)
	ListInstructors(ctx context.Context) ([]scheduler.Instructor, error)
}

// CandidateRepository stores candidates.
type CandidateRepository interface {
	CreateCandidate(ctx context.Context, candidate scheduler.Candidate) error
	GetCandidate(ctx context.Context, id string) (scheduler.Candidate, error)
	ListCandidates(ctx context.Context) ([]scheduler.Candidate, error)
}

// VehicleRepository stores vehicles.
type VehicleRepository interface {
	CreateVehicle(ctx context.Context, vehicle scheduler.Vehicle) error
	GetVehicle(ctx context.Context, id string) (scheduler.Vehicle, error)
	ListVehicles(ctx context.Context) ([]scheduler.Vehicle, error)
}
