package application

import (
	"time"

	"github.com/example/autoecole-scheduler/internal/recurrence"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

// AvailabilityQuery asks whether an instructor, and optionally a vehicle, is free for a slot.
type AvailabilityQuery struct {
	InstructorID    string
	VehicleID       string
	Start           time.Time
	DurationMinutes int
	// ExcludeSessionID ignores the commitments of that session, for moves within its own slot.
	ExcludeSessionID string
}

// Availability is the answer to an AvailabilityQuery. When Free is false, ConflictingSessionID
// and Resource identify the first blocking commitment (instructor conflicts first).
type Availability struct {
	Free                 bool
	ConflictingSessionID string
	Resource             scheduler.ResourceRef
}

// ReserveParams carries a fully described session to book.
type ReserveParams struct {
	Session scheduler.Session
}

// FreeSlotsQuery asks for the gaps of at least SlotMinutes in an instructor's calendar within [From, To).
type FreeSlotsQuery struct {
	InstructorID string
	From         time.Time
	To           time.Time
	SlotMinutes  int
}

// CreateTheorySessionParams describes a classroom session. Capacity falls back to the configured default.
type CreateTheorySessionParams struct {
	CoursePlanID    string
	InstructorID    string
	Start           time.Time
	DurationMinutes int
	Capacity        int
	PriceCents      int64
	Category        scheduler.PermitCategory
}

// CreatePracticalSessionParams describes a driving lesson. VehicleID and CandidateID may be
// left empty and assigned later.
type CreatePracticalSessionParams struct {
	CoursePlanID    string
	InstructorID    string
	VehicleID       string
	CandidateID     string
	Start           time.Time
	DurationMinutes int
	PriceCents      int64
	Category        scheduler.PermitCategory
	MeetingPoint    scheduler.MeetingPoint
}

// RescheduleParams moves a planned session. A zero DurationMinutes keeps the current duration.
type RescheduleParams struct {
	SessionID       string
	Start           time.Time
	DurationMinutes int
}

// CompleteParams closes a session. Attendance lists who showed up; participants missing from
// the map are recorded absent.
type CompleteParams struct {
	SessionID  string
	Attendance map[string]bool
	DistanceKm float64
}

// ListSessionsParams filters session listings.
type ListSessionsParams struct {
	InstructorID string
	VehicleID    string
	CandidateID  string
	Kind         scheduler.Kind
	Statuses     []scheduler.Status
	From         *time.Time
	To           *time.Time
}

// PlanTheorySeriesParams expands a recurrence rule into theory sessions sharing one template.
type PlanTheorySeriesParams struct {
	Template CreateTheorySessionParams
	Rule     recurrence.Rule
}

// SeriesRejection reports an occurrence that could not be booked.
type SeriesRejection struct {
	Start time.Time
	Err   error
}

// SeriesResult lists the sessions booked by PlanTheorySeries and the occurrences it skipped.
type SeriesResult struct {
	Created  []scheduler.Session
	Rejected []SeriesRejection
}

// AssignPracticalParams binds a candidate and a vehicle to a practical session. An empty
// VehicleID keeps the vehicle already on the session.
type AssignPracticalParams struct {
	SessionID   string
	CandidateID string
	VehicleID   string
}

// TrackProgress is the completion of one training track.
type TrackProgress struct {
	Completed int
	Planned   int
	Ratio     float64
}

// ExamStats summarises the attempts of one exam type.
type ExamStats struct {
	Attempts int
	Passed   bool
	Pending  int
}

// ProgressionSnapshot is the derived progress of a candidate at ComputedAt.
type ProgressionSnapshot struct {
	CandidateID  string
	Theory       TrackProgress
	Practical    TrackProgress
	Exams        map[scheduler.ExamType]ExamStats
	OverallRatio float64
	ComputedAt   time.Time
}

// ProgressionWeights weighs the theory and practical ratios in the overall ratio.
type ProgressionWeights struct {
	Theory    float64
	Practical float64
}

// DefaultProgressionWeights weighs both tracks equally.
func DefaultProgressionWeights() ProgressionWeights {
	return ProgressionWeights{Theory: 0.5, Practical: 0.5}
}

// RegisterInstructorParams captures caller provided instructor fields.
type RegisterInstructorParams struct {
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	HiredOn     time.Time
	Specialties []scheduler.PermitCategory
}

// RegisterCandidateParams captures caller provided candidate fields.
type RegisterCandidateParams struct {
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	TargetCategory scheduler.PermitCategory
}

// RegisterVehicleParams captures caller provided vehicle fields.
type RegisterVehicleParams struct {
	Registration string
	Model        string
	Category     scheduler.PermitCategory
}

// RecordExamParams registers an exam attempt. An empty outcome means PENDING.
type RecordExamParams struct {
	CandidateID string
	Type        scheduler.ExamType
	Date        time.Time
	Outcome     scheduler.ExamOutcome
}
