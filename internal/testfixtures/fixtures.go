package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/autoecole-scheduler/internal/application"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

var (
	instructorCounter uint64
	candidateCounter  uint64
	vehicleCounter    uint64
	sessionCounter    uint64
	examCounter       uint64
)

// Monday 6 May 2024, 08:00 UTC.
var referenceTime = time.Date(2024, time.May, 6, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// At returns the reference day at the given UTC wall-clock time, offset by days.
func At(days, hour, minute int) time.Time {
	y, m, d := referenceTime.Date()
	return time.Date(y, m, d+days, hour, minute, 0, 0, time.UTC)
}

// ----------------------------- Instructor fixtures -----------------------------

// InstructorOption configures the generated instructor.
type InstructorOption func(*scheduler.Instructor)

// NewInstructor returns a deterministic instructor teaching category B.
func NewInstructor(opts ...InstructorOption) scheduler.Instructor {
	idx := atomic.AddUint64(&instructorCounter, 1)
	created := referenceTime.Add(-time.Duration(idx) * time.Hour)
	instructor := scheduler.Instructor{
		ID:          fmt.Sprintf("inst-%03d", idx),
		FirstName:   "Moniteur",
		LastName:    fmt.Sprintf("%03d", idx),
		Email:       fmt.Sprintf("moniteur-%03d@autoecole.test", idx),
		HiredOn:     referenceTime.AddDate(-2, 0, 0),
		Specialties: []scheduler.PermitCategory{"B"},
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&instructor)
	}
	return instructor
}

// WithInstructorID overrides the generated instructor ID.
func WithInstructorID(id string) InstructorOption {
	return func(i *scheduler.Instructor) {
		i.ID = id
	}
}

// WithInstructorName overrides the instructor's names.
func WithInstructorName(first, last string) InstructorOption {
	return func(i *scheduler.Instructor) {
		i.FirstName, i.LastName = first, last
	}
}

// WithSpecialties replaces the instructor's specialties.
func WithSpecialties(categories ...scheduler.PermitCategory) InstructorOption {
	return func(i *scheduler.Instructor) {
		i.Specialties = append([]scheduler.PermitCategory(nil), categories...)
	}
}

// InstructorParams converts an instructor into registration parameters.
func InstructorParams(i scheduler.Instructor) application.RegisterInstructorParams {
	return application.RegisterInstructorParams{
		FirstName:   i.FirstName,
		LastName:    i.LastName,
		Email:       i.Email,
		Phone:       i.Phone,
		HiredOn:     i.HiredOn,
		Specialties: i.Specialties,
	}
}

// ----------------------------- Candidate fixtures -----------------------------

// CandidateOption configures the generated candidate.
type CandidateOption func(*scheduler.Candidate)

// NewCandidate returns a deterministic candidate preparing category B.
func NewCandidate(opts ...CandidateOption) scheduler.Candidate {
	idx := atomic.AddUint64(&candidateCounter, 1)
	created := referenceTime.AddDate(0, -1, 0).Add(time.Duration(idx) * time.Minute)
	candidate := scheduler.Candidate{
		ID:             fmt.Sprintf("cand-%03d", idx),
		FirstName:      "Eleve",
		LastName:       fmt.Sprintf("%03d", idx),
		Email:          fmt.Sprintf("eleve-%03d@autoecole.test", idx),
		TargetCategory: "B",
		RegisteredAt:   created,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	for _, opt := range opts {
		opt(&candidate)
	}
	return candidate
}

// WithCandidateID overrides the generated candidate ID.
func WithCandidateID(id string) CandidateOption {
	return func(c *scheduler.Candidate) {
		c.ID = id
	}
}

// WithCandidateName overrides the candidate's names.
func WithCandidateName(first, last string) CandidateOption {
	return func(c *scheduler.Candidate) {
		c.FirstName, c.LastName = first, last
	}
}

// WithTargetCategory overrides the permit the candidate prepares.
func WithTargetCategory(category scheduler.PermitCategory) CandidateOption {
	return func(c *scheduler.Candidate) {
		c.TargetCategory = category
	}
}

// ----------------------------- Vehicle fixtures -----------------------------

// VehicleOption configures the generated vehicle.
type VehicleOption func(*scheduler.Vehicle)

// NewVehicle returns a deterministic category B car.
func NewVehicle(opts ...VehicleOption) scheduler.Vehicle {
	idx := atomic.AddUint64(&vehicleCounter, 1)
	created := referenceTime.AddDate(-1, 0, 0)
	vehicle := scheduler.Vehicle{
		ID:           fmt.Sprintf("veh-%03d", idx),
		Registration: fmt.Sprintf("AB-%03d-CD", idx),
		Model:        "Clio",
		Category:     "B",
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&vehicle)
	}
	return vehicle
}

// WithVehicleID overrides the generated vehicle ID.
func WithVehicleID(id string) VehicleOption {
	return func(v *scheduler.Vehicle) {
		v.ID = id
	}
}

// WithVehicleCategory overrides the vehicle's permit category.
func WithVehicleCategory(category scheduler.PermitCategory) VehicleOption {
	return func(v *scheduler.Vehicle) {
		v.Category = category
	}
}

// ----------------------------- Session fixtures -----------------------------

// SessionOption configures a generated session.
type SessionOption func(*scheduler.Session)

// NewTheorySession returns a planned two hour classroom session for twenty candidates,
// starting the day after the reference time.
func NewTheorySession(instructorID string, opts ...SessionOption) scheduler.Session {
	session := baseSession(instructorID, scheduler.KindTheory, 120)
	session.Theory = &scheduler.TheoryDetails{Capacity: 20}
	for _, opt := range opts {
		opt(&session)
	}
	return session
}

// NewPracticalSession returns a planned one hour driving lesson meeting at the school.
func NewPracticalSession(instructorID string, opts ...SessionOption) scheduler.Session {
	session := baseSession(instructorID, scheduler.KindPractical, 60)
	session.Practical = &scheduler.PracticalDetails{
		MeetingPoint: scheduler.MeetingPoint{Address: "12 rue de la Gare, Lyon"},
	}
	for _, opt := range opts {
		opt(&session)
	}
	return session
}

func baseSession(instructorID string, kind scheduler.Kind, minutes int) scheduler.Session {
	idx := atomic.AddUint64(&sessionCounter, 1)
	return scheduler.Session{
		ID:              fmt.Sprintf("sess-%03d", idx),
		Kind:            kind,
		Start:           At(1, 9, 0),
		DurationMinutes: minutes,
		InstructorID:    instructorID,
		PriceCents:      4500,
		Status:          scheduler.StatusPlanned,
		CreatedAt:       referenceTime,
		UpdatedAt:       referenceTime,
	}
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) SessionOption {
	return func(s *scheduler.Session) {
		s.ID = id
	}
}

// WithSlot sets the start and duration.
func WithSlot(start time.Time, minutes int) SessionOption {
	return func(s *scheduler.Session) {
		s.Start = start
		s.DurationMinutes = minutes
	}
}

// WithStatus overrides the session status.
func WithStatus(status scheduler.Status) SessionOption {
	return func(s *scheduler.Session) {
		s.Status = status
	}
}

// WithCategory sets the permit category of the session.
func WithCategory(category scheduler.PermitCategory) SessionOption {
	return func(s *scheduler.Session) {
		s.Category = category
	}
}

// WithCapacity sets the seat count of a theory session.
func WithCapacity(capacity int) SessionOption {
	return func(s *scheduler.Session) {
		if s.Theory != nil {
			s.Theory.Capacity = capacity
		}
	}
}

// WithEnrolled sets the roster of a theory session.
func WithEnrolled(candidateIDs ...string) SessionOption {
	return func(s *scheduler.Session) {
		if s.Theory != nil {
			s.Theory.Enrolled = append([]string(nil), candidateIDs...)
		}
	}
}

// WithVehicle books a vehicle for a practical session.
func WithVehicle(vehicleID string) SessionOption {
	return func(s *scheduler.Session) {
		if s.Practical != nil {
			s.Practical.VehicleID = vehicleID
		}
	}
}

// WithCandidate assigns the candidate of a practical session.
func WithCandidate(candidateID string) SessionOption {
	return func(s *scheduler.Session) {
		if s.Practical != nil {
			s.Practical.CandidateID = candidateID
		}
	}
}

// ----------------------------- Exam fixtures -----------------------------

// ExamOption configures a generated exam record.
type ExamOption func(*scheduler.ExamRecord)

// NewExamRecord returns a pending theory exam for the candidate.
func NewExamRecord(candidateID string, opts ...ExamOption) scheduler.ExamRecord {
	idx := atomic.AddUint64(&examCounter, 1)
	record := scheduler.ExamRecord{
		ID:          fmt.Sprintf("exam-%03d", idx),
		CandidateID: candidateID,
		Type:        scheduler.ExamTheory,
		Date:        referenceTime.AddDate(0, 0, 14),
		Outcome:     scheduler.ExamPending,
		CreatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&record)
	}
	return record
}

// WithExamType overrides the exam type.
func WithExamType(t scheduler.ExamType) ExamOption {
	return func(r *scheduler.ExamRecord) {
		r.Type = t
	}
}

// WithExamOutcome overrides the exam outcome.
func WithExamOutcome(o scheduler.ExamOutcome) ExamOption {
	return func(r *scheduler.ExamRecord) {
		r.Outcome = o
	}
}

// WithExamDate overrides the exam date.
func WithExamDate(date time.Time) ExamOption {
	return func(r *scheduler.ExamRecord) {
		r.Date = date
	}
}
