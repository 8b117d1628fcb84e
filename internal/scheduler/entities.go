package scheduler

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// PermitCategory identifies a driving licence category such as "B" or "A2".
type PermitCategory string

// NormalizeCategory trims and upper-cases a permit category.
func NormalizeCategory(value string) PermitCategory {
	return PermitCategory(strings.ToUpper(strings.TrimSpace(value)))
}

// Instructor (moniteur) teaches theory or practical sessions within their specialties.
type Instructor struct {
	ID          string
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	HiredOn     time.Time
	Specialties []PermitCategory
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasSpecialty reports whether the instructor may teach the given category.
func (i Instructor) HasSpecialty(category PermitCategory) bool {
	return slices.Contains(i.Specialties, category)
}

// WithSpecialty returns a copy of the instructor with the category added to its specialty set.
func (i Instructor) WithSpecialty(category PermitCategory) Instructor {
	out := i.Clone()
	if !out.HasSpecialty(category) {
		out.Specialties = append(out.Specialties, category)
		slices.Sort(out.Specialties)
	}
	return out
}

// WithoutSpecialty returns a copy of the instructor with the category removed.
func (i Instructor) WithoutSpecialty(category PermitCategory) Instructor {
	out := i.Clone()
	out.Specialties = slices.DeleteFunc(out.Specialties, func(c PermitCategory) bool { return c == category })
	return out
}

// Clone returns a deep copy.
func (i Instructor) Clone() Instructor {
	out := i
	out.Specialties = slices.Clone(i.Specialties)
	return out
}

// FullName joins first and last name.
func (i Instructor) FullName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// Candidate is a learner preparing a permit.
type Candidate struct {
	ID             string
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	TargetCategory PermitCategory
	RegisteredAt   time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FullName joins first and last name.
func (c Candidate) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Vehicle is a school car or motorbike. Maintenance is tracked elsewhere.
type Vehicle struct {
	ID           string
	Registration string
	Model        string
	Category     PermitCategory
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PresenceRecord is the attendance fact for one candidate in one session.
type PresenceRecord struct {
	SessionID   string
	CandidateID string
	Present     bool
	RecordedAt  time.Time
}

// ExamType identifies which exam an exam record refers to.
type ExamType string

const (
	// ExamTheory is the highway code exam.
	ExamTheory ExamType = "THEORY"
	// ExamPractical is the driving test.
	ExamPractical ExamType = "PRACTICAL"
)

// Valid reports whether t is a known exam type.
func (t ExamType) Valid() bool {
	return t == ExamTheory || t == ExamPractical
}

// Track returns the session kind preparing for this exam.
func (t ExamType) Track() Kind {
	if t == ExamPractical {
		return KindPractical
	}
	return KindTheory
}

// ExamOutcome is the graded result of an exam attempt.
type ExamOutcome string

const (
	// ExamPending means the attempt is registered but not graded yet.
	ExamPending ExamOutcome = "PENDING"
	// ExamPassed means the candidate passed.
	ExamPassed ExamOutcome = "PASSED"
	// ExamFailed means the candidate failed.
	ExamFailed ExamOutcome = "FAILED"
)

// Valid reports whether o is a known outcome.
func (o ExamOutcome) Valid() bool {
	switch o {
	case ExamPending, ExamPassed, ExamFailed:
		return true
	default:
		return false
	}
}

// ExamRecord is one exam attempt by a candidate.
type ExamRecord struct {
	ID          string
	CandidateID string
	Type        ExamType
	Date        time.Time
	Outcome     ExamOutcome
	CreatedAt   time.Time
}

// ParseExamType converts a caller supplied string.
func ParseExamType(value string) (ExamType, error) {
	t := ExamType(strings.ToUpper(strings.TrimSpace(value)))
	if !t.Valid() {
		return "", fmt.Errorf("scheduler: unknown exam type %q", value)
	}
	return t, nil
}

// ParseExamOutcome converts a caller supplied string.
func ParseExamOutcome(value string) (ExamOutcome, error) {
	o := ExamOutcome(strings.ToUpper(strings.TrimSpace(value)))
	if !o.Valid() {
		return "", fmt.Errorf("scheduler: unknown exam outcome %q", value)
	}
	return o, nil
}
