package scheduler

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Kind tags the session variant.
type Kind string

const (
	// KindTheory is a group highway code class ("code").
	KindTheory Kind = "code"
	// KindPractical is a one-on-one driving lesson ("conduite").
	KindPractical Kind = "conduite"
)

// Valid reports whether k is a known session kind.
func (k Kind) Valid() bool {
	return k == KindTheory || k == KindPractical
}

// ParseKind converts a caller supplied string into a Kind.
func ParseKind(value string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(value)))
	if !kind.Valid() {
		return "", fmt.Errorf("scheduler: unknown session kind %q", value)
	}
	return kind, nil
}

// Session is a bookable training unit. The header fields are shared by both variants and
// exactly one of Theory or Practical is set, matching Kind.
type Session struct {
	ID              string
	CoursePlanID    string
	Kind            Kind
	Start           time.Time
	DurationMinutes int
	InstructorID    string
	PriceCents      int64
	Category        PermitCategory
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Theory    *TheoryDetails
	Practical *PracticalDetails
}

// TheoryDetails is the payload of a theory session.
type TheoryDetails struct {
	Capacity int
	Enrolled []string
}

// PracticalDetails is the payload of a practical session.
type PracticalDetails struct {
	VehicleID    string
	CandidateID  string
	MeetingPoint MeetingPoint
	DistanceKm   float64
}

// MeetingPoint is where a practical lesson starts: either coordinates or an address.
type MeetingPoint struct {
	Coordinates *Coordinates
	Address     string
}

// Coordinates is a WGS84 latitude/longitude pair.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// IsZero reports whether no meeting point was provided.
func (m MeetingPoint) IsZero() bool {
	return m.Coordinates == nil && strings.TrimSpace(m.Address) == ""
}

// Validate enforces that exactly one representation is used and coordinates are in range.
func (m MeetingPoint) Validate() error {
	hasAddress := strings.TrimSpace(m.Address) != ""
	if m.Coordinates != nil && hasAddress {
		return errors.New("meeting point must be either coordinates or an address")
	}
	if c := m.Coordinates; c != nil {
		if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
			return errors.New("meeting point coordinates are out of range")
		}
	}
	return nil
}

// String renders the meeting point for display.
func (m MeetingPoint) String() string {
	if m.Coordinates != nil {
		return fmt.Sprintf("%.6f,%.6f", m.Coordinates.Latitude, m.Coordinates.Longitude)
	}
	return m.Address
}

// SlotStart normalizes a requested start to UTC whole minutes, the granularity sessions are
// booked and stored at.
func SlotStart(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}

// Duration returns the session length.
func (s Session) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// End returns the exclusive end of the session.
func (s Session) End() time.Time {
	return s.Start.Add(s.Duration())
}

// Interval returns the half-open time range occupied by the session.
func (s Session) Interval() Interval {
	return Interval{Start: s.Start, End: s.End()}
}

// Date returns the calendar day of the session in its own location.
func (s Session) Date() time.Time {
	y, m, d := s.Start.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.Start.Location())
}

// VehicleID returns the bound vehicle for practical sessions.
func (s Session) VehicleID() string {
	if s.Practical == nil {
		return ""
	}
	return s.Practical.VehicleID
}

// Participants lists the candidates attached to the session in roster order.
func (s Session) Participants() []string {
	switch {
	case s.Theory != nil:
		return slices.Clone(s.Theory.Enrolled)
	case s.Practical != nil && s.Practical.CandidateID != "":
		return []string{s.Practical.CandidateID}
	default:
		return nil
	}
}

// HasParticipant reports whether the candidate is enrolled in or assigned to the session.
func (s Session) HasParticipant(candidateID string) bool {
	return slices.Contains(s.Participants(), candidateID)
}

// SeatsLeft returns the remaining capacity of a theory session; zero for practical sessions.
func (s Session) SeatsLeft() int {
	if s.Theory == nil {
		return 0
	}
	left := s.Theory.Capacity - len(s.Theory.Enrolled)
	if left < 0 {
		return 0
	}
	return left
}

// Clone returns a deep copy so callers can mutate payloads safely.
func (s Session) Clone() Session {
	out := s
	if s.Theory != nil {
		theory := *s.Theory
		theory.Enrolled = slices.Clone(s.Theory.Enrolled)
		out.Theory = &theory
	}
	if s.Practical != nil {
		practical := *s.Practical
		if s.Practical.MeetingPoint.Coordinates != nil {
			coords := *s.Practical.MeetingPoint.Coordinates
			practical.MeetingPoint.Coordinates = &coords
		}
		out.Practical = &practical
	}
	return out
}

// Validate checks the structural invariants of the session and returns field level messages.
func (s Session) Validate() map[string]string {
	problems := make(map[string]string)
	if !s.Kind.Valid() {
		problems["kind"] = "kind must be code or conduite"
	}
	if s.Start.IsZero() {
		problems["start"] = "start is required"
	}
	if s.DurationMinutes <= 0 {
		problems["duration"] = "duration must be positive"
	}
	if strings.TrimSpace(s.InstructorID) == "" {
		problems["instructor_id"] = "instructor is required"
	}
	if s.PriceCents < 0 {
		problems["price"] = "price cannot be negative"
	}
	if s.Status != "" && !s.Status.Valid() {
		problems["status"] = "status is unknown"
	}

	switch s.Kind {
	case KindTheory:
		if s.Practical != nil {
			problems["kind"] = "theory session cannot carry practical details"
		}
		if s.Theory == nil {
			problems["capacity"] = "capacity is required"
		} else {
			if s.Theory.Capacity <= 0 {
				problems["capacity"] = "capacity must be positive"
			} else if len(s.Theory.Enrolled) > s.Theory.Capacity {
				problems["capacity"] = "enrolled candidates exceed capacity"
			}
		}
	case KindPractical:
		if s.Theory != nil {
			problems["kind"] = "practical session cannot carry theory details"
		}
		if s.Practical == nil {
			problems["meeting_point"] = "practical details are required"
		} else {
			if err := s.Practical.MeetingPoint.Validate(); err != nil {
				problems["meeting_point"] = err.Error()
			}
			if s.Practical.DistanceKm < 0 {
				problems["distance_km"] = "distance cannot be negative"
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return problems
}
