package persistence

import (
	"time"

	"github.com/example/autoecole-scheduler/internal/scheduler"
)

// SessionFilter narrows session queries. Zero fields are ignored.
type SessionFilter struct {
	InstructorID string
	VehicleID    string
	// CandidateID matches theory rosters and practical assignments.
	CandidateID string
	Kind        scheduler.Kind
	Statuses    []scheduler.Status
	// From and To select sessions overlapping [From, To).
	From *time.Time
	To   *time.Time
}

// CommitmentFilter selects the commitments of the given resources overlapping [From, To).
type CommitmentFilter struct {
	Resources []scheduler.ResourceRef
	From      time.Time
	To        time.Time
}

// PresenceFilter narrows presence queries. At least one field should be set.
type PresenceFilter struct {
	SessionID   string
	CandidateID string
}

// SessionChange is everything written atomically for one session: the session row with its
// payload and roster, the full set of commitments it holds and any presence rows to upsert.
type SessionChange struct {
	Session     scheduler.Session
	Commitments []scheduler.Commitment
	// KeepCommitments leaves the stored commitments untouched on update; Commitments is ignored.
	KeepCommitments bool
	Presence        []scheduler.PresenceRecord
}
