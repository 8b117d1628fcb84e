package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/example/autoecole-scheduler/internal/persistence"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

// EnrollmentManager puts candidates on sessions: seats of theory sessions and the single
// candidate slot of practical sessions.
type EnrollmentManager struct {
	register    *AvailabilityRegister
	sessions    SessionStore
	directory   DirectoryStore
	locks       *resourceLocks
	progression *progressionCache
	now         func() time.Time
	logger      *slog.Logger
}

// NewEnrollmentManager wires an enrollment manager sharing the register's lock table.
func NewEnrollmentManager(register *AvailabilityRegister, now func() time.Time) *EnrollmentManager {
	return NewEnrollmentManagerWithLogger(register, now, nil)
}

// NewEnrollmentManagerWithLogger wires an enrollment manager with a specified logger.
func NewEnrollmentManagerWithLogger(register *AvailabilityRegister, now func() time.Time, logger *slog.Logger) *EnrollmentManager {
	if now == nil {
		now = time.Now
	}
	m := &EnrollmentManager{register: register, now: now, logger: defaultLogger(logger)}
	if register != nil {
		m.sessions = register.sessions
		m.directory = register.directory
		m.locks = register.locks
	}
	return m
}

func (m *EnrollmentManager) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, m.logger, "EnrollmentManager", operation, attrs...)
}

// Enroll seats the candidate in a theory session. It fails with ErrAlreadyEnrolled when the
// candidate is on the roster and with ErrCapacityExceeded when no seat is left.
func (m *EnrollmentManager) Enroll(ctx context.Context, sessionID, candidateID string) (err error) {
	if m == nil {
		return fmt.Errorf("EnrollmentManager is nil")
	}

	logger := m.loggerWith(ctx, "Enroll",
		"session_id", sessionID,
		"candidate_id", candidateID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to enroll candidate", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "candidate enrolled")
	}()

	if err = m.requireCandidate(ctx, candidateID); err != nil {
		return
	}

	current, unlock, err := lockSession(ctx, m.locks, m.sessions, sessionID)
	if err != nil {
		return
	}
	defer unlock()

	if err = requireOpen(current, scheduler.KindTheory); err != nil {
		return
	}
	if current.HasParticipant(candidateID) {
		err = ErrAlreadyEnrolled
		return
	}
	if current.SeatsLeft() <= 0 {
		err = ErrCapacityExceeded
		return
	}

	updated := current.Clone()
	updated.Theory.Enrolled = append(updated.Theory.Enrolled, candidateID)
	updated.UpdatedAt = m.now().UTC()
	if updateErr := m.sessions.UpdateSession(ctx, persistence.SessionChange{
		Session:         updated,
		KeepCommitments: true,
	}); updateErr != nil {
		err = mapRepoError(updateErr)
		return
	}
	m.progression.Invalidate(candidateID)
	return
}

// Unenroll frees the candidate's seat. Removing a candidate who is not enrolled is a no-op.
func (m *EnrollmentManager) Unenroll(ctx context.Context, sessionID, candidateID string) (err error) {
	if m == nil {
		return fmt.Errorf("EnrollmentManager is nil")
	}

	logger := m.loggerWith(ctx, "Unenroll",
		"session_id", sessionID,
		"candidate_id", candidateID,
	)
	removed := false
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to unenroll candidate", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "candidate unenrolled", "removed", removed)
	}()

	current, unlock, err := lockSession(ctx, m.locks, m.sessions, sessionID)
	if err != nil {
		return
	}
	defer unlock()

	if current.Kind != scheduler.KindTheory {
		err = validationError("session_id", "enrollment applies to theory sessions")
		return
	}
	if !current.HasParticipant(candidateID) {
		return
	}
	if current.Status.Terminal() {
		err = validationError("status", fmt.Sprintf("session is %s", strings.ToLower(string(current.Status))))
		return
	}

	updated := current.Clone()
	updated.Theory.Enrolled = slices.DeleteFunc(updated.Theory.Enrolled, func(id string) bool { return id == candidateID })
	updated.UpdatedAt = m.now().UTC()
	if updateErr := m.sessions.UpdateSession(ctx, persistence.SessionChange{
		Session:         updated,
		KeepCommitments: true,
	}); updateErr != nil {
		err = mapRepoError(updateErr)
		return
	}
	removed = true
	m.progression.Invalidate(candidateID)
	return
}

// AssignPractical binds the candidate and a vehicle to a practical session. The vehicle and
// the instructor must be free for the session's interval. A session already holding another
// candidate fails with ErrCapacityExceeded; assigning the same pair twice fails with ErrAlreadyEnrolled.
func (m *EnrollmentManager) AssignPractical(ctx context.Context, params AssignPracticalParams) (session scheduler.Session, err error) {
	if m == nil {
		err = fmt.Errorf("EnrollmentManager is nil")
		return
	}

	logger := m.loggerWith(ctx, "AssignPractical",
		"session_id", params.SessionID,
		"candidate_id", params.CandidateID,
		"vehicle_id", params.VehicleID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to assign practical session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "practical session assigned")
	}()

	if err = m.requireCandidate(ctx, params.CandidateID); err != nil {
		return
	}

	current, unlock, err := lockSession(ctx, m.locks, m.sessions, params.SessionID)
	if err != nil {
		return
	}
	defer unlock()

	if err = requireOpen(current, scheduler.KindPractical); err != nil {
		return
	}

	vehicleID := strings.TrimSpace(params.VehicleID)
	if vehicleID == "" {
		vehicleID = current.Practical.VehicleID
	}
	if vehicleID == "" {
		err = validationError("vehicle_id", "vehicle is required")
		return
	}

	assigned := current.Practical.CandidateID
	if assigned != "" && assigned != params.CandidateID {
		err = ErrCapacityExceeded
		return
	}
	if assigned == params.CandidateID && current.Practical.VehicleID == vehicleID {
		err = ErrAlreadyEnrolled
		return
	}

	updated := current.Clone()
	updated.Practical.CandidateID = params.CandidateID
	updated.Practical.VehicleID = vehicleID
	updated.UpdatedAt = m.now().UTC()

	unlockResources, err := m.locks.LockAll(ctx, resourceLockKeys(sessionResources(updated)...)...)
	if err != nil {
		return
	}
	defer unlockResources()

	if err = m.register.checkReferences(ctx, updated); err != nil {
		return
	}

	commitments := scheduler.CommitmentsFor(updated)
	if err = m.register.ensureFree(ctx, commitments, updated.ID); err != nil {
		return
	}
	if updateErr := m.sessions.UpdateSession(ctx, persistence.SessionChange{
		Session:     updated,
		Commitments: commitments,
	}); updateErr != nil {
		err = mapRepoError(updateErr)
		return
	}
	m.progression.Invalidate(params.CandidateID)
	session = updated
	return
}

// Unassign removes the candidate from a practical session and keeps the vehicle booked.
// It is a no-op when the candidate is not the one assigned.
func (m *EnrollmentManager) Unassign(ctx context.Context, sessionID, candidateID string) (err error) {
	if m == nil {
		return fmt.Errorf("EnrollmentManager is nil")
	}

	logger := m.loggerWith(ctx, "Unassign",
		"session_id", sessionID,
		"candidate_id", candidateID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to unassign candidate", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "candidate unassigned")
	}()

	current, unlock, err := lockSession(ctx, m.locks, m.sessions, sessionID)
	if err != nil {
		return
	}
	defer unlock()

	if current.Kind != scheduler.KindPractical {
		err = validationError("session_id", "assignment applies to practical sessions")
		return
	}
	if current.Practical.CandidateID == "" || current.Practical.CandidateID != candidateID {
		return
	}
	if current.Status.Terminal() {
		err = validationError("status", fmt.Sprintf("session is %s", strings.ToLower(string(current.Status))))
		return
	}

	updated := current.Clone()
	updated.Practical.CandidateID = ""
	updated.UpdatedAt = m.now().UTC()
	if updateErr := m.sessions.UpdateSession(ctx, persistence.SessionChange{
		Session:         updated,
		KeepCommitments: true,
	}); updateErr != nil {
		err = mapRepoError(updateErr)
		return
	}
	m.progression.Invalidate(candidateID)
	return
}

func (m *EnrollmentManager) requireCandidate(ctx context.Context, candidateID string) error {
	if strings.TrimSpace(candidateID) == "" {
		return validationError("candidate_id", "candidate is required")
	}
	if _, err := m.directory.GetCandidate(ctx, candidateID); err != nil {
		return mapRepoError(err)
	}
	return nil
}

// requireOpen rejects sessions of another kind and sessions that are completed or cancelled.
func requireOpen(session scheduler.Session, kind scheduler.Kind) error {
	if session.Kind != kind {
		if kind == scheduler.KindTheory {
			return validationError("session_id", "enrollment applies to theory sessions")
		}
		return validationError("session_id", "assignment applies to practical sessions")
	}
	if session.Status.Terminal() {
		return validationError("status", fmt.Sprintf("session is %s", strings.ToLower(string(session.Status))))
	}
	return nil
}
