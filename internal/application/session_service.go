package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/autoecole-scheduler/internal/persistence"
	"github.com/example/autoecole-scheduler/internal/recurrence"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

// DefaultTheoryCapacity is the seat count of a classroom session created without one.
const DefaultTheoryCapacity = 20

// maxSeriesOccurrences bounds PlanTheorySeries expansions.
const maxSeriesOccurrences = 366

// SessionService drives the lifecycle of sessions: creation, moves, status changes and completion.
type SessionService struct {
	register        *AvailabilityRegister
	sessions        SessionStore
	locks           *resourceLocks
	progression     *progressionCache
	engine          *recurrence.Engine
	idGenerator     func() string
	now             func() time.Time
	defaultCapacity int
	logger          *slog.Logger
}

// NewSessionService wires a session service on top of an availability register.
func NewSessionService(register *AvailabilityRegister, engine *recurrence.Engine, idGenerator func() string, now func() time.Time) *SessionService {
	return NewSessionServiceWithLogger(register, engine, idGenerator, now, nil)
}

// NewSessionServiceWithLogger wires a session service with a specified logger.
func NewSessionServiceWithLogger(register *AvailabilityRegister, engine *recurrence.Engine, idGenerator func() string, now func() time.Time, logger *slog.Logger) *SessionService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if engine == nil {
		engine = recurrence.NewEngine(nil)
	}
	s := &SessionService{
		register:        register,
		engine:          engine,
		idGenerator:     idGenerator,
		now:             now,
		defaultCapacity: DefaultTheoryCapacity,
		logger:          defaultLogger(logger),
	}
	if register != nil {
		s.sessions = register.sessions
		s.locks = register.locks
	}
	return s
}

func (s *SessionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SessionService", operation, attrs...)
}

// CreateTheorySession books a classroom session for the instructor.
func (s *SessionService) CreateTheorySession(ctx context.Context, params CreateTheorySessionParams) (session scheduler.Session, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateTheorySession",
		"instructor_id", params.InstructorID,
		"course_plan_id", params.CoursePlanID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create theory session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("session_id", session.ID).InfoContext(ctx, "theory session created")
	}()

	session, err = s.register.reserve(ctx, s.theorySession(params))
	return
}

func (s *SessionService) theorySession(params CreateTheorySessionParams) scheduler.Session {
	capacity := params.Capacity
	if capacity == 0 {
		capacity = s.defaultCapacity
	}
	return scheduler.Session{
		ID:              s.idGenerator(),
		CoursePlanID:    strings.TrimSpace(params.CoursePlanID),
		Kind:            scheduler.KindTheory,
		Start:           params.Start,
		DurationMinutes: params.DurationMinutes,
		InstructorID:    strings.TrimSpace(params.InstructorID),
		PriceCents:      params.PriceCents,
		Category:        params.Category,
		Status:          scheduler.StatusPlanned,
		Theory:          &scheduler.TheoryDetails{Capacity: capacity},
	}
}

// CreatePracticalSession books a driving lesson. The vehicle and candidate are optional at this point.
func (s *SessionService) CreatePracticalSession(ctx context.Context, params CreatePracticalSessionParams) (session scheduler.Session, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreatePracticalSession",
		"instructor_id", params.InstructorID,
		"vehicle_id", params.VehicleID,
		"candidate_id", params.CandidateID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create practical session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("session_id", session.ID).InfoContext(ctx, "practical session created")
	}()

	session, err = s.register.reserve(ctx, scheduler.Session{
		ID:              s.idGenerator(),
		CoursePlanID:    strings.TrimSpace(params.CoursePlanID),
		Kind:            scheduler.KindPractical,
		Start:           params.Start,
		DurationMinutes: params.DurationMinutes,
		InstructorID:    strings.TrimSpace(params.InstructorID),
		PriceCents:      params.PriceCents,
		Category:        params.Category,
		Status:          scheduler.StatusPlanned,
		Practical: &scheduler.PracticalDetails{
			VehicleID:    strings.TrimSpace(params.VehicleID),
			CandidateID:  strings.TrimSpace(params.CandidateID),
			MeetingPoint: params.MeetingPoint,
		},
	})
	if err == nil && session.Practical.CandidateID != "" {
		s.progression.Invalidate(session.Practical.CandidateID)
	}
	return
}

// Reschedule moves a planned session, keeping its instructor and vehicle.
func (s *SessionService) Reschedule(ctx context.Context, params RescheduleParams) (session scheduler.Session, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Reschedule", "session_id", params.SessionID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to reschedule session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("start", session.Start).InfoContext(ctx, "session rescheduled")
	}()

	current, unlock, err := lockSession(ctx, s.locks, s.sessions, params.SessionID)
	if err != nil {
		return
	}
	defer unlock()

	if current.Status != scheduler.StatusPlanned {
		err = validationError("status", "only planned sessions can be rescheduled")
		return
	}

	updated := current.Clone()
	updated.Start = scheduler.SlotStart(params.Start)
	if params.DurationMinutes != 0 {
		updated.DurationMinutes = params.DurationMinutes
	}
	updated.UpdatedAt = s.now().UTC()
	if problems := updated.Validate(); problems != nil {
		vErr := &ValidationError{}
		vErr.addAll(problems)
		err = vErr
		return
	}

	unlockResources, err := s.locks.LockAll(ctx, resourceLockKeys(sessionResources(updated)...)...)
	if err != nil {
		return
	}
	defer unlockResources()

	commitments := scheduler.CommitmentsFor(updated)
	if err = s.register.ensureFree(ctx, commitments, updated.ID); err != nil {
		return
	}
	if updateErr := s.sessions.UpdateSession(ctx, persistence.SessionChange{
		Session:     updated,
		Commitments: commitments,
	}); updateErr != nil {
		err = mapRepoError(updateErr)
		return
	}
	session = updated
	return
}

// TransitionStatus moves the session to next. Cancelling releases its commitments in the same transaction.
func (s *SessionService) TransitionStatus(ctx context.Context, sessionID string, next scheduler.Status) (session scheduler.Session, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}

	logger := s.loggerWith(ctx, "TransitionStatus",
		"session_id", sessionID,
		"next_status", string(next),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to change session status", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "session status changed")
	}()

	current, unlock, err := lockSession(ctx, s.locks, s.sessions, sessionID)
	if err != nil {
		return
	}
	defer unlock()

	status, err := scheduler.Transition(current.Status, next)
	if err != nil {
		return
	}
	if status == current.Status {
		session = current
		return
	}

	if status == scheduler.StatusInProgress || status == scheduler.StatusCompleted {
		if vErr := lessonReadiness(current); vErr.HasErrors() {
			err = vErr
			return
		}
	}

	updated := current.Clone()
	updated.Status = status
	updated.UpdatedAt = s.now().UTC()

	change := persistence.SessionChange{Session: updated, KeepCommitments: true}
	if status == scheduler.StatusCancelled {
		change.KeepCommitments = false
	}
	if updateErr := s.sessions.UpdateSession(ctx, change); updateErr != nil {
		err = mapRepoError(updateErr)
		return
	}
	s.progression.Invalidate(updated.Participants()...)
	session = updated
	return
}

// Cancel calls the session off and frees its instructor and vehicle.
func (s *SessionService) Cancel(ctx context.Context, sessionID string) (scheduler.Session, error) {
	return s.TransitionStatus(ctx, sessionID, scheduler.StatusCancelled)
}

// Complete marks the session completed and records attendance for every participant in
// the same transaction. Participants missing from Attendance are recorded absent.
// Completing a completed session changes nothing.
func (s *SessionService) Complete(ctx context.Context, params CompleteParams) (session scheduler.Session, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Complete", "session_id", params.SessionID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to complete session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("participants", len(session.Participants())).InfoContext(ctx, "session completed")
	}()

	current, unlock, err := lockSession(ctx, s.locks, s.sessions, params.SessionID)
	if err != nil {
		return
	}
	defer unlock()

	status, err := scheduler.Transition(current.Status, scheduler.StatusCompleted)
	if err != nil {
		return
	}
	// Attendance of a completed session is corrected through the presence ledger.
	if current.Status == scheduler.StatusCompleted {
		session = current
		return
	}

	vErr := lessonReadiness(current)
	for candidateID := range params.Attendance {
		if !current.HasParticipant(candidateID) {
			vErr.add("attendance", fmt.Sprintf("candidate %s is not on the session", candidateID))
		}
	}
	if params.DistanceKm < 0 {
		vErr.add("distance_km", "distance cannot be negative")
	}
	if params.DistanceKm > 0 && current.Kind != scheduler.KindPractical {
		vErr.add("distance_km", "distance only applies to practical sessions")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now().UTC()
	updated := current.Clone()
	updated.Status = status
	updated.UpdatedAt = now
	if updated.Practical != nil && params.DistanceKm > 0 {
		updated.Practical.DistanceKm = params.DistanceKm
	}

	participants := updated.Participants()
	presence := make([]scheduler.PresenceRecord, 0, len(participants))
	for _, candidateID := range participants {
		presence = append(presence, scheduler.PresenceRecord{
			SessionID:   updated.ID,
			CandidateID: candidateID,
			Present:     params.Attendance[candidateID],
			RecordedAt:  now,
		})
	}

	if updateErr := s.sessions.UpdateSession(ctx, persistence.SessionChange{
		Session:         updated,
		KeepCommitments: true,
		Presence:        presence,
	}); updateErr != nil {
		err = mapRepoError(updateErr)
		return
	}
	s.progression.Invalidate(participants...)
	session = updated
	return
}

// lessonReadiness reports what a practical session still lacks before it can start or
// complete. Theory sessions are always ready.
func lessonReadiness(session scheduler.Session) *ValidationError {
	vErr := &ValidationError{}
	if session.Practical == nil {
		return vErr
	}
	if session.Practical.VehicleID == "" {
		vErr.add("vehicle_id", "vehicle is required before the lesson starts")
	}
	if session.Practical.CandidateID == "" {
		vErr.add("candidate_id", "candidate is required before the lesson starts")
	}
	return vErr
}

// GetSession returns a session by identifier.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (session scheduler.Session, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}

	logger := s.loggerWith(ctx, "GetSession", "session_id", sessionID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to get session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "session retrieved")
	}()

	session, err = s.sessions.GetSession(ctx, sessionID)
	err = mapRepoError(err)
	return
}

// ListSessions returns sessions matching the filter ordered by start.
func (s *SessionService) ListSessions(ctx context.Context, params ListSessionsParams) (sessions []scheduler.Session, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListSessions",
		"instructor_id", params.InstructorID,
		"candidate_id", params.CandidateID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list sessions", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "sessions listed", "count", len(sessions))
	}()

	if params.Kind != "" && !params.Kind.Valid() {
		err = validationError("kind", "kind must be code or conduite")
		return
	}
	for _, status := range params.Statuses {
		if !status.Valid() {
			err = validationError("status", fmt.Sprintf("unknown status %q", status))
			return
		}
	}
	if params.From != nil && params.To != nil && !params.To.After(*params.From) {
		err = validationError("to", "window end must be after its start")
		return
	}

	sessions, err = s.sessions.ListSessions(ctx, persistence.SessionFilter{
		InstructorID: params.InstructorID,
		VehicleID:    params.VehicleID,
		CandidateID:  params.CandidateID,
		Kind:         params.Kind,
		Statuses:     params.Statuses,
		From:         params.From,
		To:           params.To,
	})
	err = mapRepoError(err)
	return
}

// PlanTheorySeries books one theory session per occurrence of the rule. Occurrences are
// reserved independently: a conflict on one date is reported and the others still go through.
func (s *SessionService) PlanTheorySeries(ctx context.Context, params PlanTheorySeriesParams) (result SeriesResult, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}

	logger := s.loggerWith(ctx, "PlanTheorySeries",
		"instructor_id", params.Template.InstructorID,
		"course_plan_id", params.Template.CoursePlanID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to plan theory series", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "theory series planned",
			"created", len(result.Created),
			"rejected", len(result.Rejected),
		)
	}()

	if params.Template.DurationMinutes <= 0 {
		err = validationError("duration", "duration must be positive")
		return
	}
	occurrences, genErr := s.engine.GenerateOccurrences(
		params.Rule,
		params.Template.Start,
		time.Duration(params.Template.DurationMinutes)*time.Minute,
		recurrence.GenerateOptions{},
	)
	if genErr != nil {
		err = validationError("rule", genErr.Error())
		return
	}
	if len(occurrences) == 0 {
		err = validationError("rule", "rule produces no occurrence")
		return
	}
	if len(occurrences) > maxSeriesOccurrences {
		err = validationError("rule", fmt.Sprintf("rule produces more than %d occurrences", maxSeriesOccurrences))
		return
	}

	template := params.Template
	if strings.TrimSpace(template.CoursePlanID) == "" {
		template.CoursePlanID = s.idGenerator()
	}

	for _, occ := range occurrences {
		occurrence := template
		occurrence.Start = scheduler.SlotStart(occ.Start)
		session, reserveErr := s.register.reserve(ctx, s.theorySession(occurrence))
		if reserveErr != nil {
			if !isRejection(reserveErr) {
				err = reserveErr
				return
			}
			result.Rejected = append(result.Rejected, SeriesRejection{Start: occurrence.Start, Err: reserveErr})
			continue
		}
		result.Created = append(result.Created, session)
	}
	return
}

// lockSession takes the session's lock and loads it. Session locks are taken before any
// instructor or vehicle lock.
func lockSession(ctx context.Context, locks *resourceLocks, sessions SessionStore, sessionID string) (scheduler.Session, func(), error) {
	if strings.TrimSpace(sessionID) == "" {
		return scheduler.Session{}, nil, validationError("session_id", "session id is required")
	}
	unlock, err := locks.LockAll(ctx, sessionLockKey(sessionID))
	if err != nil {
		return scheduler.Session{}, nil, err
	}
	session, err := sessions.GetSession(ctx, sessionID)
	if err != nil {
		unlock()
		return scheduler.Session{}, nil, mapRepoError(err)
	}
	return session, unlock, nil
}
