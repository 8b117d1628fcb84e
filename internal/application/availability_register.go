package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/autoecole-scheduler/internal/persistence"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

// AvailabilityRegister answers "is this instructor/vehicle free" and books sessions so that no
// resource is ever committed twice for overlapping intervals.
type AvailabilityRegister struct {
	sessions    SessionStore
	directory   DirectoryStore
	locks       *resourceLocks
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewAvailabilityRegister constructs a register with its own lock table.
func NewAvailabilityRegister(sessions SessionStore, directory DirectoryStore, idGenerator func() string, now func() time.Time) *AvailabilityRegister {
	return newAvailabilityRegister(sessions, directory, newResourceLocks(), idGenerator, now, nil)
}

func newAvailabilityRegister(sessions SessionStore, directory DirectoryStore, locks *resourceLocks, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AvailabilityRegister {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if locks == nil {
		locks = newResourceLocks()
	}
	return &AvailabilityRegister{
		sessions:    sessions,
		directory:   directory,
		locks:       locks,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (r *AvailabilityRegister) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, r.logger, "AvailabilityRegister", operation, attrs...)
}

// CheckAvailability reports whether the instructor, and the vehicle when given, are free for
// [Start, Start+Duration). It reads without locking; Reserve re-checks under the locks.
func (r *AvailabilityRegister) CheckAvailability(ctx context.Context, query AvailabilityQuery) (availability Availability, err error) {
	if r == nil {
		err = fmt.Errorf("AvailabilityRegister is nil")
		return
	}

	logger := r.loggerWith(ctx, "CheckAvailability",
		"instructor_id", query.InstructorID,
		"vehicle_id", query.VehicleID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to check availability", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "availability checked",
			"free", availability.Free,
			"conflicting_session_id", availability.ConflictingSessionID,
		)
	}()

	vErr := &ValidationError{}
	if strings.TrimSpace(query.InstructorID) == "" {
		vErr.add("instructor_id", "instructor is required")
	}
	if query.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if query.DurationMinutes <= 0 {
		vErr.add("duration", "duration must be positive")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	start := scheduler.SlotStart(query.Start)
	interval := scheduler.Interval{
		Start: start,
		End:   start.Add(time.Duration(query.DurationMinutes) * time.Minute),
	}
	requested := []scheduler.Commitment{{Resource: scheduler.InstructorResource(query.InstructorID), Interval: interval}}
	if query.VehicleID != "" {
		requested = append(requested, scheduler.Commitment{Resource: scheduler.VehicleResource(query.VehicleID), Interval: interval})
	}

	conflict, err := r.firstConflict(ctx, requested, query.ExcludeSessionID)
	if err != nil {
		return
	}
	if conflict == nil {
		availability = Availability{Free: true}
		return
	}
	availability = Availability{
		ConflictingSessionID: conflict.WithSessionID,
		Resource:             conflict.Resource,
	}
	return
}

// Reserve books a new session: the instructor and vehicle locks are taken, availability is
// re-checked under them and the session is stored together with its commitments.
func (r *AvailabilityRegister) Reserve(ctx context.Context, params ReserveParams) (session scheduler.Session, err error) {
	if r == nil {
		err = fmt.Errorf("AvailabilityRegister is nil")
		return
	}

	logger := r.loggerWith(ctx, "Reserve",
		"instructor_id", params.Session.InstructorID,
		"vehicle_id", params.Session.VehicleID(),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to reserve session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("session_id", session.ID).InfoContext(ctx, "session reserved")
	}()

	session, err = r.reserve(ctx, params.Session)
	return
}

func (r *AvailabilityRegister) reserve(ctx context.Context, requested scheduler.Session) (scheduler.Session, error) {
	session := requested.Clone()
	if session.ID == "" {
		session.ID = r.idGenerator()
	}
	if session.Status == "" {
		session.Status = scheduler.StatusPlanned
	}
	now := r.now().UTC()
	session.Start = scheduler.SlotStart(session.Start)
	session.CreatedAt = now
	session.UpdatedAt = now

	vErr := &ValidationError{}
	if session.ID == "" {
		vErr.add("id", "session id is required")
	}
	if session.Status != scheduler.StatusPlanned {
		vErr.add("status", "new sessions must be planned")
	}
	vErr.addAll(session.Validate())
	if vErr.HasErrors() {
		return scheduler.Session{}, vErr
	}

	unlock, err := r.locks.LockAll(ctx, resourceLockKeys(sessionResources(session)...)...)
	if err != nil {
		return scheduler.Session{}, err
	}
	defer unlock()

	// Specialties change under the instructor lock, so they are read while holding it.
	if err := r.checkReferences(ctx, session); err != nil {
		return scheduler.Session{}, err
	}

	commitments := scheduler.CommitmentsFor(session)
	if err := r.ensureFree(ctx, commitments, ""); err != nil {
		return scheduler.Session{}, err
	}

	if err := r.sessions.CreateSession(ctx, persistence.SessionChange{
		Session:     session,
		Commitments: commitments,
	}); err != nil {
		return scheduler.Session{}, mapRepoError(err)
	}
	return session, nil
}

// Release drops every commitment the session holds. Releasing twice is not an error.
func (r *AvailabilityRegister) Release(ctx context.Context, sessionID string) (err error) {
	if r == nil {
		return fmt.Errorf("AvailabilityRegister is nil")
	}

	logger := r.loggerWith(ctx, "Release", "session_id", sessionID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to release session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "session commitments released")
	}()

	if strings.TrimSpace(sessionID) == "" {
		err = validationError("session_id", "session id is required")
		return
	}
	if deleteErr := r.sessions.DeleteCommitments(ctx, sessionID); deleteErr != nil {
		err = mapRepoError(deleteErr)
	}
	return
}

// FreeSlots returns the gaps of at least SlotMinutes in the instructor's calendar within [From, To).
func (r *AvailabilityRegister) FreeSlots(ctx context.Context, query FreeSlotsQuery) (slots []scheduler.Interval, err error) {
	if r == nil {
		err = fmt.Errorf("AvailabilityRegister is nil")
		return
	}

	logger := r.loggerWith(ctx, "FreeSlots", "instructor_id", query.InstructorID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to compute free slots", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "free slots computed", "count", len(slots))
	}()

	window := scheduler.Interval{Start: query.From.UTC(), End: query.To.UTC()}
	vErr := &ValidationError{}
	if strings.TrimSpace(query.InstructorID) == "" {
		vErr.add("instructor_id", "instructor is required")
	}
	if !window.Valid() {
		vErr.add("to", "window end must be after its start")
	}
	if query.SlotMinutes < 0 {
		vErr.add("slot_minutes", "slot length cannot be negative")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if _, getErr := r.directory.GetInstructor(ctx, query.InstructorID); getErr != nil {
		err = mapRepoError(getErr)
		return
	}

	commitments, listErr := r.sessions.ListCommitments(ctx, persistence.CommitmentFilter{
		Resources: []scheduler.ResourceRef{scheduler.InstructorResource(query.InstructorID)},
		From:      window.Start,
		To:        window.End,
	})
	if listErr != nil {
		err = mapRepoError(listErr)
		return
	}

	calendar, calErr := scheduler.NewCalendar(commitments)
	if calErr != nil {
		err = fmt.Errorf("instructor %s calendar is inconsistent: %w", query.InstructorID, calErr)
		return
	}
	slots = calendar.Gaps(window, time.Duration(query.SlotMinutes)*time.Minute)
	return
}

// Agenda lists the commitments of an instructor overlapping [from, to), ordered by start.
func (r *AvailabilityRegister) Agenda(ctx context.Context, instructorID string, from, to time.Time) (entries []scheduler.CalendarEntry, err error) {
	if r == nil {
		err = fmt.Errorf("AvailabilityRegister is nil")
		return
	}

	logger := r.loggerWith(ctx, "Agenda", "instructor_id", instructorID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to load agenda", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "agenda loaded", "count", len(entries))
	}()

	window := scheduler.Interval{Start: from.UTC(), End: to.UTC()}
	if !window.Valid() {
		err = validationError("to", "window end must be after its start")
		return
	}
	if _, getErr := r.directory.GetInstructor(ctx, instructorID); getErr != nil {
		err = mapRepoError(getErr)
		return
	}

	commitments, listErr := r.sessions.ListCommitments(ctx, persistence.CommitmentFilter{
		Resources: []scheduler.ResourceRef{scheduler.InstructorResource(instructorID)},
		From:      window.Start,
		To:        window.End,
	})
	if listErr != nil {
		err = mapRepoError(listErr)
		return
	}
	calendar, calErr := scheduler.NewCalendar(commitments)
	if calErr != nil {
		err = fmt.Errorf("instructor %s calendar is inconsistent: %w", instructorID, calErr)
		return
	}
	entries = calendar.Entries()
	return
}

// checkReferences makes sure the instructor, vehicle and candidate of a session exist and
// that the instructor teaches the session's permit category.
func (r *AvailabilityRegister) checkReferences(ctx context.Context, session scheduler.Session) error {
	instructor, err := r.directory.GetInstructor(ctx, session.InstructorID)
	if err != nil {
		return mapRepoError(err)
	}

	vErr := &ValidationError{}
	if session.Category != "" && !instructor.HasSpecialty(session.Category) {
		vErr.add("instructor_id", fmt.Sprintf("instructor does not teach category %s", session.Category))
	}

	if vehicleID := session.VehicleID(); vehicleID != "" {
		vehicle, err := r.directory.GetVehicle(ctx, vehicleID)
		if err != nil {
			return mapRepoError(err)
		}
		if session.Category != "" && vehicle.Category != "" && vehicle.Category != session.Category {
			vErr.add("vehicle_id", fmt.Sprintf("vehicle is not suited for category %s", session.Category))
		}
	}

	for _, candidateID := range session.Participants() {
		if _, err := r.directory.GetCandidate(ctx, candidateID); err != nil {
			return mapRepoError(err)
		}
	}

	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

// ensureFree fails with a ConflictError when a requested commitment overlaps a stored one.
// Callers hold the locks of every resource in requested.
func (r *AvailabilityRegister) ensureFree(ctx context.Context, requested []scheduler.Commitment, excludeSessionID string) error {
	conflict, err := r.firstConflict(ctx, requested, excludeSessionID)
	if err != nil {
		return err
	}
	if conflict != nil {
		return conflictError(*conflict)
	}
	return nil
}

func (r *AvailabilityRegister) firstConflict(ctx context.Context, requested []scheduler.Commitment, excludeSessionID string) (*scheduler.Conflict, error) {
	if len(requested) == 0 {
		return nil, nil
	}

	filter := persistence.CommitmentFilter{
		From: requested[0].Interval.Start,
		To:   requested[0].Interval.End,
	}
	for _, c := range requested {
		filter.Resources = append(filter.Resources, c.Resource)
		if c.Interval.Start.Before(filter.From) {
			filter.From = c.Interval.Start
		}
		if c.Interval.End.After(filter.To) {
			filter.To = c.Interval.End
		}
	}

	existing, err := r.sessions.ListCommitments(ctx, filter)
	if err != nil {
		return nil, mapRepoError(err)
	}
	conflicts := scheduler.DetectConflicts(existing, requested, excludeSessionID)
	if len(conflicts) == 0 {
		return nil, nil
	}
	return &conflicts[0], nil
}

// sessionResources lists the resources a session occupies.
func sessionResources(session scheduler.Session) []scheduler.ResourceRef {
	refs := []scheduler.ResourceRef{scheduler.InstructorResource(session.InstructorID)}
	if vehicleID := session.VehicleID(); vehicleID != "" {
		refs = append(refs, scheduler.VehicleResource(vehicleID))
	}
	return refs
}

// isRejection reports whether err is a business rejection rather than an infrastructure failure.
func isRejection(err error) bool {
	var vErr *ValidationError
	return errors.Is(err, ErrSlotConflict) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrCapacityExceeded) ||
		errors.As(err, &vErr)
}
