package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/example/autoecole-scheduler/internal/persistence"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

// DirectoryService registers the instructors, candidates and vehicles sessions refer to,
// together with candidates' exam attempts.
type DirectoryService struct {
	directory   DirectoryStore
	exams       persistence.ExamRepository
	locks       *resourceLocks
	progression *progressionCache
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewDirectoryService wires a directory service.
func NewDirectoryService(directory DirectoryStore, exams persistence.ExamRepository, idGenerator func() string, now func() time.Time) *DirectoryService {
	return NewDirectoryServiceWithLogger(directory, exams, idGenerator, now, nil)
}

// NewDirectoryServiceWithLogger wires a directory service with a specified logger.
func NewDirectoryServiceWithLogger(directory DirectoryStore, exams persistence.ExamRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *DirectoryService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &DirectoryService{
		directory:   directory,
		exams:       exams,
		locks:       newResourceLocks(),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *DirectoryService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "DirectoryService", operation, attrs...)
}

// RegisterInstructor validates and stores a new instructor.
func (s *DirectoryService) RegisterInstructor(ctx context.Context, params RegisterInstructorParams) (instructor scheduler.Instructor, err error) {
	if s == nil {
		err = fmt.Errorf("DirectoryService is nil")
		return
	}

	logger := s.loggerWith(ctx, "RegisterInstructor")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register instructor", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("instructor_id", instructor.ID).InfoContext(ctx, "instructor registered")
	}()

	firstName, lastName, email := strings.TrimSpace(params.FirstName), strings.TrimSpace(params.LastName), normalizeEmail(params.Email)
	vErr := validatePerson(firstName, lastName, email)
	draft := scheduler.Instructor{}
	for _, category := range params.Specialties {
		normalized := scheduler.NormalizeCategory(string(category))
		if normalized == "" {
			vErr.add("specialties", "specialty cannot be empty")
			continue
		}
		draft = draft.WithSpecialty(normalized)
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now().UTC()
	instructor = scheduler.Instructor{
		ID:          s.idGenerator(),
		FirstName:   firstName,
		LastName:    lastName,
		Email:       email,
		Phone:       strings.TrimSpace(params.Phone),
		HiredOn:     params.HiredOn,
		Specialties: draft.Specialties,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if createErr := s.directory.CreateInstructor(ctx, instructor); createErr != nil {
		instructor = scheduler.Instructor{}
		err = mapRepoError(createErr)
	}
	return
}

// GetInstructor returns an instructor by identifier.
func (s *DirectoryService) GetInstructor(ctx context.Context, id string) (scheduler.Instructor, error) {
	if s == nil {
		return scheduler.Instructor{}, fmt.Errorf("DirectoryService is nil")
	}
	instructor, err := s.directory.GetInstructor(ctx, id)
	if err != nil {
		err = mapRepoError(err)
		s.loggerWith(ctx, "GetInstructor", "instructor_id", id).
			ErrorContext(ctx, "failed to get instructor", "error", err, "error_kind", ErrorKind(err))
		return scheduler.Instructor{}, err
	}
	return instructor, nil
}

// ListInstructors returns every instructor ordered by last name then first name.
func (s *DirectoryService) ListInstructors(ctx context.Context) ([]scheduler.Instructor, error) {
	if s == nil {
		return nil, fmt.Errorf("DirectoryService is nil")
	}
	instructors, err := s.directory.ListInstructors(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	sort.SliceStable(instructors, func(i, j int) bool {
		if instructors[i].LastName != instructors[j].LastName {
			return instructors[i].LastName < instructors[j].LastName
		}
		return instructors[i].FirstName < instructors[j].FirstName
	})
	return instructors, nil
}

// AddSpecialty lets the instructor teach the permit category. Adding a held specialty is a no-op.
func (s *DirectoryService) AddSpecialty(ctx context.Context, instructorID string, category scheduler.PermitCategory) (scheduler.Instructor, error) {
	return s.changeSpecialty(ctx, "AddSpecialty", instructorID, category, scheduler.Instructor.WithSpecialty)
}

// RemoveSpecialty withdraws a permit category. Sessions already booked keep their instructor.
func (s *DirectoryService) RemoveSpecialty(ctx context.Context, instructorID string, category scheduler.PermitCategory) (scheduler.Instructor, error) {
	return s.changeSpecialty(ctx, "RemoveSpecialty", instructorID, category, scheduler.Instructor.WithoutSpecialty)
}

func (s *DirectoryService) changeSpecialty(ctx context.Context, operation, instructorID string, category scheduler.PermitCategory, apply func(scheduler.Instructor, scheduler.PermitCategory) scheduler.Instructor) (instructor scheduler.Instructor, err error) {
	if s == nil {
		err = fmt.Errorf("DirectoryService is nil")
		return
	}

	logger := s.loggerWith(ctx, operation,
		"instructor_id", instructorID,
		"category", string(category),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to change specialties", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "specialties changed", "specialties", len(instructor.Specialties))
	}()

	normalized := scheduler.NormalizeCategory(string(category))
	if normalized == "" {
		err = validationError("category", "category is required")
		return
	}

	unlock, err := s.locks.LockAll(ctx, scheduler.InstructorResource(instructorID).String())
	if err != nil {
		return
	}
	defer unlock()

	current, getErr := s.directory.GetInstructor(ctx, instructorID)
	if getErr != nil {
		err = mapRepoError(getErr)
		return
	}
	updated := apply(current, normalized)
	if len(updated.Specialties) == len(current.Specialties) {
		instructor = current
		return
	}
	updated.UpdatedAt = s.now().UTC()
	if updateErr := s.directory.UpdateInstructor(ctx, updated); updateErr != nil {
		err = mapRepoError(updateErr)
		return
	}
	instructor = updated
	return
}

// RegisterCandidate validates and stores a new candidate.
func (s *DirectoryService) RegisterCandidate(ctx context.Context, params RegisterCandidateParams) (candidate scheduler.Candidate, err error) {
	if s == nil {
		err = fmt.Errorf("DirectoryService is nil")
		return
	}

	logger := s.loggerWith(ctx, "RegisterCandidate")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register candidate", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("candidate_id", candidate.ID).InfoContext(ctx, "candidate registered")
	}()

	firstName, lastName, email := strings.TrimSpace(params.FirstName), strings.TrimSpace(params.LastName), normalizeEmail(params.Email)
	vErr := validatePerson(firstName, lastName, email)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now().UTC()
	candidate = scheduler.Candidate{
		ID:             s.idGenerator(),
		FirstName:      firstName,
		LastName:       lastName,
		Email:          email,
		Phone:          strings.TrimSpace(params.Phone),
		TargetCategory: scheduler.NormalizeCategory(string(params.TargetCategory)),
		RegisteredAt:   now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if createErr := s.directory.CreateCandidate(ctx, candidate); createErr != nil {
		candidate = scheduler.Candidate{}
		err = mapRepoError(createErr)
	}
	return
}

// GetCandidate returns a candidate by identifier.
func (s *DirectoryService) GetCandidate(ctx context.Context, id string) (scheduler.Candidate, error) {
	if s == nil {
		return scheduler.Candidate{}, fmt.Errorf("DirectoryService is nil")
	}
	candidate, err := s.directory.GetCandidate(ctx, id)
	if err != nil {
		return scheduler.Candidate{}, mapRepoError(err)
	}
	return candidate, nil
}

// ListCandidates returns every candidate.
func (s *DirectoryService) ListCandidates(ctx context.Context) ([]scheduler.Candidate, error) {
	if s == nil {
		return nil, fmt.Errorf("DirectoryService is nil")
	}
	candidates, err := s.directory.ListCandidates(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return candidates, nil
}

// RegisterVehicle validates and stores a new vehicle. Registrations are unique.
func (s *DirectoryService) RegisterVehicle(ctx context.Context, params RegisterVehicleParams) (vehicle scheduler.Vehicle, err error) {
	if s == nil {
		err = fmt.Errorf("DirectoryService is nil")
		return
	}

	logger := s.loggerWith(ctx, "RegisterVehicle", "registration", params.Registration)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register vehicle", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("vehicle_id", vehicle.ID).InfoContext(ctx, "vehicle registered")
	}()

	registration := strings.ToUpper(strings.TrimSpace(params.Registration))
	vErr := &ValidationError{}
	if registration == "" {
		vErr.add("registration", "registration is required")
	}
	category := scheduler.NormalizeCategory(string(params.Category))
	if category == "" {
		vErr.add("category", "category is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now().UTC()
	vehicle = scheduler.Vehicle{
		ID:           s.idGenerator(),
		Registration: registration,
		Model:        strings.TrimSpace(params.Model),
		Category:     category,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if createErr := s.directory.CreateVehicle(ctx, vehicle); createErr != nil {
		vehicle = scheduler.Vehicle{}
		err = mapRepoError(createErr)
	}
	return
}

// GetVehicle returns a vehicle by identifier.
func (s *DirectoryService) GetVehicle(ctx context.Context, id string) (scheduler.Vehicle, error) {
	if s == nil {
		return scheduler.Vehicle{}, fmt.Errorf("DirectoryService is nil")
	}
	vehicle, err := s.directory.GetVehicle(ctx, id)
	if err != nil {
		return scheduler.Vehicle{}, mapRepoError(err)
	}
	return vehicle, nil
}

// ListVehicles returns every vehicle.
func (s *DirectoryService) ListVehicles(ctx context.Context) ([]scheduler.Vehicle, error) {
	if s == nil {
		return nil, fmt.Errorf("DirectoryService is nil")
	}
	vehicles, err := s.directory.ListVehicles(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return vehicles, nil
}

// RecordExam stores an exam attempt for the candidate.
func (s *DirectoryService) RecordExam(ctx context.Context, params RecordExamParams) (record scheduler.ExamRecord, err error) {
	if s == nil {
		err = fmt.Errorf("DirectoryService is nil")
		return
	}

	logger := s.loggerWith(ctx, "RecordExam",
		"candidate_id", params.CandidateID,
		"exam_type", string(params.Type),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to record exam", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("exam_id", record.ID, "outcome", string(record.Outcome)).InfoContext(ctx, "exam recorded")
	}()

	outcome := params.Outcome
	if outcome == "" {
		outcome = scheduler.ExamPending
	}
	vErr := &ValidationError{}
	if strings.TrimSpace(params.CandidateID) == "" {
		vErr.add("candidate_id", "candidate is required")
	}
	if !params.Type.Valid() {
		vErr.add("type", "exam type must be THEORY or PRACTICAL")
	}
	if !outcome.Valid() {
		vErr.add("outcome", "outcome must be PENDING, PASSED or FAILED")
	}
	if params.Date.IsZero() {
		vErr.add("date", "date is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if _, getErr := s.directory.GetCandidate(ctx, params.CandidateID); getErr != nil {
		err = mapRepoError(getErr)
		return
	}

	record = scheduler.ExamRecord{
		ID:          s.idGenerator(),
		CandidateID: params.CandidateID,
		Type:        params.Type,
		Date:        params.Date.UTC(),
		Outcome:     outcome,
		CreatedAt:   s.now().UTC(),
	}
	if createErr := s.exams.CreateExamRecord(ctx, record); createErr != nil {
		record = scheduler.ExamRecord{}
		err = mapRepoError(createErr)
		return
	}
	s.progression.Invalidate(params.CandidateID)
	return
}

// GradeExam sets the outcome of an exam attempt once results are known.
func (s *DirectoryService) GradeExam(ctx context.Context, examID string, outcome scheduler.ExamOutcome) (record scheduler.ExamRecord, err error) {
	if s == nil {
		err = fmt.Errorf("DirectoryService is nil")
		return
	}

	logger := s.loggerWith(ctx, "GradeExam",
		"exam_id", examID,
		"outcome", string(outcome),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to grade exam", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "exam graded")
	}()

	if !outcome.Valid() {
		err = validationError("outcome", "outcome must be PENDING, PASSED or FAILED")
		return
	}
	current, getErr := s.exams.GetExamRecord(ctx, examID)
	if getErr != nil {
		err = mapRepoError(getErr)
		return
	}
	if updateErr := s.exams.UpdateExamOutcome(ctx, examID, outcome); updateErr != nil {
		err = mapRepoError(updateErr)
		return
	}
	current.Outcome = outcome
	record = current
	s.progression.Invalidate(current.CandidateID)
	return
}

// ListExams returns the candidate's exam attempts ordered by date.
func (s *DirectoryService) ListExams(ctx context.Context, candidateID string) ([]scheduler.ExamRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("DirectoryService is nil")
	}
	if _, err := s.directory.GetCandidate(ctx, candidateID); err != nil {
		return nil, mapRepoError(err)
	}
	records, err := s.exams.ListExamRecords(ctx, candidateID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return records, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validatePerson(firstName, lastName, email string) *ValidationError {
	vErr := &ValidationError{}
	if firstName == "" {
		vErr.add("first_name", "first name is required")
	}
	if lastName == "" {
		vErr.add("last_name", "last name is required")
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			vErr.add("email", "email is invalid")
		}
	}
	return vErr
}
