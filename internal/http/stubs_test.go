package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/autoecole-scheduler/internal/application"
	"github.com/example/autoecole-scheduler/internal/logging"
	"github.com/example/autoecole-scheduler/internal/persistence"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

type stubSessionService struct {
	createTheory    func(ctx context.Context, params application.CreateTheorySessionParams) (scheduler.Session, error)
	createPractical func(ctx context.Context, params application.CreatePracticalSessionParams) (scheduler.Session, error)
	reschedule      func(ctx context.Context, params application.RescheduleParams) (scheduler.Session, error)
	transition      func(ctx context.Context, sessionID string, next scheduler.Status) (scheduler.Session, error)
	cancel          func(ctx context.Context, sessionID string) (scheduler.Session, error)
	complete        func(ctx context.Context, params application.CompleteParams) (scheduler.Session, error)
	get             func(ctx context.Context, sessionID string) (scheduler.Session, error)
	list            func(ctx context.Context, params application.ListSessionsParams) ([]scheduler.Session, error)
	planSeries      func(ctx context.Context, params application.PlanTheorySeriesParams) (application.SeriesResult, error)
}

func (s *stubSessionService) CreateTheorySession(ctx context.Context, params application.CreateTheorySessionParams) (scheduler.Session, error) {
	return s.createTheory(ctx, params)
}

func (s *stubSessionService) CreatePracticalSession(ctx context.Context, params application.CreatePracticalSessionParams) (scheduler.Session, error) {
	return s.createPractical(ctx, params)
}

func (s *stubSessionService) Reschedule(ctx context.Context, params application.RescheduleParams) (scheduler.Session, error) {
	return s.reschedule(ctx, params)
}

func (s *stubSessionService) TransitionStatus(ctx context.Context, sessionID string, next scheduler.Status) (scheduler.Session, error) {
	return s.transition(ctx, sessionID, next)
}

func (s *stubSessionService) Cancel(ctx context.Context, sessionID string) (scheduler.Session, error) {
	return s.cancel(ctx, sessionID)
}

func (s *stubSessionService) Complete(ctx context.Context, params application.CompleteParams) (scheduler.Session, error) {
	return s.complete(ctx, params)
}

func (s *stubSessionService) GetSession(ctx context.Context, sessionID string) (scheduler.Session, error) {
	return s.get(ctx, sessionID)
}

func (s *stubSessionService) ListSessions(ctx context.Context, params application.ListSessionsParams) ([]scheduler.Session, error) {
	return s.list(ctx, params)
}

func (s *stubSessionService) PlanTheorySeries(ctx context.Context, params application.PlanTheorySeriesParams) (application.SeriesResult, error) {
	return s.planSeries(ctx, params)
}

type enrollmentCall struct {
	op          string
	sessionID   string
	candidateID string
	vehicleID   string
}

type stubEnrollmentService struct {
	calls []enrollmentCall
	err   error
}

func (s *stubEnrollmentService) Enroll(_ context.Context, sessionID, candidateID string) error {
	s.calls = append(s.calls, enrollmentCall{op: "enroll", sessionID: sessionID, candidateID: candidateID})
	return s.err
}

func (s *stubEnrollmentService) Unenroll(_ context.Context, sessionID, candidateID string) error {
	s.calls = append(s.calls, enrollmentCall{op: "unenroll", sessionID: sessionID, candidateID: candidateID})
	return s.err
}

func (s *stubEnrollmentService) AssignPractical(_ context.Context, params application.AssignPracticalParams) (scheduler.Session, error) {
	s.calls = append(s.calls, enrollmentCall{op: "assign", sessionID: params.SessionID, candidateID: params.CandidateID, vehicleID: params.VehicleID})
	if s.err != nil {
		return scheduler.Session{}, s.err
	}
	session := practicalFixture()
	session.Practical.CandidateID = params.CandidateID
	return session, nil
}

func (s *stubEnrollmentService) Unassign(_ context.Context, sessionID, candidateID string) error {
	s.calls = append(s.calls, enrollmentCall{op: "unassign", sessionID: sessionID, candidateID: candidateID})
	return s.err
}

type stubPresenceService struct {
	recorded []scheduler.PresenceRecord
	records  []scheduler.PresenceRecord
	filter   persistence.PresenceFilter
	count    int
	since    *time.Time
	err      error
}

func (s *stubPresenceService) RecordPresence(_ context.Context, sessionID, candidateID string, present bool) error {
	s.recorded = append(s.recorded, scheduler.PresenceRecord{SessionID: sessionID, CandidateID: candidateID, Present: present})
	return s.err
}

func (s *stubPresenceService) CountPresent(_ context.Context, _ string, _ scheduler.Kind, since *time.Time) (int, error) {
	s.since = since
	return s.count, s.err
}

func (s *stubPresenceService) ListPresence(_ context.Context, filter persistence.PresenceFilter) ([]scheduler.PresenceRecord, error) {
	s.filter = filter
	return s.records, s.err
}

type stubProgressionService struct {
	snapshot application.ProgressionSnapshot
	err      error
}

func (s *stubProgressionService) GetProgression(_ context.Context, candidateID string) (application.ProgressionSnapshot, error) {
	if s.err != nil {
		return application.ProgressionSnapshot{}, s.err
	}
	snapshot := s.snapshot
	snapshot.CandidateID = candidateID
	return snapshot, nil
}

func (s *stubProgressionService) Weights() application.ProgressionWeights {
	return application.DefaultProgressionWeights()
}

type stubAvailabilityService struct {
	query        application.AvailabilityQuery
	availability application.Availability
	slotsQuery   application.FreeSlotsQuery
	slots        []scheduler.Interval
	entries      []scheduler.CalendarEntry
	err          error
}

func (s *stubAvailabilityService) CheckAvailability(_ context.Context, query application.AvailabilityQuery) (application.Availability, error) {
	s.query = query
	return s.availability, s.err
}

func (s *stubAvailabilityService) FreeSlots(_ context.Context, query application.FreeSlotsQuery) ([]scheduler.Interval, error) {
	s.slotsQuery = query
	return s.slots, s.err
}

func (s *stubAvailabilityService) Agenda(_ context.Context, _ string, _, _ time.Time) ([]scheduler.CalendarEntry, error) {
	return s.entries, s.err
}

// stubDirectoryService embeds the interface so tests only implement what they exercise.
type stubDirectoryService struct {
	directoryService
	instructor scheduler.Instructor
	exam       application.RecordExamParams
	outcome    scheduler.ExamOutcome
	err        error
}

func (s *stubDirectoryService) RegisterInstructor(_ context.Context, params application.RegisterInstructorParams) (scheduler.Instructor, error) {
	if s.err != nil {
		return scheduler.Instructor{}, s.err
	}
	return scheduler.Instructor{
		ID:          "inst-new",
		FirstName:   params.FirstName,
		LastName:    params.LastName,
		HiredOn:     params.HiredOn,
		Specialties: params.Specialties,
	}, nil
}

func (s *stubDirectoryService) GetInstructor(_ context.Context, id string) (scheduler.Instructor, error) {
	if s.err != nil {
		return scheduler.Instructor{}, s.err
	}
	out := s.instructor
	out.ID = id
	return out, nil
}

func (s *stubDirectoryService) AddSpecialty(_ context.Context, id string, category scheduler.PermitCategory) (scheduler.Instructor, error) {
	out := s.instructor.WithSpecialty(category)
	out.ID = id
	return out, s.err
}

func (s *stubDirectoryService) RecordExam(_ context.Context, params application.RecordExamParams) (scheduler.ExamRecord, error) {
	s.exam = params
	if s.err != nil {
		return scheduler.ExamRecord{}, s.err
	}
	outcome := params.Outcome
	if outcome == "" {
		outcome = scheduler.ExamPending
	}
	return scheduler.ExamRecord{ID: "exam-1", CandidateID: params.CandidateID, Type: params.Type, Date: params.Date, Outcome: outcome}, nil
}

func (s *stubDirectoryService) GradeExam(_ context.Context, examID string, outcome scheduler.ExamOutcome) (scheduler.ExamRecord, error) {
	s.outcome = outcome
	if s.err != nil {
		return scheduler.ExamRecord{}, s.err
	}
	return scheduler.ExamRecord{ID: examID, CandidateID: "cand-1", Type: scheduler.ExamTheory, Outcome: outcome}, nil
}

var fixtureStart = time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)

func theoryFixture() scheduler.Session {
	return scheduler.Session{
		ID:              "sess-1",
		Kind:            scheduler.KindTheory,
		Start:           fixtureStart,
		DurationMinutes: 90,
		InstructorID:    "inst-1",
		Category:        "B",
		Status:          scheduler.StatusPlanned,
		Theory:          &scheduler.TheoryDetails{Capacity: 3, Enrolled: []string{"cand-1"}},
	}
}

func practicalFixture() scheduler.Session {
	return scheduler.Session{
		ID:              "sess-2",
		Kind:            scheduler.KindPractical,
		Start:           fixtureStart.Add(2 * time.Hour),
		DurationMinutes: 60,
		InstructorID:    "inst-2",
		Category:        "B",
		Status:          scheduler.StatusPlanned,
		Practical: &scheduler.PracticalDetails{
			VehicleID:    "veh-1",
			MeetingPoint: scheduler.MeetingPoint{Coordinates: &scheduler.Coordinates{Latitude: 48.85, Longitude: 2.35}},
		},
	}
}

func performRequest(t *testing.T, handler http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		payload, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return out
}

var discardLogger = logging.Discard()
