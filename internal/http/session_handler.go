package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/autoecole-scheduler/internal/application"
	"github.com/example/autoecole-scheduler/internal/recurrence"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

type sessionService interface {
	CreateTheorySession(ctx context.Context, params application.CreateTheorySessionParams) (scheduler.Session, error)
	CreatePracticalSession(ctx context.Context, params application.CreatePracticalSessionParams) (scheduler.Session, error)
	Reschedule(ctx context.Context, params application.RescheduleParams) (scheduler.Session, error)
	TransitionStatus(ctx context.Context, sessionID string, next scheduler.Status) (scheduler.Session, error)
	Cancel(ctx context.Context, sessionID string) (scheduler.Session, error)
	Complete(ctx context.Context, params application.CompleteParams) (scheduler.Session, error)
	GetSession(ctx context.Context, sessionID string) (scheduler.Session, error)
	ListSessions(ctx context.Context, params application.ListSessionsParams) ([]scheduler.Session, error)
	PlanTheorySeries(ctx context.Context, params application.PlanTheorySeriesParams) (application.SeriesResult, error)
}

type SessionHandler struct {
	service   sessionService
	responder responder
	logger    *slog.Logger
}

func NewSessionHandler(service sessionService, logger *slog.Logger) *SessionHandler {
	base := defaultLogger(logger)
	return &SessionHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *SessionHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SessionHandler", operation, attrs...)
}

func (h *SessionHandler) CreateTheory(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req theorySessionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "CreateTheory", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode theory session request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "CreateTheory", "instructor_id", req.InstructorID)
	session, err := h.service.CreateTheorySession(r.Context(), req.toParams())
	if err != nil {
		logger.ErrorContext(r.Context(), "theory session creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("session_id", session.ID).InfoContext(r.Context(), "theory session created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, sessionResponse{Session: toSessionDTO(session)})
}

func (h *SessionHandler) CreatePractical(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req practicalSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "CreatePractical", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode practical session request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "CreatePractical", "instructor_id", req.InstructorID, "vehicle_id", req.VehicleID)
	point, vErr := req.MeetingPoint.toMeetingPoint()
	if vErr != nil {
		logger.ErrorContext(r.Context(), "invalid meeting point", "error", vErr, "error_kind", application.ErrorKind(vErr))
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	session, err := h.service.CreatePracticalSession(r.Context(), application.CreatePracticalSessionParams{
		CoursePlanID:    req.CoursePlanID,
		InstructorID:    req.InstructorID,
		VehicleID:       req.VehicleID,
		CandidateID:     req.CandidateID,
		Start:           req.Start,
		DurationMinutes: req.DurationMinutes,
		PriceCents:      req.PriceCents,
		Category:        scheduler.NormalizeCategory(req.Category),
		MeetingPoint:    point,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "practical session creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("session_id", session.ID).InfoContext(r.Context(), "practical session created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, sessionResponse{Session: toSessionDTO(session)})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, ok := pathParam(r, "sessionID")
	if !ok {
		h.log(r.Context(), "Get", "error_kind", "bad_request").ErrorContext(r.Context(), "missing session id")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	logger := h.log(r.Context(), "Get", "session_id", sessionID)
	session, err := h.service.GetSession(r.Context(), sessionID)
	if err != nil {
		logger.ErrorContext(r.Context(), "session lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(session)})
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	params, err := listSessionsParams(r)
	if err != nil {
		h.log(r.Context(), "List", "error_kind", "bad_request").ErrorContext(r.Context(), "invalid session filters", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadQuery)
		return
	}

	logger := h.log(r.Context(), "List",
		"instructor_id", params.InstructorID,
		"candidate_id", params.CandidateID,
		"vehicle_id", params.VehicleID,
	)
	sessions, err := h.service.ListSessions(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "session listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := sessionListResponse{Sessions: make([]sessionDTO, 0, len(sessions))}
	for _, session := range sessions {
		resp.Sessions = append(resp.Sessions, toSessionDTO(session))
	}
	logger.DebugContext(r.Context(), "sessions listed", "count", len(resp.Sessions))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *SessionHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, ok := pathParam(r, "sessionID")
	if !ok {
		h.log(r.Context(), "Reschedule", "error_kind", "bad_request").ErrorContext(r.Context(), "missing session id for reschedule")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	var req rescheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Reschedule", "session_id", sessionID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode reschedule request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Reschedule", "session_id", sessionID)
	session, err := h.service.Reschedule(r.Context(), application.RescheduleParams{
		SessionID:       sessionID,
		Start:           req.Start,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "session reschedule failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "session rescheduled")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(session)})
}

func (h *SessionHandler) Transition(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, ok := pathParam(r, "sessionID")
	if !ok {
		h.log(r.Context(), "Transition", "error_kind", "bad_request").ErrorContext(r.Context(), "missing session id for transition")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Transition", "session_id", sessionID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode status request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Transition", "session_id", sessionID, "status", req.Status)
	next, err := scheduler.ParseStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if err != nil {
		vErr := fieldError("status", "status is unknown")
		logger.ErrorContext(r.Context(), "unknown status", "error", err, "error_kind", application.ErrorKind(vErr))
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	session, err := h.service.TransitionStatus(r.Context(), sessionID, next)
	if err != nil {
		logger.ErrorContext(r.Context(), "status transition failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "session status changed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(session)})
}

func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, ok := pathParam(r, "sessionID")
	if !ok {
		h.log(r.Context(), "Cancel", "error_kind", "bad_request").ErrorContext(r.Context(), "missing session id for cancel")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	logger := h.log(r.Context(), "Cancel", "session_id", sessionID)
	session, err := h.service.Cancel(r.Context(), sessionID)
	if err != nil {
		logger.ErrorContext(r.Context(), "session cancel failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "session cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(session)})
}

func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, ok := pathParam(r, "sessionID")
	if !ok {
		h.log(r.Context(), "Complete", "error_kind", "bad_request").ErrorContext(r.Context(), "missing session id for completion")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	var req completeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Complete", "session_id", sessionID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode completion request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Complete", "session_id", sessionID)
	session, err := h.service.Complete(r.Context(), application.CompleteParams{
		SessionID:  sessionID,
		Attendance: req.Attendance,
		DistanceKm: req.DistanceKm,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "session completion failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "session completed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(session)})
}

// PlanSeries books a weekly or daily run of theory sessions. Occurrences that cannot be
// booked are listed in the response instead of failing the whole request.
func (h *SessionHandler) PlanSeries(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req seriesRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "PlanSeries", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode series request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "PlanSeries", "instructor_id", req.Template.InstructorID, "frequency", req.Rule.Frequency)
	rule, vErr := req.Rule.toRule()
	if vErr != nil {
		logger.ErrorContext(r.Context(), "invalid recurrence rule", "error", vErr, "error_kind", application.ErrorKind(vErr))
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	result, err := h.service.PlanTheorySeries(r.Context(), application.PlanTheorySeriesParams{
		Template: req.Template.toParams(),
		Rule:     rule,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "series planning failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := seriesResponse{
		Created:  make([]sessionDTO, 0, len(result.Created)),
		Rejected: make([]seriesRejectionDTO, 0, len(result.Rejected)),
	}
	for _, session := range result.Created {
		resp.Created = append(resp.Created, toSessionDTO(session))
	}
	for _, rejection := range result.Rejected {
		_, payload := errorPayload(rejection.Err)
		resp.Rejected = append(resp.Rejected, seriesRejectionDTO{
			Start:                formatTime(rejection.Start),
			ErrorCode:            payload.ErrorCode,
			Message:              payload.Message,
			ConflictingSessionID: payload.ConflictingSessionID,
		})
	}

	logger.InfoContext(r.Context(), "series planned", "created", len(resp.Created), "rejected", len(resp.Rejected))
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, resp)
}

func listSessionsParams(r *http.Request) (application.ListSessionsParams, error) {
	query := r.URL.Query()
	params := application.ListSessionsParams{
		InstructorID: strings.TrimSpace(query.Get("instructor_id")),
		VehicleID:    strings.TrimSpace(query.Get("vehicle_id")),
		CandidateID:  strings.TrimSpace(query.Get("candidate_id")),
	}

	if raw := query.Get("kind"); raw != "" {
		kind, err := scheduler.ParseKind(raw)
		if err != nil {
			return application.ListSessionsParams{}, err
		}
		params.Kind = kind
	}

	for _, raw := range query["status"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			status, err := scheduler.ParseStatus(strings.ToUpper(part))
			if err != nil {
				return application.ListSessionsParams{}, err
			}
			params.Statuses = append(params.Statuses, status)
		}
	}

	var err error
	if params.From, err = queryTime(r, "from"); err != nil {
		return application.ListSessionsParams{}, err
	}
	if params.To, err = queryTime(r, "to"); err != nil {
		return application.ListSessionsParams{}, err
	}
	return params, nil
}

type theorySessionRequest struct {
	CoursePlanID    string    `json:"course_plan_id"`
	InstructorID    string    `json:"instructor_id"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
	Capacity        int       `json:"capacity"`
	PriceCents      int64     `json:"price_cents"`
	Category        string    `json:"category"`
}

func (r theorySessionRequest) toParams() application.CreateTheorySessionParams {
	return application.CreateTheorySessionParams{
		CoursePlanID:    strings.TrimSpace(r.CoursePlanID),
		InstructorID:    strings.TrimSpace(r.InstructorID),
		Start:           r.Start,
		DurationMinutes: r.DurationMinutes,
		Capacity:        r.Capacity,
		PriceCents:      r.PriceCents,
		Category:        scheduler.NormalizeCategory(r.Category),
	}
}

type practicalSessionRequest struct {
	CoursePlanID    string          `json:"course_plan_id"`
	InstructorID    string          `json:"instructor_id"`
	VehicleID       string          `json:"vehicle_id"`
	CandidateID     string          `json:"candidate_id"`
	Start           time.Time       `json:"start"`
	DurationMinutes int             `json:"duration_minutes"`
	PriceCents      int64           `json:"price_cents"`
	Category        string          `json:"category"`
	MeetingPoint    meetingPointDTO `json:"meeting_point"`
}

type meetingPointDTO struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Address   string   `json:"address,omitempty"`
}

func (m meetingPointDTO) toMeetingPoint() (scheduler.MeetingPoint, *application.ValidationError) {
	point := scheduler.MeetingPoint{Address: strings.TrimSpace(m.Address)}
	switch {
	case m.Latitude != nil && m.Longitude != nil:
		point.Coordinates = &scheduler.Coordinates{Latitude: *m.Latitude, Longitude: *m.Longitude}
	case m.Latitude != nil || m.Longitude != nil:
		return scheduler.MeetingPoint{}, fieldError("meeting_point", "meeting point needs both latitude and longitude")
	}
	return point, nil
}

type rescheduleRequest struct {
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type completeRequest struct {
	Attendance map[string]bool `json:"attendance"`
	DistanceKm float64         `json:"distance_km"`
}

type seriesRequest struct {
	Template theorySessionRequest `json:"template"`
	Rule     ruleDTO              `json:"rule"`
}

type ruleDTO struct {
	Frequency  string     `json:"frequency"`
	Weekdays   []string   `json:"weekdays"`
	EveryWeeks int        `json:"every_weeks"`
	StartsOn   *time.Time `json:"starts_on,omitempty"`
	EndsOn     *time.Time `json:"ends_on,omitempty"`
	Count      int        `json:"count"`
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
	"dimanche": time.Sunday, "lundi": time.Monday, "mardi": time.Tuesday, "mercredi": time.Wednesday,
	"jeudi": time.Thursday, "vendredi": time.Friday, "samedi": time.Saturday,
}

func (r ruleDTO) toRule() (recurrence.Rule, *application.ValidationError) {
	frequency, err := recurrence.ParseFrequency(strings.ToLower(strings.TrimSpace(r.Frequency)))
	if err != nil {
		return recurrence.Rule{}, fieldError("rule.frequency", "frequency must be daily or weekly")
	}

	rule := recurrence.Rule{
		Frequency:  frequency,
		EveryWeeks: r.EveryWeeks,
		EndsOn:     r.EndsOn,
		Count:      r.Count,
	}
	if r.StartsOn != nil {
		rule.StartsOn = *r.StartsOn
	}
	for _, name := range r.Weekdays {
		day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return recurrence.Rule{}, fieldError("rule.weekdays", "weekday is unknown")
		}
		rule.Weekdays = append(rule.Weekdays, day)
	}
	return rule, nil
}

type sessionDTO struct {
	ID              string        `json:"id"`
	CoursePlanID    string        `json:"course_plan_id,omitempty"`
	Kind            string        `json:"kind"`
	Start           string        `json:"start"`
	End             string        `json:"end"`
	DurationMinutes int           `json:"duration_minutes"`
	InstructorID    string        `json:"instructor_id"`
	PriceCents      int64         `json:"price_cents"`
	Category        string        `json:"category,omitempty"`
	Status          string        `json:"status"`
	CreatedAt       string        `json:"created_at,omitempty"`
	UpdatedAt       string        `json:"updated_at,omitempty"`
	Theory          *theoryDTO    `json:"theory,omitempty"`
	Practical       *practicalDTO `json:"practical,omitempty"`
}

type theoryDTO struct {
	Capacity  int      `json:"capacity"`
	Enrolled  []string `json:"enrolled"`
	SeatsLeft int      `json:"seats_left"`
}

type practicalDTO struct {
	VehicleID    string          `json:"vehicle_id,omitempty"`
	CandidateID  string          `json:"candidate_id,omitempty"`
	MeetingPoint meetingPointDTO `json:"meeting_point"`
	DistanceKm   float64         `json:"distance_km"`
}

type sessionResponse struct {
	Session sessionDTO `json:"session"`
}

type sessionListResponse struct {
	Sessions []sessionDTO `json:"sessions"`
}

type seriesRejectionDTO struct {
	Start                string `json:"start"`
	ErrorCode            string `json:"error_code"`
	Message              string `json:"message"`
	ConflictingSessionID string `json:"conflicting_session_id,omitempty"`
}

type seriesResponse struct {
	Created  []sessionDTO         `json:"created"`
	Rejected []seriesRejectionDTO `json:"rejected"`
}

func toSessionDTO(session scheduler.Session) sessionDTO {
	dto := sessionDTO{
		ID:              session.ID,
		CoursePlanID:    session.CoursePlanID,
		Kind:            string(session.Kind),
		Start:           formatTime(session.Start),
		End:             formatTime(session.End()),
		DurationMinutes: session.DurationMinutes,
		InstructorID:    session.InstructorID,
		PriceCents:      session.PriceCents,
		Category:        string(session.Category),
		Status:          string(session.Status),
		CreatedAt:       formatTime(session.CreatedAt),
		UpdatedAt:       formatTime(session.UpdatedAt),
	}
	if t := session.Theory; t != nil {
		enrolled := make([]string, len(t.Enrolled))
		copy(enrolled, t.Enrolled)
		dto.Theory = &theoryDTO{Capacity: t.Capacity, Enrolled: enrolled, SeatsLeft: session.SeatsLeft()}
	}
	if p := session.Practical; p != nil {
		point := meetingPointDTO{Address: p.MeetingPoint.Address}
		if c := p.MeetingPoint.Coordinates; c != nil {
			lat, lon := c.Latitude, c.Longitude
			point.Latitude, point.Longitude = &lat, &lon
		}
		dto.Practical = &practicalDTO{
			VehicleID:    p.VehicleID,
			CandidateID:  p.CandidateID,
			MeetingPoint: point,
			DistanceKm:   p.DistanceKm,
		}
	}
	return dto
}
