package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/autoecole-scheduler/internal/application"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

type enrollmentService interface {
	Enroll(ctx context.Context, sessionID, candidateID string) error
	Unenroll(ctx context.Context, sessionID, candidateID string) error
	AssignPractical(ctx context.Context, params application.AssignPracticalParams) (scheduler.Session, error)
	Unassign(ctx context.Context, sessionID, candidateID string) error
}

// EnrollmentHandler manages theory rosters and practical assignments.
type EnrollmentHandler struct {
	service   enrollmentService
	responder responder
	logger    *slog.Logger
}

func NewEnrollmentHandler(service enrollmentService, logger *slog.Logger) *EnrollmentHandler {
	base := defaultLogger(logger)
	return &EnrollmentHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *EnrollmentHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "EnrollmentHandler", operation, attrs...)
}

func (h *EnrollmentHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, ok := pathParam(r, "sessionID")
	if !ok {
		h.log(r.Context(), "Enroll", "error_kind", "bad_request").ErrorContext(r.Context(), "missing session id for enrollment")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	var req candidateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Enroll", "session_id", sessionID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode enrollment request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	candidateID := strings.TrimSpace(req.CandidateID)
	logger := h.log(r.Context(), "Enroll", "session_id", sessionID, "candidate_id", candidateID)
	if err := h.service.Enroll(r.Context(), sessionID, candidateID); err != nil {
		logger.ErrorContext(r.Context(), "enrollment failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "candidate enrolled")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *EnrollmentHandler) Unenroll(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, okSession := pathParam(r, "sessionID")
	candidateID, okCandidate := pathParam(r, "candidateID")
	if !okSession || !okCandidate {
		h.log(r.Context(), "Unenroll", "error_kind", "bad_request").ErrorContext(r.Context(), "missing identifiers for unenrollment")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	logger := h.log(r.Context(), "Unenroll", "session_id", sessionID, "candidate_id", candidateID)
	if err := h.service.Unenroll(r.Context(), sessionID, candidateID); err != nil {
		logger.ErrorContext(r.Context(), "unenrollment failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "candidate unenrolled")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *EnrollmentHandler) Assign(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, ok := pathParam(r, "sessionID")
	if !ok {
		h.log(r.Context(), "Assign", "error_kind", "bad_request").ErrorContext(r.Context(), "missing session id for assignment")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	var req assignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Assign", "session_id", sessionID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode assignment request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Assign", "session_id", sessionID, "candidate_id", req.CandidateID, "vehicle_id", req.VehicleID)
	session, err := h.service.AssignPractical(r.Context(), application.AssignPracticalParams{
		SessionID:   sessionID,
		CandidateID: strings.TrimSpace(req.CandidateID),
		VehicleID:   strings.TrimSpace(req.VehicleID),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "assignment failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "candidate assigned")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(session)})
}

func (h *EnrollmentHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, okSession := pathParam(r, "sessionID")
	candidateID, okCandidate := pathParam(r, "candidateID")
	if !okSession || !okCandidate {
		h.log(r.Context(), "Unassign", "error_kind", "bad_request").ErrorContext(r.Context(), "missing identifiers for unassignment")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	logger := h.log(r.Context(), "Unassign", "session_id", sessionID, "candidate_id", candidateID)
	if err := h.service.Unassign(r.Context(), sessionID, candidateID); err != nil {
		logger.ErrorContext(r.Context(), "unassignment failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "candidate unassigned")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type candidateRequest struct {
	CandidateID string `json:"candidate_id"`
}

type assignmentRequest struct {
	CandidateID string `json:"candidate_id"`
	VehicleID   string `json:"vehicle_id"`
}
