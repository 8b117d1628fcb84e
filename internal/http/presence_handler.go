package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/autoecole-scheduler/internal/application"
	"github.com/example/autoecole-scheduler/internal/persistence"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

type presenceService interface {
	RecordPresence(ctx context.Context, sessionID, candidateID string, present bool) error
	CountPresent(ctx context.Context, candidateID string, kind scheduler.Kind, since *time.Time) (int, error)
	ListPresence(ctx context.Context, filter persistence.PresenceFilter) ([]scheduler.PresenceRecord, error)
}

type PresenceHandler struct {
	service   presenceService
	responder responder
	logger    *slog.Logger
}

func NewPresenceHandler(service presenceService, logger *slog.Logger) *PresenceHandler {
	base := defaultLogger(logger)
	return &PresenceHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *PresenceHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "PresenceHandler", operation, attrs...)
}

// Record upserts the attendance of one candidate; repeating the call keeps a single row.
func (h *PresenceHandler) Record(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, okSession := pathParam(r, "sessionID")
	candidateID, okCandidate := pathParam(r, "candidateID")
	if !okSession || !okCandidate {
		h.log(r.Context(), "Record", "error_kind", "bad_request").ErrorContext(r.Context(), "missing identifiers for presence")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	var req presenceRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Record", "session_id", sessionID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode presence request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Record", "session_id", sessionID, "candidate_id", candidateID)
	if req.Present == nil {
		vErr := fieldError("present", "required")
		logger.ErrorContext(r.Context(), "presence flag missing", "error", vErr, "error_kind", application.ErrorKind(vErr))
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	if err := h.service.RecordPresence(r.Context(), sessionID, candidateID, *req.Present); err != nil {
		logger.ErrorContext(r.Context(), "presence recording failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "presence recorded", "present", *req.Present)
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *PresenceHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	filter := persistence.PresenceFilter{
		SessionID:   strings.TrimSpace(r.URL.Query().Get("session_id")),
		CandidateID: strings.TrimSpace(r.URL.Query().Get("candidate_id")),
	}
	logger := h.log(r.Context(), "List", "session_id", filter.SessionID, "candidate_id", filter.CandidateID)

	records, err := h.service.ListPresence(r.Context(), filter)
	if err != nil {
		logger.ErrorContext(r.Context(), "presence listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := presenceListResponse{Records: make([]presenceDTO, 0, len(records))}
	for _, record := range records {
		resp.Records = append(resp.Records, presenceDTO{
			SessionID:   record.SessionID,
			CandidateID: record.CandidateID,
			Present:     record.Present,
			RecordedAt:  formatTime(record.RecordedAt),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// Count returns how many sessions of a kind the candidate attended, optionally since a date.
func (h *PresenceHandler) Count(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	candidateID, ok := pathParam(r, "candidateID")
	if !ok {
		h.log(r.Context(), "Count", "error_kind", "bad_request").ErrorContext(r.Context(), "missing candidate id for presence count")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	kind, err := scheduler.ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		h.log(r.Context(), "Count", "candidate_id", candidateID, "error_kind", "bad_request").ErrorContext(r.Context(), "invalid kind filter", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadQuery)
		return
	}
	since, err := queryTime(r, "since")
	if err != nil {
		h.log(r.Context(), "Count", "candidate_id", candidateID, "error_kind", "bad_request").ErrorContext(r.Context(), "invalid since filter", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadQuery)
		return
	}

	logger := h.log(r.Context(), "Count", "candidate_id", candidateID, "kind", kind)
	count, err := h.service.CountPresent(r.Context(), candidateID, kind, since)
	if err != nil {
		logger.ErrorContext(r.Context(), "presence count failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, presenceCountResponse{
		CandidateID: candidateID,
		Kind:        string(kind),
		Present:     count,
	})
}

type presenceRequest struct {
	Present *bool `json:"present"`
}

type presenceDTO struct {
	SessionID   string `json:"session_id"`
	CandidateID string `json:"candidate_id"`
	Present     bool   `json:"present"`
	RecordedAt  string `json:"recorded_at"`
}

type presenceListResponse struct {
	Records []presenceDTO `json:"records"`
}

type presenceCountResponse struct {
	CandidateID string `json:"candidate_id"`
	Kind        string `json:"kind"`
	Present     int    `json:"present"`
}
