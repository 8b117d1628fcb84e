package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/autoecole-scheduler/internal/application"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

type availabilityService interface {
	CheckAvailability(ctx context.Context, query application.AvailabilityQuery) (application.Availability, error)
	FreeSlots(ctx context.Context, query application.FreeSlotsQuery) ([]scheduler.Interval, error)
	Agenda(ctx context.Context, instructorID string, from, to time.Time) ([]scheduler.CalendarEntry, error)
}

// AvailabilityHandler answers read-only questions about instructor and vehicle calendars.
type AvailabilityHandler struct {
	service   availabilityService
	responder responder
	logger    *slog.Logger
}

func NewAvailabilityHandler(service availabilityService, logger *slog.Logger) *AvailabilityHandler {
	base := defaultLogger(logger)
	return &AvailabilityHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AvailabilityHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AvailabilityHandler", operation, attrs...)
}

func (h *AvailabilityHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	start, err := queryTime(r, "start")
	if err != nil {
		h.log(r.Context(), "Check", "error_kind", "bad_request").ErrorContext(r.Context(), "invalid start", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadQuery)
		return
	}
	duration, err := queryInt(r, "duration_minutes")
	if err != nil {
		h.log(r.Context(), "Check", "error_kind", "bad_request").ErrorContext(r.Context(), "invalid duration", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadQuery)
		return
	}

	query := application.AvailabilityQuery{
		InstructorID:     strings.TrimSpace(r.URL.Query().Get("instructor_id")),
		VehicleID:        strings.TrimSpace(r.URL.Query().Get("vehicle_id")),
		DurationMinutes:  duration,
		ExcludeSessionID: strings.TrimSpace(r.URL.Query().Get("exclude_session_id")),
	}
	if start != nil {
		query.Start = *start
	}

	logger := h.log(r.Context(), "Check", "instructor_id", query.InstructorID, "vehicle_id", query.VehicleID)
	availability, err := h.service.CheckAvailability(r.Context(), query)
	if err != nil {
		logger.ErrorContext(r.Context(), "availability check failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := availabilityResponse{Free: availability.Free, ConflictingSessionID: availability.ConflictingSessionID}
	if !availability.Free {
		resp.Resource = &resourceDTO{Kind: string(availability.Resource.Kind), ID: availability.Resource.ID}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *AvailabilityHandler) Agenda(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	instructorID, ok := pathParam(r, "instructorID")
	if !ok {
		h.log(r.Context(), "Agenda", "error_kind", "bad_request").ErrorContext(r.Context(), "missing instructor id for agenda")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}
	from, to, err := windowParams(r)
	if err != nil {
		h.log(r.Context(), "Agenda", "instructor_id", instructorID, "error_kind", "bad_request").ErrorContext(r.Context(), "invalid agenda window", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadQuery)
		return
	}

	logger := h.log(r.Context(), "Agenda", "instructor_id", instructorID)
	entries, err := h.service.Agenda(r.Context(), instructorID, from, to)
	if err != nil {
		logger.ErrorContext(r.Context(), "agenda lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := agendaResponse{Entries: make([]agendaEntryDTO, 0, len(entries))}
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, agendaEntryDTO{
			SessionID: entry.SessionID,
			Start:     formatTime(entry.Interval.Start),
			End:       formatTime(entry.Interval.End),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *AvailabilityHandler) FreeSlots(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	instructorID, ok := pathParam(r, "instructorID")
	if !ok {
		h.log(r.Context(), "FreeSlots", "error_kind", "bad_request").ErrorContext(r.Context(), "missing instructor id for free slots")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}
	from, to, err := windowParams(r)
	if err != nil {
		h.log(r.Context(), "FreeSlots", "instructor_id", instructorID, "error_kind", "bad_request").ErrorContext(r.Context(), "invalid free slot window", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadQuery)
		return
	}
	slotMinutes, err := queryInt(r, "slot_minutes")
	if err != nil {
		h.log(r.Context(), "FreeSlots", "instructor_id", instructorID, "error_kind", "bad_request").ErrorContext(r.Context(), "invalid slot length", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadQuery)
		return
	}

	logger := h.log(r.Context(), "FreeSlots", "instructor_id", instructorID, "slot_minutes", slotMinutes)
	slots, err := h.service.FreeSlots(r.Context(), application.FreeSlotsQuery{
		InstructorID: instructorID,
		From:         from,
		To:           to,
		SlotMinutes:  slotMinutes,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "free slot lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := freeSlotsResponse{Slots: make([]intervalDTO, 0, len(slots))}
	for _, slot := range slots {
		resp.Slots = append(resp.Slots, intervalDTO{Start: formatTime(slot.Start), End: formatTime(slot.End)})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// windowParams reads the mandatory from/to query pair.
func windowParams(r *http.Request) (time.Time, time.Time, error) {
	from, err := queryTime(r, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := queryTime(r, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if from == nil || to == nil {
		return time.Time{}, time.Time{}, errBadQuery
	}
	return *from, *to, nil
}

type resourceDTO struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type availabilityResponse struct {
	Free                 bool         `json:"free"`
	ConflictingSessionID string       `json:"conflicting_session_id,omitempty"`
	Resource             *resourceDTO `json:"resource,omitempty"`
}

type intervalDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type agendaEntryDTO struct {
	SessionID string `json:"session_id"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

type agendaResponse struct {
	Entries []agendaEntryDTO `json:"entries"`
}

type freeSlotsResponse struct {
	Slots []intervalDTO `json:"slots"`
}
