package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/autoecole-scheduler/internal/application"
)

type progressionService interface {
	GetProgression(ctx context.Context, candidateID string) (application.ProgressionSnapshot, error)
	Weights() application.ProgressionWeights
}

type ProgressionHandler struct {
	service   progressionService
	responder responder
	logger    *slog.Logger
}

func NewProgressionHandler(service progressionService, logger *slog.Logger) *ProgressionHandler {
	base := defaultLogger(logger)
	return &ProgressionHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ProgressionHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ProgressionHandler", operation, attrs...)
}

func (h *ProgressionHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	candidateID, ok := pathParam(r, "candidateID")
	if !ok {
		h.log(r.Context(), "Get", "error_kind", "bad_request").ErrorContext(r.Context(), "missing candidate id for progression")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	logger := h.log(r.Context(), "Get", "candidate_id", candidateID)
	snapshot, err := h.service.GetProgression(r.Context(), candidateID)
	if err != nil {
		logger.ErrorContext(r.Context(), "progression lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toProgressionDTO(snapshot, h.service.Weights()))
}

type trackDTO struct {
	Completed int     `json:"completed"`
	Planned   int     `json:"planned"`
	Ratio     float64 `json:"ratio"`
}

type examStatsDTO struct {
	Attempts int  `json:"attempts"`
	Passed   bool `json:"passed"`
	Pending  int  `json:"pending"`
}

type weightsDTO struct {
	Theory    float64 `json:"theory"`
	Practical float64 `json:"practical"`
}

type progressionDTO struct {
	CandidateID  string                  `json:"candidate_id"`
	Theory       trackDTO                `json:"theory"`
	Practical    trackDTO                `json:"practical"`
	Exams        map[string]examStatsDTO `json:"exams"`
	OverallRatio float64                 `json:"overall_ratio"`
	Weights      weightsDTO              `json:"weights"`
	ComputedAt   string                  `json:"computed_at"`
}

func toProgressionDTO(snapshot application.ProgressionSnapshot, weights application.ProgressionWeights) progressionDTO {
	dto := progressionDTO{
		CandidateID:  snapshot.CandidateID,
		Theory:       trackDTO(snapshot.Theory),
		Practical:    trackDTO(snapshot.Practical),
		Exams:        make(map[string]examStatsDTO, len(snapshot.Exams)),
		OverallRatio: snapshot.OverallRatio,
		Weights:      weightsDTO(weights),
		ComputedAt:   formatTime(snapshot.ComputedAt),
	}
	for examType, stats := range snapshot.Exams {
		dto.Exams[string(examType)] = examStatsDTO(stats)
	}
	return dto
}
