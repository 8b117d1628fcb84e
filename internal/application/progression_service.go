package application

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/example/autoecole-scheduler/internal/persistence"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

// countedStatuses are the statuses a session keeps counting as planned work.
var countedStatuses = []scheduler.Status{
	scheduler.StatusPlanned,
	scheduler.StatusInProgress,
	scheduler.StatusCompleted,
}

// ProgressionAggregator derives a candidate's progress from attendance and exam records.
// It never writes and takes no locks; snapshots may lag concurrent writes until invalidated.
type ProgressionAggregator struct {
	sessions   persistence.SessionRepository
	presence   persistence.PresenceRepository
	exams      persistence.ExamRepository
	candidates persistence.CandidateRepository
	cache      *progressionCache
	weights    ProgressionWeights
	now        func() time.Time
	logger     *slog.Logger
}

// NewProgressionAggregator wires an aggregator without a snapshot cache.
func NewProgressionAggregator(sessions persistence.SessionRepository, presence persistence.PresenceRepository, exams persistence.ExamRepository, candidates persistence.CandidateRepository, weights ProgressionWeights, now func() time.Time) *ProgressionAggregator {
	return NewProgressionAggregatorWithLogger(sessions, presence, exams, candidates, weights, now, nil)
}

// NewProgressionAggregatorWithLogger wires an aggregator with a specified logger.
func NewProgressionAggregatorWithLogger(sessions persistence.SessionRepository, presence persistence.PresenceRepository, exams persistence.ExamRepository, candidates persistence.CandidateRepository, weights ProgressionWeights, now func() time.Time, logger *slog.Logger) *ProgressionAggregator {
	if now == nil {
		now = time.Now
	}
	return &ProgressionAggregator{
		sessions:   sessions,
		presence:   presence,
		exams:      exams,
		candidates: candidates,
		weights:    normalizeWeights(weights),
		now:        now,
		logger:     defaultLogger(logger),
	}
}

func (a *ProgressionAggregator) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, a.logger, "ProgressionAggregator", operation, attrs...)
}

// Weights returns the weights applied to the overall ratio.
func (a *ProgressionAggregator) Weights() ProgressionWeights {
	return a.weights
}

// GetProgression computes the candidate's snapshot, or returns a cached one that no write has invalidated.
func (a *ProgressionAggregator) GetProgression(ctx context.Context, candidateID string) (snapshot ProgressionSnapshot, err error) {
	if a == nil {
		err = fmt.Errorf("ProgressionAggregator is nil")
		return
	}

	logger := a.loggerWith(ctx, "GetProgression", "candidate_id", candidateID)
	cached := false
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to compute progression", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "progression computed",
			"overall_ratio", snapshot.OverallRatio,
			"cached", cached,
		)
	}()

	if strings.TrimSpace(candidateID) == "" {
		err = validationError("candidate_id", "candidate is required")
		return
	}
	if hit, ok := a.cache.Get(candidateID); ok {
		snapshot, cached = hit, true
		return
	}
	generation := a.cache.Generation(candidateID)

	if _, getErr := a.candidates.GetCandidate(ctx, candidateID); getErr != nil {
		err = mapRepoError(getErr)
		return
	}

	sessions, listErr := a.sessions.ListSessions(ctx, persistence.SessionFilter{
		CandidateID: candidateID,
		Statuses:    countedStatuses,
	})
	if listErr != nil {
		err = mapRepoError(listErr)
		return
	}
	planned := make(map[scheduler.Kind]int, 2)
	for _, session := range sessions {
		planned[session.Kind]++
	}

	completed := make(map[scheduler.Kind]int, 2)
	for _, kind := range []scheduler.Kind{scheduler.KindTheory, scheduler.KindPractical} {
		count, countErr := a.presence.CountPresent(ctx, candidateID, kind, nil)
		if countErr != nil {
			err = mapRepoError(countErr)
			return
		}
		completed[kind] = count
	}

	records, examErr := a.exams.ListExamRecords(ctx, candidateID)
	if examErr != nil {
		err = mapRepoError(examErr)
		return
	}

	snapshot = computeProgression(candidateID, planned, completed, records, a.weights, a.now().UTC())
	a.cache.Store(candidateID, generation, snapshot)
	return
}

// computeProgression is the pure part of the aggregation.
func computeProgression(candidateID string, planned, completed map[scheduler.Kind]int, exams []scheduler.ExamRecord, weights ProgressionWeights, now time.Time) ProgressionSnapshot {
	theory := trackProgress(completed[scheduler.KindTheory], planned[scheduler.KindTheory])
	practical := trackProgress(completed[scheduler.KindPractical], planned[scheduler.KindPractical])

	stats := map[scheduler.ExamType]ExamStats{
		scheduler.ExamTheory:    {},
		scheduler.ExamPractical: {},
	}
	for _, record := range exams {
		s, ok := stats[record.Type]
		if !ok {
			continue
		}
		s.Attempts++
		switch record.Outcome {
		case scheduler.ExamPassed:
			s.Passed = true
		case scheduler.ExamPending:
			s.Pending++
		}
		stats[record.Type] = s
	}

	weights = normalizeWeights(weights)
	overall := (weights.Theory*theory.Ratio + weights.Practical*practical.Ratio) / (weights.Theory + weights.Practical)

	return ProgressionSnapshot{
		CandidateID:  candidateID,
		Theory:       theory,
		Practical:    practical,
		Exams:        stats,
		OverallRatio: clampRatio(overall),
		ComputedAt:   now,
	}
}

func trackProgress(completed, planned int) TrackProgress {
	progress := TrackProgress{Completed: completed, Planned: planned}
	if planned > 0 {
		progress.Ratio = clampRatio(float64(completed) / float64(planned))
	}
	return progress
}

func clampRatio(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// normalizeWeights falls back to equal weighting when the weights cannot form an average.
func normalizeWeights(w ProgressionWeights) ProgressionWeights {
	if w.Theory < 0 || w.Practical < 0 || w.Theory+w.Practical <= 0 ||
		math.IsNaN(w.Theory) || math.IsNaN(w.Practical) {
		return DefaultProgressionWeights()
	}
	return w
}
