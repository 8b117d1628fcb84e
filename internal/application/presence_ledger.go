package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/autoecole-scheduler/internal/persistence"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

// PresenceLedger records who attended which session. Each (session, candidate) pair has at
// most one record and the last write wins.
type PresenceLedger struct {
	sessions    persistence.SessionRepository
	presence    persistence.PresenceRepository
	candidates  persistence.CandidateRepository
	progression *progressionCache
	now         func() time.Time
	logger      *slog.Logger
}

// NewPresenceLedger wires a presence ledger.
func NewPresenceLedger(sessions persistence.SessionRepository, presence persistence.PresenceRepository, candidates persistence.CandidateRepository, now func() time.Time) *PresenceLedger {
	return NewPresenceLedgerWithLogger(sessions, presence, candidates, now, nil)
}

// NewPresenceLedgerWithLogger wires a presence ledger with a specified logger.
func NewPresenceLedgerWithLogger(sessions persistence.SessionRepository, presence persistence.PresenceRepository, candidates persistence.CandidateRepository, now func() time.Time, logger *slog.Logger) *PresenceLedger {
	if now == nil {
		now = time.Now
	}
	return &PresenceLedger{
		sessions:   sessions,
		presence:   presence,
		candidates: candidates,
		now:        now,
		logger:     defaultLogger(logger),
	}
}

func (l *PresenceLedger) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, l.logger, "PresenceLedger", operation, attrs...)
}

// RecordPresence upserts the attendance of the candidate for the session.
func (l *PresenceLedger) RecordPresence(ctx context.Context, sessionID, candidateID string, present bool) (err error) {
	if l == nil {
		return fmt.Errorf("PresenceLedger is nil")
	}

	logger := l.loggerWith(ctx, "RecordPresence",
		"session_id", sessionID,
		"candidate_id", candidateID,
		"present", present,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to record presence", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "presence recorded")
	}()

	vErr := &ValidationError{}
	if strings.TrimSpace(sessionID) == "" {
		vErr.add("session_id", "session id is required")
	}
	if strings.TrimSpace(candidateID) == "" {
		vErr.add("candidate_id", "candidate is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if _, getErr := l.sessions.GetSession(ctx, sessionID); getErr != nil {
		err = mapRepoError(getErr)
		return
	}
	if _, getErr := l.candidates.GetCandidate(ctx, candidateID); getErr != nil {
		err = mapRepoError(getErr)
		return
	}

	if upsertErr := l.presence.UpsertPresence(ctx, scheduler.PresenceRecord{
		SessionID:   sessionID,
		CandidateID: candidateID,
		Present:     present,
		RecordedAt:  l.now().UTC(),
	}); upsertErr != nil {
		err = mapRepoError(upsertErr)
		return
	}
	l.progression.Invalidate(candidateID)
	return
}

// CountPresent counts the sessions of the given kind the candidate attended, optionally only
// those starting at or after since.
func (l *PresenceLedger) CountPresent(ctx context.Context, candidateID string, kind scheduler.Kind, since *time.Time) (count int, err error) {
	if l == nil {
		err = fmt.Errorf("PresenceLedger is nil")
		return
	}

	logger := l.loggerWith(ctx, "CountPresent",
		"candidate_id", candidateID,
		"kind", string(kind),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to count presence", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "presence counted", "count", count)
	}()

	if !kind.Valid() {
		err = validationError("kind", "kind must be code or conduite")
		return
	}
	count, err = l.presence.CountPresent(ctx, candidateID, kind, since)
	err = mapRepoError(err)
	return
}

// ListPresence returns the attendance records of a session or of a candidate.
func (l *PresenceLedger) ListPresence(ctx context.Context, filter persistence.PresenceFilter) (records []scheduler.PresenceRecord, err error) {
	if l == nil {
		err = fmt.Errorf("PresenceLedger is nil")
		return
	}

	logger := l.loggerWith(ctx, "ListPresence",
		"session_id", filter.SessionID,
		"candidate_id", filter.CandidateID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list presence", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "presence listed", "count", len(records))
	}()

	if filter.SessionID == "" && filter.CandidateID == "" {
		err = validationError("filter", "session or candidate is required")
		return
	}
	records, err = l.presence.ListPresence(ctx, filter)
	err = mapRepoError(err)
	return
}
