package sqlstore

import (
	"context"
	"time"

	"github.com/example/autoecole-scheduler/internal/persistence"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

// upsertPresenceSQL is a single statement so concurrent writers for the same pair
// serialize in the database and leave exactly one row.
const upsertPresenceSQL = `
	INSERT INTO presence (session_id, candidate_id, present, recorded_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (session_id, candidate_id)
	DO UPDATE SET present = excluded.present, recorded_at = excluded.recorded_at
`

// PresenceRepository implements persistence.PresenceRepository.
type PresenceRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

var _ persistence.PresenceRepository = (*PresenceRepository)(nil)

// NewPresenceRepository creates a presence repository over the pool.
func NewPresenceRepository(pool *ConnectionPool) *PresenceRepository {
	return &PresenceRepository{helper: NewQueryHelper(pool), mapper: NewErrorMapper()}
}

// UpsertPresence records attendance; the last write for a pair wins.
func (r *PresenceRepository) UpsertPresence(ctx context.Context, record scheduler.PresenceRecord) error {
	_, err := r.helper.Exec(ctx, upsertPresenceSQL,
		record.SessionID, record.CandidateID, boolToInt(record.Present), formatTime(record.RecordedAt))
	return r.mapper.MapError(err)
}

// ListPresence returns presence rows matching the filter ordered by session then candidate.
func (r *PresenceRepository) ListPresence(ctx context.Context, filter persistence.PresenceFilter) ([]scheduler.PresenceRecord, error) {
	query := "SELECT session_id, candidate_id, present, recorded_at FROM presence WHERE 1 = 1"
	var args []any
	if filter.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, filter.SessionID)
	}
	if filter.CandidateID != "" {
		query += " AND candidate_id = ?"
		args = append(args, filter.CandidateID)
	}
	query += " ORDER BY session_id ASC, candidate_id ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var records []scheduler.PresenceRecord
	for rows.Next() {
		var rec scheduler.PresenceRecord
		var present int
		var recordedAt string
		if err := rows.Scan(&rec.SessionID, &rec.CandidateID, &present, &recordedAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		rec.Present = present == 1
		if rec.RecordedAt, err = parseTime("recorded_at", recordedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return records, nil
}

// CountPresent counts the candidate's present rows for sessions of the given kind.
func (r *PresenceRepository) CountPresent(ctx context.Context, candidateID string, kind scheduler.Kind, since *time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM presence p
		JOIN sessions s ON s.id = p.session_id
		WHERE p.candidate_id = ? AND p.present = 1 AND s.kind = ?
	`
	args := []any{candidateID, string(kind)}
	if since != nil {
		query += " AND s.starts_at >= ?"
		args = append(args, formatTime(*since))
	}

	var count int64
	if err := r.helper.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, r.mapper.MapError(err)
	}
	return int(count), nil
}
