package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/autoecole-scheduler/internal/persistence"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

const sessionColumns = `s.id, s.course_plan_id, s.kind, s.starts_at, s.duration_minutes, s.instructor_id,
	s.price_cents, s.category, s.status, s.capacity, s.vehicle_id, s.candidate_id,
	s.meeting_latitude, s.meeting_longitude, s.meeting_address, s.distance_km, s.created_at, s.updated_at`

// SessionRepository implements persistence.SessionRepository and persistence.CommitmentRepository.
// Sessions, rosters and commitments share one repository because they are always written together.
type SessionRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

var (
	_ persistence.SessionRepository    = (*SessionRepository)(nil)
	_ persistence.CommitmentRepository = (*SessionRepository)(nil)
)

// NewSessionRepository creates a session repository over the pool.
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateSession inserts the session with its roster, commitments and presence rows.
func (r *SessionRepository) CreateSession(ctx context.Context, change persistence.SessionChange) error {
	session := change.Session
	if session.ID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO sessions (id, course_plan_id, kind, starts_at, ends_at, duration_minutes, instructor_id,
				price_cents, category, status, capacity, vehicle_id, candidate_id,
				meeting_latitude, meeting_longitude, meeting_address, distance_km, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		row := encodeSession(session)
		if _, err := r.helper.ExecTx(ctx, tx, query,
			session.ID,
			session.CoursePlanID,
			string(session.Kind),
			formatTime(session.Start),
			formatTime(session.End()),
			session.DurationMinutes,
			session.InstructorID,
			session.PriceCents,
			string(session.Category),
			string(session.Status),
			row.capacity,
			row.vehicleID,
			row.candidateID,
			row.latitude,
			row.longitude,
			row.address,
			row.distanceKm,
			formatTime(session.CreatedAt),
			formatTime(session.UpdatedAt),
		); err != nil {
			return r.mapper.MapError(err)
		}

		return r.writeDependents(ctx, tx, change)
	})
}

// UpdateSession rewrites the session and its roster, and replaces its commitments unless
// the change keeps them.
func (r *SessionRepository) UpdateSession(ctx context.Context, change persistence.SessionChange) error {
	session := change.Session
	if session.ID == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE sessions
			SET course_plan_id = ?, starts_at = ?, ends_at = ?, duration_minutes = ?, instructor_id = ?,
				price_cents = ?, category = ?, status = ?, capacity = ?, vehicle_id = ?, candidate_id = ?,
				meeting_latitude = ?, meeting_longitude = ?, meeting_address = ?, distance_km = ?, updated_at = ?
			WHERE id = ? AND kind = ?
		`
		row := encodeSession(session)
		result, err := r.helper.ExecTx(ctx, tx, query,
			session.CoursePlanID,
			formatTime(session.Start),
			formatTime(session.End()),
			session.DurationMinutes,
			session.InstructorID,
			session.PriceCents,
			string(session.Category),
			string(session.Status),
			row.capacity,
			row.vehicleID,
			row.candidateID,
			row.latitude,
			row.longitude,
			row.address,
			row.distanceKm,
			formatTime(session.UpdatedAt),
			session.ID,
			string(session.Kind),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}

		if _, err := r.helper.ExecTx(ctx, tx, "DELETE FROM enrollments WHERE session_id = ?", session.ID); err != nil {
			return r.mapper.MapError(err)
		}
		if !change.KeepCommitments {
			if _, err := r.helper.ExecTx(ctx, tx, "DELETE FROM commitments WHERE session_id = ?", session.ID); err != nil {
				return r.mapper.MapError(err)
			}
		}
		return r.writeDependents(ctx, tx, change)
	})
}

func (r *SessionRepository) writeDependents(ctx context.Context, tx *sql.Tx, change persistence.SessionChange) error {
	session := change.Session
	if session.Theory != nil {
		for position, candidateID := range session.Theory.Enrolled {
			if _, err := r.helper.ExecTx(ctx, tx,
				"INSERT INTO enrollments (session_id, candidate_id, roster_position) VALUES (?, ?, ?)",
				session.ID, candidateID, position,
			); err != nil {
				return r.mapper.MapError(err)
			}
		}
	}

	if !change.KeepCommitments {
		for _, c := range change.Commitments {
			if _, err := r.helper.ExecTx(ctx, tx,
				"INSERT INTO commitments (session_id, resource_kind, resource_id, starts_at, ends_at) VALUES (?, ?, ?, ?, ?)",
				c.SessionID, string(c.Resource.Kind), c.Resource.ID, formatTime(c.Interval.Start), formatTime(c.Interval.End),
			); err != nil {
				return r.mapper.MapError(err)
			}
		}
	}

	for _, p := range change.Presence {
		if _, err := r.helper.ExecTx(ctx, tx, upsertPresenceSQL,
			p.SessionID, p.CandidateID, boolToInt(p.Present), formatTime(p.RecordedAt),
		); err != nil {
			return r.mapper.MapError(err)
		}
	}
	return nil
}

// GetSession loads a session and, for theory sessions, its ordered roster.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (scheduler.Session, error) {
	if id == "" {
		return scheduler.Session{}, persistence.ErrNotFound
	}
	sessions, err := r.querySessions(ctx, "SELECT "+sessionColumns+" FROM sessions s WHERE s.id = ?", id)
	if err != nil {
		return scheduler.Session{}, err
	}
	if len(sessions) == 0 {
		return scheduler.Session{}, persistence.ErrNotFound
	}
	return sessions[0], nil
}

// ListSessions lists sessions matching the filter ordered by start.
func (r *SessionRepository) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]scheduler.Session, error) {
	query, args := buildSessionQuery(filter)
	return r.querySessions(ctx, query, args...)
}

func buildSessionQuery(filter persistence.SessionFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.InstructorID != "" {
		conditions = append(conditions, "s.instructor_id = ?")
		args = append(args, filter.InstructorID)
	}
	if filter.VehicleID != "" {
		conditions = append(conditions, "s.vehicle_id = ?")
		args = append(args, filter.VehicleID)
	}
	if filter.CandidateID != "" {
		conditions = append(conditions,
			"(s.candidate_id = ? OR EXISTS (SELECT 1 FROM enrollments e WHERE e.session_id = s.id AND e.candidate_id = ?))")
		args = append(args, filter.CandidateID, filter.CandidateID)
	}
	if filter.Kind != "" {
		conditions = append(conditions, "s.kind = ?")
		args = append(args, string(filter.Kind))
	}
	if len(filter.Statuses) > 0 {
		conditions = append(conditions, "s.status IN ("+placeholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, string(status))
		}
	}
	if filter.From != nil {
		conditions = append(conditions, "s.ends_at > ?")
		args = append(args, formatTime(*filter.From))
	}
	if filter.To != nil {
		conditions = append(conditions, "s.starts_at < ?")
		args = append(args, formatTime(*filter.To))
	}

	query := "SELECT " + sessionColumns + " FROM sessions s"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY s.starts_at ASC, s.id ASC"
	return query, args
}

// querySessions reads all session rows first and loads rosters afterwards, so no result set
// is held open while the next query runs on a single-connection pool.
func (r *SessionRepository) querySessions(ctx context.Context, query string, args ...any) ([]scheduler.Session, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}

	var sessions []scheduler.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, r.mapper.MapError(err)
	}
	rows.Close()

	if err := r.loadRosters(ctx, sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *SessionRepository) loadRosters(ctx context.Context, sessions []scheduler.Session) error {
	index := make(map[string]int)
	var ids []any
	for i, s := range sessions {
		if s.Theory != nil {
			index[s.ID] = i
			ids = append(ids, s.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	query := `
		SELECT session_id, candidate_id
		FROM enrollments
		WHERE session_id IN (` + placeholders(len(ids)) + `)
		ORDER BY session_id ASC, roster_position ASC
	`
	rows, err := r.helper.Query(ctx, query, ids...)
	if err != nil {
		return r.mapper.MapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var sessionID, candidateID string
		if err := rows.Scan(&sessionID, &candidateID); err != nil {
			return r.mapper.MapError(err)
		}
		theory := sessions[index[sessionID]].Theory
		theory.Enrolled = append(theory.Enrolled, candidateID)
	}
	return r.mapper.MapError(rows.Err())
}

// ListCommitments returns the commitments of the filter's resources overlapping its window.
func (r *SessionRepository) ListCommitments(ctx context.Context, filter persistence.CommitmentFilter) ([]scheduler.Commitment, error) {
	if len(filter.Resources) == 0 {
		return nil, nil
	}

	var resourceConds []string
	var args []any
	for _, ref := range filter.Resources {
		resourceConds = append(resourceConds, "(resource_kind = ? AND resource_id = ?)")
		args = append(args, string(ref.Kind), ref.ID)
	}
	query := `
		SELECT session_id, resource_kind, resource_id, starts_at, ends_at
		FROM commitments
		WHERE (` + strings.Join(resourceConds, " OR ") + `)`
	if !filter.To.IsZero() {
		query += " AND starts_at < ?"
		args = append(args, formatTime(filter.To))
	}
	if !filter.From.IsZero() {
		query += " AND ends_at > ?"
		args = append(args, formatTime(filter.From))
	}
	query += " ORDER BY starts_at ASC, session_id ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var commitments []scheduler.Commitment
	for rows.Next() {
		var c scheduler.Commitment
		var kind, startStr, endStr string
		if err := rows.Scan(&c.SessionID, &kind, &c.Resource.ID, &startStr, &endStr); err != nil {
			return nil, r.mapper.MapError(err)
		}
		c.Resource.Kind = scheduler.ResourceKind(kind)
		if c.Interval.Start, err = parseTime("starts_at", startStr); err != nil {
			return nil, err
		}
		if c.Interval.End, err = parseTime("ends_at", endStr); err != nil {
			return nil, err
		}
		commitments = append(commitments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return commitments, nil
}

// DeleteCommitments releases every commitment held by the session.
func (r *SessionRepository) DeleteCommitments(ctx context.Context, sessionID string) error {
	_, err := r.helper.Exec(ctx, "DELETE FROM commitments WHERE session_id = ?", sessionID)
	return r.mapper.MapError(err)
}

type sessionRow struct {
	capacity    sql.NullInt64
	vehicleID   sql.NullString
	candidateID sql.NullString
	latitude    sql.NullFloat64
	longitude   sql.NullFloat64
	address     sql.NullString
	distanceKm  float64
}

func encodeSession(session scheduler.Session) sessionRow {
	var row sessionRow
	if session.Theory != nil {
		row.capacity = sql.NullInt64{Int64: int64(session.Theory.Capacity), Valid: true}
	}
	if p := session.Practical; p != nil {
		row.vehicleID = nullString(p.VehicleID)
		row.candidateID = nullString(p.CandidateID)
		if c := p.MeetingPoint.Coordinates; c != nil {
			row.latitude = sql.NullFloat64{Float64: c.Latitude, Valid: true}
			row.longitude = sql.NullFloat64{Float64: c.Longitude, Valid: true}
		}
		row.address = nullString(p.MeetingPoint.Address)
		row.distanceKm = p.DistanceKm
	}
	return row
}

func scanSession(rows *sql.Rows) (scheduler.Session, error) {
	var (
		s                                    scheduler.Session
		row                                  sessionRow
		kind, status, category               string
		startStr, createdAtStr, updatedAtStr string
	)
	if err := rows.Scan(
		&s.ID,
		&s.CoursePlanID,
		&kind,
		&startStr,
		&s.DurationMinutes,
		&s.InstructorID,
		&s.PriceCents,
		&category,
		&status,
		&row.capacity,
		&row.vehicleID,
		&row.candidateID,
		&row.latitude,
		&row.longitude,
		&row.address,
		&row.distanceKm,
		&createdAtStr,
		&updatedAtStr,
	); err != nil {
		return scheduler.Session{}, NewErrorMapper().MapError(err)
	}

	s.Kind = scheduler.Kind(kind)
	s.Status = scheduler.Status(status)
	s.Category = scheduler.PermitCategory(category)

	var err error
	if s.Start, err = parseTime("starts_at", startStr); err != nil {
		return scheduler.Session{}, err
	}
	if s.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
		return scheduler.Session{}, err
	}
	if s.UpdatedAt, err = parseTime("updated_at", updatedAtStr); err != nil {
		return scheduler.Session{}, err
	}

	switch s.Kind {
	case scheduler.KindTheory:
		s.Theory = &scheduler.TheoryDetails{Capacity: int(row.capacity.Int64)}
	case scheduler.KindPractical:
		p := &scheduler.PracticalDetails{
			VehicleID:   row.vehicleID.String,
			CandidateID: row.candidateID.String,
			DistanceKm:  row.distanceKm,
		}
		if row.latitude.Valid && row.longitude.Valid {
			p.MeetingPoint.Coordinates = &scheduler.Coordinates{
				Latitude:  row.latitude.Float64,
				Longitude: row.longitude.Float64,
			}
		}
		p.MeetingPoint.Address = row.address.String
		s.Practical = p
	}
	return s, nil
}
