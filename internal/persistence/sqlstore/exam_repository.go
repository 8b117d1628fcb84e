package sqlstore

import (
	"context"
	"fmt"

	"github.com/example/autoecole-scheduler/internal/persistence"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

// ExamRepository implements persistence.ExamRepository.
type ExamRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

var _ persistence.ExamRepository = (*ExamRepository)(nil)

// NewExamRepository creates an exam repository over the pool.
func NewExamRepository(pool *ConnectionPool) *ExamRepository {
	return &ExamRepository{helper: NewQueryHelper(pool), mapper: NewErrorMapper()}
}

// CreateExamRecord inserts an exam attempt.
func (r *ExamRepository) CreateExamRecord(ctx context.Context, record scheduler.ExamRecord) error {
	if record.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.helper.Exec(ctx, `
		INSERT INTO exam_records (id, candidate_id, exam_type, exam_date, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		record.CandidateID,
		string(record.Type),
		formatTime(record.Date),
		string(record.Outcome),
		formatTime(record.CreatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateExamOutcome grades an attempt.
func (r *ExamRepository) UpdateExamOutcome(ctx context.Context, id string, outcome scheduler.ExamOutcome) error {
	result, err := r.helper.Exec(ctx, "UPDATE exam_records SET outcome = ? WHERE id = ?", string(outcome), id)
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
	return nil
}

// GetExamRecord loads one attempt.
func (r *ExamRepository) GetExamRecord(ctx context.Context, id string) (scheduler.ExamRecord, error) {
	records, err := r.query(ctx, "WHERE id = ?", id)
	if err != nil {
		return scheduler.ExamRecord{}, err
	}
	if len(records) == 0 {
		return scheduler.ExamRecord{}, persistence.ErrNotFound
	}
	return records[0], nil
}

// ListExamRecords returns the candidate's attempts by date.
func (r *ExamRepository) ListExamRecords(ctx context.Context, candidateID string) ([]scheduler.ExamRecord, error) {
	return r.query(ctx, "WHERE candidate_id = ?", candidateID)
}

func (r *ExamRepository) query(ctx context.Context, where string, args ...any) ([]scheduler.ExamRecord, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT id, candidate_id, exam_type, exam_date, outcome, created_at
		FROM exam_records `+where+`
		ORDER BY exam_date ASC, id ASC
	`, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var records []scheduler.ExamRecord
	for rows.Next() {
		var rec scheduler.ExamRecord
		var examType, outcome, dateStr, createdAtStr string
		if err := rows.Scan(&rec.ID, &rec.CandidateID, &examType, &dateStr, &outcome, &createdAtStr); err != nil {
			return nil, r.mapper.MapError(err)
		}
		rec.Type = scheduler.ExamType(examType)
		rec.Outcome = scheduler.ExamOutcome(outcome)
		if rec.Date, err = parseTime("exam_date", dateStr); err != nil {
			return nil, err
		}
		if rec.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return records, nil
}
