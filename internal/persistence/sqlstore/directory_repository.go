package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/example/autoecole-scheduler/internal/persistence"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

// DirectoryRepository stores instructors, candidates and vehicles.
type DirectoryRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

var (
	_ persistence.InstructorRepository = (*DirectoryRepository)(nil)
	_ persistence.CandidateRepository  = (*DirectoryRepository)(nil)
	_ persistence.VehicleRepository    = (*DirectoryRepository)(nil)
)

// NewDirectoryRepository creates a directory repository over the pool.
func NewDirectoryRepository(pool *ConnectionPool) *DirectoryRepository {
	return &DirectoryRepository{pool: pool, helper: NewQueryHelper(pool), mapper: NewErrorMapper()}
}

// CreateInstructor inserts an instructor with their specialties.
func (r *DirectoryRepository) CreateInstructor(ctx context.Context, instructor scheduler.Instructor) error {
	if instructor.ID == "" {
		return persistence.ErrConstraintViolation
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := r.helper.ExecTx(ctx, tx, `
			INSERT INTO instructors (id, first_name, last_name, email, phone, hired_on, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			instructor.ID,
			instructor.FirstName,
			instructor.LastName,
			instructor.Email,
			instructor.Phone,
			formatTime(instructor.HiredOn),
			formatTime(instructor.CreatedAt),
			formatTime(instructor.UpdatedAt),
		); err != nil {
			return r.mapper.MapError(err)
		}
		return r.insertSpecialties(ctx, tx, instructor)
	})
}

// UpdateInstructor rewrites the instructor and replaces their specialty set.
func (r *DirectoryRepository) UpdateInstructor(ctx context.Context, instructor scheduler.Instructor) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := r.helper.ExecTx(ctx, tx, `
			UPDATE instructors
			SET first_name = ?, last_name = ?, email = ?, phone = ?, hired_on = ?, updated_at = ?
			WHERE id = ?
		`,
			instructor.FirstName,
			instructor.LastName,
			instructor.Email,
			instructor.Phone,
			formatTime(instructor.HiredOn),
			formatTime(instructor.UpdatedAt),
			instructor.ID,
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
		if _, err := r.helper.ExecTx(ctx, tx, "DELETE FROM instructor_specialties WHERE instructor_id = ?", instructor.ID); err != nil {
			return r.mapper.MapError(err)
		}
		return r.insertSpecialties(ctx, tx, instructor)
	})
}

func (r *DirectoryRepository) insertSpecialties(ctx context.Context, tx *sql.Tx, instructor scheduler.Instructor) error {
	seen := make(map[scheduler.PermitCategory]struct{})
	for _, category := range instructor.Specialties {
		if _, dup := seen[category]; dup || category == "" {
			continue
		}
		seen[category] = struct{}{}
		if _, err := r.helper.ExecTx(ctx, tx,
			"INSERT INTO instructor_specialties (instructor_id, category) VALUES (?, ?)",
			instructor.ID, string(category),
		); err != nil {
			return r.mapper.MapError(err)
		}
	}
	return nil
}

// GetInstructor loads one instructor.
func (r *DirectoryRepository) GetInstructor(ctx context.Context, id string) (scheduler.Instructor, error) {
	instructors, err := r.queryInstructors(ctx, "WHERE id = ?", id)
	if err != nil {
		return scheduler.Instructor{}, err
	}
	if len(instructors) == 0 {
		return scheduler.Instructor{}, persistence.ErrNotFound
	}
	return instructors[0], nil
}

// ListInstructors returns every instructor ordered by name.
func (r *DirectoryRepository) ListInstructors(ctx context.Context) ([]scheduler.Instructor, error) {
	return r.queryInstructors(ctx, "")
}

func (r *DirectoryRepository) queryInstructors(ctx context.Context, where string, args ...any) ([]scheduler.Instructor, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT id, first_name, last_name, email, phone, hired_on, created_at, updated_at
		FROM instructors `+where+`
		ORDER BY last_name ASC, first_name ASC, id ASC
	`, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}

	var instructors []scheduler.Instructor
	for rows.Next() {
		var in scheduler.Instructor
		var hiredOn, createdAt, updatedAt string
		if err := rows.Scan(&in.ID, &in.FirstName, &in.LastName, &in.Email, &in.Phone, &hiredOn, &createdAt, &updatedAt); err != nil {
			rows.Close()
			return nil, r.mapper.MapError(err)
		}
		if in.HiredOn, err = parseTime("hired_on", hiredOn); err == nil {
			if in.CreatedAt, err = parseTime("created_at", createdAt); err == nil {
				in.UpdatedAt, err = parseTime("updated_at", updatedAt)
			}
		}
		if err != nil {
			rows.Close()
			return nil, err
		}
		instructors = append(instructors, in)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, r.mapper.MapError(err)
	}
	rows.Close()

	if len(instructors) == 0 {
		return nil, nil
	}
	specialties, err := r.loadSpecialties(ctx, instructors)
	if err != nil {
		return nil, err
	}
	for i := range instructors {
		instructors[i].Specialties = specialties[instructors[i].ID]
	}
	return instructors, nil
}

func (r *DirectoryRepository) loadSpecialties(ctx context.Context, instructors []scheduler.Instructor) (map[string][]scheduler.PermitCategory, error) {
	ids := make([]any, len(instructors))
	for i, in := range instructors {
		ids[i] = in.ID
	}
	rows, err := r.helper.Query(ctx, `
		SELECT instructor_id, category
		FROM instructor_specialties
		WHERE instructor_id IN (`+placeholders(len(ids))+`)
		ORDER BY instructor_id ASC, category ASC
	`, ids...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	out := make(map[string][]scheduler.PermitCategory)
	for rows.Next() {
		var id, category string
		if err := rows.Scan(&id, &category); err != nil {
			return nil, r.mapper.MapError(err)
		}
		out[id] = append(out[id], scheduler.PermitCategory(category))
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	for id := range out {
		slices.Sort(out[id])
	}
	return out, nil
}

// CreateCandidate inserts a candidate.
func (r *DirectoryRepository) CreateCandidate(ctx context.Context, candidate scheduler.Candidate) error {
	if candidate.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.helper.Exec(ctx, `
		INSERT INTO candidates (id, first_name, last_name, email, phone, target_category, registered_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		candidate.ID,
		candidate.FirstName,
		candidate.LastName,
		candidate.Email,
		candidate.Phone,
		string(candidate.TargetCategory),
		formatTime(candidate.RegisteredAt),
		formatTime(candidate.CreatedAt),
		formatTime(candidate.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// GetCandidate loads one candidate.
func (r *DirectoryRepository) GetCandidate(ctx context.Context, id string) (scheduler.Candidate, error) {
	candidates, err := r.queryCandidates(ctx, "WHERE id = ?", id)
	if err != nil {
		return scheduler.Candidate{}, err
	}
	if len(candidates) == 0 {
		return scheduler.Candidate{}, persistence.ErrNotFound
	}
	return candidates[0], nil
}

// ListCandidates returns every candidate ordered by name.
func (r *DirectoryRepository) ListCandidates(ctx context.Context) ([]scheduler.Candidate, error) {
	return r.queryCandidates(ctx, "")
}

func (r *DirectoryRepository) queryCandidates(ctx context.Context, where string, args ...any) ([]scheduler.Candidate, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT id, first_name, last_name, email, phone, target_category, registered_at, created_at, updated_at
		FROM candidates `+where+`
		ORDER BY last_name ASC, first_name ASC, id ASC
	`, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var candidates []scheduler.Candidate
	for rows.Next() {
		var c scheduler.Candidate
		var category, registeredAt, createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &category, &registeredAt, &createdAt, &updatedAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		c.TargetCategory = scheduler.PermitCategory(category)
		if c.RegisteredAt, err = parseTime("registered_at", registeredAt); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		if c.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return candidates, nil
}

// CreateVehicle inserts a vehicle. Registrations are unique.
func (r *DirectoryRepository) CreateVehicle(ctx context.Context, vehicle scheduler.Vehicle) error {
	if vehicle.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.helper.Exec(ctx, `
		INSERT INTO vehicles (id, registration, model, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		vehicle.ID,
		vehicle.Registration,
		vehicle.Model,
		string(vehicle.Category),
		formatTime(vehicle.CreatedAt),
		formatTime(vehicle.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// GetVehicle loads one vehicle.
func (r *DirectoryRepository) GetVehicle(ctx context.Context, id string) (scheduler.Vehicle, error) {
	vehicles, err := r.queryVehicles(ctx, "WHERE id = ?", id)
	if err != nil {
		return scheduler.Vehicle{}, err
	}
	if len(vehicles) == 0 {
		return scheduler.Vehicle{}, persistence.ErrNotFound
	}
	return vehicles[0], nil
}

// ListVehicles returns every vehicle ordered by registration.
func (r *DirectoryRepository) ListVehicles(ctx context.Context) ([]scheduler.Vehicle, error) {
	return r.queryVehicles(ctx, "")
}

func (r *DirectoryRepository) queryVehicles(ctx context.Context, where string, args ...any) ([]scheduler.Vehicle, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT id, registration, model, category, created_at, updated_at
		FROM vehicles `+where+`
		ORDER BY registration ASC
	`, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var vehicles []scheduler.Vehicle
	for rows.Next() {
		var v scheduler.Vehicle
		var category, createdAt, updatedAt string
		if err := rows.Scan(&v.ID, &v.Registration, &v.Model, &category, &createdAt, &updatedAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		v.Category = scheduler.PermitCategory(category)
		if v.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		if v.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return vehicles, nil
}
