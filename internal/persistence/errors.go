package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a CHECK or NOT NULL constraint rejects a write.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a write references a missing parent row.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrUnavailable is returned for transient storage failures (locked database, lost connection, timeout).
	ErrUnavailable = errors.New("persistence: storage unavailable")
)
