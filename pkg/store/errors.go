package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when an object does not exist or is owned by a
	// different user. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("object not found")

	// ErrDuplicateEmail is returned when creating a user with an email that
	// already exists.
	ErrDuplicateEmail = errors.New("duplicate user email")

	// ErrAlreadyInThread is returned when appending an action to a thread that
	// already contains it.
	ErrAlreadyInThread = errors.New("action already in thread")
)

// NotFoundError carries the object type and id of a failed lookup.
type NotFoundError struct {
	ObjectType string
	ObjectID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("ObjectNotFound(object_type=%q, object_id=%d)", e.ObjectType, e.ObjectID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound(objectType string, objectID int64) error {
	return &NotFoundError{ObjectType: objectType, ObjectID: objectID}
}

// DuplicateEmailError reports a conflicting user email.
type DuplicateEmailError struct {
	Email string
}

func (e *DuplicateEmailError) Error() string {
	return fmt.Sprintf("user email %q already exists", e.Email)
}

func (e *DuplicateEmailError) Unwrap() error { return ErrDuplicateEmail }

// AlreadyInThreadError reports a duplicate thread/action pairing.
type AlreadyInThreadError struct {
	ThreadID int64
	ActionID int64
}

func (e *AlreadyInThreadError) Error() string {
	return fmt.Sprintf("action %d is already in thread %d", e.ActionID, e.ThreadID)
}

func (e *AlreadyInThreadError) Unwrap() error { return ErrAlreadyInThread }

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
