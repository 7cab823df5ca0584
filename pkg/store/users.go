package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/webcli/webcli/pkg/models"
)

// CreateUser inserts a new active user with password_version 1.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (*models.User, error) {
	var user models.User
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &user,
			`INSERT INTO users (is_active, email, password_version, password_hash)
			 VALUES (TRUE, $1, 1, $2)
			 RETURNING id, is_active, email, password_version, password_hash`,
			email, passwordHash)
		if err != nil {
			if isUniqueViolation(err) {
				return &DuplicateEmailError{Email: email}
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser retrieves a user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		`SELECT id, is_active, email, password_version, password_hash
		 FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("User", id)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by unique email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		`SELECT id, is_active, email, password_version, password_hash
		 FROM users WHERE email = $1`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{ObjectType: "User"}
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

// GetActionUser returns the user owning the given action. Internal lookup for
// notification fan-out; no ownership check applies.
func (s *Store) GetActionUser(ctx context.Context, actionID int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		`SELECT u.id, u.is_active, u.email, u.password_version, u.password_hash
		 FROM users u JOIN actions a ON a.user_id = u.id
		 WHERE a.id = $1`, actionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("Action", actionID)
		}
		return nil, fmt.Errorf("failed to get action user: %w", err)
	}
	return &user, nil
}
