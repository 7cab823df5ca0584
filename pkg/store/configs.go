package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/webcli/webcli/pkg/models"
)

// GetActionHandlerUserConfig returns the per-user configuration for a handler.
// A user with no stored row gets an empty configuration, not an error.
func (s *Store) GetActionHandlerUserConfig(ctx context.Context, handlerName string, user *models.User) (models.JSONMap, error) {
	var cfg models.ActionHandlerConfiguration
	err := s.db.GetContext(ctx, &cfg,
		`SELECT id, action_handler_name, user_id, created_at, updated_at, configuration
		 FROM action_handler_configurations
		 WHERE action_handler_name = $1 AND user_id = $2`,
		handlerName, user.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.JSONMap{}, nil
		}
		return nil, fmt.Errorf("failed to get handler configuration: %w", err)
	}
	if cfg.Configuration == nil {
		return models.JSONMap{}, nil
	}
	return cfg.Configuration, nil
}

// SetActionHandlerUserConfig replaces the per-user configuration for a
// handler, creating the row on first write.
func (s *Store) SetActionHandlerUserConfig(ctx context.Context, handlerName string, user *models.User, configuration models.JSONMap) (*models.ActionHandlerConfiguration, error) {
	var cfg models.ActionHandlerConfiguration
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		now := utcNow()
		err := tx.GetContext(ctx, &cfg,
			`INSERT INTO action_handler_configurations
			 (action_handler_name, user_id, created_at, configuration)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (action_handler_name, user_id)
			 DO UPDATE SET configuration = EXCLUDED.configuration, updated_at = $3
			 RETURNING id, action_handler_name, user_id, created_at, updated_at, configuration`,
			handlerName, user.ID, now, configuration)
		if err != nil {
			return fmt.Errorf("failed to set handler configuration: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
