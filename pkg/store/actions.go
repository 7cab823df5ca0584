package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/webcli/webcli/pkg/models"
)

const actionColumns = `id, user_id, handler_name, is_completed, created_at, completed_at, request, title, raw_text`

// CreateAction inserts a pending action owned by user, with no response
// chunks.
func (s *Store) CreateAction(ctx context.Context, handlerName string, request models.JSONMap, title, rawText string, user *models.User) (*models.Action, error) {
	var action *models.Action
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		action, err = createActionTx(ctx, tx, handlerName, request, title, rawText, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return action, nil
}

func createActionTx(ctx context.Context, tx *sqlx.Tx, handlerName string, request models.JSONMap, title, rawText string, user *models.User) (*models.Action, error) {
	var action models.Action
	err := tx.GetContext(ctx, &action,
		`INSERT INTO actions (user_id, handler_name, is_completed, created_at, request, title, raw_text)
		 VALUES ($1, $2, FALSE, $3, $4, $5, $6)
		 RETURNING `+actionColumns,
		user.ID, handlerName, utcNow(), request, title, rawText)
	if err != nil {
		return nil, fmt.Errorf("failed to create action: %w", err)
	}
	action.ResponseChunks = []*models.ActionResponseChunk{}
	return &action, nil
}

// GetAction retrieves an action with its response chunks ordered by chunk
// order.
func (s *Store) GetAction(ctx context.Context, id int64, user *models.User) (*models.Action, error) {
	var action *models.Action
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		action, err = getActionTx(ctx, tx, id, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return action, nil
}

func getActionTx(ctx context.Context, tx *sqlx.Tx, id int64, user *models.User) (*models.Action, error) {
	var action models.Action
	err := tx.GetContext(ctx, &action,
		`SELECT `+actionColumns+` FROM actions WHERE id = $1 AND user_id = $2`,
		id, user.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("Action", id)
		}
		return nil, fmt.Errorf("failed to get action: %w", err)
	}

	chunks := []*models.ActionResponseChunk{}
	err = tx.SelectContext(ctx, &chunks,
		`SELECT id, action_id, chunk_order, mime, text_content, binary_content
		 FROM action_response_chunks
		 WHERE action_id = $1
		 ORDER BY chunk_order`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load response chunks: %w", err)
	}
	action.ResponseChunks = chunks
	return &action, nil
}

// PatchAction updates the action title when provided; a nil title is a no-op
// read.
func (s *Store) PatchAction(ctx context.Context, id int64, user *models.User, title *string) (*models.Action, error) {
	var action *models.Action
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if title != nil {
			res, err := tx.ExecContext(ctx,
				`UPDATE actions SET title = $1 WHERE id = $2 AND user_id = $3`,
				*title, id, user.ID)
			if err != nil {
				return fmt.Errorf("failed to patch action: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return notFound("Action", id)
			}
		}
		var err error
		action, err = getActionTx(ctx, tx, id, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return action, nil
}

// CompleteAction marks a pending action completed. Completion is one-way: a
// second call finds zero rows and reports not-found.
func (s *Store) CompleteAction(ctx context.Context, id int64, user *models.User) (*models.Action, error) {
	var action *models.Action
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE actions SET is_completed = TRUE, completed_at = $1
			 WHERE id = $2 AND user_id = $3 AND is_completed = FALSE`,
			utcNow(), id, user.ID)
		if err != nil {
			return fmt.Errorf("failed to complete action: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFound("Action", id)
		}
		action, err = getActionTx(ctx, tx, id, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return action, nil
}

// AppendResponseToAction appends one response chunk to a pending action,
// assigning the next chunk order. Appending to a completed action reports
// not-found: the storage boundary enforces that completion is terminal.
func (s *Store) AppendResponseToAction(ctx context.Context, actionID int64, mime string, textContent *string, binaryContent []byte, user *models.User) (*models.ActionResponseChunk, error) {
	var chunk *models.ActionResponseChunk
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		chunk, err = appendResponseTx(ctx, tx, actionID, mime, textContent, binaryContent, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

func appendResponseTx(ctx context.Context, tx *sqlx.Tx, actionID int64, mime string, textContent *string, binaryContent []byte, user *models.User) (*models.ActionResponseChunk, error) {
	// Lock the action row to serialize concurrent appends for one action.
	var lockedID int64
	err := tx.GetContext(ctx, &lockedID,
		`SELECT id FROM actions
		 WHERE id = $1 AND user_id = $2 AND is_completed = FALSE
		 FOR UPDATE`, actionID, user.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("Action", actionID)
		}
		return nil, fmt.Errorf("failed to lock action: %w", err)
	}

	var order int
	err = tx.GetContext(ctx, &order,
		`SELECT COALESCE(MAX(chunk_order), 0) + 1
		 FROM action_response_chunks WHERE action_id = $1`, actionID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute chunk order: %w", err)
	}

	var chunk models.ActionResponseChunk
	err = tx.GetContext(ctx, &chunk,
		`INSERT INTO action_response_chunks (action_id, chunk_order, mime, text_content, binary_content)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, action_id, chunk_order, mime, text_content, binary_content`,
		actionID, order, mime, textContent, binaryContent)
	if err != nil {
		return nil, fmt.Errorf("failed to append response chunk: %w", err)
	}
	return &chunk, nil
}
