package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/webcli/webcli/pkg/models"
)

const threadColumns = `id, user_id, created_at, title, description`

// CreateThread inserts a thread owned by user.
func (s *Store) CreateThread(ctx context.Context, title, description string, user *models.User) (*models.Thread, error) {
	var thread models.Thread
	err := s.db.GetContext(ctx, &thread,
		`INSERT INTO threads (user_id, created_at, title, description)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+threadColumns,
		user.ID, utcNow(), title, description)
	if err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}
	thread.ThreadActions = []*models.ThreadAction{}
	return &thread, nil
}

// GetThread retrieves a thread with its actions in display order, each action
// carrying its response chunks in chunk order.
func (s *Store) GetThread(ctx context.Context, id int64, user *models.User) (*models.Thread, error) {
	var thread *models.Thread
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var t models.Thread
		err := tx.GetContext(ctx, &t,
			`SELECT `+threadColumns+` FROM threads WHERE id = $1 AND user_id = $2`,
			id, user.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound("Thread", id)
			}
			return fmt.Errorf("failed to get thread: %w", err)
		}

		threadActions := []*models.ThreadAction{}
		err = tx.SelectContext(ctx, &threadActions,
			`SELECT id, thread_id, action_id, display_order, show_question, show_answer
			 FROM thread_actions
			 WHERE thread_id = $1
			 ORDER BY display_order`, id)
		if err != nil {
			return fmt.Errorf("failed to load thread actions: %w", err)
		}

		for _, ta := range threadActions {
			action, err := getActionTx(ctx, tx, ta.ActionID, user)
			if err != nil {
				return err
			}
			ta.Action = action
		}
		t.ThreadActions = threadActions
		thread = &t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return thread, nil
}

// ListThreads returns summaries of the user's threads in id order.
func (s *Store) ListThreads(ctx context.Context, user *models.User) ([]*models.ThreadSummary, error) {
	threads := []*models.ThreadSummary{}
	err := s.db.SelectContext(ctx, &threads,
		`SELECT `+threadColumns+` FROM threads
		 WHERE user_id = $1
		 ORDER BY id`, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	return threads, nil
}

// PatchThread updates title and description when provided.
func (s *Store) PatchThread(ctx context.Context, id int64, user *models.User, title, description *string) (*models.Thread, error) {
	var thread models.Thread
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &thread,
			`UPDATE threads
			 SET title = COALESCE($1, title), description = COALESCE($2, description)
			 WHERE id = $3 AND user_id = $4
			 RETURNING `+threadColumns,
			title, description, id, user.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound("Thread", id)
			}
			return fmt.Errorf("failed to patch thread: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	thread.ThreadActions = []*models.ThreadAction{}
	return &thread, nil
}

// DeleteThread removes a thread and its thread-action links. The actions
// themselves are left in place; an action may live in other threads.
func (s *Store) DeleteThread(ctx context.Context, id int64, user *models.User) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var lockedID int64
		err := tx.GetContext(ctx, &lockedID,
			`SELECT id FROM threads WHERE id = $1 AND user_id = $2 FOR UPDATE`,
			id, user.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound("Thread", id)
			}
			return fmt.Errorf("failed to lock thread: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM thread_actions WHERE thread_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete thread actions: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM threads WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete thread: %w", err)
		}
		return nil
	})
}

// AppendActionToThread links an existing action into a thread at the next
// display order. Both the thread and the action must be owned by user.
func (s *Store) AppendActionToThread(ctx context.Context, threadID, actionID int64, user *models.User) (*models.ThreadAction, error) {
	var threadAction *models.ThreadAction
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		threadAction, err = appendActionToThreadTx(ctx, tx, threadID, actionID, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return threadAction, nil
}

func appendActionToThreadTx(ctx context.Context, tx *sqlx.Tx, threadID, actionID int64, user *models.User) (*models.ThreadAction, error) {
	// Lock the thread row to serialize display order assignment.
	var lockedID int64
	err := tx.GetContext(ctx, &lockedID,
		`SELECT id FROM threads WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		threadID, user.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("Thread", threadID)
		}
		return nil, fmt.Errorf("failed to lock thread: %w", err)
	}

	action, err := getActionTx(ctx, tx, actionID, user)
	if err != nil {
		return nil, err
	}

	var order int
	err = tx.GetContext(ctx, &order,
		`SELECT COALESCE(MAX(display_order), 0) + 1
		 FROM thread_actions WHERE thread_id = $1`, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute display order: %w", err)
	}

	var threadAction models.ThreadAction
	err = tx.GetContext(ctx, &threadAction,
		`INSERT INTO thread_actions (thread_id, action_id, display_order, show_question, show_answer)
		 VALUES ($1, $2, $3, FALSE, TRUE)
		 RETURNING id, thread_id, action_id, display_order, show_question, show_answer`,
		threadID, actionID, order)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &AlreadyInThreadError{ThreadID: threadID, ActionID: actionID}
		}
		return nil, fmt.Errorf("failed to append action to thread: %w", err)
	}
	threadAction.Action = action
	return &threadAction, nil
}

// RemoveActionFromThread unlinks an action from a thread. It reports whether a
// link existed; the action row is never deleted. The remaining links keep
// their display order, so ordering stays strictly increasing but may become
// sparse.
func (s *Store) RemoveActionFromThread(ctx context.Context, threadID, actionID int64, user *models.User) (bool, error) {
	var removed bool
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var lockedID int64
		err := tx.GetContext(ctx, &lockedID,
			`SELECT id FROM threads WHERE id = $1 AND user_id = $2 FOR UPDATE`,
			threadID, user.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound("Thread", threadID)
			}
			return fmt.Errorf("failed to lock thread: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM thread_actions WHERE thread_id = $1 AND action_id = $2`,
			threadID, actionID)
		if err != nil {
			return fmt.Errorf("failed to remove action from thread: %w", err)
		}
		n, _ := res.RowsAffected()
		removed = n > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// PatchThreadAction updates the display flags of a thread-action link.
func (s *Store) PatchThreadAction(ctx context.Context, threadID, actionID int64, user *models.User, showQuestion, showAnswer *bool) (*models.ThreadAction, error) {
	var threadAction models.ThreadAction
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var threadOwnerID int64
		err := tx.GetContext(ctx, &threadOwnerID,
			`SELECT id FROM threads WHERE id = $1 AND user_id = $2`,
			threadID, user.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound("Thread", threadID)
			}
			return fmt.Errorf("failed to check thread ownership: %w", err)
		}
		err = tx.GetContext(ctx, &threadAction,
			`UPDATE thread_actions
			 SET show_question = COALESCE($1, show_question),
			     show_answer = COALESCE($2, show_answer)
			 WHERE thread_id = $3 AND action_id = $4
			 RETURNING id, thread_id, action_id, display_order, show_question, show_answer`,
			showQuestion, showAnswer, threadID, actionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound("Action", actionID)
			}
			return fmt.Errorf("failed to patch thread action: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &threadAction, nil
}

// GetThreadIDsForAction returns the ids of every thread containing the action,
// regardless of owner. Internal lookup for notification fan-out.
func (s *Store) GetThreadIDsForAction(ctx context.Context, actionID int64) ([]int64, error) {
	ids := []int64{}
	err := s.db.SelectContext(ctx, &ids,
		`SELECT thread_id FROM thread_actions WHERE action_id = $1 ORDER BY thread_id`,
		actionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get thread ids for action: %w", err)
	}
	return ids, nil
}

// CreateActionInThread creates a pending action and links it into the thread
// in one transaction, so a dispatch failure leaves nothing behind.
func (s *Store) CreateActionInThread(ctx context.Context, threadID int64, handlerName string, req *models.CreateThreadActionRequest, user *models.User) (*models.ThreadAction, error) {
	var threadAction *models.ThreadAction
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		action, err := createActionTx(ctx, tx, handlerName, req.Request, req.Title, req.RawText, user)
		if err != nil {
			return err
		}
		threadAction, err = appendActionToThreadTx(ctx, tx, threadID, action.ID, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return threadAction, nil
}
