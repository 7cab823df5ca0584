package models

import "time"

// Thread is a user-owned, ordered collection of actions sharing a
// conversational context.
type Thread struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`

	// ThreadActions is populated by GetThread, ordered by display_order.
	ThreadActions []*ThreadAction `db:"-" json:"thread_actions"`
}

// ThreadSummary is a thread row without its nested actions, as returned by
// ListThreads.
type ThreadSummary struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
}

// ThreadAction is the junction row placing an action at a position within a
// thread, with independent display toggles.
type ThreadAction struct {
	ID           int64 `db:"id" json:"id"`
	ThreadID     int64 `db:"thread_id" json:"thread_id"`
	ActionID     int64 `db:"action_id" json:"-"`
	DisplayOrder int   `db:"display_order" json:"display_order"`
	ShowQuestion bool  `db:"show_question" json:"show_question"`
	ShowAnswer   bool  `db:"show_answer" json:"show_answer"`

	// Action is the embedded action, populated on reads.
	Action *Action `db:"-" json:"action"`
}
