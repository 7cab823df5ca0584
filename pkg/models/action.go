package models

import "time"

// Action is a single user-submitted unit of work: a request payload bound to a
// handler, accumulating a time-ordered list of response chunks.
type Action struct {
	ID          int64      `db:"id" json:"id"`
	UserID      int64      `db:"user_id" json:"user_id"`
	HandlerName string     `db:"handler_name" json:"handler_name"`
	IsCompleted bool       `db:"is_completed" json:"is_completed"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at"`
	Request     JSONMap    `db:"request" json:"request"`
	Title       string     `db:"title" json:"title"`
	RawText     string     `db:"raw_text" json:"raw_text"`

	// ResponseChunks is populated on reads, ordered by chunk order.
	ResponseChunks []*ActionResponseChunk `db:"-" json:"response_chunks"`
}

// ActionResponseChunk is one unit of handler output. Exactly one of
// TextContent and BinaryContent is set.
type ActionResponseChunk struct {
	ID            int64   `db:"id" json:"id"`
	ActionID      int64   `db:"action_id" json:"action_id"`
	Order         int     `db:"chunk_order" json:"order"`
	Mime          string  `db:"mime" json:"mime"`
	TextContent   *string `db:"text_content" json:"text_content"`
	BinaryContent []byte  `db:"binary_content" json:"-"`
}

// ActionHandlerConfiguration is the per-user configuration blob for one
// handler, upserted on (action_handler_name, user_id).
type ActionHandlerConfiguration struct {
	ID                int64      `db:"id" json:"id"`
	ActionHandlerName string     `db:"action_handler_name" json:"action_handler_name"`
	UserID            int64      `db:"user_id" json:"user_id"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         *time.Time `db:"updated_at" json:"updated_at"`
	Configuration     JSONMap    `db:"configuration" json:"configuration"`
}

// CreateThreadActionRequest is the client payload submitting a new action into
// a thread.
type CreateThreadActionRequest struct {
	Title   string  `json:"title"`
	RawText string  `json:"raw_text"`
	Request JSONMap `json:"request"`
}
