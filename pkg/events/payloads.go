package events

import (
	"fmt"
	"time"
)

// Event type discriminators carried in the "type" field of every payload.
const (
	TypeActionResponseChunk = "action-response-chunk"
	TypeActionCompleted     = "action-completed"
)

// TopicForThread returns the bus topic carrying updates for a thread.
func TopicForThread(threadID int64) string {
	return fmt.Sprintf("topic-%d", threadID)
}

// ResponseChunkPayload announces a new response chunk on an action.
type ResponseChunkPayload struct {
	Type        string  `json:"type"`
	ID          int64   `json:"id"`
	ActionID    int64   `json:"action_id"`
	Order       int     `json:"order"`
	Mime        string  `json:"mime"`
	TextContent *string `json:"text_content"`
}

// ActionCompletedPayload announces that an action finished.
type ActionCompletedPayload struct {
	Type        string    `json:"type"`
	ActionID    int64     `json:"action_id"`
	CompletedAt time.Time `json:"completed_at"`
}
