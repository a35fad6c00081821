package domain

import "time"

// Role constants for conversation messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry in the conversation view. Assistant messages may
// carry the internal reasoning text and the raw tool-call list alongside the
// user-visible content.
type Message struct {
	ID        string     `json:"id"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Thinking  string     `json:"thinking,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// ConversationTurn is the unit persisted to history: one user message, the
// resulting assistant message, and the finalized execution steps. Turns are
// immutable once created.
type ConversationTurn struct {
	UserMessage      Message   `json:"user_message"`
	AssistantMessage Message   `json:"assistant_message"`
	Steps            []Step    `json:"steps,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
