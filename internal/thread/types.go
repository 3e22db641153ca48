package thread

import "time"

// Role identifies the sender of a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is a single message in a conversation. Turns are immutable once
// appended; ordering within a thread is append order.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Thread is the record for one conversation's turn log.
type Thread struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// History is a read-only projection of a thread's turns.
type History struct {
	ThreadID string `json:"thread_id"`
	UserID   string `json:"user_id,omitempty"`
	Turns    []Turn `json:"turns"`
}
