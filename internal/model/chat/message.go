package chat

import "time"

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of a session's history.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Directory string    `json:"directory,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
