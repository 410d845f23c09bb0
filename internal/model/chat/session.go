package chat

import "time"

// Session captures one client conversation and the directory it operates in.
type Session struct {
	ID               string    `json:"id"`
	WorkingDirectory string    `json:"workingDirectory"`
	CreatedAt        time.Time `json:"createdAt"`
	LastActive       time.Time `json:"lastActive"`
}
