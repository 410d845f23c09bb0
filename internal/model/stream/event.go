package stream

import "encoding/json"

// EventType classifies a client-facing stream record.
type EventType string

const (
	EventInit      EventType = "init"
	EventSystem    EventType = "system"
	EventAssistant EventType = "assistant"
	EventResult    EventType = "result"
	EventError     EventType = "error"
	EventDone      EventType = "done"
)

// Event is published once to the client and never retained.
type Event struct {
	Type      EventType       `json:"type"`
	Message   string          `json:"message,omitempty"`
	Content   string          `json:"content,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	Usage     json.RawMessage `json:"usage,omitempty"`
	Cost      *float64        `json:"cost,omitempty"`
	Duration  *float64        `json:"duration,omitempty"`
	Error     string          `json:"error,omitempty"`
}
