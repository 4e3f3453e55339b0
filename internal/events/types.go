package events

import "time"

// EventType identifies the kind of pipeline event on the wire.
type EventType string

const (
	EventTypeRunStarted   EventType = "run_started"
	EventTypeRunCompleted EventType = "run_completed"
	EventTypeRunFailed    EventType = "run_failed"
	EventTypeConnection   EventType = "connection"
)

// Event is the envelope broadcast to dashboard clients. Data payloads
// carry run metadata and aggregate counts only, never document content.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// RunEvent describes a pipeline run lifecycle transition.
type RunEvent struct {
	DocumentID      string         `json:"document_id"`
	Collection      string         `json:"collection"`
	Transformations int            `json:"transformations,omitempty"`
	Entities        map[string]int `json:"entities,omitempty"`
	Degraded        bool           `json:"degraded,omitempty"`
	Reason          string         `json:"reason,omitempty"`
}

// ConnectionEvent describes a client joining or leaving the hub.
type ConnectionEvent struct {
	Action   string `json:"action"`
	ClientID string `json:"client_id"`
}
