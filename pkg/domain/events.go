package domain

import "time"

// EventType identifies a run or node lifecycle event.
type EventType string

const (
	EventTypeRunSubmitted  EventType = "run.submitted"
	EventTypeRunStarted    EventType = "run.started"
	EventTypeRunCompleted  EventType = "run.completed"
	EventTypeRunFailed     EventType = "run.failed"
	EventTypeRunCancelled  EventType = "run.cancelled"
	EventTypeNodeStarted   EventType = "node.started"
	EventTypeNodeSucceeded EventType = "node.succeeded"
	EventTypeNodeFailed    EventType = "node.failed"
	EventTypeNodeSkipped   EventType = "node.skipped"
)

// Topics used on the event bus.
const (
	TopicRunEvents  = "run.events"
	TopicNodeEvents = "node.events"
)

// Event is published on the event bus while runs progress.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	RunID     string                 `json:"run_id"`
	NodeID    string                 `json:"node_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
