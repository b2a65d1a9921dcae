package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the dotted code for this event, e.g. "assistant.turn_completed".
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Deduplicated is implemented by events that carry a stable id. JetStream
// drops a repeated id within its duplicate window.
type Deduplicated interface {
	MessageID() string
}

type BaseEvent struct {
	Id         string
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) MessageID() string {
	return e.Id
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

const (
	TypeTurnCompleted = "assistant.turn_completed"
	TypeModelFallback = "assistant.model_fallback"

	// CatalogPrefix covers events emitted by the admin side when destinations,
	// passages or models change.
	CatalogPrefix = "catalog."
)
