package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	EventDocumentRegistered    EventType = "document_registered"
	EventDocumentStatusChanged EventType = "document_status_changed"
	EventDocumentCompleted     EventType = "document_completed"
	EventDocumentFailed        EventType = "document_failed"
	EventDocumentDeleted       EventType = "document_deleted"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages the pub/sub event bus
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Unsubscribe from an event type
	Unsubscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}

// StatusChangedPayload is the payload for EventDocumentStatusChanged
type StatusChangedPayload struct {
	DocumentID string `json:"document_id"`
	OldStatus  string `json:"old_status"`
	NewStatus  string `json:"new_status"`
	Progress   int    `json:"progress"`
	Attempt    int    `json:"attempt"`
}
