package models

import (
	"errors"
	"time"
)

// ErrNoMessage is returned when the queue is empty
var ErrNoMessage = errors.New("no messages in queue")

// QueueMessage is the structure stored in the work queue.
// Keep it simple - just enough for a worker to claim the document.
type QueueMessage struct {
	DocumentID string    `json:"document_id"` // References documents.id
	Attempt    int       `json:"attempt"`     // Attempt this enqueue belongs to
	EnqueuedAt time.Time `json:"enqueued_at"`
}
