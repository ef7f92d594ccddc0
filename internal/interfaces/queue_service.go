package interfaces

import (
	"context"
	"time"

	"github.com/Anmol33/jusfinn-sub000/internal/models"
)

// QueueManager manages the persistent document work queue.
// Claimed messages become invisible for the visibility timeout and are
// redelivered if the worker never calls the delete function.
type QueueManager interface {
	Start() error
	Stop() error

	// Enqueue adds a message to the tail of the queue
	Enqueue(ctx context.Context, msg *models.QueueMessage) error

	// Receive claims the next visible message. The returned function deletes
	// the message permanently; not calling it lets the message reappear after
	// the visibility timeout. Returns models.ErrNoMessage when empty.
	Receive(ctx context.Context) (*models.QueueMessage, func() error, error)

	// Extend pushes out the visibility deadline for a claimed message
	Extend(ctx context.Context, msg *models.QueueMessage, d time.Duration) error

	// Purge removes any pending messages for the document id. Used when a
	// document is deleted while still queued.
	Purge(ctx context.Context, documentID string) error

	// Length returns the number of messages currently in the queue
	Length(ctx context.Context) (int, error)
}
