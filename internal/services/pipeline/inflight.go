package pipeline

import (
	"context"
	"fmt"
	"sync"
)

// inflightRegistry tracks the one in-flight attempt allowed per document.
// Registering an id yields a cancellable context; Cancel aborts the attempt
// from outside (delete while processing).
type inflightRegistry struct {
	mu      sync.Mutex
	entries map[string]context.CancelFunc
}

func newInflightRegistry() *inflightRegistry {
	return &inflightRegistry{entries: make(map[string]context.CancelFunc)}
}

// Register claims the document for the calling worker. Fails when another
// attempt for the same id is already in flight.
func (r *inflightRegistry) Register(parent context.Context, documentID string) (context.Context, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[documentID]; exists {
		return nil, nil, fmt.Errorf("document %s already in flight", documentID)
	}

	ctx, cancel := context.WithCancel(parent)
	r.entries[documentID] = cancel

	release := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if c, ok := r.entries[documentID]; ok {
			c()
			delete(r.entries, documentID)
		}
	}
	return ctx, release, nil
}

// Cancel aborts the in-flight attempt for the id, if any. Returns true when
// an attempt was actually cancelled.
func (r *inflightRegistry) Cancel(documentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cancel, ok := r.entries[documentID]
	if !ok {
		return false
	}
	cancel()
	return true
}

// Active reports whether the id currently has an in-flight attempt
func (r *inflightRegistry) Active(documentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[documentID]
	return ok
}
