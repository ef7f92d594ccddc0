// -----------------------------------------------------------------------
// Document Operations - Retry, delete, and single-document reads
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/Anmol33/jusfinn-sub000/internal/interfaces"
	"github.com/Anmol33/jusfinn-sub000/internal/models"
)

// DocumentService implements retry and delete on top of the store, queue,
// and the processor's in-flight registry.
type DocumentService struct {
	storage   interfaces.StorageManager
	queue     interfaces.QueueManager
	events    interfaces.EventService
	processor *Processor
	logger    arbor.ILogger
}

// NewDocumentService creates the document operations service
func NewDocumentService(
	storage interfaces.StorageManager,
	queue interfaces.QueueManager,
	events interfaces.EventService,
	processor *Processor,
	logger arbor.ILogger,
) interfaces.DocumentService {
	return &DocumentService{
		storage:   storage,
		queue:     queue,
		events:    events,
		processor: processor,
		logger:    logger,
	}
}

// Get returns a single document record
func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.storage.DocumentStorage().Get(ctx, id)
}

// Retry re-queues a Failed document: progress reset, error cleared, attempt
// incremented. Any other status returns a StateError with nothing mutated.
func (s *DocumentService) Retry(ctx context.Context, id string) (*models.Document, error) {
	updated, err := s.storage.DocumentStorage().Update(ctx, id, func(d *models.Document) error {
		return d.ResetForRetry()
	})
	if err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(ctx, &models.QueueMessage{
		DocumentID: id,
		Attempt:    updated.Attempt,
	}); err != nil {
		return nil, fmt.Errorf("failed to re-enqueue document: %w", err)
	}

	s.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventDocumentStatusChanged,
		Payload: interfaces.StatusChangedPayload{
			DocumentID: id,
			OldStatus:  string(models.StatusFailed),
			NewStatus:  string(updated.Status),
			Progress:   updated.Progress,
			Attempt:    updated.Attempt,
		},
	})

	s.logger.Info().
		Str("document_id", id).
		Int("attempt", updated.Attempt).
		Msg("Document re-queued for retry")

	return updated, nil
}

// Delete cancels any in-flight attempt, purges pending queue messages, and
// removes the record plus its staged payload. Late worker writes for the id
// hit "not found" and are discarded.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	doc, err := s.storage.DocumentStorage().Get(ctx, id)
	if err != nil {
		return err
	}

	if s.processor != nil && s.processor.Cancel(id) {
		s.logger.Info().Str("document_id", id).Msg("Cancelled in-flight attempt for deletion")
	}

	if err := s.queue.Purge(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("document_id", id).Msg("Failed to purge queue messages")
	}

	if err := s.storage.DocumentStorage().Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			return nil // Already gone
		}
		return err
	}

	if doc.ContentRef != "" {
		if err := s.storage.BlobStorage().Remove(ctx, doc.ContentRef); err != nil {
			s.logger.Warn().Err(err).Str("document_id", id).Msg("Failed to remove staged payload")
		}
	}

	s.events.Publish(ctx, interfaces.Event{
		Type:    interfaces.EventDocumentDeleted,
		Payload: doc,
	})

	s.logger.Info().Str("document_id", id).Msg("Document deleted")
	return nil
}
