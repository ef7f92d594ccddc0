// -----------------------------------------------------------------------
// Ingestion Intake - Validates and registers uploaded files
// -----------------------------------------------------------------------

package intake

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ternarybob/arbor"

	"github.com/Anmol33/jusfinn-sub000/internal/common"
	"github.com/Anmol33/jusfinn-sub000/internal/interfaces"
	"github.com/Anmol33/jusfinn-sub000/internal/models"
	"github.com/Anmol33/jusfinn-sub000/internal/services/classifier"
)

// Service validates uploads and registers accepted files as Queued
// documents. Registration only stages the payload and enqueues a message -
// it never waits on pipeline capacity.
type Service struct {
	config  *common.IntakeConfig
	storage interfaces.StorageManager
	queue   interfaces.QueueManager
	events  interfaces.EventService
	logger  arbor.ILogger
}

// NewService creates a new intake service
func NewService(
	config *common.IntakeConfig,
	storage interfaces.StorageManager,
	queue interfaces.QueueManager,
	events interfaces.EventService,
	logger arbor.ILogger,
) interfaces.IntakeService {
	return &Service{
		config:  config,
		storage: storage,
		queue:   queue,
		events:  events,
		logger:  logger,
	}
}

// Submit validates each file in the batch independently. Rejections are
// reported per-file and never abort accepted siblings. An empty batch is
// rejected outright with no receipt. An infrastructure failure mid-batch
// returns the error together with the receipt accumulated so far, so ids
// already registered and announced are never lost to the caller.
func (s *Service) Submit(ctx context.Context, batch *interfaces.IntakeBatch) (*interfaces.IntakeReceipt, error) {
	if batch == nil || len(batch.Files) == 0 {
		return nil, models.NewIntakeError(models.IntakeEmptyBatch, "", "batch contains no files")
	}

	receipt := &interfaces.IntakeReceipt{
		Accepted: []interfaces.AcceptedFile{},
		Rejected: []*models.IntakeError{},
	}

	for i := range batch.Files {
		file := &batch.Files[i]
		accepted, err := s.registerFile(ctx, batch, file)
		if err != nil {
			if intakeErr, ok := err.(*models.IntakeError); ok {
				s.logger.Info().
					Str("file_name", file.FileName).
					Str("kind", string(intakeErr.Kind)).
					Msg("Intake rejected file")
				receipt.Rejected = append(receipt.Rejected, intakeErr)
				continue
			}
			// Infrastructure failure, not a validation outcome. Siblings
			// already registered stay registered; hand their ids back.
			return receipt, fmt.Errorf("intake failed for %s: %w", file.FileName, err)
		}
		receipt.Accepted = append(receipt.Accepted, *accepted)
	}

	return receipt, nil
}

// registerFile validates one upload and, if accepted, stages its payload,
// persists the Queued record, and enqueues it for the pipeline.
func (s *Service) registerFile(ctx context.Context, batch *interfaces.IntakeBatch, file *interfaces.IntakeFile) (*interfaces.AcceptedFile, error) {
	// Declared sizes past the ceiling fail fast without reading the payload
	if file.Size > s.config.MaxFileSizeBytes {
		return nil, models.NewIntakeError(models.IntakeTooLarge, file.FileName,
			fmt.Sprintf("file size %d exceeds limit of %d bytes", file.Size, s.config.MaxFileSizeBytes))
	}

	// Read at most one byte past the ceiling so undeclared sizes are still
	// caught without buffering unbounded input
	data, err := io.ReadAll(io.LimitReader(file.Content, s.config.MaxFileSizeBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.config.MaxFileSizeBytes {
		return nil, models.NewIntakeError(models.IntakeTooLarge, file.FileName,
			fmt.Sprintf("file exceeds limit of %d bytes", s.config.MaxFileSizeBytes))
	}

	mimeType, ok := s.resolveMimeType(data, file.DeclaredMimeType)
	if !ok {
		return nil, models.NewIntakeError(models.IntakeUnsupportedType, file.FileName,
			fmt.Sprintf("mime type %s is not accepted", mimeType))
	}

	category := batch.Category
	if !category.IsValid() {
		category = classifier.Classify(file.FileName)
	}

	id := common.NewDocumentID()

	contentRef, err := s.storage.BlobStorage().Put(ctx, id, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to stage payload: %w", err)
	}

	doc := models.NewDocument(id, file.FileName, mimeType, int64(len(data)), batch.Client, category)
	doc.ContentRef = contentRef

	if err := s.storage.DocumentStorage().Create(ctx, doc); err != nil {
		s.storage.BlobStorage().Remove(ctx, contentRef)
		return nil, fmt.Errorf("failed to persist document: %w", err)
	}

	if err := s.queue.Enqueue(ctx, &models.QueueMessage{
		DocumentID: id,
		Attempt:    doc.Attempt,
	}); err != nil {
		// Keep the record; the stale sweep or a manual retry can recover it
		s.logger.Error().Err(err).Str("document_id", id).Msg("Failed to enqueue document")
		return nil, fmt.Errorf("failed to enqueue document: %w", err)
	}

	s.events.Publish(ctx, interfaces.Event{
		Type:    interfaces.EventDocumentRegistered,
		Payload: doc,
	})

	s.logger.Info().
		Str("document_id", id).
		Str("file_name", file.FileName).
		Str("category", string(category)).
		Str("client", doc.Client).
		Msg("Document registered")

	return &interfaces.AcceptedFile{
		ID:       id,
		FileName: file.FileName,
		Category: category,
	}, nil
}

// resolveMimeType sniffs the real content type and checks it against the
// accepted set. The declared type is only trusted when sniffing lands on a
// generic fallback (octet-stream, text/plain) that hides the real format.
func (s *Service) resolveMimeType(data []byte, declared string) (string, bool) {
	detected := mimetype.Detect(data)

	for _, accepted := range s.config.AcceptedMimeTypes {
		if detected.Is(accepted) {
			return accepted, true
		}
	}

	generic := detected.Is("application/octet-stream") || detected.Is("text/plain")
	if generic && declared != "" {
		for _, accepted := range s.config.AcceptedMimeTypes {
			if declared == accepted {
				return accepted, true
			}
		}
	}

	return detected.String(), false
}
