// -----------------------------------------------------------------------
// Processing Pipeline - Worker pool driving the document state machine
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/Anmol33/jusfinn-sub000/internal/common"
	"github.com/Anmol33/jusfinn-sub000/internal/interfaces"
	"github.com/Anmol33/jusfinn-sub000/internal/models"
)

// Backoff configuration for idle polling
const (
	minBackoff = 100 * time.Millisecond // Initial backoff when queue is empty
	maxBackoff = 5 * time.Second        // Maximum backoff duration
)

// uploadChunkSize paces the upload band so progress tracks actual bytes
const uploadChunkSize = 256 * 1024

// Processor pulls queued documents and advances each through the state
// machine. Workers are independent: one slow backend call never blocks
// sibling documents. Per-document exclusivity comes from the in-flight
// registry plus the store's serialized per-id update path.
type Processor struct {
	storage   interfaces.StorageManager
	queue     interfaces.QueueManager
	events    interfaces.EventService
	extractor interfaces.Extractor
	limiter   *rate.Limiter
	logger    arbor.ILogger

	concurrency       int
	extractionTimeout time.Duration
	visibilityTimeout time.Duration

	inflight *inflightRegistry
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

// NewProcessor creates the pipeline worker pool. Backend submissions are
// rate limited when config.Extraction.RateLimit is positive.
func NewProcessor(
	config *common.Config,
	storage interfaces.StorageManager,
	queue interfaces.QueueManager,
	events interfaces.EventService,
	extractor interfaces.Extractor,
	logger arbor.ILogger,
) *Processor {
	ctx, cancel := context.WithCancel(context.Background())

	concurrency := config.Queue.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	limit := rate.Inf
	if config.Extraction.RateLimit > 0 {
		limit = rate.Limit(config.Extraction.RateLimit)
	}

	return &Processor{
		storage:           storage,
		queue:             queue,
		events:            events,
		extractor:         extractor,
		limiter:           rate.NewLimiter(limit, 1),
		logger:            logger,
		concurrency:       concurrency,
		extractionTimeout: config.ExtractionTimeout(),
		visibilityTimeout: config.VisibilityTimeout(),
		inflight:          newInflightRegistry(),
		ctx:               ctx,
		cancel:            cancel,
	}
}

// Start launches the worker goroutines. Call after all services are wired.
func (p *Processor) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		p.logger.Warn().Msg("Pipeline processor already running")
		return nil
	}

	p.running = true
	p.logger.Info().
		Int("concurrency", p.concurrency).
		Msg("Starting pipeline processor")

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.processLoop(i)
	}
	return nil
}

// Stop shuts the worker pool down gracefully
func (p *Processor) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info().Msg("Stopping pipeline processor...")
	p.cancel()
	p.wg.Wait()
	p.logger.Info().Msg("Pipeline processor stopped")
	return nil
}

// Cancel aborts any in-flight attempt for the document id
func (p *Processor) Cancel(documentID string) bool {
	return p.inflight.Cancel(documentID)
}

// processLoop is the main worker loop with exponential idle backoff
func (p *Processor) processLoop(workerID int) {
	defer p.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", getStackTrace()).
				Int("worker_id", workerID).
				Msg("Pipeline worker panicked")
		}
	}()

	p.logger.Debug().Int("worker_id", workerID).Msg("Pipeline worker started")

	currentBackoff := minBackoff

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug().Int("worker_id", workerID).Msg("Pipeline worker stopping")
			return
		default:
			processed := p.processNext(workerID)

			if processed {
				currentBackoff = minBackoff
			} else {
				select {
				case <-p.ctx.Done():
					return
				case <-time.After(currentBackoff):
				}
				currentBackoff = currentBackoff * 2
				if currentBackoff > maxBackoff {
					currentBackoff = maxBackoff
				}
			}
		}
	}
}

// getStackTrace returns a formatted stack trace for panic debugging
func getStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// processNext claims one message and runs its document through the state
// machine. Returns true if a message was claimed (for backoff reset).
func (p *Processor) processNext(workerID int) bool {
	var msg *models.QueueMessage
	var deleteFn func() error

	// Panic in one document's run must not take the worker down with it
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", getStackTrace()).
				Int("worker_id", workerID).
				Msg("Recovered from panic while processing document")

			if msg != nil {
				p.failDocument(context.Background(), msg.DocumentID,
					models.ProcessingMalformed, fmt.Sprintf("processing panicked: %v", r))
				if deleteFn != nil {
					if err := deleteFn(); err != nil {
						p.logger.Error().Err(err).Msg("Failed to delete message after panic")
					}
				}
			}
		}
	}()

	msg, deleteFn, err := p.queue.Receive(p.ctx)
	if err != nil {
		return false
	}

	start := time.Now()
	p.logger.Info().
		Str("document_id", msg.DocumentID).
		Int("attempt", msg.Attempt).
		Int("worker_id", workerID).
		Msg("Document processing started")

	keepMessage := p.runDocument(msg)
	if !keepMessage {
		if err := deleteFn(); err != nil {
			p.logger.Error().Err(err).
				Str("document_id", msg.DocumentID).
				Msg("Failed to delete queue message")
		}
	}

	p.logger.Info().
		Str("document_id", msg.DocumentID).
		Int("worker_id", workerID).
		Str("duration", time.Since(start).String()).
		Msg("Document processing finished")

	return true
}

// runDocument executes one attempt. Returns true when the queue message
// should be kept for redelivery instead of deleted.
func (p *Processor) runDocument(msg *models.QueueMessage) bool {
	doc, err := p.storage.DocumentStorage().Get(p.ctx, msg.DocumentID)
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			// Deleted while queued - drop the message
			return false
		}
		p.logger.Error().Err(err).Str("document_id", msg.DocumentID).Msg("Failed to load document")
		return true // Transient storage error, let the message redeliver
	}

	// Stale messages from earlier attempts or non-queued documents are dropped
	if doc.Status != models.StatusQueued || doc.Attempt != msg.Attempt {
		p.logger.Debug().
			Str("document_id", msg.DocumentID).
			Str("status", string(doc.Status)).
			Int("msg_attempt", msg.Attempt).
			Int("doc_attempt", doc.Attempt).
			Msg("Dropping stale queue message")
		return false
	}

	ctx, release, err := p.inflight.Register(p.ctx, msg.DocumentID)
	if err != nil {
		// Another worker holds this id; leave the message for redelivery
		return true
	}
	defer release()

	stopHeartbeat := p.heartbeat(ctx, msg)
	defer stopHeartbeat()

	p.advance(ctx, doc)
	return false
}

// heartbeat keeps extending the claimed message's visibility while the
// attempt runs. Without it an extraction longer than the visibility window
// would get redelivered mid-attempt and eventually dropped as a poison pill.
func (p *Processor) heartbeat(ctx context.Context, msg *models.QueueMessage) (stop func()) {
	interval := p.visibilityTimeout / 2
	if interval <= 0 {
		return func() {}
	}

	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if err := p.queue.Extend(hbCtx, msg, p.visibilityTimeout); err != nil {
					p.logger.Warn().Err(err).
						Str("document_id", msg.DocumentID).
						Msg("Failed to extend message visibility")
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// advance drives the document through upload, submission, and extraction.
// Every persisted transition goes through the store's per-id update path.
func (p *Processor) advance(ctx context.Context, doc *models.Document) {
	id := doc.ID

	// Queued -> Uploading
	updated, err := p.transition(ctx, id, models.StatusUploading, 0)
	if err != nil {
		p.logTransitionFailure(id, models.StatusUploading, err)
		return
	}
	doc = updated

	// Upload band: stream the staged payload so progress tracks real bytes
	if err := p.streamUpload(ctx, doc); err != nil {
		p.handleFailure(ctx, id, err)
		return
	}

	// Uploading -> Processing
	if _, err := p.transition(ctx, id, models.StatusProcessing, models.ProgressUploadingMax); err != nil {
		p.logTransitionFailure(id, models.StatusProcessing, err)
		return
	}

	// Backend submission, rate limited
	if err := p.limiter.Wait(ctx); err != nil {
		p.handleFailure(ctx, id, err)
		return
	}

	req := &interfaces.ExtractionRequest{
		DocumentID: id,
		FileName:   doc.FileName,
		MimeType:   doc.MimeType,
		Category:   doc.Category,
		ContentRef: doc.ContentRef,
		Fields:     FieldProfile(doc.Category),
	}

	submitCtx, cancelSubmit := context.WithTimeout(ctx, p.extractionTimeout)
	handle, err := p.extractor.Submit(submitCtx, req)
	cancelSubmit()
	if err != nil {
		p.handleFailure(ctx, id, err)
		return
	}

	// Processing -> Extracting: the backend accepted the document
	if _, err := p.transition(ctx, id, models.StatusExtracting, models.ProgressProcessingMax); err != nil {
		p.logTransitionFailure(id, models.StatusExtracting, err)
		return
	}

	awaitCtx, cancelAwait := context.WithTimeout(ctx, p.extractionTimeout)
	result, err := p.extractor.Await(awaitCtx, handle)
	cancelAwait()
	if err != nil {
		p.handleFailure(ctx, id, err)
		return
	}

	p.completeDocument(ctx, id, result)
}

// streamUpload reads the staged blob in chunks, advancing progress through
// the upload band proportionally to bytes transferred.
func (p *Processor) streamUpload(ctx context.Context, doc *models.Document) error {
	blob, err := p.storage.BlobStorage().Open(ctx, doc.ContentRef)
	if err != nil {
		return interfaces.NewExtractionError(models.ProcessingMalformed,
			fmt.Sprintf("staged payload unavailable: %v", err))
	}
	defer blob.Close()

	var transferred int64
	buf := make([]byte, uploadChunkSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, readErr := blob.Read(buf)
		transferred += int64(n)

		if n > 0 && doc.SizeBytes > 0 {
			progress := int(transferred * int64(models.ProgressUploadingMax) / doc.SizeBytes)
			if progress > models.ProgressUploadingMax {
				progress = models.ProgressUploadingMax
			}
			p.advanceProgress(ctx, doc.ID, progress)
		}

		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return interfaces.NewExtractionError(models.ProcessingMalformed,
				fmt.Sprintf("failed reading staged payload: %v", readErr))
		}
	}
}

// transition persists a status change and publishes the status event
func (p *Processor) transition(ctx context.Context, id string, next models.DocumentStatus, progress int) (*models.Document, error) {
	var oldStatus models.DocumentStatus
	updated, err := p.storage.DocumentStorage().Update(ctx, id, func(d *models.Document) error {
		oldStatus = d.Status
		return d.ApplyTransition(next, progress)
	})
	if err != nil {
		return nil, err
	}

	p.publishStatusChanged(ctx, updated, oldStatus)
	return updated, nil
}

// advanceProgress persists a progress bump within the current state
func (p *Processor) advanceProgress(ctx context.Context, id string, progress int) {
	var oldStatus models.DocumentStatus
	updated, err := p.storage.DocumentStorage().Update(ctx, id, func(d *models.Document) error {
		oldStatus = d.Status
		d.AdvanceProgress(progress)
		return nil
	})
	if err != nil {
		// Deleted mid-flight or storage hiccup; the next transition surfaces it
		return
	}
	p.publishStatusChanged(ctx, updated, oldStatus)
}

// completeDocument records the result and publishes the terminal event
func (p *Processor) completeDocument(ctx context.Context, id string, result *models.ExtractionResult) {
	var oldStatus models.DocumentStatus
	updated, err := p.storage.DocumentStorage().Update(ctx, id, func(d *models.Document) error {
		oldStatus = d.Status
		return d.MarkCompleted(result)
	})
	if err != nil {
		p.logTransitionFailure(id, models.StatusCompleted, err)
		return
	}

	p.publishStatusChanged(ctx, updated, oldStatus)
	p.events.Publish(ctx, interfaces.Event{
		Type:    interfaces.EventDocumentCompleted,
		Payload: updated,
	})

	p.logger.Info().
		Str("document_id", id).
		Int("field_count", result.FieldCount).
		Float64("accuracy", result.Accuracy).
		Msg("Document completed")
}

// handleFailure classifies the error and marks the document Failed.
// Cancellation from delete is not a failure: the record is gone or going,
// so the outcome is simply discarded.
func (p *Processor) handleFailure(ctx context.Context, id string, err error) {
	if errors.Is(err, context.Canceled) {
		p.logger.Info().Str("document_id", id).Msg("In-flight attempt cancelled, discarding outcome")
		return
	}

	kind, message := classifyError(err)
	p.failDocument(ctx, id, kind, message)
}

// failDocument records a processing failure and publishes the terminal event
func (p *Processor) failDocument(ctx context.Context, id string, kind models.ProcessingErrorKind, message string) {
	var oldStatus models.DocumentStatus
	updated, err := p.storage.DocumentStorage().Update(ctx, id, func(d *models.Document) error {
		oldStatus = d.Status
		return d.MarkFailed(kind, message)
	})
	if err != nil {
		if !errors.Is(err, models.ErrDocumentNotFound) {
			p.logTransitionFailure(id, models.StatusFailed, err)
		}
		return
	}

	p.publishStatusChanged(ctx, updated, oldStatus)
	p.events.Publish(ctx, interfaces.Event{
		Type:    interfaces.EventDocumentFailed,
		Payload: updated,
	})

	p.logger.Warn().
		Str("document_id", id).
		Str("kind", string(kind)).
		Int("attempt", updated.Attempt).
		Msg("Document failed")
}

func (p *Processor) publishStatusChanged(ctx context.Context, doc *models.Document, oldStatus models.DocumentStatus) {
	p.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventDocumentStatusChanged,
		Payload: interfaces.StatusChangedPayload{
			DocumentID: doc.ID,
			OldStatus:  string(oldStatus),
			NewStatus:  string(doc.Status),
			Progress:   doc.Progress,
			Attempt:    doc.Attempt,
		},
	})
}

func (p *Processor) logTransitionFailure(id string, next models.DocumentStatus, err error) {
	if errors.Is(err, models.ErrDocumentNotFound) {
		// Deleted mid-flight; nothing to update
		p.logger.Debug().Str("document_id", id).Msg("Document removed mid-flight, discarding work")
		return
	}
	p.logger.Error().Err(err).
		Str("document_id", id).
		Str("next_status", string(next)).
		Msg("Failed to apply transition")
}

// classifyError maps backend and context errors onto the failure taxonomy
func classifyError(err error) (models.ProcessingErrorKind, string) {
	var extractionErr *interfaces.ExtractionError
	if errors.As(err, &extractionErr) {
		return extractionErr.Kind, extractionErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ProcessingTimeout, "extraction backend timed out"
	}
	return models.ProcessingBackendUnavailable, err.Error()
}
