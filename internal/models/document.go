// -----------------------------------------------------------------------
// Document - Central record for one ingested file and its processing state
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// DocumentStatus represents the lifecycle state of a document
type DocumentStatus string

const (
	StatusQueued     DocumentStatus = "queued"
	StatusUploading  DocumentStatus = "uploading"
	StatusProcessing DocumentStatus = "processing"
	StatusExtracting DocumentStatus = "extracting"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// IsValid reports whether s is a known status value
func (s DocumentStatus) IsValid() bool {
	switch s {
	case StatusQueued, StatusUploading, StatusProcessing, StatusExtracting, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether s is a terminal state.
// Failed is terminal for the pipeline; only an explicit retry leaves it.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsActive reports whether the document currently owns a worker slot
func (s DocumentStatus) IsActive() bool {
	return s == StatusUploading || s == StatusProcessing || s == StatusExtracting
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
// Active states may always fail; Failed may only return to Queued via retry.
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	switch s {
	case StatusQueued:
		return next == StatusUploading
	case StatusUploading:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusExtracting || next == StatusFailed
	case StatusExtracting:
		return next == StatusCompleted || next == StatusFailed
	case StatusFailed:
		return next == StatusQueued
	case StatusCompleted:
		return false
	}
	return false
}

// Progress bands per status. A single 0-100 progress value spans the whole
// attempt: the upload transfer drives 0-40, backend processing 40-95, and
// extraction closes out 95-100. Completed pins progress to 100; Failed
// freezes it at its last value.
const (
	ProgressUploadingMax  = 40
	ProgressProcessingMax = 95
	ProgressComplete      = 100
)

// Document represents one ingested file and its processing record
type Document struct {
	// Identity (immutable after intake)
	ID       string `json:"id" badgerhold:"key"` // doc_{uuid}
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	SizeBytes int64 `json:"size_bytes"`

	// Owning client identifier. Stored as opaque - the client registry is
	// external and existence is not validated here.
	Client string `json:"client"`

	// Category is assigned once at intake (classifier or caller hint) and may
	// later be corrected by a human, never silently by the pipeline.
	Category Category `json:"category"`

	// Lifecycle
	Status   DocumentStatus `json:"status" badgerhold:"index"`
	Progress int            `json:"progress"` // 0-100, non-decreasing within an attempt
	Attempt  int            `json:"attempt"`  // Starts at 1, incremented only by retry

	// ContentRef points at the staged payload in blob storage. Handed to the
	// extraction backend instead of the raw bytes.
	ContentRef string `json:"content_ref"`

	// Outcome - mutually exclusive, set only in their terminal states
	Extraction *ExtractionResult `json:"extraction,omitempty"`
	Error      *ProcessingError  `json:"error,omitempty"`

	// Version increments on every persisted update so the last writer for an
	// id wins deterministically
	Version uint64 `json:"version"`

	// Timestamps
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ExtractionResult holds the backend-supplied outcome for a completed document.
// Accuracy is backend-reported (0-100), never synthesized here.
type ExtractionResult struct {
	FieldCount       int      `json:"field_count"`
	Accuracy         float64  `json:"accuracy"`
	Entities         []string `json:"entities"` // Ordered field names as returned by the backend
	Summary          string   `json:"summary"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
}

// NewDocument creates a document in the Queued state ready for the pipeline
func NewDocument(id, fileName, mimeType string, sizeBytes int64, client string, category Category) *Document {
	if client == "" {
		client = "Unassigned"
	}
	now := time.Now()
	return &Document{
		ID:        id,
		FileName:  fileName,
		MimeType:  mimeType,
		SizeBytes: sizeBytes,
		Client:    client,
		Category:  category,
		Status:    StatusQueued,
		Progress:  0,
		Attempt:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ApplyTransition moves the document to next, enforcing the state machine and
// progress monotonicity. Progress below the current value is clamped up;
// Completed pins to 100, Failed freezes the current value.
func (d *Document) ApplyTransition(next DocumentStatus, progress int) error {
	if !d.Status.CanTransitionTo(next) {
		return NewStateError(d.ID, d.Status, next)
	}

	switch next {
	case StatusCompleted:
		d.Progress = ProgressComplete
		now := time.Now()
		d.CompletedAt = &now
	case StatusFailed:
		// Freeze progress at its last value
	case StatusQueued:
		// Retry path - caller resets progress explicitly via ResetForRetry
	default:
		if progress > d.Progress {
			if progress > ProgressComplete {
				progress = ProgressComplete
			}
			d.Progress = progress
		}
	}

	d.Status = next
	d.UpdatedAt = time.Now()
	return nil
}

// AdvanceProgress raises progress within the current active state. Values at
// or below the current progress are ignored, keeping updates non-decreasing.
func (d *Document) AdvanceProgress(progress int) {
	if !d.Status.IsActive() {
		return
	}
	if progress > ProgressComplete {
		progress = ProgressComplete
	}
	if progress > d.Progress {
		d.Progress = progress
		d.UpdatedAt = time.Now()
	}
}

// ResetForRetry prepares a Failed document for another pipeline run
func (d *Document) ResetForRetry() error {
	if d.Status != StatusFailed {
		return NewStateError(d.ID, d.Status, StatusQueued)
	}
	d.Status = StatusQueued
	d.Progress = 0
	d.Attempt++
	d.Error = nil
	d.Extraction = nil
	d.CompletedAt = nil
	d.UpdatedAt = time.Now()
	return nil
}

// MarkCompleted records the backend result and moves to Completed
func (d *Document) MarkCompleted(result *ExtractionResult) error {
	if err := d.ApplyTransition(StatusCompleted, ProgressComplete); err != nil {
		return err
	}
	d.Extraction = result
	d.Error = nil
	return nil
}

// MarkFailed records a processing error and moves to Failed. Legal from any
// active state; progress freezes at its last value.
func (d *Document) MarkFailed(kind ProcessingErrorKind, message string) error {
	if err := d.ApplyTransition(StatusFailed, d.Progress); err != nil {
		return err
	}
	d.Error = &ProcessingError{
		Kind:    kind,
		Message: message,
		Attempt: d.Attempt,
	}
	d.Extraction = nil
	return nil
}
