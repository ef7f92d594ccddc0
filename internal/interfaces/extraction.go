package interfaces

import (
	"context"

	"github.com/Anmol33/jusfinn-sub000/internal/models"
)

// ExtractionRequest describes one document submitted to the backend
type ExtractionRequest struct {
	DocumentID string          `json:"document_id"`
	FileName   string          `json:"file_name"`
	MimeType   string          `json:"mime_type"`
	Category   models.Category `json:"category"`

	// ContentRef points at the staged payload; the backend pulls bytes itself
	ContentRef string `json:"content_ref"`

	// Fields is the category-biased extraction profile. A hint only - the
	// backend decides what it actually returns.
	Fields []string `json:"fields,omitempty"`
}

// ExtractionHandle identifies an accepted submission awaiting a result
type ExtractionHandle struct {
	DocumentID string
	BackendRef string // Backend-side identifier for the submission
}

// Extractor is the extraction backend contract. The backend is opaque:
// a submission is either accepted then resolved, or rejected outright.
// Errors carry a models.ProcessingErrorKind via ExtractionError.
type Extractor interface {
	// Submit hands the document to the backend. A nil error means the
	// backend accepted it and a result can be awaited.
	Submit(ctx context.Context, req *ExtractionRequest) (*ExtractionHandle, error)

	// Await blocks until the backend resolves the submission. Cancelling ctx
	// abandons the wait; the backend result, if any, is discarded.
	Await(ctx context.Context, handle *ExtractionHandle) (*models.ExtractionResult, error)
}

// ExtractionError wraps a backend failure with its taxonomy kind so the
// pipeline can record it on the document without string matching.
type ExtractionError struct {
	Kind    models.ProcessingErrorKind
	Message string
}

func (e *ExtractionError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// NewExtractionError creates a classified backend error
func NewExtractionError(kind models.ProcessingErrorKind, message string) *ExtractionError {
	return &ExtractionError{Kind: kind, Message: message}
}
