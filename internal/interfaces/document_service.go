package interfaces

import (
	"context"
	"io"

	"github.com/Anmol33/jusfinn-sub000/internal/models"
)

// IntakeFile is one raw upload within a batch
type IntakeFile struct {
	FileName string
	Size     int64
	Content  io.Reader

	// DeclaredMimeType comes from the upload; intake sniffs the real type
	// from content and prefers the sniffed value
	DeclaredMimeType string
}

// IntakeBatch is a group of uploads sharing optional client/category hints
type IntakeBatch struct {
	Client   string
	Category models.Category // Optional hint; empty means classify by filename
	Files    []IntakeFile
}

// AcceptedFile reports a successful per-file registration
type AcceptedFile struct {
	ID       string          `json:"id"`
	FileName string          `json:"file_name"`
	Category models.Category `json:"category"`
}

// IntakeReceipt is the per-file outcome of a batch submission. A batch
// partially succeeds: rejected files never block accepted siblings.
type IntakeReceipt struct {
	Accepted []AcceptedFile        `json:"accepted"`
	Rejected []*models.IntakeError `json:"rejected"`
}

// IntakeService validates and registers uploads. Registration is fast and
// decoupled from processing capacity - it never blocks on busy workers.
type IntakeService interface {
	Submit(ctx context.Context, batch *IntakeBatch) (*IntakeReceipt, error)
}

// PipelineService drives queued documents through the state machine
type PipelineService interface {
	Start() error
	Stop() error

	// Cancel aborts any in-flight attempt for the document id. Returns true
	// if an attempt was actually cancelled.
	Cancel(documentID string) bool
}

// DocumentService exposes operations on individual documents
type DocumentService interface {
	// Get returns a single document record
	Get(ctx context.Context, id string) (*models.Document, error)

	// Retry re-queues a Failed document. Any other status returns a
	// StateError and mutates nothing.
	Retry(ctx context.Context, id string) (*models.Document, error)

	// Delete removes the document, cancelling in-flight work and discarding
	// its staged payload
	Delete(ctx context.Context, id string) error
}

// QueryService provides read-only views over stored documents
type QueryService interface {
	List(ctx context.Context, opts *ListOptions) ([]*models.Document, error)
	SummaryStats(ctx context.Context) (*models.SummaryStats, error)
}
