package interfaces

import (
	"context"
	"io"

	"github.com/Anmol33/jusfinn-sub000/internal/models"
)

// ListOptions filters and bounds document list queries
type ListOptions struct {
	Client     string                // Exact match on client identifier
	Category   models.Category       // Exact match on category
	Status     models.DocumentStatus // Exact match on status
	SearchTerm string                // Case-insensitive match against file name and client
	Limit      int                   // 0 = no limit
	Offset     int
}

// DocumentStorage - interface for document record persistence.
// All mutation goes through Update so writes for a given id are serialized
// and readers never observe a torn record.
type DocumentStorage interface {
	// Create persists a new document record
	Create(ctx context.Context, doc *models.Document) error

	// Get returns the document or models.ErrDocumentNotFound
	Get(ctx context.Context, id string) (*models.Document, error)

	// Update applies mutate to the current record under the per-id lock and
	// persists the result. Returning an error from mutate aborts the update
	// with nothing written.
	Update(ctx context.Context, id string, mutate func(*models.Document) error) (*models.Document, error)

	// Delete removes the record. Returns models.ErrDocumentNotFound when the
	// id has no record.
	Delete(ctx context.Context, id string) error

	// List returns documents matching opts, most recently updated first
	List(ctx context.Context, opts *ListOptions) ([]*models.Document, error)

	// Count returns the number of documents matching opts
	Count(ctx context.Context, opts *ListOptions) (int, error)

	// ListActiveOlderThan returns active documents whose last update is
	// before the cutoff, for the stale sweep
	ListActiveOlderThan(ctx context.Context, cutoffUnixMilli int64) ([]*models.Document, error)
}

// BlobStorage - interface for staged upload payloads. Records hold a
// content reference; bytes live here.
type BlobStorage interface {
	// Put stages a payload and returns its content reference
	Put(ctx context.Context, documentID string, r io.Reader) (string, error)

	// Open returns a reader for the staged payload
	Open(ctx context.Context, contentRef string) (io.ReadCloser, error)

	// Remove deletes the staged payload. Missing blobs are not an error.
	Remove(ctx context.Context, contentRef string) error
}

// StorageManager provides access to all storage interfaces
type StorageManager interface {
	DocumentStorage() DocumentStorage
	BlobStorage() BlobStorage
	Close() error
}
