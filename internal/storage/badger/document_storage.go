package badger

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/Anmol33/jusfinn-sub000/internal/interfaces"
	"github.com/Anmol33/jusfinn-sub000/internal/models"
)

// lockStripes bounds the per-id mutex table. Ids hash onto stripes so two
// distinct documents rarely contend, while the same id always serializes.
const lockStripes = 64

// DocumentStorage implements the DocumentStorage interface for Badger.
// All writes for a given id go through the striped lock in Update, so the
// last writer wins deterministically and readers never see a torn record.
type DocumentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	locks  [lockStripes]sync.Mutex
}

// NewDocumentStorage creates a new DocumentStorage instance
func NewDocumentStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DocumentStorage {
	return &DocumentStorage{
		db:     db,
		logger: logger,
	}
}

func (s *DocumentStorage) stripe(id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &s.locks[h.Sum32()%lockStripes]
}

func (s *DocumentStorage) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	doc.Version = 1

	mu := s.stripe(doc.ID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.db.Store().Upsert(doc.ID, doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (s *DocumentStorage) Get(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	if err := s.db.Store().Get(id, &doc); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// Update applies mutate under the per-id lock. The mutation sees the
// freshest record and persists atomically; an error from mutate aborts with
// nothing written.
func (s *DocumentStorage) Update(ctx context.Context, id string, mutate func(*models.Document) error) (*models.Document, error) {
	mu := s.stripe(id)
	mu.Lock()
	defer mu.Unlock()

	var doc models.Document
	if err := s.db.Store().Get(id, &doc); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	if err := mutate(&doc); err != nil {
		return nil, err
	}

	doc.Version++
	doc.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(id, &doc); err != nil {
		return nil, fmt.Errorf("failed to update document: %w", err)
	}
	return &doc, nil
}

func (s *DocumentStorage) Delete(ctx context.Context, id string) error {
	mu := s.stripe(id)
	mu.Lock()
	defer mu.Unlock()

	if err := s.db.Store().Delete(id, &models.Document{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return models.ErrDocumentNotFound
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (s *DocumentStorage) List(ctx context.Context, opts *interfaces.ListOptions) ([]*models.Document, error) {
	docs, err := s.find(opts)
	if err != nil {
		return nil, err
	}

	// Stable order: most recently updated first
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].UpdatedAt.After(docs[j].UpdatedAt)
	})

	if opts != nil {
		if opts.Offset > 0 {
			if opts.Offset >= len(docs) {
				return []*models.Document{}, nil
			}
			docs = docs[opts.Offset:]
		}
		if opts.Limit > 0 && len(docs) > opts.Limit {
			docs = docs[:opts.Limit]
		}
	}

	return docs, nil
}

func (s *DocumentStorage) Count(ctx context.Context, opts *interfaces.ListOptions) (int, error) {
	docs, err := s.find(opts)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (s *DocumentStorage) ListActiveOlderThan(ctx context.Context, cutoffUnixMilli int64) ([]*models.Document, error) {
	var docs []models.Document
	query := badgerhold.Where("Status").In(
		models.StatusUploading, models.StatusProcessing, models.StatusExtracting)
	if err := s.db.Store().Find(&docs, query); err != nil {
		return nil, fmt.Errorf("failed to list active documents: %w", err)
	}

	cutoff := time.UnixMilli(cutoffUnixMilli)
	result := make([]*models.Document, 0, len(docs))
	for i := range docs {
		if docs[i].UpdatedAt.Before(cutoff) {
			result = append(result, &docs[i])
		}
	}
	return result, nil
}

// find runs the exact-match filters against Badger and applies the search
// term in memory. BadgerHold regex queries cannot be combined with other
// predicates across fields cleanly, and the dataset is small enough.
func (s *DocumentStorage) find(opts *interfaces.ListOptions) ([]*models.Document, error) {
	query := badgerhold.Where("ID").Ne("") // Select all

	var searchRegex *regexp.Regexp
	if opts != nil {
		if opts.Client != "" {
			query = query.And("Client").Eq(opts.Client)
		}
		if opts.Category != "" {
			query = query.And("Category").Eq(opts.Category)
		}
		if opts.Status != "" {
			query = query.And("Status").Eq(opts.Status)
		}
		if opts.SearchTerm != "" {
			// Escape regex special characters to treat the term as literal text
			escaped := regexp.QuoteMeta(opts.SearchTerm)
			re, err := regexp.Compile("(?i)" + escaped)
			if err != nil {
				return nil, fmt.Errorf("invalid search term: %w", err)
			}
			searchRegex = re
		}
	}

	var docs []models.Document
	if err := s.db.Store().Find(&docs, query); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	result := make([]*models.Document, 0, len(docs))
	for i := range docs {
		if searchRegex != nil &&
			!searchRegex.MatchString(docs[i].FileName) &&
			!searchRegex.MatchString(docs[i].Client) {
			continue
		}
		result = append(result, &docs[i])
	}
	return result, nil
}
