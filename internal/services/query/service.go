// -----------------------------------------------------------------------
// Query Service - Listing, filtering, and dashboard summary statistics
// -----------------------------------------------------------------------

package query

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/Anmol33/jusfinn-sub000/internal/interfaces"
	"github.com/Anmol33/jusfinn-sub000/internal/models"
)

// defaultListLimit caps unbounded list requests
const defaultListLimit = 100

// Service answers read-side queries over the document store
type Service struct {
	storage interfaces.StorageManager
	logger  arbor.ILogger
}

// NewService creates the query service
func NewService(storage interfaces.StorageManager, logger arbor.ILogger) interfaces.QueryService {
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

// List returns documents matching the filter options, newest first
func (s *Service) List(ctx context.Context, opts *interfaces.ListOptions) ([]*models.Document, error) {
	if opts == nil {
		opts = &interfaces.ListOptions{}
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultListLimit
	}

	if opts.Status != "" && !opts.Status.IsValid() {
		return nil, models.NewFilterError("status", string(opts.Status))
	}
	if opts.Category != "" && !opts.Category.IsValid() {
		return nil, models.NewFilterError("category", string(opts.Category))
	}

	return s.storage.DocumentStorage().List(ctx, opts)
}

// SummaryStats aggregates the dashboard counters in one pass over the store.
// Success rate is computed over processed documents (completed + failed);
// accuracy and timing averages cover completed documents only.
func (s *Service) SummaryStats(ctx context.Context) (*models.SummaryStats, error) {
	docs, err := s.storage.DocumentStorage().List(ctx, &interfaces.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to scan documents: %w", err)
	}

	stats := &models.SummaryStats{
		ByStatus:   make(map[models.DocumentStatus]int),
		ByCategory: make(map[models.Category]int),
	}

	var totalProcessingMs int64
	var totalAccuracy float64

	for _, doc := range docs {
		stats.TotalDocuments++
		stats.ByStatus[doc.Status]++
		stats.ByCategory[doc.Category]++

		switch doc.Status {
		case models.StatusCompleted:
			stats.TotalCompleted++
			if doc.Extraction != nil {
				stats.TotalFieldsExtracted += doc.Extraction.FieldCount
				totalProcessingMs += doc.Extraction.ProcessingTimeMs
				totalAccuracy += doc.Extraction.Accuracy
			}
		case models.StatusFailed:
			stats.TotalFailed++
		}
	}

	stats.TotalProcessed = stats.TotalCompleted + stats.TotalFailed
	if stats.TotalProcessed > 0 {
		stats.SuccessRate = float64(stats.TotalCompleted) / float64(stats.TotalProcessed) * 100
	}
	if stats.TotalCompleted > 0 {
		stats.AvgProcessingTimeMs = totalProcessingMs / int64(stats.TotalCompleted)
		stats.AvgAccuracy = totalAccuracy / float64(stats.TotalCompleted)
	}

	return stats, nil
}
