package models

// SummaryStats aggregates outcomes over all terminal documents.
// Computed on demand so it always reflects the latest transitions.
type SummaryStats struct {
	TotalDocuments       int     `json:"total_documents"`
	TotalProcessed       int     `json:"total_processed"` // Completed + Failed
	TotalCompleted       int     `json:"total_completed"`
	TotalFailed          int     `json:"total_failed"`
	SuccessRate          float64 `json:"success_rate"` // 0-100 over processed documents
	AvgProcessingTimeMs  int64   `json:"avg_processing_time_ms"`
	TotalFieldsExtracted int     `json:"total_fields_extracted"`
	AvgAccuracy          float64 `json:"avg_accuracy"`

	ByStatus   map[DocumentStatus]int `json:"by_status"`
	ByCategory map[Category]int       `json:"by_category"`
}
