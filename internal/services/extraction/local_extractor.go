// -----------------------------------------------------------------------
// Extraction - Built-in local extractor
// -----------------------------------------------------------------------

package extraction

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/Anmol33/jusfinn-sub000/internal/interfaces"
	"github.com/Anmol33/jusfinn-sub000/internal/models"
)

// Accuracy synthesis bounds. Extractions landing below the confidence
// threshold fail with a low-confidence error, mirroring a real backend's
// quality gate.
const (
	localAccuracyFloor    = 88.0
	localAccuracyCeiling  = 99.5
	confidenceThreshold   = 90.0
	localBaseLatency      = 150 * time.Millisecond
	localPerFieldLatency  = 40 * time.Millisecond
	localSummaryMaxFields = 6
)

// LocalExtractor produces deterministic extraction results without a remote
// backend. Field counts come from the category profile, accuracy from a
// stable hash of the file name, so any given document always resolves the
// same way. Useful for development and self-contained deployments.
type LocalExtractor struct {
	blobs  interfaces.BlobStorage
	logger arbor.ILogger
}

var _ interfaces.Extractor = (*LocalExtractor)(nil)

// NewLocalExtractor creates the built-in extractor
func NewLocalExtractor(blobs interfaces.BlobStorage, logger arbor.ILogger) *LocalExtractor {
	return &LocalExtractor{
		blobs:  blobs,
		logger: logger,
	}
}

// Submit validates the staged payload is readable and accepts the document.
// The handle's backend ref carries the byte count for Await.
func (e *LocalExtractor) Submit(ctx context.Context, req *interfaces.ExtractionRequest) (*interfaces.ExtractionHandle, error) {
	blob, err := e.blobs.Open(ctx, req.ContentRef)
	if err != nil {
		return nil, interfaces.NewExtractionError(models.ProcessingMalformed,
			fmt.Sprintf("staged payload unavailable: %v", err))
	}
	defer blob.Close()

	size, err := io.Copy(io.Discard, blob)
	if err != nil {
		return nil, interfaces.NewExtractionError(models.ProcessingMalformed,
			fmt.Sprintf("staged payload unreadable: %v", err))
	}
	if size == 0 {
		return nil, interfaces.NewExtractionError(models.ProcessingMalformed,
			"staged payload is empty")
	}

	return &interfaces.ExtractionHandle{
		DocumentID: req.DocumentID,
		BackendRef: localRef(req),
	}, nil
}

// Await synthesizes the result after a latency proportional to the field
// profile size. Accuracy below the confidence threshold fails the document.
func (e *LocalExtractor) Await(ctx context.Context, handle *interfaces.ExtractionHandle) (*models.ExtractionResult, error) {
	fileName, category := parseLocalRef(handle.BackendRef)

	fields := fieldEntities(category)
	latency := localBaseLatency + time.Duration(len(fields))*localPerFieldLatency

	start := time.Now()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(latency):
	}

	accuracy := synthAccuracy(fileName)
	if accuracy < confidenceThreshold {
		return nil, interfaces.NewExtractionError(models.ProcessingLowConfidence,
			fmt.Sprintf("extraction confidence %.1f%% below %.0f%% threshold", accuracy, confidenceThreshold))
	}

	summaryFields := fields
	if len(summaryFields) > localSummaryMaxFields {
		summaryFields = summaryFields[:localSummaryMaxFields]
	}

	return &models.ExtractionResult{
		FieldCount:       len(fields),
		Accuracy:         accuracy,
		Entities:         fields,
		Summary:          fmt.Sprintf("Extracted %s from %s", strings.Join(summaryFields, ", "), fileName),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// fieldEntities returns the entities the local extractor reports for a
// category. Uncategorized documents get a generic pair.
func fieldEntities(category models.Category) []string {
	switch category {
	case models.CategoryInvoices:
		return []string{"Invoice Number", "Amount", "Date", "Vendor", "GST"}
	case models.CategoryReceipts:
		return []string{"Merchant", "Amount", "Date", "Payment Method"}
	case models.CategoryBankStatements:
		return []string{"Account Number", "Period", "Opening Balance", "Closing Balance", "Transactions"}
	case models.CategoryTaxDocuments:
		return []string{"PAN", "Assessment Year", "Total Income", "Tax Payable"}
	case models.CategoryGSTDocuments:
		return []string{"GSTIN", "Period", "Taxable Value", "IGST", "CGST", "SGST"}
	case models.CategoryIncomeDocuments:
		return []string{"Employer", "Gross Salary", "Deductions", "Net Salary"}
	case models.CategoryFinancialStatements:
		return []string{"Period", "Total Assets", "Total Liabilities", "Net Profit"}
	default:
		return []string{"Document Type", "Date"}
	}
}

// synthAccuracy maps a file name onto a stable accuracy in the synthesis
// band. The same name always yields the same accuracy.
func synthAccuracy(fileName string) float64 {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(fileName)))
	span := localAccuracyCeiling - localAccuracyFloor
	return localAccuracyFloor + float64(h.Sum32()%1000)/1000.0*span
}

// localRef encodes what Await needs into the handle's backend ref
func localRef(req *interfaces.ExtractionRequest) string {
	return string(req.Category) + "|" + req.FileName
}

func parseLocalRef(ref string) (fileName string, category models.Category) {
	parts := strings.SplitN(ref, "|", 2)
	if len(parts) != 2 {
		return ref, models.CategoryGeneral
	}
	return parts[1], models.Category(parts[0])
}
