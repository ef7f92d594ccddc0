// -----------------------------------------------------------------------
// Extraction - HTTP backend client
// -----------------------------------------------------------------------

package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/Anmol33/jusfinn-sub000/internal/common"
	"github.com/Anmol33/jusfinn-sub000/internal/interfaces"
	"github.com/Anmol33/jusfinn-sub000/internal/models"
)

// defaultPollInterval paces Await polling against the backend
const defaultPollInterval = time.Second

// HTTPExtractor submits staged payloads to a remote extraction service and
// polls for the result. Submit streams the blob as multipart; Await polls
// the job resource until it reaches a terminal state.
var _ interfaces.Extractor = (*HTTPExtractor)(nil)

type HTTPExtractor struct {
	baseURL      string
	apiKey       string
	blobs        interfaces.BlobStorage
	httpClient   *http.Client
	pollInterval time.Duration
	logger       arbor.ILogger
}

// NewHTTPExtractor creates the HTTP backend client
func NewHTTPExtractor(
	cfg *common.ExtractionConfig,
	blobs interfaces.BlobStorage,
	logger arbor.ILogger,
) *HTTPExtractor {
	return &HTTPExtractor{
		baseURL: strings.TrimRight(cfg.BackendURL, "/"),
		apiKey:  cfg.APIKey,
		blobs:   blobs,
		httpClient: &http.Client{
			Timeout: 30 * time.Second, // Per-request; the overall deadline comes from ctx
		},
		pollInterval: defaultPollInterval,
		logger:       logger,
	}
}

// submitResponse is the backend's accepted-job envelope
type submitResponse struct {
	ID string `json:"id"`
}

// jobResponse is the backend's job status resource
type jobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"` // "pending", "running", "completed", "failed"
	Result *struct {
		FieldCount       int      `json:"field_count"`
		Accuracy         float64  `json:"accuracy"`
		Entities         []string `json:"entities"`
		Summary          string   `json:"summary"`
		ProcessingTimeMs int64    `json:"processing_time_ms"`
	} `json:"result,omitempty"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Submit streams the staged payload to the backend. A 2xx response with a
// job id means the document was accepted for extraction.
func (e *HTTPExtractor) Submit(ctx context.Context, req *interfaces.ExtractionRequest) (*interfaces.ExtractionHandle, error) {
	blob, err := e.blobs.Open(ctx, req.ContentRef)
	if err != nil {
		return nil, interfaces.NewExtractionError(models.ProcessingMalformed,
			fmt.Sprintf("staged payload unavailable: %v", err))
	}
	defer blob.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		defer pw.Close()
		defer writer.Close()

		meta := map[string]interface{}{
			"document_id": req.DocumentID,
			"file_name":   req.FileName,
			"mime_type":   req.MimeType,
			"category":    string(req.Category),
			"fields":      req.Fields,
		}
		metaPart, err := writer.CreateFormField("metadata")
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := json.NewEncoder(metaPart).Encode(meta); err != nil {
			pw.CloseWithError(err)
			return
		}

		filePart, err := writer.CreateFormFile("file", req.FileName)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(filePart, blob); err != nil {
			pw.CloseWithError(err)
			return
		}
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/extractions", pr)
	if err != nil {
		return nil, fmt.Errorf("failed to build submit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	e.authorize(httpReq)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, interfaces.NewExtractionError(models.ProcessingBackendUnavailable,
			fmt.Sprintf("submit failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, e.statusError(resp)
	}

	var accepted submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		return nil, interfaces.NewExtractionError(models.ProcessingBackendUnavailable,
			fmt.Sprintf("malformed submit response: %v", err))
	}
	if accepted.ID == "" {
		return nil, interfaces.NewExtractionError(models.ProcessingBackendUnavailable,
			"submit response missing job id")
	}

	e.logger.Debug().
		Str("document_id", req.DocumentID).
		Str("job_id", accepted.ID).
		Msg("Extraction job accepted")

	return &interfaces.ExtractionHandle{
		DocumentID: req.DocumentID,
		BackendRef: accepted.ID,
	}, nil
}

// Await polls the job until it completes or fails. The overall deadline is
// the caller's ctx; individual poll requests carry the client timeout.
func (e *HTTPExtractor) Await(ctx context.Context, handle *interfaces.ExtractionHandle) (*models.ExtractionResult, error) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		job, err := e.poll(ctx, handle.BackendRef)
		if err != nil {
			return nil, err
		}

		switch job.Status {
		case "completed":
			if job.Result == nil {
				return nil, interfaces.NewExtractionError(models.ProcessingBackendUnavailable,
					"completed job carried no result")
			}
			return &models.ExtractionResult{
				FieldCount:       job.Result.FieldCount,
				Accuracy:         job.Result.Accuracy,
				Entities:         job.Result.Entities,
				Summary:          job.Result.Summary,
				ProcessingTimeMs: job.Result.ProcessingTimeMs,
			}, nil

		case "failed":
			kind := models.ProcessingBackendUnavailable
			message := "extraction failed"
			if job.Error != nil {
				kind = kindFromCode(job.Error.Code)
				message = job.Error.Message
			}
			return nil, interfaces.NewExtractionError(kind, message)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// poll fetches the job resource once
func (e *HTTPExtractor) poll(ctx context.Context, jobID string) (*jobResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		e.baseURL+"/v1/extractions/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build poll request: %w", err)
	}
	e.authorize(httpReq)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, interfaces.NewExtractionError(models.ProcessingBackendUnavailable,
			fmt.Sprintf("poll failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, e.statusError(resp)
	}

	var job jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, interfaces.NewExtractionError(models.ProcessingBackendUnavailable,
			fmt.Sprintf("malformed job response: %v", err))
	}
	return &job, nil
}

func (e *HTTPExtractor) authorize(req *http.Request) {
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
}

// statusError maps HTTP status codes onto the failure taxonomy
func (e *HTTPExtractor) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	message := strings.TrimSpace(string(body))
	if message == "" {
		message = resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnsupportedMediaType,
		resp.StatusCode == http.StatusUnprocessableEntity:
		return interfaces.NewExtractionError(models.ProcessingMalformed, message)
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusGatewayTimeout:
		return interfaces.NewExtractionError(models.ProcessingTimeout, message)
	default:
		return interfaces.NewExtractionError(models.ProcessingBackendUnavailable, message)
	}
}

// kindFromCode maps backend error codes onto the failure taxonomy
func kindFromCode(code string) models.ProcessingErrorKind {
	switch code {
	case "low_confidence":
		return models.ProcessingLowConfidence
	case "malformed", "unreadable":
		return models.ProcessingMalformed
	case "timeout":
		return models.ProcessingTimeout
	default:
		return models.ProcessingBackendUnavailable
	}
}
