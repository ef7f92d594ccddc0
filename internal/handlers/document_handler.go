// -----------------------------------------------------------------------
// Document Handler - Upload, list, retry, delete, and summary endpoints
// -----------------------------------------------------------------------

package handlers

import (
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/Anmol33/jusfinn-sub000/internal/interfaces"
	"github.com/Anmol33/jusfinn-sub000/internal/models"
)

// maxMultipartMemory bounds the in-memory portion of multipart parsing;
// larger file parts spill to temp files.
const maxMultipartMemory = 32 << 20

type DocumentHandler struct {
	intakeService   interfaces.IntakeService
	documentService interfaces.DocumentService
	queryService    interfaces.QueryService
	logger          arbor.ILogger
}

func NewDocumentHandler(
	intakeService interfaces.IntakeService,
	documentService interfaces.DocumentService,
	queryService interfaces.QueryService,
	logger arbor.ILogger,
) *DocumentHandler {
	return &DocumentHandler{
		intakeService:   intakeService,
		documentService: documentService,
		queryService:    queryService,
		logger:          logger,
	}
}

// UploadHandler accepts a multipart batch of files with optional client and
// category fields. Per-file outcomes are reported in the receipt; rejected
// files never block accepted siblings.
func (h *DocumentHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid multipart request: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	batch := &interfaces.IntakeBatch{
		Client:   r.FormValue("client"),
		Category: models.Category(r.FormValue("category")),
	}

	for _, header := range r.MultipartForm.File["files"] {
		file, err := header.Open()
		if err != nil {
			h.logger.Warn().Err(err).Str("file_name", header.Filename).Msg("Failed to open uploaded part")
			WriteError(w, http.StatusBadRequest, "Failed to read uploaded file: "+header.Filename)
			return
		}
		defer file.Close()

		batch.Files = append(batch.Files, interfaces.IntakeFile{
			FileName:         header.Filename,
			Size:             header.Size,
			Content:          file,
			DeclaredMimeType: header.Header.Get("Content-Type"),
		})
	}

	receipt, err := h.intakeService.Submit(r.Context(), batch)
	if err != nil {
		var intakeErr *models.IntakeError
		if errors.As(err, &intakeErr) {
			WriteError(w, http.StatusBadRequest, intakeErr.Error())
			return
		}
		h.logger.Error().Err(err).Msg("Batch submission failed")
		if receipt != nil && len(receipt.Accepted) > 0 {
			// Part of the batch was registered before the failure; return
			// the accepted ids so the client does not lose track of them
			WriteJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"error":   "Failed to register part of the batch",
				"receipt": receipt,
			})
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to register documents")
		return
	}

	WriteJSON(w, http.StatusOK, receipt)
}

// ListHandler returns documents filtered by client, category, status, and a
// free-text search term, most recently updated first.
func (h *DocumentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	query := r.URL.Query()
	opts := &interfaces.ListOptions{
		Client:     query.Get("client"),
		Category:   models.Category(query.Get("category")),
		Status:     models.DocumentStatus(query.Get("status")),
		SearchTerm: query.Get("q"),
		Limit:      GetIntParam(r, "limit", 0),
		Offset:     GetIntParam(r, "offset", 0),
	}

	docs, err := h.queryService.List(r.Context(), opts)
	if err != nil {
		var filterErr *models.FilterError
		if errors.As(err, &filterErr) {
			WriteError(w, http.StatusBadRequest, filterErr.Error())
			return
		}
		h.logger.Error().Err(err).Msg("Failed to list documents")
		WriteError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
	})
}

// SummaryHandler returns aggregate dashboard statistics
func (h *DocumentHandler) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := h.queryService.SummaryStats(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to compute summary stats")
		WriteError(w, http.StatusInternalServerError, "Failed to compute statistics")
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}

// GetHandler returns a single document by id
func (h *DocumentHandler) GetHandler(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := h.documentService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			WriteError(w, http.StatusNotFound, "Document not found")
			return
		}
		h.logger.Error().Err(err).Str("document_id", id).Msg("Failed to load document")
		WriteError(w, http.StatusInternalServerError, "Failed to load document")
		return
	}

	WriteJSON(w, http.StatusOK, doc)
}

// RetryHandler re-queues a failed document. Non-failed documents get 409.
func (h *DocumentHandler) RetryHandler(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := h.documentService.Retry(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDocumentNotFound):
			WriteError(w, http.StatusNotFound, "Document not found")
		case models.IsStateError(err):
			WriteError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error().Err(err).Str("document_id", id).Msg("Retry failed")
			WriteError(w, http.StatusInternalServerError, "Failed to retry document")
		}
		return
	}

	WriteJSON(w, http.StatusOK, doc)
}

// DeleteHandler removes a document, cancelling any in-flight attempt
func (h *DocumentHandler) DeleteHandler(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.documentService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			WriteError(w, http.StatusNotFound, "Document not found")
			return
		}
		h.logger.Error().Err(err).Str("document_id", id).Msg("Delete failed")
		WriteError(w, http.StatusInternalServerError, "Failed to delete document")
		return
	}

	WriteSuccess(w, "Document deleted")
}
