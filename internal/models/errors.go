// -----------------------------------------------------------------------
// Error Taxonomy - Intake, processing, and state transition errors
// -----------------------------------------------------------------------

package models

import (
	"errors"
	"fmt"
)

// IntakeErrorKind classifies rejections that happen before a document
// record is created
type IntakeErrorKind string

const (
	IntakeUnsupportedType IntakeErrorKind = "unsupported_type"
	IntakeTooLarge        IntakeErrorKind = "too_large"
	IntakeEmptyBatch      IntakeErrorKind = "empty_batch"
)

// IntakeError reports a per-file rejection during upload validation.
// A rejected file never aborts its siblings in the same batch.
type IntakeError struct {
	Kind     IntakeErrorKind `json:"kind"`
	FileName string          `json:"file_name,omitempty"`
	Message  string          `json:"message"`
}

func (e *IntakeError) Error() string {
	if e.FileName != "" {
		return fmt.Sprintf("intake rejected %s: %s (%s)", e.FileName, e.Message, e.Kind)
	}
	return fmt.Sprintf("intake rejected: %s (%s)", e.Message, e.Kind)
}

// NewIntakeError creates a per-file intake rejection
func NewIntakeError(kind IntakeErrorKind, fileName, message string) *IntakeError {
	return &IntakeError{Kind: kind, FileName: fileName, Message: message}
}

// ProcessingErrorKind classifies terminal pipeline failures
type ProcessingErrorKind string

const (
	ProcessingBackendUnavailable ProcessingErrorKind = "backend_unavailable"
	ProcessingTimeout            ProcessingErrorKind = "timeout"
	ProcessingLowConfidence      ProcessingErrorKind = "low_confidence"
	ProcessingMalformed          ProcessingErrorKind = "malformed"
)

// ProcessingError is recorded on a Failed document. It stays visible with
// the failing attempt number until the document is retried or deleted.
type ProcessingError struct {
	Kind    ProcessingErrorKind `json:"kind"`
	Message string              `json:"message"`
	Attempt int                 `json:"attempt"`
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing failed (attempt %d): %s (%s)", e.Attempt, e.Message, e.Kind)
}

// StateError reports an illegal state machine transition. The document is
// never mutated when one of these is returned.
type StateError struct {
	DocumentID string         `json:"document_id"`
	From       DocumentStatus `json:"from"`
	To         DocumentStatus `json:"to"`
}

func (e *StateError) Error() string {
	return fmt.Sprintf("invalid transition for %s: %s -> %s", e.DocumentID, e.From, e.To)
}

// NewStateError creates an invalid-transition error
func NewStateError(documentID string, from, to DocumentStatus) *StateError {
	return &StateError{DocumentID: documentID, From: from, To: to}
}

// IsStateError reports whether err is (or wraps) a StateError
func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

// FilterError reports a list filter value outside the known enum sets
type FilterError struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("unknown %s filter: %s", e.Field, e.Value)
}

// NewFilterError creates an invalid-filter error
func NewFilterError(field, value string) *FilterError {
	return &FilterError{Field: field, Value: value}
}

// ErrDocumentNotFound is returned when a document id has no record
var ErrDocumentNotFound = errors.New("document not found")
