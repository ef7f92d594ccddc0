package models

import (
	"testing"
)

func TestDocumentStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    DocumentStatus
		to      DocumentStatus
		allowed bool
	}{
		{"queued to uploading", StatusQueued, StatusUploading, true},
		{"uploading to processing", StatusUploading, StatusProcessing, true},
		{"processing to extracting", StatusProcessing, StatusExtracting, true},
		{"extracting to completed", StatusExtracting, StatusCompleted, true},
		{"uploading to failed", StatusUploading, StatusFailed, true},
		{"processing to failed", StatusProcessing, StatusFailed, true},
		{"extracting to failed", StatusExtracting, StatusFailed, true},
		{"failed to queued via retry", StatusFailed, StatusQueued, true},
		{"queued to processing skips uploading", StatusQueued, StatusProcessing, false},
		{"queued to failed", StatusQueued, StatusFailed, false},
		{"completed is terminal", StatusCompleted, StatusQueued, false},
		{"completed to failed", StatusCompleted, StatusFailed, false},
		{"failed to completed", StatusFailed, StatusCompleted, false},
		{"extracting backwards to uploading", StatusExtracting, StatusUploading, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestApplyTransition_ProgressMonotonic(t *testing.T) {
	doc := NewDocument("doc_1", "invoice.pdf", "application/pdf", 1024, "Acme", CategoryInvoices)

	if err := doc.ApplyTransition(StatusUploading, 0); err != nil {
		t.Fatalf("queued -> uploading: %v", err)
	}

	doc.AdvanceProgress(25)
	if doc.Progress != 25 {
		t.Errorf("expected progress 25, got %d", doc.Progress)
	}

	// Lower values are ignored
	doc.AdvanceProgress(10)
	if doc.Progress != 25 {
		t.Errorf("progress regressed to %d", doc.Progress)
	}

	if err := doc.ApplyTransition(StatusProcessing, ProgressUploadingMax); err != nil {
		t.Fatalf("uploading -> processing: %v", err)
	}
	if doc.Progress != ProgressUploadingMax {
		t.Errorf("expected progress %d after upload band, got %d", ProgressUploadingMax, doc.Progress)
	}

	if err := doc.ApplyTransition(StatusExtracting, ProgressProcessingMax); err != nil {
		t.Fatalf("processing -> extracting: %v", err)
	}

	if err := doc.MarkCompleted(&ExtractionResult{FieldCount: 5, Accuracy: 97.2}); err != nil {
		t.Fatalf("extracting -> completed: %v", err)
	}
	if doc.Progress != ProgressComplete {
		t.Errorf("completed must pin progress to 100, got %d", doc.Progress)
	}
	if doc.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
}

func TestApplyTransition_Invalid(t *testing.T) {
	doc := NewDocument("doc_2", "a.pdf", "application/pdf", 10, "", CategoryGeneral)

	err := doc.ApplyTransition(StatusCompleted, 100)
	if err == nil {
		t.Fatal("expected error for queued -> completed")
	}
	if !IsStateError(err) {
		t.Errorf("expected StateError, got %T", err)
	}
	if doc.Status != StatusQueued {
		t.Errorf("failed transition must not mutate status, got %s", doc.Status)
	}
	if doc.Progress != 0 {
		t.Errorf("failed transition must not mutate progress, got %d", doc.Progress)
	}
}

func TestMarkFailed_FreezesProgressAndRecordsError(t *testing.T) {
	doc := NewDocument("doc_3", "bank.pdf", "application/pdf", 10, "", CategoryBankStatements)

	if err := doc.ApplyTransition(StatusUploading, 0); err != nil {
		t.Fatal(err)
	}
	doc.AdvanceProgress(33)

	if err := doc.MarkFailed(ProcessingTimeout, "backend did not respond"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	if doc.Status != StatusFailed {
		t.Errorf("expected failed, got %s", doc.Status)
	}
	if doc.Progress != 33 {
		t.Errorf("failure must freeze progress, got %d", doc.Progress)
	}
	if doc.Error == nil {
		t.Fatal("expected error to be recorded")
	}
	if doc.Error.Kind != ProcessingTimeout {
		t.Errorf("expected timeout kind, got %s", doc.Error.Kind)
	}
	if doc.Error.Attempt != 1 {
		t.Errorf("expected attempt 1 on error, got %d", doc.Error.Attempt)
	}
	if doc.Extraction != nil {
		t.Error("failed document must not carry an extraction result")
	}
}

func TestResetForRetry(t *testing.T) {
	doc := NewDocument("doc_4", "tax.pdf", "application/pdf", 10, "", CategoryTaxDocuments)

	// Retry on non-Failed documents mutates nothing
	if err := doc.ResetForRetry(); err == nil {
		t.Fatal("expected StateError when retrying a queued document")
	}
	if doc.Attempt != 1 {
		t.Errorf("rejected retry must not increment attempt, got %d", doc.Attempt)
	}

	if err := doc.ApplyTransition(StatusUploading, 0); err != nil {
		t.Fatal(err)
	}
	doc.AdvanceProgress(20)
	if err := doc.MarkFailed(ProcessingBackendUnavailable, "connection refused"); err != nil {
		t.Fatal(err)
	}

	if err := doc.ResetForRetry(); err != nil {
		t.Fatalf("ResetForRetry on failed document: %v", err)
	}
	if doc.Status != StatusQueued {
		t.Errorf("expected queued after retry, got %s", doc.Status)
	}
	if doc.Progress != 0 {
		t.Errorf("retry must reset progress to 0, got %d", doc.Progress)
	}
	if doc.Attempt != 2 {
		t.Errorf("retry must increment attempt, got %d", doc.Attempt)
	}
	if doc.Error != nil {
		t.Error("retry must clear the recorded error")
	}
}

func TestAdvanceProgress_ClampsAndRespectsState(t *testing.T) {
	doc := NewDocument("doc_5", "x.pdf", "application/pdf", 10, "", CategoryGeneral)

	// Queued documents have no meaningful progress
	doc.AdvanceProgress(50)
	if doc.Progress != 0 {
		t.Errorf("progress must not advance while queued, got %d", doc.Progress)
	}

	if err := doc.ApplyTransition(StatusUploading, 0); err != nil {
		t.Fatal(err)
	}
	doc.AdvanceProgress(500)
	if doc.Progress != ProgressComplete {
		t.Errorf("progress must clamp at 100, got %d", doc.Progress)
	}
}

func TestNewDocument_DefaultsClient(t *testing.T) {
	doc := NewDocument("doc_6", "x.pdf", "application/pdf", 10, "", CategoryGeneral)
	if doc.Client != "Unassigned" {
		t.Errorf("expected default client Unassigned, got %q", doc.Client)
	}
	if doc.Attempt != 1 {
		t.Errorf("expected initial attempt 1, got %d", doc.Attempt)
	}
	if doc.Status != StatusQueued {
		t.Errorf("expected initial status queued, got %s", doc.Status)
	}
}

func TestCategoryIsValid(t *testing.T) {
	for _, c := range AllCategories() {
		if !c.IsValid() {
			t.Errorf("category %q should be valid", c)
		}
	}
	if Category("Mystery Documents").IsValid() {
		t.Error("unknown category should not be valid")
	}
}
