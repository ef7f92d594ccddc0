package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/Anmol33/jusfinn-sub000/internal/interfaces"
	"github.com/Anmol33/jusfinn-sub000/internal/models"
)

func newTestStorage(t *testing.T) interfaces.DocumentStorage {
	t.Helper()

	tmpDir := t.TempDir()

	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	db := &BadgerDB{store: store}
	return NewDocumentStorage(db, arbor.NewLogger())
}

func TestCreateGetDelete(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	doc := models.NewDocument("doc_1", "invoice.pdf", "application/pdf", 512, "Acme", models.CategoryInvoices)
	if err := storage.Create(ctx, doc); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := storage.Get(ctx, "doc_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.FileName != "invoice.pdf" || got.Client != "Acme" {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.Version != 1 {
		t.Errorf("expected version 1 after create, got %d", got.Version)
	}

	if err := storage.Delete(ctx, "doc_1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := storage.Get(ctx, "doc_1"); !errors.Is(err, models.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := storage.Delete(ctx, "doc_1"); !errors.Is(err, models.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound on double delete, got %v", err)
	}
}

func TestUpdate_MutatesUnderLock(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	doc := models.NewDocument("doc_2", "a.pdf", "application/pdf", 10, "", models.CategoryGeneral)
	if err := storage.Create(ctx, doc); err != nil {
		t.Fatal(err)
	}

	updated, err := storage.Update(ctx, "doc_2", func(d *models.Document) error {
		return d.ApplyTransition(models.StatusUploading, 0)
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != models.StatusUploading {
		t.Errorf("expected uploading, got %s", updated.Status)
	}
	if updated.Version != 2 {
		t.Errorf("expected version 2 after update, got %d", updated.Version)
	}

	// Mutation errors abort with nothing written
	_, err = storage.Update(ctx, "doc_2", func(d *models.Document) error {
		d.Status = models.StatusCompleted
		return errors.New("abort")
	})
	if err == nil {
		t.Fatal("expected mutate error to propagate")
	}
	got, err := storage.Get(ctx, "doc_2")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusUploading {
		t.Errorf("aborted update must not persist, got status %s", got.Status)
	}
	if got.Version != 2 {
		t.Errorf("aborted update must not bump version, got %d", got.Version)
	}
}

func TestUpdate_ConcurrentSameID(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	doc := models.NewDocument("doc_3", "a.pdf", "application/pdf", 10, "", models.CategoryGeneral)
	if err := storage.Create(ctx, doc); err != nil {
		t.Fatal(err)
	}

	const writers = 20
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			_, err := storage.Update(ctx, "doc_3", func(d *models.Document) error {
				d.Attempt++ // Arbitrary counter to observe serialized writes
				return nil
			})
			if err != nil {
				t.Errorf("Update: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := storage.Get(ctx, "doc_3")
	if err != nil {
		t.Fatal(err)
	}
	if got.Attempt != 1+writers {
		t.Errorf("lost update: expected attempt %d, got %d", 1+writers, got.Attempt)
	}
	if got.Version != uint64(1+writers) {
		t.Errorf("expected version %d, got %d", 1+writers, got.Version)
	}
}

func TestList_FiltersAndOrder(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	seed := []struct {
		id       string
		fileName string
		client   string
		category models.Category
	}{
		{"doc_a", "Invoice Jan.pdf", "Acme", models.CategoryInvoices},
		{"doc_b", "Bank Statement.pdf", "Acme", models.CategoryBankStatements},
		{"doc_c", "receipt.png", "Globex", models.CategoryReceipts},
	}
	for _, s := range seed {
		doc := models.NewDocument(s.id, s.fileName, "application/pdf", 10, s.client, s.category)
		if err := storage.Create(ctx, doc); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond) // Distinct UpdatedAt for ordering
	}

	// Client filter
	docs, err := storage.List(ctx, &interfaces.ListOptions{Client: "Acme"})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 Acme documents, got %d", len(docs))
	}
	for _, d := range docs {
		if d.Client != "Acme" {
			t.Errorf("filter violated: got client %q", d.Client)
		}
	}

	// Most recently updated first
	all, err := storage.List(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].UpdatedAt.After(all[i-1].UpdatedAt) {
			t.Error("list is not ordered most recently updated first")
		}
	}

	// Case-insensitive search over file name and client
	docs, err = storage.List(ctx, &interfaces.ListOptions{SearchTerm: "invoice"})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].ID != "doc_a" {
		t.Errorf("expected doc_a for search 'invoice', got %d results", len(docs))
	}

	docs, err = storage.List(ctx, &interfaces.ListOptions{SearchTerm: "GLOBEX"})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].ID != "doc_c" {
		t.Errorf("expected doc_c for search 'GLOBEX', got %d results", len(docs))
	}

	// Status filter
	docs, err = storage.List(ctx, &interfaces.ListOptions{Status: models.StatusQueued})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 3 {
		t.Errorf("expected 3 queued documents, got %d", len(docs))
	}
}

func TestList_LimitOffset(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		doc := models.NewDocument(fmt.Sprintf("doc_%d", i), "f.pdf", "application/pdf", 10, "", models.CategoryGeneral)
		if err := storage.Create(ctx, doc); err != nil {
			t.Fatal(err)
		}
	}

	docs, err := storage.List(ctx, &interfaces.ListOptions{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Errorf("expected 2 documents with limit, got %d", len(docs))
	}

	docs, err = storage.List(ctx, &interfaces.ListOptions{Offset: 4, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Errorf("expected 1 document after offset 4, got %d", len(docs))
	}

	docs, err = storage.List(ctx, &interfaces.ListOptions{Offset: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Errorf("expected empty slice past end, got %d", len(docs))
	}
}

func TestListActiveOlderThan(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	stale := models.NewDocument("doc_stale", "a.pdf", "application/pdf", 10, "", models.CategoryGeneral)
	if err := storage.Create(ctx, stale); err != nil {
		t.Fatal(err)
	}
	if _, err := storage.Update(ctx, "doc_stale", func(d *models.Document) error {
		return d.ApplyTransition(models.StatusUploading, 0)
	}); err != nil {
		t.Fatal(err)
	}

	queued := models.NewDocument("doc_queued", "b.pdf", "application/pdf", 10, "", models.CategoryGeneral)
	if err := storage.Create(ctx, queued); err != nil {
		t.Fatal(err)
	}

	// Cutoff in the future: the active document qualifies, the queued one never does
	cutoff := time.Now().Add(time.Hour).UnixMilli()
	docs, err := storage.ListActiveOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].ID != "doc_stale" {
		t.Fatalf("expected only doc_stale, got %d results", len(docs))
	}

	// Cutoff in the past: nothing is stale yet
	cutoff = time.Now().Add(-time.Hour).UnixMilli()
	docs, err = storage.ListActiveOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Errorf("expected no stale documents, got %d", len(docs))
	}
}
