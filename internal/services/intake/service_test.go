package intake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/Anmol33/jusfinn-sub000/internal/common"
	"github.com/Anmol33/jusfinn-sub000/internal/interfaces"
	"github.com/Anmol33/jusfinn-sub000/internal/models"
)

// ---- mocks ----

type mockDocStorage struct {
	mu           sync.Mutex
	docs         map[string]*models.Document
	createCalls  int
	failCreateAt int // 1-based call index that returns an error; 0 disables
}

var _ interfaces.DocumentStorage = (*mockDocStorage)(nil)

func newMockDocStorage() *mockDocStorage {
	return &mockDocStorage{docs: make(map[string]*models.Document)}
}

func (m *mockDocStorage) Create(ctx context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.failCreateAt > 0 && m.createCalls == m.failCreateAt {
		return errors.New("storage unavailable")
	}
	copied := *doc
	m.docs[doc.ID] = &copied
	return nil
}

func (m *mockDocStorage) Get(ctx context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, models.ErrDocumentNotFound
	}
	copied := *doc
	return &copied, nil
}

func (m *mockDocStorage) Update(ctx context.Context, id string, mutate func(*models.Document) error) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, models.ErrDocumentNotFound
	}
	if err := mutate(doc); err != nil {
		return nil, err
	}
	doc.Version++
	doc.UpdatedAt = time.Now()
	copied := *doc
	return &copied, nil
}

func (m *mockDocStorage) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return models.ErrDocumentNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *mockDocStorage) List(ctx context.Context, opts *interfaces.ListOptions) ([]*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Document
	for _, d := range m.docs {
		copied := *d
		out = append(out, &copied)
	}
	return out, nil
}

func (m *mockDocStorage) Count(ctx context.Context, opts *interfaces.ListOptions) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs), nil
}

func (m *mockDocStorage) ListActiveOlderThan(ctx context.Context, cutoffUnixMilli int64) ([]*models.Document, error) {
	return nil, nil
}

type mockBlobStorage struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

var _ interfaces.BlobStorage = (*mockBlobStorage)(nil)

func newMockBlobStorage() *mockBlobStorage {
	return &mockBlobStorage{blobs: make(map[string][]byte)}
}

func (m *mockBlobStorage) Put(ctx context.Context, documentID string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := documentID + ".bin"
	m.blobs[ref] = data
	return ref, nil
}

func (m *mockBlobStorage) Open(ctx context.Context, contentRef string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[contentRef]
	if !ok {
		return nil, errors.New("blob not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *mockBlobStorage) Remove(ctx context.Context, contentRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, contentRef)
	return nil
}

type mockStorageManager struct {
	doc  *mockDocStorage
	blob *mockBlobStorage
}

var _ interfaces.StorageManager = (*mockStorageManager)(nil)

func newMockStorageManager() *mockStorageManager {
	return &mockStorageManager{doc: newMockDocStorage(), blob: newMockBlobStorage()}
}

func (m *mockStorageManager) DocumentStorage() interfaces.DocumentStorage { return m.doc }
func (m *mockStorageManager) BlobStorage() interfaces.BlobStorage         { return m.blob }
func (m *mockStorageManager) Close() error                                { return nil }

type mockQueue struct {
	mu       sync.Mutex
	messages []*models.QueueMessage
}

var _ interfaces.QueueManager = (*mockQueue)(nil)

func (m *mockQueue) Start() error { return nil }
func (m *mockQueue) Stop() error  { return nil }

func (m *mockQueue) Enqueue(ctx context.Context, msg *models.QueueMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockQueue) Receive(ctx context.Context) (*models.QueueMessage, func() error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return nil, nil, models.ErrNoMessage
	}
	msg := m.messages[0]
	m.messages = m.messages[1:]
	return msg, func() error { return nil }, nil
}

func (m *mockQueue) Extend(ctx context.Context, msg *models.QueueMessage, d time.Duration) error {
	return nil
}

func (m *mockQueue) Purge(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.messages[:0]
	for _, msg := range m.messages {
		if msg.DocumentID != documentID {
			kept = append(kept, msg)
		}
	}
	m.messages = kept
	return nil
}

func (m *mockQueue) Length(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages), nil
}

type mockEvents struct {
	mu     sync.Mutex
	events []interfaces.Event
}

var _ interfaces.EventService = (*mockEvents)(nil)

func (m *mockEvents) Subscribe(t interfaces.EventType, h interfaces.EventHandler) error   { return nil }
func (m *mockEvents) Unsubscribe(t interfaces.EventType, h interfaces.EventHandler) error { return nil }

func (m *mockEvents) Publish(ctx context.Context, e interfaces.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *mockEvents) PublishSync(ctx context.Context, e interfaces.Event) error {
	return m.Publish(ctx, e)
}

func (m *mockEvents) Close() error { return nil }

func (m *mockEvents) ofType(t interfaces.EventType) []interfaces.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []interfaces.Event
	for _, e := range m.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// ---- fixtures ----

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF")

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func newTestService(storage *mockStorageManager, queue *mockQueue, events *mockEvents) interfaces.IntakeService {
	cfg := &common.IntakeConfig{
		MaxFileSizeBytes:  1024,
		AcceptedMimeTypes: []string{"application/pdf", "image/png", "text/csv"},
	}
	return NewService(cfg, storage, queue, events, arbor.NewLogger())
}

// ---- tests ----

func TestSubmit_EmptyBatch(t *testing.T) {
	svc := newTestService(newMockStorageManager(), &mockQueue{}, &mockEvents{})

	_, err := svc.Submit(context.Background(), &interfaces.IntakeBatch{})
	if err == nil {
		t.Fatal("expected empty batch to be rejected")
	}
	var intakeErr *models.IntakeError
	if !errors.As(err, &intakeErr) {
		t.Fatalf("expected IntakeError, got %T", err)
	}
	if intakeErr.Kind != models.IntakeEmptyBatch {
		t.Errorf("expected empty_batch kind, got %s", intakeErr.Kind)
	}
}

func TestSubmit_AcceptsAndRegisters(t *testing.T) {
	storage := newMockStorageManager()
	queue := &mockQueue{}
	events := &mockEvents{}
	svc := newTestService(storage, queue, events)

	receipt, err := svc.Submit(context.Background(), &interfaces.IntakeBatch{
		Client: "Acme",
		Files: []interfaces.IntakeFile{
			{FileName: "ABC Invoice Jan.pdf", Content: bytes.NewReader(pdfBytes)},
		},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(receipt.Accepted) != 1 || len(receipt.Rejected) != 0 {
		t.Fatalf("expected 1 accepted / 0 rejected, got %d/%d", len(receipt.Accepted), len(receipt.Rejected))
	}

	accepted := receipt.Accepted[0]
	if accepted.Category != models.CategoryInvoices {
		t.Errorf("classifier should assign Invoices, got %q", accepted.Category)
	}
	if !strings.HasPrefix(accepted.ID, "doc_") {
		t.Errorf("document id should carry doc_ prefix, got %q", accepted.ID)
	}

	doc, err := storage.doc.Get(context.Background(), accepted.ID)
	if err != nil {
		t.Fatalf("stored document missing: %v", err)
	}
	if doc.Status != models.StatusQueued {
		t.Errorf("new document must be queued, got %s", doc.Status)
	}
	if doc.Client != "Acme" {
		t.Errorf("expected client Acme, got %q", doc.Client)
	}
	if doc.MimeType != "application/pdf" {
		t.Errorf("expected sniffed mime application/pdf, got %q", doc.MimeType)
	}
	if doc.ContentRef == "" {
		t.Error("expected staged content reference")
	}
	if doc.Attempt != 1 {
		t.Errorf("expected attempt 1, got %d", doc.Attempt)
	}

	// Enqueued for the pipeline
	if n, _ := queue.Length(context.Background()); n != 1 {
		t.Errorf("expected 1 queued message, got %d", n)
	}

	// Registration event emitted
	if got := events.ofType(interfaces.EventDocumentRegistered); len(got) != 1 {
		t.Errorf("expected 1 registered event, got %d", len(got))
	}
}

func TestSubmit_CategoryHintWins(t *testing.T) {
	storage := newMockStorageManager()
	svc := newTestService(storage, &mockQueue{}, &mockEvents{})

	receipt, err := svc.Submit(context.Background(), &interfaces.IntakeBatch{
		Category: models.CategoryTaxDocuments,
		Files: []interfaces.IntakeFile{
			{FileName: "invoice.pdf", Content: bytes.NewReader(pdfBytes)},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Accepted[0].Category != models.CategoryTaxDocuments {
		t.Errorf("caller hint must win over classifier, got %q", receipt.Accepted[0].Category)
	}
}

func TestSubmit_PartialBatch(t *testing.T) {
	storage := newMockStorageManager()
	queue := &mockQueue{}
	svc := newTestService(storage, queue, &mockEvents{})

	exeBytes := append([]byte("MZ"), make([]byte, 64)...)

	receipt, err := svc.Submit(context.Background(), &interfaces.IntakeBatch{
		Files: []interfaces.IntakeFile{
			{FileName: "good.pdf", Content: bytes.NewReader(pdfBytes)},
			{FileName: "malware.exe", Content: bytes.NewReader(exeBytes)},
			{FileName: "scan.png", Content: bytes.NewReader(pngBytes)},
		},
	})
	if err != nil {
		t.Fatalf("partial failures must not abort the batch: %v", err)
	}

	if len(receipt.Accepted) != 2 {
		t.Errorf("expected 2 accepted, got %d", len(receipt.Accepted))
	}
	if len(receipt.Rejected) != 1 {
		t.Fatalf("expected 1 rejected, got %d", len(receipt.Rejected))
	}
	rej := receipt.Rejected[0]
	if rej.Kind != models.IntakeUnsupportedType {
		t.Errorf("expected unsupported_type, got %s", rej.Kind)
	}
	if rej.FileName != "malware.exe" {
		t.Errorf("rejection must name the file, got %q", rej.FileName)
	}

	// No record or queue entry for the rejected file
	if n, _ := storage.doc.Count(context.Background(), nil); n != 2 {
		t.Errorf("rejected file must not create a record, count %d", n)
	}
	if n, _ := queue.Length(context.Background()); n != 2 {
		t.Errorf("rejected file must not be enqueued, length %d", n)
	}
}

func TestSubmit_InfrastructureFailureKeepsPartialReceipt(t *testing.T) {
	storage := newMockStorageManager()
	storage.doc.failCreateAt = 2
	queue := &mockQueue{}
	events := &mockEvents{}
	svc := newTestService(storage, queue, events)

	receipt, err := svc.Submit(context.Background(), &interfaces.IntakeBatch{
		Files: []interfaces.IntakeFile{
			{FileName: "first.pdf", Content: bytes.NewReader(pdfBytes)},
			{FileName: "second.pdf", Content: bytes.NewReader(pdfBytes)},
		},
	})
	if err == nil {
		t.Fatal("expected an error when storage fails mid-batch")
	}
	if receipt == nil {
		t.Fatal("partial receipt must accompany the error")
	}
	if len(receipt.Accepted) != 1 || receipt.Accepted[0].FileName != "first.pdf" {
		t.Fatalf("accepted sibling lost from the receipt: %+v", receipt.Accepted)
	}

	// The first document really was registered, enqueued, and announced
	if _, getErr := storage.doc.Get(context.Background(), receipt.Accepted[0].ID); getErr != nil {
		t.Errorf("accepted document missing from storage: %v", getErr)
	}
	if n, _ := queue.Length(context.Background()); n != 1 {
		t.Errorf("expected 1 queued message, got %d", n)
	}
	if got := events.ofType(interfaces.EventDocumentRegistered); len(got) != 1 {
		t.Errorf("expected 1 registered event, got %d", len(got))
	}
}

func TestSubmit_TooLarge(t *testing.T) {
	svc := newTestService(newMockStorageManager(), &mockQueue{}, &mockEvents{})

	big := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("a"), 2048)...)

	receipt, err := svc.Submit(context.Background(), &interfaces.IntakeBatch{
		Files: []interfaces.IntakeFile{
			{FileName: "big.pdf", Content: bytes.NewReader(big)},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(receipt.Rejected) != 1 || receipt.Rejected[0].Kind != models.IntakeTooLarge {
		t.Fatalf("expected too_large rejection, got %+v", receipt.Rejected)
	}

	// Declared size past the ceiling short-circuits before reading
	receipt, err = svc.Submit(context.Background(), &interfaces.IntakeBatch{
		Files: []interfaces.IntakeFile{
			{FileName: "declared-big.pdf", Size: 50 * 1024 * 1024, Content: bytes.NewReader(pdfBytes)},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(receipt.Rejected) != 1 || receipt.Rejected[0].Kind != models.IntakeTooLarge {
		t.Fatalf("expected too_large rejection for declared size, got %+v", receipt.Rejected)
	}
}

func TestSubmit_DeclaredTypeFallback(t *testing.T) {
	storage := newMockStorageManager()
	svc := newTestService(storage, &mockQueue{}, &mockEvents{})

	csv := []byte("date,amount,description\n2025-08-01,120.50,stationery\n")

	receipt, err := svc.Submit(context.Background(), &interfaces.IntakeBatch{
		Files: []interfaces.IntakeFile{
			{FileName: "ledger.csv", DeclaredMimeType: "text/csv", Content: bytes.NewReader(csv)},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(receipt.Accepted) != 1 {
		t.Fatalf("expected csv with declared type to be accepted, rejected: %+v", receipt.Rejected)
	}
}

func TestSubmit_ManyFilesAllRegistered(t *testing.T) {
	storage := newMockStorageManager()
	queue := &mockQueue{}
	svc := newTestService(storage, queue, &mockEvents{})

	var files []interfaces.IntakeFile
	for i := 0; i < 10; i++ {
		files = append(files, interfaces.IntakeFile{
			FileName: fmt.Sprintf("receipt-%d.pdf", i),
			Content:  bytes.NewReader(pdfBytes),
		})
	}

	receipt, err := svc.Submit(context.Background(), &interfaces.IntakeBatch{Files: files})
	if err != nil {
		t.Fatal(err)
	}
	if len(receipt.Accepted) != 10 {
		t.Fatalf("expected 10 accepted, got %d", len(receipt.Accepted))
	}

	// Every file gets a distinct id
	seen := make(map[string]bool)
	for _, a := range receipt.Accepted {
		if seen[a.ID] {
			t.Errorf("duplicate document id %s", a.ID)
		}
		seen[a.ID] = true
	}

	if n, _ := queue.Length(context.Background()); n != 10 {
		t.Errorf("expected 10 queued messages, got %d", n)
	}
}
