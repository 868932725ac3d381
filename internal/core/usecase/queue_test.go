package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/avolkov/docvault/internal/core/domain"
	"github.com/avolkov/docvault/internal/infrastructure/store/memory"
)

type staticIdentity struct{ id string }

func (s staticIdentity) UserID() string { return s.id }

func newTestQueue() (*MutationQueue, *memory.Store) {
	store := memory.NewStore()
	return NewMutationQueue(store, staticIdentity{id: "user-1"}), store
}

func TestEnqueueCreate(t *testing.T) {
	queue, _ := newTestQueue()

	item, err := queue.Enqueue(context.Background(), domain.OpCreate, "documents", "", json.RawMessage(`{"file_name":"a.txt"}`))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if item.ID == "" {
		t.Error("item has no id")
	}
	if item.Status != domain.QueuePending {
		t.Errorf("status = %q, want pending", item.Status)
	}
	if item.IdempotencyKey == "" {
		t.Error("create item has no idempotency key")
	}
	if item.UserID != "user-1" {
		t.Errorf("user id = %q", item.UserID)
	}

	pending, err := queue.ListPending(context.Background())
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != item.ID {
		t.Errorf("pending = %+v", pending)
	}
}

func TestEnqueueUpdateHasNoIdempotencyKey(t *testing.T) {
	queue, _ := newTestQueue()

	item, err := queue.Enqueue(context.Background(), domain.OpUpdate, "documents", "doc-1", json.RawMessage(`{"is_favorite":true}`))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if item.IdempotencyKey != "" {
		t.Errorf("update item carries idempotency key %q", item.IdempotencyKey)
	}
}

func TestEnqueueValidation(t *testing.T) {
	queue, _ := newTestQueue()

	cases := []struct {
		name     string
		op       domain.Operation
		table    string
		recordID string
	}{
		{"create with record id", domain.OpCreate, "documents", "doc-1"},
		{"update without record id", domain.OpUpdate, "documents", ""},
		{"delete without record id", domain.OpDelete, "documents", ""},
		{"empty table", domain.OpCreate, "  ", ""},
		{"unknown operation", domain.Operation("merge"), "documents", "doc-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := queue.Enqueue(context.Background(), tc.op, tc.table, tc.recordID, nil)
			if !domain.IsKind(err, domain.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestEnqueuePreservesCreationOrder(t *testing.T) {
	queue, _ := newTestQueue()

	var ids []string
	for i := 0; i < 5; i++ {
		item, err := queue.Enqueue(context.Background(), domain.OpCreate, "documents", "", nil)
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		ids = append(ids, item.ID)
	}

	pending, err := queue.ListPending(context.Background())
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != len(ids) {
		t.Fatalf("pending count = %d, want %d", len(pending), len(ids))
	}
	for i, item := range pending {
		if item.ID != ids[i] {
			t.Fatalf("position %d: got %s, want %s", i, item.ID, ids[i])
		}
	}
}

func TestEnqueueStorageFailureSurfaces(t *testing.T) {
	queue, store := newTestQueue()
	store.FailWrites = true

	_, err := queue.Enqueue(context.Background(), domain.OpCreate, "documents", "", nil)
	if !domain.IsKind(err, domain.ErrStorage) {
		t.Errorf("err = %v, want ErrStorage", err)
	}
}

func TestEnqueueUpload(t *testing.T) {
	queue, store := newTestQueue()

	item, err := queue.EnqueueUpload(context.Background(),
		domain.UploadFile{FileName: "report.pdf", FileType: "application/pdf", Data: []byte("pdf bytes")},
		domain.UploadOptions{Analyze: true, Classify: true},
	)
	if err != nil {
		t.Fatalf("EnqueueUpload: %v", err)
	}
	if item.Operation != domain.OpUpload {
		t.Errorf("operation = %q", item.Operation)
	}
	if item.IdempotencyKey == "" {
		t.Error("upload item has no idempotency key")
	}

	var spec domain.UploadSpec
	if err := json.Unmarshal(item.Payload, &spec); err != nil {
		t.Fatalf("decode spec: %v", err)
	}
	if spec.FileName != "report.pdf" || !spec.Analyze || !spec.Classify {
		t.Errorf("spec = %+v", spec)
	}
	if spec.FileSize != int64(len("pdf bytes")) {
		t.Errorf("file size = %d", spec.FileSize)
	}

	doc, err := store.GetDocument(context.Background(), spec.DocumentID)
	if err != nil {
		t.Fatalf("placeholder document missing: %v", err)
	}
	if !doc.PendingUpload {
		t.Error("placeholder not marked pending upload")
	}
	if doc.ProcessingStatus != domain.ProcessingPending {
		t.Errorf("placeholder status = %q", doc.ProcessingStatus)
	}

	data, err := store.GetBlob(context.Background(), spec.DocumentID)
	if err != nil {
		t.Fatalf("placeholder blob missing: %v", err)
	}
	if string(data) != "pdf bytes" {
		t.Errorf("blob = %q", data)
	}
}

func TestEnqueueUploadValidation(t *testing.T) {
	queue, _ := newTestQueue()

	_, err := queue.EnqueueUpload(context.Background(),
		domain.UploadFile{FileName: " ", Data: []byte("x")}, domain.UploadOptions{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Errorf("empty name: err = %v, want ErrInvalidInput", err)
	}

	_, err = queue.EnqueueUpload(context.Background(),
		domain.UploadFile{FileName: "a.txt"}, domain.UploadOptions{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Errorf("empty data: err = %v, want ErrInvalidInput", err)
	}
}

func TestEnqueueUploadAtomicOnStorageFailure(t *testing.T) {
	queue, store := newTestQueue()
	store.FailWrites = true

	_, err := queue.EnqueueUpload(context.Background(),
		domain.UploadFile{FileName: "a.txt", Data: []byte("x")}, domain.UploadOptions{})
	if !domain.IsKind(err, domain.ErrStorage) {
		t.Fatalf("err = %v, want ErrStorage", err)
	}

	store.FailWrites = false
	docs, _ := store.ListDocuments(context.Background())
	if len(docs) != 0 {
		t.Errorf("placeholder leaked: %+v", docs)
	}
	items, _ := store.ListQueueItems(context.Background())
	if len(items) != 0 {
		t.Errorf("queue item leaked: %+v", items)
	}
}

func TestRemoveUploadDropsPlaceholder(t *testing.T) {
	queue, store := newTestQueue()

	item, err := queue.EnqueueUpload(context.Background(),
		domain.UploadFile{FileName: "a.txt", Data: []byte("x")}, domain.UploadOptions{})
	if err != nil {
		t.Fatalf("EnqueueUpload: %v", err)
	}

	if err := queue.Remove(context.Background(), item.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if _, err := store.GetDocument(context.Background(), item.RecordID); !domain.IsKind(err, domain.ErrNotFound) {
		t.Errorf("placeholder still cached: %v", err)
	}
	if _, err := store.GetBlob(context.Background(), item.RecordID); !domain.IsKind(err, domain.ErrNotFound) {
		t.Errorf("blob still cached: %v", err)
	}
}

func TestRemoveMissingItem(t *testing.T) {
	queue, _ := newTestQueue()

	err := queue.Remove(context.Background(), "no-such-item")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPendingUploadCount(t *testing.T) {
	queue, _ := newTestQueue()
	ctx := context.Background()

	if _, err := queue.Enqueue(ctx, domain.OpCreate, "documents", "", nil); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	upload, err := queue.EnqueueUpload(ctx,
		domain.UploadFile{FileName: "a.txt", Data: []byte("x")}, domain.UploadOptions{})
	if err != nil {
		t.Fatalf("EnqueueUpload: %v", err)
	}

	count, err := queue.PendingUploadCount(ctx)
	if err != nil {
		t.Fatalf("PendingUploadCount: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	// A failed upload still counts; it has not reached the remote store.
	if err := queue.MarkStatus(ctx, upload.ID, domain.QueueFailed, true); err != nil {
		t.Fatalf("MarkStatus: %v", err)
	}
	count, err = queue.PendingUploadCount(ctx)
	if err != nil {
		t.Fatalf("PendingUploadCount: %v", err)
	}
	if count != 1 {
		t.Errorf("count after failure = %d, want 1", count)
	}
}

func TestIdempotencyKeyStableAcrossRetries(t *testing.T) {
	queue, store := newTestQueue()
	ctx := context.Background()

	item, err := queue.Enqueue(ctx, domain.OpCreate, "documents", "", nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := queue.MarkStatus(ctx, item.ID, domain.QueueFailed, true); err != nil {
		t.Fatalf("MarkStatus: %v", err)
	}
	reloaded, err := store.GetQueueItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetQueueItem: %v", err)
	}
	if reloaded.IdempotencyKey != item.IdempotencyKey {
		t.Errorf("idempotency key changed: %q -> %q", item.IdempotencyKey, reloaded.IdempotencyKey)
	}
}
