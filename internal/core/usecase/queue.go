package usecase

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/avolkov/docvault/internal/core/domain"
	"github.com/avolkov/docvault/internal/core/ports"
)

// MutationQueue records remote-bound mutations in the local store.
// Enqueue is fully local: it returns once the item is durable,
// regardless of connectivity. Enqueueing the same logical mutation
// twice produces two independent items; dedup is a caller concern.
type MutationQueue struct {
	store    ports.RecordStore
	identity ports.Identity
}

func NewMutationQueue(store ports.RecordStore, identity ports.Identity) *MutationQueue {
	return &MutationQueue{
		store:    store,
		identity: identity,
	}
}

func (q *MutationQueue) Enqueue(ctx context.Context, op domain.Operation, table, recordID string, fields json.RawMessage) (*domain.QueueItem, error) {
	if err := validateMutation(op, table, recordID); err != nil {
		return nil, err
	}

	item := q.newItem(op, table, recordID, fields)
	if err := q.store.PutQueueItem(ctx, item); err != nil {
		return nil, fmt.Errorf("enqueue %s on %s: %w", op, table, err)
	}
	return item, nil
}

// EnqueueUpload records an upload intent: the placeholder document, its
// content bytes, and the queue item are written in one transaction so an
// edit made offline can never be half-recorded.
func (q *MutationQueue) EnqueueUpload(ctx context.Context, file domain.UploadFile, opts domain.UploadOptions) (*domain.QueueItem, error) {
	if strings.TrimSpace(file.FileName) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "enqueue upload", fmt.Errorf("file name is required"))
	}
	if len(file.Data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "enqueue upload", fmt.Errorf("file content is empty"))
	}

	now := time.Now().UTC()
	doc := &domain.CachedDocument{
		ID:               uuid.NewString(),
		FileName:         file.FileName,
		FileType:         file.FileType,
		FileSize:         int64(len(file.Data)),
		ProcessingStatus: domain.ProcessingPending,
		PendingUpload:    true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	spec := domain.UploadSpec{
		DocumentID: doc.ID,
		FileName:   file.FileName,
		FileType:   file.FileType,
		FileSize:   doc.FileSize,
		Analyze:    opts.Analyze,
		Classify:   opts.Classify,
	}
	payload, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal upload spec: %w", err)
	}

	item := q.newItem(domain.OpUpload, "documents", doc.ID, payload)
	if err := q.store.PutUploadIntent(ctx, doc, file.Data, item); err != nil {
		return nil, fmt.Errorf("enqueue upload %s: %w", file.FileName, err)
	}
	return item, nil
}

func (q *MutationQueue) ListPending(ctx context.Context) ([]domain.QueueItem, error) {
	items, err := q.store.ListQueueItems(ctx, domain.QueuePending, domain.QueueFailed)
	if err != nil {
		return nil, fmt.Errorf("list pending items: %w", err)
	}
	return items, nil
}

func (q *MutationQueue) Remove(ctx context.Context, id string) error {
	item, err := q.store.GetQueueItem(ctx, id)
	if err != nil {
		return fmt.Errorf("load queue item: %w", err)
	}
	if err := q.store.DeleteQueueItem(ctx, id); err != nil {
		return fmt.Errorf("remove queue item: %w", err)
	}

	// Discarding an upload intent also drops its local placeholder.
	if item.Operation == domain.OpUpload {
		if err := q.store.DeleteBlob(ctx, item.RecordID); err != nil && !domain.IsKind(err, domain.ErrNotFound) {
			return fmt.Errorf("remove upload blob: %w", err)
		}
		if err := q.store.DeleteDocument(ctx, item.RecordID); err != nil {
			return fmt.Errorf("remove placeholder document: %w", err)
		}
	}
	return nil
}

func (q *MutationQueue) MarkStatus(ctx context.Context, id string, status domain.QueueStatus, retry bool) error {
	if err := q.store.UpdateQueueStatus(ctx, id, status, retry); err != nil {
		return fmt.Errorf("mark queue status: %w", err)
	}
	return nil
}

// PendingUploadCount reports upload intents whose binary payloads have
// not reached the remote store yet. The connectivity monitor uses it to
// decide between auto-drain and operator-confirmed resume.
func (q *MutationQueue) PendingUploadCount(ctx context.Context) (int, error) {
	items, err := q.store.ListQueueItems(ctx, domain.QueuePending, domain.QueueFailed)
	if err != nil {
		return 0, fmt.Errorf("list queue items: %w", err)
	}
	count := 0
	for _, item := range items {
		if item.Operation == domain.OpUpload {
			count++
		}
	}
	return count, nil
}

// Monotonic entropy keeps ids strictly increasing even within one
// millisecond, so lexicographic id order is creation order.
var queueEntropy = &ulid.LockedMonotonicReader{
	MonotonicReader: ulid.Monotonic(rand.Reader, 0),
}

func (q *MutationQueue) newItem(op domain.Operation, table, recordID string, payload json.RawMessage) *domain.QueueItem {
	now := time.Now().UTC()
	item := &domain.QueueItem{
		ID:          ulid.MustNew(ulid.Timestamp(now), queueEntropy).String(),
		Operation:   op,
		TargetTable: table,
		RecordID:    recordID,
		Payload:     payload,
		Status:      domain.QueuePending,
		UserID:      q.identity.UserID(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if op == domain.OpCreate || op == domain.OpUpload {
		// Stable across retries of this item, so a remote shim can dedupe
		// a create whose first attempt partially succeeded.
		item.IdempotencyKey = uuid.NewString()
	}
	return item
}

func validateMutation(op domain.Operation, table, recordID string) error {
	switch op {
	case domain.OpCreate:
		if recordID != "" {
			return domain.WrapError(domain.ErrInvalidInput, "enqueue", fmt.Errorf("create must not carry a record id"))
		}
	case domain.OpUpdate, domain.OpDelete:
		if recordID == "" {
			return domain.WrapError(domain.ErrInvalidInput, "enqueue", fmt.Errorf("%s requires a record id", op))
		}
	default:
		return domain.WrapError(domain.ErrInvalidInput, "enqueue", fmt.Errorf("unsupported operation %q", op))
	}
	if strings.TrimSpace(table) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "enqueue", fmt.Errorf("target table is required"))
	}
	return nil
}
