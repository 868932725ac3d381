package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/avolkov/docvault/internal/core/domain"
)

// MutationQueuer records remote-bound mutations durably and locally.
// Enqueue returns once the item is in the record store, regardless of
// network state.
type MutationQueuer interface {
	Enqueue(ctx context.Context, op domain.Operation, table, recordID string, fields json.RawMessage) (*domain.QueueItem, error)
	EnqueueUpload(ctx context.Context, file domain.UploadFile, opts domain.UploadOptions) (*domain.QueueItem, error)
	ListPending(ctx context.Context) ([]domain.QueueItem, error)
	Remove(ctx context.Context, id string) error
	MarkStatus(ctx context.Context, id string, status domain.QueueStatus, retry bool) error
	PendingUploadCount(ctx context.Context) (int, error)
}

// SyncDrainer executes queued mutations against the remote store.
type SyncDrainer interface {
	Drain(ctx context.Context) (domain.SyncResult, error)
	DrainSelected(ctx context.Context, ids []string) (domain.SyncResult, error)
	Snapshot(ctx context.Context) (domain.SyncSnapshot, error)
}

// AvailabilityManager caches remote documents for offline use.
type AvailabilityManager interface {
	MakeAvailable(ctx context.Context, documentID string) (bool, error)
	Remove(ctx context.Context, documentID string) error
	IsAvailableOffline(ctx context.Context, documentID string) (bool, error)
	ContentURL(ctx context.Context, documentID string, ttl time.Duration) (string, error)
}

// StatsReporter computes read-only cache aggregates.
type StatsReporter interface {
	Compute(ctx context.Context) (domain.CacheStats, error)
}
