package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/avolkov/docvault/internal/core/domain"
)

// RecordStore is the durable local store of the three record kinds.
// All operations are local-only and must never block on network I/O.
// Write failures surface as domain.ErrStorage; missing rows as
// domain.ErrNotFound.
type RecordStore interface {
	PutDocument(ctx context.Context, doc *domain.CachedDocument) error
	GetDocument(ctx context.Context, id string) (*domain.CachedDocument, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context) ([]domain.CachedDocument, error)

	PutBlob(ctx context.Context, documentID string, data []byte) error
	GetBlob(ctx context.Context, documentID string) ([]byte, error)
	DeleteBlob(ctx context.Context, documentID string) error

	PutQueueItem(ctx context.Context, item *domain.QueueItem) error
	GetQueueItem(ctx context.Context, id string) (*domain.QueueItem, error)
	DeleteQueueItem(ctx context.Context, id string) error
	// ListQueueItems returns items in creation order. With no statuses it
	// returns everything.
	ListQueueItems(ctx context.Context, statuses ...domain.QueueStatus) ([]domain.QueueItem, error)
	UpdateQueueStatus(ctx context.Context, id string, status domain.QueueStatus, retry bool) error

	// PutUploadIntent writes the placeholder document, its blob, and the
	// queue item in one transaction, so the local side effect and the
	// queued intent can never diverge.
	PutUploadIntent(ctx context.Context, doc *domain.CachedDocument, data []byte, item *domain.QueueItem) error

	AggregateStats(ctx context.Context) (domain.CacheStats, error)
}

// RemoteStore is the authoritative document store. Insert carries the
// client-generated idempotency key so a remote shim can dedupe retried
// creates; the remote side itself does not guarantee idempotency.
type RemoteStore interface {
	Insert(ctx context.Context, table string, payload json.RawMessage, idempotencyKey string) (string, error)
	Update(ctx context.Context, table, id string, payload json.RawMessage) error
	Delete(ctx context.Context, table, id string) error
	FetchDocument(ctx context.Context, id string) (*domain.CachedDocument, error)
}

// BlobStorage stores document content bytes remotely.
type BlobStorage interface {
	Upload(ctx context.Context, path string, data []byte) (string, error)
	Download(ctx context.Context, path string) ([]byte, error)
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// AnalysisService is the backend analyze-and-persist pipeline, invoked
// only for upload intents that requested content analysis.
type AnalysisService interface {
	AnalyzeAndPersist(ctx context.Context, req domain.AnalyzeRequest) (*domain.CachedDocument, error)
}

// Identity supplies the stable user id scoping all queued operations.
type Identity interface {
	UserID() string
}

// Connectivity reports the current link state.
type Connectivity interface {
	Online() bool
}
