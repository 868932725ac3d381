package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avolkov/docvault/internal/core/domain"
	"github.com/avolkov/docvault/internal/core/ports"
)

// Availability caches remote documents locally for offline use.
type Availability struct {
	store  ports.RecordStore
	remote ports.RemoteStore
	blobs  ports.BlobStorage
	logger *slog.Logger
}

func NewAvailability(store ports.RecordStore, remote ports.RemoteStore, blobs ports.BlobStorage, logger *slog.Logger) *Availability {
	if logger == nil {
		logger = slog.Default()
	}
	return &Availability{
		store:  store,
		remote: remote,
		blobs:  blobs,
		logger: logger,
	}
}

// MakeAvailable fetches the document's metadata and content. A failed
// content download degrades to metadata-only caching and returns false
// rather than an error: partial offline availability beats none.
func (a *Availability) MakeAvailable(ctx context.Context, documentID string) (bool, error) {
	doc, err := a.remote.FetchDocument(ctx, documentID)
	if err != nil {
		return false, fmt.Errorf("fetch document metadata: %w", err)
	}

	if err := a.store.PutDocument(ctx, doc); err != nil {
		return false, fmt.Errorf("cache document metadata: %w", err)
	}

	if doc.StoragePath == "" {
		a.logger.Warn("document has no stored content", "document", documentID)
		return false, nil
	}

	data, err := a.blobs.Download(ctx, doc.StoragePath)
	if err != nil {
		a.logger.Warn("content download failed, keeping metadata only",
			"document", documentID, "error", err)
		return false, nil
	}

	if err := a.store.PutBlob(ctx, documentID, data); err != nil {
		return false, fmt.Errorf("cache document content: %w", err)
	}
	return true, nil
}

// Remove evicts the cached record and its blob.
func (a *Availability) Remove(ctx context.Context, documentID string) error {
	if err := a.store.DeleteBlob(ctx, documentID); err != nil && !domain.IsKind(err, domain.ErrNotFound) {
		return fmt.Errorf("evict blob: %w", err)
	}
	if err := a.store.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("evict document: %w", err)
	}
	return nil
}

// ContentURL returns a time-limited direct URL for the document's
// stored content, for handing to a viewer without a local download.
func (a *Availability) ContentURL(ctx context.Context, documentID string, ttl time.Duration) (string, error) {
	doc, err := a.store.GetDocument(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("load cached document: %w", err)
	}
	if doc.StoragePath == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "content url",
			fmt.Errorf("document %s has no stored content", documentID))
	}
	url, err := a.blobs.SignedURL(ctx, doc.StoragePath, ttl)
	if err != nil {
		return "", fmt.Errorf("sign content url: %w", err)
	}
	return url, nil
}

// IsAvailableOffline reports whether the document's content is cached.
func (a *Availability) IsAvailableOffline(ctx context.Context, documentID string) (bool, error) {
	_, err := a.store.GetBlob(ctx, documentID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("check cached content: %w", err)
	}
	return true, nil
}
