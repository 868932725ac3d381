package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avolkov/docvault/internal/core/domain"
	"github.com/avolkov/docvault/internal/core/ports"
	"github.com/avolkov/docvault/internal/observability/metrics"
)

// SyncOrchestrator drains the mutation queue against the remote store.
// One pass processes a snapshot of pending and failed items in creation
// order, strictly sequentially: queued mutations may depend on earlier
// ones and ordering is the only correctness mechanism available.
type SyncOrchestrator struct {
	store        ports.RecordStore
	remote       ports.RemoteStore
	blobs        ports.BlobStorage
	analysis     ports.AnalysisService
	connectivity ports.Connectivity
	lease        *Lease
	metrics      *metrics.SyncMetrics
	logger       *slog.Logger

	mu           sync.Mutex
	lastSyncedAt time.Time
}

func NewSyncOrchestrator(
	store ports.RecordStore,
	remote ports.RemoteStore,
	blobs ports.BlobStorage,
	analysis ports.AnalysisService,
	connectivity ports.Connectivity,
	lease *Lease,
	syncMetrics *metrics.SyncMetrics,
	logger *slog.Logger,
) *SyncOrchestrator {
	if lease == nil {
		lease = NewLease()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncOrchestrator{
		store:        store,
		remote:       remote,
		blobs:        blobs,
		analysis:     analysis,
		connectivity: connectivity,
		lease:        lease,
		metrics:      syncMetrics,
		logger:       logger,
	}
}

// Drain executes one pass over all pending and failed queue items.
// It returns domain.ErrOffline when disconnected and
// domain.ErrSyncInProgress when another pass holds the lease; the
// rejected call does not queue a second pass.
func (o *SyncOrchestrator) Drain(ctx context.Context) (domain.SyncResult, error) {
	return o.drain(ctx, nil)
}

// DrainSelected drains only the named items, in creation order. It backs
// the operator-confirmed "resume uploads" flow.
func (o *SyncOrchestrator) DrainSelected(ctx context.Context, ids []string) (domain.SyncResult, error) {
	selected := make(map[string]bool, len(ids))
	for _, id := range ids {
		selected[id] = true
	}
	return o.drain(ctx, selected)
}

func (o *SyncOrchestrator) drain(ctx context.Context, selected map[string]bool) (domain.SyncResult, error) {
	if !o.connectivity.Online() {
		o.countDrain("offline")
		return domain.SyncResult{}, domain.ErrOffline
	}

	release, ok := o.lease.TryAcquire()
	if !ok {
		o.countDrain("rejected")
		return domain.SyncResult{}, domain.ErrSyncInProgress
	}
	defer release()

	started := time.Now()
	// Items enqueued after this snapshot wait for the next pass.
	items, err := o.store.ListQueueItems(ctx, domain.QueuePending, domain.QueueFailed)
	if err != nil {
		return domain.SyncResult{}, fmt.Errorf("list queue snapshot: %w", err)
	}

	var result domain.SyncResult
	for _, item := range items {
		if selected != nil && !selected[item.ID] {
			continue
		}
		if o.processItem(ctx, item) {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	o.mu.Lock()
	o.lastSyncedAt = time.Now().UTC()
	o.mu.Unlock()

	o.countDrain("completed")
	if o.metrics != nil {
		o.metrics.ObserveDrain(time.Since(started))
	}
	o.logger.Info("drain pass finished",
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return result, nil
}

// processItem runs one queue item to a terminal state. An item failure
// never aborts the pass.
func (o *SyncOrchestrator) processItem(ctx context.Context, item domain.QueueItem) bool {
	if err := o.store.UpdateQueueStatus(ctx, item.ID, domain.QueueSyncing, item.Retry); err != nil {
		o.logger.Error("mark item syncing", "item", item.ID, "error", err)
		return false
	}

	if err := o.dispatch(ctx, item); err != nil {
		o.logger.Warn("queue item failed",
			"item", item.ID, "operation", item.Operation, "table", item.TargetTable, "error", err)
		if markErr := o.store.UpdateQueueStatus(ctx, item.ID, domain.QueueFailed, true); markErr != nil {
			o.logger.Error("mark item failed", "item", item.ID, "error", markErr)
		}
		o.countItem(item.Operation, false)
		return false
	}

	if err := o.store.DeleteQueueItem(ctx, item.ID); err != nil {
		// The remote effect is done; leave the item for replay and rely
		// on the idempotency key to keep the retry harmless.
		o.logger.Error("remove completed item", "item", item.ID, "error", err)
		o.countItem(item.Operation, false)
		return false
	}
	o.countItem(item.Operation, true)
	return true
}

func (o *SyncOrchestrator) dispatch(ctx context.Context, item domain.QueueItem) error {
	switch item.Operation {
	case domain.OpCreate:
		_, err := o.remote.Insert(ctx, item.TargetTable, item.Payload, item.IdempotencyKey)
		return err
	case domain.OpUpdate:
		return o.remote.Update(ctx, item.TargetTable, item.RecordID, item.Payload)
	case domain.OpDelete:
		if err := o.remote.Delete(ctx, item.TargetTable, item.RecordID); err != nil {
			return err
		}
		return o.evictLocal(ctx, item)
	case domain.OpUpload:
		return o.uploadIntent(ctx, item)
	default:
		return domain.WrapError(domain.ErrInvalidInput, "dispatch", fmt.Errorf("unknown operation %q", item.Operation))
	}
}

// uploadIntent performs the two-phase upload: push the bytes to blob
// storage, then create the metadata record either through the analysis
// backend or with a direct insert.
func (o *SyncOrchestrator) uploadIntent(ctx context.Context, item domain.QueueItem) error {
	var spec domain.UploadSpec
	if err := json.Unmarshal(item.Payload, &spec); err != nil {
		return fmt.Errorf("decode upload spec: %w", err)
	}

	data, err := o.store.GetBlob(ctx, spec.DocumentID)
	if err != nil {
		return fmt.Errorf("load upload payload: %w", err)
	}

	path := fmt.Sprintf("%s/%d_%s", item.UserID, item.CreatedAt.UnixMilli(), spec.FileName)
	storedPath, err := o.blobs.Upload(ctx, path, data)
	if err != nil {
		return fmt.Errorf("upload blob: %w", err)
	}

	// A metadata failure past this point leaves the blob orphaned. The
	// path is derived from the item's creation time, so a retry of the
	// same item overwrites it in place instead of piling up copies.
	confirmed, err := o.persistUploadMetadata(ctx, item, spec, storedPath, data)
	if err != nil {
		return err
	}

	o.finalizeUpload(ctx, spec.DocumentID, confirmed, data)
	return nil
}

func (o *SyncOrchestrator) persistUploadMetadata(ctx context.Context, item domain.QueueItem, spec domain.UploadSpec, storedPath string, data []byte) (*domain.CachedDocument, error) {
	if spec.Analyze {
		doc, err := o.analysis.AnalyzeAndPersist(ctx, domain.AnalyzeRequest{
			FileName: spec.FileName,
			FileType: spec.FileType,
			Data:     data,
			UserID:   item.UserID,
			Classify: spec.Classify,
		})
		if err != nil {
			return nil, fmt.Errorf("analyze and persist: %w", err)
		}
		return doc, nil
	}

	now := time.Now().UTC()
	row := domain.CachedDocument{
		FileName:         spec.FileName,
		FileType:         spec.FileType,
		FileSize:         spec.FileSize,
		StoragePath:      storedPath,
		ProcessingStatus: domain.ProcessingCompleted,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	payload, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("marshal document row: %w", err)
	}
	id, err := o.remote.Insert(ctx, item.TargetTable, payload, item.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("insert document metadata: %w", err)
	}
	row.ID = id
	return &row, nil
}

// finalizeUpload replaces the local placeholder with the remote-confirmed
// record. The remote effect already happened, so failures here are
// logged but do not fail the item.
func (o *SyncOrchestrator) finalizeUpload(ctx context.Context, placeholderID string, confirmed *domain.CachedDocument, data []byte) {
	confirmed.PendingUpload = false
	if err := o.store.PutDocument(ctx, confirmed); err != nil {
		o.logger.Error("write confirmed document", "document", confirmed.ID, "error", err)
		return
	}
	if err := o.store.PutBlob(ctx, confirmed.ID, data); err != nil {
		o.logger.Error("carry blob to confirmed document", "document", confirmed.ID, "error", err)
	}
	if err := o.store.DeleteBlob(ctx, placeholderID); err != nil && !domain.IsKind(err, domain.ErrNotFound) {
		o.logger.Error("drop placeholder blob", "document", placeholderID, "error", err)
	}
	if err := o.store.DeleteDocument(ctx, placeholderID); err != nil {
		o.logger.Error("drop placeholder document", "document", placeholderID, "error", err)
	}
}

func (o *SyncOrchestrator) evictLocal(ctx context.Context, item domain.QueueItem) error {
	if item.TargetTable != "documents" {
		return nil
	}
	if err := o.store.DeleteBlob(ctx, item.RecordID); err != nil && !domain.IsKind(err, domain.ErrNotFound) {
		return fmt.Errorf("evict blob: %w", err)
	}
	if err := o.store.DeleteDocument(ctx, item.RecordID); err != nil {
		return fmt.Errorf("evict document: %w", err)
	}
	return nil
}

// ReclaimStale marks items left syncing by a previous process lifetime
// as failed/retry. The remote effect's completion status is unknown, so
// they are never auto-resumed; the next pass picks them up explicitly.
func (o *SyncOrchestrator) ReclaimStale(ctx context.Context) (int, error) {
	items, err := o.store.ListQueueItems(ctx, domain.QueueSyncing)
	if err != nil {
		return 0, fmt.Errorf("list syncing items: %w", err)
	}
	reclaimed := 0
	for _, item := range items {
		if err := o.store.UpdateQueueStatus(ctx, item.ID, domain.QueueFailed, true); err != nil {
			return reclaimed, fmt.Errorf("reclaim item %s: %w", item.ID, err)
		}
		reclaimed++
	}
	if reclaimed > 0 {
		o.logger.Warn("reclaimed stale syncing items", "count", reclaimed)
	}
	return reclaimed, nil
}

// Snapshot reports the orchestrator's externally visible state.
func (o *SyncOrchestrator) Snapshot(ctx context.Context) (domain.SyncSnapshot, error) {
	items, err := o.store.ListQueueItems(ctx, domain.QueuePending, domain.QueueFailed)
	if err != nil {
		return domain.SyncSnapshot{}, fmt.Errorf("count pending items: %w", err)
	}

	o.mu.Lock()
	lastSynced := o.lastSyncedAt
	o.mu.Unlock()

	return domain.SyncSnapshot{
		Online:       o.connectivity.Online(),
		Syncing:      o.lease.Held(),
		PendingItems: len(items),
		LastSyncedAt: lastSynced,
	}, nil
}

func (o *SyncOrchestrator) countDrain(result string) {
	if o.metrics != nil {
		o.metrics.CountDrain(result)
	}
}

func (o *SyncOrchestrator) countItem(op domain.Operation, success bool) {
	if o.metrics != nil {
		o.metrics.CountItem(string(op), success)
	}
}
