package domain

import "time"

// SyncResult aggregates one drain pass. Per-item failures are counted
// here, never returned as errors.
type SyncResult struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// SyncSnapshot is the orchestrator's externally readable state.
type SyncSnapshot struct {
	Online       bool      `json:"online"`
	Syncing      bool      `json:"syncing"`
	PendingItems int       `json:"pending_items"`
	LastSyncedAt time.Time `json:"last_synced_at,omitzero"`
}

// CacheStats is the aggregate view of the local record store.
type CacheStats struct {
	DocumentCount    int   `json:"document_count"`
	TotalBlobBytes   int64 `json:"total_blob_bytes"`
	PendingSyncCount int   `json:"pending_sync_count"`
	FailedSyncCount  int   `json:"failed_sync_count"`
}
