package usecase

import (
	"context"
	"fmt"

	"github.com/avolkov/docvault/internal/core/domain"
	"github.com/avolkov/docvault/internal/core/ports"
	"github.com/avolkov/docvault/internal/observability/metrics"
)

// Stats is a read-only projection over the record store aggregates.
// Recomputed on every call; never mutates records. Each read also
// refreshes the queue-depth and blob-size gauges.
type Stats struct {
	store   ports.RecordStore
	metrics *metrics.SyncMetrics
}

func NewStats(store ports.RecordStore, syncMetrics *metrics.SyncMetrics) *Stats {
	return &Stats{store: store, metrics: syncMetrics}
}

func (s *Stats) Compute(ctx context.Context) (domain.CacheStats, error) {
	stats, err := s.store.AggregateStats(ctx)
	if err != nil {
		return domain.CacheStats{}, fmt.Errorf("aggregate cache stats: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SetCacheStats(stats)
	}
	return stats, nil
}
