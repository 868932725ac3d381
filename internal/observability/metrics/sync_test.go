package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/avolkov/docvault/internal/core/domain"
)

func TestCountersCarryServiceLabel(t *testing.T) {
	m := NewSyncMetrics("vault-worker")

	m.CountDrain("completed")
	m.CountDrain("completed")
	m.CountDrain("rejected")
	m.CountItem("create", true)
	m.CountItem("create", false)

	if got := testutil.ToFloat64(m.drainTotal.WithLabelValues("vault-worker", "completed")); got != 2 {
		t.Errorf("drain completed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.drainTotal.WithLabelValues("vault-worker", "rejected")); got != 1 {
		t.Errorf("drain rejected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.itemTotal.WithLabelValues("vault-worker", "create", "success")); got != 1 {
		t.Errorf("item success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.itemTotal.WithLabelValues("vault-worker", "create", "failure")); got != 1 {
		t.Errorf("item failure = %v, want 1", got)
	}
	// Nothing lands under a label the constructor was not given.
	if got := testutil.ToFloat64(m.drainTotal.WithLabelValues("syncd", "completed")); got != 0 {
		t.Errorf("stray service label count = %v, want 0", got)
	}
}

func TestSetCacheStatsUpdatesGauges(t *testing.T) {
	m := NewSyncMetrics("syncd")

	m.SetCacheStats(domain.CacheStats{
		DocumentCount:    4,
		TotalBlobBytes:   2048,
		PendingSyncCount: 2,
		FailedSyncCount:  1,
	})

	if got := testutil.ToFloat64(m.queueDepth); got != 3 {
		t.Errorf("queue depth = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.blobBytes); got != 2048 {
		t.Errorf("blob bytes = %v, want 2048", got)
	}
}

func TestObserveDrainRecordsDuration(t *testing.T) {
	m := NewSyncMetrics("syncd")

	m.ObserveDrain(120 * time.Millisecond)
	m.ObserveDrain(80 * time.Millisecond)

	if got := testutil.CollectAndCount(m.drainDuration); got != 1 {
		t.Errorf("histogram series = %d, want 1", got)
	}
}
