package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avolkov/docvault/internal/core/domain"
	"github.com/avolkov/docvault/internal/core/ports"
)

// Router is the control-plane surface of the sync engine: inspect the
// queue and cache, trigger drains, and pin documents for offline use.
// All state lives in the usecases; handlers are JSON glue.
type Router struct {
	queue        ports.MutationQueuer
	drainer      ports.SyncDrainer
	availability ports.AvailabilityManager
	stats        ports.StatsReporter
}

func NewRouter(
	queue ports.MutationQueuer,
	drainer ports.SyncDrainer,
	availability ports.AvailabilityManager,
	stats ports.StatsReporter,
) *Router {
	return &Router{
		queue:        queue,
		drainer:      drainer,
		availability: availability,
		stats:        stats,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/stats", rt.getStats)
	mux.HandleFunc("/v1/queue", rt.listQueue)
	mux.HandleFunc("/v1/queue/", rt.removeQueueItem)
	mux.HandleFunc("/v1/sync", rt.sync)
	mux.HandleFunc("/v1/sync/uploads", rt.syncUploads)
	mux.HandleFunc("/v1/documents/", rt.documentOffline)
	return requestIDMiddleware(accessLogMiddleware(mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) getStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := rt.stats.Compute(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) listQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	items, err := rt.queue.ListPending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (rt *Router) removeQueueItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/queue/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "queue item id is required"})
		return
	}
	if err := rt.queue.Remove(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) sync(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		snapshot, err := rt.drainer.Snapshot(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snapshot)
	case http.MethodPost:
		result, err := rt.drainer.Drain(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	default:
		methodNotAllowed(w)
	}
}

// syncUploads confirms resuming queued uploads. Without ids in the body
// every pending upload intent is drained; with ids only the chosen
// subset runs.
func (rt *Router) syncUploads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req struct {
		IDs []string `json:"ids"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}

	ids := req.IDs
	if len(ids) == 0 {
		items, err := rt.queue.ListPending(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		for _, item := range items {
			if item.Operation == domain.OpUpload {
				ids = append(ids, item.ID)
			}
		}
	}
	if len(ids) == 0 {
		writeJSON(w, http.StatusOK, domain.SyncResult{})
		return
	}

	result, err := rt.drainer.DrainSelected(r.Context(), ids)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) documentOffline(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id, ok := strings.CutSuffix(rest, "/url"); ok && id != "" && !strings.Contains(id, "/") {
		rt.contentURL(w, r, id)
		return
	}
	id, ok := strings.CutSuffix(rest, "/offline")
	if !ok || id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	switch r.Method {
	case http.MethodPost:
		cached, err := rt.availability.MakeAvailable(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"available_offline": cached})
	case http.MethodDelete:
		if err := rt.availability.Remove(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func (rt *Router) contentURL(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	ttl := 15 * time.Minute
	if raw := r.URL.Query().Get("ttl_seconds"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ttl_seconds"})
			return
		}
		ttl = time.Duration(seconds) * time.Second
	}

	url, err := rt.availability.ContentURL(r.Context(), id, ttl)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
