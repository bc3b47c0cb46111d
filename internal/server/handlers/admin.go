package handlers

import (
	"net/http"
	"time"

	"github.com/pkgmeta/repometa/internal/metrics"
	"github.com/pkgmeta/repometa/internal/observability"
	"go.uber.org/zap"
)

// CacheAdmin is the result cache surface exposed to operators.
type CacheAdmin interface {
	InvalidateAll()
	Len() int
	TTL() time.Duration
}

// CacheStats describes the result cache.
type CacheStats struct {
	Entries    int    `json:"entries"`
	TTL        string `json:"ttl"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

// InvalidateResponse reports how many entries an invalidation dropped.
type InvalidateResponse struct {
	Invalidated int       `json:"invalidated"`
	Timestamp   time.Time `json:"timestamp"`
}

// CacheHandlers serves the cache admin endpoints.
type CacheHandlers struct {
	Cache CacheAdmin
}

// Stats serves GET /admin/cache.
func (h *CacheHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	ttl := h.Cache.TTL()
	writeJSON(w, http.StatusOK, CacheStats{
		Entries:    h.Cache.Len(),
		TTL:        ttl.String(),
		TTLSeconds: int64(ttl / time.Second),
	})
}

// Invalidate serves POST /admin/cache/invalidate.
func (h *CacheHandlers) Invalidate(w http.ResponseWriter, r *http.Request) {
	dropped := h.Cache.Len()
	h.Cache.InvalidateAll()

	metrics.RecordAdminOperation("cache_invalidate", true)
	metrics.RecordCacheInvalidated(dropped)
	metrics.SetCacheEntries(0)
	observability.Current().Info("Result cache invalidated", zap.Int("entries", dropped))

	writeJSON(w, http.StatusOK, InvalidateResponse{Invalidated: dropped, Timestamp: time.Now().UTC()})
}
