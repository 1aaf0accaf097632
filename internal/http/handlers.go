package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"daily-digest/internal/cache"
	"daily-digest/internal/model"
	"daily-digest/internal/repo"
)

// DigestSource serves stored digests. Satisfied by repo.Store.
type DigestSource interface {
	LatestDigest(ctx context.Context) (*model.DailyDigest, error)
}

// CacheAdmin exposes the response cache's admin surface. Satisfied by
// cache.Store.
type CacheAdmin interface {
	Stats(ctx context.Context) (cache.Stats, error)
	Clear(ctx context.Context, kind string) (int, error)
}

// DigestHandler handles digest and cache admin requests.
type DigestHandler struct {
	digests DigestSource
	cache   CacheAdmin
}

// NewDigestHandler creates a DigestHandler. A nil cache disables the
// cache endpoints with 503 responses.
func NewDigestHandler(digests DigestSource, cacheAdmin CacheAdmin) *DigestHandler {
	return &DigestHandler{digests: digests, cache: cacheAdmin}
}

// RegisterRoutes registers all digest routes.
func (h *DigestHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/digest/latest", h.LatestDigest)
		r.Get("/cache/stats", h.CacheStats)
		r.Delete("/cache", h.ClearCache)
	})
}

// LatestDigest returns the most recently stored digest.
func (h *DigestHandler) LatestDigest(w http.ResponseWriter, r *http.Request) {
	digest, err := h.digests.LatestDigest(r.Context())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no digest available")
			return
		}
		log.Error().Err(err).Msg("failed to load latest digest")
		writeError(w, http.StatusInternalServerError, "failed to load digest")
		return
	}

	writeJSON(w, http.StatusOK, digest)
}

// CacheStats returns entry counts for the response cache.
func (h *DigestHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache is not configured")
		return
	}

	stats, err := h.cache.Stats(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to read cache stats")
		writeError(w, http.StatusInternalServerError, "failed to read cache stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// ClearCache removes cached responses, optionally scoped by ?kind=.
func (h *DigestHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache is not configured")
		return
	}

	kind := r.URL.Query().Get("kind")
	switch kind {
	case "", cache.KindSummary, cache.KindSynthesis:
	default:
		writeError(w, http.StatusBadRequest, "unknown cache kind")
		return
	}

	removed, err := h.cache.Clear(r.Context(), kind)
	if err != nil {
		log.Error().Err(err).Str("kind", kind).Msg("failed to clear cache")
		writeError(w, http.StatusInternalServerError, "failed to clear cache")
		return
	}

	log.Info().Str("kind", kind).Int("removed", removed).Msg("cache cleared")
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
