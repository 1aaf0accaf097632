package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daily-digest/internal/cache"
	"daily-digest/internal/model"
	"daily-digest/internal/repo"
)

type fakeDigestSource struct {
	digest *model.DailyDigest
	err    error
}

func (f *fakeDigestSource) LatestDigest(ctx context.Context) (*model.DailyDigest, error) {
	return f.digest, f.err
}

type fakeCacheAdmin struct {
	stats       cache.Stats
	statsErr    error
	cleared     int
	clearedKind string
	clearErr    error
}

func (f *fakeCacheAdmin) Stats(ctx context.Context) (cache.Stats, error) {
	return f.stats, f.statsErr
}

func (f *fakeCacheAdmin) Clear(ctx context.Context, kind string) (int, error) {
	f.clearedKind = kind
	return f.cleared, f.clearErr
}

func newTestRouter(digests DigestSource, admin CacheAdmin) chi.Router {
	r := chi.NewRouter()
	NewDigestHandler(digests, admin).RegisterRoutes(r)
	return r
}

func doRequest(t *testing.T, r chi.Router, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestLatestDigestOK(t *testing.T) {
	d := &model.DailyDigest{
		ID:            "ab12cd34",
		Date:          time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC),
		TotalArticles: 5,
	}
	r := newTestRouter(&fakeDigestSource{digest: d}, nil)

	rec := doRequest(t, r, http.MethodGet, "/api/v1/digest/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got model.DailyDigest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ab12cd34", got.ID)
	assert.Equal(t, 5, got.TotalArticles)
}

func TestLatestDigestNotFound(t *testing.T) {
	r := newTestRouter(&fakeDigestSource{err: repo.ErrNotFound}, nil)

	rec := doRequest(t, r, http.MethodGet, "/api/v1/digest/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLatestDigestStoreError(t *testing.T) {
	r := newTestRouter(&fakeDigestSource{err: errors.New("connection refused")}, nil)

	rec := doRequest(t, r, http.MethodGet, "/api/v1/digest/latest")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestCacheStats(t *testing.T) {
	admin := &fakeCacheAdmin{stats: cache.Stats{Total: 12, Expired: 3}}
	r := newTestRouter(&fakeDigestSource{}, admin)

	rec := doRequest(t, r, http.MethodGet, "/api/v1/cache/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var got cache.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 12, got.Total)
	assert.Equal(t, 3, got.Expired)
}

func TestCacheStatsWithoutCache(t *testing.T) {
	r := newTestRouter(&fakeDigestSource{}, nil)

	rec := doRequest(t, r, http.MethodGet, "/api/v1/cache/stats")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestClearCacheByKind(t *testing.T) {
	admin := &fakeCacheAdmin{cleared: 4}
	r := newTestRouter(&fakeDigestSource{}, admin)

	rec := doRequest(t, r, http.MethodDelete, "/api/v1/cache?kind=summary")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, cache.KindSummary, admin.clearedKind)

	var got map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 4, got["removed"])
}

func TestClearCacheAllKinds(t *testing.T) {
	admin := &fakeCacheAdmin{cleared: 9}
	r := newTestRouter(&fakeDigestSource{}, admin)

	rec := doRequest(t, r, http.MethodDelete, "/api/v1/cache")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", admin.clearedKind)
}

func TestClearCacheUnknownKind(t *testing.T) {
	admin := &fakeCacheAdmin{}
	r := newTestRouter(&fakeDigestSource{}, admin)

	rec := doRequest(t, r, http.MethodDelete, "/api/v1/cache?kind=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "", admin.clearedKind)
}
