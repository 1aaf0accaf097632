package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daily-digest/internal/model"
)

type captureStore struct {
	created []*model.Article
}

func (s *captureStore) PendingSince(ctx context.Context, since time.Time) ([]*model.Article, error) {
	return nil, nil
}

func (s *captureStore) CreateArticle(ctx context.Context, a *model.Article) error {
	s.created = append(s.created, a)
	return nil
}

func (s *captureStore) UpdateSummary(ctx context.Context, id, summary string, takeaways, actionItems []string) error {
	return nil
}

func (s *captureStore) UpdateStatus(ctx context.Context, id string, status model.ArticleStatus) error {
	return nil
}

func (s *captureStore) SaveDigest(ctx context.Context, d *model.DailyDigest) error { return nil }

func (s *captureStore) LatestDigest(ctx context.Context) (*model.DailyDigest, error) {
	return nil, nil
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.json")
	payload := `[
		{"url":"https://example.com/a","title":"First","source_name":"Feed","published":"2026-08-31T10:00:00Z","content":"body one","category":"Tech"},
		{"url":"https://example.com/b","title":"","content":"no title, skipped"},
		{"url":"https://example.com/c","title":"Third","content":"body three"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	store := &captureStore{}
	loader := NewLoader(store)
	require.NoError(t, loader.LoadFromFile(context.Background(), path))

	require.Len(t, store.created, 2, "untitled article must be skipped")

	first := store.created[0]
	assert.Equal(t, "First", first.Title)
	assert.Equal(t, "Tech", first.Category)
	assert.Equal(t, model.StatusPending, first.Status)
	assert.NotEmpty(t, first.ID)

	assert.Equal(t, "General", store.created[1].Category, "missing category defaults")
}

func TestLoadFromFileBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	loader := NewLoader(&captureStore{})
	assert.Error(t, loader.LoadFromFile(context.Background(), path))
}

func TestSeedSampleData(t *testing.T) {
	store := &captureStore{}
	loader := NewLoader(store)
	require.NoError(t, loader.SeedSampleData(context.Background()))

	require.NotEmpty(t, store.created)
	categories := map[string]bool{}
	for _, a := range store.created {
		assert.Equal(t, model.StatusPending, a.Status)
		assert.NotEmpty(t, a.Content)
		categories[a.Category] = true
	}
	assert.GreaterOrEqual(t, len(categories), 2, "samples span categories")
}
