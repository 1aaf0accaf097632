package analyze

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daily-digest/internal/cache"
	"daily-digest/internal/digest"
	"daily-digest/internal/llm"
	"daily-digest/internal/model"
	"daily-digest/internal/repo"
	"daily-digest/internal/summarize"
)

// fakeStore is an in-memory repo.Store.
type fakeStore struct {
	mu       sync.Mutex
	articles map[string]*model.Article
	pending  []*model.Article
	digests  []*model.DailyDigest
	loadErr  error
}

func newFakeStore(articles ...*model.Article) *fakeStore {
	s := &fakeStore{articles: make(map[string]*model.Article)}
	for _, a := range articles {
		s.articles[a.ID] = a
		s.pending = append(s.pending, a)
	}
	return s
}

func (s *fakeStore) PendingSince(ctx context.Context, since time.Time) ([]*model.Article, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.pending, nil
}

func (s *fakeStore) CreateArticle(ctx context.Context, a *model.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles[a.ID] = a
	return nil
}

func (s *fakeStore) UpdateSummary(ctx context.Context, id, summary string, takeaways, actionItems []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return repo.ErrNotFound
	}
	a.Summary = summary
	a.KeyTakeaways = takeaways
	a.ActionItems = actionItems
	a.Status = model.StatusSummarized
	return nil
}

func (s *fakeStore) UpdateStatus(ctx context.Context, id string, status model.ArticleStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return repo.ErrNotFound
	}
	a.Status = status
	return nil
}

func (s *fakeStore) SaveDigest(ctx context.Context, d *model.DailyDigest) error {
	s.digests = append(s.digests, d)
	return nil
}

func (s *fakeStore) LatestDigest(ctx context.Context) (*model.DailyDigest, error) {
	if len(s.digests) == 0 {
		return nil, repo.ErrNotFound
	}
	return s.digests[len(s.digests)-1], nil
}

// countingClient serves summarization and synthesis prompts, counting
// each kind, with optional per-prompt failures.
type countingClient struct {
	mu            sync.Mutex
	summaryCalls  int
	categoryCalls int
	overallCalls  int
	failSummaries func(prompt string) error
	failSyntheses bool
}

func (c *countingClient) ModelName() string { return "fake-model" }

func (c *countingClient) Generate(ctx context.Context, prompt, system string, out any) (*llm.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var raw string
	switch {
	case strings.Contains(prompt, "<article>"):
		c.summaryCalls++
		if c.failSummaries != nil {
			if err := c.failSummaries(prompt); err != nil {
				return nil, err
			}
		}
		raw = `{"summary":"stable summary","key_takeaways":["kt"],"action_items":[]}`
	case strings.Contains(prompt, "Create a synthesis for this category"):
		c.categoryCalls++
		if c.failSyntheses {
			return nil, errors.New("400 synthesis rejected")
		}
		raw = `{"synthesis":"category synthesis","top_takeaways":["top"],"non_obvious_insight":null}`
	default:
		c.overallCalls++
		if c.failSyntheses {
			return nil, errors.New("400 synthesis rejected")
		}
		raw = `{"overall_themes":["theme"],"must_read_overall":[],"cross_category_insights":[]}`
	}

	if err := llm.DecodeJSON(raw, out); err != nil {
		return nil, err
	}
	return &llm.Response{RawText: raw, InputTokens: 100, OutputTokens: 50}, nil
}

func pendingArticle(id, category, title string) *model.Article {
	return &model.Article{
		ID:         id,
		URL:        "https://example.com/" + id,
		Title:      title,
		SourceName: "Feed " + id,
		Published:  time.Now().UTC().Add(-2 * time.Hour),
		Content:    "article body for " + title,
		Category:   category,
		Status:     model.StatusPending,
	}
}

func newPipeline(store repo.Store, cacheStore *cache.Store, client llm.Client) *Pipeline {
	s := summarize.New(client, time.Hour, 2)
	b := digest.New(client)
	return New(store, cacheStore, s, b, client.ModelName())
}

func TestRunColdCacheTwoArticlesOneCategory(t *testing.T) {
	cacheStore, err := cache.Open(t.TempDir())
	require.NoError(t, err)
	defer cacheStore.Close()

	client := &countingClient{}
	store := newFakeStore(
		pendingArticle("a1", "Tech", "First"),
		pendingArticle("a2", "Tech", "Second"),
	)
	p := newPipeline(store, cacheStore, client)

	result, err := p.Run(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 2, client.summaryCalls)
	assert.Equal(t, 1, client.categoryCalls)
	assert.Equal(t, 1, client.overallCalls)
	require.NotNil(t, result.Digest)
	assert.Equal(t, 2, result.Digest.TotalArticles)
	assert.Equal(t, 2, result.ArticlesAnalyzed)
	assert.Empty(t, result.Errors)
	assert.Equal(t, model.StatusSummarized, store.articles["a1"].Status)
	assert.Positive(t, result.Digest.ProcessingTimeSeconds)
}

func TestRunWarmCacheSkipsSummarization(t *testing.T) {
	cacheStore, err := cache.Open(t.TempDir())
	require.NoError(t, err)
	defer cacheStore.Close()

	makeStore := func() *fakeStore {
		return newFakeStore(
			pendingArticle("a1", "Tech", "First"),
			pendingArticle("a2", "Tech", "Second"),
		)
	}

	first := &countingClient{}
	p1 := newPipeline(makeStore(), cacheStore, first)
	r1, err := p1.Run(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 2, first.summaryCalls)

	second := &countingClient{}
	p2 := newPipeline(makeStore(), cacheStore, second)
	r2, err := p2.Run(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 0, second.summaryCalls, "warm cache must serve both summaries")
	assert.Equal(t,
		r1.Digest.Categories[0].Articles[0].Summary,
		r2.Digest.Categories[0].Articles[0].Summary)
}

func TestRunPartialFailureIsolation(t *testing.T) {
	client := &countingClient{
		failSummaries: func(prompt string) error {
			if strings.Contains(prompt, "Broken") {
				return errors.New("400 invalid request")
			}
			return nil
		},
	}
	store := newFakeStore(
		pendingArticle("a1", "Tech", "Fine One"),
		pendingArticle("a2", "Tech", "Broken"),
		pendingArticle("a3", "Business", "Fine Two"),
	)
	p := newPipeline(store, nil, client)

	result, err := p.Run(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 2, result.ArticlesAnalyzed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Broken")
	require.NotNil(t, result.Digest)
	assert.Equal(t, 2, result.Digest.TotalArticles)
	assert.Equal(t, model.StatusFailed, store.articles["a2"].Status)
	assert.Equal(t, model.StatusSummarized, store.articles["a1"].Status)
}

func TestRunNoPendingArticles(t *testing.T) {
	client := &countingClient{}
	p := newPipeline(newFakeStore(), nil, client)

	result, err := p.Run(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err, "an empty run is explicitly not an error")

	assert.Nil(t, result.Digest)
	assert.Zero(t, result.ArticlesAnalyzed)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 0, client.summaryCalls)
}

func TestRunAllSummariesFail(t *testing.T) {
	client := &countingClient{
		failSummaries: func(string) error { return errors.New("401 Unauthorized") },
	}
	store := newFakeStore(
		pendingArticle("a1", "Tech", "One"),
		pendingArticle("a2", "Tech", "Two"),
	)
	p := newPipeline(store, nil, client)

	result, err := p.Run(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)

	assert.Nil(t, result.Digest, "no digest without at least one summary")
	assert.Len(t, result.Errors, 2)
	assert.Equal(t, 0, client.categoryCalls)
	assert.Equal(t, model.StatusFailed, store.articles["a1"].Status)
}

func TestRunStoreUnavailableIsFatal(t *testing.T) {
	store := newFakeStore()
	store.loadErr = errors.New("connection refused")
	p := newPipeline(store, nil, &countingClient{})

	_, err := p.Run(context.Background(), time.Now().Add(-24*time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRunSynthesisFailuresStaySoft(t *testing.T) {
	client := &countingClient{failSyntheses: true}
	store := newFakeStore(
		pendingArticle("a1", "Tech", "One"),
		pendingArticle("a2", "Tech", "Two"),
		pendingArticle("a3", "Business", "Three"),
	)
	p := newPipeline(store, nil, client)

	result, err := p.Run(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)

	require.NotNil(t, result.Digest)
	assert.Empty(t, result.Digest.OverallThemes)
	for _, cd := range result.Digest.Categories {
		assert.NotEmpty(t, cd.Synthesis, "fallback synthesis for %s", cd.Name)
	}
}

func TestRunAccountsTokensAndCost(t *testing.T) {
	client := &countingClient{}
	store := newFakeStore(
		pendingArticle("a1", "Tech", "One"),
		pendingArticle("a2", "Tech", "Two"),
	)
	p := newPipeline(store, nil, client)

	result, err := p.Run(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)

	// 2 summaries + 1 category + 1 overall, 150 tokens each.
	assert.Equal(t, 600, result.TokensUsed)
	assert.Positive(t, result.CostEstimateUSD)
	assert.Positive(t, result.Duration)
}

func TestClipShortensLongTitles(t *testing.T) {
	long := fmt.Sprintf("%060d", 7)
	assert.Len(t, clip(long, 40), 43)
	assert.Equal(t, "short", clip("short", 40))
}
