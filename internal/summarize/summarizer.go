// Package summarize turns raw article text into structured per-article
// summaries, consulting the response cache before spending a backend call.
package summarize

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"daily-digest/internal/cache"
	"daily-digest/internal/llm"
	"daily-digest/internal/model"
)

const (
	// Content is truncated before prompting to bound worst-case request
	// cost and stay inside backend context limits. Lossy on purpose.
	maxContentChars   = 30000
	truncationMarker  = "\n\n[content truncated]"
	defaultConcurrency = 4
)

// SummaryResult is the per-article outcome. It is the vehicle used to
// mutate the Article and to populate the cache; it is not persisted as
// its own entity.
type SummaryResult struct {
	Success      bool     `json:"success"`
	ArticleID    string   `json:"article_id"`
	Summary      string   `json:"summary"`
	KeyTakeaways []string `json:"key_takeaways"`
	ActionItems  []string `json:"action_items"`
	InputTokens  int      `json:"input_tokens"`
	OutputTokens int      `json:"output_tokens"`
	Error        string   `json:"error,omitempty"`
}

// TokensUsed is the combined input and output usage for the article.
func (r SummaryResult) TokensUsed() int {
	return r.InputTokens + r.OutputTokens
}

// ProgressObserver is notified synchronously before each article
// dispatches for summarization.
type ProgressObserver interface {
	OnProgress(index, total int, article *model.Article)
}

// ProgressFunc adapts a function to the ProgressObserver interface.
type ProgressFunc func(index, total int, article *model.Article)

func (f ProgressFunc) OnProgress(index, total int, article *model.Article) {
	f(index, total, article)
}

type summarySchema struct {
	Summary      string   `json:"summary"`
	KeyTakeaways []string `json:"key_takeaways"`
	ActionItems  []string `json:"action_items"`
}

// Summarizer produces structured summaries via an LLM client, one call
// per article, many articles in parallel.
type Summarizer struct {
	client      llm.Client
	cacheTTL    time.Duration
	concurrency int
}

// New builds a Summarizer. Cached summaries live for cacheTTL.
func New(client llm.Client, cacheTTL time.Duration, concurrency int) *Summarizer {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Summarizer{client: client, cacheTTL: cacheTTL, concurrency: concurrency}
}

// SummarizeArticle summarizes one article. It always returns a result and
// never an error: any failure, classified or not, lands in the result's
// Error field. A nil store disables caching; store failures degrade to
// the uncached path.
func (s *Summarizer) SummarizeArticle(ctx context.Context, article *model.Article, store *cache.Store, modelName string) SummaryResult {
	var key string
	if store != nil && modelName != "" {
		key = cache.Key(article.ID, modelName)
		var cached SummaryResult
		found, err := store.Get(ctx, cache.KindSummary, key, &cached)
		if err != nil {
			log.Warn().Err(err).Str("article_id", article.ID).Msg("cache read failed, treating as miss")
		}
		if found {
			log.Debug().Str("article_id", article.ID).Msg("summary served from cache")
			return cached
		}
	}

	content := article.Content
	if len(content) > maxContentChars {
		content = content[:maxContentChars] + truncationMarker
	}

	prompt := fmt.Sprintf(llm.ArticleSummaryUser,
		article.Title,
		article.Author,
		article.SourceName,
		article.Published.Format(time.RFC3339),
		content,
	)

	var parsed summarySchema
	resp, err := s.client.Generate(ctx, prompt, llm.ArticleSummarySystem, &parsed)
	if err != nil {
		log.Warn().Err(err).Str("article_id", article.ID).Str("title", article.Title).Msg("summarization failed")
		return SummaryResult{
			Success:   false,
			ArticleID: article.ID,
			Error:     err.Error(),
		}
	}

	result := SummaryResult{
		Success:      true,
		ArticleID:    article.ID,
		Summary:      parsed.Summary,
		KeyTakeaways: parsed.KeyTakeaways,
		ActionItems:  parsed.ActionItems,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	}

	if store != nil && key != "" {
		if err := store.Set(ctx, cache.KindSummary, key, result, s.cacheTTL); err != nil {
			log.Warn().Err(err).Str("article_id", article.ID).Msg("cache write failed, continuing")
		}
	}

	return result
}

// SummarizeBatch summarizes articles in parallel with a bounded worker
// pool. Results come back in input order regardless of completion order,
// and a failing article never cancels its siblings.
func (s *Summarizer) SummarizeBatch(ctx context.Context, articles []*model.Article, obs ProgressObserver, store *cache.Store, modelName string) []SummaryResult {
	results := make([]SummaryResult, len(articles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, article := range articles {
		if obs != nil {
			obs.OnProgress(i, len(articles), article)
		}
		i, article := i, article
		g.Go(func() error {
			results[i] = s.SummarizeArticle(gctx, article, store, modelName)
			return nil
		})
	}

	// Workers never return errors; Wait only joins them.
	_ = g.Wait()
	return results
}
