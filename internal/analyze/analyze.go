// Package analyze wires the summarizer and digest builder into one
// pipeline run over the article store.
package analyze

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"daily-digest/internal/cache"
	"daily-digest/internal/digest"
	"daily-digest/internal/model"
	"daily-digest/internal/pricing"
	"daily-digest/internal/repo"
	"daily-digest/internal/summarize"
)

// Result describes one pipeline run: what succeeded, what failed and
// why. Partial failures never abort a run; they accumulate in Errors.
type Result struct {
	Digest           *model.DailyDigest
	ArticlesAnalyzed int
	TokensUsed       int
	CostEstimateUSD  float64
	Duration         time.Duration
	Errors           []string
}

// Pipeline composes the analysis stages. It is a composition point, not a
// decision point: all interesting behavior lives in its collaborators.
type Pipeline struct {
	store      repo.Store
	cache      *cache.Store
	summarizer *summarize.Summarizer
	builder    *digest.Builder
	modelName  string
}

// New builds a Pipeline. A nil cache disables summary caching.
func New(store repo.Store, cacheStore *cache.Store, summarizer *summarize.Summarizer, builder *digest.Builder, modelName string) *Pipeline {
	return &Pipeline{
		store:      store,
		cache:      cacheStore,
		summarizer: summarizer,
		builder:    builder,
		modelName:  modelName,
	}
}

// Run executes one analysis pass over articles pending since the given
// time. It returns an error only when the run cannot begin at all; every
// later failure is recorded in the Result instead.
func (p *Pipeline) Run(ctx context.Context, since time.Time) (*Result, error) {
	start := time.Now()
	result := &Result{}

	articles, err := p.store.PendingSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load pending articles: %w", err)
	}

	if len(articles) == 0 {
		log.Info().Msg("no pending articles to analyze")
		result.Duration = time.Since(start)
		return result, nil
	}

	log.Info().Int("articles", len(articles)).Time("since", since).Msg("analyzing articles")

	progress := summarize.ProgressFunc(func(i, total int, article *model.Article) {
		log.Info().
			Int("index", i+1).
			Int("total", total).
			Str("title", clip(article.Title, 40)).
			Msg("summarizing")
	})

	summaries := p.summarizer.SummarizeBatch(ctx, articles, progress, p.cache, p.modelName)

	inputTokens, outputTokens := 0, 0
	var summarized []*model.Article
	for i, sr := range summaries {
		article := articles[i]
		inputTokens += sr.InputTokens
		outputTokens += sr.OutputTokens

		if !sr.Success {
			if err := p.store.UpdateStatus(ctx, article.ID, model.StatusFailed); err != nil {
				log.Warn().Err(err).Str("article_id", article.ID).Msg("failed to persist failed status")
			}
			result.Errors = append(result.Errors,
				fmt.Sprintf("summarize %q: %s", clip(article.Title, 30), sr.Error))
			continue
		}

		article.Summary = sr.Summary
		article.KeyTakeaways = sr.KeyTakeaways
		article.ActionItems = sr.ActionItems
		article.Status = model.StatusSummarized

		if err := p.store.UpdateSummary(ctx, article.ID, sr.Summary, sr.KeyTakeaways, sr.ActionItems); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("persist summary for %q: %v", clip(article.Title, 30), err))
		}
		summarized = append(summarized, article)
	}

	result.TokensUsed = inputTokens + outputTokens

	if len(summarized) == 0 {
		log.Warn().Msg("no articles were successfully summarized")
		result.CostEstimateUSD = p.estimateCost(inputTokens, outputTokens, 0)
		result.Duration = time.Since(start)
		return result, nil
	}

	log.Info().Msg("building digest")
	d, synthesisTokens := p.builder.Build(ctx, summarized)
	result.TokensUsed += synthesisTokens

	duration := time.Since(start)
	d.ProcessingTimeSeconds = duration.Seconds()

	result.Digest = d
	result.ArticlesAnalyzed = len(summarized)
	result.CostEstimateUSD = p.estimateCost(inputTokens, outputTokens, synthesisTokens)
	result.Duration = duration

	log.Info().
		Int("articles", result.ArticlesAnalyzed).
		Int("tokens", result.TokensUsed).
		Float64("cost_usd", result.CostEstimateUSD).
		Dur("duration", duration).
		Int("errors", len(result.Errors)).
		Msg("analysis complete")
	return result, nil
}

// estimateCost prices summarization usage per direction when the model is
// known, blending otherwise. Synthesis tokens lack a direction split, so
// they are always priced at the blended rate.
func (p *Pipeline) estimateCost(inputTokens, outputTokens, synthesisTokens int) float64 {
	cost, ok := pricing.Estimate(p.modelName, inputTokens, outputTokens)
	if !ok {
		cost = pricing.BlendedEstimate(inputTokens + outputTokens)
	}
	return cost + pricing.BlendedEstimate(synthesisTokens)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
