package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"daily-digest/internal/analyze"
	"daily-digest/internal/cache"
	"daily-digest/internal/config"
	"daily-digest/internal/digest"
	"daily-digest/internal/ingest"
	"daily-digest/internal/llm"
	"daily-digest/internal/repo"
	"daily-digest/internal/summarize"
)

func main() {
	var (
		lookback  = flag.Duration("lookback", 0, "analyze articles published within this window (overrides ANALYSIS_LOOKBACK)")
		noCache   = flag.Bool("no-cache", false, "bypass the response cache for this run")
		seed      = flag.Bool("seed", false, "seed sample articles and exit")
		ingestDir = flag.String("ingest", "", "load article JSON files from this directory and exit")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if *lookback > 0 {
		cfg.Analysis.Lookback = *lookback
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := repo.NewPostgres(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure schema")
	}

	loader := ingest.NewLoader(store)
	if *seed {
		if err := loader.SeedSampleData(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to seed sample data")
		}
		return
	}
	if *ingestDir != "" {
		if err := loader.LoadFromDirectory(ctx, *ingestDir); err != nil {
			log.Fatal().Err(err).Msg("ingestion failed")
		}
		return
	}

	// A broken cache never blocks a run; summaries just cost more.
	var responseCache *cache.Store
	if !*noCache {
		responseCache, err = cache.Open(cfg.Cache.Dir)
		if err != nil {
			log.Warn().Err(err).Str("dir", cfg.Cache.Dir).Msg("cache unavailable, running uncached")
		} else {
			defer responseCache.Close()
		}
	}

	client, err := llm.New(cfg.LLM.Provider, cfg.LLM.APIKey, cfg.LLM.Model)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create LLM client")
	}
	retrying := llm.NewRetryClient(client, cfg.LLM.MaxRetries, cfg.LLM.BaseDelay)

	summarizer := summarize.New(retrying, cfg.Cache.TTL, cfg.Analysis.Concurrency)
	builder := digest.New(retrying, digest.WithInsights(
		digest.InsightsMode(cfg.Analysis.InsightsMode),
		cfg.Analysis.InsightMinConfidence,
		cfg.Analysis.MaxInsightsPerDigest,
	))

	pipeline := analyze.New(store, responseCache, summarizer, builder, client.ModelName())

	since := time.Now().Add(-cfg.Analysis.Lookback)
	result, err := pipeline.Run(ctx, since)
	if err != nil {
		log.Fatal().Err(err).Msg("analysis failed")
	}

	for _, msg := range result.Errors {
		log.Warn().Msg(msg)
	}

	if result.Digest == nil {
		log.Info().Msg("no digest produced")
		return
	}

	if err := store.SaveDigest(ctx, result.Digest); err != nil {
		log.Fatal().Err(err).Str("digest_id", result.Digest.ID).Msg("failed to save digest")
	}

	log.Info().
		Str("digest_id", result.Digest.ID).
		Int("articles", result.ArticlesAnalyzed).
		Int("categories", len(result.Digest.Categories)).
		Int("tokens", result.TokensUsed).
		Float64("cost_usd", result.CostEstimateUSD).
		Dur("duration", result.Duration).
		Msg("digest saved")
}
