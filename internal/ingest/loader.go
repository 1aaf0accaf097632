// Package ingest loads articles into the store, from JSON files or from
// built-in sample data.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"daily-digest/internal/model"
	"daily-digest/internal/repo"
)

// Loader writes incoming articles into the article store.
type Loader struct {
	store repo.Store
}

func NewLoader(store repo.Store) *Loader {
	return &Loader{store: store}
}

// articleFile is the on-disk shape of an ingested article. ID and status
// are assigned at load time.
type articleFile struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	SourceName string    `json:"source_name"`
	Published  time.Time `json:"published"`
	Content    string    `json:"content"`
	Category   string    `json:"category"`
}

// LoadFromDirectory loads every .json file under dirPath.
func (l *Loader) LoadFromDirectory(ctx context.Context, dirPath string) error {
	return filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(path), ".json") {
			return nil
		}
		return l.LoadFromFile(ctx, path)
	})
}

// LoadFromFile loads articles from a single JSON file holding an array of
// articles. Individual failures are logged and skipped.
func (l *Loader) LoadFromFile(ctx context.Context, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", filePath, err)
	}
	defer file.Close()

	var articles []articleFile
	if err := json.NewDecoder(file).Decode(&articles); err != nil {
		return fmt.Errorf("decode %s: %w", filePath, err)
	}

	loaded := 0
	for _, a := range articles {
		if err := l.loadArticle(ctx, a); err != nil {
			log.Warn().Err(err).Str("title", a.Title).Msg("skipping article")
			continue
		}
		loaded++
	}

	log.Info().Str("file", filePath).Int("loaded", loaded).Int("total", len(articles)).Msg("file ingested")
	return nil
}

func (l *Loader) loadArticle(ctx context.Context, a articleFile) error {
	if a.Title == "" || a.Content == "" {
		return fmt.Errorf("article needs a title and content")
	}

	category := a.Category
	if category == "" {
		category = "General"
	}

	return l.store.CreateArticle(ctx, &model.Article{
		ID:         uuid.NewString(),
		URL:        a.URL,
		Title:      a.Title,
		Author:     a.Author,
		SourceName: a.SourceName,
		Published:  a.Published,
		Content:    a.Content,
		Category:   category,
		Status:     model.StatusPending,
	})
}

// SeedSampleData inserts a small fixed set of pending articles so a fresh
// install has something to digest.
func (l *Loader) SeedSampleData(ctx context.Context) error {
	samples := []articleFile{
		{
			URL:        "https://example.com/ai/inference-cost-collapse",
			Title:      "Inference Costs Fall Faster Than Anyone Predicted",
			Author:     "Dana Reyes",
			SourceName: "Model Economics Weekly",
			Published:  time.Now().UTC().Add(-3 * time.Hour),
			Category:   "AI",
			Content: "Per-token inference prices have dropped roughly tenfold in " +
				"eighteen months as providers compete on throughput. The piece walks " +
				"through what cheaper inference means for product teams that previously " +
				"rationed LLM calls, and argues that caching strategies remain worthwhile " +
				"because latency, not price, is becoming the binding constraint.",
		},
		{
			URL:        "https://example.com/ai/eval-driven-development",
			Title:      "Eval-Driven Development Is Quietly Replacing Prompt Tinkering",
			Author:     "Miguel Santos",
			SourceName: "The Practical ML Letter",
			Published:  time.Now().UTC().Add(-6 * time.Hour),
			Category:   "AI",
			Content: "Teams shipping LLM features describe a shift from iterating on " +
				"prompts by feel to maintaining regression suites of graded examples. " +
				"The article surveys open-source eval harnesses, the cost of keeping " +
				"golden datasets fresh, and why small teams see the biggest gains.",
		},
		{
			URL:        "https://example.com/eng/postgres-queue",
			Title:      "You Probably Don't Need a Message Broker",
			Author:     "Priya Nair",
			SourceName: "Boring Infrastructure",
			Published:  time.Now().UTC().Add(-9 * time.Hour),
			Category:   "Engineering",
			Content: "A long-form argument that Postgres with SKIP LOCKED covers the " +
				"queueing needs of most products well past the scale where teams reach " +
				"for dedicated brokers. Includes benchmarks, failure-mode comparisons, " +
				"and a migration checklist for teams consolidating infrastructure.",
		},
		{
			URL:        "https://example.com/eng/oncall-smaller-teams",
			Title:      "What Happened When We Cut Our On-Call Rotation in Half",
			Author:     "Jonas Keller",
			SourceName: "Boring Infrastructure",
			Published:  time.Now().UTC().Add(-12 * time.Hour),
			Category:   "Engineering",
			Content: "A retrospective on moving from an eight-person to a four-person " +
				"rotation after deleting rarely-exercised services. Alert volume fell " +
				"faster than headcount, suggesting most pages came from infrastructure " +
				"nobody actively used. Details the decommissioning process and metrics.",
		},
		{
			URL:        "https://example.com/business/saas-pricing-seats",
			Title:      "Seat-Based Pricing Is Losing to Usage, Slowly",
			Author:     "Aisha Bello",
			SourceName: "Recurring Revenue",
			Published:  time.Now().UTC().Add(-15 * time.Hour),
			Category:   "Business",
			Content: "Survey data from two hundred SaaS companies shows usage-based " +
				"pricing growing share mainly in developer tools, while seat pricing " +
				"holds elsewhere. The author attributes the split to procurement habits " +
				"rather than product economics, and predicts hybrid models will dominate.",
		},
	}

	for _, a := range samples {
		if err := l.loadArticle(ctx, a); err != nil {
			return fmt.Errorf("seed %q: %w", a.Title, err)
		}
	}

	log.Info().Int("articles", len(samples)).Msg("sample data seeded")
	return nil
}
