// Package digest synthesizes summarized articles into category narratives
// and one overall daily digest document.
package digest

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"daily-digest/internal/llm"
	"daily-digest/internal/model"
)

// InsightsMode controls whether non-obvious insights are surfaced.
type InsightsMode string

const (
	InsightsOff    InsightsMode = "off"
	InsightsAuto   InsightsMode = "auto"
	InsightsAlways InsightsMode = "always"
)

const (
	maxTopTakeaways = 3
	maxMustRead     = 3
	maxThemes       = 3

	// Flat per-category token assumption, used only when a synthesis call
	// produced no provider-reported usage (fallback or short-circuit).
	synthesisTokenEstimate = 2000

	// Token-overlap ratio above which two statements count as duplicates.
	duplicateOverlapThreshold = 0.8
)

type insightSchema struct {
	Insight        string   `json:"insight"`
	WhyUnintuitive string   `json:"why_unintuitive"`
	Confidence     int      `json:"confidence"`
	SupportingURLs []string `json:"supporting_urls"`
}

type categorySchema struct {
	Synthesis         string         `json:"synthesis"`
	TopTakeaways      []string       `json:"top_takeaways"`
	NonObviousInsight *insightSchema `json:"non_obvious_insight"`
}

type overallSchema struct {
	OverallThemes         []string        `json:"overall_themes"`
	MustReadOverall       []string        `json:"must_read_overall"`
	CrossCategoryInsights []insightSchema `json:"cross_category_insights"`
}

// Builder assembles a DailyDigest from summarized articles.
type Builder struct {
	client        llm.Client
	insightsMode  InsightsMode
	minConfidence int
	maxInsights   int
}

// Option configures a Builder.
type Option func(*Builder)

// WithInsights sets the gating mode, the minimum confidence applied in
// auto mode, and the cap on overall insights per digest.
func WithInsights(mode InsightsMode, minConfidence, maxPerDigest int) Option {
	return func(b *Builder) {
		b.insightsMode = mode
		b.minConfidence = minConfidence
		b.maxInsights = maxPerDigest
	}
}

// New builds a digest Builder with auto insight gating by default.
func New(client llm.Client, opts ...Option) *Builder {
	b := &Builder{
		client:        client,
		insightsMode:  InsightsAuto,
		minConfidence: 4,
		maxInsights:   2,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build groups articles by category, synthesizes each category, then
// synthesizes the overall narrative. It never fails: every synthesis
// error degrades to a deterministic local fallback. The second return
// value is the token count attributed to synthesis calls.
func (b *Builder) Build(ctx context.Context, articles []*model.Article) (*model.DailyDigest, int) {
	log.Info().Int("articles", len(articles)).Msg("building digest")

	byCategory := make(map[string][]*model.Article)
	for _, article := range articles {
		byCategory[article.Category] = append(byCategory[article.Category], article)
	}

	names := make([]string, 0, len(byCategory))
	for name := range byCategory {
		names = append(names, name)
	}
	sort.Strings(names)

	tokens := 0
	categories := make([]model.CategoryDigest, 0, len(names))
	for _, name := range names {
		group := byCategory[name]
		log.Info().Str("category", name).Int("articles", len(group)).Msg("processing category")
		cd, used := b.buildCategory(ctx, name, group)
		categories = append(categories, cd)
		tokens += used
	}

	themes, mustRead, insights, used := b.synthesizeOverall(ctx, categories)
	tokens += used

	digest := &model.DailyDigest{
		ID:            uuid.NewString()[:8],
		Date:          time.Now().UTC(),
		Categories:    categories,
		TotalArticles: len(articles),
		TotalFeeds:    countSources(articles),
		OverallThemes: themes,
		MustRead:      mustRead,
		Insights:      insights,
	}

	log.Info().
		Str("digest_id", digest.ID).
		Int("categories", len(categories)).
		Int("synthesis_tokens", tokens).
		Msg("digest built")
	return digest, tokens
}

func (b *Builder) buildCategory(ctx context.Context, name string, articles []*model.Article) (model.CategoryDigest, int) {
	cd := model.CategoryDigest{
		Name:         name,
		ArticleCount: len(articles),
		Articles:     articles,
	}

	// A lone article is its own synthesis; no call is spent on it.
	if len(articles) == 1 {
		article := articles[0]
		cd.Synthesis = article.Summary
		if cd.Synthesis == "" {
			cd.Synthesis = fmt.Sprintf("One article from %s.", article.SourceName)
		}
		cd.TopTakeaways = capList(article.KeyTakeaways, maxTopTakeaways)
		return cd, 0
	}

	prompt := fmt.Sprintf(llm.CategorySynthesisUser, name, formatArticleSummaries(articles))

	var parsed categorySchema
	resp, err := b.client.Generate(ctx, prompt, llm.CategorySynthesisSystem, &parsed)
	if err != nil {
		log.Warn().Err(err).Str("category", name).Msg("category synthesis failed, using fallback")
		cd.Synthesis = fmt.Sprintf("Today's %s coverage includes %d articles.", name, len(articles))
		for _, article := range articles[:min(len(articles), maxTopTakeaways)] {
			if len(article.KeyTakeaways) > 0 {
				cd.TopTakeaways = append(cd.TopTakeaways, article.KeyTakeaways[0])
			}
		}
		return cd, synthesisTokenEstimate
	}

	cd.Synthesis = parsed.Synthesis
	cd.TopTakeaways = capList(parsed.TopTakeaways, maxTopTakeaways)
	cd.Insight = b.approveInsight(parsed.NonObviousInsight, allowedURLs(articles), cd.TopTakeaways)
	return cd, resp.TotalTokens()
}

func (b *Builder) synthesizeOverall(ctx context.Context, categories []model.CategoryDigest) ([]string, []string, []model.Insight, int) {
	if len(categories) == 0 {
		return nil, nil, nil, 0
	}

	allowed := make(map[string]bool)
	for _, cd := range categories {
		for _, article := range cd.Articles {
			allowed[normalizeURL(article.URL)] = true
		}
	}

	prompt := fmt.Sprintf(llm.OverallSynthesisUser, formatCategorySummaries(categories))

	var parsed overallSchema
	resp, err := b.client.Generate(ctx, prompt, llm.OverallSynthesisSystem, &parsed)
	if err != nil {
		// Overall synthesis is optional enrichment; its failure only
		// omits the overall fields.
		log.Warn().Err(err).Msg("overall synthesis failed")
		return nil, nil, nil, synthesisTokenEstimate
	}

	themes := capList(parsed.OverallThemes, maxThemes)
	mustRead := capList(filterURLs(parsed.MustReadOverall, allowed), maxMustRead)

	var insights []model.Insight
	for i := range parsed.CrossCategoryInsights {
		existing := append([]string{}, themes...)
		for _, approved := range insights {
			existing = append(existing, approved.Insight)
		}
		if approved := b.approveInsight(&parsed.CrossCategoryInsights[i], allowed, existing); approved != nil {
			insights = append(insights, *approved)
			if len(insights) >= b.maxInsights {
				break
			}
		}
	}

	return themes, mustRead, insights, resp.TotalTokens()
}

// approveInsight applies the gating rules: mode, confidence threshold,
// URL grounding, and near-duplicate rejection. A rejected candidate is
// simply dropped.
func (b *Builder) approveInsight(candidate *insightSchema, allowed map[string]bool, existing []string) *model.Insight {
	if b.insightsMode == InsightsOff || candidate == nil {
		return nil
	}
	if b.insightsMode == InsightsAuto && candidate.Confidence < b.minConfidence {
		return nil
	}

	text := strings.TrimSpace(candidate.Insight)
	why := strings.TrimSpace(candidate.WhyUnintuitive)
	if text == "" || why == "" {
		return nil
	}

	urls := filterURLs(candidate.SupportingURLs, allowed)
	if len(urls) == 0 {
		return nil
	}

	if isNearDuplicate(text, existing) {
		return nil
	}

	return &model.Insight{
		Insight:        text,
		WhyUnintuitive: why,
		Confidence:     candidate.Confidence,
		SourceURLs:     urls,
	}
}

func formatArticleSummaries(articles []*model.Article) string {
	var sb strings.Builder
	for i, article := range articles {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		summary := article.Summary
		if summary == "" {
			summary = "No summary available"
		}
		takeaways := "None"
		if len(article.KeyTakeaways) > 0 {
			takeaways = strings.Join(article.KeyTakeaways, ", ")
		}
		fmt.Fprintf(&sb, "**%s** (%s)\nURL: %s\nSummary: %s\nKey points: %s",
			article.Title, article.SourceName, article.URL, summary, takeaways)
	}
	return sb.String()
}

func formatCategorySummaries(categories []model.CategoryDigest) string {
	var sb strings.Builder
	for i, cd := range categories {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		takeaways := "None"
		if len(cd.TopTakeaways) > 0 {
			takeaways = strings.Join(cd.TopTakeaways, ", ")
		}
		fmt.Fprintf(&sb, "**%s** (%d articles)\nSynthesis: %s\nKey takeaways: %s",
			cd.Name, cd.ArticleCount, cd.Synthesis, takeaways)
	}
	return sb.String()
}

func allowedURLs(articles []*model.Article) map[string]bool {
	allowed := make(map[string]bool, len(articles))
	for _, article := range articles {
		allowed[normalizeURL(article.URL)] = true
	}
	return allowed
}

// filterURLs keeps unique URLs that belong to the allowed set, in input
// order. Everything else is ungrounded and discarded.
func filterURLs(urls []string, allowed map[string]bool) []string {
	var kept []string
	seen := make(map[string]bool)
	for _, url := range urls {
		normalized := normalizeURL(url)
		if allowed[normalized] && !seen[normalized] {
			kept = append(kept, normalized)
			seen[normalized] = true
		}
	}
	return kept
}

func normalizeURL(url string) string {
	return strings.TrimRight(strings.TrimSpace(url), "/")
}

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

// isNearDuplicate treats highly overlapping statements as duplicates.
func isNearDuplicate(candidate string, existing []string) bool {
	normalized := normalizeText(candidate)
	if normalized == "" {
		return true
	}
	candidateTokens := tokenSet(normalized)
	if len(candidateTokens) == 0 {
		return true
	}

	for _, text := range existing {
		other := normalizeText(text)
		if other == "" {
			continue
		}
		if normalized == other {
			return true
		}
		otherTokens := tokenSet(other)
		if len(otherTokens) == 0 {
			continue
		}
		shared := 0
		for token := range candidateTokens {
			if otherTokens[token] {
				shared++
			}
		}
		overlap := float64(shared) / float64(min(len(candidateTokens), len(otherTokens)))
		if overlap >= duplicateOverlapThreshold {
			return true
		}
	}
	return false
}

func normalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range wordPattern.FindAllString(text, -1) {
		set[token] = true
	}
	return set
}

func capList(items []string, limit int) []string {
	if len(items) > limit {
		return items[:limit]
	}
	return items
}

func countSources(articles []*model.Article) int {
	sources := make(map[string]bool)
	for _, article := range articles {
		sources[article.SourceName] = true
	}
	return len(sources)
}
