package model

import "time"

// Insight is a non-obvious, source-grounded claim surfaced alongside the
// ordinary takeaways. Confidence is on a 1-5 scale; SourceURLs must all
// come from the articles the insight was derived from.
type Insight struct {
	Insight        string   `json:"insight"`
	WhyUnintuitive string   `json:"why_unintuitive"`
	Confidence     int      `json:"confidence"`
	SourceURLs     []string `json:"source_urls"`
}

// CategoryDigest holds the synthesis for one category of articles.
type CategoryDigest struct {
	Name         string     `json:"name"`
	ArticleCount int        `json:"article_count"`
	Articles     []*Article `json:"articles"`
	Synthesis    string     `json:"synthesis"`
	TopTakeaways []string   `json:"top_takeaways"`
	Insight      *Insight   `json:"insight,omitempty"`
}

// DailyDigest is the final output document for one pipeline run.
// Categories are sorted by name. Immutable after construction except for
// ProcessingTimeSeconds, which the orchestrator sets once the run ends.
type DailyDigest struct {
	ID                    string           `json:"id"`
	Date                  time.Time        `json:"date"`
	Categories            []CategoryDigest `json:"categories"`
	TotalArticles         int              `json:"total_articles"`
	TotalFeeds            int              `json:"total_feeds"`
	OverallThemes         []string         `json:"overall_themes"`
	MustRead              []string         `json:"must_read"`
	Insights              []Insight        `json:"insights,omitempty"`
	ProcessingTimeSeconds float64          `json:"processing_time_seconds"`
}
