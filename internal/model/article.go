package model

import "time"

// ArticleStatus tracks where an article is in the analysis lifecycle.
type ArticleStatus string

const (
	StatusPending    ArticleStatus = "pending"
	StatusSummarized ArticleStatus = "summarized"
	StatusFailed     ArticleStatus = "failed"
)

// Article is one ingested content item. Ingestion creates it; the
// summarizer promotes it to summarized (filling Summary, KeyTakeaways and
// ActionItems) or marks it failed. It is never deleted here.
type Article struct {
	ID           string        `json:"id"`
	URL          string        `json:"url"`
	Title        string        `json:"title"`
	Author       string        `json:"author"`
	SourceName   string        `json:"source_name"`
	Published    time.Time     `json:"published"`
	Content      string        `json:"content,omitempty"`
	Category     string        `json:"category"`
	Summary      string        `json:"summary,omitempty"`
	KeyTakeaways []string      `json:"key_takeaways,omitempty"`
	ActionItems  []string      `json:"action_items,omitempty"`
	Status       ArticleStatus `json:"status"`
}
