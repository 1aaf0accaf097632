// Package repo persists articles and digests in PostgreSQL.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"daily-digest/internal/model"
)

// ErrNotFound reports that a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence surface the analysis pipeline consumes.
type Store interface {
	PendingSince(ctx context.Context, since time.Time) ([]*model.Article, error)
	CreateArticle(ctx context.Context, article *model.Article) error
	UpdateSummary(ctx context.Context, id, summary string, takeaways, actionItems []string) error
	UpdateStatus(ctx context.Context, id string, status model.ArticleStatus) error
	SaveDigest(ctx context.Context, digest *model.DailyDigest) error
	LatestDigest(ctx context.Context) (*model.DailyDigest, error)
}

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres connects to databaseURL and verifies the connection.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Info().Msg("database connection established")
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// EnsureSchema creates the tables this store owns if they are missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS articles (
	id            TEXT PRIMARY KEY,
	url           TEXT NOT NULL,
	title         TEXT NOT NULL,
	author        TEXT NOT NULL DEFAULT '',
	source_name   TEXT NOT NULL DEFAULT '',
	published     TIMESTAMPTZ NOT NULL,
	content       TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL DEFAULT 'Uncategorized',
	summary       TEXT NOT NULL DEFAULT '',
	key_takeaways TEXT[] NOT NULL DEFAULT '{}',
	action_items  TEXT[] NOT NULL DEFAULT '{}',
	status        TEXT NOT NULL DEFAULT 'pending'
);
CREATE INDEX IF NOT EXISTS articles_status_published_idx ON articles (status, published);

CREATE TABLE IF NOT EXISTS digests (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	payload    JSONB NOT NULL
);`
	if _, err := p.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PendingSince returns pending articles published at or after since,
// oldest first.
func (p *Postgres) PendingSince(ctx context.Context, since time.Time) ([]*model.Article, error) {
	const query = `
SELECT id, url, title, author, source_name, published, content, category,
       summary, key_takeaways, action_items, status
FROM articles
WHERE status = $1 AND published >= $2
ORDER BY published`

	rows, err := p.pool.Query(ctx, query, model.StatusPending, since)
	if err != nil {
		return nil, fmt.Errorf("select pending articles: %w", err)
	}
	defer rows.Close()

	var articles []*model.Article
	for rows.Next() {
		var a model.Article
		err := rows.Scan(&a.ID, &a.URL, &a.Title, &a.Author, &a.SourceName,
			&a.Published, &a.Content, &a.Category,
			&a.Summary, &a.KeyTakeaways, &a.ActionItems, &a.Status)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}

// CreateArticle inserts an article, ignoring duplicates by id.
func (p *Postgres) CreateArticle(ctx context.Context, article *model.Article) error {
	const query = `
INSERT INTO articles (id, url, title, author, source_name, published, content, category,
                      summary, key_takeaways, action_items, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO NOTHING`

	_, err := p.pool.Exec(ctx, query,
		article.ID, article.URL, article.Title, article.Author, article.SourceName,
		article.Published, article.Content, article.Category,
		article.Summary, article.KeyTakeaways, article.ActionItems, article.Status)
	if err != nil {
		return fmt.Errorf("insert article %s: %w", article.ID, err)
	}
	return nil
}

// UpdateSummary stores summarization output and promotes the article.
func (p *Postgres) UpdateSummary(ctx context.Context, id, summary string, takeaways, actionItems []string) error {
	const query = `
UPDATE articles
SET summary = $2, key_takeaways = $3, action_items = $4, status = $5
WHERE id = $1`

	tag, err := p.pool.Exec(ctx, query, id, summary, takeaways, actionItems, model.StatusSummarized)
	if err != nil {
		return fmt.Errorf("update summary for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update summary for %s: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateStatus changes an article's lifecycle status.
func (p *Postgres) UpdateStatus(ctx context.Context, id string, status model.ArticleStatus) error {
	tag, err := p.pool.Exec(ctx, `UPDATE articles SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update status for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update status for %s: %w", id, ErrNotFound)
	}
	return nil
}

// SaveDigest stores the completed digest document as JSON.
func (p *Postgres) SaveDigest(ctx context.Context, digest *model.DailyDigest) error {
	payload, err := json.Marshal(digest)
	if err != nil {
		return fmt.Errorf("marshal digest: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO digests (id, created_at, payload) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`,
		digest.ID, digest.Date, payload)
	if err != nil {
		return fmt.Errorf("insert digest %s: %w", digest.ID, err)
	}
	return nil
}

// LatestDigest returns the most recently created digest.
func (p *Postgres) LatestDigest(ctx context.Context) (*model.DailyDigest, error) {
	var payload []byte
	err := p.pool.QueryRow(ctx,
		`SELECT payload FROM digests ORDER BY created_at DESC LIMIT 1`).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select latest digest: %w", err)
	}

	var digest model.DailyDigest
	if err := json.Unmarshal(payload, &digest); err != nil {
		return nil, fmt.Errorf("decode digest payload: %w", err)
	}
	return &digest, nil
}
