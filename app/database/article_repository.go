package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

var _ ArticleRepository = (*ArticleRepo)(nil)

type ArticleRepo struct {
	db *DB
}

func NewArticleRepository(db *DB) *ArticleRepo {
	return &ArticleRepo{db: db}
}

const articleColumns = `id, canonical_url, domain, source_id, title, title_hash,
	content_hash, content, author, tags, bullets, why_it_matters, cluster_id,
	smart_score, score_features, regulatory, storm_name, published_at,
	reachable, checked_at, created_at`

func (r *ArticleRepo) GetArticle(ctx context.Context, id string) (*Article, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
	return scanArticle(row)
}

func (r *ArticleRepo) ArticleExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM articles WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check article existence: %w", err)
	}
	return true, nil
}

func (r *ArticleRepo) GetArticleByContentHash(ctx context.Context, contentHash string) (*Article, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE content_hash = ? LIMIT 1`, contentHash)
	return scanArticle(row)
}

func (r *ArticleRepo) GetArticleByDomainTitleHash(ctx context.Context, domain, titleHash string) (*Article, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE domain = ? AND title_hash = ? LIMIT 1`,
		domain, titleHash)
	return scanArticle(row)
}

func (r *ArticleRepo) GetRecentArticles(ctx context.Context, since time.Time, limit int) ([]Article, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles
		 WHERE created_at >= ?
		 ORDER BY created_at DESC
		 LIMIT ?`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent articles: %w", err)
	}
	defer rows.Close()

	return scanArticles(rows)
}

func (r *ArticleRepo) GetUnclusteredArticles(ctx context.Context, since time.Time, limit int) ([]Article, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles
		 WHERE created_at >= ? AND cluster_id = content_hash
		 ORDER BY published_at ASC
		 LIMIT ?`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get unclustered articles: %w", err)
	}
	defer rows.Close()

	return scanArticles(rows)
}

func (r *ArticleRepo) GetArticleCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return count, nil
}

func (r *ArticleRepo) UpsertArticle(ctx context.Context, a Article) error {
	tags, err := json.Marshal(emptyIfNil(a.Tags))
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	bullets, err := json.Marshal(emptyIfNil(a.Bullets))
	if err != nil {
		return fmt.Errorf("failed to marshal bullets: %w", err)
	}
	features, err := json.Marshal(a.ScoreFeatures)
	if err != nil {
		return fmt.Errorf("failed to marshal score features: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO articles (
			id, canonical_url, domain, source_id, title, title_hash,
			content_hash, content, author, tags, bullets, why_it_matters,
			cluster_id, smart_score, score_features, regulatory, storm_name,
			published_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			content_hash = excluded.content_hash,
			content = excluded.content,
			tags = excluded.tags,
			bullets = excluded.bullets,
			why_it_matters = excluded.why_it_matters,
			cluster_id = excluded.cluster_id,
			smart_score = excluded.smart_score,
			score_features = excluded.score_features,
			regulatory = excluded.regulatory,
			storm_name = excluded.storm_name
	`, a.ID, a.CanonicalURL, a.Domain, a.SourceID, a.Title, a.TitleHash,
		a.ContentHash, a.Content, a.Author, string(tags), string(bullets),
		a.WhyItMatters, a.ClusterID, a.SmartScore, string(features),
		a.Regulatory, a.StormName, a.PublishedAt, createdAtOrNow(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert article: %w", err)
	}

	return nil
}

func (r *ArticleRepo) SetArticleCluster(ctx context.Context, articleID, clusterID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE articles SET cluster_id = ? WHERE id = ?`, clusterID, articleID)
	if err != nil {
		return fmt.Errorf("failed to set article cluster: %w", err)
	}
	return nil
}

func (r *ArticleRepo) UpdateReachability(ctx context.Context, articleID string, reachable bool, checkedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE articles SET reachable = ?, checked_at = ? WHERE id = ?`,
		reachable, checkedAt, articleID)
	if err != nil {
		return fmt.Errorf("failed to update reachability: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*Article, error) {
	var (
		a        Article
		tags     string
		bullets  string
		features string
	)

	err := row.Scan(
		&a.ID, &a.CanonicalURL, &a.Domain, &a.SourceID, &a.Title, &a.TitleHash,
		&a.ContentHash, &a.Content, &a.Author, &tags, &bullets, &a.WhyItMatters,
		&a.ClusterID, &a.SmartScore, &features, &a.Regulatory, &a.StormName,
		&a.PublishedAt, &a.Reachable, &a.CheckedAt, &a.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan article row: %w", err)
	}

	if err := json.Unmarshal([]byte(tags), &a.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	if err := json.Unmarshal([]byte(bullets), &a.Bullets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bullets: %w", err)
	}
	if err := json.Unmarshal([]byte(features), &a.ScoreFeatures); err != nil {
		return nil, fmt.Errorf("failed to unmarshal score features: %w", err)
	}

	return &a, nil
}

func scanArticles(rows *sql.Rows) ([]Article, error) {
	var articles []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}

	return articles, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func createdAtOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
