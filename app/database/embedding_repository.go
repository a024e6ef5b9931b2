package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

var _ EmbeddingRepository = (*EmbeddingRepo)(nil)

type EmbeddingRepo struct {
	db *DB
}

func NewEmbeddingRepository(db *DB) *EmbeddingRepo {
	return &EmbeddingRepo{db: db}
}

func (r *EmbeddingRepo) GetEmbedding(ctx context.Context, articleID string) (*Embedding, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT vector FROM embeddings WHERE article_id = ?`, articleID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}

	e := Embedding{ArticleID: articleID}
	if err := json.Unmarshal([]byte(raw), &e.Vector); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vector: %w", err)
	}

	return &e, nil
}

// GetRecentEmbeddings returns the most recently stored embeddings, newest
// first. Used as the bounded comparison window for semantic dedup.
func (r *EmbeddingRepo) GetRecentEmbeddings(ctx context.Context, limit int) ([]Embedding, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT article_id, vector FROM embeddings
		 ORDER BY created_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings []Embedding
	for rows.Next() {
		var (
			e   Embedding
			raw string
		)
		if err := rows.Scan(&e.ArticleID, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan embedding row: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &e.Vector); err != nil {
			return nil, fmt.Errorf("failed to unmarshal vector: %w", err)
		}
		embeddings = append(embeddings, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating embedding rows: %w", err)
	}

	return embeddings, nil
}

func (r *EmbeddingRepo) GetEmbeddings(ctx context.Context, articleIDs []string) (map[string][]float64, error) {
	if len(articleIDs) == 0 {
		return map[string][]float64{}, nil
	}

	placeholders := strings.Repeat("?,", len(articleIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(articleIDs))
	for i, id := range articleIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT article_id, vector FROM embeddings WHERE article_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get embeddings: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]float64, len(articleIDs))
	for rows.Next() {
		var (
			id  string
			raw string
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan embedding row: %w", err)
		}
		var vec []float64
		if err := json.Unmarshal([]byte(raw), &vec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal vector: %w", err)
		}
		result[id] = vec
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating embedding rows: %w", err)
	}

	return result, nil
}

func (r *EmbeddingRepo) UpsertEmbedding(ctx context.Context, e Embedding) error {
	raw, err := json.Marshal(e.Vector)
	if err != nil {
		return fmt.Errorf("failed to marshal vector: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO embeddings (article_id, vector)
		VALUES (?, ?)
		ON CONFLICT (article_id) DO UPDATE SET vector = excluded.vector
	`, e.ArticleID, string(raw))
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}

	return nil
}
