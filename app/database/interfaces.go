package database

import (
	"context"
	"time"
)

type ArticleRepository interface {
	GetArticle(ctx context.Context, id string) (*Article, error)
	ArticleExists(ctx context.Context, id string) (bool, error)
	GetArticleByContentHash(ctx context.Context, contentHash string) (*Article, error)
	GetArticleByDomainTitleHash(ctx context.Context, domain, titleHash string) (*Article, error)
	GetRecentArticles(ctx context.Context, since time.Time, limit int) ([]Article, error)
	GetUnclusteredArticles(ctx context.Context, since time.Time, limit int) ([]Article, error)
	GetArticleCount(ctx context.Context) (int, error)

	UpsertArticle(ctx context.Context, article Article) error
	SetArticleCluster(ctx context.Context, articleID, clusterID string) error
	UpdateReachability(ctx context.Context, articleID string, reachable bool, checkedAt time.Time) error
}

type EmbeddingRepository interface {
	GetEmbedding(ctx context.Context, articleID string) (*Embedding, error)
	GetRecentEmbeddings(ctx context.Context, limit int) ([]Embedding, error)
	GetEmbeddings(ctx context.Context, articleIDs []string) (map[string][]float64, error)

	UpsertEmbedding(ctx context.Context, embedding Embedding) error
}

type EventRepository interface {
	GetEvent(ctx context.Context, id string) (*Event, error)
	GetEventCount(ctx context.Context) (int, error)

	UpsertEvent(ctx context.Context, event Event) error
	AddEventMember(ctx context.Context, eventID, articleID string) error
}
