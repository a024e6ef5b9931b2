package store

import (
	"context"
	"time"
)

// IdempotencyStore guards against double-processing of an article within
// one ingestion batch. Records are write-once and expire automatically.
type IdempotencyStore interface {
	// MarkProcessed records the (batch, source, article) triple. It returns
	// true when the record was created, false when it already existed.
	MarkProcessed(ctx context.Context, batchID, sourceID, articleID string, ttl time.Duration) (bool, error)
}

// RateLimiter enforces a sliding-window request limit per caller. The
// window is evaluated and updated atomically against the store so that
// concurrent requests from the same caller cannot race past the limit.
type RateLimiter interface {
	// Allow records an attempt and reports whether the caller is within
	// the limit. Attempts older than the window do not count.
	Allow(ctx context.Context, caller string, limit int, window time.Duration) (bool, error)
}

// URLCache is a short-lived cache keyed by normalized URL, used by the
// dedup engine to avoid repeated store lookups within one cycle.
type URLCache interface {
	Get(ctx context.Context, normalizedURL string) (string, bool, error)
	Set(ctx context.Context, normalizedURL, articleID string, ttl time.Duration) error
}

// CycleSummaryStore keeps the latest ingestion cycle summary for the
// stats endpoint.
type CycleSummaryStore interface {
	SetLatestCycleSummary(ctx context.Context, payload []byte) error
	GetLatestCycleSummary(ctx context.Context) ([]byte, error)
}
