package ingest

import (
	"context"
	"time"

	"github.com/newslens/newslens/app/dedup"
)

// FeedItem is one entry of a fetched feed, before content extraction.
type FeedItem struct {
	Title       string
	Link        string
	PublishedAt time.Time
	Content     string
}

// Signals are the regulatory/catastrophe flags detected from content.
type Signals struct {
	Regulatory  bool
	Catastrophe bool
	StormName   string
}

// CycleSummary aggregates the outcome of one ingestion cycle. It is
// reported to the monitoring sink at cycle end, success or failure.
type CycleSummary struct {
	BatchID        string    `json:"batch_id"`
	Processed      int       `json:"processed"`
	Skipped        int       `json:"skipped"`
	Errors         int       `json:"errors"`
	FeedsProcessed int       `json:"feeds_processed"`
	TotalLatencyMs int64     `json:"total_latency_ms"`
	StartedAt      time.Time `json:"started_at"`
}

// BatchConfig echoes the ingestion settings in effect for a cycle.
type BatchConfig struct {
	BatchSize        int `json:"batch_size"`
	ExtractRetries   int `json:"extract_retries"`
	ExtractRetryWait int `json:"extract_retry_wait_s"`
	MinContentLength int `json:"min_content_length"`
}

// FeedReader fetches and parses a feed URL into items.
type FeedReader interface {
	Fetch(ctx context.Context, url string) ([]FeedItem, error)
}

// Extractor resolves an article URL to its full content.
type Extractor interface {
	Extract(ctx context.Context, url string) (*ExtractedContent, error)
}

// ExtractedContent is the validated output of the content extractor.
type ExtractedContent struct {
	Title  string
	Text   string
	HTML   string
	Author string
}

// DedupChecker runs the duplicate strategies over a candidate.
type DedupChecker interface {
	Check(ctx context.Context, c dedup.Candidate) (*dedup.Result, error)
}

// ReachabilityChecker performs the best-effort link health probe.
type ReachabilityChecker interface {
	Check(ctx context.Context, url string) bool
}
