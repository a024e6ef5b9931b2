package database

import (
	"time"
)

// Article is a persisted article record. The ID is derived
// deterministically from the canonical URL, so re-ingestion of the same
// article is an upsert rather than a duplicate row.
type Article struct {
	ID            string
	CanonicalURL  string
	Domain        string
	SourceID      string
	Title         string
	TitleHash     string
	ContentHash   string
	Content       string
	Author        string
	Tags          []string
	Bullets       []string
	WhyItMatters  string
	ClusterID     string
	SmartScore    int
	ScoreFeatures map[string]float64
	Regulatory    bool
	StormName     string
	PublishedAt   time.Time
	Reachable     *bool
	CheckedAt     *time.Time
	CreatedAt     time.Time
}

// Embedding pairs an article with its vector. Stored separately from the
// article row for size reasons.
type Embedding struct {
	ArticleID string
	Vector    []float64
}

// Event groups near-duplicate or related articles into one story. Events
// grow by single-link absorption and are never merged.
type Event struct {
	ID                 string
	CanonicalArticleID string
	MemberArticleIDs   []string
	Severity           float64
	Impact             float64
	EventType          string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
