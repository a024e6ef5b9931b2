package api

import (
	"context"
	"time"

	"github.com/newslens/newslens/app/breaker"
	"github.com/newslens/newslens/app/database"
	"github.com/newslens/newslens/app/health"
	"github.com/newslens/newslens/app/ingest"
	"github.com/newslens/newslens/app/retrieve"
	"github.com/newslens/newslens/app/store"
)

type QueryEngineInterface interface {
	Answer(ctx context.Context, query string) (*retrieve.Result, error)
}

var _ QueryEngineInterface = (*retrieve.Engine)(nil)

type IngestRunnerInterface interface {
	RunCycle(ctx context.Context) *ingest.CycleSummary
	Config() ingest.BatchConfig
}

var _ IngestRunnerInterface = (*ingest.Orchestrator)(nil)

type Handler struct {
	engine    QueryEngineInterface
	runner    IngestRunnerInterface
	tracker   *health.Tracker
	breakers  *breaker.Registry
	articles  database.ArticleRepository
	events    database.EventRepository
	limiter   store.RateLimiter
	summaries store.CycleSummaryStore

	rateLimit int
}

// ErrorResponse is the envelope for all error statuses.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      int       `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}
