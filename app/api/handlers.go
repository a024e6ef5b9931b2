package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"

	"github.com/newslens/newslens/app/breaker"
	"github.com/newslens/newslens/app/database"
	"github.com/newslens/newslens/app/health"
	"github.com/newslens/newslens/app/ingest"
	"github.com/newslens/newslens/app/store"
)

const (
	minQueryLength = 3
	maxQueryLength = 500

	rateLimitWindow = time.Hour
)

func NewHandler(engine QueryEngineInterface, runner IngestRunnerInterface,
	tracker *health.Tracker, breakers *breaker.Registry,
	articles database.ArticleRepository, events database.EventRepository,
	limiter store.RateLimiter, summaries store.CycleSummaryStore,
	rateLimit int) *Handler {
	return &Handler{
		engine:    engine,
		runner:    runner,
		tracker:   tracker,
		breakers:  breakers,
		articles:  articles,
		events:    events,
		limiter:   limiter,
		summaries: summaries,
		rateLimit: rateLimit,
	}
}

func (h *Handler) Query(c *gin.Context) {
	query, ok := h.extractQuery(c)
	if !ok {
		return
	}

	allowed, err := h.limiter.Allow(c.Request.Context(), c.ClientIP(), h.rateLimit, rateLimitWindow)
	if err != nil {
		// The limiter store being down should not take the query path
		// with it.
		slog.Warn("Rate limiter unavailable, admitting request", "error", err)
		allowed = true
	}
	if !allowed {
		respondError(c, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	result, err := h.engine.Answer(c.Request.Context(), query)
	if err != nil {
		slog.Error("Query failed", "query", query, "error", err)
		respondError(c, http.StatusInternalServerError, "query processing failed")
		return
	}

	c.JSON(http.StatusOK, result)
}

// extractQuery pulls q from the query string or a JSON body, strips HTML
// and validates length. Responds with 400 itself when invalid.
func (h *Handler) extractQuery(c *gin.Context) (string, bool) {
	raw := c.Query("q")

	if raw == "" && c.Request.Method == http.MethodPost {
		var body struct {
			Q string `json:"q"`
		}
		if err := c.ShouldBindJSON(&body); err == nil {
			raw = body.Q
		}
	}

	query := stripHTML(raw)

	length := utf8.RuneCountInString(query)
	if length < minQueryLength || length > maxQueryLength {
		respondError(c, http.StatusBadRequest,
			"query must be between 3 and 500 characters")
		return "", false
	}

	return query, true
}

// stripHTML reduces markup to its text content so tags never count toward
// the length check or reach the retrieval engine.
func stripHTML(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return strings.TrimSpace(strings.Join(strings.Fields(doc.Text()), " "))
}

func (h *Handler) Ingest(c *gin.Context) {
	summary := h.runner.RunCycle(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"summary": summary,
		"config":  h.runner.Config(),
	})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	report := h.tracker.Report()

	status := http.StatusOK
	for _, s := range report {
		if s.Status == health.StatusUnhealthy {
			status = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(status, gin.H{
		"status":  statusLabel(status),
		"sources": report,
	})
}

func statusLabel(status int) string {
	if status == http.StatusOK {
		return "ok"
	}
	return "degraded"
}

func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	articleCount, err := h.articles.GetArticleCount(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "article_count", "error", err)
		respondError(c, http.StatusInternalServerError, "failed to load stats")
		return
	}

	eventCount, err := h.events.GetEventCount(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "event_count", "error", err)
		respondError(c, http.StatusInternalServerError, "failed to load stats")
		return
	}

	stats := gin.H{
		"articles": articleCount,
		"events":   eventCount,
		"breakers": h.breakers.States(),
	}

	if payload, err := h.summaries.GetLatestCycleSummary(ctx); err == nil && payload != nil {
		var last ingest.CycleSummary
		if jsonErr := json.Unmarshal(payload, &last); jsonErr == nil {
			stats["last_cycle"] = last
		}
	}

	c.JSON(http.StatusOK, stats)
}

func respondError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:     message,
		Code:      code,
		Timestamp: time.Now().UTC(),
	})
}
