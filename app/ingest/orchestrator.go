package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newslens/newslens/app/ai"
	"github.com/newslens/newslens/app/breaker"
	"github.com/newslens/newslens/app/database"
	"github.com/newslens/newslens/app/dedup"
	"github.com/newslens/newslens/app/health"
	"github.com/newslens/newslens/app/score"
	"github.com/newslens/newslens/app/sources"
	"github.com/newslens/newslens/app/store"
)

const idempotencyTTL = 24 * time.Hour

// errSkip wraps conditions that skip an article without counting as an
// error: validation failures and duplicates.
var errSkip = errors.New("article skipped")

// Orchestrator drives one ingestion cycle: per source it consults the
// breaker, fetches the feed, then extracts, summarizes, deduplicates,
// scores and persists each article. Failures are isolated per source and
// per article; one bad source never aborts the cycle.
type Orchestrator struct {
	sources     *sources.ConfigCache
	breakers    *breaker.Registry
	tracker     *health.Tracker
	reader      FeedReader
	extractor   Extractor
	summarizer  ai.Summarizer
	embedder    ai.Embedder
	classifier  ai.Classifier
	deduper     DedupChecker
	scorer      *score.Calculator
	articles    database.ArticleRepository
	embeddings  database.EmbeddingRepository
	events      database.EventRepository
	idempotency store.IdempotencyStore
	summaries   store.CycleSummaryStore
	reach       ReachabilityChecker

	batchSize        int
	extractRetries   int
	extractRetryWait time.Duration
	minContentLength int
}

type OrchestratorDeps struct {
	Sources     *sources.ConfigCache
	Breakers    *breaker.Registry
	Tracker     *health.Tracker
	Reader      FeedReader
	Extractor   Extractor
	Summarizer  ai.Summarizer
	Embedder    ai.Embedder
	Classifier  ai.Classifier
	Deduper     DedupChecker
	Scorer      *score.Calculator
	Articles    database.ArticleRepository
	Embeddings  database.EmbeddingRepository
	Events      database.EventRepository
	Idempotency store.IdempotencyStore
	Summaries   store.CycleSummaryStore
	Reach       ReachabilityChecker

	BatchSize        int
	ExtractRetries   int
	ExtractRetryWait time.Duration
	MinContentLength int
}

func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	o := &Orchestrator{
		sources:          deps.Sources,
		breakers:         deps.Breakers,
		tracker:          deps.Tracker,
		reader:           deps.Reader,
		extractor:        deps.Extractor,
		summarizer:       deps.Summarizer,
		embedder:         deps.Embedder,
		classifier:       deps.Classifier,
		deduper:          deps.Deduper,
		scorer:           deps.Scorer,
		articles:         deps.Articles,
		embeddings:       deps.Embeddings,
		events:           deps.Events,
		idempotency:      deps.Idempotency,
		summaries:        deps.Summaries,
		reach:            deps.Reach,
		batchSize:        deps.BatchSize,
		extractRetries:   deps.ExtractRetries,
		extractRetryWait: deps.ExtractRetryWait,
		minContentLength: deps.MinContentLength,
	}

	if o.batchSize <= 0 {
		o.batchSize = 50
	}
	if o.extractRetries <= 0 {
		o.extractRetries = 3
	}
	if o.extractRetryWait <= 0 {
		o.extractRetryWait = 5 * time.Second
	}
	if o.minContentLength <= 0 {
		o.minContentLength = 100
	}

	return o
}

// Config returns the batch configuration in effect.
func (o *Orchestrator) Config() BatchConfig {
	return BatchConfig{
		BatchSize:        o.batchSize,
		ExtractRetries:   o.extractRetries,
		ExtractRetryWait: int(o.extractRetryWait.Seconds()),
		MinContentLength: o.minContentLength,
	}
}

// RunCycle executes one ingestion cycle across all enabled sources and
// reports the summary to the monitoring sink regardless of outcome.
func (o *Orchestrator) RunCycle(ctx context.Context) *CycleSummary {
	started := time.Now()
	summary := &CycleSummary{
		BatchID:   uuid.NewString(),
		StartedAt: started.UTC(),
	}

	enabled := o.sources.GetEnabledSources()
	slog.Info("Ingestion cycle started", "batch", summary.BatchID, "sources", len(enabled))

	for _, src := range enabled {
		o.processSource(ctx, src, summary)
	}

	summary.TotalLatencyMs = time.Since(started).Milliseconds()
	o.report(ctx, summary)

	slog.Info("Ingestion cycle completed",
		"batch", summary.BatchID,
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"errors", summary.Errors,
		"feeds_processed", summary.FeedsProcessed,
		"duration", time.Since(started))

	return summary
}

func (o *Orchestrator) processSource(ctx context.Context, src sources.Source, summary *CycleSummary) {
	sourceID := src.ID()

	if !o.breakers.CanAttempt(sourceID) {
		slog.Debug("Source skipped, breaker open", "source", sourceID)
		return
	}

	items, err := o.reader.Fetch(ctx, src.URL)
	if err != nil {
		o.breakers.RecordFailure(sourceID)
		o.tracker.RecordFailure(sourceID, err)
		summary.Errors++
		slog.Warn("Feed fetch failed", "source", sourceID, "error", err)
		return
	}

	o.breakers.RecordSuccess(sourceID)
	o.tracker.RecordSuccess(sourceID)
	summary.FeedsProcessed++

	if len(items) > o.batchSize {
		items = items[:o.batchSize]
	}

	for _, item := range items {
		err := o.processArticle(ctx, src, item, summary.BatchID)
		switch {
		case err == nil:
			summary.Processed++
		case errors.Is(err, errSkip):
			summary.Skipped++
			slog.Debug("Article skipped", "source", sourceID, "link", item.Link, "reason", err)
		default:
			summary.Errors++
			slog.Warn("Article processing failed", "source", sourceID, "link", item.Link, "error", err)
		}
	}
}

// processArticle runs the full per-article pipeline. It returns nil when
// the article was persisted, errSkip-wrapped errors for non-error skips,
// and other errors for failures that count against the cycle.
func (o *Orchestrator) processArticle(ctx context.Context, src sources.Source, item FeedItem, batchID string) error {
	canonical := dedup.NormalizeURL(item.Link)
	articleID := dedup.ArticleID(canonical)
	sourceID := src.ID()

	// The mark is atomic check-and-set, so a concurrent cycle or a
	// partial retry within this batch sees the record and backs off.
	created, err := o.idempotency.MarkProcessed(ctx, batchID, sourceID, articleID, idempotencyTTL)
	if err != nil {
		return fmt.Errorf("idempotency check failed: %w", err)
	}
	if !created {
		return fmt.Errorf("%w: already handled in this batch", errSkip)
	}

	exists, err := o.articles.ArticleExists(ctx, articleID)
	if err != nil {
		return fmt.Errorf("existence check failed: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: already ingested", errSkip)
	}

	var extracted *ExtractedContent
	err = WithRetry(ctx, o.extractRetries, o.extractRetryWait, func(ctx context.Context) error {
		var exErr error
		extracted, exErr = o.extractor.Extract(ctx, item.Link)
		return exErr
	})
	if err != nil {
		return fmt.Errorf("content extraction failed: %w", err)
	}

	if len(extracted.Text) < o.minContentLength {
		return fmt.Errorf("%w: content below %d chars", errSkip, o.minContentLength)
	}

	title := extracted.Title
	if title == "" {
		title = item.Title
	}

	summarized, err := o.summarizer.Summarize(ctx, title, extracted.Text)
	if err != nil {
		return fmt.Errorf("summarization failed: %w", err)
	}

	vector, err := o.embedder.Embed(ctx, title+"\n"+extracted.Text)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	relevance, err := o.classifier.Relevance(ctx, title, extracted.Text)
	if err != nil {
		return fmt.Errorf("relevance classification failed: %w", err)
	}

	contentHash := dedup.ContentHash(title, canonical)

	dupResult, err := o.deduper.Check(ctx, dedup.Candidate{
		ID:            articleID,
		NormalizedURL: canonical,
		Domain:        dedup.Domain(item.Link),
		Title:         title,
		ContentHash:   contentHash,
		TitleHash:     dedup.TitleHash(title),
		Vector:        vector,
	})
	if err != nil {
		return fmt.Errorf("dedup check failed: %w", err)
	}

	// A cross-URL duplicate is still persisted; it joins the matched
	// article's cluster instead of founding its own.
	clusterID := contentHash
	if dupResult.IsDuplicate {
		clusterID = o.inheritCluster(ctx, dupResult.MatchedID, contentHash)
		slog.Debug("Duplicate persisted into existing cluster",
			"article", articleID,
			"matched", dupResult.MatchedID,
			"strategy", string(dupResult.MatchType),
			"confidence", dupResult.Confidence)
	}

	signals := DetectSignals(title, extracted.Text)
	stormName := summarized.StormName
	if stormName == "" {
		stormName = signals.StormName
	}

	published := item.PublishedAt
	if published.IsZero() {
		published = time.Now().UTC()
	}

	scored := o.scorer.Score(score.Input{
		Title:             title,
		Text:              extracted.Text,
		PublishedAt:       published,
		PCRelevance:       relevance,
		SourceCredibility: src.Credibility,
	})

	article := database.Article{
		ID:            articleID,
		CanonicalURL:  canonical,
		Domain:        dedup.Domain(item.Link),
		SourceID:      sourceID,
		Title:         title,
		TitleHash:     dedup.TitleHash(title),
		ContentHash:   contentHash,
		Content:       extracted.Text,
		Author:        extracted.Author,
		Tags:          summarized.Tags,
		Bullets:       summarized.Bullets,
		WhyItMatters:  summarized.WhyItMatters,
		ClusterID:     clusterID,
		SmartScore:    scored.SmartScore,
		ScoreFeatures: scored.Features,
		Regulatory:    signals.Regulatory,
		StormName:     stormName,
		PublishedAt:   published.UTC(),
	}

	if err := o.articles.UpsertArticle(ctx, article); err != nil {
		return fmt.Errorf("failed to persist article: %w", err)
	}

	if err := o.embeddings.UpsertEmbedding(ctx, database.Embedding{ArticleID: articleID, Vector: vector}); err != nil {
		return fmt.Errorf("failed to persist embedding: %w", err)
	}

	// A duplicate folded into a promoted event joins that event's member
	// list once its own write has committed.
	if dupResult.IsDuplicate && strings.HasPrefix(clusterID, "evt-") {
		o.recordEventMember(ctx, clusterID, articleID)
	}

	// Reachability is attached after the committed write and must not
	// undo it.
	o.checkReachability(ctx, articleID, item.Link)

	return nil
}

// recordEventMember appends a persisted duplicate to the event its
// cluster was promoted into. The article write has already committed, so
// a membership failure is logged rather than rolled back; the next
// clustering pass reconciles it.
func (o *Orchestrator) recordEventMember(ctx context.Context, eventID, articleID string) {
	if o.events == nil {
		return
	}

	if err := o.events.AddEventMember(ctx, eventID, articleID); err != nil {
		slog.Warn("Failed to record event membership", "event", eventID, "article", articleID, "error", err)
	}
}

func (o *Orchestrator) inheritCluster(ctx context.Context, matchedID, fallback string) string {
	matched, err := o.articles.GetArticle(ctx, matchedID)
	if err != nil || matched == nil || matched.ClusterID == "" {
		return fallback
	}
	return matched.ClusterID
}

func (o *Orchestrator) checkReachability(ctx context.Context, articleID, url string) {
	if o.reach == nil {
		return
	}

	healthy := o.reach.Check(ctx, url)
	if err := o.articles.UpdateReachability(ctx, articleID, healthy, time.Now().UTC()); err != nil {
		slog.Warn("Failed to record reachability", "article", articleID, "error", err)
	}
}

func (o *Orchestrator) report(ctx context.Context, summary *CycleSummary) {
	if o.summaries == nil {
		return
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		slog.Error("Failed to marshal cycle summary", "error", err)
		return
	}

	if err := o.summaries.SetLatestCycleSummary(ctx, payload); err != nil {
		slog.Warn("Failed to report cycle summary", "error", err)
	}
}
