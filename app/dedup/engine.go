package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/newslens/newslens/app/database"
	"github.com/newslens/newslens/app/store"
)

type MatchType string

const (
	MatchURL         MatchType = "url"
	MatchContentHash MatchType = "content_hash"
	MatchSemantic    MatchType = "semantic"
	MatchFuzzyTitle  MatchType = "fuzzy_title"
	MatchDomainTitle MatchType = "domain_title"
)

const (
	semanticThreshold   = 0.75
	fuzzyTitleThreshold = 0.80
	urlCacheTTL         = 5 * time.Minute

	// fuzzyLengthTolerance restricts fuzzy comparison to titles within
	// ±20% of each other's length.
	fuzzyLengthTolerance = 0.20
)

// Candidate is the fingerprint of an article being checked.
type Candidate struct {
	ID            string
	NormalizedURL string
	Domain        string
	Title         string
	ContentHash   string
	TitleHash     string
	Vector        []float64
}

// Result describes a dedup decision.
type Result struct {
	IsDuplicate bool
	MatchedID   string
	MatchType   MatchType
	Confidence  float64
}

// Engine runs the dedup strategies in descending confidence order,
// short-circuiting on the first hit.
type Engine struct {
	articles    database.ArticleRepository
	embeddings  database.EmbeddingRepository
	urlCache    store.URLCache
	embedWindow int
}

func NewEngine(articles database.ArticleRepository, embeddings database.EmbeddingRepository,
	urlCache store.URLCache, embedWindow int) *Engine {
	if embedWindow <= 0 {
		embedWindow = 100
	}
	return &Engine{
		articles:    articles,
		embeddings:  embeddings,
		urlCache:    urlCache,
		embedWindow: embedWindow,
	}
}

func (e *Engine) Check(ctx context.Context, c Candidate) (*Result, error) {
	checks := []func(context.Context, Candidate) (*Result, error){
		e.checkURL,
		e.checkContentHash,
		e.checkSemantic,
		e.checkFuzzyTitle,
		e.checkDomainTitle,
	}

	for _, check := range checks {
		res, err := check(ctx, c)
		if err != nil {
			return nil, err
		}
		if res != nil {
			slog.Debug("Duplicate detected",
				"article", c.ID,
				"matched", res.MatchedID,
				"strategy", string(res.MatchType),
				"confidence", res.Confidence)
			return res, nil
		}
	}

	return &Result{IsDuplicate: false}, nil
}

func (e *Engine) checkURL(ctx context.Context, c Candidate) (*Result, error) {
	if cachedID, found, err := e.urlCache.Get(ctx, c.NormalizedURL); err == nil && found {
		if cachedID != c.ID {
			return &Result{IsDuplicate: true, MatchedID: cachedID, MatchType: MatchURL, Confidence: 1.0}, nil
		}
	} else if err != nil {
		// Cache failures degrade to a store lookup.
		slog.Warn("URL cache lookup failed", "error", err)
	}

	exists, err := e.articles.ArticleExists(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check URL duplicate: %w", err)
	}
	if exists {
		return &Result{IsDuplicate: true, MatchedID: c.ID, MatchType: MatchURL, Confidence: 1.0}, nil
	}

	if err := e.urlCache.Set(ctx, c.NormalizedURL, c.ID, urlCacheTTL); err != nil {
		slog.Warn("URL cache write failed", "error", err)
	}

	return nil, nil
}

func (e *Engine) checkContentHash(ctx context.Context, c Candidate) (*Result, error) {
	match, err := e.articles.GetArticleByContentHash(ctx, c.ContentHash)
	if err != nil {
		return nil, fmt.Errorf("failed to check content hash duplicate: %w", err)
	}
	if match != nil && match.ID != c.ID {
		return &Result{IsDuplicate: true, MatchedID: match.ID, MatchType: MatchContentHash, Confidence: 0.95}, nil
	}
	return nil, nil
}

func (e *Engine) checkSemantic(ctx context.Context, c Candidate) (*Result, error) {
	if len(c.Vector) == 0 {
		return nil, nil
	}

	recent, err := e.embeddings.GetRecentEmbeddings(ctx, e.embedWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent embeddings: %w", err)
	}

	for _, emb := range recent {
		if emb.ArticleID == c.ID {
			continue
		}
		sim := CosineSimilarity(c.Vector, emb.Vector)
		if sim >= semanticThreshold {
			return &Result{IsDuplicate: true, MatchedID: emb.ArticleID, MatchType: MatchSemantic, Confidence: sim}, nil
		}
	}

	return nil, nil
}

func (e *Engine) checkFuzzyTitle(ctx context.Context, c Candidate) (*Result, error) {
	recent, err := e.articles.GetRecentArticles(ctx, time.Now().Add(-48*time.Hour), e.embedWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent articles: %w", err)
	}

	normalized := NormalizeTitle(c.Title)
	candidateLen := float64(len(normalized))
	if candidateLen == 0 {
		return nil, nil
	}

	for _, a := range recent {
		if a.ID == c.ID {
			continue
		}

		otherLen := float64(len(NormalizeTitle(a.Title)))
		if otherLen < candidateLen*(1-fuzzyLengthTolerance) || otherLen > candidateLen*(1+fuzzyLengthTolerance) {
			continue
		}

		sim := TitleSimilarity(c.Title, a.Title)
		if sim >= fuzzyTitleThreshold {
			return &Result{IsDuplicate: true, MatchedID: a.ID, MatchType: MatchFuzzyTitle, Confidence: sim}, nil
		}
	}

	return nil, nil
}

func (e *Engine) checkDomainTitle(ctx context.Context, c Candidate) (*Result, error) {
	if c.Domain == "" {
		return nil, nil
	}

	match, err := e.articles.GetArticleByDomainTitleHash(ctx, c.Domain, c.TitleHash)
	if err != nil {
		return nil, fmt.Errorf("failed to check domain+title duplicate: %w", err)
	}
	if match != nil && match.ID != c.ID {
		return &Result{IsDuplicate: true, MatchedID: match.ID, MatchType: MatchDomainTitle, Confidence: 0.90}, nil
	}

	return nil, nil
}
