package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/newslens/newslens/app/ai"
	"github.com/newslens/newslens/app/database"
	"github.com/newslens/newslens/app/dedup"
	"github.com/newslens/newslens/app/ingest"
)

const (
	cosineWeight  = 0.6
	keywordWeight = 0.4

	promotionFactor = 1.5

	hybridPoolSize = 20
	mmrLambda      = 0.7
	mmrPoolSize    = 12
	contextSize    = 8

	recencyBoostWeight  = 0.1
	recencyBoostHorizon = 30 // days

	corpusWindow = 30 * 24 * time.Hour
	corpusLimit  = 500

	minTermLength = 3
)

// Candidate is one article in flight through the ranking pipeline.
type Candidate struct {
	Article database.Article
	Vector  []float64
	Score   float64
}

// SourceRef is a cited article in the response.
type SourceRef struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Result is the ranked, grounded answer for a query.
type Result struct {
	AnswerText   string      `json:"answerText"`
	Bullets      []string    `json:"bullets"`
	Sources      []SourceRef `json:"sources"`
	Related      []string    `json:"related"`
	UsedArticles []string    `json:"usedArticles"`
	Highlights   []string    `json:"highlights"`
	LatencyMs    int64       `json:"latencyMs"`
}

// Engine answers queries over the corpus: hybrid scoring, keyword
// promotions, MMR re-ranking, cluster diversity capping and a recency
// boost, then grounded answer generation with citation validation.
type Engine struct {
	articles   database.ArticleRepository
	embeddings database.EmbeddingRepository
	embedder   ai.Embedder
	answerer   ai.Answerer

	now func() time.Time
}

func NewEngine(articles database.ArticleRepository, embeddings database.EmbeddingRepository, embedder ai.Embedder, answerer ai.Answerer) *Engine {
	return &Engine{
		articles:   articles,
		embeddings: embeddings,
		embedder:   embedder,
		answerer:   answerer,
		now:        time.Now,
	}
}

// Answer runs the full retrieval pipeline for a query.
func (e *Engine) Answer(ctx context.Context, query string) (*Result, error) {
	started := e.now()

	// Dimension mismatches surface here as a hard error.
	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	candidates, err := e.loadCandidates(ctx, queryVec, query)
	if err != nil {
		return nil, err
	}

	if len(candidates) > hybridPoolSize {
		candidates = candidates[:hybridPoolSize]
	}

	reranked := MMR(candidates, mmrLambda, mmrPoolSize)

	diverse, cut := capClusters(reranked)

	ranked := e.boostRecency(diverse)
	if len(ranked) > contextSize {
		cut = append(cut, ranked[contextSize:]...)
		ranked = ranked[:contextSize]
	}

	result := e.buildResult(ctx, query, ranked, cut)
	result.LatencyMs = e.now().Sub(started).Milliseconds()

	return result, nil
}

// loadCandidates hybrid-scores the recent corpus against the query and
// returns candidates sorted by score, first-seen order preserved on ties.
func (e *Engine) loadCandidates(ctx context.Context, queryVec []float64, query string) ([]Candidate, error) {
	since := e.now().Add(-corpusWindow)
	articles, err := e.articles.GetRecentArticles(ctx, since, corpusLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus slice: %w", err)
	}
	if len(articles) == 0 {
		return nil, nil
	}

	ids := make([]string, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
	}
	vectors, err := e.embeddings.GetEmbeddings(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}

	terms := queryTerms(query)
	promoteRegulatory := ingest.ContainsRegulatoryTerms(query)
	promoteCatastrophe := ingest.ContainsCatastropheTerms(query)

	candidates := make([]Candidate, 0, len(articles))
	for _, a := range articles {
		vec, ok := vectors[a.ID]
		if !ok {
			continue
		}

		score := cosineWeight*dedup.CosineSimilarity(queryVec, vec) +
			keywordWeight*keywordScore(terms, a)

		if promoteRegulatory && a.Regulatory {
			score *= promotionFactor
		}
		if promoteCatastrophe && a.StormName != "" {
			score *= promotionFactor
		}

		candidates = append(candidates, Candidate{Article: a, Vector: vec, Score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	return candidates, nil
}

// queryTerms lowercases and tokenizes a query, dropping short terms.
func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))

	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()")
		if len(f) >= minTermLength {
			terms = append(terms, f)
		}
	}
	return terms
}

// keywordScore counts term occurrences across title, bullets and tags,
// normalized to [0,1]. Occurrences per term are capped so a single
// repeated term cannot dominate.
func keywordScore(terms []string, a database.Article) float64 {
	if len(terms) == 0 {
		return 0
	}

	haystack := strings.ToLower(a.Title + " " +
		strings.Join(a.Bullets, " ") + " " +
		strings.Join(a.Tags, " "))

	const perTermCap = 3
	total := 0.0
	for _, t := range terms {
		count := strings.Count(haystack, t)
		if count > perTermCap {
			count = perTermCap
		}
		total += float64(count) / perTermCap
	}

	return total / float64(len(terms))
}

// capClusters keeps at most one article per cluster, the highest-scoring
// member. Cut members are returned for the related list.
func capClusters(candidates []Candidate) (kept, cut []Candidate) {
	best := make(map[string]int)

	for _, c := range candidates {
		idx, seen := best[c.Article.ClusterID]
		if !seen {
			best[c.Article.ClusterID] = len(kept)
			kept = append(kept, c)
			continue
		}
		if c.Score > kept[idx].Score {
			cut = append(cut, kept[idx])
			kept[idx] = c
		} else {
			cut = append(cut, c)
		}
	}

	return kept, cut
}

// boostRecency adds the recency bonus and re-sorts.
func (e *Engine) boostRecency(candidates []Candidate) []Candidate {
	now := e.now()

	boosted := make([]Candidate, len(candidates))
	for i, c := range candidates {
		ageDays := now.Sub(c.Article.PublishedAt).Hours() / 24
		bonus := recencyBoostWeight * maxFloat(0, 1-ageDays/recencyBoostHorizon)
		c.Score += bonus
		boosted[i] = c
	}

	sort.SliceStable(boosted, func(i, j int) bool {
		return boosted[i].Score > boosted[j].Score
	})

	return boosted
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// buildResult generates the grounded answer and assembles the response.
// Answer generation failures degrade to a citation-only response rather
// than failing the query.
func (e *Engine) buildResult(ctx context.Context, query string, ranked, cut []Candidate) *Result {
	result := &Result{
		Bullets:      []string{},
		Sources:      []SourceRef{},
		Related:      []string{},
		UsedArticles: []string{},
		Highlights:   []string{},
	}

	contextURLs := make(map[string]bool, len(ranked))
	for _, c := range ranked {
		result.Sources = append(result.Sources, SourceRef{Title: c.Article.Title, URL: c.Article.CanonicalURL})
		contextURLs[c.Article.CanonicalURL] = true
	}

	for _, c := range cut {
		result.Related = append(result.Related, c.Article.Title)
	}

	if len(ranked) > 0 {
		result.Highlights = append(result.Highlights, ranked[0].Article.Bullets...)
	}

	if e.answerer == nil || len(ranked) == 0 {
		return result
	}

	answer, err := e.answerer.Answer(ctx, query, GroundingContext(ranked))
	if err != nil {
		slog.Warn("Answer generation failed, returning sources only", "error", err)
		return result
	}

	result.AnswerText = answer.Text
	result.Bullets = answer.Bullets

	// Citations outside the grounding context are dropped. An answer
	// with no surviving citation falls back to the full context.
	for _, url := range answer.Citations {
		if contextURLs[url] {
			result.UsedArticles = append(result.UsedArticles, url)
		}
	}
	if len(result.UsedArticles) == 0 {
		for _, c := range ranked {
			result.UsedArticles = append(result.UsedArticles, c.Article.CanonicalURL)
		}
	}

	return result
}

// GroundingContext renders the surviving articles as the literal context
// the answer must cite from.
func GroundingContext(ranked []Candidate) string {
	var b strings.Builder
	for i, c := range ranked {
		fmt.Fprintf(&b, "[%d] %s (%s)\n", i+1, c.Article.Title, c.Article.CanonicalURL)
		for _, bullet := range c.Article.Bullets {
			fmt.Fprintf(&b, "- %s\n", bullet)
		}
		if c.Article.WhyItMatters != "" {
			fmt.Fprintf(&b, "Why it matters: %s\n", c.Article.WhyItMatters)
		}
		b.WriteString("\n")
	}
	return b.String()
}
