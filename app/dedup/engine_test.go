package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/newslens/newslens/app/database"
)

type fakeArticleRepo struct {
	database.ArticleRepository
	byID          map[string]*database.Article
	byContentHash map[string]*database.Article
	byDomainTitle map[string]*database.Article
	recent        []database.Article
}

func newFakeArticleRepo() *fakeArticleRepo {
	return &fakeArticleRepo{
		byID:          make(map[string]*database.Article),
		byContentHash: make(map[string]*database.Article),
		byDomainTitle: make(map[string]*database.Article),
	}
}

func (f *fakeArticleRepo) add(a database.Article) {
	f.byID[a.ID] = &a
	f.byContentHash[a.ContentHash] = &a
	f.byDomainTitle[a.Domain+"|"+a.TitleHash] = &a
	f.recent = append(f.recent, a)
}

func (f *fakeArticleRepo) ArticleExists(ctx context.Context, id string) (bool, error) {
	_, ok := f.byID[id]
	return ok, nil
}

func (f *fakeArticleRepo) GetArticleByContentHash(ctx context.Context, hash string) (*database.Article, error) {
	return f.byContentHash[hash], nil
}

func (f *fakeArticleRepo) GetArticleByDomainTitleHash(ctx context.Context, domain, titleHash string) (*database.Article, error) {
	return f.byDomainTitle[domain+"|"+titleHash], nil
}

func (f *fakeArticleRepo) GetRecentArticles(ctx context.Context, since time.Time, limit int) ([]database.Article, error) {
	return f.recent, nil
}

type fakeEmbeddingRepo struct {
	database.EmbeddingRepository
	recent []database.Embedding
}

func (f *fakeEmbeddingRepo) GetRecentEmbeddings(ctx context.Context, limit int) ([]database.Embedding, error) {
	return f.recent, nil
}

type fakeURLCache struct {
	entries map[string]string
}

func newFakeURLCache() *fakeURLCache {
	return &fakeURLCache{entries: make(map[string]string)}
}

func (f *fakeURLCache) Get(ctx context.Context, url string) (string, bool, error) {
	id, ok := f.entries[url]
	return id, ok, nil
}

func (f *fakeURLCache) Set(ctx context.Context, url, id string, ttl time.Duration) error {
	f.entries[url] = id
	return nil
}

func newTestEngine(articles *fakeArticleRepo, embeddings *fakeEmbeddingRepo) *Engine {
	return NewEngine(articles, embeddings, newFakeURLCache(), 100)
}

func candidateFor(rawURL, title string) Candidate {
	normalized := NormalizeURL(rawURL)
	return Candidate{
		ID:            ArticleID(normalized),
		NormalizedURL: normalized,
		Domain:        Domain(rawURL),
		Title:         title,
		ContentHash:   ContentHash(title, normalized),
		TitleHash:     TitleHash(title),
	}
}

func TestCheck_ExactURLMatch(t *testing.T) {
	articles := newFakeArticleRepo()
	existing := candidateFor("https://example.com/story", "Original title")
	articles.add(database.Article{ID: existing.ID, ContentHash: "different-hash", Domain: existing.Domain})

	engine := newTestEngine(articles, &fakeEmbeddingRepo{})

	// Same URL with tracking params and a completely different title.
	c := candidateFor("https://www.example.com/story/?utm_source=x", "Completely different headline")

	res, err := engine.Check(context.Background(), c)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !res.IsDuplicate {
		t.Fatal("Expected duplicate for identical normalized URL")
	}
	if res.MatchType != MatchURL {
		t.Errorf("Expected match type url, got %s", res.MatchType)
	}
	if res.Confidence != 1.0 {
		t.Errorf("Expected confidence 1.0, got %f", res.Confidence)
	}
}

func TestCheck_ContentHashMatch(t *testing.T) {
	articles := newFakeArticleRepo()
	title := "Fed raises interest rates"
	otherURL := NormalizeURL("https://other.com/fed-story")
	articles.add(database.Article{
		ID:          ArticleID(otherURL),
		ContentHash: ContentHash(title, NormalizeURL("https://example.com/fed-story")),
	})

	engine := newTestEngine(articles, &fakeEmbeddingRepo{})

	c := candidateFor("https://example.com/fed-story", title)

	res, err := engine.Check(context.Background(), c)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !res.IsDuplicate || res.MatchType != MatchContentHash {
		t.Errorf("Expected content_hash duplicate, got %+v", res)
	}
	if res.Confidence != 0.95 {
		t.Errorf("Expected confidence 0.95, got %f", res.Confidence)
	}
}

func TestCheck_SemanticMatch(t *testing.T) {
	articles := newFakeArticleRepo()
	embeddings := &fakeEmbeddingRepo{recent: []database.Embedding{
		{ArticleID: "existing-1", Vector: []float64{1, 0, 0}},
	}}

	engine := newTestEngine(articles, embeddings)

	c := candidateFor("https://example.com/new-story", "Some new headline")
	c.Vector = []float64{0.95, 0.3, 0} // cosine ≈ 0.95

	res, err := engine.Check(context.Background(), c)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !res.IsDuplicate || res.MatchType != MatchSemantic {
		t.Errorf("Expected semantic duplicate, got %+v", res)
	}
	if res.Confidence < semanticThreshold {
		t.Errorf("Confidence should equal similarity >= %f, got %f", semanticThreshold, res.Confidence)
	}
	if res.MatchedID != "existing-1" {
		t.Errorf("Expected match against existing-1, got %s", res.MatchedID)
	}
}

func TestCheck_SemanticBelowThreshold(t *testing.T) {
	articles := newFakeArticleRepo()
	embeddings := &fakeEmbeddingRepo{recent: []database.Embedding{
		{ArticleID: "existing-1", Vector: []float64{1, 0, 0}},
	}}

	engine := newTestEngine(articles, embeddings)

	c := candidateFor("https://example.com/new-story", "Some new headline")
	c.Vector = []float64{0.3, 1, 0} // cosine ≈ 0.29

	res, err := engine.Check(context.Background(), c)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if res.IsDuplicate {
		t.Errorf("Similarity below threshold should not be a duplicate, got %+v", res)
	}
}

func TestCheck_FuzzyTitleMatch(t *testing.T) {
	articles := newFakeArticleRepo()
	articles.add(database.Article{
		ID:    "existing-1",
		Title: "Hurricane Milton slams Florida coast",
	})

	engine := newTestEngine(articles, &fakeEmbeddingRepo{})

	c := candidateFor("https://other.com/milton", "Hurricane Milton slams Florida coasts")

	res, err := engine.Check(context.Background(), c)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !res.IsDuplicate || res.MatchType != MatchFuzzyTitle {
		t.Errorf("Expected fuzzy_title duplicate, got %+v", res)
	}
	if res.Confidence < fuzzyTitleThreshold {
		t.Errorf("Expected confidence >= %f, got %f", fuzzyTitleThreshold, res.Confidence)
	}
}

func TestCheck_FuzzyTitleSkipsLengthMismatch(t *testing.T) {
	articles := newFakeArticleRepo()
	articles.add(database.Article{
		ID:    "existing-1",
		Title: "Milton",
	})

	engine := newTestEngine(articles, &fakeEmbeddingRepo{})

	c := candidateFor("https://other.com/milton", "Hurricane Milton slams Florida coast with record storm surge")

	res, err := engine.Check(context.Background(), c)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if res.IsDuplicate {
		t.Errorf("Titles outside the length tolerance should not be compared, got %+v", res)
	}
}

func TestCheck_DomainTitleMatch(t *testing.T) {
	articles := newFakeArticleRepo()
	title := "Quarterly results beat expectations"
	articles.add(database.Article{
		ID:        "existing-1",
		Domain:    "example.com",
		TitleHash: TitleHash(title),
		// Different content hash and title text so earlier strategies miss.
		ContentHash: "unrelated",
		Title:       "completely different stored headline",
	})

	engine := newTestEngine(articles, &fakeEmbeddingRepo{})

	c := candidateFor("https://example.com/results-recap", title)

	res, err := engine.Check(context.Background(), c)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !res.IsDuplicate || res.MatchType != MatchDomainTitle {
		t.Errorf("Expected domain_title duplicate, got %+v", res)
	}
	if res.Confidence != 0.90 {
		t.Errorf("Expected confidence 0.90, got %f", res.Confidence)
	}
}

func TestCheck_NoMatch(t *testing.T) {
	engine := newTestEngine(newFakeArticleRepo(), &fakeEmbeddingRepo{})

	c := candidateFor("https://example.com/fresh", "A genuinely new story")

	res, err := engine.Check(context.Background(), c)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if res.IsDuplicate {
		t.Errorf("Expected no duplicate, got %+v", res)
	}
}
