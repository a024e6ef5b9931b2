package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/newslens/newslens/app/database"
)

type fakeArticleRepo struct {
	database.ArticleRepository
	unclustered []database.Article
	clusters    map[string]string
}

func (f *fakeArticleRepo) GetUnclusteredArticles(ctx context.Context, since time.Time, limit int) ([]database.Article, error) {
	return f.unclustered, nil
}

func (f *fakeArticleRepo) SetArticleCluster(ctx context.Context, articleID, clusterID string) error {
	if f.clusters == nil {
		f.clusters = make(map[string]string)
	}
	f.clusters[articleID] = clusterID
	return nil
}

type fakeEventRepo struct {
	database.EventRepository
	events map[string]database.Event
}

func (f *fakeEventRepo) UpsertEvent(ctx context.Context, e database.Event) error {
	if f.events == nil {
		f.events = make(map[string]database.Event)
	}
	f.events[e.ID] = e
	return nil
}

func article(id, title, content string, published time.Time, tags ...string) database.Article {
	return database.Article{
		ID:          id,
		Title:       title,
		Content:     content,
		ContentHash: "hash-" + id,
		PublishedAt: published,
		Tags:        tags,
	}
}

func TestRun_GroupsSimilarArticles(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	body := "Hurricane Milton made landfall near Tampa on Tuesday causing widespread damage to coastal property and prompting emergency declarations across three counties."

	articles := &fakeArticleRepo{unclustered: []database.Article{
		article("a1", "Hurricane Milton makes landfall near Tampa", body, now.Add(-3*time.Hour), "hurricane", "florida"),
		article("a2", "Hurricane Milton makes landfall near Tampa Bay", body+" Officials warned residents.", now.Add(-2*time.Hour), "hurricane", "florida"),
		article("a3", "Fed holds interest rates steady in March meeting", "The Federal Reserve held rates steady, citing inflation progress and stable labor markets across all districts this quarter.", now.Add(-1*time.Hour), "rates"),
	}}
	events := &fakeEventRepo{}

	s := NewService(articles, events)
	s.now = func() time.Time { return now }

	created, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(created) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(created))
	}

	event := created[0]
	if len(event.MemberArticleIDs) != 2 {
		t.Fatalf("Expected 2 members, got %d", len(event.MemberArticleIDs))
	}
	if event.CanonicalArticleID != "a1" {
		t.Errorf("Expected earliest article as canonical, got %s", event.CanonicalArticleID)
	}
	if event.EventType != "catastrophe" && event.EventType != "story" {
		t.Errorf("Unexpected event type %q", event.EventType)
	}

	if articles.clusters["a1"] != event.ID || articles.clusters["a2"] != event.ID {
		t.Error("Both members should be assigned the event cluster")
	}
	if _, ok := articles.clusters["a3"]; ok {
		t.Error("Unrelated article should stay unclustered")
	}
}

func TestRun_SingletonsCreateNoEvent(t *testing.T) {
	now := time.Now()
	articles := &fakeArticleRepo{unclustered: []database.Article{
		article("a1", "Completely unique story about reinsurance pricing", "Reinsurance renewal rates rose at January renewals with property catastrophe programs seeing double digit increases.", now),
		article("a2", "Fed policy decision surprises bond markets", "Treasury yields moved sharply after the unexpected decision on Wednesday afternoon in New York trading.", now),
	}}
	events := &fakeEventRepo{}

	s := NewService(articles, events)

	created, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("Expected no events for dissimilar pool, got %d", len(created))
	}
}

func TestSimilarity_TagOverlapOnlyWithinWindow(t *testing.T) {
	now := time.Now()
	body := "Some moderately similar body text for the similarity calculation in this test case."

	a := article("a", "Insurers face new Florida rules", body, now, "florida", "regulation")
	b := article("b", "Florida rules hit insurers hard", body, now.Add(-time.Hour), "florida", "regulation")
	c := article("c", "Florida rules hit insurers hard", body, now.Add(-30*time.Hour), "florida", "regulation")

	near := Similarity(a, b)
	far := Similarity(a, c)

	if near <= far {
		t.Errorf("Tag overlap should only boost temporally close pairs: near=%f far=%f", near, far)
	}
}

func TestSeverity_Bounded(t *testing.T) {
	if s := severity(20, 100); s > 1.0 {
		t.Errorf("Severity must stay within [0,1], got %f", s)
	}
	if s := severity(2, 50); s <= 0 || s >= 1 {
		t.Errorf("Mid-range severity expected in (0,1), got %f", s)
	}
}
