package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/newslens/newslens/app/database"
	"github.com/newslens/newslens/app/dedup"
)

const (
	// Similarity blend weights and the absorption threshold. Pairs
	// outside the temporal window lose the tag-overlap contribution.
	titleWeight      = 0.4
	contentWeight    = 0.6
	tagOverlapWeight = 0.2
	linkThreshold    = 0.75

	contentPrefixLen = 500
	temporalWindow   = 24 * time.Hour

	// Candidate pool bounds for one clustering run.
	candidateWindow = 48 * time.Hour
	candidateCap    = 200
)

// Service groups near-duplicate articles that survived dedup into events.
// Growth is greedy single-link from the earliest unclustered article;
// clusters are append-only and never merged.
type Service struct {
	articles database.ArticleRepository
	events   database.EventRepository
	now      func() time.Time
}

func NewService(articles database.ArticleRepository, events database.EventRepository) *Service {
	return &Service{
		articles: articles,
		events:   events,
		now:      time.Now,
	}
}

// Run clusters unclustered articles from the recent window. It returns
// the events created or grown during this run.
func (s *Service) Run(ctx context.Context) ([]database.Event, error) {
	since := s.now().Add(-candidateWindow)

	pool, err := s.articles.GetUnclusteredArticles(ctx, since, candidateCap)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate pool: %w", err)
	}

	if len(pool) < 2 {
		return nil, nil
	}

	var events []database.Event
	used := make(map[string]bool)

	// Pool is ordered by published time ascending; start each event from
	// the earliest article still unclustered.
	for i, seed := range pool {
		if used[seed.ID] {
			continue
		}

		members := []database.Article{seed}
		for _, other := range pool[i+1:] {
			if used[other.ID] {
				continue
			}
			if Similarity(seed, other) > linkThreshold {
				members = append(members, other)
			}
		}

		if len(members) < 2 {
			continue
		}

		event, err := s.persistEvent(ctx, seed, members)
		if err != nil {
			return nil, err
		}

		for _, m := range members {
			used[m.ID] = true
		}

		events = append(events, *event)
	}

	if len(events) > 0 {
		slog.Info("Clustering run completed", "events", len(events), "pool", len(pool))
	}

	return events, nil
}

func (s *Service) persistEvent(ctx context.Context, seed database.Article, members []database.Article) (*database.Event, error) {
	memberIDs := make([]string, len(members))
	maxScore := 0
	catastrophe := false
	for i, m := range members {
		memberIDs[i] = m.ID
		if m.SmartScore > maxScore {
			maxScore = m.SmartScore
		}
		if m.StormName != "" {
			catastrophe = true
		}
	}

	eventType := "story"
	if catastrophe {
		eventType = "catastrophe"
	} else if seed.Regulatory {
		eventType = "regulatory"
	}

	event := database.Event{
		ID:                 "evt-" + seed.ContentHash,
		CanonicalArticleID: seed.ID,
		MemberArticleIDs:   memberIDs,
		Severity:           severity(len(members), maxScore),
		Impact:             float64(maxScore) / 100,
		EventType:          eventType,
	}

	if err := s.events.UpsertEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to persist event: %w", err)
	}

	for _, m := range members {
		if err := s.articles.SetArticleCluster(ctx, m.ID, event.ID); err != nil {
			return nil, fmt.Errorf("failed to assign cluster: %w", err)
		}
	}

	return &event, nil
}

// severity blends corroboration (member count) with the strongest member
// score, bounded to [0,1].
func severity(memberCount, maxScore int) float64 {
	corroboration := float64(memberCount) / 10
	if corroboration > 1 {
		corroboration = 1
	}
	return 0.5*corroboration + 0.5*float64(maxScore)/100
}

// Similarity is the weighted pairwise blend: title edit similarity and
// content-prefix edit similarity, with tag overlap as a secondary signal
// for temporally close pairs.
func Similarity(a, b database.Article) float64 {
	titleSim := dedup.TitleSimilarity(a.Title, b.Title)
	contentSim := dedup.EditSimilarity(prefix(a.Content), prefix(b.Content))

	sim := titleWeight*titleSim + contentWeight*contentSim

	if withinWindow(a.PublishedAt, b.PublishedAt) {
		sim += tagOverlapWeight * tagOverlap(a.Tags, b.Tags)
	}

	if sim > 1 {
		sim = 1
	}

	return sim
}

func prefix(content string) string {
	runes := []rune(content)
	if len(runes) > contentPrefixLen {
		runes = runes[:contentPrefixLen]
	}
	return string(runes)
}

func withinWindow(a, b time.Time) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= temporalWindow
}

// tagOverlap is the Jaccard overlap of the two tag sets.
func tagOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}

	common := 0
	for _, t := range b {
		if set[t] {
			common++
		}
	}

	union := len(a) + len(b) - common
	if union == 0 {
		return 0
	}

	return float64(common) / float64(union)
}
