package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCleanSummary(t *testing.T) {
	raw := rawSummary{
		Tags:         []string{" Florida ", "", "Regulation"},
		Bullets:      []string{"  First point  ", "", "Broken one [citation needed]", "Trailing ["},
		WhyItMatters: "  matters a lot  ",
		EventType:    " Catastrophe ",
		StormName:    "Hurricane milton",
	}

	s := cleanSummary(raw)

	if len(s.Tags) != 2 {
		t.Fatalf("Expected 2 tags, got %d: %v", len(s.Tags), s.Tags)
	}
	if s.Tags[0] != "florida" || s.Tags[1] != "regulation" {
		t.Errorf("Unexpected tags: %v", s.Tags)
	}
	if len(s.Bullets) != 1 {
		t.Fatalf("Expected 1 bullet after trimming bad citations, got %d: %v", len(s.Bullets), s.Bullets)
	}
	if s.Bullets[0] != "First point" {
		t.Errorf("Unexpected bullet: %q", s.Bullets[0])
	}
	if s.WhyItMatters != "matters a lot" {
		t.Errorf("Unexpected why-it-matters: %q", s.WhyItMatters)
	}
	if s.EventType != "catastrophe" {
		t.Errorf("Unexpected event type: %q", s.EventType)
	}
	if s.StormName != "Milton" {
		t.Errorf("Expected storm name 'Milton', got %q", s.StormName)
	}
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Vector: []float64{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	c := NewClient("", srv.URL, "", "", 4)

	_, err := c.Embed(context.Background(), "some text")
	if err == nil {
		t.Fatal("Expected dimension mismatch error")
	}
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch, got %v", err)
	}
}

func TestEmbed_MatchingDimensions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Vector: []float64{0.1, 0.2, 0.3, 0.4}})
	}))
	defer srv.Close()

	c := NewClient("", srv.URL, "", "", 4)

	vec, err := c.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 4 {
		t.Errorf("Expected 4 dimensions, got %d", len(vec))
	}
}

func TestRelevance_Clamped(t *testing.T) {
	score := 1.7
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(classifyResponse{Relevance: score})
	}))
	defer srv.Close()

	c := NewClient("", "", srv.URL, "", 4)

	got, err := c.Relevance(context.Background(), "title", "text")
	if err != nil {
		t.Fatalf("Relevance failed: %v", err)
	}
	if got != 1.0 {
		t.Errorf("Expected relevance clamped to 1.0, got %f", got)
	}

	score = -0.4
	got, err = c.Relevance(context.Background(), "title", "text")
	if err != nil {
		t.Fatalf("Relevance failed: %v", err)
	}
	if got != 0 {
		t.Errorf("Expected relevance clamped to 0, got %f", got)
	}
}
