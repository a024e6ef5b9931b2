package ai

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when the embedding service produces a
// vector whose dimensionality differs from the stored corpus. This is a
// hard error; mixing dimensionalities would silently corrupt similarity
// scores.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Summary is the validated, normalized result of the summarization
// collaborator.
type Summary struct {
	Tags         []string `json:"tags"`
	Bullets      []string `json:"bullets"`
	WhyItMatters string   `json:"why_it_matters"`
	EventType    string   `json:"event_type"`
	StormName    string   `json:"storm_name"`
}

// Summarizer turns article text into structured tags, bullets and a
// "why it matters" breakdown.
type Summarizer interface {
	Summarize(ctx context.Context, title, text string) (*Summary, error)
}

// Embedder produces fixed-dimension vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Dimensions() int
}

// Classifier returns the domain-relevance score for an article in [0,1].
type Classifier interface {
	Relevance(ctx context.Context, title, text string) (float64, error)
}

// Answer is a generated response grounded in a context of articles.
// Citations are raw URLs as produced by the model, unvalidated.
type Answer struct {
	Text      string   `json:"text"`
	Bullets   []string `json:"bullets"`
	Citations []string `json:"citations"`
}

// Answerer generates an answer to a query from a grounding context.
type Answerer interface {
	Answer(ctx context.Context, query, groundingContext string) (*Answer, error)
}
