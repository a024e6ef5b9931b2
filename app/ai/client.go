package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var _ Summarizer = (*Client)(nil)
var _ Embedder = (*Client)(nil)
var _ Classifier = (*Client)(nil)
var _ Answerer = (*Client)(nil)

// Client talks to the external AI services over HTTP JSON. Each call
// carries an explicit timeout; responses pass through a single validation
// step so downstream code can assume a well-formed shape.
type Client struct {
	summarizerURL string
	embedderURL   string
	classifierURL string
	apiKey        string
	dims          int
	httpClient    *http.Client
}

func NewClient(summarizerURL, embedderURL, classifierURL, apiKey string, dims int) *Client {
	return &Client{
		summarizerURL: summarizerURL,
		embedderURL:   embedderURL,
		classifierURL: classifierURL,
		apiKey:        apiKey,
		dims:          dims,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Dimensions() int {
	return c.dims
}

type rawSummary struct {
	Tags         []string `json:"tags"`
	Bullets      []string `json:"bullets"`
	WhyItMatters string   `json:"why_it_matters"`
	EventType    string   `json:"event_type"`
	StormName    string   `json:"storm_name"`
}

func (c *Client) Summarize(ctx context.Context, title, text string) (*Summary, error) {
	var raw rawSummary
	err := c.post(ctx, c.summarizerURL, map[string]string{
		"title": title,
		"text":  text,
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize: %w", err)
	}

	return cleanSummary(raw), nil
}

// cleanSummary normalizes the collaborator response: trims whitespace,
// drops empty entries and bullets that carry dangling citation markers,
// and upper-cases storm names to a canonical form.
func cleanSummary(raw rawSummary) *Summary {
	s := &Summary{
		WhyItMatters: strings.TrimSpace(raw.WhyItMatters),
		EventType:    strings.ToLower(strings.TrimSpace(raw.EventType)),
		StormName:    normalizeStormName(raw.StormName),
	}

	for _, tag := range raw.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			s.Tags = append(s.Tags, tag)
		}
	}

	for _, b := range raw.Bullets {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		if strings.Contains(b, "[citation") || strings.HasSuffix(b, "[") {
			continue
		}
		s.Bullets = append(s.Bullets, b)
	}

	return s
}

func normalizeStormName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = strings.TrimPrefix(strings.ToLower(name), "hurricane ")
	name = strings.TrimPrefix(name, "tropical storm ")
	return cases.Title(language.English).String(name)
}

type embedResponse struct {
	Vector []float64 `json:"vector"`
}

func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	var resp embedResponse
	err := c.post(ctx, c.embedderURL, map[string]string{"text": text}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to embed: %w", err)
	}

	if len(resp.Vector) != c.dims {
		return nil, fmt.Errorf("%w: expected %d dimensions, got %d",
			ErrDimensionMismatch, c.dims, len(resp.Vector))
	}

	return resp.Vector, nil
}

type classifyResponse struct {
	Relevance float64 `json:"relevance"`
}

func (c *Client) Relevance(ctx context.Context, title, text string) (float64, error) {
	var resp classifyResponse
	err := c.post(ctx, c.classifierURL, map[string]string{
		"title": title,
		"text":  text,
	}, &resp)
	if err != nil {
		return 0, fmt.Errorf("failed to classify: %w", err)
	}

	// Clamp the pass-through score; the classifier is external and its
	// output is not trusted to stay in range.
	if resp.Relevance < 0 {
		return 0, nil
	}
	if resp.Relevance > 1 {
		return 1, nil
	}

	return resp.Relevance, nil
}

func (c *Client) Answer(ctx context.Context, query, groundingContext string) (*Answer, error) {
	var resp Answer
	err := c.post(ctx, c.summarizerURL, map[string]string{
		"mode":    "answer",
		"query":   query,
		"context": groundingContext,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	resp.Text = strings.TrimSpace(resp.Text)

	bullets := resp.Bullets[:0]
	for _, b := range resp.Bullets {
		if b = strings.TrimSpace(b); b != "" {
			bullets = append(bullets, b)
		}
	}
	resp.Bullets = bullets

	return &resp, nil
}

func (c *Client) post(ctx context.Context, url string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
