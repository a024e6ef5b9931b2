package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability"
)

var _ Extractor = (*ReadabilityExtractor)(nil)

const extractFetchTimeout = 15 * time.Second

// ReadabilityExtractor fetches an article page and runs readability over
// the HTML to recover title, text and author.
type ReadabilityExtractor struct {
	httpClient *http.Client
	userAgent  string
}

func NewReadabilityExtractor(httpClient *http.Client, userAgent string) *ReadabilityExtractor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: extractFetchTimeout}
	}
	return &ReadabilityExtractor{
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

func (e *ReadabilityExtractor) Extract(ctx context.Context, articleURL string) (*ExtractedContent, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, extractFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, articleURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	pageURL, _ := url.Parse(articleURL)

	article, err := readability.FromReader(strings.NewReader(string(data)), pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract content: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return nil, fmt.Errorf("no content extracted from %s", articleURL)
	}

	return &ExtractedContent{
		Title:  article.Title,
		Text:   text,
		HTML:   article.Content,
		Author: article.Byline,
	}, nil
}
