package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"
)

var _ FeedReader = (*GofeedReader)(nil)

const feedFetchTimeout = 30 * time.Second

// GofeedReader fetches feed XML over HTTP and parses it with gofeed.
// Fetches are throttled per host so bursts against one publisher stay
// polite even when several of its feeds are configured.
type GofeedReader struct {
	httpClient *http.Client
	parser     *gofeed.Parser
	userAgent  string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewGofeedReader(httpClient *http.Client, userAgent string) *GofeedReader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: feedFetchTimeout}
	}
	return &GofeedReader{
		httpClient: httpClient,
		parser:     gofeed.NewParser(),
		userAgent:  userAgent,
		limiters:   make(map[string]*rate.Limiter),
	}
}

func (r *GofeedReader) Fetch(ctx context.Context, feedURL string) ([]FeedItem, error) {
	if err := r.limiter(feedURL).Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, feedFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	feed, err := r.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]FeedItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || item.Link == "" {
			continue
		}

		fi := FeedItem{
			Title:   item.Title,
			Link:    item.Link,
			Content: item.Content,
		}
		if fi.Content == "" {
			fi.Content = item.Description
		}
		if item.PublishedParsed != nil {
			fi.PublishedAt = *item.PublishedParsed
		}

		items = append(items, fi)
	}

	return items, nil
}

// limiter returns the per-host limiter, 1 request/sec with a small burst.
func (r *GofeedReader) limiter(feedURL string) *rate.Limiter {
	host := ""
	if u, err := url.Parse(feedURL); err == nil {
		host = u.Host
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(1), 3)
		r.limiters[host] = l
	}
	return l
}
