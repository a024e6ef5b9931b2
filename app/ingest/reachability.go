package ingest

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

var _ ReachabilityChecker = (*HeadChecker)(nil)

const reachabilityTimeout = 5 * time.Second

// HeadChecker probes article URLs with a HEAD request. The probe is
// best-effort: any failure only marks the article unreachable and never
// affects the committed article write.
type HeadChecker struct {
	httpClient *http.Client
	userAgent  string
}

func NewHeadChecker(httpClient *http.Client, userAgent string) *HeadChecker {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: reachabilityTimeout}
	}
	return &HeadChecker{httpClient: httpClient, userAgent: userAgent}
}

func (c *HeadChecker) Check(ctx context.Context, url string) bool {
	timeoutCtx, cancel := context.WithTimeout(ctx, reachabilityTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Debug("Reachability check failed", "url", url, "error", err)
		return false
	}
	resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 400
}
