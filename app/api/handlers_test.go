package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/newslens/newslens/app/breaker"
	"github.com/newslens/newslens/app/database"
	"github.com/newslens/newslens/app/health"
	"github.com/newslens/newslens/app/ingest"
	"github.com/newslens/newslens/app/retrieve"
)

type stubEngine struct {
	result *retrieve.Result
	err    error
	gotQ   string
}

func (s *stubEngine) Answer(_ context.Context, query string) (*retrieve.Result, error) {
	s.gotQ = query
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubRunner struct {
	summary *ingest.CycleSummary
}

func (s *stubRunner) RunCycle(_ context.Context) *ingest.CycleSummary {
	return s.summary
}

func (s *stubRunner) Config() ingest.BatchConfig {
	return ingest.BatchConfig{BatchSize: 50, ExtractRetries: 3, ExtractRetryWait: 5, MinContentLength: 100}
}

type stubLimiter struct {
	allowed bool
	err     error
	calls   int
}

func (s *stubLimiter) Allow(_ context.Context, _ string, _ int, _ time.Duration) (bool, error) {
	s.calls++
	return s.allowed, s.err
}

type stubCounts struct {
	articles int
	events   int
}

func (s stubCounts) GetArticle(_ context.Context, _ string) (*database.Article, error) {
	return nil, nil
}

func (s stubCounts) ArticleExists(_ context.Context, _ string) (bool, error) { return false, nil }

func (s stubCounts) GetArticleByContentHash(_ context.Context, _ string) (*database.Article, error) {
	return nil, nil
}

func (s stubCounts) GetArticleByDomainTitleHash(_ context.Context, _, _ string) (*database.Article, error) {
	return nil, nil
}

func (s stubCounts) GetRecentArticles(_ context.Context, _ time.Time, _ int) ([]database.Article, error) {
	return nil, nil
}

func (s stubCounts) GetUnclusteredArticles(_ context.Context, _ time.Time, _ int) ([]database.Article, error) {
	return nil, nil
}

func (s stubCounts) GetArticleCount(_ context.Context) (int, error) { return s.articles, nil }

func (s stubCounts) UpsertArticle(_ context.Context, _ database.Article) error { return nil }

func (s stubCounts) SetArticleCluster(_ context.Context, _, _ string) error { return nil }

func (s stubCounts) UpdateReachability(_ context.Context, _ string, _ bool, _ time.Time) error {
	return nil
}

func (s stubCounts) GetEvent(_ context.Context, _ string) (*database.Event, error) { return nil, nil }

func (s stubCounts) GetEventCount(_ context.Context) (int, error) { return s.events, nil }

func (s stubCounts) UpsertEvent(_ context.Context, _ database.Event) error { return nil }

func (s stubCounts) AddEventMember(_ context.Context, _, _ string) error { return nil }

type stubSummaries struct {
	payload []byte
}

func (s *stubSummaries) SetLatestCycleSummary(_ context.Context, payload []byte) error {
	s.payload = payload
	return nil
}

func (s *stubSummaries) GetLatestCycleSummary(_ context.Context) ([]byte, error) {
	return s.payload, nil
}

type serverFixture struct {
	engine  *stubEngine
	limiter *stubLimiter
	tracker *health.Tracker
	router  http.Handler
}

func newFixture(origins []string) *serverFixture {
	f := &serverFixture{
		engine:  &stubEngine{result: &retrieve.Result{AnswerText: "answer"}},
		limiter: &stubLimiter{allowed: true},
		tracker: health.NewTracker(),
	}

	handler := NewHandler(f.engine,
		&stubRunner{summary: &ingest.CycleSummary{BatchID: "batch-1", Processed: 2, Skipped: 1}},
		f.tracker,
		breaker.NewRegistry(5, 5*time.Minute),
		stubCounts{articles: 12, events: 3},
		stubCounts{articles: 12, events: 3},
		f.limiter,
		&stubSummaries{},
		20)

	f.router = NewServer(handler, origins)
	return f
}

func TestQueryReturnsAnswer(t *testing.T) {
	f := newFixture(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/query?q=hurricane+losses", nil)
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var got retrieve.Result
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got.AnswerText != "answer" {
		t.Errorf("Expected answer text, got %q", got.AnswerText)
	}
	if f.engine.gotQ != "hurricane losses" {
		t.Errorf("Expected engine to receive query, got %q", f.engine.gotQ)
	}
}

func TestQueryPostBody(t *testing.T) {
	f := newFixture(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/query",
		strings.NewReader(`{"q": "florida rate filing"}`))
	req.Header.Set("Content-Type", "application/json")
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if f.engine.gotQ != "florida rate filing" {
		t.Errorf("Expected engine to receive body query, got %q", f.engine.gotQ)
	}
}

func TestQueryStripsHTML(t *testing.T) {
	f := newFixture(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/api/query?q=%3Cb%3Ehurricane%3C%2Fb%3E%20%3Cscript%3Ealert(1)%3C%2Fscript%3Elosses", nil)
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if strings.Contains(f.engine.gotQ, "<") {
		t.Errorf("Expected markup stripped, engine got %q", f.engine.gotQ)
	}
}

func TestQueryLengthValidation(t *testing.T) {
	tests := []struct {
		name string
		q    string
		want int
	}{
		{"too short", "ab", http.StatusBadRequest},
		{"empty", "", http.StatusBadRequest},
		{"tags only", "%3Cp%3E%3C%2Fp%3E", http.StatusBadRequest},
		{"too long", strings.Repeat("a", 501), http.StatusBadRequest},
		{"minimum length", "abc", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/query?q="+tt.q, nil)
			f.router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, w.Code)
			}

			if tt.want == http.StatusBadRequest {
				var envelope ErrorResponse
				if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
					t.Fatalf("Failed to decode error envelope: %v", err)
				}
				if envelope.Code != http.StatusBadRequest {
					t.Errorf("Expected code 400 in envelope, got %d", envelope.Code)
				}
				if envelope.Timestamp.IsZero() {
					t.Error("Expected timestamp in envelope")
				}
			}
		})
	}
}

func TestQueryRateLimited(t *testing.T) {
	f := newFixture(nil)
	f.limiter.allowed = false

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/query?q=hurricane", nil)
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", w.Code)
	}
}

func TestQueryAdmitsWhenLimiterDown(t *testing.T) {
	f := newFixture(nil)
	f.limiter.allowed = false
	f.limiter.err = errors.New("connection refused")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/query?q=hurricane", nil)
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 when limiter store is down, got %d", w.Code)
	}
}

func TestQueryEngineFailure(t *testing.T) {
	f := newFixture(nil)
	f.engine.err = errors.New("embedding dimension mismatch")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/query?q=hurricane", nil)
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
}

func TestOriginAllowList(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		want   int
	}{
		{"allowed origin", "https://app.newslens.io", http.StatusOK},
		{"disallowed origin", "https://evil.example.com", http.StatusForbidden},
		{"no origin header", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture([]string{"https://app.newslens.io"})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/query?q=hurricane", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			f.router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestIngestRequiresOrigin(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		want    int
	}{
		{"no origin header", []string{"https://app.newslens.io"}, "", http.StatusForbidden},
		{"disallowed origin", []string{"https://app.newslens.io"}, "https://evil.example.com", http.StatusForbidden},
		{"allowed origin", []string{"https://app.newslens.io"}, "https://app.newslens.io", http.StatusOK},
		{"no origin header, empty allow-list", nil, "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.origins)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/ingest", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			f.router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestIngestReturnsSummaryAndConfig(t *testing.T) {
	f := newFixture(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var got struct {
		Summary ingest.CycleSummary `json:"summary"`
		Config  ingest.BatchConfig  `json:"config"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got.Summary.BatchID != "batch-1" {
		t.Errorf("Expected batch-1, got %s", got.Summary.BatchID)
	}
	if got.Config.BatchSize != 50 {
		t.Errorf("Expected batch size 50, got %d", got.Config.BatchSize)
	}
}

func TestHealthCheckReportsSources(t *testing.T) {
	f := newFixture(nil)
	f.tracker.RecordSuccess("https://example.com/feed.xml")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var got struct {
		Status  string                `json:"status"`
		Sources []health.SourceHealth `json:"sources"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(got.Sources) != 1 {
		t.Fatalf("Expected 1 source, got %d", len(got.Sources))
	}
	if got.Sources[0].Status != health.StatusHealthy {
		t.Errorf("Expected HEALTHY, got %s", got.Sources[0].Status)
	}
}

func TestHealthCheckDegraded(t *testing.T) {
	f := newFixture(nil)
	f.tracker.RecordFailure("https://example.com/feed.xml", errors.New("timeout"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 for unhealthy source, got %d", w.Code)
	}
}

func TestGetStats(t *testing.T) {
	f := newFixture(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var got map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["articles"].(float64) != 12 {
		t.Errorf("Expected 12 articles, got %v", got["articles"])
	}
	if got["events"].(float64) != 3 {
		t.Errorf("Expected 3 events, got %v", got["events"])
	}
}
