package sources

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSourcesFile(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write sources file: %v", err)
	}
	return path
}

func TestConfigCache_LoadsSources(t *testing.T) {
	path := writeSourcesFile(t, `
sources:
  - url: https://example.com/feed.xml
    category: industry
    priority: 1
    enabled: true
    credibility: 1.0
  - url: https://example.org/rss
    category: claims
    priority: 2
    enabled: false
`)

	cc := NewConfigCache(path, time.Minute)

	all := cc.GetSources()
	if len(all) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(all))
	}

	enabled := cc.GetEnabledSources()
	if len(enabled) != 1 {
		t.Fatalf("Expected 1 enabled source, got %d", len(enabled))
	}
	if enabled[0].URL != "https://example.com/feed.xml" {
		t.Errorf("Unexpected enabled source: %s", enabled[0].URL)
	}
}

func TestConfigCache_FallsBackToDefaults(t *testing.T) {
	cc := NewConfigCache("/nonexistent/sources.yml", time.Minute)

	all := cc.GetSources()
	if len(all) != len(defaultSources) {
		t.Fatalf("Expected %d default sources, got %d", len(defaultSources), len(all))
	}
}

func TestConfigCache_CredibilityClamped(t *testing.T) {
	path := writeSourcesFile(t, `
sources:
  - url: https://low.example.com/feed
    enabled: true
    credibility: 0.2
  - url: https://high.example.com/feed
    enabled: true
    credibility: 2.5
  - url: https://unset.example.com/feed
    enabled: true
`)

	cc := NewConfigCache(path, time.Minute)
	all := cc.GetSources()

	if all[0].Credibility != 0.7 {
		t.Errorf("Expected credibility clamped to 0.7, got %f", all[0].Credibility)
	}
	if all[1].Credibility != 1.1 {
		t.Errorf("Expected credibility clamped to 1.1, got %f", all[1].Credibility)
	}
	if all[2].Credibility != 1.0 {
		t.Errorf("Expected default credibility 1.0, got %f", all[2].Credibility)
	}
}

func TestConfigCache_TTLReload(t *testing.T) {
	path := writeSourcesFile(t, `
sources:
  - url: https://example.com/feed.xml
    enabled: true
`)

	cc := NewConfigCache(path, 10*time.Millisecond)

	if got := len(cc.GetSources()); got != 1 {
		t.Fatalf("Expected 1 source, got %d", got)
	}

	err := os.WriteFile(path, []byte(`
sources:
  - url: https://example.com/feed.xml
    enabled: true
  - url: https://example.org/rss
    enabled: true
`), 0644)
	if err != nil {
		t.Fatalf("failed to rewrite sources file: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if got := len(cc.GetSources()); got != 2 {
		t.Errorf("Expected 2 sources after TTL reload, got %d", got)
	}
}
