package sources

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultTTL controls how long a loaded source list is served before the
// file is re-read.
const DefaultTTL = 10 * time.Minute

// defaultSources is the hard fallback used when the sources file cannot
// be loaded. The service keeps ingesting from these rather than failing
// the cycle.
var defaultSources = []Source{
	{URL: "https://www.insurancejournal.com/rss/news/national.xml", Category: "industry", Priority: 1, Enabled: true, Credibility: 1.0},
	{URL: "https://www.claimsjournal.com/rss/news.xml", Category: "claims", Priority: 2, Enabled: true, Credibility: 0.95},
	{URL: "https://feeds.reuters.com/reuters/businessNews", Category: "business", Priority: 2, Enabled: true, Credibility: 1.1},
	{URL: "https://www.artemis.bm/feed/", Category: "reinsurance", Priority: 3, Enabled: true, Credibility: 0.9},
}

type ConfigCache struct {
	sourcesFile string
	ttl         time.Duration
	mu          sync.RWMutex
	cache       []Source
	loadedAt    time.Time
}

func NewConfigCache(sourcesFile string, ttl time.Duration) *ConfigCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ConfigCache{
		sourcesFile: sourcesFile,
		ttl:         ttl,
	}
}

// GetSources returns the cached source list, re-reading the file once the
// TTL has elapsed. A load failure falls back to the built-in default set.
func (cc *ConfigCache) GetSources() []Source {
	cc.mu.RLock()
	if cc.cache != nil && time.Since(cc.loadedAt) < cc.ttl {
		defer cc.mu.RUnlock()
		return cc.cache
	}
	cc.mu.RUnlock()

	cc.mu.Lock()
	defer cc.mu.Unlock()

	if cc.cache != nil && time.Since(cc.loadedAt) < cc.ttl {
		return cc.cache
	}

	loaded, err := cc.load()
	if err != nil {
		slog.Warn("Failed to load sources file, using default source set", "file", cc.sourcesFile, "error", err)
		loaded = defaultSources
	}

	cc.cache = loaded
	cc.loadedAt = time.Now()

	return cc.cache
}

// GetEnabledSources returns only sources marked enabled, ordered as listed.
func (cc *ConfigCache) GetEnabledSources() []Source {
	all := cc.GetSources()

	enabled := make([]Source, 0, len(all))
	for _, s := range all {
		if s.Enabled {
			enabled = append(enabled, s)
		}
	}
	return enabled
}

func (cc *ConfigCache) GetSourceCount() int {
	return len(cc.GetSources())
}

func (cc *ConfigCache) load() ([]Source, error) {
	data, err := os.ReadFile(cc.sourcesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(f.Sources) == 0 {
		return nil, fmt.Errorf("no sources defined in %s", cc.sourcesFile)
	}

	for i := range f.Sources {
		if err := validateSource(&f.Sources[i]); err != nil {
			return nil, fmt.Errorf("invalid source at index %d: %w", i, err)
		}
	}

	return f.Sources, nil
}

func validateSource(s *Source) error {
	if s.URL == "" {
		return fmt.Errorf("source URL is required")
	}
	if s.Priority < 0 {
		return fmt.Errorf("priority must be non-negative")
	}
	if s.Credibility == 0 {
		s.Credibility = 1.0
	}
	if s.Credibility < 0.7 {
		s.Credibility = 0.7
	}
	if s.Credibility > 1.1 {
		s.Credibility = 1.1
	}
	return nil
}
