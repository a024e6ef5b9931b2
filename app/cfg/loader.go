package cfg

import (
	"cmp"
	"fmt"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./newslens.db" description:"Path to the SQLite database file"`

	// Redis configuration
	RedisURL string `long:"redis-url" env:"REDIS_URL" default:"redis://localhost:6379" description:"Redis URL for idempotency, rate-limit and cache records"`

	// Application configuration
	SourcesFile      string   `long:"sources-file" env:"SOURCES_FILE" default:"./sources.yml" description:"YAML file listing feed sources"`
	Port             string   `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	AllowedOrigins   []string `long:"allowed-origin" env:"ALLOWED_ORIGINS" env-delim:"," description:"Origins allowed to call the API"`
	WorkerCount      int      `long:"worker-count" env:"WORKER_COUNT" default:"3" description:"Number of background workers for task processing"`
	CycleInterval    int      `long:"cycle-interval" env:"CYCLE_INTERVAL" default:"3600" description:"Ingestion cycle interval in seconds"`
	BatchSize        int      `long:"batch-size" env:"BATCH_SIZE" default:"50" description:"Maximum articles processed per source per cycle"`
	ExtractRetries   int      `long:"extract-retries" env:"EXTRACT_RETRIES" default:"3" description:"Content extraction attempts per article"`
	ExtractRetryWait int      `long:"extract-retry-wait" env:"EXTRACT_RETRY_WAIT" default:"5" description:"Delay between extraction attempts in seconds"`
	MinContentLength int      `long:"min-content-length" env:"MIN_CONTENT_LENGTH" default:"100" description:"Minimum extracted content length in characters"`
	DedupEmbedWindow int      `long:"dedup-embed-window" env:"DEDUP_EMBED_WINDOW" default:"100" description:"Recent embeddings compared during semantic dedup"`
	RateLimitPerHour int      `long:"rate-limit" env:"RATE_LIMIT_PER_HOUR" default:"20" description:"Query requests allowed per caller per hour"`

	// External collaborators
	SummarizerURL string `long:"summarizer-url" env:"SUMMARIZER_URL" default:"http://localhost:9090/v1/summarize" description:"AI summarization service URL"`
	EmbedderURL   string `long:"embedder-url" env:"EMBEDDER_URL" default:"http://localhost:9090/v1/embed" description:"Embedding service URL"`
	ClassifierURL string `long:"classifier-url" env:"CLASSIFIER_URL" default:"http://localhost:9090/v1/classify" description:"Relevance classifier service URL"`
	AIAccessKey   string `long:"ai-access-key" env:"AI_ACCESS_KEY" description:"Bearer token for AI collaborator services"`
	EmbeddingDims int    `long:"embedding-dims" env:"EMBEDDING_DIMS" default:"768" description:"Expected embedding vector dimensionality"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"NewsLens/1.0" description:"User agent string for HTTP requests"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:           raw.DBPath,
		RedisURL:         raw.RedisURL,
		SourcesFile:      raw.SourcesFile,
		Port:             raw.Port,
		AllowedOrigins:   raw.AllowedOrigins,
		WorkerCount:      raw.WorkerCount,
		CycleInterval:    raw.CycleInterval,
		BatchSize:        raw.BatchSize,
		ExtractRetries:   raw.ExtractRetries,
		ExtractRetryWait: raw.ExtractRetryWait,
		MinContentLength: raw.MinContentLength,
		DedupEmbedWindow: raw.DedupEmbedWindow,
		RateLimitPerHour: raw.RateLimitPerHour,
		SummarizerURL:    raw.SummarizerURL,
		EmbedderURL:      raw.EmbedderURL,
		ClassifierURL:    raw.ClassifierURL,
		AIAccessKey:      raw.AIAccessKey,
		EmbeddingDims:    raw.EmbeddingDims,
		UserAgent:        raw.UserAgent,
		Debug:            raw.Debug,
		Version:          GetVersion(),
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set replaces the global configuration. Intended for tests.
func Set(c *Cfg) {
	globalCfg = c
}
