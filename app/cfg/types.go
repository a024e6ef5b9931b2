package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Redis configuration
	RedisURL string

	// Application configuration
	SourcesFile      string
	Port             string
	AllowedOrigins   []string
	WorkerCount      int
	CycleInterval    int
	BatchSize        int
	ExtractRetries   int
	ExtractRetryWait int
	MinContentLength int
	DedupEmbedWindow int
	RateLimitPerHour int

	// External collaborators
	SummarizerURL string
	EmbedderURL   string
	ClassifierURL string
	AIAccessKey   string
	EmbeddingDims int

	// Application metadata
	UserAgent string
	Debug     bool
	Version   string
}
