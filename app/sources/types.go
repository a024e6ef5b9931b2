package sources

// Source describes a single RSS feed source. Immutable for the duration
// of an ingestion cycle.
type Source struct {
	URL         string  `yaml:"url"`
	Category    string  `yaml:"category"`
	Priority    int     `yaml:"priority"`
	Enabled     bool    `yaml:"enabled"`
	Credibility float64 `yaml:"credibility"` // static multiplier in [0.7, 1.1]
}

// ID returns the stable identity of a source, which is its URL.
func (s Source) ID() string {
	return s.URL
}

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}
