package score

import (
	"math"
	"regexp"
	"strings"
	"time"
)

// Feature weights. They sum to 1.0; the final score is the weighted sum
// scaled to [0,100].
const (
	weightRecency         = 0.15
	weightPCRelevance     = 0.30
	weightCredibility     = 0.10
	weightEntitySalience  = 0.15
	weightMagnitude       = 0.10
	weightNovelty         = 0.10
	weightEngagementPrior = 0.10

	recencyHalfLife = 48 * time.Hour

	// DefaultNovelty is assigned at ingestion time; the retrieval
	// engine's diversity pass overwrites it at query time.
	DefaultNovelty = 0.5

	entitySalienceCap = 5
	magnitudeCap      = 3
)

// majorEntities are the carrier, reinsurer and regulator names whose
// presence in text signals industry salience.
var majorEntities = []string{
	"state farm", "allstate", "progressive", "geico", "liberty mutual",
	"travelers", "chubb", "aig", "hartford", "nationwide", "usaa",
	"berkshire hathaway", "zurich", "axa", "allianz",
	"swiss re", "munich re", "hannover re", "scor", "lloyd's",
	"naic", "fema", "citizens property", "oir", "doi", "treasury",
}

var (
	currencyPattern = regexp.MustCompile(`\$[\d,]+(?:\.\d+)?\s*(?:billion|million|thousand|bn|mm|m|b|k)?`)
	percentPattern  = regexp.MustCompile(`\d+(?:\.\d+)?\s*(?:%|percent|basis points|bps)`)
	ratioPattern    = regexp.MustCompile(`\d+(?:\.\d+)?\s*(?:combined ratio|loss ratio|to \d)`)
)

var actionVerbs = []string{
	"surges", "plunges", "slams", "files", "acquires", "launches",
	"approves", "denies", "raises", "cuts", "warns", "downgrades",
	"upgrades", "sues", "settles", "exits", "expands",
}

// Input carries everything the calculator needs; all fields are already
// validated upstream.
type Input struct {
	Title             string
	Text              string
	PublishedAt       time.Time
	PCRelevance       float64 // classifier output, clamped to [0,1]
	SourceCredibility float64 // static multiplier in [0.7, 1.1]
}

// Result is the computed score with its feature breakdown.
type Result struct {
	SmartScore int
	Features   map[string]float64
}

type Calculator struct {
	now func() time.Time
}

func NewCalculator() *Calculator {
	return &Calculator{now: time.Now}
}

// Score computes the bounded relevance score from content and metadata.
// The score is a ranking signal only; ties are acceptable.
func (c *Calculator) Score(in Input) Result {
	features := map[string]float64{
		"recency":           c.recency(in.PublishedAt),
		"pcRelevance":       clamp01(in.PCRelevance),
		"sourceCredibility": credibility(in.SourceCredibility),
		"entitySalience":    entitySalience(in.Title, in.Text),
		"magnitude":         magnitude(in.Text),
		"novelty":           DefaultNovelty,
		"engagementPrior":   engagementPrior(in.Title),
	}

	weighted := weightRecency*features["recency"] +
		weightPCRelevance*features["pcRelevance"] +
		weightCredibility*features["sourceCredibility"] +
		weightEntitySalience*features["entitySalience"] +
		weightMagnitude*features["magnitude"] +
		weightNovelty*features["novelty"] +
		weightEngagementPrior*features["engagementPrior"]

	score := int(math.Round(100 * weighted))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return Result{SmartScore: score, Features: features}
}

// recency decays exponentially with article age, half-life 48 hours.
func (c *Calculator) recency(publishedAt time.Time) float64 {
	if publishedAt.IsZero() {
		return 0
	}

	age := c.now().Sub(publishedAt)
	if age < 0 {
		age = 0
	}

	return math.Pow(0.5, age.Hours()/recencyHalfLife.Hours())
}

// credibility maps the [0.7, 1.1] source multiplier onto [0,1].
func credibility(multiplier float64) float64 {
	if multiplier < 0.7 {
		multiplier = 0.7
	}
	if multiplier > 1.1 {
		multiplier = 1.1
	}
	return (multiplier - 0.7) / 0.4
}

func entitySalience(title, text string) float64 {
	haystack := strings.ToLower(title + " " + text)

	matches := 0
	for _, entity := range majorEntities {
		if strings.Contains(haystack, entity) {
			matches++
			if matches >= entitySalienceCap {
				break
			}
		}
	}

	return float64(matches) / float64(entitySalienceCap)
}

// magnitude measures the density of concrete financial figures in text.
func magnitude(text string) float64 {
	lower := strings.ToLower(text)

	matches := len(currencyPattern.FindAllString(lower, magnitudeCap)) +
		len(percentPattern.FindAllString(lower, magnitudeCap)) +
		len(ratioPattern.FindAllString(lower, magnitudeCap))

	if matches > magnitudeCap {
		matches = magnitudeCap
	}

	return float64(matches) / float64(magnitudeCap)
}

// engagementPrior is a title-quality heuristic: headline length in the
// optimal window plus presence of action verbs or major entity names.
func engagementPrior(title string) float64 {
	prior := 0.0

	length := len(title)
	if length >= 40 && length <= 90 {
		prior += 0.5
	} else if length >= 25 && length < 40 {
		prior += 0.3
	}

	lower := strings.ToLower(title)
	for _, verb := range actionVerbs {
		if strings.Contains(lower, verb) {
			prior += 0.3
			break
		}
	}

	for _, entity := range majorEntities {
		if strings.Contains(lower, entity) {
			prior += 0.2
			break
		}
	}

	return clamp01(prior)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
