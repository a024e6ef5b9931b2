package ingest

import (
	"regexp"
	"strings"
)

// Keyword heuristics over title+body. These flag the article for the
// retrieval engine's promotion pass; precision matters more than recall
// since promotion is a 1.5x multiplier, not a filter.
var regulatoryKeywords = []string{
	"regulator", "regulation", "regulatory", "commissioner", "naic",
	"rate filing", "rate approval", "consent order", "market conduct",
	"legislation", "statute", "rulemaking", "compliance", "doi ",
	"department of insurance", "insurance department", "attorney general",
}

var catastropheKeywords = []string{
	"hurricane", "tropical storm", "tornado", "wildfire", "earthquake",
	"flood", "hailstorm", "catastrophe", "cat loss", "storm surge",
	"landfall", "winter storm", "derecho", "severe convective",
}

var stormNamePattern = regexp.MustCompile(`(?i)(?:hurricane|tropical storm)\s+([A-Z][a-z]+)`)

// DetectSignals scans title and body for regulatory and catastrophe
// markers, extracting a storm name when one is present.
func DetectSignals(title, text string) Signals {
	haystack := strings.ToLower(title + " " + text)

	var s Signals

	for _, kw := range regulatoryKeywords {
		if strings.Contains(haystack, kw) {
			s.Regulatory = true
			break
		}
	}

	for _, kw := range catastropheKeywords {
		if strings.Contains(haystack, kw) {
			s.Catastrophe = true
			break
		}
	}

	if s.Catastrophe {
		if m := stormNamePattern.FindStringSubmatch(title + " " + text); len(m) == 2 {
			s.StormName = m[1]
		}
	}

	return s
}

// ContainsRegulatoryTerms reports whether a query mentions regulation.
// Shared with the retrieval engine's promotion step.
func ContainsRegulatoryTerms(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range regulatoryKeywords {
		if strings.Contains(lower, strings.TrimSpace(kw)) {
			return true
		}
	}
	return false
}

// ContainsCatastropheTerms reports whether a query mentions catastrophe
// perils.
func ContainsCatastropheTerms(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range catastropheKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
