package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeURL produces the canonical dedup key for an article URL:
// scheme and tracking parameters stripped, host and path lower-cased,
// trailing slash removed.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSpace(rawURL))
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")

	path := strings.ToLower(strings.TrimSuffix(u.Path, "/"))

	return host + path
}

// Domain extracts the registrable host from a URL, lower-cased and
// without the www prefix.
func Domain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

// ArticleID derives the stable article identifier from the canonical URL.
// Re-ingesting the same URL always yields the same ID.
func ArticleID(canonicalURL string) string {
	hash := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(hash[:16])
}

// ContentHash fingerprints an article by title and canonical URL.
func ContentHash(title, canonicalURL string) string {
	content := fmt.Sprintf("%s|%s", NormalizeTitle(title), canonicalURL)
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// TitleHash fingerprints the normalized title alone, used by the
// domain+title strategy.
func TitleHash(title string) string {
	hash := sha256.Sum256([]byte(NormalizeTitle(title)))
	return hex.EncodeToString(hash[:])
}

var titleNormalizer = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// NormalizeTitle lower-cases a title, strips diacritics and collapses
// whitespace so fuzzy comparison is stable across source styling.
func NormalizeTitle(title string) string {
	normalized, _, err := transform.String(titleNormalizer, title)
	if err != nil {
		normalized = title
	}

	var b strings.Builder
	b.Grow(len(normalized))
	for _, r := range strings.ToLower(normalized) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// TitleSimilarity returns normalized edit-distance similarity between two
// titles in [0,1].
func TitleSimilarity(a, b string) float64 {
	na, nb := NormalizeTitle(a), NormalizeTitle(b)
	return EditSimilarity(na, nb)
}

// EditSimilarity is 1 − levenshtein(a,b)/max(len(a),len(b)).
func EditSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	dist := levenshtein([]rune(a), []rune(b))
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}

	return 1.0 - float64(dist)/float64(maxLen)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// CosineSimilarity computes the normalized dot product of two vectors.
// Mismatched or zero-length vectors yield 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
