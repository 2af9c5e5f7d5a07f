package advisory

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var whitespace = regexp.MustCompile(`\s+`)

// ContentHasher derives cache keys from route summaries so that trips with
// the same conditions share one advisory
type ContentHasher struct{}

// NewContentHasher creates a new content hasher
func NewContentHasher() *ContentHasher {
	return &ContentHasher{}
}

// HashSummary creates a content hash for a summary. Distances are bucketed
// to whole kilometres and hazards are order-independent, so small geometry
// changes between snapshots do not defeat the cache.
func (h *ContentHasher) HashSummary(s RouteSummary) string {
	hazards := make([]string, len(s.Hazards))
	for i, hz := range s.Hazards {
		hazards[i] = h.normalizeText(hz.Name) + "/" + h.normalizeText(hz.Condition)
	}
	sort.Strings(hazards)

	signature := fmt.Sprintf("%s|%s|%s|%d|%d|%d|%.0f|%t|%s",
		h.normalizeText(s.Origin),
		h.normalizeText(s.Destination),
		s.Rating,
		s.HazardCount,
		s.CautionCount,
		s.SafeCount,
		s.DistanceKm,
		s.Degraded,
		strings.Join(hazards, ";"),
	)

	hash := sha256.Sum256([]byte(signature))
	return fmt.Sprintf("%x", hash)
}

// normalizeText cleans text for consistent hashing
func (h *ContentHasher) normalizeText(text string) string {
	normalized := strings.ToLower(text)
	normalized = whitespace.ReplaceAllString(normalized, " ")

	replacements := map[string]string{
		"hwy": "highway",
		"sr-": "state route ",
	}
	for abbrev, full := range replacements {
		normalized = strings.ReplaceAll(normalized, abbrev, full)
	}

	return strings.TrimSpace(normalized)
}
