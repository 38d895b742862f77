package memory

import (
	"strings"
)

// splitTerms lower-cases and splits a query into the crude bag-of-words
// used by termOverlap. Mirrors storage's in-memory BM25 stand-in so the
// temporal query path scores candidates the same way the default path
// does when running against the in-memory store.
func splitTerms(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

func termOverlap(terms []string, content string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	hits := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

// recencyDecay mirrors storage's recency normalisation (30-day half-life,
// as 1/(1+age/halfLife)) so the temporal query path weights freshness the
// same way the default path does.
func recencyDecay(ageDays float64) float64 {
	if ageDays < 0 {
		ageDays = 0
	}
	const halfLifeDays = 30.0
	return 1.0 / (1.0 + ageDays/halfLifeDays)
}
