package contextmgr

import "strings"

// lexicalOverlap scores content against the query by the fraction of query
// terms present. The fallback ranking when embeddings are unavailable.
func lexicalOverlap(query, content string) float64 {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	matches := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			matches++
		}
	}
	return float64(matches) / float64(len(terms))
}
