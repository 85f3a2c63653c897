package catalog

import (
	"regexp"
	"strings"
)

// termSplitRe is the single source of truth for free-text term splitting.
// Theme-map cells mix ASCII commas, fullwidth commas/semicolons, the
// ideographic comma, pipes and stray whitespace; every consumer (typed
// rows, legacy rows, the term dictionary) must tokenize identically or
// term identity breaks between map-based and fallback-based matching.
var termSplitRe = regexp.MustCompile(`[,\x{FF0C};\x{FF1B}\x{3001}|\s]+`)

// SplitTerms tokenizes a raw term cell into trimmed, non-empty terms.
func SplitTerms(raw string) []string {
	parts := termSplitRe.Split(raw, -1)
	terms := make([]string, 0, len(parts))
	for _, part := range parts {
		term := strings.TrimSpace(part)
		if term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}
