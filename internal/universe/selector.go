package universe

import (
	"sort"

	"github.com/ashare-lab/screener/internal/contracts"
	"github.com/ashare-lab/screener/pkg/logger"
)

// Result is the outcome of candidate selection.
type Result struct {
	Candidates []string
	Source     string // contracts.CandidateSourceTheme or CandidateSourceUniverse

	// StripAttribution is set on universe fallback: concept/industry/
	// description labels must not survive into indicator rows, or
	// downstream keyword matching would attribute themes to tickers that
	// were never theme-selected.
	StripAttribution bool

	// Diagnostics only.
	NPricesTickers       int
	NMembershipTickers   int
	NCandidatesFromTheme int
	NCandidatesFinal     int
}

// Selector intersects mapped theme terms with snapshot membership.
type Selector struct {
	logger *logger.Logger
}

// NewSelector creates a selector.
func NewSelector(log *logger.Logger) *Selector {
	return &Selector{logger: log}
}

// Select returns the scoring universe: tickers whose concept or industry
// membership intersects the flattened mapped terms, or the whole price
// universe when that intersection is empty.
func (s *Selector) Select(
	terms []string,
	membership []contracts.StockInfo,
	priceTickers []string,
) *Result {
	termSet := make(map[string]bool, len(terms))
	for _, term := range terms {
		if term != "" {
			termSet[term] = true
		}
	}

	memberTickers := make(map[string]bool)
	themeTickers := make(map[string]bool)
	for _, row := range membership {
		ticker := contracts.NormalizeTicker(row.Ticker)
		if ticker == "" {
			continue
		}
		memberTickers[ticker] = true
		if termSet[row.Concept] || termSet[row.Industry] {
			themeTickers[ticker] = true
		}
	}

	priceSet := make(map[string]bool, len(priceTickers))
	for _, ticker := range priceTickers {
		priceSet[contracts.NormalizeTicker(ticker)] = true
	}

	result := &Result{
		NPricesTickers:       len(priceSet),
		NMembershipTickers:   len(memberTickers),
		NCandidatesFromTheme: len(themeTickers),
	}

	if len(themeTickers) == 0 {
		result.Candidates = sortedKeys(priceSet)
		result.Source = contracts.CandidateSourceUniverse
		result.StripAttribution = true
	} else {
		result.Candidates = sortedKeys(themeTickers)
		result.Source = contracts.CandidateSourceTheme
	}
	result.NCandidatesFinal = len(result.Candidates)

	s.logger.WithFields(map[string]interface{}{
		"prices_tickers":     result.NPricesTickers,
		"membership_tickers": result.NMembershipTickers,
		"from_theme":         result.NCandidatesFromTheme,
		"final":              result.NCandidatesFinal,
		"source":             result.Source,
	}).Info("Candidate selection completed")

	return result
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
