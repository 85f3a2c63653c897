package selection

import (
	"sort"

	"github.com/ashare-lab/screener/internal/contracts"
	"github.com/ashare-lab/screener/pkg/logger"
)

// Result is the selection outcome.
type Result struct {
	Rows []contracts.ScoredRow

	// FallbackUsed is set when the primary theme-ranked picks could not
	// fill top-N and the remainder came from technical-score ordering.
	FallbackUsed bool
}

// Selector picks the top-N scored rows.
type Selector struct {
	logger *logger.Logger
}

// NewSelector creates a selector.
func NewSelector(log *logger.Logger) *Selector {
	return &Selector{logger: log}
}

// TopN returns the top-N rows by final score descending, tie-broken by
// input order (stable). A shortfall against a universe that could fill N
// is topped up from the unselected rows by technical score descending
// and flagged.
func (s *Selector) TopN(rows []contracts.ScoredRow, topN int) *Result {
	if topN <= 0 || len(rows) == 0 {
		return &Result{}
	}

	primary := make([]contracts.ScoredRow, len(rows))
	copy(primary, rows)
	sort.SliceStable(primary, func(i, j int) bool {
		return primary[i].FinalScore > primary[j].FinalScore
	})

	selected := primary
	if len(selected) > topN {
		selected = selected[:topN]
	}

	result := &Result{Rows: selected}

	if len(selected) < topN && len(rows) >= topN {
		chosen := make(map[string]bool, len(selected))
		for _, row := range selected {
			chosen[row.Ticker] = true
		}

		var remaining []contracts.ScoredRow
		for _, row := range rows {
			if !chosen[row.Ticker] {
				remaining = append(remaining, row)
			}
		}
		sort.SliceStable(remaining, func(i, j int) bool {
			return remaining[i].TechnicalScore() > remaining[j].TechnicalScore()
		})

		need := topN - len(selected)
		if need > len(remaining) {
			need = len(remaining)
		}
		result.Rows = append(result.Rows, remaining[:need]...)
		result.FallbackUsed = true

		s.logger.WithFields(map[string]interface{}{
			"primary": len(selected),
			"filled":  need,
			"top_n":   topN,
		}).Warn("Theme selection insufficient, filled from technical ranking")
	}

	return result
}
