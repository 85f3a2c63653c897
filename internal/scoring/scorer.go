package scoring

import (
	"strings"

	"github.com/ashare-lab/screener/internal/contracts"
	"github.com/ashare-lab/screener/pkg/logger"
)

// Scorer computes theme-hit scores and technical percentile scores and
// fuses them into the final score.
type Scorer struct {
	logger *logger.Logger
}

// NewScorer creates a scorer.
func NewScorer(log *logger.Logger) *Scorer {
	return &Scorer{logger: log}
}

// labeled is one (label type, value) pair of a ticker's attributes used
// by keyword matching.
type labeled struct {
	kind  string
	value string
}

// Score runs the two matching passes per signal, accumulates hit
// evidence, and produces scored rows in the input row order.
//
// Theme score per ticker sums the weights of all positive-weight signals
// with at least one hit for it; several match paths on the same signal
// never double-count its weight.
func (s *Scorer) Score(
	rows []contracts.IndicatorRow,
	signals []contracts.Signal,
	themeMap contracts.ThemeMap,
) ([]contracts.ScoredRow, contracts.HitMap) {
	// Ticker attribute labels for keyword matching. Order matters for
	// the per-keyword first-match rule: industry, concept, description.
	labelsByTicker := make(map[string][]labeled, len(rows))
	rowByTicker := make(map[string]*contracts.IndicatorRow, len(rows))
	for i := range rows {
		row := &rows[i]
		rowByTicker[row.Ticker] = row
		var labels []labeled
		for _, l := range []labeled{
			{"industry", row.Industry},
			{"concept", row.Concept},
			{"description", row.Description},
		} {
			if strings.TrimSpace(l.value) != "" {
				labels = append(labels, labeled{l.kind, l.value})
			}
		}
		labelsByTicker[row.Ticker] = labels
	}

	// details[ticker][signalID]
	details := make(map[string]map[string]*contracts.HitDetail)
	hitTickers := make(map[string]map[string]bool, len(signals))

	detail := func(ticker, signalID string) *contracts.HitDetail {
		bySignal, ok := details[ticker]
		if !ok {
			bySignal = make(map[string]*contracts.HitDetail)
			details[ticker] = bySignal
		}
		d, ok := bySignal[signalID]
		if !ok {
			d = contracts.NewHitDetail()
			bySignal[signalID] = d
		}
		return d
	}

	for _, signal := range signals {
		hitTickers[signal.ID] = make(map[string]bool)
		s.matchByMap(&signal, themeMap[signal.ID], rows, hitTickers[signal.ID], detail)
		s.matchByKeywords(&signal, labelsByTicker, hitTickers[signal.ID], detail)
	}

	scored := make([]contracts.ScoredRow, len(rows))
	for i := range rows {
		scored[i] = contracts.ScoredRow{IndicatorRow: rows[i]}
	}

	for _, signal := range signals {
		if signal.Weight <= 0 {
			continue
		}
		tickers := hitTickers[signal.ID]
		if len(tickers) == 0 {
			continue
		}
		for i := range scored {
			if tickers[scored[i].Ticker] {
				scored[i].ThemeScore += signal.Weight
			}
		}
	}

	m20 := make([]float64, len(scored))
	m60 := make([]float64, len(scored))
	vol := make([]float64, len(scored))
	for i := range scored {
		m20[i] = scored[i].Momentum20
		m60[i] = scored[i].Momentum60
		vol[i] = scored[i].AvgVolume20
	}
	m20Rank := percentileRanks(m20)
	m60Rank := percentileRanks(m60)
	volRank := percentileRanks(vol)

	for i := range scored {
		scored[i].Momentum20Rank = m20Rank[i]
		scored[i].Momentum60Rank = m60Rank[i]
		scored[i].VolumeRank = volRank[i]
		scored[i].FinalScore = scored[i].ThemeScore + scored[i].TechnicalScore()
	}

	hitMap := s.buildHitMap(signals, details)

	s.logger.WithFields(map[string]interface{}{
		"rows":        len(scored),
		"hit_tickers": len(hitMap),
		"signals":     len(signals),
	}).Info("Scoring completed")

	return scored, hitMap
}

// matchByMap applies the map-based pass: literal ticker membership, and
// verbatim concept/industry label membership. Industry entries record
// the concept match path.
func (s *Scorer) matchByMap(
	signal *contracts.Signal,
	entries []contracts.ThemeEntry,
	rows []contracts.IndicatorRow,
	hits map[string]bool,
	detail func(ticker, signalID string) *contracts.HitDetail,
) {
	for _, entry := range entries {
		values := make(map[string]bool, len(entry.Values))
		for _, v := range entry.Values {
			values[v] = true
		}

		for i := range rows {
			row := &rows[i]

			var matched bool
			var term, path string
			switch entry.Type {
			case contracts.MatchTicker:
				matched = values[row.Ticker]
				term = row.Ticker
				path = contracts.PathTicker
			case contracts.MatchConcept:
				matched = values[row.Concept]
				term = row.Concept
				path = contracts.PathConcept
			default:
				// Industry entries (and unknown types, as in the legacy
				// schema) match the industry label but count as concept
				// evidence.
				matched = values[row.Industry]
				term = row.Industry
				path = contracts.PathConcept
			}
			if !matched {
				continue
			}

			hits[row.Ticker] = true
			d := detail(row.Ticker, signal.ID)
			d.AddPath(path)
			d.AddTerm(term)
			d.AddSource(contracts.SourceMap)
		}
	}
}

// matchByKeywords applies the keyword pass: case-insensitive substring of
// each keyword against the ticker's labels. Each keyword records at most
// one label match; description hits are concept-adjacent free text and
// recorded under the concept path.
func (s *Scorer) matchByKeywords(
	signal *contracts.Signal,
	labelsByTicker map[string][]labeled,
	hits map[string]bool,
	detail func(ticker, signalID string) *contracts.HitDetail,
) {
	if len(signal.Keywords) == 0 {
		return
	}

	for ticker, labels := range labelsByTicker {
		var matchedTerms []string
		matchedPaths := make(map[string]bool)

		for _, keyword := range signal.Keywords {
			keyLower := strings.ToLower(keyword)
			for _, label := range labels {
				if !strings.Contains(strings.ToLower(label.value), keyLower) {
					continue
				}
				matchedTerms = append(matchedTerms, keyword)
				if label.kind == "description" {
					matchedPaths[contracts.PathConcept] = true
				} else {
					matchedPaths[label.kind] = true
				}
				break
			}
		}

		if len(matchedTerms) == 0 {
			continue
		}

		hits[ticker] = true
		d := detail(ticker, signal.ID)
		for path := range matchedPaths {
			d.AddPath(path)
		}
		for _, term := range matchedTerms {
			d.AddTerm(term)
		}
		d.AddSource(contracts.SourceSignals)
	}
}

// buildHitMap flattens accumulated details into per-ticker SignalHit
// lists, in signal declaration order.
func (s *Scorer) buildHitMap(
	signals []contracts.Signal,
	details map[string]map[string]*contracts.HitDetail,
) contracts.HitMap {
	hitMap := make(contracts.HitMap, len(details))
	for ticker, bySignal := range details {
		var entries []contracts.SignalHit
		for _, signal := range signals {
			d, ok := bySignal[signal.ID]
			if !ok {
				continue
			}
			entries = append(entries, contracts.SignalHit{
				SignalID:      signal.ID,
				Theme:         signal.CoreTheme,
				SignalTheme:   signal.Theme,
				Weight:        signal.Weight,
				MatchPaths:    contracts.SortedKeys(d.MatchPaths),
				MatchedTerms:  contracts.SortedKeys(d.MatchedTerms),
				MatchedSource: contracts.SortedKeys(d.MatchedSource),
			})
		}
		hitMap[ticker] = entries
	}
	return hitMap
}

// ApplyThemeWeight applies the theme-weight ablation switch. Weight 0
// zeroes the theme component and leaves the final score tech-only; hit
// bookkeeping is untouched so explanations still show the evidence.
func ApplyThemeWeight(rows []contracts.ScoredRow, themeWeight float64) {
	if themeWeight != 0 {
		return
	}
	for i := range rows {
		rows[i].ThemeScore = 0
		rows[i].FinalScore = rows[i].TechnicalScore()
	}
}
