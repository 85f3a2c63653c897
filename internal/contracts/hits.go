package contracts

import "sort"

// Match path labels recorded in hit evidence. Industry map entries and
// description keyword hits are both recorded under the concept path;
// industry appears only for keyword hits on the industry label.
const (
	PathTicker   = "ticker"
	PathConcept  = "concept"
	PathIndustry = "industry"

	SourceMap     = "map"
	SourceSignals = "signals"
)

// HitDetail accumulates match evidence for one (ticker, signal) pair
// while scoring runs. It is folded into SignalHit entries afterwards and
// discarded.
type HitDetail struct {
	MatchPaths    map[string]bool
	MatchedTerms  map[string]bool
	MatchedSource map[string]bool
}

// NewHitDetail returns an empty detail.
func NewHitDetail() *HitDetail {
	return &HitDetail{
		MatchPaths:    make(map[string]bool),
		MatchedTerms:  make(map[string]bool),
		MatchedSource: make(map[string]bool),
	}
}

// AddPath records a match path.
func (d *HitDetail) AddPath(path string) { d.MatchPaths[path] = true }

// AddTerm records a matched literal term.
func (d *HitDetail) AddTerm(term string) {
	if term != "" {
		d.MatchedTerms[term] = true
	}
}

// AddSource records the evidence source (map or signals).
func (d *HitDetail) AddSource(source string) { d.MatchedSource[source] = true }

// SignalHit is the per-signal hit evidence for one ticker, with sets
// flattened to sorted slices for deterministic output.
type SignalHit struct {
	SignalID      string   `json:"signal_id"`
	Theme         string   `json:"theme"`
	SignalTheme   string   `json:"signal_theme"`
	Weight        float64  `json:"weight"`
	MatchPaths    []string `json:"match_paths"`
	MatchedTerms  []string `json:"matched_terms"`
	MatchedSource []string `json:"matched_source"`
}

// HitMap maps ticker to its signal hits in signal declaration order.
type HitMap map[string][]SignalHit

// ThemeHit is the report-level hit entry after merging SignalHits by
// core theme: each core theme appears at most once per ticker.
type ThemeHit struct {
	SignalID      string   `json:"signal_id"`
	SignalIDs     []string `json:"signal_ids"`
	SignalTheme   string   `json:"signal_theme"`
	SignalThemes  []string `json:"signal_themes"`
	Theme         string   `json:"theme"`
	Weight        float64  `json:"weight"`
	MatchPaths    []string `json:"match_paths"`
	MatchedTerms  []string `json:"matched_terms"`
	MatchedSource []string `json:"matched_source"`
}

// SortedKeys returns the keys of a string set in sorted order.
func SortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
