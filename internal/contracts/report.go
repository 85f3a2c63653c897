package contracts

// Issue flags recorded in meta.issue_list.
const (
	IssueFallbackThemeInsufficient = "fallback_used:theme_insufficient"
	IssueNoCandidatesAfterFilters  = "no_candidates_after_filters"
)

// Candidate sources reported by the candidate selector.
const (
	CandidateSourceTheme    = "theme"
	CandidateSourceUniverse = "universe_fallback"
)

// ScoreBreakdown decomposes a final score. score_total always equals
// score_theme_total + score_tech_total.
type ScoreBreakdown struct {
	ScoreTotal      float64 `json:"score_total"`
	ScoreThemeTotal float64 `json:"score_theme_total"`
	ScoreTechTotal  float64 `json:"score_tech_total"`

	// Weighted tech sub-components (rank * fixed weight).
	Momentum20Component float64 `json:"momentum_20_component"`
	Momentum60Component float64 `json:"momentum_60_component"`
	VolumeComponent     float64 `json:"volume_component"`

	// Raw percentile ranks, 0..1.
	Momentum20Rank float64 `json:"momentum_20_rank"`
	Momentum60Rank float64 `json:"momentum_60_rank"`
	VolumeRank     float64 `json:"volume_rank"`
}

// IndicatorValues echoes the raw indicators into the report row.
type IndicatorValues struct {
	Momentum20   float64 `json:"momentum_20"`
	Momentum60   float64 `json:"momentum_60"`
	Volatility20 float64 `json:"volatility_20"`
	AvgVolume20  float64 `json:"avg_volume_20"`
}

// ConceptHit is the ticker's own membership evidence (not hit-hypothesis
// evidence) shown in the explanation.
type ConceptHit struct {
	Concept  string `json:"concept"`
	Industry string `json:"industry,omitempty"`
}

// Explanation is the structured reason object attached to each row.
type Explanation struct {
	ThemesUsed  []string     `json:"themes_used"`
	ConceptHits []ConceptHit `json:"concept_hits"`
	WhyInTop    []string     `json:"why_in_top5"`
}

// ReportRow is one ranked result.
type ReportRow struct {
	Ticker         string          `json:"ticker"`
	Name           string          `json:"name"`
	Industry       string          `json:"industry"`
	FinalScore     float64         `json:"final_score"`
	ThemeHits      []ThemeHit      `json:"theme_hits"`
	ScoreBreakdown ScoreBreakdown  `json:"score_breakdown"`
	DataDate       string          `json:"data_date"`
	Indicators     IndicatorValues `json:"indicators"`
	Reason         string          `json:"reason"`
	ReasonStruct   Explanation     `json:"reason_struct"`
}

// Meta carries run-level counters and non-fatal conditions.
type Meta struct {
	Excluded       map[string]int `json:"excluded"`
	MinHistory     int            `json:"min_history"`
	UniverseCount  int            `json:"universe_count"`
	ScoredCount    int            `json:"scored_count"`
	FallbackUsed   bool           `json:"fallback_used,omitempty"`
	FallbackReason string         `json:"fallback_reason,omitempty"`
	IssueList      []string       `json:"issue_list"`
	Provider       string         `json:"provider,omitempty"`
}

// Debug carries diagnostic counters from mapping and selection. Purely
// informational; never affects correctness.
type Debug struct {
	NPricesTickers       int      `json:"n_prices_tickers"`
	NMembershipTickers   int      `json:"n_membership_tickers"`
	NCandidatesFromTheme int      `json:"n_candidates_from_theme"`
	NCandidatesFinal     int      `json:"n_candidates_final"`
	CandidateSource      string   `json:"candidate_source"`
	TermFallbackHits     int      `json:"term_fallback_hits"`
	TermFallbackMisses   int      `json:"term_fallback_misses"`
	SignalThemeKeys      map[string]string `json:"signal_theme_keys,omitempty"`
	Warnings             []string `json:"warnings,omitempty"`
}

// Report is the finished run artifact.
type Report struct {
	AsOf     string      `json:"as_of"`
	DataDate string      `json:"data_date"`
	TopN     int         `json:"top_n"`
	Count    int         `json:"count"`
	Results  []ReportRow `json:"results"`
	Meta     Meta        `json:"meta"`
	Issues   int         `json:"issues"`
	Debug    Debug       `json:"debug"`
}

// RecountIssues recomputes the fatal-condition counter from the issue
// list. Called both after a fresh run and after a cache replay.
func (r *Report) RecountIssues() {
	r.Issues = len(r.Meta.IssueList)
}
