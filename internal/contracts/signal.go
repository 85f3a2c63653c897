package contracts

// RiskSignalID is the conventional risk/no-op signal. It carries weight 0
// unless the catalog overrides it, and its hits are rendered as risk
// warnings rather than theme hits.
const RiskSignalID = "signal_009"

// MatchType classifies a theme-map entry.
type MatchType string

const (
	MatchTicker   MatchType = "ticker"
	MatchConcept  MatchType = "concept"
	MatchIndustry MatchType = "industry"
)

// Signal is a catalog rule associating keywords and membership terms with
// a thematic weight. Immutable once loaded.
type Signal struct {
	ID          string   `json:"id" yaml:"id"`
	Theme       string   `json:"theme" yaml:"theme"`
	CoreTheme   string   `json:"core_theme" yaml:"core_theme"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
	Aliases     []string `json:"aliases" yaml:"aliases"`
	Priority    string   `json:"priority" yaml:"priority"`
	Description string   `json:"description" yaml:"description"`
	Weight      float64  `json:"weight" yaml:"weight"`
	Phase       string   `json:"phase" yaml:"phase"`
}

// IsRisk reports whether this is the conventional risk signal.
func (s *Signal) IsRisk() bool {
	return s.ID == RiskSignalID
}

// LookupKeys returns the ordered candidate keys used for term-dictionary
// fallback resolution: the theme label first, then declared aliases.
// The order is the provenance preference order; the first key that
// resolves wins.
func (s *Signal) LookupKeys() []string {
	keys := make([]string, 0, 1+len(s.Aliases))
	seen := make(map[string]bool)
	if s.Theme != "" {
		keys = append(keys, s.Theme)
		seen[s.Theme] = true
	}
	for _, alias := range s.Aliases {
		if alias == "" || seen[alias] {
			continue
		}
		keys = append(keys, alias)
		seen[alias] = true
	}
	return keys
}

// ThemeEntry is one resolved term set for a signal.
type ThemeEntry struct {
	Type   MatchType `json:"type"`
	Values []string  `json:"values"`
}

// ThemeMap maps signal id to its resolved term entries.
type ThemeMap map[string][]ThemeEntry

// FlattenTerms returns the deduplicated concept/industry terms of the map
// in first-seen order, iterating signals in the given id order.
// Ticker-type entries are excluded: a literal ticker is not a membership
// term and must not widen the candidate universe.
func (m ThemeMap) FlattenTerms(order []string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, sid := range order {
		for _, entry := range m[sid] {
			if entry.Type != MatchConcept && entry.Type != MatchIndustry {
				continue
			}
			for _, value := range entry.Values {
				if value == "" || seen[value] {
					continue
				}
				seen[value] = true
				terms = append(terms, value)
			}
		}
	}
	return terms
}
