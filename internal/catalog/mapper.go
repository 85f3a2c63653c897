package catalog

import (
	"github.com/ashare-lab/screener/internal/contracts"

	"github.com/ashare-lab/screener/pkg/logger"
)

// DefaultMaxThemes caps how many core themes drive a run.
const DefaultMaxThemes = 5

// ExtractCoreThemes returns the unique core themes of the catalog in
// first-seen order, truncated to max (DefaultMaxThemes when max <= 0).
func ExtractCoreThemes(signals []contracts.Signal, max int) []string {
	if max <= 0 {
		max = DefaultMaxThemes
	}
	seen := make(map[string]bool)
	var themes []string
	for _, signal := range signals {
		theme := signal.CoreTheme
		if theme == "" || seen[theme] {
			continue
		}
		seen[theme] = true
		themes = append(themes, theme)
		if len(themes) >= max {
			break
		}
	}
	return themes
}

// MappingStats carries mapper diagnostics into the report's debug block.
type MappingStats struct {
	KeyHits          int
	KeyMisses        int
	FallbackResolved int
	// SignalThemeKeys records, per fallback-resolved signal, the lookup
	// key that provided its terms.
	SignalThemeKeys map[string]string
}

// Mapper resolves signals to matchable term entries.
type Mapper struct {
	logger *logger.Logger
}

// NewMapper creates a mapper.
func NewMapper(log *logger.Logger) *Mapper {
	return &Mapper{logger: log}
}

// MapSignalsToTerms restricts the theme map to signals whose core theme
// is in coreThemes (all signals when coreThemes is empty) and resolves
// signals without direct entries through the term dictionary.
//
// Fallback never overwrites direct entries. Candidate keys are tried in
// the signal's declared preference order (theme label, then aliases);
// the union of all matching keys' terms becomes a synthesized concept
// entry, and the first matching key is recorded as provenance.
//
// Returns the mapped theme map, the signal-id order of its entries, and
// diagnostics.
func (m *Mapper) MapSignalsToTerms(
	signals []contracts.Signal,
	themeMap *ThemeMapFile,
	coreThemes []string,
) (contracts.ThemeMap, []string, *MappingStats) {
	allowed := make(map[string]bool, len(coreThemes))
	for _, theme := range coreThemes {
		allowed[theme] = true
	}

	stats := &MappingStats{SignalThemeKeys: make(map[string]string)}
	mapped := make(contracts.ThemeMap)
	var order []string

	for _, signal := range signals {
		if len(allowed) > 0 && !allowed[signal.CoreTheme] {
			continue
		}

		if entries, ok := themeMap.Map[signal.ID]; ok && len(entries) > 0 {
			mapped[signal.ID] = entries
			order = append(order, signal.ID)
			continue
		}

		terms, provenance := m.resolveFallback(&signal, themeMap.TermDict, stats)
		if len(terms) == 0 {
			continue
		}

		mapped[signal.ID] = []contracts.ThemeEntry{{
			Type:   contracts.MatchConcept,
			Values: terms,
		}}
		order = append(order, signal.ID)
		stats.SignalThemeKeys[signal.ID] = provenance
		stats.FallbackResolved++

		m.logger.WithFields(map[string]interface{}{
			"signal_id": signal.ID,
			"key":       provenance,
			"terms":     len(terms),
		}).Debug("Resolved signal terms via dictionary fallback")
	}

	return mapped, order, stats
}

// resolveFallback unions the dictionary terms of every matching candidate
// key and returns them with the first matching key.
func (m *Mapper) resolveFallback(
	signal *contracts.Signal,
	dict TermDictionary,
	stats *MappingStats,
) ([]string, string) {
	var terms []string
	seen := make(map[string]bool)
	provenance := ""

	for _, key := range signal.LookupKeys() {
		matched := dict.Lookup(key)
		if len(matched) == 0 {
			stats.KeyMisses++
			continue
		}
		stats.KeyHits++
		if provenance == "" {
			provenance = key
		}
		for _, term := range matched {
			if seen[term] {
				continue
			}
			seen[term] = true
			terms = append(terms, term)
		}
	}

	return terms, provenance
}
