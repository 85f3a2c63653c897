package catalog

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/ashare-lab/screener/internal/contracts"
)

// TermDictionary maps a lookup key (theme label, alias, or any term seen
// in a theme-map row) to the terms of the rows it appeared in. It powers
// fallback resolution for signals that have no direct map entries.
type TermDictionary map[string][]string

// add appends terms to a key, preserving first-seen order without
// duplicates.
func (d TermDictionary) add(key string, terms []string) {
	if key == "" {
		return
	}
	existing := d[key]
	seen := make(map[string]bool, len(existing))
	for _, t := range existing {
		seen[t] = true
	}
	for _, t := range terms {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		existing = append(existing, t)
	}
	d[key] = existing
}

// Lookup returns the terms for a key.
func (d TermDictionary) Lookup(key string) []string {
	return d[key]
}

// ThemeMapFile is the loaded theme map plus everything downstream stages
// need: deterministic signal-id order, the side-built term dictionary,
// and the raw bytes for content hashing.
type ThemeMapFile struct {
	Map      contracts.ThemeMap
	IDOrder  []string
	TermDict TermDictionary
	Raw      []byte
}

// Recognized header names. The typed schema carries map_type/map_values
// columns; the legacy schema has one free-text term cell per row.
const (
	colSignalID     = "主题id"
	colSignalIDAlt  = "signal_id"
	colThemeLabel   = "主题"
	colThemeLabelAlt = "theme"
	colMapType      = "map_type"
	colMapValues    = "map_values"
	colLegacyTerms  = "对应行业/概念"
	colLegacyAlt    = "terms"
)

// LoadThemeMap reads the theme-to-term CSV. Both schemas are tokenized by
// SplitTerms; rows that yield no terms are skipped. Every row also feeds
// the term dictionary: the row's theme label and each of its terms become
// lookup keys pointing at the row's full term set.
func LoadThemeMap(path string) (*ThemeMapFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read theme map: %w", err)
	}

	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse theme map %s: %w", path, err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("theme map %s is empty", path)
	}

	header := records[0]
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}

	idCol, ok := idx[colSignalID]
	if !ok {
		idCol, ok = idx[colSignalIDAlt]
	}
	if !ok {
		return nil, fmt.Errorf("theme map %s: missing signal id column", path)
	}

	typeCol, hasType := idx[colMapType]
	valuesCol, hasValues := idx[colMapValues]
	typed := hasType && hasValues

	legacyCol, hasLegacy := idx[colLegacyTerms]
	if !hasLegacy {
		legacyCol, hasLegacy = idx[colLegacyAlt]
	}
	if !typed && !hasLegacy {
		return nil, fmt.Errorf("theme map %s: neither typed nor legacy term columns found", path)
	}

	labelCol, hasLabel := idx[colThemeLabel]
	if !hasLabel {
		labelCol, hasLabel = idx[colThemeLabelAlt]
	}

	file := &ThemeMapFile{
		Map:      make(contracts.ThemeMap),
		TermDict: make(TermDictionary),
		Raw:      data,
	}
	seenID := make(map[string]bool)

	cell := func(row []string, col int) string {
		if col < 0 || col >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[col])
	}

	for _, row := range records[1:] {
		signalID := cell(row, idCol)
		if signalID == "" {
			continue
		}

		var matchType contracts.MatchType
		var terms []string
		if typed {
			matchType = contracts.MatchType(strings.ToLower(cell(row, typeCol)))
			terms = SplitTerms(cell(row, valuesCol))
		} else {
			matchType = contracts.MatchConcept
			terms = SplitTerms(cell(row, legacyCol))
		}
		if len(terms) == 0 {
			continue
		}

		if !seenID[signalID] {
			seenID[signalID] = true
			file.IDOrder = append(file.IDOrder, signalID)
		}
		file.Map[signalID] = append(file.Map[signalID], contracts.ThemeEntry{
			Type:   matchType,
			Values: terms,
		})

		// Dictionary keys: the row's theme label tokens and the terms
		// themselves. Ticker rows stay out of the dictionary; a literal
		// ticker is not a membership term.
		if matchType == contracts.MatchConcept || matchType == contracts.MatchIndustry {
			if hasLabel {
				for _, key := range SplitTerms(cell(row, labelCol)) {
					file.TermDict.add(key, terms)
				}
			}
			for _, term := range terms {
				file.TermDict.add(term, terms)
			}
		}
	}

	if len(file.Map) == 0 {
		return nil, fmt.Errorf("theme map %s has no usable rows", path)
	}

	return file, nil
}
