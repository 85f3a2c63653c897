package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ashare-lab/screener/internal/catalog"
	"github.com/ashare-lab/screener/internal/contracts"
	"github.com/ashare-lab/screener/internal/indicators"
	"github.com/ashare-lab/screener/internal/provider"
	"github.com/ashare-lab/screener/internal/report"
	"github.com/ashare-lab/screener/internal/runcache"
	"github.com/ashare-lab/screener/internal/scoring"
	"github.com/ashare-lab/screener/internal/selection"
	"github.com/ashare-lab/screener/internal/universe"
	"github.com/ashare-lab/screener/pkg/config"
	"github.com/ashare-lab/screener/pkg/database"
	"github.com/ashare-lab/screener/pkg/logger"
)

// Options is one screening run request. Zero values fall back to the
// configured defaults.
type Options struct {
	Date         string // as-of date, YYYY-MM-DD, required
	TopN         int
	SignalsPath  string
	ThemeMapPath string
	Provider     string
	SnapshotAsOf string // pins the snapshot directory for the snapshot provider

	// ThemeWeight ablation: only honored when set. Weight 0 removes the
	// theme component from the final score.
	ThemeWeight    float64
	ThemeWeightSet bool

	NoCache    bool
	NoFallback bool // propagate provider construction errors instead of falling back to mock

	// Mode tags candidate file entries; CandidatesPath enables the
	// candidate export.
	Mode           string
	CandidatesPath string
}

// Pipeline runs the staged screen: catalog, universe, indicators,
// scoring, selection, report.
type Pipeline struct {
	cfg    *config.Config
	logger *logger.Logger
	store  runcache.Store
	db     *database.DB

	mapper      *catalog.Mapper
	universeSel *universe.Selector
	indicators  *indicators.Builder
	scorer      *scoring.Scorer
	selector    *selection.Selector
	reporter    *report.Builder
}

// New creates a pipeline. db may be nil when the postgres provider is
// not in use.
func New(cfg *config.Config, log *logger.Logger, store runcache.Store, db *database.DB) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		logger:      log,
		store:       store,
		db:          db,
		mapper:      catalog.NewMapper(log),
		universeSel: universe.NewSelector(log),
		indicators:  indicators.NewBuilder(log),
		scorer:      scoring.NewScorer(log),
		selector:    selection.NewSelector(log),
		reporter:    report.NewBuilder(report.DefaultOptions(), log),
	}
}

// Run executes one screening run and writes the report artifacts.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*contracts.Report, error) {
	p.applyDefaults(&opts)

	inputDate, err := time.Parse("2006-01-02", opts.Date)
	if err != nil {
		return nil, fmt.Errorf("parse run date %q: %w", opts.Date, err)
	}
	asOf := provider.PreviousTradingDate(inputDate)

	var snapshotAsOf time.Time
	if opts.SnapshotAsOf != "" {
		snapshotAsOf, err = time.Parse("2006-01-02", opts.SnapshotAsOf)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot date %q: %w", opts.SnapshotAsOf, err)
		}
	}

	signals, signalsRaw, err := catalog.LoadSignals(opts.SignalsPath)
	if err != nil {
		return nil, err
	}
	themeMap, err := catalog.LoadThemeMap(opts.ThemeMapPath)
	if err != nil {
		return nil, err
	}

	signalsHash := runcache.HashBytes(signalsRaw)
	mapHash := runcache.HashBytes(themeMap.Raw)
	cacheKey := runcache.Key(opts.Date, opts.TopN, opts.Provider, signalsHash, mapHash)

	if !opts.NoCache {
		if entry, found, err := p.store.Get(ctx, cacheKey); err == nil && found && entry.Report != nil {
			p.logger.WithFields(map[string]interface{}{
				"key":   cacheKey,
				"as_of": entry.Report.AsOf,
			}).Info("Cache hit, replaying run")
			rep := entry.Report
			rep.RecountIssues()
			if err := p.writeArtifacts(rep, asOf, opts); err != nil {
				return nil, err
			}
			return rep, nil
		}
	}

	coreThemes := catalog.ExtractCoreThemes(signals, catalog.DefaultMaxThemes)
	mapped, idOrder, stats := p.mapper.MapSignalsToTerms(signals, themeMap, coreThemes)
	terms := mapped.FlattenTerms(idOrder)

	prov, err := p.buildProvider(opts, asOf, snapshotAsOf)
	if err != nil {
		return nil, err
	}

	membership, err := prov.GetStockUniverse(ctx, terms)
	if err != nil {
		return nil, fmt.Errorf("load stock universe: %w", err)
	}

	seed := provider.Seed(opts.Date, signalsHash)
	bars, err := prov.GetPriceHistory(ctx, membership, asOf, p.cfg.Screener.LookbackDays, seed)
	if err != nil {
		return nil, fmt.Errorf("load price history: %w", err)
	}

	sel := p.universeSel.Select(terms, membership, priceTickers(bars))
	bars = filterCandidates(bars, sel)

	minHistory := p.cfg.Screener.MinHistory
	bars, insufficient := filterHistory(bars, asOf, minHistory)

	rows := p.indicators.Compute(bars, asOf)

	var issueList []string
	var rep *contracts.Report
	var scored []contracts.ScoredRow
	fallbackUsed := false
	asOfStr := asOf.Format("2006-01-02")

	if len(rows) == 0 {
		rep = &contracts.Report{
			AsOf:     asOfStr,
			DataDate: asOfStr,
			TopN:     opts.TopN,
			Results:  []contracts.ReportRow{},
		}
		issueList = append(issueList, contracts.IssueNoCandidatesAfterFilters)
	} else {
		var hitMap contracts.HitMap
		scored, hitMap = p.scorer.Score(rows, signals, mapped)
		if opts.ThemeWeightSet {
			scoring.ApplyThemeWeight(scored, opts.ThemeWeight)
		}

		picked := p.selector.TopN(scored, opts.TopN)
		if picked.FallbackUsed {
			issueList = append(issueList, contracts.IssueFallbackThemeInsufficient)
			fallbackUsed = true
		}

		concepts := report.ConceptIndex{}
		if !sel.StripAttribution {
			concepts = report.BuildConceptIndex(membership)
		}
		rep = p.reporter.Build(picked.Rows, hitMap, concepts, asOf, opts.TopN)
	}

	rep.Meta = contracts.Meta{
		Excluded:      map[string]int{"insufficient_history_60": insufficient},
		MinHistory:    minHistory,
		UniverseCount: len(membership),
		ScoredCount:   len(rows),
		IssueList:     issueList,
		Provider:      prov.Name(),
	}
	if fallbackUsed {
		rep.Meta.FallbackUsed = true
		rep.Meta.FallbackReason = "theme_insufficient"
	}
	rep.Debug = contracts.Debug{
		NPricesTickers:       sel.NPricesTickers,
		NMembershipTickers:   sel.NMembershipTickers,
		NCandidatesFromTheme: sel.NCandidatesFromTheme,
		NCandidatesFinal:     sel.NCandidatesFinal,
		CandidateSource:      sel.Source,
		TermFallbackHits:     stats.KeyHits,
		TermFallbackMisses:   stats.KeyMisses,
		SignalThemeKeys:      stats.SignalThemeKeys,
	}
	rep.RecountIssues()

	if !opts.NoCache {
		entry := &runcache.Entry{
			Key:       cacheKey,
			CreatedAt: time.Now().UTC(),
			Report:    rep,
			Scored:    scored,
		}
		if err := p.store.Put(ctx, cacheKey, entry); err != nil {
			p.logger.WithError(err).Warn("Cache write failed")
		}
	}

	if err := p.writeArtifacts(rep, asOf, opts); err != nil {
		return nil, err
	}

	p.logger.WithFields(map[string]interface{}{
		"as_of":    rep.AsOf,
		"top_n":    rep.TopN,
		"count":    rep.Count,
		"issues":   rep.Issues,
		"provider": rep.Meta.Provider,
	}).Info("Screening run completed")

	return rep, nil
}

func (p *Pipeline) applyDefaults(opts *Options) {
	if opts.TopN <= 0 {
		opts.TopN = p.cfg.Screener.TopN
	}
	if opts.SignalsPath == "" {
		opts.SignalsPath = p.cfg.Screener.SignalsPath
	}
	if opts.ThemeMapPath == "" {
		opts.ThemeMapPath = p.cfg.Screener.ThemeMapPath
	}
	if opts.Provider == "" {
		opts.Provider = p.cfg.Screener.Provider
	}
	if opts.Mode == "" {
		opts.Mode = "enhanced"
	}
}

// buildProvider constructs the requested provider, falling back to mock
// on construction failure unless the run forbids it.
func (p *Pipeline) buildProvider(opts Options, asOf, snapshotAsOf time.Time) (provider.DataProvider, error) {
	deps := provider.Deps{
		Config:       p.cfg,
		DB:           p.db,
		Logger:       p.logger,
		AsOf:         asOf,
		SnapshotAsOf: snapshotAsOf,
	}
	prov, err := provider.Build(opts.Provider, deps)
	if err != nil {
		if opts.NoFallback {
			return nil, fmt.Errorf("build provider %s: %w", opts.Provider, err)
		}
		p.logger.WithField("provider", opts.Provider).WithError(err).Warn("Provider unavailable, falling back to mock")
		return provider.NewMockProvider(), nil
	}
	return prov, nil
}

func (p *Pipeline) writeArtifacts(rep *contracts.Report, asOf time.Time, opts Options) error {
	if err := WriteOutputs(rep, p.cfg.Screener.OutputDir, asOf, opts.TopN); err != nil {
		return err
	}
	if opts.CandidatesPath != "" {
		snapshotID := opts.SnapshotAsOf
		if snapshotID == "" {
			snapshotID = rep.AsOf
		}
		if err := WriteCandidates(rep, opts.Mode, opts.CandidatesPath, snapshotID); err != nil {
			return err
		}
	}
	return nil
}

func priceTickers(bars []contracts.PriceBar) []string {
	seen := make(map[string]bool)
	var tickers []string
	for _, bar := range bars {
		if !seen[bar.Ticker] {
			seen[bar.Ticker] = true
			tickers = append(tickers, bar.Ticker)
		}
	}
	return tickers
}

// filterCandidates keeps bars of the selected universe. On fallback the
// membership attributes are blanked so keyword matching cannot credit
// themes to tickers that were never theme-selected.
func filterCandidates(bars []contracts.PriceBar, sel *universe.Result) []contracts.PriceBar {
	allowed := make(map[string]bool, len(sel.Candidates))
	for _, t := range sel.Candidates {
		allowed[t] = true
	}

	kept := bars[:0]
	for _, bar := range bars {
		if !allowed[bar.Ticker] {
			continue
		}
		if sel.StripAttribution {
			bar.Industry = ""
			bar.Concept = ""
			bar.Description = ""
		}
		kept = append(kept, bar)
	}
	return kept
}

// filterHistory drops tickers with fewer than minHistory bars at or
// before asOf and reports how many were excluded.
func filterHistory(bars []contracts.PriceBar, asOf time.Time, minHistory int) ([]contracts.PriceBar, int) {
	counts := make(map[string]int)
	for _, bar := range bars {
		if !bar.Date.After(asOf) {
			counts[bar.Ticker]++
		}
	}

	insufficient := 0
	valid := make(map[string]bool, len(counts))
	for ticker, n := range counts {
		if n >= minHistory {
			valid[ticker] = true
		} else {
			insufficient++
		}
	}

	kept := bars[:0]
	for _, bar := range bars {
		if valid[bar.Ticker] {
			kept = append(kept, bar)
		}
	}
	return kept, insufficient
}
