package provider

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ashare-lab/screener/internal/contracts"
	"github.com/ashare-lab/screener/pkg/logger"
)

// SnapshotProvider reads a frozen dataset from disk: one directory per
// snapshot date holding concept_membership.csv and prices.csv. Runs
// against a snapshot reproduce byte for byte.
type SnapshotProvider struct {
	baseDir      string
	asOf         time.Time
	snapshotAsOf time.Time
	logger       *logger.Logger
}

// NewSnapshotProvider creates a snapshot provider rooted at baseDir.
// snapshotAsOf pins the snapshot directory; when zero, the run as-of
// date selects it.
func NewSnapshotProvider(baseDir string, asOf, snapshotAsOf time.Time, log *logger.Logger) *SnapshotProvider {
	return &SnapshotProvider{
		baseDir:      baseDir,
		asOf:         asOf,
		snapshotAsOf: snapshotAsOf,
		logger:       log,
	}
}

func (p *SnapshotProvider) Name() string { return "snapshot" }

func (p *SnapshotProvider) snapshotDir(asOf time.Time) string {
	date := p.snapshotAsOf
	if date.IsZero() {
		date = asOf
	}
	return filepath.Join(p.baseDir, date.Format("2006-01-02"))
}

// GetStockUniverse loads the membership table, keeping only rows whose
// concept is in the term list when one is given.
func (p *SnapshotProvider) GetStockUniverse(_ context.Context, terms []string) ([]contracts.StockInfo, error) {
	membership, err := p.loadMembership(p.snapshotDir(p.asOf))
	if err != nil {
		return nil, err
	}

	if len(terms) == 0 {
		return membership, nil
	}

	termSet := make(map[string]bool, len(terms))
	for _, t := range terms {
		termSet[t] = true
	}
	var universe []contracts.StockInfo
	for _, row := range membership {
		if termSet[row.Concept] {
			universe = append(universe, row)
		}
	}
	return universe, nil
}

// GetPriceHistory loads prices for the requested tickers up to asOf,
// keeps the trailing lookbackDays bars per ticker and joins membership
// attributes onto every bar.
func (p *SnapshotProvider) GetPriceHistory(
	_ context.Context,
	stocks []contracts.StockInfo,
	asOf time.Time,
	lookbackDays int,
	_ int64,
) ([]contracts.PriceBar, error) {
	dir := p.snapshotDir(asOf)
	bars, err := p.loadPrices(dir)
	if err != nil {
		return nil, err
	}
	membership, err := p.loadMembership(dir)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(stocks))
	for _, s := range stocks {
		wanted[contracts.NormalizeTicker(s.Ticker)] = true
	}
	attrs := make(map[string]contracts.StockInfo, len(membership))
	for _, row := range membership {
		if _, ok := attrs[row.Ticker]; !ok {
			attrs[row.Ticker] = row
		}
	}

	byTicker := make(map[string][]contracts.PriceBar)
	for _, bar := range bars {
		if !wanted[bar.Ticker] || bar.Date.After(asOf) {
			continue
		}
		byTicker[bar.Ticker] = append(byTicker[bar.Ticker], bar)
	}

	tickers := make([]string, 0, len(byTicker))
	for t := range byTicker {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	var result []contracts.PriceBar
	for _, ticker := range tickers {
		series := byTicker[ticker]
		sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
		if len(series) > lookbackDays {
			series = series[len(series)-lookbackDays:]
		}
		info := attrs[ticker]
		for _, bar := range series {
			bar.Name = firstNonEmpty(info.Name, bar.Ticker)
			bar.Industry = firstNonEmpty(info.Industry, info.Concept)
			bar.Concept = info.Concept
			bar.Description = info.Description
			result = append(result, bar)
		}
	}
	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// loadMembership reads concept_membership.csv. A ticker column is
// mandatory; industry falls back to concept when absent.
func (p *SnapshotProvider) loadMembership(dir string) ([]contracts.StockInfo, error) {
	path := filepath.Join(dir, "concept_membership.csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open membership snapshot: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read membership header: %w", err)
	}
	cols := headerIndex(header)
	tickerCol, ok := cols["ticker"]
	if !ok {
		return nil, fmt.Errorf("membership missing ticker column in %s", path)
	}

	var rows []contracts.StockInfo
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read membership row: %w", err)
		}
		ticker := contracts.NormalizeTicker(field(record, tickerCol))
		if ticker == "" {
			continue
		}
		concept := strings.TrimSpace(fieldByName(record, cols, "concept"))
		industry := strings.TrimSpace(fieldByName(record, cols, "industry"))
		if industry == "" {
			industry = concept
		}
		rows = append(rows, contracts.StockInfo{
			Ticker:      ticker,
			Name:        firstNonEmpty(strings.TrimSpace(fieldByName(record, cols, "name")), ticker),
			Industry:    industry,
			Concept:     concept,
			Description: strings.TrimSpace(fieldByName(record, cols, "description")),
		})
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("membership has 0 rows: %s", path)
	}
	return rows, nil
}

// loadPrices reads prices.csv: date, ticker, close, volume.
func (p *SnapshotProvider) loadPrices(dir string) ([]contracts.PriceBar, error) {
	path := filepath.Join(dir, "prices.csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prices snapshot: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read prices header: %w", err)
	}
	cols := headerIndex(header)
	for _, required := range []string{"date", "ticker", "close", "volume"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("prices missing %s column in %s", required, path)
		}
	}

	var bars []contracts.PriceBar
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read prices row: %w", err)
		}
		date, err := time.Parse("2006-01-02", strings.TrimSpace(fieldByName(record, cols, "date")))
		if err != nil {
			return nil, fmt.Errorf("parse price date: %w", err)
		}
		closePx, err := strconv.ParseFloat(strings.TrimSpace(fieldByName(record, cols, "close")), 64)
		if err != nil {
			return nil, fmt.Errorf("parse close price: %w", err)
		}
		volume, err := strconv.ParseFloat(strings.TrimSpace(fieldByName(record, cols, "volume")), 64)
		if err != nil {
			return nil, fmt.Errorf("parse volume: %w", err)
		}
		bars = append(bars, contracts.PriceBar{
			Date:   date,
			Ticker: contracts.NormalizeTicker(fieldByName(record, cols, "ticker")),
			Close:  closePx,
			Volume: volume,
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("prices has 0 rows: %s", path)
	}
	return bars, nil
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return cols
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func fieldByName(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok {
		return ""
	}
	return field(record, idx)
}
