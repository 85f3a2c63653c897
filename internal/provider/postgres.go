package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ashare-lab/screener/internal/contracts"
)

// PostgresProvider serves membership and price history out of the
// screener warehouse tables. Read only.
type PostgresProvider struct {
	pool *pgxpool.Pool
}

// NewPostgresProvider creates a provider over an existing pool.
func NewPostgresProvider(pool *pgxpool.Pool) *PostgresProvider {
	return &PostgresProvider{pool: pool}
}

func (p *PostgresProvider) Name() string { return "postgres" }

// GetStockUniverse selects membership rows; when terms are given only
// matching concepts are returned.
func (p *PostgresProvider) GetStockUniverse(ctx context.Context, terms []string) ([]contracts.StockInfo, error) {
	query := `
		SELECT ticker, COALESCE(name, ticker), COALESCE(industry, concept, ''),
		       COALESCE(concept, ''), COALESCE(description, '')
		FROM screener.concept_membership
	`
	args := []interface{}{}
	if len(terms) > 0 {
		query += ` WHERE concept = ANY($1)`
		args = append(args, terms)
	}
	query += ` ORDER BY ticker`

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query membership: %w", err)
	}
	defer rows.Close()

	var universe []contracts.StockInfo
	for rows.Next() {
		var s contracts.StockInfo
		if err := rows.Scan(&s.Ticker, &s.Name, &s.Industry, &s.Concept, &s.Description); err != nil {
			return nil, fmt.Errorf("scan membership row: %w", err)
		}
		s.Ticker = contracts.NormalizeTicker(s.Ticker)
		universe = append(universe, s)
	}
	return universe, rows.Err()
}

// GetPriceHistory selects the trailing lookbackDays bars per ticker up
// to asOf and stamps membership attributes on afterwards. The price
// query never joins membership: one row per (ticker, concept) there
// would multiply every bar and break the per-ticker bar counts the
// history gate and the indicators depend on.
func (p *PostgresProvider) GetPriceHistory(
	ctx context.Context,
	stocks []contracts.StockInfo,
	asOf time.Time,
	lookbackDays int,
	_ int64,
) ([]contracts.PriceBar, error) {
	tickers := make([]string, 0, len(stocks))
	for _, s := range stocks {
		tickers = append(tickers, contracts.NormalizeTicker(s.Ticker))
	}

	query := `
		SELECT trade_date, ticker, close_price, volume
		FROM (
			SELECT trade_date, ticker, close_price, volume,
			       ROW_NUMBER() OVER (PARTITION BY ticker ORDER BY trade_date DESC) AS rn
			FROM screener.daily_prices
			WHERE ticker = ANY($1) AND trade_date <= $2
		) t
		WHERE rn <= $3
		ORDER BY ticker, trade_date ASC
	`

	rows, err := p.pool.Query(ctx, query, tickers, asOf, lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()

	var bars []contracts.PriceBar
	for rows.Next() {
		var b contracts.PriceBar
		if err := rows.Scan(&b.Date, &b.Ticker, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		b.Ticker = contracts.NormalizeTicker(b.Ticker)
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	membership, err := p.loadMembership(ctx, tickers)
	if err != nil {
		return nil, err
	}
	return attachMembership(bars, membership), nil
}

func (p *PostgresProvider) loadMembership(ctx context.Context, tickers []string) ([]contracts.StockInfo, error) {
	query := `
		SELECT ticker, COALESCE(name, ticker), COALESCE(industry, concept, ''),
		       COALESCE(concept, ''), COALESCE(description, '')
		FROM screener.concept_membership
		WHERE ticker = ANY($1)
		ORDER BY ticker, concept
	`
	rows, err := p.pool.Query(ctx, query, tickers)
	if err != nil {
		return nil, fmt.Errorf("query membership attributes: %w", err)
	}
	defer rows.Close()

	var membership []contracts.StockInfo
	for rows.Next() {
		var s contracts.StockInfo
		if err := rows.Scan(&s.Ticker, &s.Name, &s.Industry, &s.Concept, &s.Description); err != nil {
			return nil, fmt.Errorf("scan membership row: %w", err)
		}
		membership = append(membership, s)
	}
	return membership, rows.Err()
}

// attachMembership stamps per-ticker attributes onto price bars. The
// first membership row per ticker wins, as in the snapshot provider,
// and the bar count never changes regardless of how many concepts a
// ticker belongs to.
func attachMembership(bars []contracts.PriceBar, membership []contracts.StockInfo) []contracts.PriceBar {
	attrs := make(map[string]contracts.StockInfo, len(membership))
	for _, row := range membership {
		ticker := contracts.NormalizeTicker(row.Ticker)
		if _, ok := attrs[ticker]; !ok {
			attrs[ticker] = row
		}
	}

	for i := range bars {
		info, ok := attrs[bars[i].Ticker]
		if !ok {
			bars[i].Name = bars[i].Ticker
			continue
		}
		bars[i].Name = firstNonEmpty(info.Name, bars[i].Ticker)
		bars[i].Industry = firstNonEmpty(info.Industry, info.Concept)
		bars[i].Concept = info.Concept
		bars[i].Description = info.Description
	}
	return bars
}
