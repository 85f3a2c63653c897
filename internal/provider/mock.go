package provider

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/ashare-lab/screener/internal/contracts"
)

const mockMinUniverse = 60

// MockProvider generates a deterministic offline universe and price
// history. Same seed, same output; no network, no filesystem.
type MockProvider struct{}

// NewMockProvider creates the offline provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) Name() string { return "mock" }

// GetStockUniverse sizes the universe to the term list: five tickers per
// term with a floor of sixty, each assigned a term round-robin as both
// industry and concept.
func (p *MockProvider) GetStockUniverse(_ context.Context, terms []string) ([]contracts.StockInfo, error) {
	if len(terms) == 0 {
		return nil, fmt.Errorf("mock provider requires at least one term")
	}

	total := len(terms) * 5
	if total < mockMinUniverse {
		total = mockMinUniverse
	}

	universe := make([]contracts.StockInfo, 0, total)
	for i := 0; i < total; i++ {
		term := terms[i%len(terms)]
		universe = append(universe, contracts.StockInfo{
			Ticker:   fmt.Sprintf("A%04d", i),
			Name:     fmt.Sprintf("STOCK_%04d", i),
			Industry: term,
			Concept:  term,
		})
	}
	return universe, nil
}

// GetPriceHistory walks a weekday calendar and compounds normally
// distributed daily returns per ticker. Each ticker gets its own rng
// seeded at seed+index, so universes of different sizes still agree on
// the shared prefix.
func (p *MockProvider) GetPriceHistory(
	_ context.Context,
	stocks []contracts.StockInfo,
	asOf time.Time,
	lookbackDays int,
	seed int64,
) ([]contracts.PriceBar, error) {
	dates := TradingCalendar(asOf, lookbackDays)

	bars := make([]contracts.PriceBar, 0, len(stocks)*len(dates))
	for idx, stock := range stocks {
		rng := rand.New(rand.NewSource(seed + int64(idx)))
		price := 10 + rng.Float64()*50
		for _, d := range dates {
			ret := 0.0005 + rng.NormFloat64()*0.02
			price *= 1 + ret
			volume := float64(1_000_000 + rng.Int63n(49_000_000))
			bars = append(bars, contracts.PriceBar{
				Date:        d,
				Ticker:      stock.Ticker,
				Name:        stock.Name,
				Industry:    stock.Industry,
				Concept:     stock.Concept,
				Description: stock.Description,
				Close:       math.Round(price*10000) / 10000,
				Volume:      volume,
			})
		}
	}
	return bars, nil
}
