package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviousTradingDate(t *testing.T) {
	// 2026-01-17 is a Saturday, 2026-01-18 a Sunday.
	saturday := time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC)
	sunday := time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC)
	friday := time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)
	monday := time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, friday, PreviousTradingDate(saturday))
	assert.Equal(t, friday, PreviousTradingDate(sunday))
	assert.Equal(t, friday, PreviousTradingDate(friday))
	assert.Equal(t, monday, PreviousTradingDate(monday))
}

func TestTradingCalendar(t *testing.T) {
	// Tuesday 2026-01-20, ten days back covers two weekends.
	end := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	days := TradingCalendar(end, 10)

	require.NotEmpty(t, days)
	assert.Equal(t, end, days[len(days)-1])
	for i, d := range days {
		wd := d.Weekday()
		assert.NotEqual(t, time.Saturday, wd)
		assert.NotEqual(t, time.Sunday, wd)
		if i > 0 {
			assert.True(t, d.After(days[i-1]))
		}
	}
	// 2026-01-10 (Sat) .. 2026-01-20 (Tue): 7 weekdays.
	assert.Len(t, days, 7)
}

func TestSeed(t *testing.T) {
	s1 := Seed("2026-01-20", "abc")
	s2 := Seed("2026-01-20", "abc")
	assert.Equal(t, s1, s2)
	assert.NotEqual(t, s1, Seed("2026-01-21", "abc"))
	assert.NotEqual(t, s1, Seed("2026-01-20", "abd"))
	assert.GreaterOrEqual(t, s1, int64(0))
}

func TestMockProvider_Universe(t *testing.T) {
	p := NewMockProvider()
	ctx := context.Background()

	_, err := p.GetStockUniverse(ctx, nil)
	require.Error(t, err)

	// Few terms: floor of sixty applies, terms assigned round-robin.
	universe, err := p.GetStockUniverse(ctx, []string{"AI芯片", "算力"})
	require.NoError(t, err)
	require.Len(t, universe, 60)
	assert.Equal(t, "A0000", universe[0].Ticker)
	assert.Equal(t, "STOCK_0000", universe[0].Name)
	assert.Equal(t, "AI芯片", universe[0].Industry)
	assert.Equal(t, "AI芯片", universe[0].Concept)
	assert.Equal(t, "算力", universe[1].Concept)
	assert.Equal(t, "AI芯片", universe[2].Concept)

	// Many terms: five tickers per term.
	terms := make([]string, 20)
	for i := range terms {
		terms[i] = string(rune('a' + i))
	}
	universe, err = p.GetStockUniverse(ctx, terms)
	require.NoError(t, err)
	assert.Len(t, universe, 100)
}

func TestMockProvider_PriceHistoryDeterministic(t *testing.T) {
	p := NewMockProvider()
	ctx := context.Background()
	asOf := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)

	universe, err := p.GetStockUniverse(ctx, []string{"AI芯片"})
	require.NoError(t, err)

	bars1, err := p.GetPriceHistory(ctx, universe, asOf, 90, 12345)
	require.NoError(t, err)
	bars2, err := p.GetPriceHistory(ctx, universe, asOf, 90, 12345)
	require.NoError(t, err)
	assert.Equal(t, bars1, bars2)

	// Different seed, different prices.
	bars3, err := p.GetPriceHistory(ctx, universe, asOf, 90, 54321)
	require.NoError(t, err)
	assert.NotEqual(t, bars1[0].Close, bars3[0].Close)
}

func TestMockProvider_PriceHistoryShape(t *testing.T) {
	p := NewMockProvider()
	ctx := context.Background()
	asOf := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)

	universe, err := p.GetStockUniverse(ctx, []string{"AI芯片"})
	require.NoError(t, err)

	bars, err := p.GetPriceHistory(ctx, universe, asOf, 90, 7)
	require.NoError(t, err)

	days := TradingCalendar(asOf, 90)
	require.Len(t, bars, len(universe)*len(days))

	perTicker := make(map[string]int)
	for _, bar := range bars {
		perTicker[bar.Ticker]++
		assert.Positive(t, bar.Close)
		assert.GreaterOrEqual(t, bar.Volume, float64(1_000_000))
		assert.Less(t, bar.Volume, float64(50_000_000))
		wd := bar.Date.Weekday()
		assert.NotEqual(t, time.Saturday, wd)
		assert.NotEqual(t, time.Sunday, wd)
		assert.Equal(t, "AI芯片", bar.Concept)
	}
	for _, n := range perTicker {
		assert.Equal(t, len(days), n)
	}

	// First ticker's bars carry its attributes.
	assert.Equal(t, "A0000", bars[0].Ticker)
	assert.Equal(t, "STOCK_0000", bars[0].Name)
	assert.False(t, bars[0].Date.After(asOf))
}

func TestMockProvider_SharedPrefixAcrossUniverseSizes(t *testing.T) {
	p := NewMockProvider()
	ctx := context.Background()
	asOf := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)

	small, err := p.GetStockUniverse(ctx, []string{"x"})
	require.NoError(t, err)

	barsAll, err := p.GetPriceHistory(ctx, small, asOf, 30, 99)
	require.NoError(t, err)
	barsOne, err := p.GetPriceHistory(ctx, small[:1], asOf, 30, 99)
	require.NoError(t, err)

	// Per-ticker rng: the first ticker's series does not depend on how
	// many tickers follow it.
	assert.Equal(t, barsAll[:len(barsOne)], barsOne)
}
