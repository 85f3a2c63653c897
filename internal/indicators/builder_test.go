package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashare-lab/screener/internal/contracts"
	"github.com/ashare-lab/screener/pkg/logger"
)

var asOf = time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)

// seriesBars builds n daily bars ending exactly at asOf, with closes and
// volumes produced by the given functions over bar index 0..n-1.
func seriesBars(ticker string, n int, closeAt, volumeAt func(i int) float64) []contracts.PriceBar {
	bars := make([]contracts.PriceBar, 0, n)
	for i := 0; i < n; i++ {
		bars = append(bars, contracts.PriceBar{
			Date:   asOf.AddDate(0, 0, i-n+1),
			Ticker: ticker,
			Name:   "N_" + ticker,
			Close:  closeAt(i),
			Volume: volumeAt(i),
		})
	}
	return bars
}

func linearClose(i int) float64 { return float64(i + 1) }
func flatVolume(i int) float64  { return 1000 }

func TestCompute_MomentumWindows(t *testing.T) {
	b := NewBuilder(logger.NewNop())

	bars := seriesBars("000001", 61, linearClose, flatVolume)
	rows := b.Compute(bars, asOf)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.False(t, row.IndicatorMissing)

	// 20-period change: close 61 over close 41.
	assert.InDelta(t, 61.0/41.0-1, row.Momentum20, 1e-12)

	// 60-day momentum is a 59-period change, so 60 bars suffice:
	// close 61 over close 2.
	assert.InDelta(t, 61.0/2.0-1, row.Momentum60, 1e-12)

	assert.InDelta(t, 1000, row.AvgVolume20, 1e-12)
	assert.Greater(t, row.Volatility20, 0.0)
}

func TestCompute_Exactly60BarsSufficeFor60DayMomentum(t *testing.T) {
	b := NewBuilder(logger.NewNop())

	rows := b.Compute(seriesBars("000001", 60, linearClose, flatVolume), asOf)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].IndicatorMissing)
	assert.InDelta(t, 60.0/1.0-1, rows[0].Momentum60, 1e-12)
}

func TestCompute_NoLookahead(t *testing.T) {
	b := NewBuilder(logger.NewNop())

	bars := seriesBars("000001", 61, linearClose, flatVolume)
	// A future bar with an absurd close must not leak into anything.
	bars = append(bars, contracts.PriceBar{
		Date:   asOf.AddDate(0, 0, 1),
		Ticker: "000001",
		Close:  1e9,
		Volume: 1e9,
	})

	rows := b.Compute(bars, asOf)
	require.Len(t, rows, 1)
	assert.InDelta(t, 61.0/41.0-1, rows[0].Momentum20, 1e-12)
	assert.InDelta(t, 1000, rows[0].AvgVolume20, 1e-12)
}

func TestCompute_NoBarAtAsOfDropsTicker(t *testing.T) {
	b := NewBuilder(logger.NewNop())

	// Series ends one day before the as-of date.
	bars := seriesBars("000001", 61, linearClose, flatVolume)
	for i := range bars {
		bars[i].Date = bars[i].Date.AddDate(0, 0, -1)
	}

	rows := b.Compute(bars, asOf)
	assert.Empty(t, rows)
}

func TestCompute_ShortHistoryZeroFilled(t *testing.T) {
	b := NewBuilder(logger.NewNop())

	rows := b.Compute(seriesBars("000001", 10, linearClose, flatVolume), asOf)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.True(t, row.IndicatorMissing)
	assert.Zero(t, row.Momentum20)
	assert.Zero(t, row.Momentum60)
	assert.Zero(t, row.Volatility20)
	assert.Zero(t, row.AvgVolume20)
}

func TestCompute_PartialHistory(t *testing.T) {
	b := NewBuilder(logger.NewNop())

	// 21 bars: momentum_20 and the volume mean are defined, the 60-day
	// momentum is not.
	rows := b.Compute(seriesBars("000001", 21, linearClose, flatVolume), asOf)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.True(t, row.IndicatorMissing)
	assert.InDelta(t, 21.0/1.0-1, row.Momentum20, 1e-12)
	assert.Zero(t, row.Momentum60)
	assert.InDelta(t, 1000, row.AvgVolume20, 1e-12)
}

func TestCompute_DefinedZeroIsNotMissing(t *testing.T) {
	b := NewBuilder(logger.NewNop())

	flat := func(i int) float64 { return 100 }
	rows := b.Compute(seriesBars("000001", 61, flat, flatVolume), asOf)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.False(t, row.IndicatorMissing)
	assert.Zero(t, row.Momentum20)
	assert.Zero(t, row.Momentum60)
	assert.Zero(t, row.Volatility20)
}

func TestCompute_MultipleTickersSorted(t *testing.T) {
	b := NewBuilder(logger.NewNop())

	bars := append(
		seriesBars("000700", 61, linearClose, flatVolume),
		seriesBars("000100", 61, linearClose, flatVolume)...,
	)

	rows := b.Compute(bars, asOf)
	require.Len(t, rows, 2)
	assert.Equal(t, "000100", rows[0].Ticker)
	assert.Equal(t, "000700", rows[1].Ticker)
}
