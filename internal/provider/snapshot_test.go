package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashare-lab/screener/internal/contracts"
	"github.com/ashare-lab/screener/pkg/logger"
)

func writeSnapshot(t *testing.T, baseDir, date, membership, prices string) {
	t.Helper()
	dir := filepath.Join(baseDir, date)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "concept_membership.csv"), []byte(membership), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prices.csv"), []byte(prices), 0o644))
}

const testMembership = `ticker,name,industry,concept
600100,龙头一号,半导体,AI芯片
600100,龙头一号,半导体,算力
600200,,白酒,消费
`

const testPrices = `date,ticker,close,volume
2026-01-16,600100,10.5,1000000
2026-01-19,600100,10.8,1100000
2026-01-20,600100,11.2,1200000
2026-01-21,600100,99.0,9900000
2026-01-19,600200,50.0,500000
2026-01-20,600200,51.0,510000
`

func TestSnapshotProvider_Universe(t *testing.T) {
	base := t.TempDir()
	asOf := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	writeSnapshot(t, base, "2026-01-20", testMembership, testPrices)

	p := NewSnapshotProvider(base, asOf, time.Time{}, logger.NewNop())
	assert.Equal(t, "snapshot", p.Name())

	// No terms: whole membership table.
	all, err := p.GetStockUniverse(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, all, 3)

	// Blank name falls back to the ticker.
	assert.Equal(t, "600200", all[2].Name)
	assert.Equal(t, "白酒", all[2].Industry)

	// Term filter keeps matching concept rows only.
	filtered, err := p.GetStockUniverse(context.Background(), []string{"算力"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "600100", filtered[0].Ticker)
	assert.Equal(t, "算力", filtered[0].Concept)
}

func TestSnapshotProvider_PriceHistory(t *testing.T) {
	base := t.TempDir()
	asOf := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	writeSnapshot(t, base, "2026-01-20", testMembership, testPrices)

	p := NewSnapshotProvider(base, asOf, time.Time{}, logger.NewNop())
	stocks := []contracts.StockInfo{{Ticker: "600100"}}

	bars, err := p.GetPriceHistory(context.Background(), stocks, asOf, 90, 0)
	require.NoError(t, err)

	// Bars after asOf are dropped; unrequested tickers too.
	require.Len(t, bars, 3)
	for i, bar := range bars {
		assert.Equal(t, "600100", bar.Ticker)
		assert.False(t, bar.Date.After(asOf))
		if i > 0 {
			assert.True(t, bar.Date.After(bars[i-1].Date))
		}
	}
	assert.Equal(t, 11.2, bars[2].Close)

	// Membership attributes join onto every bar; first membership row
	// wins on duplicates.
	assert.Equal(t, "龙头一号", bars[0].Name)
	assert.Equal(t, "半导体", bars[0].Industry)
	assert.Equal(t, "AI芯片", bars[0].Concept)
}

func TestSnapshotProvider_LookbackTail(t *testing.T) {
	base := t.TempDir()
	asOf := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	writeSnapshot(t, base, "2026-01-20", testMembership, testPrices)

	p := NewSnapshotProvider(base, asOf, time.Time{}, logger.NewNop())
	stocks := []contracts.StockInfo{{Ticker: "600100"}}

	bars, err := p.GetPriceHistory(context.Background(), stocks, asOf, 2, 0)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC), bars[0].Date)
}

func TestSnapshotProvider_PinnedSnapshotDate(t *testing.T) {
	base := t.TempDir()
	asOf := time.Date(2026, 1, 21, 0, 0, 0, 0, time.UTC)
	pinned := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	writeSnapshot(t, base, "2026-01-20", testMembership, testPrices)

	// Data lives under the pinned date, not the run date.
	p := NewSnapshotProvider(base, asOf, pinned, logger.NewNop())
	all, err := p.GetStockUniverse(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSnapshotProvider_MissingData(t *testing.T) {
	base := t.TempDir()
	asOf := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)

	p := NewSnapshotProvider(base, asOf, time.Time{}, logger.NewNop())
	_, err := p.GetStockUniverse(context.Background(), nil)
	require.Error(t, err)

	// Membership without a ticker column is rejected.
	writeSnapshot(t, base, "2026-01-20", "code,concept\n600100,AI芯片\n", testPrices)
	_, err = p.GetStockUniverse(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ticker column")
}
