package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashare-lab/screener/internal/contracts"
)

func membershipRow(ticker, name, industry, concept string) contracts.StockInfo {
	return contracts.StockInfo{
		Ticker:      ticker,
		Name:        name,
		Industry:    industry,
		Concept:     concept,
		Description: name + "主营" + concept,
	}
}

func priceBars(ticker string, days int) []contracts.PriceBar {
	bars := make([]contracts.PriceBar, 0, days)
	day := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		bars = append(bars, contracts.PriceBar{
			Ticker: ticker,
			Date:   day.AddDate(0, 0, -i),
			Close:  10.0 + float64(i),
			Volume: 1_000_000,
		})
	}
	return bars
}

func TestAttachMembership_MultiConceptKeepsBarCount(t *testing.T) {
	// 31 trading days for a ticker that belongs to two concepts: the
	// attach step must not change the bar count, so the ticker still
	// falls short of a 61-bar history requirement.
	bars := priceBars("600100", 31)
	membership := []contracts.StockInfo{
		membershipRow("600100", "算力科技", "计算机", "AI芯片"),
		membershipRow("600100", "算力科技", "计算机", "算力"),
	}

	out := attachMembership(bars, membership)

	require.Len(t, out, 31)
	seen := make(map[time.Time]int)
	for _, b := range out {
		seen[b.Date]++
		assert.Equal(t, "算力科技", b.Name)
		assert.Equal(t, "计算机", b.Industry)
		assert.Equal(t, "AI芯片", b.Concept)
	}
	for date, n := range seen {
		assert.Equalf(t, 1, n, "date %s appears %d times", date.Format("2006-01-02"), n)
	}
}

func TestAttachMembership_FirstRowWins(t *testing.T) {
	bars := priceBars("600200", 2)
	membership := []contracts.StockInfo{
		membershipRow("600200", "晶圆制造", "电子", "芯片"),
		membershipRow("600200", "晶圆制造", "电子", "半导体设备"),
	}

	out := attachMembership(bars, membership)

	require.Len(t, out, 2)
	assert.Equal(t, "芯片", out[0].Concept)
	assert.Equal(t, "芯片", out[1].Concept)
	assert.Equal(t, "晶圆制造主营芯片", out[0].Description)
}

func TestAttachMembership_NoMembershipFallsBackToTicker(t *testing.T) {
	bars := priceBars("600300", 3)

	out := attachMembership(bars, nil)

	require.Len(t, out, 3)
	assert.Equal(t, "600300", out[0].Name)
	assert.Empty(t, out[0].Industry)
	assert.Empty(t, out[0].Concept)
}

func TestAttachMembership_IndustryFallsBackToConcept(t *testing.T) {
	bars := priceBars("600400", 1)
	membership := []contracts.StockInfo{
		membershipRow("600400", "云数据", "", "算力"),
	}

	out := attachMembership(bars, membership)

	require.Len(t, out, 1)
	assert.Equal(t, "算力", out[0].Industry)
}
