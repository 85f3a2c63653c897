package indicators

import (
	"math"
	"sort"
	"time"

	"github.com/ashare-lab/screener/internal/contracts"
	"github.com/ashare-lab/screener/pkg/logger"
)

// Session windows. Momentum60 uses a 59-period change so exactly 60 bars
// are enough.
const (
	momentum20Periods = 20
	momentum60Periods = 59
	rollingWindow     = 20
)

// Builder computes per-ticker technical indicators at the as-of date.
type Builder struct {
	logger *logger.Logger
}

// NewBuilder creates an indicator builder.
func NewBuilder(log *logger.Logger) *Builder {
	return &Builder{logger: log}
}

// Compute derives one IndicatorRow per ticker that has a bar dated
// exactly asOf. Bars after asOf are discarded before anything else is
// computed; nothing downstream can see the future. Undefined indicators
// are zero-filled and flagged, never dropped from the row.
//
// Tickers below the minimum history threshold are the caller's problem:
// they must be excluded before this step.
func (b *Builder) Compute(bars []contracts.PriceBar, asOf time.Time) []contracts.IndicatorRow {
	byTicker := make(map[string][]contracts.PriceBar)
	var order []string
	for _, bar := range bars {
		if bar.Date.After(asOf) {
			continue
		}
		if _, ok := byTicker[bar.Ticker]; !ok {
			order = append(order, bar.Ticker)
		}
		byTicker[bar.Ticker] = append(byTicker[bar.Ticker], bar)
	}
	sort.Strings(order)

	rows := make([]contracts.IndicatorRow, 0, len(order))
	for _, ticker := range order {
		series := byTicker[ticker]
		sort.Slice(series, func(i, j int) bool {
			return series[i].Date.Before(series[j].Date)
		})

		last := series[len(series)-1]
		if !sameDay(last.Date, asOf) {
			// No bar at the as-of date; the ticker has no row.
			continue
		}

		row := contracts.IndicatorRow{
			Ticker:      ticker,
			Name:        last.Name,
			Industry:    last.Industry,
			Concept:     last.Concept,
			Description: last.Description,
			Date:        last.Date,
		}

		closes := make([]float64, len(series))
		volumes := make([]float64, len(series))
		for i, bar := range series {
			closes[i] = bar.Close
			volumes[i] = bar.Volume
		}

		missing := false
		row.Momentum20, missing = fill(pctChange(closes, momentum20Periods), missing)
		row.Momentum60, missing = fill(pctChange(closes, momentum60Periods), missing)
		row.Volatility20, missing = fill(rollingReturnStd(closes, rollingWindow), missing)
		row.AvgVolume20, missing = fill(rollingMean(volumes, rollingWindow), missing)
		row.IndicatorMissing = missing

		rows = append(rows, row)
	}

	b.logger.WithFields(map[string]interface{}{
		"as_of":   asOf.Format("2006-01-02"),
		"tickers": len(byTicker),
		"rows":    len(rows),
	}).Debug("Computed indicators")

	return rows
}

// fill replaces an undefined value with 0 and accumulates the missing
// flag.
func fill(value float64, missing bool) (float64, bool) {
	if math.IsNaN(value) {
		return 0, true
	}
	return value, missing
}

// pctChange returns the percentage change of the last element over the
// element `periods` positions earlier, or NaN when history is too short.
func pctChange(values []float64, periods int) float64 {
	n := len(values)
	if n < periods+1 {
		return math.NaN()
	}
	base := values[n-1-periods]
	if base == 0 {
		return math.NaN()
	}
	return values[n-1]/base - 1
}

// rollingReturnStd returns the sample standard deviation of the last
// `window` daily returns, or NaN when fewer are available.
func rollingReturnStd(closes []float64, window int) float64 {
	n := len(closes)
	if n < window+1 {
		return math.NaN()
	}

	returns := make([]float64, 0, window)
	for i := n - window; i < n; i++ {
		prev := closes[i-1]
		if prev == 0 {
			return math.NaN()
		}
		returns = append(returns, closes[i]/prev-1)
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	// Sample variance, matching a rolling std with ddof=1.
	variance /= float64(len(returns) - 1)

	return math.Sqrt(variance)
}

// rollingMean returns the mean of the last `window` values, or NaN when
// fewer are available.
func rollingMean(values []float64, window int) float64 {
	n := len(values)
	if n < window {
		return math.NaN()
	}
	sum := 0.0
	for i := n - window; i < n; i++ {
		sum += values[i]
	}
	return sum / float64(window)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
