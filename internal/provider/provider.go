package provider

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/ashare-lab/screener/internal/contracts"
)

// DataProvider supplies the stock universe and its price history. Terms
// are the flattened concept/industry vocabulary from the theme catalog;
// providers that cannot filter by them return the full universe.
type DataProvider interface {
	Name() string
	GetStockUniverse(ctx context.Context, terms []string) ([]contracts.StockInfo, error)
	GetPriceHistory(ctx context.Context, stocks []contracts.StockInfo, asOf time.Time, lookbackDays int, seed int64) ([]contracts.PriceBar, error)
}

// Seed derives the deterministic generator seed from the run date and
// the signals file hash, so a changed signals file reshuffles mock data.
func Seed(date, signalsHash string) int64 {
	sum := md5.Sum([]byte(date + signalsHash))
	hexDigest := hex.EncodeToString(sum[:])
	v, err := strconv.ParseInt(hexDigest[:8], 16, 64)
	if err != nil {
		return 0
	}
	return v
}

// PreviousTradingDate rolls a weekend date back to the previous Friday.
// A-share approximation: weekdays only, no holiday calendar.
func PreviousTradingDate(date time.Time) time.Time {
	switch date.Weekday() {
	case time.Saturday:
		return date.AddDate(0, 0, -1)
	case time.Sunday:
		return date.AddDate(0, 0, -2)
	default:
		return date
	}
}

// TradingCalendar returns the weekdays in [end-lookbackDays, end],
// ascending.
func TradingCalendar(end time.Time, lookbackDays int) []time.Time {
	start := end.AddDate(0, 0, -lookbackDays)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days = append(days, d)
		}
	}
	return days
}
