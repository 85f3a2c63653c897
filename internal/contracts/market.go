package contracts

import (
	"strings"
	"time"
)

// StockInfo holds static per-run attributes of one ticker.
type StockInfo struct {
	Ticker      string `json:"ticker"`
	Name        string `json:"name"`
	Industry    string `json:"industry"`
	Concept     string `json:"concept"`
	Description string `json:"description"`
}

// PriceBar is one daily bar of the price history.
type PriceBar struct {
	Date        time.Time `json:"date"`
	Ticker      string    `json:"ticker"`
	Name        string    `json:"name"`
	Industry    string    `json:"industry"`
	Concept     string    `json:"concept"`
	Description string    `json:"description"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
}

// NormalizeTicker zero-pads numeric A-share codes to 6 digits.
func NormalizeTicker(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return s
		}
	}
	for len(s) < 6 {
		s = "0" + s
	}
	return s
}

// IndicatorRow holds the per-ticker technical indicators at the as-of
// date. Undefined indicators are zero-filled with IndicatorMissing set;
// a finished row never carries NaN.
type IndicatorRow struct {
	Ticker      string    `json:"ticker"`
	Name        string    `json:"name"`
	Industry    string    `json:"industry"`
	Concept     string    `json:"concept"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`

	Momentum20       float64 `json:"momentum_20"`
	Momentum60       float64 `json:"momentum_60"`
	Volatility20     float64 `json:"volatility_20"`
	AvgVolume20      float64 `json:"avg_volume_20"`
	IndicatorMissing bool    `json:"indicator_missing"`
}

// ScoredRow is an IndicatorRow plus theme and percentile scores.
type ScoredRow struct {
	IndicatorRow

	ThemeScore     float64 `json:"theme_score"`
	Momentum20Rank float64 `json:"momentum_20_rank"`
	Momentum60Rank float64 `json:"momentum_60_rank"`
	VolumeRank     float64 `json:"volume_rank"`
	FinalScore     float64 `json:"final_score"`
}

// Technical fusion weights. Fixed by design; the theme-weight ablation
// switch only touches the theme component.
const (
	WeightMomentum20 = 0.5
	WeightMomentum60 = 0.3
	WeightVolume     = 0.2
)

// TechnicalScore is the theme-free part of the final score.
func (r *ScoredRow) TechnicalScore() float64 {
	return WeightMomentum20*r.Momentum20Rank +
		WeightMomentum60*r.Momentum60Rank +
		WeightVolume*r.VolumeRank
}
