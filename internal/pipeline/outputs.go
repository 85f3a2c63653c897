package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ashare-lab/screener/internal/contracts"
)

// WriteOutputs writes the report as pretty JSON plus a flat CSV of the
// result rows under outputDir, named report_{as_of}_top{N}.
func WriteOutputs(rep *contracts.Report, outputDir string, asOf time.Time, topN int) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	prefix := filepath.Join(outputDir, fmt.Sprintf("report_%s_top%d", asOf.Format("2006-01-02"), topN))

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(prefix+".json", data, 0o644); err != nil {
		return fmt.Errorf("write report json: %w", err)
	}

	return writeResultsCSV(rep.Results, prefix+".csv")
}

func writeResultsCSV(results []contracts.ReportRow, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"ticker", "name", "industry", "final_score", "data_date", "reason",
		"score_breakdown.score_total",
		"score_breakdown.score_theme_total",
		"score_breakdown.score_tech_total",
		"score_breakdown.momentum_20_rank",
		"score_breakdown.momentum_60_rank",
		"score_breakdown.volume_rank",
		"indicators.momentum_20",
		"indicators.momentum_60",
		"indicators.volatility_20",
		"indicators.avg_volume_20",
		"themes_used",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, row := range results {
		record := []string{
			row.Ticker,
			row.Name,
			row.Industry,
			formatFloat(row.FinalScore),
			row.DataDate,
			row.Reason,
			formatFloat(row.ScoreBreakdown.ScoreTotal),
			formatFloat(row.ScoreBreakdown.ScoreThemeTotal),
			formatFloat(row.ScoreBreakdown.ScoreTechTotal),
			formatFloat(row.ScoreBreakdown.Momentum20Rank),
			formatFloat(row.ScoreBreakdown.Momentum60Rank),
			formatFloat(row.ScoreBreakdown.VolumeRank),
			formatFloat(row.Indicators.Momentum20),
			formatFloat(row.Indicators.Momentum60),
			formatFloat(row.Indicators.Volatility20),
			formatFloat(row.Indicators.AvgVolume20),
			strings.Join(row.ReasonStruct.ThemesUsed, "|"),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
