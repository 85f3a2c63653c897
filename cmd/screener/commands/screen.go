package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ashare-lab/screener/internal/pipeline"
)

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Run one screening pass",
	Long: `Runs the full screening pipeline for one as-of date and writes the
report JSON and CSV into the output directory.

Example:
  go run ./cmd/screener screen --date 2026-01-20
  go run ./cmd/screener screen --date 2026-01-20 --top 10 --provider snapshot
  go run ./cmd/screener screen --date 2026-01-20 --theme-weight 0 --no-cache`,
	RunE: runScreen,
}

var (
	screenDate         string
	screenTop          int
	screenSignals      string
	screenThemeMap     string
	screenProvider     string
	screenThemeWeight  float64
	screenNoCache      bool
	screenNoFallback   bool
	screenSnapshotAsOf string
	screenMode         string
	screenCandidates   string
)

func init() {
	rootCmd.AddCommand(screenCmd)

	screenCmd.Flags().StringVar(&screenDate, "date", "", "As-of date YYYY-MM-DD (required)")
	screenCmd.Flags().IntVar(&screenTop, "top", 0, "Top N results (default from config)")
	screenCmd.Flags().StringVar(&screenSignals, "signals", "", "Signals YAML path")
	screenCmd.Flags().StringVar(&screenThemeMap, "theme-map", "", "Theme to industry mapping CSV")
	screenCmd.Flags().StringVar(&screenProvider, "provider", "", "Data provider: mock/snapshot/postgres/eastmoney")
	screenCmd.Flags().Float64Var(&screenThemeWeight, "theme-weight", 1, "Theme score weight; 0 disables the theme component")
	screenCmd.Flags().BoolVar(&screenNoCache, "no-cache", false, "Disable cache usage")
	screenCmd.Flags().BoolVar(&screenNoFallback, "no-fallback", false, "Fail when the provider cannot be built")
	screenCmd.Flags().StringVar(&screenSnapshotAsOf, "snapshot-as-of", "", "Snapshot date YYYY-MM-DD for the snapshot provider")
	screenCmd.Flags().StringVar(&screenMode, "mode", "enhanced", "Candidate export mode: enhanced/tech_only/all")
	screenCmd.Flags().StringVar(&screenCandidates, "candidates", "", "Candidates JSONL output path (optional)")
	screenCmd.MarkFlagRequired("date")
}

func runScreen(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	opts := pipeline.Options{
		Date:           screenDate,
		TopN:           screenTop,
		SignalsPath:    screenSignals,
		ThemeMapPath:   screenThemeMap,
		Provider:       screenProvider,
		SnapshotAsOf:   screenSnapshotAsOf,
		NoCache:        screenNoCache,
		NoFallback:     screenNoFallback,
		Mode:           screenMode,
		CandidatesPath: screenCandidates,
	}
	if cmd.Flags().Changed("theme-weight") {
		opts.ThemeWeight = screenThemeWeight
		opts.ThemeWeightSet = true
	}

	rep, err := rt.pipeline.Run(context.Background(), opts)
	if err != nil {
		return err
	}

	fmt.Printf("As-of date: %s\n", rep.AsOf)
	fmt.Printf("Top N: %d\n", rep.TopN)
	if excluded := rep.Meta.Excluded["insufficient_history_60"]; excluded > 0 {
		fmt.Printf("Excluded (insufficient_history_60): %d\n", excluded)
	}
	for i, row := range rep.Results {
		fmt.Printf("%02d %s %s | %s | data_date=%s\n", i+1, row.Ticker, row.Name, row.Reason, row.DataDate)
	}
	return nil
}
