package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashare-lab/screener/internal/provider"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Validate a frozen snapshot directory",
	Long: `Loads the membership and price files of one snapshot date and
reports ticker counts, so a broken snapshot is caught before a run.

Example:
  go run ./cmd/screener snapshot --date 2026-01-20`,
	RunE: runSnapshotCheck,
}

var snapshotDate string

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().StringVar(&snapshotDate, "date", "", "Snapshot date YYYY-MM-DD (required)")
	snapshotCmd.MarkFlagRequired("date")
}

func runSnapshotCheck(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	asOf, err := time.Parse("2006-01-02", snapshotDate)
	if err != nil {
		return fmt.Errorf("parse snapshot date %q: %w", snapshotDate, err)
	}

	prov := provider.NewSnapshotProvider(rt.cfg.Screener.SnapshotDir, asOf, asOf, rt.logger)
	ctx := context.Background()

	universe, err := prov.GetStockUniverse(ctx, nil)
	if err != nil {
		return fmt.Errorf("membership check failed: %w", err)
	}

	bars, err := prov.GetPriceHistory(ctx, universe, asOf, rt.cfg.Screener.LookbackDays, 0)
	if err != nil {
		return fmt.Errorf("prices check failed: %w", err)
	}

	priceTickers := make(map[string]bool)
	for _, bar := range bars {
		priceTickers[bar.Ticker] = true
	}

	fmt.Printf("Snapshot %s OK\n", snapshotDate)
	fmt.Printf("  membership rows:   %d\n", len(universe))
	fmt.Printf("  price bars:        %d\n", len(bars))
	fmt.Printf("  tickers with bars: %d\n", len(priceTickers))
	return nil
}
