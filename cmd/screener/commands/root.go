package commands

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "screener",
	Short: "Thematic A-share screener",
	Long: `Pre-holiday A-share screener CLI.

Maps theme signals to concept/industry terms, scores the candidate
universe on theme hits plus technical percentile ranks, and writes an
explainable top-N report.

Usage:
  go run ./cmd/screener [command]

Examples:
  go run ./cmd/screener screen --date 2026-01-20
  go run ./cmd/screener screen --date 2026-01-20 --provider snapshot --top 10
  go run ./cmd/screener api
  go run ./cmd/screener scheduler start`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
