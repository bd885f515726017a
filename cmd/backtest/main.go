package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile       string
	debug         bool
	snapshotsPath string
	quotesPath    string
	outDir        string
)

var rootCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay recorded option-chain snapshots against entry rules",
	Long: `backtest replays stored market snapshots day by day, resolves the entries
selected by the configured rules against recorded option quotes, and reports
win rate and P&L per rule. It also searches predicate combinations for
high win-rate filters.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults when empty)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&snapshotsPath, "snapshots", "", "snapshot feed file or directory to load before the run")
	rootCmd.PersistentFlags().StringVar(&quotesPath, "quotes", "", "quote feed file or directory to load before the run")
	rootCmd.PersistentFlags().StringVarP(&outDir, "out", "o", "", "directory for report files")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
