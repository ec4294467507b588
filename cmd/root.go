package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "backtest-worker",
	Short: "Backtest job-queue worker",
	Long:  "backtest-worker claims queued strategy backtests, replays them against market data and stores the results.",
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(dispatchCmd)
	rootCmd.AddCommand(migrateCmd)
}

func Execute() error {
	return rootCmd.Execute()
}
