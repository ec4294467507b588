package cmd

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var dispatchMaxJobs int

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run one batch of queued backtest jobs and print the outcomes as JSON",
	RunE:  runDispatch,
}

func init() {
	dispatchCmd.Flags().IntVar(&dispatchMaxJobs, "max-jobs", 0, "maximum number of jobs to claim (0 uses dispatcher.max_jobs)")
}

func runDispatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDep, err := NewAppDependency(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := appDep.Close(); err != nil {
			log.Printf("Failed to close app dependency: %v", err)
		}
	}()

	outcomes, err := appDep.Services().DispatcherService.Dispatch(ctx, dispatchMaxJobs)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(outcomes)
}
