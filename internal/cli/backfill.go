package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rubicon/flightlog/internal/workers"
)

var (
	backfillBatchSize int
	backfillOnce      bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Resolve coordinates of records without a cached value",
	RunE:  runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)
	backfillCmd.Flags().IntVar(&backfillBatchSize, "batch-size", 0, "records per sweep (default BACKFILL_BATCH_SIZE)")
	backfillCmd.Flags().BoolVar(&backfillOnce, "once", false, "run a single sweep instead of draining the backlog")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	batchSize := backfillBatchSize
	if batchSize <= 0 {
		batchSize = a.Config.Backfill.BatchSize
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var res workers.SweepResult
	if backfillOnce {
		res, err = a.Backfill.RunSweep(ctx, batchSize)
	} else {
		res, err = a.Backfill.RunUntilDrained(ctx, batchSize)
	}
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(cmd.OutOrStdout(), res)
	}
	printf(cmd, "selected %d, resolved %d, failed %d\n", res.Selected, res.Success, res.Errors)
	return nil
}
