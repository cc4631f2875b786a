package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"rubicon/flightlog/internal/models/dtos/responses"
	models "rubicon/flightlog/internal/models/gorm"
)

func checkpointJSON(cp *models.ImportCheckpoint) responses.CheckpointResponse {
	return responses.CheckpointResponse{
		ID:               cp.ID,
		FileName:         cp.FileName,
		ContentHash:      cp.ContentHash,
		ByteSize:         cp.ByteSize,
		LastProcessedRow: cp.LastProcessedRow,
		TotalRows:        cp.TotalRows,
		TotalCreated:     cp.TotalCreated,
		Completed:        cp.Completed,
		LastUpdatedAt:    cp.LastUpdatedAt,
	}
}

var checkpointLimit int

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect and rewind import checkpoints",
}

var checkpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List checkpoints, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		cps, err := a.Importer.Checkpoints().List(context.Background(), checkpointLimit)
		if err != nil {
			return err
		}
		if jsonOut {
			out := make([]responses.CheckpointResponse, 0, len(cps))
			for i := range cps {
				out = append(out, checkpointJSON(&cps[i]))
			}
			return printJSON(cmd.OutOrStdout(), out)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tFILE\tLAST ROW\tCREATED\tCOMPLETED\tUPDATED")
		for _, cp := range cps {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%t\t%s\n",
				cp.ID, cp.FileName, cp.LastProcessedRow, cp.TotalCreated, cp.Completed,
				cp.LastUpdatedAt.Format(time.DateTime))
		}
		return tw.Flush()
	},
}

var checkpointResetCmd = &cobra.Command{
	Use:   "reset <checkpoint-id> <last-processed-row>",
	Short: "Move a checkpoint so the next import resumes after the given row",
	Long: `Rewinds (or advances) a checkpoint. The next import of the file resumes at
last-processed-row+1. Completed checkpoints are reopened. Do not run while the
file is being imported.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		row, err := strconv.Atoi(args[1])
		if err != nil || row < 0 {
			return fmt.Errorf("row must be a non-negative integer, got %q", args[1])
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		store := a.Importer.Checkpoints()
		cp, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if err := store.Reset(ctx, cp, row); err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), checkpointJSON(cp))
		}
		printf(cmd, "%s (%s) resumes at row %d\n", cp.ID, cp.FileName, cp.LastProcessedRow+1)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointListCmd, checkpointResetCmd)
	checkpointListCmd.Flags().IntVar(&checkpointLimit, "limit", 50, "maximum checkpoints shown")
}
