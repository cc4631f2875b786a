package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rubicon/flightlog/internal/ingest"
)

var (
	importStartRow    int
	importConcurrency int
)

var importCmd = &cobra.Command{
	Use:   "import <file.xlsx>...",
	Short: "Import sortie journals",
	Long: `Imports every given file to completion. Files already imported with the same
content are skipped; an interrupted import resumes after its last committed row.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().IntVar(&importStartRow, "start-row", 0, "restart the file at this row (single file only)")
	importCmd.Flags().IntVar(&importConcurrency, "concurrency", 0, "files imported in parallel (default IMPORT_CONCURRENCY)")
}

func runImport(cmd *cobra.Command, args []string) error {
	if importStartRow != 0 && len(args) > 1 {
		return fmt.Errorf("--start-row needs exactly one file")
	}

	sources := make([]ingest.SourceFile, 0, len(args))
	for _, path := range args {
		src, err := ingest.Fingerprint(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		sources = append(sources, src)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var summaries []ingest.Summary
	if len(sources) == 1 {
		var override *int
		if importStartRow != 0 {
			override = &importStartRow
		}
		summary, runErr := a.Importer.Run(ctx, sources[0], override, func(res ingest.BatchResult) {
			if !jsonOut {
				printf(cmd, "  row %d: +%d created, %d duplicate, %d failed\n",
					res.CheckpointAdvancedTo, res.Created, res.SkippedDuplicate, res.SkippedError)
			}
		})
		summaries, err = []ingest.Summary{summary}, runErr
	} else {
		concurrency := importConcurrency
		if concurrency <= 0 {
			concurrency = a.Config.Import.Concurrency
		}
		summaries, err = a.Importer.ImportAll(ctx, sources, concurrency)
	}

	if jsonOut {
		if perr := printJSON(cmd.OutOrStdout(), summaries); perr != nil {
			return perr
		}
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tCREATED\tDUPLICATE\tFAILED\tLAST ROW\tSTATUS")
	for _, s := range summaries {
		status := "in progress"
		switch {
		case s.AlreadyCompleted:
			status = "already imported"
		case s.Completed:
			status = "completed"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\n",
			s.FileName, s.Created, s.SkippedDuplicate, s.SkippedError, s.LastRow, status)
	}
	if ferr := tw.Flush(); ferr != nil {
		return ferr
	}
	return err
}
