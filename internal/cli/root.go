package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"rubicon/flightlog/internal/app"
	"rubicon/flightlog/internal/config"
	"rubicon/flightlog/internal/logging"
)

var (
	envFiles []string
	jsonOut  bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "flightlog",
	Short: "Flight journal import and coordinate tools",
	Long: `flightlog imports sortie journals from .xlsx files into the database and
maintains the coordinate cache of the imported records.

Imports are resumable: every committed batch advances a per-file checkpoint,
so an interrupted run continues where it stopped.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(envFiles...); err != nil {
			return err
		}
		return logging.Init(cfg.AppEnv)
	},
}

func Execute() error {
	defer logging.Close()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, ".env files to load (default .env)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "JSON output")
}

// openApp wires the components. The caller closes the app.
func openApp() (*app.App, error) {
	return app.New(cfg, prometheus.NewRegistry())
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
