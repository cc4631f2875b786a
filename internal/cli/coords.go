package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"rubicon/flightlog/internal/geo"
)

var coordsForce bool

var coordsCmd = &cobra.Command{
	Use:   "coords",
	Short: "Coordinate cache maintenance",
}

var coordsResolveCmd = &cobra.Command{
	Use:   "resolve <record-id>",
	Short: "Show the coordinates of one flight record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		rec, err := a.Records.FindByID(ctx, args[0])
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("flight record %s not found", args[0])
		}

		var res geo.CoordinateResult
		if coordsForce {
			if res, err = a.Resolver.ForceResolve(ctx, rec); err != nil {
				return err
			}
		} else {
			res = a.Resolver.Resolve(ctx, rec)
		}

		if jsonOut {
			return printJSON(cmd.OutOrStdout(), res)
		}
		if res.IsSentinel() {
			printf(cmd, "%s: not convertible\n", rec.ID)
			return nil
		}
		printf(cmd, "%s: legacy %.6f %.6f, global %.6f %.6f\n",
			rec.ID, res.LegacyLat, res.LegacyLon, res.GlobalLat, res.GlobalLon)
		return nil
	},
}

var coordsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear failed conversions so the next backfill retries them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Records.InvalidateSentinels(context.Background())
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), map[string]int64{"invalidated": n})
		}
		printf(cmd, "%d records queued for another attempt\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(coordsCmd)
	coordsCmd.AddCommand(coordsResolveCmd, coordsResetCmd)
	coordsResolveCmd.Flags().BoolVar(&coordsForce, "force", false, "drop the cached value and convert again")
}
