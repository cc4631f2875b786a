package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rubicon/flightlog/internal/catalog"
	models "rubicon/flightlog/internal/models/gorm"
)

var catalogDomain string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the reference catalog",
}

var catalogSeedCmd = &cobra.Command{
	Use:   "seed <file.csv>",
	Short: "Load canonical names from a CSV export",
	Long: `Reads a CSV (comma or semicolon separated) with a "name" column and an
optional "domain" column, normalizes every name and stores the new ones.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d := catalog.Domain(catalogDomain)
		if catalogDomain != "" && !d.Valid() {
			return fmt.Errorf("unknown domain %q", catalogDomain)
		}

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		if err := a.Catalog.Load(ctx); err != nil {
			return err
		}
		n, err := a.Catalog.Seed(ctx, f, d)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), map[string]int{"created": n})
		}
		printf(cmd, "%d new catalog entries\n", n)
		return nil
	},
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		var entities []models.ReferenceEntity
		if catalogDomain != "" {
			if !catalog.Domain(catalogDomain).Valid() {
				return fmt.Errorf("unknown domain %q", catalogDomain)
			}
			entities, err = a.References.ListByDomain(ctx, catalogDomain)
		} else {
			entities, err = a.References.LoadAll(ctx)
		}
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), entities)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DOMAIN\tDISPLAY NAME\tKEY\tKIND")
		for _, e := range entities {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Domain, e.DisplayName, e.ComparisonKey, e.Kind)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogSeedCmd, catalogListCmd)
	catalogCmd.PersistentFlags().StringVar(&catalogDomain, "domain", "", "target, platform, payload or fuze")
}
