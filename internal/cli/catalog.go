package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/temcen/retouch/internal/engine"
)

func newCatalogCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Work with enhancement profile catalogs",
	}
	cmd.PersistentFlags().StringVarP(&file, "file", "f", "", "YAML catalog file (default: built-in catalog)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "validate",
			Short: "Check a catalog for unknown types, bad bounds and prerequisite cycles",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				catalog, err := loadCatalog(file)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "catalog ok: %d profiles\n", catalog.Len())
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List the profiles of a catalog",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				catalog, err := loadCatalog(file)
				if err != nil {
					return err
				}
				return printProfiles(cmd, catalog)
			},
		},
		&cobra.Command{
			Use:   "export",
			Short: "Write a catalog as YAML, e.g. to start from the built-in profiles",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				catalog, err := loadCatalog(file)
				if err != nil {
					return err
				}
				return engine.EncodeCatalog(cmd.OutOrStdout(), catalog)
			},
		},
	)
	return cmd
}

func printProfiles(cmd *cobra.Command, catalog *engine.Catalog) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMODE\tMULTIPLIER\tOPERATIONS")
	for _, p := range catalog.Profiles() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d\n", p.ID, p.Name, p.Mode, p.IntensityMultiplier, len(p.Configurations))
	}
	return w.Flush()
}
