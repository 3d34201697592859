// Package cli implements retouchctl, the offline companion to the server:
// catalog checks and recommendations computed from snapshot files.
package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/temcen/retouch/internal/engine"
)

// NewRootCommand builds the retouchctl command tree writing to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "retouchctl",
		Short:         "Inspect enhancement catalogs and compute recommendations offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.CompletionOptions.HiddenDefaultCmd = true

	root.AddCommand(newCatalogCommand(), newRecommendCommand())
	return root
}

// loadCatalog reads path, or returns the built-in catalog for "".
func loadCatalog(path string) (*engine.Catalog, error) {
	if path == "" {
		return engine.DefaultCatalog(), nil
	}
	return engine.LoadCatalog(path)
}
