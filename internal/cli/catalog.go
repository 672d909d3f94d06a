package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/deixis/emuharness/internal/scenario"
	"github.com/deixis/emuharness/internal/workflow"
)

// CatalogOptions holds flags for the catalog command.
type CatalogOptions struct {
	*RootOptions
	Machine string
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the scenarios a run would execute",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := opts.loadConfig()
			if err != nil {
				return WrapExitError(ExitCommandError, "loading config", err)
			}
			cat, err := workflow.Catalog(loaded.Config, workflow.Overrides{Machine: opts.Machine})
			if err != nil {
				return WrapExitError(ExitCommandError, "building catalog", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), catalogTable(cat))
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Machine, "machine", "M", "", "emulated machine name (default: raspberrypi-pico)")

	return cmd
}

func catalogTable(cat *scenario.Catalog) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "Scenario", "Arguments", "Timeout", "Fallback")
	for _, sc := range cat.All() {
		t.Row(
			fmt.Sprint(sc.Ordinal()),
			sc.Name(),
			strings.Join(sc.Args(), " "),
			sc.Timeout().String(),
			string(sc.Policy()),
		)
	}
	return t.String()
}
