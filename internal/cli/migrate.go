package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "migrate",
		GroupID: "store",
		Short:   "Bring the store schema up to date",
		Long: `Applies all pending schema migrations. PostgreSQL migrations run under an
advisory lock, so concurrent server starts are safe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := g.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			v, err := store.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			if g.jsonOutput {
				return outputJSON(cmd.OutOrStdout(), map[string]any{"driver": g.driver, "schema_version": v})
			}
			printSuccess(cmd.OutOrStdout(), "Schema is up to date")
			printLabelValue(cmd.OutOrStdout(), "Version", fmt.Sprint(v))
			return nil
		},
	}
}
