// Package cli implements prefsctl, the operator tool for the preferences store.
package cli

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/pscheid92/portalprefs/internal/adapter/storage"
	"github.com/pscheid92/portalprefs/internal/platform/config"
	"github.com/pscheid92/portalprefs/internal/platform/version"
)

type globalFlags struct {
	driver      string
	sqlitePath  string
	databaseURL string
	jsonOutput  bool
}

// NewRootCommand builds the prefsctl command tree.
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:     "prefsctl",
		Version: version.Get().Version,
		Short:   "Manage portal profiles, stylesheets and device rules",
		Long: `prefsctl administers the store behind the portal preferences service.

Store settings come from the same environment as the server (STORE_DRIVER,
DATABASE_URL, SQLITE_PATH); the flags below override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&g.driver, "driver", "", "store driver (postgres or sqlite)")
	pf.StringVar(&g.sqlitePath, "sqlite-path", "", "SQLite database file")
	pf.StringVar(&g.databaseURL, "database-url", "", "PostgreSQL connection URL")
	pf.BoolVar(&g.jsonOutput, "json", false, "print machine-readable JSON")

	root.AddGroup(
		&cobra.Group{ID: "store", Title: "Store Commands:"},
		&cobra.Group{ID: "rules", Title: "Rule Commands:"},
	)
	root.AddCommand(
		newMigrateCmd(g),
		newSeedCmd(g),
		newResolveCmd(g),
		newRulesCmd(g),
		newVersionCmd(g),
	)
	return root
}

// Execute runs prefsctl with the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (g *globalFlags) openStore(ctx context.Context) (storage.Backend, func(), error) {
	cfg, err := config.LoadStore(func(c *config.Config) {
		if g.driver != "" {
			c.StoreDriver = g.driver
		}
		if g.sqlitePath != "" {
			c.SQLitePath = g.sqlitePath
		}
		if g.databaseURL != "" {
			c.DatabaseURL = g.databaseURL
		}
	})
	if err != nil {
		return nil, nil, err
	}
	return storage.Open(ctx, cfg, nil)
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			if g.jsonOutput {
				return outputJSON(cmd.OutOrStdout(), info)
			}
			w := cmd.OutOrStdout()
			printLabelValue(w, "Version", info.Version)
			printLabelValue(w, "Commit", info.Commit)
			printLabelValue(w, "Built", info.BuildTime)
			printLabelValue(w, "Go", info.GoVersion)
			return nil
		},
	}
}
