// Command cmsctl administers a Trail CMS installation: user accounts, pending
// content pull requests and database migrations.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"trailcms/api/internal/config"
	"trailcms/api/internal/store"
)

var rootCmd = &cobra.Command{
	Use:           "cmsctl",
	Short:         "Administer the Trail CMS",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openStore connects to the configured database. The caller closes the
// returned handle.
func openStore(ctx context.Context, cfg config.Config) (*sql.DB, *store.PostgresStore, error) {
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return db, store.NewPostgresStore(db), nil
}
