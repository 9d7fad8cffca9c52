package cli

import (
	"errors"
	"fmt"

	"quill/app/repositories/postgres"
	"quill/config"

	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the PostgreSQL schema",
		Long: `Create or update the PostgreSQL tables used when storage.driver is postgres.
The schema is idempotent, so running it twice is harmless.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Storage.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate needs storage.driver=postgres, got %q", a.cfg.Storage.Driver)
			}
			if a.cfg.Storage.Postgres.URL == "" {
				return errors.New("storage.postgres.url is not set")
			}
			pool, err := postgres.Connect(cmd.Context(), a.cfg.Storage.Postgres.URL, a.cfg.Storage.Postgres.MaxConns)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := postgres.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		},
	}
}
