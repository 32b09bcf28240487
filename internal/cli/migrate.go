package cli

import (
	"github.com/spf13/cobra"

	"github.com/lix-it/prospector/internal/store"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := store.Open(a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := store.Migrate(cmd.Context(), db); err != nil {
				return err
			}

			a.logger.Info().Str("db", a.cfg.DBPath).Msg("Schema up to date")
			return nil
		},
	}
}
