package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lix-it/prospector/internal/csvio"
	"github.com/lix-it/prospector/internal/store"
)

func newImportCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import {orgs|people|domains|profiles} <file.csv>",
		Short: "Import a seed CSV into the database",
		Long: `Import reads a headered CSV into one of the seed tables. The natural key
is taken from the first of the columns link, linkedin_url, url or domain;
a name column is used when present. Re-importing the same file is a no-op.`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"orgs", "people", "domains", "profiles"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, path := args[0], args[1]

			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open csv: %w", err)
			}
			defer file.Close()

			ctx := cmd.Context()

			var imported int
			switch kind {
			case "orgs":
				imported, err = csvio.ImportSources(ctx, file, store.NewSourceRepository(db, store.OrgSources))
			case "people":
				imported, err = csvio.ImportSources(ctx, file, store.NewSourceRepository(db, store.PeopleSources))
			case "domains":
				imported, err = csvio.ImportSources(ctx, file, store.NewSourceRepository(db, store.DomainSources))
			case "profiles":
				imported, err = csvio.ImportProfiles(ctx, file, store.NewEmailRepository(db))
			default:
				return fmt.Errorf("unknown import kind %q", kind)
			}
			if err != nil {
				return err
			}

			a.logger.Info().Str("kind", kind).Int("rows", imported).Msg("Import finished")
			return nil
		},
	}
	return cmd
}
