package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lix-it/prospector/internal/csvio"
	"github.com/lix-it/prospector/internal/store"
)

func newExportCommand(a *app) *cobra.Command {
	var (
		searchKey string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "export {orgs|people|emails|employees|search}",
		Short: "Write collected data to stdout as CSV",
		Args:  cobra.ExactArgs(1),
		ValidArgs: []string{
			"orgs", "people", "emails", "employees", "search",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()

			var out *os.File = os.Stdout
			if output != "" {
				out, err = os.Create(output)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer out.Close()
			}

			switch args[0] {
			case "orgs":
				return csvio.ExportOrgs(ctx, out, store.NewSourceRepository(db, store.OrgSources))
			case "people":
				return csvio.ExportPeople(ctx, out, store.NewSourceRepository(db, store.PeopleSources))
			case "emails":
				return csvio.ExportEmails(ctx, out, store.NewEmailRepository(db))
			case "employees":
				return csvio.ExportEmployees(ctx, out, store.NewEmployeeRepository(db))
			case "search":
				if searchKey == "" {
					return fmt.Errorf("--key is required for search export")
				}
				return csvio.ExportSearchResults(ctx, out, store.NewSearchRepository(db), searchKey)
			default:
				return fmt.Errorf("unknown export kind %q", args[0])
			}
		},
	}

	cmd.Flags().StringVar(&searchKey, "key", "", "search key to export")
	cmd.Flags().StringVar(&output, "output", "", "write to this file instead of stdout")
	return cmd
}
