package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lix-it/prospector/internal/collector"
	"github.com/lix-it/prospector/internal/store"
	"github.com/lix-it/prospector/pkg/lix"
)

func newRunCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a collection",
		Long: `Run walks a collection to completion. Every run is restartable: progress
is persisted as it happens, and re-running resumes where the last run
stopped without re-collecting or duplicating anything.`,
	}

	cmd.AddCommand(
		newRunSourcesCommand(a, "orgs", "Enrich imported organisations by LinkedIn URL", store.OrgSources,
			func(c *lix.Client) collector.LookupFunc { return c.GetOrganisationByLinkedIn }),
		newRunSourcesCommand(a, "people", "Enrich imported people by LinkedIn URL", store.PeopleSources,
			func(c *lix.Client) collector.LookupFunc { return c.GetPersonByLinkedIn }),
		newRunSourcesCommand(a, "domains", "Enrich imported domains to organisation profiles", store.DomainSources,
			func(c *lix.Client) collector.LookupFunc { return c.GetOrganisationByDomain }),
		newRunEmailsCommand(a),
		newRunEmployeesCommand(a),
		newRunSearchCommand(a),
		newRunLeadsCommand(a),
	)
	return cmd
}

func newRunSourcesCommand(a *app, name, short string, set store.SourceSet, lookup func(*lix.Client) collector.LookupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			a.serveMetrics(ctx)

			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			client, err := a.lixClient()
			if err != nil {
				return err
			}

			repo := store.NewSourceRepository(db, set)
			stats, err := collector.NewSourceCollector(repo, name, lookup(client)).Run(ctx)
			if err != nil {
				return err
			}

			a.logger.Info().
				Int("collected", stats.Collected).
				Int("unresolved", stats.Unresolved).
				Msg("Run finished")
			return nil
		},
	}
}

func newRunEmailsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "emails",
		Short: "Look up email addresses for queued profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			a.serveMetrics(ctx)

			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			client, err := a.lixClient()
			if err != nil {
				return err
			}

			repo := store.NewEmailRepository(db)
			stats, err := collector.NewEmailCollector(repo, client).Run(ctx)
			if err != nil {
				return err
			}

			a.logger.Info().
				Int("attempted", stats.Collected).
				Int("unresolved", stats.Unresolved).
				Msg("Run finished")
			return nil
		},
	}
}

func newRunEmployeesCommand(a *app) *cobra.Command {
	var pageSize int

	cmd := &cobra.Command{
		Use:   "employees <org-id>...",
		Short: "Collect the full employee list of one or more organisations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			a.serveMetrics(ctx)

			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			client, err := a.lookcClient()
			if err != nil {
				return err
			}

			c := collector.NewEmployeeCollector(client, store.NewEmployeeRepository(db), store.NewRunStateRepository(db))
			if pageSize > 0 {
				c.SetPageSize(pageSize)
			}
			for _, orgID := range args {
				collected, err := c.Run(ctx, orgID)
				if err != nil {
					return fmt.Errorf("collect employees of %s: %w", orgID, err)
				}
				a.logger.Info().Str("org_id", orgID).Int("collected", collected).Msg("Organisation finished")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&pageSize, "page-size", 0, "employees per page request")
	return cmd
}

func newRunSearchCommand(a *app) *cobra.Command {
	var (
		searchURL string
		searchKey string
		maxItems  int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Collect a standard LinkedIn people search",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if searchURL == "" {
				return fmt.Errorf("--url is required")
			}
			key := searchKey
			if key == "" {
				key = searchURL
			}

			ctx, cancel := signalContext()
			defer cancel()
			a.serveMetrics(ctx)

			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			client, err := a.lixClient()
			if err != nil {
				return err
			}

			c := collector.NewSearchCollector(client, store.NewSearchRepository(db), store.NewRunStateRepository(db))
			collected, err := c.RunPeople(ctx, key, searchURL, maxItems)
			if err != nil {
				return err
			}

			a.logger.Info().Str("search_key", key).Int("collected", collected).Msg("Run finished")
			return nil
		},
	}

	cmd.Flags().StringVar(&searchURL, "url", "", "LinkedIn people search URL")
	cmd.Flags().StringVar(&searchKey, "key", "", "search key for stored results (defaults to the URL)")
	cmd.Flags().IntVar(&maxItems, "max-results", 0, "stop after this many results (0 = all)")
	return cmd
}

func newRunLeadsCommand(a *app) *cobra.Command {
	var (
		searchURL string
		searchKey string
		titles    []string
		companies []string
		maxItems  int
	)

	cmd := &cobra.Command{
		Use:   "leads",
		Short: "Collect a Sales Navigator leads search",
		Long: `Leads collects a Sales Navigator people search. Pass a full search URL
with --url, or let the command build one by resolving --title and
--company values to their Sales Navigator facets.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if searchURL == "" && len(titles) == 0 && len(companies) == 0 {
				return fmt.Errorf("--url or at least one --title/--company is required")
			}

			ctx, cancel := signalContext()
			defer cancel()
			a.serveMetrics(ctx)

			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			client, err := a.lixClient()
			if err != nil {
				return err
			}

			if searchURL == "" {
				searchURL, err = buildLeadsURL(ctx, client, titles, companies)
				if err != nil {
					return err
				}
			}

			key := searchKey
			if key == "" {
				key = leadsKey(searchURL, titles, companies)
			}

			c := collector.NewSearchCollector(client, store.NewSearchRepository(db), store.NewRunStateRepository(db))
			collected, err := c.RunLeads(ctx, key, searchURL, maxItems)
			if err != nil {
				return err
			}

			a.logger.Info().Str("search_key", key).Int("collected", collected).Msg("Run finished")
			return nil
		},
	}

	cmd.Flags().StringVar(&searchURL, "url", "", "Sales Navigator search URL")
	cmd.Flags().StringVar(&searchKey, "key", "", "search key for stored results")
	cmd.Flags().StringSliceVar(&titles, "title", nil, "job title filter (repeatable)")
	cmd.Flags().StringSliceVar(&companies, "company", nil, "company filter (repeatable)")
	cmd.Flags().IntVar(&maxItems, "max-results", 0, "stop after this many results (0 = all)")
	return cmd
}

// buildLeadsURL resolves the title and company filters to facets and builds
// the search URL.
func buildLeadsURL(ctx context.Context, client *lix.Client, titles, companies []string) (string, error) {
	titleFacets := make([]lix.Facet, 0, len(titles))
	for _, title := range titles {
		facet, err := client.LookupFacet(ctx, lix.FacetTypeTitle, title)
		if err != nil {
			return "", fmt.Errorf("resolve title %q: %w", title, err)
		}
		titleFacets = append(titleFacets, *facet)
	}

	companyFacets := make([]lix.Facet, 0, len(companies))
	for _, company := range companies {
		facet, err := client.LookupFacet(ctx, lix.FacetTypeCompany, company)
		if err != nil {
			return "", fmt.Errorf("resolve company %q: %w", company, err)
		}
		companyFacets = append(companyFacets, *facet)
	}

	return lix.BuildLeadsSearchURL(lix.BuildLeadsFilters(titleFacets, companyFacets)), nil
}

// leadsKey derives a stable search key from the filters, falling back to
// the URL when none were given.
func leadsKey(searchURL string, titles, companies []string) string {
	if len(titles) == 0 && len(companies) == 0 {
		return searchURL
	}
	parts := append(append([]string{}, titles...), companies...)
	return "leads:" + strings.Join(parts, ",")
}
