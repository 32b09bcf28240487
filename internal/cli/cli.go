// Package cli wires the prospector commands: schema migration, CSV import,
// collection runs, and CSV export.
package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lix-it/prospector/internal/config"
	"github.com/lix-it/prospector/internal/store"
	"github.com/lix-it/prospector/pkg/cache"
	"github.com/lix-it/prospector/pkg/lix"
	"github.com/lix-it/prospector/pkg/logging"
	"github.com/lix-it/prospector/pkg/lookc"
	"github.com/lix-it/prospector/pkg/metrics"
)

// app carries the wired dependencies through a command invocation.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	a := &app{}
	var (
		dbPath string
		apiKey string
	)

	root := &cobra.Command{
		Use:           "prospector",
		Short:         "Collect and enrich people and organisation data",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			if apiKey != "" {
				cfg.LixAPIKey = apiKey
			}
			a.cfg = cfg

			logging.Setup(logging.Config{
				Level:  logging.LogLevel(cfg.LogLevel),
				Pretty: cfg.LogFormat == "console",
				Output: os.Stderr,
			})
			a.logger = logging.NewLogger("cli")
			return nil
		},
	}

	root.PersistentFlags().StringVar(&dbPath, "db-path", "", "SQLite database file (overrides DB_PATH)")
	root.PersistentFlags().StringVar(&apiKey, "api-key", "", "Lix API key (overrides LIX_API_KEY)")

	root.AddCommand(
		newMigrateCommand(a),
		newImportCommand(a),
		newRunCommand(a),
		newExportCommand(a),
	)
	return root
}

// signalContext returns a context cancelled on SIGINT/SIGTERM. Collection
// progress is persisted per page, so cancellation is safe at any point.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openStore opens the existing database for a run or export command.
func (a *app) openStore() (*sqlx.DB, error) {
	return store.OpenExisting(a.cfg.DBPath)
}

// lixClient builds the Lix client, wiring in the Redis lookup cache when
// configured.
func (a *app) lixClient() (*lix.Client, error) {
	if a.cfg.LixAPIKey == "" {
		return nil, fmt.Errorf("LIX_API_KEY is not set")
	}

	cfg := lix.DefaultConfig(a.cfg.LixAPIKey)
	if a.cfg.Throttle > 0 {
		cfg.Throttle = a.cfg.Throttle
	}
	if a.cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
		cfg.Cache = cache.NewManager(redisClient, a.cfg.CacheTTL)
		a.logger.Info().Str("addr", a.cfg.RedisAddr).Msg("Lookup cache enabled")
	}

	return lix.New(cfg)
}

func (a *app) lookcClient() (*lookc.Client, error) {
	if a.cfg.LookCAPIToken == "" {
		return nil, fmt.Errorf("LOOKC_API_TOKEN is not set")
	}
	return lookc.New(lookc.Config{APIToken: a.cfg.LookCAPIToken})
}

// serveMetrics exposes the Prometheus endpoint for the duration of a run
// when a metrics address is configured.
func (a *app) serveMetrics(ctx context.Context) {
	if a.cfg.MetricsAddr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux}

	go func() {
		a.logger.Info().Str("addr", a.cfg.MetricsAddr).Msg("Serving metrics")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}
