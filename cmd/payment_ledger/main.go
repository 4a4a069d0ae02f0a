// Command payment_ledger serves the ledger API, runs the settlement worker and applies migrations.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/SscSPs/payment_ledger/internal/core/services"
	"github.com/SscSPs/payment_ledger/internal/eligibility"
	"github.com/SscSPs/payment_ledger/internal/platform/config"
	"github.com/SscSPs/payment_ledger/internal/provider"
	"github.com/SscSPs/payment_ledger/internal/repositories/database/pgsql"
	"github.com/SscSPs/payment_ledger/pkg/database"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var (
	logger *slog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "payment_ledger",
	Short:         "Double entry payment ledger and settlement engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.LoadConfig()
		return err
	},
}

func main() {
	// Initialize structured logger
	logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := rootCmd.Execute(); err != nil {
		logger.Error("Command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// openPool connects to Postgres; callers close the pool.
func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, cfg.EnableDBCheck)
	if err != nil {
		return nil, err
	}
	logger.Info("Database connection pool established.")
	return pool, nil
}

// buildServices wires the services on the Postgres store, the processor client and the grant based
// eligibility oracle.
func buildServices(pool *pgxpool.Pool) *services.Services {
	var oracle eligibility.Oracle = eligibility.NewGrantOracle(pool)
	if cfg.EligibilityCacheTTL > 0 {
		oracle = eligibility.NewCachedOracle(oracle, cfg.EligibilityCacheTTL)
	}
	return services.NewServices(cfg, services.Dependencies{
		Store:  pgsql.NewStore(pool),
		Oracle: oracle,
		Provider: provider.NewClient(provider.Config{
			BaseURL:       cfg.ProviderBaseURL,
			APIKey:        cfg.ProviderAPIKey,
			Timeout:       cfg.ProviderTimeout,
			RatePerSecond: cfg.ProviderRatePerSecond,
			Burst:         cfg.ProviderBurst,
		}),
	})
}
