// Package cmd provides the rentas subcommands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/javieronasis1-eng/administracion-rentas/internal/cache"
	"github.com/javieronasis1-eng/administracion-rentas/internal/cli"
	"github.com/javieronasis1-eng/administracion-rentas/internal/config"
	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
	"github.com/javieronasis1-eng/administracion-rentas/internal/log"
)

var (
	cfgFile  string
	logLevel string

	cfg    *config.Config
	logger *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rentas",
	Short: "Rent and utility bookkeeping for rooms and apartments",
	Long: `rentas tracks monthly rent payments for rooms and apartments and
the utility bills of the building. The ledger lives in a local cache and
is mirrored to an optional remote store (SQLite or Google Sheets).

Example:
  rentas serve
  rentas summary --month 2025-03
  rentas export --dataset payments --format csv --out pagos.csv`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cli.LoadEnvFile()

		c, err := cli.LoadAndValidateConfig(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return err
		}
		if logLevel != "" {
			c.LogLevel = logLevel
		}
		level, err := config.ParseLogLevel(c.LogLevel)
		if err != nil {
			return err
		}

		cfg = c
		logger = cli.SetupLogger(level, c.LogFormat)
		return nil
	},
}

// Execute runs the root command. Called once by main.main.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./rentas.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(revenueCmd)
	rootCmd.AddCommand(servicesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(oauthInitCmd)
}

// readLedger loads the ledger from the local cache without touching the
// remote store. The cache is locked while serve runs.
func readLedger(ctx context.Context) (*core.Ledger, error) {
	store, err := cache.NewBoltStore(cfg.CachePath)
	if err != nil {
		return nil, fmt.Errorf("%w (is rentas serve running?)", err)
	}
	defer store.Close()

	l, err := store.Load(ctx)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, fmt.Errorf("no ledger in %s yet, run rentas serve once", cfg.CachePath)
	}
	return l, err
}
