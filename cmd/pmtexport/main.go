// Command pmtexport flattens participant documents from the study database
// into CSV files.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pmtexport/internal/config"
)

var (
	verbose    bool
	configPath string

	logger *zap.Logger
	cfg    config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pmtexport",
	Short: "Export study participant data to CSV",
	Long: `pmtexport reads participant documents from MongoDB and writes them as
fixed-column CSV tables.

  coverage  exploration coverage for the participants listed in batch files
  game      the full game table for a site and time window
  runs      recent export runs from the Redis ledger`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotenv(); err != nil {
			return err
		}

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("PMTEXPORT_CONFIG"), "YAML config file (environment variables take precedence)")

	rootCmd.AddCommand(coverageCmd, gameCmd, runsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := execute(ctx, rootCmd)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// execute runs cmd and flushes the logger, failed commands included.
func execute(ctx context.Context, cmd *cobra.Command) error {
	defer func() {
		if logger != nil {
			_ = logger.Sync()
		}
	}()
	return cmd.ExecuteContext(ctx)
}
