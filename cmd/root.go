// Package cmd defines and implements the CLI commands for the popnscore executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/popn-score-crawler/internal/config"
	"github.com/JakeFAU/popn-score-crawler/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App carries the services every subcommand shares.
type App struct {
	Config config.Config
	Logger *zap.Logger
}

// Close flushes the logger.
func (a *App) Close() {
	_ = a.Logger.Sync() //nolint:errcheck // stderr sync fails on some terminals
}

// appFactory builds the App from the --config path. Tests inject their own.
type appFactory func(ctx context.Context, cfgPath string) (*App, error)

// loadApp reads configuration and installs the global logger.
func loadApp(_ context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return &App{Config: cfg, Logger: logger}, nil
}

// newRootCmd creates the root command and its subcommands.
func newRootCmd(newApp appFactory) *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "popnscore",
		Short: "Collects pop'n music play data from e-amusement.",
		Long: `popnscore walks the level-filtered music lists of your pop'n music
play-data pages, merges every chart into one record per song, rates the
result as a Pop'n Class and exports it as JSON plus an HTML viewer.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (env POPN_* overrides)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRenderCmd())
	cmd.AddCommand(newDumpCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd(loadApp).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (*App, error) {
	appInstance, ok := ctx.Value(appKey).(*App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
