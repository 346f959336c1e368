// Package cmd defines and implements the CLI commands for the sitebaker executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitebaker/internal/config"
	"github.com/JakeFAU/sitebaker/internal/logging"
)

var cfgFile string

// runtimeKeyType is the key for storing the Runtime in the context.
type runtimeKeyType string

const runtimeKey runtimeKeyType = "runtime"

// Runtime is what every subcommand needs: the loaded config and a logger.
type Runtime struct {
	Config config.Config
	Logger *zap.Logger
}

// loadRuntime reads the config file and builds the logger. It's a variable so
// tests can inject a runtime without touching disk.
var loadRuntime = func(path string) (*Runtime, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return &Runtime{Config: cfg, Logger: logger}, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitebaker",
		Short: "Bakes the WordPress site into static files and deploys them.",
		Long: `sitebaker renders every published post, the front page, the blog index,
the Atom feed and the redirects file from the WordPress database into a
static directory, exports embedded charts, and commits and pushes the result.
It runs once from the command line or as an HTTP service accepting bake jobs.`,
		SilenceUsage: true,

		// Runs before the subcommand's RunE so the config is loaded once.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := loadRuntime(cfgFile)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), runtimeKey, rt))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if rt, err := resolveRuntime(cmd.Context()); err == nil {
				_ = rt.Logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (environment variables prefixed BAKER_ override it)")

	cmd.AddCommand(newBakeCmd(), newServeCmd())

	return cmd
}

func resolveRuntime(ctx context.Context) (*Runtime, error) {
	rt, ok := ctx.Value(runtimeKey).(*Runtime)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
