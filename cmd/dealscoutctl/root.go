package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dealscout/internal/app"
	"github.com/kailas-cloud/dealscout/internal/config"
	logpkg "github.com/kailas-cloud/dealscout/internal/logger"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	env        string
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:          "dealscoutctl",
		Short:        "Operate the dealscout candidate index",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.env, "env", config.GetEnv(), "environment name (selects config/<env>.yaml)")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "explicit config file path (overrides --env)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override: debug, info, warn, error")

	root.AddCommand(
		newSyncCmd(opts),
		newSearchCmd(opts),
		newVersionCmd(),
	)
	return root
}

func (o *globalOptions) loadConfig() (config.Config, error) {
	if o.configPath != "" {
		return config.LoadFile(o.configPath)
	}
	return config.Load(o.env)
}

// loggerEnv maps unknown environments to the console logger.
func (o *globalOptions) loggerEnv() string {
	if o.env == "prod" {
		return "prod"
	}
	return "local"
}

// openWith builds the logger and wires the application from an already loaded config.
func (o *globalOptions) openWith(ctx context.Context, cfg config.Config) (*app.App, *zap.Logger, error) {
	level := cfg.Logging.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	logger, err := logpkg.NewLogger(o.loggerEnv(), level)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, fmt.Errorf("build application: %w", err)
	}
	return a, logger, nil
}
