package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/iliyamo/marketplace-auth/internal/config"
	"github.com/iliyamo/marketplace-auth/internal/logging"
)

const serviceName = "marketplace-auth"

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "auth",
		Short:        "Marketplace authentication service",
		SilenceUsage: true,
	}
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMailWorkerCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewGrantSuperAdminCmd())
	return cmd
}

// loadConfig reads configuration and builds the process logger.
func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := logging.Setup(serviceName, version, cfg.LogFormat, logging.ParseLevel(cfg.LogLevel), os.Stdout)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
