package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/config"
	"github.com/spec-kit/ticket-tracker/internal/observability"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ticketctl",
		Short: "Maintenance commands for the ticket tracker",
		Long: `ticketctl applies database migrations and issues bearer tokens for the
ticket tracker API. Configuration is read from the same environment
variables (and .env file) as the server.`,
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newTokenCmd())
	return root
}

func loadRuntime() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
