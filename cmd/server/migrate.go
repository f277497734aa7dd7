package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/iliyamo/marketplace-auth/internal/database"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the users and password_resets tables",
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Store != "mysql" {
		return oops.Code("CONFIG_INVALID").Errorf("migrate needs STORE=mysql")
	}
	ctx := cmd.Context()

	cmd.Println("Connecting to database...")
	db, err := database.Open(ctx, cfg.DSN())
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	cmd.Println("Migrations completed successfully")
	return nil
}
