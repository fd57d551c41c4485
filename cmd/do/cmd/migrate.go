package cmd

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/templui/skillfolio/internal/config"
	"github.com/templui/skillfolio/internal/db"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or inspect database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(conn *sqlx.DB, cfg *config.Config) error {
				return db.RunMigrations(conn.DB, cfg.DB.Driver)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the newest migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(conn *sqlx.DB, cfg *config.Config) error {
				return db.MigrateDown(conn.DB, cfg.DB.Driver)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(conn *sqlx.DB, cfg *config.Config) error {
				version, err := db.MigrationVersion(conn.DB, cfg.DB.Driver)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s schema at version %d\n", cfg.DB.Driver, version)
				return nil
			})
		},
	})
	return cmd
}

// withDB loads the configuration, opens the database and closes it after fn.
func withDB(ctx context.Context, fn func(conn *sqlx.DB, cfg *config.Config) error) error {
	cfg, err := config.Read()
	if err != nil {
		return err
	}

	conn, err := db.Open(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(conn, cfg)
}
