package main

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/stark/internal/config"
	"github.com/haasonsaas/stark/internal/storage"
)

// openMigrationDB opens a standalone connection to the configured database,
// separate from the pool a running starkd process holds, since a migration
// subcommand runs and exits without ever standing up the rest of the
// runtime.
func openMigrationDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func runMigrateUp(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := openMigrationDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator, err := storage.NewMigrator(db)
	if err != nil {
		return fmt.Errorf("build migrator: %w", err)
	}
	applied, err := migrator.Up(cmd.Context())
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	if len(applied) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no pending migrations")
		return nil
	}
	for _, id := range applied {
		fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", id)
	}
	return nil
}

func runMigrateStatus(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := openMigrationDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator, err := storage.NewMigrator(db)
	if err != nil {
		return fmt.Errorf("build migrator: %w", err)
	}
	applied, pending, err := migrator.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("check migration status: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "applied:")
	for _, m := range applied {
		fmt.Fprintf(out, "  %s (%s)\n", m.ID, m.AppliedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	fmt.Fprintln(out, "pending:")
	for _, id := range pending {
		fmt.Fprintf(out, "  %s\n", id)
	}
	return nil
}
