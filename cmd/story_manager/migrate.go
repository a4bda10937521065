package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/story-manager/internal/db"
	"github.com/jonathan/story-manager/internal/observability"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
	Long:  `Apply, roll back or inspect the embedded SQL migrations.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: withMigrator(func(ctx context.Context, m *db.Migrator, _ []string) error {
		return m.Up(ctx)
	}),
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back every migration",
	Args:  cobra.NoArgs,
	RunE: withMigrator(func(ctx context.Context, m *db.Migrator, _ []string) error {
		return m.Down(ctx)
	}),
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: withMigrator(func(ctx context.Context, m *db.Migrator, _ []string) error {
		version, dirty, err := m.Version(ctx)
		if err != nil {
			return err
		}
		observability.NewPrinter(os.Stdout).PrintMigrationStatus(version, dirty)
		return nil
	}),
}

var migrateForceCmd = &cobra.Command{
	Use:   "force VERSION",
	Short: "Set the schema version without running migrations",
	Long:  `Mark the schema as being at VERSION and clear the dirty flag. Use after fixing a failed migration by hand.`,
	Args:  cobra.ExactArgs(1),
	RunE: withMigrator(func(ctx context.Context, m *db.Migrator, args []string) error {
		version, err := parseVersion(args[0])
		if err != nil {
			return err
		}
		return m.ForceVersion(ctx, version)
	}),
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd, migrateForceCmd)
	rootCmd.AddCommand(migrateCmd)
}

func parseVersion(s string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid migration version %q: must be a non-negative integer", s)
	}
	return uint(v), nil
}

// withMigrator connects to the database and hands a Migrator to fn
func withMigrator(fn func(ctx context.Context, m *db.Migrator, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx := commandContext(cmd)

		database, err := connect(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := fn(ctx, db.NewMigrator(database.Pool(), log), args); err != nil {
			log.Error("migration command failed", zap.String("command", cmd.Name()), zap.Error(err))
			return err
		}
		return nil
	}
}
