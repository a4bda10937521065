package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/story-manager/internal/config"
	"github.com/jonathan/story-manager/internal/db"
	"github.com/jonathan/story-manager/internal/logger"
)

// loadConfig reads the environment and, when path is set, overlays the JSON
// config file on top of it.
func loadConfig(path string) (*config.Config, error) {
	envCfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := envCfg.Validate(); err != nil {
		return nil, err
	}
	if path == "" {
		return envCfg, nil
	}

	fileCfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := fileCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	merged := fileCfg.MergeWithDefaults(*envCfg)
	return &merged, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
}

// connect opens the database pool described by cfg
func connect(ctx context.Context, cfg *config.Config, log *zap.Logger) (*db.DB, error) {
	database, err := db.Connect(ctx, cfg.DSN(), cfg.DBMaxConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("connected to database", zap.Int32("max_conns", cfg.DBMaxConns))
	return database, nil
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
