package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/story-manager/internal/config"
	"github.com/jonathan/story-manager/internal/db"
	"github.com/jonathan/story-manager/internal/media"
	"github.com/jonathan/story-manager/internal/server"
	"github.com/jonathan/story-manager/internal/story"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the story, dialog and profile endpoints. Pending migrations are applied first unless AUTO_MIGRATE=false.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer database.Close()

	if cfg.AutoMigrate {
		if err := db.NewMigrator(database.Pool(), log).Up(ctx); err != nil {
			return err
		}
	}

	mediaStore, err := media.NewStore(cfg.MediaDir)
	if err != nil {
		return err
	}

	srv := newServer(cfg, database, mediaStore, log)
	log.Info("starting "+cfg.ProjectName,
		zap.String("version", cfg.Version),
		zap.String("api_prefix", cfg.APIPrefix),
		zap.String("media_dir", cfg.MediaDir),
	)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// newServer wires the stores into the HTTP server
func newServer(cfg *config.Config, database *db.DB, mediaStore *media.Store, log *zap.Logger) *server.Server {
	return server.New(server.Config{
		Addr:               cfg.Addr(),
		APIPrefix:          cfg.APIPrefix,
		ProjectName:        cfg.ProjectName,
		Version:            cfg.Version,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MaxUploadBytes:     cfg.MaxUploadBytes,
	}, server.Deps{
		Stories:  story.NewStore(database.Stories(), log),
		Dialogs:  database,
		Profiles: database,
		Media:    mediaStore,
		Health:   database,
		Logger:   log,
	})
}
