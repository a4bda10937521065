package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/story-manager/internal/db"
	"github.com/jonathan/story-manager/internal/observability"
	"github.com/jonathan/story-manager/internal/story"
)

var seedVerbose bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert example data into an empty database",
	Long:  `Insert the text and audio formats, example openers, an example profile and a welcome story. Does nothing when formats already exist.`,
	Args:  cobra.NoArgs,
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().BoolVarP(&seedVerbose, "verbose", "v", false, "Print the stories and openers in the database after seeding")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, _ []string) error {
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

	if cfg.AutoMigrate {
		if err := db.NewMigrator(database.Pool(), log).Up(ctx); err != nil {
			return err
		}
	}

	stories := story.NewStore(database.Stories(), log)
	seeded, err := database.Seed(ctx, stories, log)
	if err != nil {
		return err
	}
	if seeded {
		fmt.Println("Database seeded")
	} else {
		fmt.Println("Database already contains data, nothing to seed")
	}

	if !seedVerbose {
		return nil
	}
	all, err := stories.ListStories(ctx)
	if err != nil {
		return err
	}
	openers, err := database.ListOpeners(ctx)
	if err != nil {
		return err
	}
	printer := observability.NewPrinter(os.Stdout)
	printer.PrintStories(all)
	printer.PrintOpeners(openers)
	return nil
}
