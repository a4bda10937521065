package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/jonathan/story-manager/internal/story"
	"github.com/jonathan/story-manager/internal/types"
)

type seedOpener struct {
	opener  types.CreateOpenerRequest
	options []types.CreateOptionRequest
}

func weight(w float64) *float64 { return &w }

var seedOpeners = []seedOpener{
	{
		opener: types.CreateOpenerRequest{Text: "Hello! How are you today?", Context: "greeting"},
		options: []types.CreateOptionRequest{
			{Text: "I'm doing great!", Weight: weight(1.0)},
			{Text: "Not bad, thanks.", Weight: weight(1.0)},
		},
	},
	{
		opener: types.CreateOpenerRequest{Text: "Would you like to hear a story?", Context: "story_start"},
		options: []types.CreateOptionRequest{
			{Text: "Yes, please!", Weight: weight(1.0)},
			{Text: "Maybe later.", Weight: weight(0.5)},
		},
	},
}

var seedStory = types.CreateStoryRequest{
	Title:    "Welcome Story",
	Language: "en",
	Format:   types.FormatText,
	Content:  "Welcome to our story platform!",
}

// Seed populates an empty database with the base formats and example
// openers, profile and story. It does nothing when any format exists.
// It reports whether data was inserted.
func (db *DB) Seed(ctx context.Context, stories *story.Store, logger *zap.Logger) (bool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var seeded bool
	err := db.Stories().WithTx(ctx, func(tx story.Tx) error {
		existing, err := tx.ListFormats(ctx)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return nil
		}
		for _, t := range []string{types.FormatText, types.FormatAudio} {
			if _, _, err := tx.ResolveFormat(ctx, t); err != nil {
				return err
			}
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to seed formats: %w", err)
	}
	if !seeded {
		logger.Info("database already seeded")
		return false, nil
	}

	for _, so := range seedOpeners {
		req := so.opener
		opener, err := db.CreateOpener(ctx, &req)
		if err != nil {
			return false, fmt.Errorf("failed to seed opener: %w", err)
		}
		for _, opt := range so.options {
			opt := opt
			if _, err := db.AddOption(ctx, opener.ID, &opt); err != nil {
				return false, fmt.Errorf("failed to seed continue option: %w", err)
			}
		}
	}

	if err := db.seedProfile(ctx); err != nil {
		return false, err
	}

	req := seedStory
	if _, err := stories.CreateStory(ctx, &req); err != nil {
		return false, fmt.Errorf("failed to seed story: %w", err)
	}

	logger.Info("database seeded",
		zap.Int("openers", len(seedOpeners)),
		zap.String("story", seedStory.Title))
	return true, nil
}

func (db *DB) seedProfile(ctx context.Context) error {
	return db.withTx(ctx, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx,
			`INSERT INTO profiles (name, age, source) VALUES ($1, $2, $3) RETURNING id`,
			"John Doe", 30, "example",
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to seed profile: %w", err)
		}

		batch := &pgx.Batch{}
		for _, h := range []string{"Reading", "Writing"} {
			batch.Queue(`INSERT INTO hobbies (profile_id, name) VALUES ($1, $2)`, id, h)
		}
		for _, n := range [][2]string{{"favorite_color", "blue"}, {"preferred_language", "English"}} {
			batch.Queue(`INSERT INTO notes (profile_id, key, value) VALUES ($1, $2, $3)`, id, n[0], n[1])
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to seed profile details: %w", err)
		}
		return nil
	})
}
