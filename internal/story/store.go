package story

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/story-manager/internal/types"
	"go.uber.org/zap"
)

const conflictFormatExists = "format already exists for this language"

// Store applies story mutations through a Transactor
type Store struct {
	tx     Transactor
	logger *zap.Logger
}

// NewStore creates a Store. A nil logger disables logging.
func NewStore(tx Transactor, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{tx: tx, logger: logger.Named("story")}
}

// ListStories returns every story in insertion order
func (s *Store) ListStories(ctx context.Context) ([]Story, error) {
	var stories []Story
	err := s.tx.WithTx(ctx, func(tx Tx) error {
		var err error
		stories, err = tx.LoadStories(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	if stories == nil {
		stories = []Story{}
	}
	return stories, nil
}

// GetStory returns the hydrated story or a NotFoundError
func (s *Store) GetStory(ctx context.Context, storyID int64) (*Story, error) {
	var st *Story
	err := s.tx.WithTx(ctx, func(tx Tx) error {
		var err error
		st, err = loadExisting(ctx, tx, storyID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// ListFormats returns every known format
func (s *Store) ListFormats(ctx context.Context) ([]Format, error) {
	var formats []Format
	err := s.tx.WithTx(ctx, func(tx Tx) error {
		var err error
		formats, err = tx.ListFormats(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list formats: %w", err)
	}
	if formats == nil {
		formats = []Format{}
	}
	return formats, nil
}

// CreateStory creates a story with its initial language, format and content
func (s *Store) CreateStory(ctx context.Context, req *types.CreateStoryRequest) (*Story, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var st *Story
	err := s.tx.WithTx(ctx, func(tx Tx) error {
		storyID, err := tx.InsertStory(ctx, req.Title)
		if err != nil {
			return fmt.Errorf("failed to create story: %w", err)
		}
		format, err := s.resolveFormat(ctx, tx, req.Format)
		if err != nil {
			return err
		}
		if err := s.attachContent(ctx, tx, storyID, req.Language, format, req.Content); err != nil {
			return err
		}
		st, err = loadExisting(ctx, tx, storyID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("story created", zap.Int64("story_id", st.ID), zap.String("language", req.Language))
	return st, nil
}

// UpdateStory merges the present fields of req onto the stored story
func (s *Store) UpdateStory(ctx context.Context, storyID int64, req *types.UpdateStoryRequest) (*Story, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var st *Story
	err := s.tx.WithTx(ctx, func(tx Tx) error {
		if err := lockExisting(ctx, tx, storyID); err != nil {
			return err
		}
		current, err := loadExisting(ctx, tx, storyID)
		if err != nil {
			return err
		}
		if applyUpdate(current, req) {
			if err := tx.UpdateStoryTitle(ctx, storyID, current.Title); err != nil {
				return fmt.Errorf("failed to update story: %w", err)
			}
		}
		st = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// applyUpdate copies the non-nil fields of u onto st and reports whether
// anything changed.
func applyUpdate(st *Story, u *types.UpdateStoryRequest) bool {
	changed := false
	if u.Title != nil && *u.Title != st.Title {
		st.Title = *u.Title
		changed = true
	}
	return changed
}

// AddLanguageContent adds content for (languageCode, formatType) to a story.
// The language is created on first use. A second content for the same
// language and format is rejected with a ConflictError.
func (s *Store) AddLanguageContent(ctx context.Context, storyID int64, req *types.AddLanguageRequest) (*Story, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var st *Story
	err := s.tx.WithTx(ctx, func(tx Tx) error {
		if err := lockExisting(ctx, tx, storyID); err != nil {
			return err
		}
		format, err := s.resolveFormat(ctx, tx, req.Format)
		if err != nil {
			return err
		}
		if err := s.attachContent(ctx, tx, storyID, req.Language, format, req.Content); err != nil {
			return err
		}
		st, err = loadExisting(ctx, tx, storyID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// DeleteLanguage removes a language and all of its contents and returns the
// removed contents. Formats and the story's format memberships are left alone.
func (s *Store) DeleteLanguage(ctx context.Context, storyID int64, languageCode string) ([]Content, error) {
	code := types.NormalizeLanguageCode(languageCode)

	var removed []Content
	err := s.tx.WithTx(ctx, func(tx Tx) error {
		if err := lockExisting(ctx, tx, storyID); err != nil {
			return err
		}
		current, err := loadExisting(ctx, tx, storyID)
		if err != nil {
			return err
		}
		lang := current.Language(code)
		if lang == nil {
			return &types.NotFoundError{Entity: "Language", Key: code}
		}
		if err := s.dropLanguage(ctx, tx, lang.ID); err != nil {
			return err
		}
		removed = lang.Contents
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// DeleteLanguageFormat removes one content entry and returns the refreshed
// story along with the removed content. If it was the language's last
// content, the language is removed too. Formats and memberships are never
// touched.
func (s *Store) DeleteLanguageFormat(ctx context.Context, storyID int64, languageCode string, formatID int64) (*Story, *Content, error) {
	code := types.NormalizeLanguageCode(languageCode)

	var (
		st      *Story
		removed *Content
	)
	err := s.tx.WithTx(ctx, func(tx Tx) error {
		if err := lockExisting(ctx, tx, storyID); err != nil {
			return err
		}
		lang, err := tx.FindLanguage(ctx, storyID, code)
		if err != nil {
			return fmt.Errorf("failed to find language: %w", err)
		}
		if lang == nil {
			return &types.NotFoundError{Entity: "Language", Key: code}
		}
		content, err := tx.FindContent(ctx, lang.ID, formatID)
		if err != nil {
			return fmt.Errorf("failed to find content: %w", err)
		}
		if content == nil {
			return &types.NotFoundError{Entity: "Format", Key: fmt.Sprintf("%d for language %s", formatID, code)}
		}
		if err := tx.DeleteContentRow(ctx, content.ID); err != nil {
			return fmt.Errorf("failed to delete content: %w", err)
		}
		removed = content

		remaining, err := tx.CountContents(ctx, lang.ID)
		if err != nil {
			return fmt.Errorf("failed to count contents: %w", err)
		}
		if languageTransition(LanguageWithContent, remaining) == dropLanguage {
			if err := tx.DeleteLanguageRow(ctx, lang.ID); err != nil {
				return fmt.Errorf("failed to delete language: %w", err)
			}
			s.logger.Debug("language removed with its last content",
				zap.Int64("story_id", storyID), zap.String("language", code))
		}

		st, err = loadExisting(ctx, tx, storyID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return st, removed, nil
}

// DeleteStory removes a story, its languages and their contents, and the
// story's format memberships, and returns the removed contents. Formats
// themselves survive.
func (s *Store) DeleteStory(ctx context.Context, storyID int64) ([]Content, error) {
	var removed []Content
	err := s.tx.WithTx(ctx, func(tx Tx) error {
		if err := lockExisting(ctx, tx, storyID); err != nil {
			return err
		}
		current, err := loadExisting(ctx, tx, storyID)
		if err != nil {
			return err
		}
		for _, lang := range current.Languages {
			if err := s.dropLanguage(ctx, tx, lang.ID); err != nil {
				return err
			}
			removed = append(removed, lang.Contents...)
		}
		if err := tx.UnlinkFormats(ctx, storyID); err != nil {
			return fmt.Errorf("failed to unlink formats: %w", err)
		}
		if err := tx.DeleteStoryRow(ctx, storyID); err != nil {
			return fmt.Errorf("failed to delete story: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("story deleted", zap.Int64("story_id", storyID), zap.Int("contents", len(removed)))
	return removed, nil
}

// attachContent routes content into the story's language for code, creating
// the language if it is absent. It links the format to the story.
func (s *Store) attachContent(ctx context.Context, tx Tx, storyID int64, code string, format Format, content string) error {
	lang, err := tx.FindLanguage(ctx, storyID, code)
	if err != nil {
		return fmt.Errorf("failed to find language: %w", err)
	}

	state := LanguageAbsent
	contentsAfter := 1
	var languageID int64
	if lang != nil {
		existing, err := tx.FindContent(ctx, lang.ID, format.ID)
		if err != nil {
			return fmt.Errorf("failed to find content: %w", err)
		}
		if existing != nil {
			return &types.ConflictError{Message: conflictFormatExists}
		}
		count, err := tx.CountContents(ctx, lang.ID)
		if err != nil {
			return fmt.Errorf("failed to count contents: %w", err)
		}
		state = languageStateFor(count)
		contentsAfter = count + 1
		languageID = lang.ID
	}

	if lang == nil && languageTransition(state, contentsAfter) == createLanguage {
		languageID, err = tx.InsertLanguage(ctx, storyID, code)
		if err != nil {
			if errors.Is(err, ErrDuplicate) {
				return &types.ConflictError{Message: "language already exists for this story"}
			}
			return fmt.Errorf("failed to create language: %w", err)
		}
		s.logger.Debug("language created", zap.Int64("story_id", storyID), zap.String("language", code))
	}

	if _, err := tx.InsertContent(ctx, languageID, format.ID, content); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return &types.ConflictError{Message: conflictFormatExists}
		}
		return fmt.Errorf("failed to create content: %w", err)
	}
	if err := tx.LinkFormat(ctx, storyID, format.ID); err != nil {
		return fmt.Errorf("failed to link format: %w", err)
	}
	return nil
}

func (s *Store) resolveFormat(ctx context.Context, tx Tx, formatType string) (Format, error) {
	f, created, err := tx.ResolveFormat(ctx, formatType)
	if err != nil {
		return Format{}, fmt.Errorf("failed to resolve format %s: %w", formatType, err)
	}
	if created {
		s.logger.Debug("format created", zap.String("type", f.Type), zap.Int64("format_id", f.ID))
	}
	return f, nil
}

// dropLanguage deletes a language's contents and then the language row.
func (s *Store) dropLanguage(ctx context.Context, tx Tx, languageID int64) error {
	if err := tx.DeleteLanguageContents(ctx, languageID); err != nil {
		return fmt.Errorf("failed to delete contents: %w", err)
	}
	if err := tx.DeleteLanguageRow(ctx, languageID); err != nil {
		return fmt.Errorf("failed to delete language: %w", err)
	}
	return nil
}

func lockExisting(ctx context.Context, tx Tx, storyID int64) error {
	ok, err := tx.LockStory(ctx, storyID)
	if err != nil {
		return fmt.Errorf("failed to lock story: %w", err)
	}
	if !ok {
		return types.NewNotFound("Story", storyID)
	}
	return nil
}

func loadExisting(ctx context.Context, tx Tx, storyID int64) (*Story, error) {
	st, err := tx.LoadStory(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load story: %w", err)
	}
	if st == nil {
		return nil, types.NewNotFound("Story", storyID)
	}
	return st, nil
}
