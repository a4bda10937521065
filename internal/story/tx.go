package story

import (
	"context"
	"errors"
)

// ErrDuplicate is returned (possibly wrapped) by a Tx when an insert violates
// a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate row")

// Transactor hands out units of work. WithTx commits when fn returns nil and
// rolls back on every other exit path, including panics.
type Transactor interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of row-level operations the store composes inside one unit of
// work. Implementations perform no cascades of their own; deleting a row that
// still has owned children must fail.
type Tx interface {
	InsertStory(ctx context.Context, title string) (int64, error)
	// LockStory reports whether the story exists and locks it for the rest of
	// the unit of work.
	LockStory(ctx context.Context, storyID int64) (bool, error)
	UpdateStoryTitle(ctx context.Context, storyID int64, title string) error
	DeleteStoryRow(ctx context.Context, storyID int64) error

	// ResolveFormat returns the format with the given type, creating it if it
	// does not exist yet. created reports whether a row was inserted.
	ResolveFormat(ctx context.Context, formatType string) (f Format, created bool, err error)
	LinkFormat(ctx context.Context, storyID, formatID int64) error
	UnlinkFormats(ctx context.Context, storyID int64) error
	ListFormats(ctx context.Context) ([]Format, error)

	// FindLanguage returns the language row without contents, or nil.
	FindLanguage(ctx context.Context, storyID int64, code string) (*Language, error)
	InsertLanguage(ctx context.Context, storyID int64, code string) (int64, error)
	DeleteLanguageRow(ctx context.Context, languageID int64) error

	FindContent(ctx context.Context, languageID, formatID int64) (*Content, error)
	InsertContent(ctx context.Context, languageID, formatID int64, content string) (int64, error)
	DeleteContentRow(ctx context.Context, contentID int64) error
	DeleteLanguageContents(ctx context.Context, languageID int64) error
	CountContents(ctx context.Context, languageID int64) (int, error)

	// LoadStory returns the fully hydrated story, or nil.
	LoadStory(ctx context.Context, storyID int64) (*Story, error)
	// LoadStories returns all hydrated stories in insertion order.
	LoadStories(ctx context.Context) ([]Story, error)
}
