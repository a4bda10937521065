package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/story-manager/internal/story"
)

// StoryRepository adapts DB to story.Transactor
type StoryRepository struct {
	db *DB
}

// Stories returns the story unit-of-work provider
func (db *DB) Stories() *StoryRepository {
	return &StoryRepository{db: db}
}

// WithTx runs fn inside a single PostgreSQL transaction
func (r *StoryRepository) WithTx(ctx context.Context, fn func(tx story.Tx) error) error {
	return r.db.withTx(ctx, func(tx pgx.Tx) error {
		return fn(&storyTx{tx: tx})
	})
}

type storyTx struct {
	tx pgx.Tx
}

func (t *storyTx) InsertStory(ctx context.Context, title string) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO stories (title) VALUES ($1) RETURNING id`, title,
	).Scan(&id)
	if err != nil {
		return 0, mapWriteError("failed to insert story", err)
	}
	return id, nil
}

func (t *storyTx) LockStory(ctx context.Context, storyID int64) (bool, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`SELECT id FROM stories WHERE id = $1 FOR UPDATE`, storyID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock story %d: %w", storyID, err)
	}
	return true, nil
}

func (t *storyTx) UpdateStoryTitle(ctx context.Context, storyID int64, title string) error {
	_, err := t.tx.Exec(ctx, `UPDATE stories SET title = $1 WHERE id = $2`, title, storyID)
	if err != nil {
		return fmt.Errorf("failed to update story title: %w", err)
	}
	return nil
}

func (t *storyTx) DeleteStoryRow(ctx context.Context, storyID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM stories WHERE id = $1`, storyID)
	if err != nil {
		return fmt.Errorf("failed to delete story row: %w", err)
	}
	return nil
}

// ResolveFormat inserts the format if it is missing and otherwise reads the
// existing row. An existing row is neither rewritten nor locked.
func (t *storyTx) ResolveFormat(ctx context.Context, formatType string) (story.Format, bool, error) {
	var f story.Format
	err := t.tx.QueryRow(ctx,
		`INSERT INTO formats (type) VALUES ($1)
		 ON CONFLICT (type) DO NOTHING
		 RETURNING id, type`,
		formatType,
	).Scan(&f.ID, &f.Type)
	if err == nil {
		return f, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return story.Format{}, false, fmt.Errorf("failed to insert format: %w", err)
	}

	err = t.tx.QueryRow(ctx,
		`SELECT id, type FROM formats WHERE type = $1`, formatType,
	).Scan(&f.ID, &f.Type)
	if err != nil {
		return story.Format{}, false, fmt.Errorf("failed to load format: %w", err)
	}
	return f, false, nil
}

func (t *storyTx) LinkFormat(ctx context.Context, storyID, formatID int64) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO story_formats (story_id, format_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		storyID, formatID,
	)
	if err != nil {
		return fmt.Errorf("failed to link format: %w", err)
	}
	return nil
}

func (t *storyTx) UnlinkFormats(ctx context.Context, storyID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM story_formats WHERE story_id = $1`, storyID)
	if err != nil {
		return fmt.Errorf("failed to unlink formats: %w", err)
	}
	return nil
}

func (t *storyTx) ListFormats(ctx context.Context) ([]story.Format, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, type FROM formats ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list formats: %w", err)
	}
	defer rows.Close()

	var formats []story.Format
	for rows.Next() {
		var f story.Format
		if err := rows.Scan(&f.ID, &f.Type); err != nil {
			return nil, fmt.Errorf("failed to scan format: %w", err)
		}
		formats = append(formats, f)
	}
	return formats, rows.Err()
}

func (t *storyTx) FindLanguage(ctx context.Context, storyID int64, code string) (*story.Language, error) {
	l := story.Language{StoryID: storyID}
	err := t.tx.QueryRow(ctx,
		`SELECT id, code FROM languages WHERE story_id = $1 AND code = $2`,
		storyID, code,
	).Scan(&l.ID, &l.Code)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find language: %w", err)
	}
	return &l, nil
}

func (t *storyTx) InsertLanguage(ctx context.Context, storyID int64, code string) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO languages (story_id, code) VALUES ($1, $2) RETURNING id`,
		storyID, code,
	).Scan(&id)
	if err != nil {
		return 0, mapWriteError("failed to insert language", err)
	}
	return id, nil
}

func (t *storyTx) DeleteLanguageRow(ctx context.Context, languageID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM languages WHERE id = $1`, languageID)
	if err != nil {
		return fmt.Errorf("failed to delete language row: %w", err)
	}
	return nil
}

func (t *storyTx) FindContent(ctx context.Context, languageID, formatID int64) (*story.Content, error) {
	var c story.Content
	err := t.tx.QueryRow(ctx,
		`SELECT id, content, language_id, format_id FROM contents
		 WHERE language_id = $1 AND format_id = $2`,
		languageID, formatID,
	).Scan(&c.ID, &c.Content, &c.LanguageID, &c.FormatID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find content: %w", err)
	}
	return &c, nil
}

func (t *storyTx) InsertContent(ctx context.Context, languageID, formatID int64, content string) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO contents (language_id, format_id, content) VALUES ($1, $2, $3) RETURNING id`,
		languageID, formatID, content,
	).Scan(&id)
	if err != nil {
		return 0, mapWriteError("failed to insert content", err)
	}
	return id, nil
}

func (t *storyTx) DeleteContentRow(ctx context.Context, contentID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM contents WHERE id = $1`, contentID)
	if err != nil {
		return fmt.Errorf("failed to delete content: %w", err)
	}
	return nil
}

func (t *storyTx) DeleteLanguageContents(ctx context.Context, languageID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM contents WHERE language_id = $1`, languageID)
	if err != nil {
		return fmt.Errorf("failed to delete language contents: %w", err)
	}
	return nil
}

func (t *storyTx) CountContents(ctx context.Context, languageID int64) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM contents WHERE language_id = $1`, languageID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count contents: %w", err)
	}
	return n, nil
}

func (t *storyTx) LoadStory(ctx context.Context, storyID int64) (*story.Story, error) {
	stories, err := t.loadStories(ctx,
		`SELECT id, title FROM stories WHERE id = $1`, storyID)
	if err != nil {
		return nil, err
	}
	if len(stories) == 0 {
		return nil, nil
	}
	return &stories[0], nil
}

func (t *storyTx) LoadStories(ctx context.Context) ([]story.Story, error) {
	return t.loadStories(ctx, `SELECT id, title FROM stories ORDER BY id`)
}

// loadStories runs query for (id, title) rows and hydrates languages,
// contents and format memberships with one query per level.
func (t *storyTx) loadStories(ctx context.Context, query string, args ...any) ([]story.Story, error) {
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stories: %w", err)
	}
	stories, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (story.Story, error) {
		s := story.Story{Languages: []story.Language{}, Formats: []story.Format{}}
		err := row.Scan(&s.ID, &s.Title)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan stories: %w", err)
	}
	if len(stories) == 0 {
		return stories, nil
	}

	ids := make([]int64, len(stories))
	byID := make(map[int64]*story.Story, len(stories))
	for i := range stories {
		ids[i] = stories[i].ID
		byID[stories[i].ID] = &stories[i]
	}

	languages, err := t.languagesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, l := range languages {
		s := byID[l.StoryID]
		s.Languages = append(s.Languages, l)
	}

	if err := t.attachFormats(ctx, ids, byID); err != nil {
		return nil, err
	}
	return stories, nil
}

func (t *storyTx) languagesFor(ctx context.Context, storyIDs []int64) ([]story.Language, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, code, story_id FROM languages WHERE story_id = ANY($1) ORDER BY id`,
		storyIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query languages: %w", err)
	}
	languages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (story.Language, error) {
		l := story.Language{Contents: []story.Content{}}
		err := row.Scan(&l.ID, &l.Code, &l.StoryID)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan languages: %w", err)
	}
	if len(languages) == 0 {
		return languages, nil
	}

	langIDs := make([]int64, len(languages))
	byID := make(map[int64]int, len(languages))
	for i, l := range languages {
		langIDs[i] = l.ID
		byID[l.ID] = i
	}

	crows, err := t.tx.Query(ctx,
		`SELECT id, content, language_id, format_id FROM contents
		 WHERE language_id = ANY($1) ORDER BY id`,
		langIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query contents: %w", err)
	}
	contents, err := pgx.CollectRows(crows, func(row pgx.CollectableRow) (story.Content, error) {
		var c story.Content
		err := row.Scan(&c.ID, &c.Content, &c.LanguageID, &c.FormatID)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan contents: %w", err)
	}
	for _, c := range contents {
		i := byID[c.LanguageID]
		languages[i].Contents = append(languages[i].Contents, c)
	}
	return languages, nil
}

func (t *storyTx) attachFormats(ctx context.Context, storyIDs []int64, byID map[int64]*story.Story) error {
	rows, err := t.tx.Query(ctx,
		`SELECT sf.story_id, f.id, f.type
		 FROM story_formats sf
		 JOIN formats f ON f.id = sf.format_id
		 WHERE sf.story_id = ANY($1)
		 ORDER BY f.id`,
		storyIDs,
	)
	if err != nil {
		return fmt.Errorf("failed to query story formats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var storyID int64
		var f story.Format
		if err := rows.Scan(&storyID, &f.ID, &f.Type); err != nil {
			return fmt.Errorf("failed to scan story format: %w", err)
		}
		s := byID[storyID]
		s.Formats = append(s.Formats, f)
	}
	return rows.Err()
}
