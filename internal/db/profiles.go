package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/story-manager/internal/types"
)

const profileColumns = `id, name, age, source, telegram_tag, birth_date, avatar_path`

// -----------------------------------------------------------------------------
// Profile Methods
// -----------------------------------------------------------------------------

// ListProfiles returns every profile with hobbies and notes, ordered by id
func (db *DB) ListProfiles(ctx context.Context) ([]Profile, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	profiles, err := pgx.CollectRows(rows, scanProfile)
	if err != nil {
		return nil, fmt.Errorf("failed to scan profiles: %w", err)
	}
	if len(profiles) == 0 {
		return []Profile{}, nil
	}
	if err := db.loadProfileChildren(ctx, db.pool, profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// GetProfile retrieves a profile by id. Returns nil if it does not exist.
func (db *DB) GetProfile(ctx context.Context, id int64) (*Profile, error) {
	return db.getProfile(ctx, db.pool, id, false)
}

// CreateProfile inserts a new profile
func (db *DB) CreateProfile(ctx context.Context, req *types.CreateProfileRequest) (*Profile, error) {
	var tag *string
	if req.TelegramTag != nil && *req.TelegramTag != "" {
		tag = req.TelegramTag
	}

	rows, err := db.pool.Query(ctx,
		`INSERT INTO profiles (name, age, source, telegram_tag, birth_date)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+profileColumns,
		req.Name, *req.Age, req.Source, tag, req.BirthDate.TimeOrNil(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	p, err := pgx.CollectOneRow(rows, scanProfile)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return &p, nil
}

// UpdateProfile merges the present fields of req onto a profile
func (db *DB) UpdateProfile(ctx context.Context, id int64, req *types.UpdateProfileRequest) (*Profile, error) {
	var out *Profile
	err := db.withTx(ctx, func(tx pgx.Tx) error {
		p, err := db.getProfile(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if p == nil {
			return types.NewNotFound("Profile", id)
		}

		applyProfileUpdate(p, req)

		_, err = tx.Exec(ctx,
			`UPDATE profiles SET name = $2, age = $3, source = $4, telegram_tag = $5, birth_date = $6
			 WHERE id = $1`,
			id, p.Name, p.Age, p.Source, p.TelegramTag, p.BirthDate.TimeOrNil(),
		)
		if err != nil {
			return fmt.Errorf("failed to update profile: %w", err)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetAvatar records the media path of a profile's avatar. It returns the
// updated profile and the previous path, if any.
func (db *DB) SetAvatar(ctx context.Context, id int64, path string) (*Profile, *string, error) {
	var out *Profile
	var previous *string
	err := db.withTx(ctx, func(tx pgx.Tx) error {
		p, err := db.getProfile(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if p == nil {
			return types.NewNotFound("Profile", id)
		}
		previous = p.AvatarPath

		if _, err := tx.Exec(ctx, `UPDATE profiles SET avatar_path = $2 WHERE id = $1`, id, path); err != nil {
			return fmt.Errorf("failed to set avatar: %w", err)
		}
		p.AvatarPath = &path
		out = p
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, previous, nil
}

// DeleteProfile removes a profile; hobbies, notes and progress cascade
func (db *DB) DeleteProfile(ctx context.Context, id int64) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewNotFound("Profile", id)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Hobby and Note Methods
// -----------------------------------------------------------------------------

// AddHobby attaches a hobby to a profile
func (db *DB) AddHobby(ctx context.Context, profileID int64, req *types.HobbyRequest) (*Hobby, error) {
	var h Hobby
	err := db.pool.QueryRow(ctx,
		`INSERT INTO hobbies (profile_id, name) VALUES ($1, $2)
		 RETURNING id, name, profile_id`,
		profileID, req.Name,
	).Scan(&h.ID, &h.Name, &h.ProfileID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, types.NewNotFound("Profile", profileID)
		}
		return nil, fmt.Errorf("failed to create hobby: %w", err)
	}
	return &h, nil
}

// DeleteHobby removes a hobby from a profile
func (db *DB) DeleteHobby(ctx context.Context, profileID, hobbyID int64) error {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM hobbies WHERE id = $1 AND profile_id = $2`, hobbyID, profileID)
	if err != nil {
		return fmt.Errorf("failed to delete hobby: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewNotFound("Hobby", hobbyID)
	}
	return nil
}

// AddNote attaches a key/value note to a profile
func (db *DB) AddNote(ctx context.Context, profileID int64, req *types.NoteRequest) (*Note, error) {
	var n Note
	err := db.pool.QueryRow(ctx,
		`INSERT INTO notes (profile_id, key, value) VALUES ($1, $2, $3)
		 RETURNING id, key, value, profile_id`,
		profileID, req.Key, req.Value,
	).Scan(&n.ID, &n.Key, &n.Value, &n.ProfileID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, types.NewNotFound("Profile", profileID)
		}
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	return &n, nil
}

// UpdateNote replaces the key and value of a note
func (db *DB) UpdateNote(ctx context.Context, profileID, noteID int64, req *types.NoteRequest) (*Note, error) {
	var n Note
	err := db.pool.QueryRow(ctx,
		`UPDATE notes SET key = $3, value = $4
		 WHERE id = $1 AND profile_id = $2
		 RETURNING id, key, value, profile_id`,
		noteID, profileID, req.Key, req.Value,
	).Scan(&n.ID, &n.Key, &n.Value, &n.ProfileID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewNotFound("Note", noteID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	return &n, nil
}

// DeleteNote removes a note from a profile
func (db *DB) DeleteNote(ctx context.Context, profileID, noteID int64) error {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM notes WHERE id = $1 AND profile_id = $2`, noteID, profileID)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewNotFound("Note", noteID)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Progress Methods
// -----------------------------------------------------------------------------

// ListProgress returns a profile's checkpoints, most recently updated first
func (db *DB) ListProgress(ctx context.Context, profileID int64) ([]Progress, error) {
	var exists bool
	if err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM profiles WHERE id = $1)`, profileID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check profile: %w", err)
	}
	if !exists {
		return nil, types.NewNotFound("Profile", profileID)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, profile_id, story_id, opener_id, checkpoint, updated_at
		 FROM profile_progress WHERE profile_id = $1
		 ORDER BY updated_at DESC, id DESC`,
		profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	progress, err := pgx.CollectRows(rows, scanProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to scan progress: %w", err)
	}
	if progress == nil {
		progress = []Progress{}
	}
	return progress, nil
}

// UpsertProgress records the checkpoint a profile has reached in a story or
// opener, replacing any previous checkpoint for the same target.
func (db *DB) UpsertProgress(ctx context.Context, profileID int64, req *types.ProgressRequest) (*Progress, error) {
	var out *Progress
	err := db.withTx(ctx, func(tx pgx.Tx) error {
		if err := requireRow(ctx, tx, `SELECT 1 FROM profiles WHERE id = $1`, profileID, "Profile"); err != nil {
			return err
		}

		var query string
		var targetID int64
		if req.StoryID != nil {
			targetID = *req.StoryID
			if err := requireRow(ctx, tx, `SELECT 1 FROM stories WHERE id = $1`, targetID, "Story"); err != nil {
				return err
			}
			query = `INSERT INTO profile_progress (profile_id, story_id, checkpoint)
			         VALUES ($1, $2, $3)
			         ON CONFLICT (profile_id, story_id) WHERE story_id IS NOT NULL
			         DO UPDATE SET checkpoint = EXCLUDED.checkpoint, updated_at = NOW()
			         RETURNING id, profile_id, story_id, opener_id, checkpoint, updated_at`
		} else {
			targetID = *req.OpenerID
			if err := requireRow(ctx, tx, `SELECT 1 FROM openers WHERE id = $1`, targetID, "Opener"); err != nil {
				return err
			}
			query = `INSERT INTO profile_progress (profile_id, opener_id, checkpoint)
			         VALUES ($1, $2, $3)
			         ON CONFLICT (profile_id, opener_id) WHERE opener_id IS NOT NULL
			         DO UPDATE SET checkpoint = EXCLUDED.checkpoint, updated_at = NOW()
			         RETURNING id, profile_id, story_id, opener_id, checkpoint, updated_at`
		}

		rows, err := tx.Query(ctx, query, profileID, targetID, req.Checkpoint)
		if err != nil {
			return fmt.Errorf("failed to save progress: %w", err)
		}
		p, err := pgx.CollectOneRow(rows, scanProgress)
		if err != nil {
			return fmt.Errorf("failed to save progress: %w", err)
		}
		out = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteProgress removes one checkpoint from a profile
func (db *DB) DeleteProgress(ctx context.Context, profileID, progressID int64) error {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM profile_progress WHERE id = $1 AND profile_id = $2`, progressID, profileID)
	if err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewNotFound("Progress", progressID)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// getProfile loads one profile with its children. lock takes a row lock for
// the rest of the surrounding transaction.
func (db *DB) getProfile(ctx context.Context, q querier, id int64, lock bool) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	rows, err := q.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	p, err := pgx.CollectOneRow(rows, scanProfile)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	profiles := []Profile{p}
	if err := db.loadProfileChildren(ctx, q, profiles); err != nil {
		return nil, err
	}
	return &profiles[0], nil
}

func (db *DB) loadProfileChildren(ctx context.Context, q querier, profiles []Profile) error {
	ids := make([]int64, len(profiles))
	index := make(map[int64]int, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
		index[p.ID] = i
	}

	hrows, err := q.Query(ctx,
		`SELECT id, name, profile_id FROM hobbies WHERE profile_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("failed to query hobbies: %w", err)
	}
	hobbies, err := pgx.CollectRows(hrows, func(row pgx.CollectableRow) (Hobby, error) {
		var h Hobby
		err := row.Scan(&h.ID, &h.Name, &h.ProfileID)
		return h, err
	})
	if err != nil {
		return fmt.Errorf("failed to scan hobbies: %w", err)
	}
	for _, h := range hobbies {
		i := index[h.ProfileID]
		profiles[i].Hobbies = append(profiles[i].Hobbies, h)
	}

	nrows, err := q.Query(ctx,
		`SELECT id, key, value, profile_id FROM notes WHERE profile_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("failed to query notes: %w", err)
	}
	notes, err := pgx.CollectRows(nrows, func(row pgx.CollectableRow) (Note, error) {
		var n Note
		err := row.Scan(&n.ID, &n.Key, &n.Value, &n.ProfileID)
		return n, err
	})
	if err != nil {
		return fmt.Errorf("failed to scan notes: %w", err)
	}
	for _, n := range notes {
		i := index[n.ProfileID]
		profiles[i].Notes = append(profiles[i].Notes, n)
	}
	return nil
}

func requireRow(ctx context.Context, tx pgx.Tx, query string, id int64, entity string) error {
	var one int
	err := tx.QueryRow(ctx, query, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.NewNotFound(entity, id)
	}
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", entity, err)
	}
	return nil
}

func scanProfile(row pgx.CollectableRow) (Profile, error) {
	p := Profile{Hobbies: []Hobby{}, Notes: []Note{}}
	var birth *time.Time
	err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Source, &p.TelegramTag, &birth, &p.AvatarPath)
	p.BirthDate = dateFromTime(birth)
	return p, err
}

func scanProgress(row pgx.CollectableRow) (Progress, error) {
	var p Progress
	err := row.Scan(&p.ID, &p.ProfileID, &p.StoryID, &p.OpenerID, &p.Checkpoint, &p.UpdatedAt)
	return p, err
}
