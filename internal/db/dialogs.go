package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/story-manager/internal/types"
)

// -----------------------------------------------------------------------------
// Opener Methods
// -----------------------------------------------------------------------------

// ListOpeners returns every opener with its continue options, ordered by id
func (db *DB) ListOpeners(ctx context.Context) ([]Opener, error) {
	rows, err := db.pool.Query(ctx, `SELECT id, text, context FROM openers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list openers: %w", err)
	}
	openers, err := pgx.CollectRows(rows, scanOpener)
	if err != nil {
		return nil, fmt.Errorf("failed to scan openers: %w", err)
	}
	if len(openers) == 0 {
		return []Opener{}, nil
	}

	ids := make([]int64, len(openers))
	index := make(map[int64]int, len(openers))
	for i, o := range openers {
		ids[i] = o.ID
		index[o.ID] = i
	}

	options, err := db.optionsFor(ctx, db.pool, ids)
	if err != nil {
		return nil, err
	}
	for _, opt := range options {
		i := index[opt.OpenerID]
		openers[i].ContinueOptions = append(openers[i].ContinueOptions, opt)
	}
	return openers, nil
}

// GetOpener retrieves an opener by id. Returns nil if it does not exist.
func (db *DB) GetOpener(ctx context.Context, id int64) (*Opener, error) {
	return db.getOpener(ctx, db.pool, id)
}

// CreateOpener inserts a new opener with no options
func (db *DB) CreateOpener(ctx context.Context, req *types.CreateOpenerRequest) (*Opener, error) {
	o := Opener{ContinueOptions: []ContinueOption{}}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO openers (text, context) VALUES ($1, $2)
		 RETURNING id, text, context`,
		req.Text, req.Context,
	).Scan(&o.ID, &o.Text, &o.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to create opener: %w", err)
	}
	return &o, nil
}

// UpdateOpener merges the present fields of req onto an opener
func (db *DB) UpdateOpener(ctx context.Context, id int64, req *types.UpdateOpenerRequest) (*Opener, error) {
	var out *Opener
	err := db.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE openers SET
			     text = COALESCE($2, text),
			     context = COALESCE($3, context)
			 WHERE id = $1`,
			id, req.Text, req.Context,
		)
		if err != nil {
			return fmt.Errorf("failed to update opener: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return types.NewNotFound("Opener", id)
		}
		out, err = db.getOpener(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteOpener removes an opener. Its options and any progress recorded
// against it are removed by the schema's cascades.
func (db *DB) DeleteOpener(ctx context.Context, id int64) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM openers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete opener: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewNotFound("Opener", id)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Continue Option Methods
// -----------------------------------------------------------------------------

// AddOption attaches a continue option to an opener
func (db *DB) AddOption(ctx context.Context, openerID int64, req *types.CreateOptionRequest) (*ContinueOption, error) {
	var opt ContinueOption
	err := db.pool.QueryRow(ctx,
		`INSERT INTO continue_options (opener_id, text, weight) VALUES ($1, $2, $3)
		 RETURNING id, text, weight, opener_id`,
		openerID, req.Text, req.WeightOrDefault(),
	).Scan(&opt.ID, &opt.Text, &opt.Weight, &opt.OpenerID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, types.NewNotFound("Opener", openerID)
		}
		return nil, fmt.Errorf("failed to create continue option: %w", err)
	}
	return &opt, nil
}

// UpdateOption merges the present fields of req onto an opener's option
func (db *DB) UpdateOption(ctx context.Context, openerID, optionID int64, req *types.UpdateOptionRequest) (*ContinueOption, error) {
	var opt ContinueOption
	err := db.pool.QueryRow(ctx,
		`UPDATE continue_options SET
		     text = COALESCE($3, text),
		     weight = COALESCE($4, weight)
		 WHERE id = $1 AND opener_id = $2
		 RETURNING id, text, weight, opener_id`,
		optionID, openerID, req.Text, req.Weight,
	).Scan(&opt.ID, &opt.Text, &opt.Weight, &opt.OpenerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewNotFound("Continue option", optionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update continue option: %w", err)
	}
	return &opt, nil
}

// DeleteOption removes one option from an opener
func (db *DB) DeleteOption(ctx context.Context, openerID, optionID int64) error {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM continue_options WHERE id = $1 AND opener_id = $2`,
		optionID, openerID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete continue option: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewNotFound("Continue option", optionID)
	}
	return nil
}

// querier is satisfied by both the pool and a transaction
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (db *DB) getOpener(ctx context.Context, q querier, id int64) (*Opener, error) {
	row, err := q.Query(ctx, `SELECT id, text, context FROM openers WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get opener: %w", err)
	}
	o, err := pgx.CollectOneRow(row, scanOpener)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get opener: %w", err)
	}

	options, err := db.optionsFor(ctx, q, []int64{id})
	if err != nil {
		return nil, err
	}
	o.ContinueOptions = append(o.ContinueOptions, options...)
	return &o, nil
}

func (db *DB) optionsFor(ctx context.Context, q querier, openerIDs []int64) ([]ContinueOption, error) {
	rows, err := q.Query(ctx,
		`SELECT id, text, weight, opener_id FROM continue_options
		 WHERE opener_id = ANY($1) ORDER BY id`,
		openerIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query continue options: %w", err)
	}
	options, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ContinueOption, error) {
		var opt ContinueOption
		err := row.Scan(&opt.ID, &opt.Text, &opt.Weight, &opt.OpenerID)
		return opt, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan continue options: %w", err)
	}
	return options, nil
}

func scanOpener(row pgx.CollectableRow) (Opener, error) {
	o := Opener{ContinueOptions: []ContinueOption{}}
	err := row.Scan(&o.ID, &o.Text, &o.Context)
	return o, err
}
