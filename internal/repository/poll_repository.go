package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"pollengine/internal/domain"
	"pollengine/pkg/database"
)

// PollRepository persists polls and their options in PostgreSQL.
type PollRepository struct {
	db *database.PostgresDB
}

func NewPollRepository(db *database.PostgresDB) *PollRepository {
	return &PollRepository{db: db}
}

// Create inserts a poll and its options in one transaction.
func (r *PollRepository) Create(ctx context.Context, poll *domain.Poll) error {
	settings, err := json.Marshal(poll.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO polls (id, title, description, category, start_at, end_at, result_at,
			                   settings, version, force_closed, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, $10, $11, $11)`,
			poll.ID, poll.Title, poll.Description, poll.Category,
			poll.StartAt, poll.EndAt, poll.ResultAt,
			settings, poll.Version, poll.CreatedBy, poll.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert poll: %w", err)
		}

		for _, opt := range poll.Options {
			_, err := tx.Exec(ctx, `
				INSERT INTO poll_options (id, poll_id, text, description, party, position)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				opt.ID, poll.ID, opt.Text, opt.Description, opt.Party, opt.Position)
			if err != nil {
				return fmt.Errorf("failed to insert option: %w", err)
			}
		}
		return nil
	})
}

// GetByID loads a poll with its options ordered by position.
// Returns (nil, nil) when the poll does not exist.
func (r *PollRepository) GetByID(ctx context.Context, pollID string) (*domain.Poll, error) {
	var (
		poll     domain.Poll
		settings []byte
	)
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, title, description, category, start_at, end_at, result_at,
		       settings, version, force_closed, closed_at, created_by, created_at, updated_at
		FROM polls
		WHERE id = $1`, pollID).Scan(
		&poll.ID, &poll.Title, &poll.Description, &poll.Category,
		&poll.StartAt, &poll.EndAt, &poll.ResultAt,
		&settings, &poll.Version, &poll.ForceClosed, &poll.ClosedAt,
		&poll.CreatedBy, &poll.CreatedAt, &poll.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}

	if err := json.Unmarshal(settings, &poll.Settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	poll.Options, err = r.loadOptions(ctx, pollID)
	if err != nil {
		return nil, err
	}
	return &poll, nil
}

// List returns all polls ordered newest first, options included.
func (r *PollRepository) List(ctx context.Context) ([]*domain.Poll, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, title, description, category, start_at, end_at, result_at,
		       settings, version, force_closed, closed_at, created_by, created_at, updated_at
		FROM polls
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}
	defer rows.Close()

	var polls []*domain.Poll
	byID := make(map[string]*domain.Poll)
	for rows.Next() {
		var (
			poll     domain.Poll
			settings []byte
		)
		if err := rows.Scan(
			&poll.ID, &poll.Title, &poll.Description, &poll.Category,
			&poll.StartAt, &poll.EndAt, &poll.ResultAt,
			&settings, &poll.Version, &poll.ForceClosed, &poll.ClosedAt,
			&poll.CreatedBy, &poll.CreatedAt, &poll.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan poll: %w", err)
		}
		if err := json.Unmarshal(settings, &poll.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
		polls = append(polls, &poll)
		byID[poll.ID] = &poll
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate polls: %w", err)
	}
	if len(polls) == 0 {
		return polls, nil
	}

	ids := make([]string, 0, len(polls))
	for _, p := range polls {
		ids = append(ids, p.ID)
	}
	optRows, err := r.db.Pool.Query(ctx, `
		SELECT id, poll_id, text, description, party, position
		FROM poll_options
		WHERE poll_id = ANY($1)
		ORDER BY poll_id, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list options: %w", err)
	}
	defer optRows.Close()

	for optRows.Next() {
		var (
			opt    domain.Option
			pollID string
		)
		if err := optRows.Scan(&opt.ID, &pollID, &opt.Text, &opt.Description, &opt.Party, &opt.Position); err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		if p, ok := byID[pollID]; ok {
			p.Options = append(p.Options, opt)
		}
	}
	if err := optRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate options: %w", err)
	}
	return polls, nil
}

// Update writes the poll and replaces its option set, guarded by the
// optimistic version check. The stored version is bumped by one; the
// caller's poll must carry the version it read. Returns
// domain.ErrVersionConflict when another writer got there first.
func (r *PollRepository) Update(ctx context.Context, poll *domain.Poll) error {
	settings, err := json.Marshal(poll.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE polls
			SET title = $1, description = $2, category = $3,
			    start_at = $4, end_at = $5, result_at = $6,
			    settings = $7, version = version + 1, updated_at = $8
			WHERE id = $9 AND version = $10`,
			poll.Title, poll.Description, poll.Category,
			poll.StartAt, poll.EndAt, poll.ResultAt,
			settings, poll.UpdatedAt, poll.ID, poll.Version)
		if err != nil {
			return fmt.Errorf("failed to update poll: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrVersionConflict
		}

		keep := make([]string, 0, len(poll.Options))
		for _, opt := range poll.Options {
			keep = append(keep, opt.ID)
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM poll_options WHERE poll_id = $1 AND NOT (id = ANY($2))`,
			poll.ID, keep); err != nil {
			return fmt.Errorf("failed to prune options: %w", err)
		}
		for _, opt := range poll.Options {
			if _, err := tx.Exec(ctx, `
				INSERT INTO poll_options (id, poll_id, text, description, party, position)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id) DO UPDATE
				SET text = EXCLUDED.text, description = EXCLUDED.description,
				    party = EXCLUDED.party, position = EXCLUDED.position`,
				opt.ID, poll.ID, opt.Text, opt.Description, opt.Party, opt.Position); err != nil {
				return fmt.Errorf("failed to upsert option: %w", err)
			}
		}
		return nil
	})
}

// ForceClose marks the poll closed. Closing an already closed poll keeps
// the original closed_at and reports false. Unknown IDs return
// domain.ErrPollNotFound.
func (r *PollRepository) ForceClose(ctx context.Context, pollID string, closedAt time.Time) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE polls
		SET force_closed = true, closed_at = $2, version = version + 1, updated_at = $2
		WHERE id = $1 AND NOT force_closed`, pollID, closedAt)
	if err != nil {
		return false, fmt.Errorf("failed to close poll: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM polls WHERE id = $1)`, pollID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check poll: %w", err)
	}
	if !exists {
		return false, domain.ErrPollNotFound
	}
	return false, nil
}

func (r *PollRepository) loadOptions(ctx context.Context, pollID string) ([]domain.Option, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, text, description, party, position
		FROM poll_options
		WHERE poll_id = $1
		ORDER BY position`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to load options: %w", err)
	}
	defer rows.Close()

	var options []domain.Option
	for rows.Next() {
		var opt domain.Option
		if err := rows.Scan(&opt.ID, &opt.Text, &opt.Description, &opt.Party, &opt.Position); err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		options = append(options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate options: %w", err)
	}
	return options, nil
}
