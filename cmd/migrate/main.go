package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"pollengine/internal/config"
	"pollengine/pkg/database"
)

var upStatements = []string{
	`CREATE TABLE IF NOT EXISTS polls (
		id           UUID PRIMARY KEY,
		title        TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		category     TEXT NOT NULL DEFAULT '',
		start_at     TIMESTAMPTZ NOT NULL,
		end_at       TIMESTAMPTZ NOT NULL,
		result_at    TIMESTAMPTZ,
		settings     JSONB NOT NULL DEFAULT '{}',
		version      INTEGER NOT NULL DEFAULT 1,
		force_closed BOOLEAN NOT NULL DEFAULT FALSE,
		closed_at    TIMESTAMPTZ,
		created_by   TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT polls_window CHECK (end_at > start_at)
	)`,

	`CREATE TABLE IF NOT EXISTS poll_options (
		id          UUID PRIMARY KEY,
		poll_id     UUID NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
		text        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		party       TEXT NOT NULL DEFAULT '',
		position    INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_poll_options_poll
		ON poll_options (poll_id, position)`,

	`CREATE TABLE IF NOT EXISTS votes (
		id         UUID PRIMARY KEY,
		poll_id    UUID NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
		voter_id   TEXT,
		voter_name TEXT NOT NULL DEFAULT '',
		voter_key  TEXT NOT NULL,
		option_ids TEXT[] NOT NULL,
		receipt    TEXT NOT NULL,
		exclusive  BOOLEAN NOT NULL DEFAULT FALSE,
		cast_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_votes_poll_voter
		ON votes (poll_id, voter_key)`,
	// Single-vote polls get a hard uniqueness guarantee on top of the
	// advisory-lock check.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_votes_single_per_voter
		ON votes (poll_id, voter_key) WHERE exclusive`,

	`CREATE TABLE IF NOT EXISTS audit_log (
		seq       BIGSERIAL PRIMARY KEY,
		id        UUID NOT NULL,
		poll_id   UUID NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
		actor     TEXT NOT NULL,
		action    TEXT NOT NULL,
		option_id UUID,
		ts        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		detail    JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_poll
		ON audit_log (poll_id, ts, seq)`,
}

var dropStatements = []string{
	`DROP TABLE IF EXISTS audit_log`,
	`DROP TABLE IF EXISTS votes`,
	`DROP TABLE IF EXISTS poll_options`,
	`DROP TABLE IF EXISTS polls`,
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: migrate <up|drop|seed>")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	switch os.Args[1] {
	case "up":
		err = run(ctx, db, upStatements)
	case "drop":
		err = run(ctx, db, dropStatements)
	case "seed":
		err = seed(ctx, db)
	default:
		fmt.Printf("unknown command %q\n", os.Args[1])
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("Migration failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("done")
}

func run(ctx context.Context, db *database.PostgresDB, statements []string) error {
	for _, stmt := range statements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("statement failed: %w", err)
		}
	}
	return nil
}

// seed creates a demonstration poll for local development.
func seed(ctx context.Context, db *database.PostgresDB) error {
	pollID := uuid.New().String()
	now := time.Now().UTC()

	_, err := db.Pool.Exec(ctx, `
		INSERT INTO polls (id, title, description, category, start_at, end_at, settings, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		pollID,
		"Team offsite location",
		"Pick where the Q3 offsite should happen.",
		"internal",
		now,
		now.Add(7*24*time.Hour),
		`{"show_results_after_vote": true, "blur_results_for_non_voters": true}`,
		"seed")
	if err != nil {
		return fmt.Errorf("failed to seed poll: %w", err)
	}

	for i, text := range []string{"Lisbon", "Kyoto", "Vancouver"} {
		_, err := db.Pool.Exec(ctx, `
			INSERT INTO poll_options (id, poll_id, text, position)
			VALUES ($1, $2, $3, $4)`,
			uuid.New().String(), pollID, text, i)
		if err != nil {
			return fmt.Errorf("failed to seed option: %w", err)
		}
	}

	fmt.Printf("seeded poll %s\n", pollID)
	return nil
}
