package repository

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"pollengine/internal/domain"
	"pollengine/pkg/database"
)

// VoteRepository persists immutable vote records. There is no update or
// delete method on purpose.
type VoteRepository struct {
	db *database.PostgresDB
}

func NewVoteRepository(db *database.PostgresDB) *VoteRepository {
	return &VoteRepository{db: db}
}

// voterLockKey derives the advisory lock key serializing all writes for
// one (poll, voter) pair.
func voterLockKey(pollID, voterKey string) int64 {
	h := fnv.New64a()
	h.Write([]byte(pollID))
	h.Write([]byte{0})
	h.Write([]byte(voterKey))
	return int64(h.Sum64())
}

// Create inserts a vote after re-checking the voter's budget under an
// advisory lock, so concurrent submissions for the same voter serialize
// and exactly one wins. exclusive marks single-vote polls; limit is the
// voter's total selection budget across ballots, 0 meaning unlimited.
//
// Budget violations come back as typed rejections, not storage errors.
func (r *VoteRepository) Create(ctx context.Context, vote *domain.Vote, exclusive bool, limit int) error {
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`,
			voterLockKey(vote.PollID, vote.VoterKey)); err != nil {
			return fmt.Errorf("failed to acquire voter lock: %w", err)
		}

		var ballots, selections int
		if err := tx.QueryRow(ctx, `
			SELECT COUNT(*), COALESCE(SUM(cardinality(option_ids)), 0)
			FROM votes
			WHERE poll_id = $1 AND voter_key = $2`,
			vote.PollID, vote.VoterKey).Scan(&ballots, &selections); err != nil {
			return fmt.Errorf("failed to count prior votes: %w", err)
		}

		if exclusive && ballots > 0 {
			return domain.Reject(domain.ReasonAlreadyVoted)
		}
		if limit > 0 && selections+len(vote.OptionIDs) > limit {
			return domain.Rejectf(domain.ReasonVoteLimitReached,
				"voter has %d of %d selections used", selections, limit)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO votes (id, poll_id, voter_id, voter_name, voter_key,
			                   option_ids, receipt, exclusive, cast_at)
			VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9)`,
			vote.ID, vote.PollID, vote.VoterID, vote.VoterName, vote.VoterKey,
			vote.OptionIDs, vote.Receipt, exclusive, vote.CastAt); err != nil {
			return fmt.Errorf("failed to insert vote: %w", err)
		}
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Reject(domain.ReasonAlreadyVoted)
		}
		return err
	}
	return nil
}

// ListByVoter returns a voter's ballots in a poll ordered by cast time.
func (r *VoteRepository) ListByVoter(ctx context.Context, pollID, voterKey string) ([]domain.Vote, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, poll_id, COALESCE(voter_id, ''), voter_name, voter_key,
		       option_ids, receipt, cast_at
		FROM votes
		WHERE poll_id = $1 AND voter_key = $2
		ORDER BY cast_at, id`, pollID, voterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	defer rows.Close()

	return scanVotes(rows)
}

// GetByID loads a single vote. Returns (nil, nil) when absent.
func (r *VoteRepository) GetByID(ctx context.Context, voteID string) (*domain.Vote, error) {
	var v domain.Vote
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, poll_id, COALESCE(voter_id, ''), voter_name, voter_key,
		       option_ids, receipt, cast_at
		FROM votes
		WHERE id = $1`, voteID).Scan(
		&v.ID, &v.PollID, &v.VoterID, &v.VoterName, &v.VoterKey,
		&v.OptionIDs, &v.Receipt, &v.CastAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	return &v, nil
}

// TallyByOption returns selection counts keyed by option ID.
func (r *VoteRepository) TallyByOption(ctx context.Context, pollID string) (map[string]int, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT opt, COUNT(*)
		FROM votes, unnest(option_ids) AS opt
		WHERE poll_id = $1
		GROUP BY opt`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to tally votes: %w", err)
	}
	defer rows.Close()

	tally := make(map[string]int)
	for rows.Next() {
		var (
			optionID string
			count    int
		)
		if err := rows.Scan(&optionID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan tally: %w", err)
		}
		tally[optionID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tally: %w", err)
	}
	return tally, nil
}

// CountBallots returns the number of vote records in a poll.
func (r *VoteRepository) CountBallots(ctx context.Context, pollID string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM votes WHERE poll_id = $1`, pollID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count ballots: %w", err)
	}
	return n, nil
}

// CountVoters returns the number of distinct voters in a poll.
func (r *VoteRepository) CountVoters(ctx context.Context, pollID string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT voter_key) FROM votes WHERE poll_id = $1`, pollID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count voters: %w", err)
	}
	return n, nil
}

// VoterNames returns the distinct non-empty voter names in first-vote order.
// Anonymous ballots carry no name and are excluded here.
func (r *VoteRepository) VoterNames(ctx context.Context, pollID string) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT voter_name
		FROM votes
		WHERE poll_id = $1 AND voter_name <> ''
		GROUP BY voter_name
		ORDER BY MIN(cast_at)`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to list voter names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan voter name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate voter names: %w", err)
	}
	return names, nil
}

func scanVotes(rows pgx.Rows) ([]domain.Vote, error) {
	var votes []domain.Vote
	for rows.Next() {
		var v domain.Vote
		if err := rows.Scan(
			&v.ID, &v.PollID, &v.VoterID, &v.VoterName, &v.VoterKey,
			&v.OptionIDs, &v.Receipt, &v.CastAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate votes: %w", err)
	}
	return votes, nil
}
