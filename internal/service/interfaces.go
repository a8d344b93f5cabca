package service

import (
	"context"
	"time"

	"pollengine/internal/domain"
)

// PollRepository is the poll storage surface the services depend on.
type PollRepository interface {
	Create(ctx context.Context, poll *domain.Poll) error
	GetByID(ctx context.Context, pollID string) (*domain.Poll, error)
	List(ctx context.Context) ([]*domain.Poll, error)
	Update(ctx context.Context, poll *domain.Poll) error
	ForceClose(ctx context.Context, pollID string, closedAt time.Time) (bool, error)
}

// VoteRepository is the vote storage surface. Votes are append-only.
type VoteRepository interface {
	Create(ctx context.Context, vote *domain.Vote, exclusive bool, limit int) error
	ListByVoter(ctx context.Context, pollID, voterKey string) ([]domain.Vote, error)
	GetByID(ctx context.Context, voteID string) (*domain.Vote, error)
	TallyByOption(ctx context.Context, pollID string) (map[string]int, error)
	CountBallots(ctx context.Context, pollID string) (int, error)
	CountVoters(ctx context.Context, pollID string) (int, error)
	VoterNames(ctx context.Context, pollID string) ([]string, error)
}

// AuditRepository is the append-only audit log surface.
type AuditRepository interface {
	Append(ctx context.Context, entry *domain.AuditLogEntry) error
	ListByPoll(ctx context.Context, pollID string) ([]domain.AuditLogEntry, error)
}
