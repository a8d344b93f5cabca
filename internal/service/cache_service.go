package service

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pollengine/internal/domain"
	"pollengine/pkg/redis"
)

// idemPending marks an idempotency key whose first request is still in
// flight. Once the vote persists the key is overwritten with the vote ID.
const idemPending = "pending"

// CacheService wraps Redis for the poll engine's read-through caches and
// idempotency markers. Cached values are never authoritative: every miss
// or Redis failure falls back to the database, and eligibility and
// visibility always recompute from stored timestamps.
type CacheService struct {
	redis *redis.Client
	log   *zap.Logger
}

func NewCacheService(redisClient *redis.Client, log *zap.Logger) *CacheService {
	return &CacheService{redis: redisClient, log: log}
}

// GetPoll returns the cached poll document, or nil on a miss.
func (s *CacheService) GetPoll(ctx context.Context, pollID string) *domain.Poll {
	raw, err := s.redis.Get(ctx, s.redis.KeyBuilder.Poll(pollID))
	if err != nil {
		if err != goredis.Nil {
			s.log.Warn("poll cache read failed", zap.String("poll_id", pollID), zap.Error(err))
		}
		return nil
	}
	var poll domain.Poll
	if err := json.Unmarshal([]byte(raw), &poll); err != nil {
		s.log.Warn("poll cache corrupt, ignoring", zap.String("poll_id", pollID), zap.Error(err))
		return nil
	}
	// Sliding expiry keeps hot polls cached between writes.
	if err := s.redis.Expire(ctx, s.redis.KeyBuilder.Poll(pollID), redis.TTLPoll); err != nil {
		s.log.Warn("poll cache ttl refresh failed", zap.String("poll_id", pollID), zap.Error(err))
	}
	return &poll
}

// SetPoll caches a poll document. Failures are logged and swallowed.
func (s *CacheService) SetPoll(ctx context.Context, poll *domain.Poll) {
	payload, err := json.Marshal(poll)
	if err != nil {
		s.log.Warn("poll cache marshal failed", zap.String("poll_id", poll.ID), zap.Error(err))
		return
	}
	if err := s.redis.Set(ctx, s.redis.KeyBuilder.Poll(poll.ID), payload, redis.TTLPoll); err != nil {
		s.log.Warn("poll cache write failed", zap.String("poll_id", poll.ID), zap.Error(err))
	}
}

// cachedTally is the serialized tally snapshot.
type cachedTally struct {
	Counts  map[string]int `json:"counts"`
	Ballots int            `json:"ballots"`
	Voters  int            `json:"voters"`
}

// GetTally returns cached tallies, or ok=false on a miss.
func (s *CacheService) GetTally(ctx context.Context, pollID string) (map[string]int, int, int, bool) {
	raw, err := s.redis.Get(ctx, s.redis.KeyBuilder.Tally(pollID))
	if err != nil {
		if err != goredis.Nil {
			s.log.Warn("tally cache read failed", zap.String("poll_id", pollID), zap.Error(err))
		}
		return nil, 0, 0, false
	}
	var t cachedTally
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		s.log.Warn("tally cache corrupt, ignoring", zap.String("poll_id", pollID), zap.Error(err))
		return nil, 0, 0, false
	}
	return t.Counts, t.Ballots, t.Voters, true
}

// SetTally caches tallies with a short TTL.
func (s *CacheService) SetTally(ctx context.Context, pollID string, counts map[string]int, ballots, voters int) {
	payload, err := json.Marshal(cachedTally{Counts: counts, Ballots: ballots, Voters: voters})
	if err != nil {
		s.log.Warn("tally cache marshal failed", zap.String("poll_id", pollID), zap.Error(err))
		return
	}
	if err := s.redis.Set(ctx, s.redis.KeyBuilder.Tally(pollID), payload, redis.TTLTally); err != nil {
		s.log.Warn("tally cache write failed", zap.String("poll_id", pollID), zap.Error(err))
	}
}

// InvalidatePoll drops all cached state for a poll.
func (s *CacheService) InvalidatePoll(ctx context.Context, pollID string) {
	keys := []string{
		s.redis.KeyBuilder.Poll(pollID),
		s.redis.KeyBuilder.Tally(pollID),
		s.redis.KeyBuilder.PollList(),
	}
	if err := s.redis.Delete(ctx, keys...); err != nil {
		s.log.Warn("cache invalidation failed", zap.String("poll_id", pollID), zap.Error(err))
	}
}

// AfterVote applies the cache effects of a persisted vote in one round
// trip: the voter's status marker is written for cheap duplicate
// screening and the poll's cached state is dropped.
func (s *CacheService) AfterVote(ctx context.Context, pollID, voterKey string) {
	pipe := s.redis.Pipeline()
	pipe.Set(ctx, s.redis.KeyBuilder.VoterStatus(pollID, voterKey), "1", redis.TTLVoterStatus)
	pipe.Del(ctx,
		s.redis.KeyBuilder.Poll(pollID),
		s.redis.KeyBuilder.Tally(pollID),
		s.redis.KeyBuilder.PollList())
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn("post-vote cache update failed", zap.String("poll_id", pollID), zap.Error(err))
	}
}

// TryIdempotency claims an idempotency token. The first caller wins and
// owns the submission; later callers get winner=false and the stored
// value, which is idemPending until the winner finishes.
func (s *CacheService) TryIdempotency(ctx context.Context, token string) (winner bool, stored string, err error) {
	key := s.redis.KeyBuilder.Idempotency(token)
	winner, err = s.redis.SetNX(ctx, key, idemPending, redis.TTLIdempotency)
	if err != nil {
		return false, "", fmt.Errorf("failed to claim idempotency token: %w", err)
	}
	if winner {
		return true, "", nil
	}
	stored, err = s.redis.Get(ctx, key)
	if err != nil && err != goredis.Nil {
		return false, "", fmt.Errorf("failed to read idempotency token: %w", err)
	}
	return false, stored, nil
}

// FinishIdempotency records the vote ID behind a claimed token so replays
// can return the original outcome.
func (s *CacheService) FinishIdempotency(ctx context.Context, token, voteID string) {
	key := s.redis.KeyBuilder.Idempotency(token)
	if err := s.redis.Set(ctx, key, voteID, redis.TTLIdempotency); err != nil {
		s.log.Warn("idempotency finish failed", zap.String("token", token), zap.Error(err))
	}
}

// ReleaseIdempotency frees a claimed token after a failed submission so
// the client can retry.
func (s *CacheService) ReleaseIdempotency(ctx context.Context, token string) {
	if token == "" {
		return
	}
	if err := s.redis.Delete(ctx, s.redis.KeyBuilder.Idempotency(token)); err != nil {
		s.log.Warn("idempotency release failed", zap.String("token", token), zap.Error(err))
	}
}

// IsPending reports whether an idempotency value marks an in-flight request.
func IsPending(stored string) bool { return stored == idemPending }

// MarkResultsPublished records, once per poll, that results became public.
// Returns true only for the caller that performed the transition.
func (s *CacheService) MarkResultsPublished(ctx context.Context, pollID string) bool {
	key := s.redis.KeyBuilder.ResultsPublished(pollID)
	first, err := s.redis.SetNX(ctx, key, "1", 0)
	if err != nil {
		s.log.Warn("results published marker failed", zap.String("poll_id", pollID), zap.Error(err))
		return false
	}
	return first
}
