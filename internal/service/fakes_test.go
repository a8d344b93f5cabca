package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pollengine/internal/domain"
	"pollengine/pkg/redis"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakePollRepo struct {
	mu    sync.Mutex
	polls map[string]*domain.Poll
}

func newFakePollRepo() *fakePollRepo {
	return &fakePollRepo{polls: make(map[string]*domain.Poll)}
}

func (r *fakePollRepo) Create(_ context.Context, poll *domain.Poll) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *poll
	r.polls[poll.ID] = &cp
	return nil
}

func (r *fakePollRepo) GetByID(_ context.Context, pollID string) (*domain.Poll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	poll, ok := r.polls[pollID]
	if !ok {
		return nil, nil
	}
	cp := *poll
	return &cp, nil
}

func (r *fakePollRepo) List(_ context.Context) ([]*domain.Poll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Poll, 0, len(r.polls))
	for _, p := range r.polls {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakePollRepo) Update(_ context.Context, poll *domain.Poll) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.polls[poll.ID]
	if !ok || current.Version != poll.Version {
		return domain.ErrVersionConflict
	}
	cp := *poll
	cp.Version = poll.Version + 1
	r.polls[poll.ID] = &cp
	return nil
}

func (r *fakePollRepo) ForceClose(_ context.Context, pollID string, closedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	poll, ok := r.polls[pollID]
	if !ok {
		return false, domain.ErrPollNotFound
	}
	if poll.ForceClosed {
		return false, nil
	}
	poll.ForceClosed = true
	poll.ClosedAt = &closedAt
	poll.Version++
	return true, nil
}

type fakeVoteRepo struct {
	mu    sync.Mutex
	votes []domain.Vote
}

func newFakeVoteRepo() *fakeVoteRepo { return &fakeVoteRepo{} }

func (r *fakeVoteRepo) Create(_ context.Context, vote *domain.Vote, exclusive bool, limit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ballots, selections := 0, 0
	for _, v := range r.votes {
		if v.PollID == vote.PollID && v.VoterKey == vote.VoterKey {
			ballots++
			selections += len(v.OptionIDs)
		}
	}
	if exclusive && ballots > 0 {
		return domain.Reject(domain.ReasonAlreadyVoted)
	}
	if limit > 0 && selections+len(vote.OptionIDs) > limit {
		return domain.Reject(domain.ReasonVoteLimitReached)
	}
	r.votes = append(r.votes, *vote)
	return nil
}

func (r *fakeVoteRepo) ListByVoter(_ context.Context, pollID, voterKey string) ([]domain.Vote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Vote
	for _, v := range r.votes {
		if v.PollID == pollID && v.VoterKey == voterKey {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *fakeVoteRepo) GetByID(_ context.Context, voteID string) (*domain.Vote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.votes {
		if v.ID == voteID {
			cp := v
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeVoteRepo) TallyByOption(_ context.Context, pollID string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tally := make(map[string]int)
	for _, v := range r.votes {
		if v.PollID != pollID {
			continue
		}
		for _, opt := range v.OptionIDs {
			tally[opt]++
		}
	}
	return tally, nil
}

func (r *fakeVoteRepo) CountBallots(_ context.Context, pollID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, v := range r.votes {
		if v.PollID == pollID {
			n++
		}
	}
	return n, nil
}

func (r *fakeVoteRepo) CountVoters(_ context.Context, pollID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make(map[string]bool)
	for _, v := range r.votes {
		if v.PollID == pollID {
			keys[v.VoterKey] = true
		}
	}
	return len(keys), nil
}

func (r *fakeVoteRepo) VoterNames(_ context.Context, pollID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool)
	var names []string
	for _, v := range r.votes {
		if v.PollID == pollID && v.VoterName != "" && !seen[v.VoterName] {
			seen[v.VoterName] = true
			names = append(names, v.VoterName)
		}
	}
	return names, nil
}

type fakeAuditRepo struct {
	mu        sync.Mutex
	entries   []domain.AuditLogEntry
	appendErr error
}

func newFakeAuditRepo() *fakeAuditRepo { return &fakeAuditRepo{} }

func (r *fakeAuditRepo) failAppends(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appendErr = err
}

func (r *fakeAuditRepo) Append(_ context.Context, entry *domain.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return r.appendErr
	}
	entry.Seq = int64(len(r.entries) + 1)
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeAuditRepo) ListByPoll(_ context.Context, pollID string) ([]domain.AuditLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AuditLogEntry
	for _, e := range r.entries {
		if e.PollID == pollID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (r *fakeAuditRepo) byAction(action domain.AuditAction) []domain.AuditLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AuditLogEntry
	for _, e := range r.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

func newTestCache(t *testing.T) *CacheService {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient("redis://"+mr.Addr(), "test", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewCacheService(client, zap.NewNop())
}
