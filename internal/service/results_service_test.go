package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pollengine/internal/domain"
	"pollengine/internal/engine"
)

func TestResultsHiddenWhileActive(t *testing.T) {
	f := newVotingFixture(t)
	poll := f.seedPoll(t, nil)

	_, err := f.results.Get(context.Background(), poll.ID, domain.ViewerContext{})
	rej, ok := domain.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, domain.ReasonPollStillActive, rej.Reason)
}

func TestResultsOwnerSeesLiveTally(t *testing.T) {
	f := newVotingFixture(t)
	poll := f.seedPoll(t, nil)
	ctx := context.Background()

	_, err := f.voting.Submit(ctx, poll.ID, authedVoter("alice", "Alice"),
		domain.VoteRequest{OptionIDs: []string{"opt-a"}}, "")
	require.NoError(t, err)

	results, err := f.results.Get(ctx, poll.ID,
		domain.ViewerContext{Authenticated: true, ViewerID: "owner-1"})
	require.NoError(t, err)
	assert.Equal(t, string(engine.ModeFull), results.Mode)
	assert.Equal(t, 1, results.TotalVotes)
}

func TestResultsFullAfterEnd(t *testing.T) {
	f := newVotingFixture(t)
	poll := f.seedPoll(t, nil)
	ctx := context.Background()

	_, err := f.voting.Submit(ctx, poll.ID, authedVoter("alice", "Alice"),
		domain.VoteRequest{OptionIDs: []string{"opt-a"}}, "")
	require.NoError(t, err)
	_, err = f.voting.Submit(ctx, poll.ID, authedVoter("bob", "Bob"),
		domain.VoteRequest{OptionIDs: []string{"opt-b"}}, "")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)

	results, err := f.results.Get(ctx, poll.ID, domain.ViewerContext{})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusEnded, results.Status)
	assert.Equal(t, string(engine.ModeFull), results.Mode)
	assert.Equal(t, 2, results.TotalVotes)
	require.Len(t, results.Options, 3)
	assert.Equal(t, "opt-a", results.Options[0].OptionID, "options keep poll order")
	assert.Equal(t, 1, results.Options[0].Count)
	assert.InDelta(t, 50.0, results.Options[0].Percent, 0.001)
	assert.Equal(t, 0, results.Options[2].Count)
}

func TestResultsPercentagesOnly(t *testing.T) {
	f := newVotingFixture(t)
	poll := f.seedPoll(t, func(p *domain.Poll) {
		p.Settings.HideVoteCounts = true
	})
	ctx := context.Background()

	_, err := f.voting.Submit(ctx, poll.ID, authedVoter("alice", "Alice"),
		domain.VoteRequest{OptionIDs: []string{"opt-a"}}, "")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)

	results, err := f.results.Get(ctx, poll.ID, domain.ViewerContext{})
	require.NoError(t, err)

	assert.Equal(t, string(engine.ModePercentagesOnly), results.Mode)
	assert.Zero(t, results.TotalVotes)
	for _, opt := range results.Options {
		assert.Zero(t, opt.Count)
	}
	assert.InDelta(t, 100.0, results.Options[0].Percent, 0.001)
}

func TestResultsBlurredForNonVoters(t *testing.T) {
	f := newVotingFixture(t)
	poll := f.seedPoll(t, func(p *domain.Poll) {
		p.Settings.ShowResultsBeforeEnd = true
		p.Settings.BlurResultsForNonVoters = true
	})
	ctx := context.Background()

	_, err := f.voting.Submit(ctx, poll.ID, authedVoter("alice", "Alice"),
		domain.VoteRequest{OptionIDs: []string{"opt-a"}}, "")
	require.NoError(t, err)

	blurred, err := f.results.Get(ctx, poll.ID,
		domain.ViewerContext{Authenticated: true, ViewerID: "bob"})
	require.NoError(t, err)
	assert.True(t, blurred.Blurred)
	assert.Equal(t, string(engine.ModeBlurred), blurred.Mode)
	for _, opt := range blurred.Options {
		assert.Zero(t, opt.Count)
		assert.Zero(t, opt.Percent)
	}

	unblurred, err := f.results.Get(ctx, poll.ID,
		domain.ViewerContext{Authenticated: true, ViewerID: "alice"})
	require.NoError(t, err)
	assert.False(t, unblurred.Blurred, "voting lifts the blur")
	assert.Equal(t, string(engine.ModeFull), unblurred.Mode)
}

func TestResultsVoterNameRedaction(t *testing.T) {
	f := newVotingFixture(t)
	poll := f.seedPoll(t, func(p *domain.Poll) {
		p.Settings.ShowVoterNames = true
		p.Settings.VoterNameDisplay = domain.NameDisplayInitials
	})
	ctx := context.Background()

	_, err := f.voting.Submit(ctx, poll.ID, authedVoter("alice", "Alice Liddell"),
		domain.VoteRequest{OptionIDs: []string{"opt-a"}}, "")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)

	results, err := f.results.Get(ctx, poll.ID, domain.ViewerContext{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A.L."}, results.Voters)
}

func TestResultsAnonymizedVoterNames(t *testing.T) {
	f := newVotingFixture(t)
	poll := f.seedPoll(t, func(p *domain.Poll) {
		p.Settings.ShowVoterNames = true
		p.Settings.VoterNameDisplay = domain.NameDisplayAnonymized
	})
	ctx := context.Background()

	_, err := f.voting.Submit(ctx, poll.ID, authedVoter("alice", "Alice Liddell"),
		domain.VoteRequest{OptionIDs: []string{"opt-a"}}, "")
	require.NoError(t, err)
	_, err = f.voting.Submit(ctx, poll.ID, authedVoter("bob", "Bob Tables"),
		domain.VoteRequest{OptionIDs: []string{"opt-b"}}, "")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)

	results, err := f.results.Get(ctx, poll.ID, domain.ViewerContext{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Voter 1", "Voter 2"}, results.Voters)
}

func TestResultsEmbargo(t *testing.T) {
	f := newVotingFixture(t)
	resultAt := f.clock.Now().Add(3 * time.Hour)
	poll := f.seedPoll(t, func(p *domain.Poll) {
		p.ResultAt = &resultAt
	})
	ctx := context.Background()

	_, err := f.voting.Submit(ctx, poll.ID, authedVoter("alice", "Alice"),
		domain.VoteRequest{OptionIDs: []string{"opt-a"}}, "")
	require.NoError(t, err)

	// Poll ends but the embargo still holds.
	f.clock.Advance(2 * time.Hour)

	_, err = f.results.Get(ctx, poll.ID,
		domain.ViewerContext{Authenticated: true, ViewerID: "alice"})
	rej, ok := domain.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, domain.ReasonResultsEmbargoed, rej.Reason, "the embargo binds voters too")

	// The owner may look behind the embargo.
	_, err = f.results.Get(ctx, poll.ID,
		domain.ViewerContext{Authenticated: true, ViewerID: "owner-1"})
	require.NoError(t, err)

	// Embargo lifts.
	f.clock.Advance(2 * time.Hour)
	results, err := f.results.Get(ctx, poll.ID, domain.ViewerContext{})
	require.NoError(t, err)
	assert.Equal(t, 1, results.TotalVotes)
}

func TestResultsPublishedAuditOnce(t *testing.T) {
	f := newVotingFixture(t)
	poll := f.seedPoll(t, nil)
	ctx := context.Background()

	_, err := f.voting.Submit(ctx, poll.ID, authedVoter("alice", "Alice"),
		domain.VoteRequest{OptionIDs: []string{"opt-a"}}, "")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)

	for i := 0; i < 3; i++ {
		_, err := f.results.Get(ctx, poll.ID, domain.ViewerContext{})
		require.NoError(t, err)
	}

	published := f.audit.byAction(domain.ActionResultsPublished)
	require.Len(t, published, 1)
	assert.Equal(t, domain.SystemActor, published[0].Actor)
}

func TestResultsPostVoteException(t *testing.T) {
	f := newVotingFixture(t)
	poll := f.seedPoll(t, func(p *domain.Poll) {
		p.Settings.ShowResultsAfterVote = true
	})
	ctx := context.Background()

	// Before voting the live tally stays hidden.
	_, err := f.results.Get(ctx, poll.ID,
		domain.ViewerContext{Authenticated: true, ViewerID: "alice"})
	rej, ok := domain.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, domain.ReasonPollStillActive, rej.Reason)

	_, err = f.voting.Submit(ctx, poll.ID, authedVoter("alice", "Alice"),
		domain.VoteRequest{OptionIDs: []string{"opt-a"}}, "")
	require.NoError(t, err)

	results, err := f.results.Get(ctx, poll.ID,
		domain.ViewerContext{Authenticated: true, ViewerID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, results.Status)
}
