package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"pollengine/internal/domain"
	"pollengine/internal/engine"
	apperrors "pollengine/pkg/errors"
)

// ResultsService assembles poll results after the visibility policy has
// had its say.
type ResultsService struct {
	polls *PollService
	votes VoteRepository
	audit *AuditService
	cache *CacheService
	clock engine.Clock
	log   *zap.Logger
}

func NewResultsService(polls *PollService, votes VoteRepository, audit *AuditService, cache *CacheService, clock engine.Clock, log *zap.Logger) *ResultsService {
	return &ResultsService{polls: polls, votes: votes, audit: audit, cache: cache, clock: clock, log: log}
}

// Get returns the results a viewer is entitled to see. Hidden results come
// back as a typed rejection carrying the decision's reason.
func (s *ResultsService) Get(ctx context.Context, pollID string, viewer domain.ViewerContext) (*domain.Results, error) {
	poll, err := s.polls.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	viewer.Owner = viewer.Authenticated && viewer.ViewerID == poll.CreatedBy
	if viewer.ViewerID != "" && !viewer.HasVoted {
		votes, err := s.votes.ListByVoter(ctx, pollID, VoterKey(pollID, viewer.ViewerID))
		if err != nil {
			return nil, err
		}
		viewer.HasVoted = len(votes) > 0
	}

	decision := engine.ResolveVisibility(poll, viewer, now)
	if !decision.Visible {
		return nil, apperrors.NewRejectionError(domain.Reject(decision.Reason))
	}

	counts, ballots, _, err := s.tally(ctx, pollID)
	if err != nil {
		return nil, err
	}

	status := engine.ComputeStatus(poll, now)
	results := &domain.Results{
		PollID:     poll.ID,
		Status:     status,
		Mode:       string(decision.Mode),
		TotalVotes: ballots,
		LastUpdate: now,
	}

	selections := 0
	for _, n := range counts {
		selections += n
	}
	for _, opt := range poll.Options {
		tally := domain.OptionTally{OptionID: opt.ID, Text: opt.Text}
		if decision.Mode != engine.ModeBlurred {
			count := counts[opt.ID]
			tally.Percent = percent(count, selections)
			if decision.Mode == engine.ModeFull {
				tally.Count = count
			}
		}
		results.Options = append(results.Options, tally)
	}

	switch decision.Mode {
	case engine.ModeFull:
		if poll.Settings.ShowVoterNames && !poll.Settings.AnonymousVoting {
			names, err := s.votes.VoterNames(ctx, pollID)
			if err != nil {
				return nil, err
			}
			results.Voters = redactNames(names, poll.Settings.VoterNameDisplay)
		}
	case engine.ModePercentagesOnly:
		results.TotalVotes = 0
	case engine.ModeBlurred:
		results.Blurred = true
		results.TotalVotes = 0
	}

	s.markPublished(ctx, poll, status, now)
	return results, nil
}

// tally returns per-option counts, ballot count, and distinct voter count,
// cache first with a short TTL.
func (s *ResultsService) tally(ctx context.Context, pollID string) (map[string]int, int, int, error) {
	if counts, ballots, voters, ok := s.cache.GetTally(ctx, pollID); ok {
		return counts, ballots, voters, nil
	}

	counts, err := s.votes.TallyByOption(ctx, pollID)
	if err != nil {
		return nil, 0, 0, err
	}
	ballots, err := s.votes.CountBallots(ctx, pollID)
	if err != nil {
		return nil, 0, 0, err
	}
	voters, err := s.votes.CountVoters(ctx, pollID)
	if err != nil {
		return nil, 0, 0, err
	}

	s.cache.SetTally(ctx, pollID, counts, ballots, voters)
	return counts, ballots, voters, nil
}

// markPublished writes the one-shot ResultsPublished audit entry the first
// time results are served after the poll has ended and any embargo lifted.
func (s *ResultsService) markPublished(ctx context.Context, poll *domain.Poll, status domain.PollStatus, now time.Time) {
	if status != domain.StatusEnded {
		return
	}
	if poll.ResultAt != nil && now.Before(*poll.ResultAt) {
		return
	}
	if !s.cache.MarkResultsPublished(ctx, poll.ID) {
		return
	}
	s.audit.RecordOrLog(ctx, poll.ID, domain.SystemActor, domain.ActionResultsPublished, "", nil)
}

func percent(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

// redactNames applies the poll's name display mode.
func redactNames(names []string, mode domain.NameDisplay) []string {
	out := make([]string, 0, len(names))
	for i, name := range names {
		switch mode {
		case domain.NameDisplayInitials:
			out = append(out, initials(name))
		case domain.NameDisplayAnonymized:
			out = append(out, fmt.Sprintf("Voter %d", i+1))
		default:
			out = append(out, name)
		}
	}
	return out
}

func initials(name string) string {
	var b strings.Builder
	for _, word := range strings.Fields(name) {
		r := []rune(word)
		b.WriteRune(r[0])
		b.WriteByte('.')
	}
	if b.Len() == 0 {
		return name
	}
	return b.String()
}
