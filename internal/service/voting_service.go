package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pollengine/internal/domain"
	"pollengine/internal/engine"
	"pollengine/internal/notify"
	apperrors "pollengine/pkg/errors"
)

// VotingService owns the vote submission path: eligibility, ballot
// validation, persistence, audit, and idempotent replays.
type VotingService struct {
	polls    *PollService
	votes    VoteRepository
	audit    *AuditService
	cache    *CacheService
	notifier notify.Notifier
	clock    engine.Clock
	log      *zap.Logger
}

func NewVotingService(polls *PollService, votes VoteRepository, audit *AuditService, cache *CacheService, notifier notify.Notifier, clock engine.Clock, log *zap.Logger) *VotingService {
	return &VotingService{
		polls:    polls,
		votes:    votes,
		audit:    audit,
		cache:    cache,
		notifier: notifier,
		clock:    clock,
		log:      log,
	}
}

// VoterKey derives the stable per-poll voter commitment. For anonymous
// polls this is the only identity material that gets stored.
func VoterKey(pollID, voterID string) string {
	sum := sha256.Sum256([]byte(pollID + "|" + voterID))
	return hex.EncodeToString(sum[:])
}

// receipt derives the verification hash handed back to the voter.
func receipt(voteID, pollID, voterKey string, optionIDs []string, castAt time.Time) string {
	payload := strings.Join([]string{
		voteID, pollID, voterKey,
		strings.Join(optionIDs, ","),
		fmt.Sprintf("%d", castAt.UnixNano()),
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Submit casts a ballot. idemToken, when non-empty, makes the call
// idempotent: a replay with the same token returns the original outcome
// with Duplicate set instead of casting again.
//
// Denials and invalid ballots are recorded as VoteRejected audit entries;
// an accepted vote gets exactly one VoteCast entry.
func (s *VotingService) Submit(ctx context.Context, pollID string, voter domain.VoterContext, req domain.VoteRequest, idemToken string) (*domain.VoteResponse, error) {
	poll, err := s.polls.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}

	if idemToken != "" {
		winner, stored, err := s.cache.TryIdempotency(ctx, idemToken)
		if err != nil {
			return nil, err
		}
		if !winner {
			return s.replay(ctx, poll, stored)
		}
	}

	resp, err := s.submit(ctx, poll, voter, req)
	if err != nil {
		s.cache.ReleaseIdempotency(ctx, idemToken)
		return nil, err
	}
	if idemToken != "" {
		s.cache.FinishIdempotency(ctx, idemToken, resp.VoteID)
	}
	return resp, nil
}

func (s *VotingService) submit(ctx context.Context, poll *domain.Poll, voter domain.VoterContext, req domain.VoteRequest) (*domain.VoteResponse, error) {
	now := s.clock.Now()
	voterKey := VoterKey(poll.ID, voter.VoterID)

	priorVotes, err := s.votes.ListByVoter(ctx, poll.ID, voterKey)
	if err != nil {
		return nil, err
	}
	voter.PriorVotes = priorVotes

	if decision := engine.EvaluateEligibility(poll, voter, now); !decision.Allowed {
		if err := s.recordRejection(ctx, poll.ID, voter, decision.Reason, ""); err != nil {
			return nil, err
		}
		return nil, apperrors.NewRejectionError(domain.Reject(decision.Reason))
	}

	ballot, err := engine.ValidateBallot(poll, domain.Ballot{OptionIDs: req.OptionIDs})
	if err != nil {
		if rej, ok := domain.AsRejection(err); ok {
			if auditErr := s.recordRejection(ctx, poll.ID, voter, rej.Reason, rej.Detail); auditErr != nil {
				return nil, auditErr
			}
			return nil, apperrors.NewRejectionError(rej)
		}
		return nil, err
	}

	vote := &domain.Vote{
		ID:        uuid.New().String(),
		PollID:    poll.ID,
		VoterKey:  voterKey,
		OptionIDs: ballot.OptionIDs,
		CastAt:    now,
	}
	if !poll.Settings.AnonymousVoting {
		vote.VoterID = voter.VoterID
		vote.VoterName = voter.DisplayName
	}
	vote.Receipt = receipt(vote.ID, vote.PollID, vote.VoterKey, vote.OptionIDs, vote.CastAt)

	// exclusive covers single-vote polls; the budget caps total selections
	// across ballots on multi-vote polls, 0 meaning uncapped.
	exclusive := !poll.Settings.AllowMultipleVotes
	if err := s.votes.Create(ctx, vote, exclusive, poll.Settings.MaxVotesPerVoter); err != nil {
		if rej, ok := domain.AsRejection(err); ok {
			if auditErr := s.recordRejection(ctx, poll.ID, voter, rej.Reason, rej.Detail); auditErr != nil {
				return nil, auditErr
			}
			return nil, apperrors.NewRejectionError(rej)
		}
		return nil, err
	}

	s.audit.RecordOrLog(ctx, poll.ID, auditActor(poll, voter), domain.ActionVoteCast,
		firstOption(vote.OptionIDs), map[string]interface{}{
			"vote_id":    vote.ID,
			"selections": len(vote.OptionIDs),
		})

	s.cache.AfterVote(ctx, poll.ID, voterKey)
	s.publish(notify.EventVoteCast, poll.ID)

	return &domain.VoteResponse{
		VoteID:    vote.ID,
		PollID:    vote.PollID,
		OptionIDs: vote.OptionIDs,
		Receipt:   vote.Receipt,
		CastAt:    vote.CastAt,
		Message:   "vote recorded",
	}, nil
}

// replay resolves a losing idempotency claim: a finished token returns
// the original vote, an in-flight one tells the client to retry later.
func (s *VotingService) replay(ctx context.Context, poll *domain.Poll, stored string) (*domain.VoteResponse, error) {
	if stored == "" || IsPending(stored) {
		return nil, apperrors.NewConflictError("a submission with this idempotency key is still in progress")
	}

	vote, err := s.votes.GetByID(ctx, stored)
	if err != nil {
		return nil, err
	}
	if vote == nil || vote.PollID != poll.ID {
		return nil, apperrors.NewConflictError("idempotency key was used for a different poll")
	}

	return &domain.VoteResponse{
		VoteID:    vote.ID,
		PollID:    vote.PollID,
		OptionIDs: vote.OptionIDs,
		Receipt:   vote.Receipt,
		CastAt:    vote.CastAt,
		Duplicate: true,
		Message:   "vote already recorded",
	}, nil
}

// MyVote reports the caller's own participation. For anonymous polls only
// the fact of having voted is disclosed, not the ballot content.
func (s *VotingService) MyVote(ctx context.Context, pollID string, voter domain.VoterContext) (*domain.MyVoteResponse, error) {
	poll, err := s.polls.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}

	votes, err := s.votes.ListByVoter(ctx, pollID, VoterKey(pollID, voter.VoterID))
	if err != nil {
		return nil, err
	}
	if len(votes) == 0 {
		return &domain.MyVoteResponse{}, nil
	}

	castAt := votes[0].CastAt
	if poll.Settings.AnonymousVoting {
		return &domain.MyVoteResponse{HasVoted: true, Anonymous: true, CastAt: &castAt}, nil
	}
	return &domain.MyVoteResponse{HasVoted: true, Votes: votes, CastAt: &castAt}, nil
}

// Verify checks a receipt against a stored vote.
func (s *VotingService) Verify(ctx context.Context, voteID, voteReceipt string) (bool, error) {
	vote, err := s.votes.GetByID(ctx, voteID)
	if err != nil {
		return false, err
	}
	if vote == nil {
		return false, domain.ErrVoteNotFound
	}
	return vote.Receipt == voteReceipt, nil
}

// recordRejection appends the VoteRejected entry for a deny. Nothing has
// persisted yet at this point, so a failed write fails the whole request
// rather than reporting a rejection that left no trace.
func (s *VotingService) recordRejection(ctx context.Context, pollID string, voter domain.VoterContext, reason domain.RejectReason, detail string) error {
	entry := map[string]interface{}{"reason": string(reason)}
	if detail != "" {
		entry["detail"] = detail
	}
	actor := domain.SystemActor
	if voter.Authenticated {
		actor = voter.VoterID
	}
	return s.audit.Record(ctx, pollID, actor, domain.ActionVoteRejected, "", entry)
}

func (s *VotingService) publish(eventType, pollID string) {
	event := notify.Event{Type: eventType, PollID: pollID, Timestamp: s.clock.Now()}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.notifier.Publish(ctx, event); err != nil {
			s.log.Warn("event publish failed",
				zap.String("type", eventType),
				zap.String("poll_id", pollID),
				zap.Error(err))
		}
	}()
}

// auditActor is the identity written into vote audit entries. Anonymous
// polls never record the voter ID.
func auditActor(poll *domain.Poll, voter domain.VoterContext) string {
	if poll.Settings.AnonymousVoting || !voter.Authenticated {
		return domain.SystemActor
	}
	return voter.VoterID
}

func firstOption(optionIDs []string) string {
	if len(optionIDs) == 1 {
		return optionIDs[0]
	}
	return ""
}
