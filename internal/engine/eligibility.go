package engine

import (
	"time"

	"pollengine/internal/domain"
)

// EligibilityDecision is the outcome of an eligibility evaluation. Reason
// is set only when Allowed is false.
type EligibilityDecision struct {
	Allowed bool
	Reason  domain.RejectReason
}

func allow() EligibilityDecision {
	return EligibilityDecision{Allowed: true}
}

func deny(reason domain.RejectReason) EligibilityDecision {
	return EligibilityDecision{Reason: reason}
}

// EvaluateEligibility decides whether a voter may currently cast a ballot
// on a poll. Rules run in a fixed order and the first failure wins, so a
// request that trips several rules always reports the same reason:
//
//  1. the poll must be Active
//  2. authentication, when the poll requires it
//  3. single-vote polls deny any voter with a prior vote
//  4. multi-vote polls deny once the per-voter budget is spent
//
// The function is pure. Recording the VoteRejected audit entry for a deny
// is the caller's job, as is recording VoteCast only after the ballot also
// passes validation and persists.
func EvaluateEligibility(p *domain.Poll, voter domain.VoterContext, now time.Time) EligibilityDecision {
	if ComputeStatus(p, now) != domain.StatusActive {
		return deny(domain.ReasonPollNotActive)
	}
	if p.Settings.RequireAuthentication && !voter.Authenticated {
		return deny(domain.ReasonAuthenticationRequired)
	}
	if !p.Settings.AllowMultipleVotes && len(voter.PriorVotes) >= 1 {
		return deny(domain.ReasonAlreadyVoted)
	}
	// The budget counts selections across ballots, not ballots.
	spent := 0
	for _, v := range voter.PriorVotes {
		spent += len(v.OptionIDs)
	}
	if p.Settings.AllowMultipleVotes && p.Settings.MaxVotesPerVoter > 0 && spent >= p.Settings.MaxVotesPerVoter {
		return deny(domain.ReasonVoteLimitReached)
	}
	return allow()
}
