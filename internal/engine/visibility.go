package engine

import (
	"time"

	"pollengine/internal/domain"
)

// VisibilityMode is the shape in which results may be disclosed.
type VisibilityMode string

const (
	ModeFull            VisibilityMode = "full"
	ModePercentagesOnly VisibilityMode = "percentages_only"
	ModeBlurred         VisibilityMode = "blurred"
)

// VisibilityDecision is the outcome of a results visibility query. Mode is
// set when Visible, Reason when hidden.
type VisibilityDecision struct {
	Visible bool
	Mode    VisibilityMode
	Reason  domain.RejectReason
}

// visibilityInput gathers everything a rule may inspect.
type visibilityInput struct {
	status    domain.PollStatus
	settings  domain.Settings
	viewer    domain.ViewerContext
	embargoed bool
}

// visibilityRule is one row of the decision table.
type visibilityRule struct {
	name    string
	matches func(in visibilityInput) bool
	outcome VisibilityDecision
}

func visible(mode VisibilityMode) VisibilityDecision {
	return VisibilityDecision{Visible: true, Mode: mode}
}

func hidden(reason domain.RejectReason) VisibilityDecision {
	return VisibilityDecision{Reason: reason}
}

// The decision table, evaluated top to bottom; the first matching row wins.
// Keeping the rows explicit makes each rule independently testable and the
// precedence order visible at a glance.
//
// The "post-vote exception" row grants a voter who already cast a ballot an
// early view when show_results_after_vote is on, overriding the
// show_results_before_end gate for that voter only. It sits below the
// embargo row on purpose: a results embargo binds even voters.
var visibilityRules = []visibilityRule{
	{
		name: "owner or admin",
		matches: func(in visibilityInput) bool {
			return in.viewer.Owner || in.viewer.Admin
		},
		outcome: visible(ModeFull),
	},
	{
		name: "results embargoed",
		matches: func(in visibilityInput) bool {
			return in.embargoed
		},
		outcome: hidden(domain.ReasonResultsEmbargoed),
	},
	{
		name: "poll ended, counts hidden",
		matches: func(in visibilityInput) bool {
			return in.status == domain.StatusEnded && in.settings.HideVoteCounts
		},
		outcome: visible(ModePercentagesOnly),
	},
	{
		name: "poll ended",
		matches: func(in visibilityInput) bool {
			return in.status == domain.StatusEnded
		},
		outcome: visible(ModeFull),
	},
	{
		name: "post-vote exception",
		matches: func(in visibilityInput) bool {
			return in.status == domain.StatusActive &&
				!in.settings.ShowResultsBeforeEnd &&
				in.settings.ShowResultsAfterVote &&
				in.viewer.HasVoted
		},
		outcome: visible(ModeFull),
	},
	{
		name: "results withheld until end",
		matches: func(in visibilityInput) bool {
			return in.status == domain.StatusActive && !in.settings.ShowResultsBeforeEnd
		},
		outcome: hidden(domain.ReasonPollStillActive),
	},
	{
		name: "live results, counts hidden",
		matches: func(in visibilityInput) bool {
			return in.status == domain.StatusActive &&
				in.settings.ShowResultsBeforeEnd &&
				in.settings.HideVoteCounts
		},
		outcome: visible(ModePercentagesOnly),
	},
	{
		name: "live results blurred for non-voters",
		matches: func(in visibilityInput) bool {
			return in.status == domain.StatusActive &&
				in.settings.ShowResultsBeforeEnd &&
				!in.viewer.HasVoted &&
				in.settings.BlurResultsForNonVoters
		},
		outcome: visible(ModeBlurred),
	},
	{
		name: "live results",
		matches: func(in visibilityInput) bool {
			return in.status == domain.StatusActive && in.settings.ShowResultsBeforeEnd
		},
		outcome: visible(ModeFull),
	},
	{
		name: "poll not started",
		matches: func(in visibilityInput) bool {
			return in.status == domain.StatusUpcoming
		},
		outcome: hidden(domain.ReasonPollNotStarted),
	},
}

// ResolveVisibility decides whether and in what shape results may be shown
// to a viewer. Visibility of vote counts and visibility of voter identity
// are independent: this decision only governs counts and percentages, while
// name redaction is applied separately from the poll's voter-name settings.
func ResolveVisibility(p *domain.Poll, viewer domain.ViewerContext, now time.Time) VisibilityDecision {
	in := visibilityInput{
		status:    ComputeStatus(p, now),
		settings:  p.Settings,
		viewer:    viewer,
		embargoed: p.ResultAt != nil && now.Before(*p.ResultAt),
	}
	for _, rule := range visibilityRules {
		if rule.matches(in) {
			return rule.outcome
		}
	}
	// The table is total over (status, settings, viewer); Upcoming is the
	// only status left when no earlier row matched.
	return hidden(domain.ReasonPollNotStarted)
}
