package domain

import (
	"strings"
	"time"
)

// PollStatus is the derived lifecycle state of a poll. It is never stored;
// it is always recomputed from the poll's timestamps and the close flag.
type PollStatus string

const (
	StatusUpcoming PollStatus = "upcoming"
	StatusActive   PollStatus = "active"
	StatusEnded    PollStatus = "ended"
)

// NameDisplay controls how voter names appear in results.
type NameDisplay string

const (
	NameDisplayFull       NameDisplay = "full"
	NameDisplayInitials   NameDisplay = "initials"
	NameDisplayAnonymized NameDisplay = "anonymized"
)

// Settings holds the per-poll configuration knobs. All fields are mutable
// after creation; every mutation bumps the poll version and is audited.
// Changing settings never rewrites past votes or audit entries.
type Settings struct {
	AllowMultipleVotes      bool        `json:"allow_multiple_votes"`
	MaxVotesPerVoter        int         `json:"max_votes_per_voter,omitempty"` // 0 = unset (bounded by option count)
	ShowResultsBeforeEnd    bool        `json:"show_results_before_end"`
	ShowResultsAfterVote    bool        `json:"show_results_after_vote"`
	RequireAuthentication   bool        `json:"require_authentication"`
	AnonymousVoting         bool        `json:"anonymous_voting"`
	ShowVoterNames          bool        `json:"show_voter_names"`
	VoterNameDisplay        NameDisplay `json:"voter_name_display,omitempty"`
	HideVoteCounts          bool        `json:"hide_vote_counts"`
	BlurResultsForNonVoters bool        `json:"blur_results_for_non_voters"`
	EnableComments          bool        `json:"enable_comments"`
	PublicAuditTrail        bool        `json:"public_audit_trail"`
}

// Option is a single poll choice. IDs are stable within a poll and are
// never reused after removal. Position records insertion order, which
// drives ballot normalization and tie-breaking.
type Option struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
	Party       string `json:"party,omitempty"`
	Position    int    `json:"position"`
}

// Poll is the aggregate the engine operates on.
type Poll struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category"`
	StartAt     time.Time  `json:"start_at"`
	EndAt       time.Time  `json:"end_at"`
	ResultAt    *time.Time `json:"result_at,omitempty"`
	Options     []Option   `json:"options"`
	Settings    Settings   `json:"settings"`
	Version     int        `json:"version"`
	ForceClosed bool       `json:"force_closed"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// OptionByID looks up an option by its ID.
func (p *Poll) OptionByID(id string) (Option, bool) {
	for _, opt := range p.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return Option{}, false
}

// OptionPosition returns the insertion position of an option, or -1 when
// the ID is not part of the poll.
func (p *Poll) OptionPosition(id string) int {
	for _, opt := range p.Options {
		if opt.ID == id {
			return opt.Position
		}
	}
	return -1
}

// HasOptionText reports whether an option with the given display text
// already exists, compared case-insensitively.
func (p *Poll) HasOptionText(text string) bool {
	for _, opt := range p.Options {
		if strings.EqualFold(opt.Text, text) {
			return true
		}
	}
	return false
}

// EffectiveVoteLimit is the per-voter selection budget: MaxVotesPerVoter
// when set, otherwise the option count; 1 when multiple votes are disabled.
func (p *Poll) EffectiveVoteLimit() int {
	if !p.Settings.AllowMultipleVotes {
		return 1
	}
	if p.Settings.MaxVotesPerVoter > 0 {
		return p.Settings.MaxVotesPerVoter
	}
	return len(p.Options)
}
