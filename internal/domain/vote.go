package domain

import (
	"time"
)

// Vote is an immutable ballot record. There is no update or delete path:
// once persisted a vote only ever gets read.
//
// VoterID is empty when the poll runs with anonymous voting; in that case
// only VoterKey (a one-way commitment of the voter identity) is retained so
// duplicate submissions can still be detected without storing who voted.
type Vote struct {
	ID        string    `json:"id"`
	PollID    string    `json:"poll_id"`
	VoterID   string    `json:"voter_id,omitempty"`
	VoterName string    `json:"voter_name,omitempty"`
	VoterKey  string    `json:"-"`
	OptionIDs []string  `json:"option_ids"`
	Receipt   string    `json:"receipt"`
	CastAt    time.Time `json:"cast_at"`
}

// Ballot is the set of option selections a voter submits in one vote action.
type Ballot struct {
	OptionIDs []string `json:"option_ids"`
}

// VoteRequest is the submission payload.
type VoteRequest struct {
	OptionIDs []string `json:"option_ids"`
}

// VoteResponse is returned after a vote is accepted. Receipt is a hash the
// voter can later use to verify their ballot was recorded.
type VoteResponse struct {
	VoteID    string    `json:"vote_id"`
	PollID    string    `json:"poll_id"`
	OptionIDs []string  `json:"option_ids"`
	Receipt   string    `json:"receipt"`
	CastAt    time.Time `json:"cast_at"`
	Duplicate bool      `json:"duplicate,omitempty"`
	Message   string    `json:"message"`
}

// MyVoteResponse reports a voter's own participation in a poll. For
// anonymous polls the ballot content is withheld even from the voter.
type MyVoteResponse struct {
	HasVoted  bool       `json:"has_voted"`
	Anonymous bool       `json:"anonymous,omitempty"`
	Votes     []Vote     `json:"votes,omitempty"`
	CastAt    *time.Time `json:"cast_at,omitempty"`
}

// OptionTally is the per-option aggregate used by results assembly.
type OptionTally struct {
	OptionID string  `json:"option_id"`
	Text     string  `json:"text"`
	Count    int     `json:"count,omitempty"`
	Percent  float64 `json:"percent,omitempty"`
}

// Results is the shape handed back to results requests after the
// visibility policy has been applied.
type Results struct {
	PollID     string        `json:"poll_id"`
	Status     PollStatus    `json:"status"`
	Mode       string        `json:"mode"`
	Options    []OptionTally `json:"options,omitempty"`
	TotalVotes int           `json:"total_votes,omitempty"`
	Voters     []string      `json:"voters,omitempty"`
	Blurred    bool          `json:"blurred,omitempty"`
	LastUpdate time.Time     `json:"last_update"`
}
