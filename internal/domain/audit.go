package domain

import (
	"time"
)

// AuditAction enumerates the recordable poll mutations and vote events.
type AuditAction string

const (
	ActionPollCreated      AuditAction = "PollCreated"
	ActionPollUpdated      AuditAction = "PollUpdated"
	ActionSettingsChanged  AuditAction = "SettingsChanged"
	ActionVoteCast         AuditAction = "VoteCast"
	ActionVoteRejected     AuditAction = "VoteRejected"
	ActionPollClosed       AuditAction = "PollClosed"
	ActionResultsPublished AuditAction = "ResultsPublished"
)

// SystemActor marks entries produced by the engine itself rather than a user.
const SystemActor = "system"

// AuditLogEntry is an append-only record of a poll mutation or vote event.
// Seq is the insertion sequence assigned by storage; ordering is by
// Timestamp first, Seq for ties.
type AuditLogEntry struct {
	Seq       int64                  `json:"seq"`
	ID        string                 `json:"id"`
	PollID    string                 `json:"poll_id"`
	Actor     string                 `json:"actor"`
	Action    AuditAction            `json:"action"`
	OptionID  string                 `json:"option_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
}
