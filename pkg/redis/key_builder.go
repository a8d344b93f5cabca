package redis

import "fmt"

// KeyBuilder prefixes all cache keys with the environment name so that
// staging and production can share a Redis instance without collisions.
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a key builder for the given environment.
// Empty environment defaults to "development".
func NewKeyBuilder(environment string) *KeyBuilder {
	if environment == "" {
		environment = "development"
	}
	return &KeyBuilder{prefix: environment}
}

// Build constructs a key from a format string with the environment prefix.
func (kb *KeyBuilder) Build(format string, args ...interface{}) string {
	return kb.prefix + ":" + fmt.Sprintf(format, args...)
}

// Poll returns the cache key for a poll document.
func (kb *KeyBuilder) Poll(pollID string) string {
	return kb.Build(KeyPoll, pollID)
}

// PollList returns the cache key for the poll listing.
func (kb *KeyBuilder) PollList() string {
	return kb.Build(KeyPollList)
}

// Tally returns the cache key for a poll's per-option tallies.
func (kb *KeyBuilder) Tally(pollID string) string {
	return kb.Build(KeyPollTally, pollID)
}

// VoterStatus returns the cache key recording that a voter has voted in a poll.
func (kb *KeyBuilder) VoterStatus(pollID, voterKey string) string {
	return kb.Build(KeyVoterStatus, pollID, voterKey)
}

// Idempotency returns the key guarding a client-supplied idempotency token.
func (kb *KeyBuilder) Idempotency(token string) string {
	return kb.Build(KeyIdempotency, token)
}

// ResultsPublished returns the one-shot marker key recording that the
// results-published audit entry has been written for a poll.
func (kb *KeyBuilder) ResultsPublished(pollID string) string {
	return kb.Build(KeyResultsPublished, pollID)
}
