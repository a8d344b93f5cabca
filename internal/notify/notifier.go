package notify

import (
	"context"
	"sync"
	"time"
)

// Event is published when a poll changes state or receives a vote.
type Event struct {
	Type      string    `json:"type"`
	PollID    string    `json:"poll_id"`
	Actor     string    `json:"actor,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Event types
const (
	EventPollCreated      = "poll.created"
	EventPollUpdated      = "poll.updated"
	EventPollClosed       = "poll.closed"
	EventVoteCast         = "vote.cast"
	EventResultsPublished = "results.published"
)

// Notifier publishes poll events to interested consumers. Publishing is
// best effort: callers log failures and move on, a lost event never fails
// the request that produced it.
type Notifier interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopNotifier drops all events. Used when no broker is configured.
type NoopNotifier struct{}

func (NoopNotifier) Publish(context.Context, Event) error { return nil }
func (NoopNotifier) Close() error                         { return nil }

// RecordingNotifier captures published events for assertions in tests.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (r *RecordingNotifier) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *RecordingNotifier) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *RecordingNotifier) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
