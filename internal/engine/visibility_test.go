package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pollengine/internal/domain"
)

func visibilityPoll(settings domain.Settings, status domain.PollStatus, now time.Time) *domain.Poll {
	p := &domain.Poll{ID: "poll-1", Settings: settings}
	switch status {
	case domain.StatusUpcoming:
		p.StartAt = now.Add(time.Hour)
		p.EndAt = now.Add(2 * time.Hour)
	case domain.StatusActive:
		p.StartAt = now.Add(-time.Hour)
		p.EndAt = now.Add(time.Hour)
	case domain.StatusEnded:
		p.StartAt = now.Add(-2 * time.Hour)
		p.EndAt = now.Add(-time.Hour)
	}
	return p
}

func TestResolveVisibility(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		status     domain.PollStatus
		settings   domain.Settings
		viewer     domain.ViewerContext
		resultAt   time.Duration // offset from now; 0 = unset
		wantMode   VisibilityMode
		wantReason domain.RejectReason
	}{
		{
			name:     "owner sees everything while active",
			status:   domain.StatusActive,
			viewer:   domain.ViewerContext{Owner: true},
			wantMode: ModeFull,
		},
		{
			name:     "admin sees everything even upcoming",
			status:   domain.StatusUpcoming,
			viewer:   domain.ViewerContext{Admin: true},
			wantMode: ModeFull,
		},
		{
			name:       "embargo hides ended results",
			status:     domain.StatusEnded,
			resultAt:   24 * time.Hour,
			wantReason: domain.ReasonResultsEmbargoed,
		},
		{
			name:       "embargo binds voters too",
			status:     domain.StatusEnded,
			resultAt:   24 * time.Hour,
			viewer:     domain.ViewerContext{HasVoted: true},
			settings:   domain.Settings{ShowResultsAfterVote: true},
			wantReason: domain.ReasonResultsEmbargoed,
		},
		{
			name:     "ended poll shows full results",
			status:   domain.StatusEnded,
			wantMode: ModeFull,
		},
		{
			name:     "count hiding survives the end of the poll",
			status:   domain.StatusEnded,
			settings: domain.Settings{HideVoteCounts: true},
			wantMode: ModePercentagesOnly,
		},
		{
			name:     "expired embargo shows full results",
			status:   domain.StatusEnded,
			resultAt: -time.Hour,
			wantMode: ModeFull,
		},
		{
			name:       "active poll hides results by default",
			status:     domain.StatusActive,
			wantReason: domain.ReasonPollStillActive,
		},
		{
			name:     "post-vote exception shows results early",
			status:   domain.StatusActive,
			settings: domain.Settings{ShowResultsAfterVote: true},
			viewer:   domain.ViewerContext{Authenticated: true, HasVoted: true},
			wantMode: ModeFull,
		},
		{
			name:       "post-vote exception needs a cast ballot",
			status:     domain.StatusActive,
			settings:   domain.Settings{ShowResultsAfterVote: true},
			viewer:     domain.ViewerContext{Authenticated: true},
			wantReason: domain.ReasonPollStillActive,
		},
		{
			name:     "live results with counts hidden",
			status:   domain.StatusActive,
			settings: domain.Settings{ShowResultsBeforeEnd: true, HideVoteCounts: true},
			wantMode: ModePercentagesOnly,
		},
		{
			name:     "live results blurred for non-voters",
			status:   domain.StatusActive,
			settings: domain.Settings{ShowResultsBeforeEnd: true, BlurResultsForNonVoters: true},
			wantMode: ModeBlurred,
		},
		{
			name:     "blur lifted once the viewer votes",
			status:   domain.StatusActive,
			settings: domain.Settings{ShowResultsBeforeEnd: true, BlurResultsForNonVoters: true},
			viewer:   domain.ViewerContext{HasVoted: true},
			wantMode: ModeFull,
		},
		{
			name:     "live results fully visible",
			status:   domain.StatusActive,
			settings: domain.Settings{ShowResultsBeforeEnd: true},
			wantMode: ModeFull,
		},
		{
			name:       "upcoming poll has nothing to show",
			status:     domain.StatusUpcoming,
			wantReason: domain.ReasonPollNotStarted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := visibilityPoll(tt.settings, tt.status, now)
			if tt.resultAt != 0 {
				at := now.Add(tt.resultAt)
				p.ResultAt = &at
			}

			got := ResolveVisibility(p, tt.viewer, now)
			if tt.wantReason != "" {
				assert.False(t, got.Visible)
				assert.Equal(t, tt.wantReason, got.Reason)
			} else {
				assert.True(t, got.Visible)
				assert.Equal(t, tt.wantMode, got.Mode)
			}
		})
	}
}

// Every combination of status, boolean settings and viewer flags must match
// some row: the table is total, and evaluation order resolves overlapping
// rows, so the fallback in ResolveVisibility is never the answer.
func TestVisibilityTableIsTotal(t *testing.T) {
	bools := []bool{false, true}
	statuses := []domain.PollStatus{domain.StatusUpcoming, domain.StatusActive, domain.StatusEnded}

	for _, status := range statuses {
		for _, before := range bools {
			for _, after := range bools {
				for _, hide := range bools {
					for _, blur := range bools {
						for _, voted := range bools {
							for _, owner := range bools {
								for _, embargoed := range bools {
									in := visibilityInput{
										status: status,
										settings: domain.Settings{
											ShowResultsBeforeEnd:    before,
											ShowResultsAfterVote:    after,
											HideVoteCounts:          hide,
											BlurResultsForNonVoters: blur,
										},
										viewer:    domain.ViewerContext{Owner: owner, HasVoted: voted},
										embargoed: embargoed,
									}

									winner := ""
									for _, rule := range visibilityRules {
										if rule.matches(in) {
											winner = rule.name
											break
										}
									}
									assert.NotEmpty(t, winner, "no row matched %+v", in)
								}
							}
						}
					}
				}
			}
		}
	}
}

// Scenario: active poll with results withheld, then the poll ends.
func TestVisibilityActiveToEnded(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := &domain.Poll{
		ID:      "poll-1",
		StartAt: now.Add(-time.Hour),
		EndAt:   now.Add(time.Hour),
	}
	viewer := domain.ViewerContext{}

	during := ResolveVisibility(p, viewer, now)
	assert.False(t, during.Visible)
	assert.Equal(t, domain.ReasonPollStillActive, during.Reason)

	after := ResolveVisibility(p, viewer, p.EndAt.Add(time.Minute))
	assert.True(t, after.Visible)
	assert.Equal(t, ModeFull, after.Mode)
}

// Scenario: embargo 24h past the end keeps results hidden, then releases.
func TestVisibilityEmbargoWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end := now.Add(-time.Hour)
	resultAt := end.Add(24 * time.Hour)
	p := &domain.Poll{
		ID:       "poll-1",
		StartAt:  end.Add(-time.Hour),
		EndAt:    end,
		ResultAt: &resultAt,
	}
	viewer := domain.ViewerContext{}

	before := ResolveVisibility(p, viewer, now)
	assert.False(t, before.Visible)
	assert.Equal(t, domain.ReasonResultsEmbargoed, before.Reason)

	after := ResolveVisibility(p, viewer, resultAt.Add(time.Minute))
	assert.True(t, after.Visible)
	assert.Equal(t, ModeFull, after.Mode)
}
