package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pollengine/internal/domain"
)

var statusBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func pollWithWindow(start, end time.Time) *domain.Poll {
	return &domain.Poll{
		ID:      "poll-1",
		StartAt: start,
		EndAt:   end,
	}
}

func TestComputeStatus(t *testing.T) {
	start := statusBase
	end := statusBase.Add(24 * time.Hour)

	tests := []struct {
		name        string
		now         time.Time
		forceClosed bool
		want        domain.PollStatus
	}{
		{
			name: "before start is upcoming",
			now:  start.Add(-time.Hour),
			want: domain.StatusUpcoming,
		},
		{
			name: "exactly at start is active",
			now:  start,
			want: domain.StatusActive,
		},
		{
			name: "inside window is active",
			now:  start.Add(6 * time.Hour),
			want: domain.StatusActive,
		},
		{
			name: "exactly at end is ended",
			now:  end,
			want: domain.StatusEnded,
		},
		{
			name: "after end is ended",
			now:  end.Add(time.Hour),
			want: domain.StatusEnded,
		},
		{
			name:        "force-closed mid-window is ended",
			now:         start.Add(time.Hour),
			forceClosed: true,
			want:        domain.StatusEnded,
		},
		{
			name:        "force-closed before start is ended",
			now:         start.Add(-time.Hour),
			forceClosed: true,
			want:        domain.StatusEnded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := pollWithWindow(start, end)
			p.ForceClosed = tt.forceClosed
			assert.Equal(t, tt.want, ComputeStatus(p, tt.now))
		})
	}
}

// Once a poll is Ended it must stay Ended for every later instant.
func TestComputeStatusMonotonic(t *testing.T) {
	start := statusBase
	end := statusBase.Add(time.Hour)
	p := pollWithWindow(start, end)

	ended := false
	for now := start.Add(-30 * time.Minute); now.Before(end.Add(2 * time.Hour)); now = now.Add(time.Minute) {
		status := ComputeStatus(p, now)
		if ended {
			assert.Equal(t, domain.StatusEnded, status, "status regressed at %s", now)
		}
		if status == domain.StatusEnded {
			ended = true
		}
	}
	assert.True(t, ended)
}

func TestComputeStatusForceCloseIrreversible(t *testing.T) {
	p := pollWithWindow(statusBase, statusBase.Add(24*time.Hour))
	p.ForceClosed = true

	for _, offset := range []time.Duration{0, time.Hour, 12 * time.Hour, 48 * time.Hour} {
		assert.Equal(t, domain.StatusEnded, ComputeStatus(p, statusBase.Add(offset)))
	}
}
