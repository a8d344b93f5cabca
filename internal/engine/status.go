// Package engine implements the poll lifecycle and vote eligibility rules:
// status derivation, eligibility evaluation, ballot validation and the
// results visibility policy. Every function here is pure; persistence and
// audit recording live in the service layer.
package engine

import (
	"time"

	"pollengine/internal/domain"
)

// ComputeStatus derives a poll's lifecycle state from its configured
// timestamps and the force-close flag. Status is never stored, so it can
// never drift from the timestamps.
//
// A force-closed poll is Ended no matter what the clock says; the close is
// irreversible. Otherwise: Upcoming before StartAt, Ended from EndAt on,
// Active in between.
func ComputeStatus(p *domain.Poll, now time.Time) domain.PollStatus {
	if p.ForceClosed {
		return domain.StatusEnded
	}
	if now.Before(p.StartAt) {
		return domain.StatusUpcoming
	}
	if now.Before(p.EndAt) {
		return domain.StatusActive
	}
	return domain.StatusEnded
}
