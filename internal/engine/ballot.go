package engine

import (
	"sort"

	"pollengine/internal/domain"
)

// ValidateBallot structurally checks a ballot against the poll's option set
// and selection limits, and returns the normalized ballot on success. The
// checks, each with its own typed reason:
//
//   - every selected option ID exists on the poll (UnknownOption)
//   - no option is selected twice in one ballot (DuplicateSelection)
//   - the selection count is exactly 1 for single-vote polls, or between 1
//     and the per-voter limit otherwise (SelectionCountOutOfRange)
//
// Normalization sorts the selections into the poll's option insertion
// order, so storage and tallying are independent of submission order.
// Validating an already-normalized ballot returns it unchanged.
func ValidateBallot(p *domain.Poll, ballot domain.Ballot) (domain.Ballot, error) {
	seen := make(map[string]struct{}, len(ballot.OptionIDs))
	for _, id := range ballot.OptionIDs {
		if p.OptionPosition(id) < 0 {
			return domain.Ballot{}, domain.Rejectf(domain.ReasonUnknownOption, "option %q is not part of this poll", id)
		}
		if _, dup := seen[id]; dup {
			return domain.Ballot{}, domain.Rejectf(domain.ReasonDuplicateSelection, "option %q selected more than once", id)
		}
		seen[id] = struct{}{}
	}

	count := len(ballot.OptionIDs)
	limit := p.EffectiveVoteLimit()
	if !p.Settings.AllowMultipleVotes {
		if count != 1 {
			return domain.Ballot{}, domain.Rejectf(domain.ReasonSelectionCountOutOfRange, "exactly 1 selection required, got %d", count)
		}
	} else if count < 1 || count > limit {
		return domain.Ballot{}, domain.Rejectf(domain.ReasonSelectionCountOutOfRange, "between 1 and %d selections required, got %d", limit, count)
	}

	normalized := domain.Ballot{OptionIDs: append([]string(nil), ballot.OptionIDs...)}
	sort.SliceStable(normalized.OptionIDs, func(i, j int) bool {
		return p.OptionPosition(normalized.OptionIDs[i]) < p.OptionPosition(normalized.OptionIDs[j])
	})
	return normalized, nil
}
