package recon

import (
	"sort"
)

// Match pairs one statement line with one ledger entry.
type Match struct {
	LineID  int64
	EntryID int64
}

// matchLines pairs unmatched statement lines to candidate entries by exact
// amount equality, preferring the candidate closest in date. The whole
// procedure is deterministic: lines are walked earliest-date-then-lowest-id,
// candidate ties break the same way, and a candidate is consumed by at most
// one line. Identical inputs always produce the identical match set.
func matchLines(lines []StatementLine, candidates []CandidateEntry) []Match {
	ordered := make([]StatementLine, len(lines))
	copy(ordered, lines)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].LineDate.Equal(ordered[j].LineDate) {
			return ordered[i].LineDate.Before(ordered[j].LineDate)
		}
		return ordered[i].ID < ordered[j].ID
	})

	pool := make([]CandidateEntry, len(candidates))
	copy(pool, candidates)
	sort.Slice(pool, func(i, j int) bool {
		if !pool[i].Date.Equal(pool[j].Date) {
			return pool[i].Date.Before(pool[j].Date)
		}
		return pool[i].EntryID < pool[j].EntryID
	})
	consumed := make(map[int64]bool, len(pool))

	var out []Match
	for _, line := range ordered {
		if line.MatchStatus != MatchUnmatched {
			continue
		}
		best := -1
		var bestGap int64
		for idx, candidate := range pool {
			if consumed[candidate.EntryID] || !candidate.Amount.Equal(line.Amount) {
				continue
			}
			gap := line.LineDate.Sub(candidate.Date)
			if gap < 0 {
				gap = -gap
			}
			// The pool is date-then-id ordered, so a strict < keeps the
			// earliest, lowest-id candidate among equal gaps.
			if best == -1 || int64(gap) < bestGap {
				best = idx
				bestGap = int64(gap)
			}
		}
		if best >= 0 {
			consumed[pool[best].EntryID] = true
			out = append(out, Match{LineID: line.ID, EntryID: pool[best].EntryID})
		}
	}
	return out
}
