package votes

import (
	"Driftline/internal/core/records"
)

// Score derives an entity's integer score from raw vote events:
// count(up) − count(down) over votes matching targetID. Pure; never fails.
func Score(targetID string, votes []*records.Vote) int {
	score := 0
	for _, v := range votes {
		if v == nil || v.TargetID != targetID {
			continue
		}
		switch v.Direction {
		case records.VoteUp:
			score++
		case records.VoteDown:
			score--
		}
	}
	return score
}

// ScoreOrFallback computes the score from per-vote detail when the caller
// fetched it, and otherwise falls back to the precomputed aggregate carried
// on the record. A nil slice means "detail not fetched" (a deliberate
// query-cost optimization on some screens, or a degraded detail fetch); an
// empty non-nil slice is real detail and computes to zero. Both paths return
// the same integer when their inputs are consistent.
func ScoreOrFallback(targetID string, votes []*records.Vote, fallback int) int {
	if votes == nil {
		return fallback
	}
	return Score(targetID, votes)
}
