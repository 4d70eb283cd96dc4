package votes

import (
	"time"

	"Driftline/internal/core/records"
)

// Action is the write a vote toggle resolves to.
type Action string

const (
	// ActionInsert creates a new vote (no prior vote existed).
	ActionInsert Action = "insert"
	// ActionDelete removes the existing vote (same direction voted again).
	ActionDelete Action = "delete"
	// ActionUpdate flips the existing vote's direction in place. A single
	// update write, not delete-then-insert, so the score never flickers
	// through the intermediate state.
	ActionUpdate Action = "update"
)

// Plan is the resolved outcome of a vote toggle: which write to dispatch,
// which record it carries, and how the target's score moves optimistically.
type Plan struct {
	Action Action
	// Vote is the record to write. For ActionInsert it carries a temp id;
	// for ActionDelete/ActionUpdate it is the existing vote (updated in
	// place for ActionUpdate).
	Vote *records.Vote
	// ScoreDelta is the optimistic change to the target's aggregate score.
	ScoreDelta int
}

// PlanToggle resolves the three-way toggle state machine for one
// (targetID, userID) pair:
//
//	no existing vote + vote X   → insert X
//	existing X      + vote X    → delete (toggle off)
//	existing X      + vote Y    → update direction to Y
//
// existing must be the caller's current vote on the target, or nil. The
// at-most-one-vote-per-pair invariant holds because every path starts from
// that single existing vote.
func PlanToggle(existing *records.Vote, targetID, userID string, direction records.VoteDirection) Plan {
	if existing == nil {
		return Plan{
			Action: ActionInsert,
			Vote: &records.Vote{
				ID:        records.NewTempID(),
				TargetID:  targetID,
				UserID:    userID,
				Direction: direction,
				CreatedAt: time.Now().UTC(),
			},
			ScoreDelta: directionDelta(direction),
		}
	}

	if existing.Direction == direction {
		removed := existing.Clone().(*records.Vote)
		return Plan{
			Action:     ActionDelete,
			Vote:       removed,
			ScoreDelta: -directionDelta(direction),
		}
	}

	flipped := existing.Clone().(*records.Vote)
	flipped.Direction = direction
	return Plan{
		Action: ActionUpdate,
		Vote:   flipped,
		// Reversing a vote moves the score by two: the old vote's
		// contribution disappears and the new one lands.
		ScoreDelta: 2 * directionDelta(direction),
	}
}

func directionDelta(d records.VoteDirection) int {
	if d == records.VoteUp {
		return 1
	}
	return -1
}
