package signing

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// DeriveStatus computes the document status from its outcomes.
// Any rejection dominates; an empty set is pending.
func DeriveStatus(outcomes []Outcome) Status {
	approved := 0
	for _, o := range outcomes {
		switch o.State {
		case StateRejected:
			return StatusRejected
		case StateApproved:
			approved++
		}
	}

	switch {
	case len(outcomes) > 0 && approved == len(outcomes):
		return StatusCompleted
	case approved > 0:
		return StatusInProgress
	default:
		return StatusPending
	}
}

func states(outcomes []Outcome) map[uuid.UUID]State {
	m := make(map[uuid.UUID]State, len(outcomes))
	for _, o := range outcomes {
		m[o.UserID] = o.State
	}
	return m
}

func positionOf(assignments []Assignment, userID uuid.UUID) (int, bool) {
	for _, a := range assignments {
		if a.UserID == userID {
			return a.Position, true
		}
	}
	return 0, false
}

// IsOnTurn reports whether the participant is pending and every assignment
// at a lower position has approved.
func IsOnTurn(assignments []Assignment, outcomes []Outcome, participant uuid.UUID) bool {
	pos, ok := positionOf(assignments, participant)
	if !ok {
		return false
	}

	st := states(outcomes)
	if st[participant] != StatePending {
		return false
	}

	for _, a := range assignments {
		if a.Position < pos && st[a.UserID] != StateApproved {
			return false
		}
	}
	return true
}

// Blocker returns the lowest-position assignment below the participant that
// has not approved.
func Blocker(assignments []Assignment, outcomes []Outcome, participant uuid.UUID) (Assignment, bool) {
	pos, ok := positionOf(assignments, participant)
	if !ok {
		return Assignment{}, false
	}

	st := states(outcomes)
	var blocker Assignment
	found := false
	for _, a := range assignments {
		if a.Position >= pos || st[a.UserID] == StateApproved {
			continue
		}
		if !found || a.Position < blocker.Position {
			blocker = a
			found = true
		}
	}
	return blocker, found
}

// OnTurn returns the participants currently allowed to act, in position order.
// A document in a terminal status has nobody on turn.
func OnTurn(assignments []Assignment, outcomes []Outcome) []uuid.UUID {
	on := make([]uuid.UUID, 0, 1)
	if DeriveStatus(outcomes).Terminal() {
		return on
	}

	ordered := slices.Clone(assignments)
	slices.SortFunc(ordered, func(a, b Assignment) int { return a.Position - b.Position })

	for _, a := range ordered {
		if IsOnTurn(assignments, outcomes, a.UserID) {
			on = append(on, a.UserID)
		}
	}
	return on
}

// CanAct validates that the actor may approve. The document owner may approve
// out of turn.
func CanAct(assignments []Assignment, outcomes []Outcome, actor, owner uuid.UUID) error {
	if err := checkPending(assignments, outcomes, actor); err != nil {
		return err
	}
	if IsOnTurn(assignments, outcomes, actor) || actor == owner {
		return nil
	}
	return outOfOrder(assignments, outcomes, actor)
}

// CanReject validates that the actor may reject. Nobody rejects out of turn.
func CanReject(assignments []Assignment, outcomes []Outcome, actor uuid.UUID) error {
	if err := checkPending(assignments, outcomes, actor); err != nil {
		return err
	}
	if IsOnTurn(assignments, outcomes, actor) {
		return nil
	}
	return outOfOrder(assignments, outcomes, actor)
}

func checkPending(assignments []Assignment, outcomes []Outcome, actor uuid.UUID) error {
	if _, ok := positionOf(assignments, actor); !ok {
		return fmt.Errorf("%w: actor is not assigned", ErrNotFound)
	}
	if st := states(outcomes)[actor]; st.Terminal() {
		return fmt.Errorf("%w: outcome already %s", ErrInvalidTransition, st)
	}
	return nil
}

func outOfOrder(assignments []Assignment, outcomes []Outcome, actor uuid.UUID) error {
	b, ok := Blocker(assignments, outcomes, actor)
	if !ok {
		return ErrOutOfOrder
	}
	return &OutOfOrderError{Position: b.Position, Name: b.Name}
}
