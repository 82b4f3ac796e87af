package signing

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/practicanteticPX/docuprex/pkg/auth"
)

// Commands are pure: each validates against a snapshot and returns a new one.
// The receiver is never mutated.

// Renumber re-indexes assignments to contiguous positions 1..N, keeping the
// relative order of their current positions.
func Renumber(assignments []Assignment) []Assignment {
	out := slices.Clone(assignments)
	slices.SortStableFunc(out, func(a, b Assignment) int { return a.Position - b.Position })
	for i := range out {
		out[i].Position = i + 1
	}
	return out
}

func authorize(s Snapshot, actor auth.Identity) error {
	if actor.ID == s.OwnerID || actor.IsAdmin() {
		return nil
	}
	return fmt.Errorf("%w: only the owner or an administrator can manage signers", ErrUnauthorized)
}

// Assign appends participants to the signing order. Participants already
// assigned, or repeated in the batch, are skipped. When the owner includes
// themself they move to position 1 and are approved immediately.
func (s Snapshot) Assign(actor auth.Identity, batch []Participant, users map[uuid.UUID]User, now time.Time) (Snapshot, error) {
	if err := authorize(s, actor); err != nil {
		return s, err
	}
	if len(batch) == 0 {
		return s, fmt.Errorf("%w: no participants given", ErrConstraintViolation)
	}
	if DeriveStatus(s.Outcomes) == StatusCompleted {
		return s, fmt.Errorf("%w: document is completed", ErrInvalidTransition)
	}
	for _, p := range batch {
		if len(p.RoleTags) > MaxRoleTags {
			return s, fmt.Errorf("%w: at most %d role tags per participant", ErrConstraintViolation, MaxRoleTags)
		}
	}

	out := s.Clone()
	seen := make(map[uuid.UUID]bool, len(out.Assignments)+len(batch))
	for _, a := range out.Assignments {
		seen[a.UserID] = true
	}

	next := len(out.Assignments) + 1

	for _, p := range batch {
		if seen[p.UserID] {
			continue
		}
		seen[p.UserID] = true

		u, ok := users[p.UserID]
		if !ok {
			return s, fmt.Errorf("%w: user %s", ErrNotFound, p.UserID)
		}

		required := true
		if p.Required != nil {
			required = *p.Required
		}

		a := Assignment{
			UserID:     u.ID,
			Name:       u.Name,
			Email:      u.Email,
			Position:   next,
			Required:   required,
			RoleTags:   slices.Clone(p.RoleTags),
			AssignedAt: now,
		}
		o := Outcome{UserID: u.ID, State: StatePending}

		if u.ID == s.OwnerID && actor.ID == s.OwnerID {
			a.Position = 0
			acted := now
			o.State = StateApproved
			o.ActedAt = &acted
			o.Metadata = map[string]string{"source": "owner_assignment"}
		} else {
			next++
		}

		out.Assignments = append(out.Assignments, a)
		out.Outcomes = append(out.Outcomes, o)
	}

	// Position 0 sorts ahead of everyone so Renumber shifts the rest down.
	out.Assignments = Renumber(out.Assignments)
	out.Status = DeriveStatus(out.Outcomes)
	return out, nil
}

// Act records the actor's own approval or rejection.
func (s Snapshot) Act(actor auth.Identity, cmd ActCommand, now time.Time) (Snapshot, Outcome, error) {
	if st := DeriveStatus(s.Outcomes); st.Terminal() {
		return s, Outcome{}, fmt.Errorf("%w: document is %s", ErrInvalidTransition, st)
	}

	var state State
	switch cmd.Decision {
	case Approve:
		if err := CanAct(s.Assignments, s.Outcomes, actor.ID, s.OwnerID); err != nil {
			return s, Outcome{}, err
		}
		state = StateApproved
	case Reject:
		if strings.TrimSpace(cmd.Reason) == "" {
			return s, Outcome{}, fmt.Errorf("%w: a rejection requires a reason", ErrConstraintViolation)
		}
		if err := CanReject(s.Assignments, s.Outcomes, actor.ID); err != nil {
			return s, Outcome{}, err
		}
		state = StateRejected
	default:
		return s, Outcome{}, fmt.Errorf("%w: unknown decision %q", ErrConstraintViolation, cmd.Decision)
	}

	out := s.Clone()
	var updated Outcome
	for i := range out.Outcomes {
		if out.Outcomes[i].UserID != actor.ID {
			continue
		}
		acted := now
		out.Outcomes[i].State = state
		out.Outcomes[i].ActedAt = &acted
		out.Outcomes[i].Reason = strings.TrimSpace(cmd.Reason)
		out.Outcomes[i].Metadata = cloneMetadata(cmd.Metadata)
		updated = out.Outcomes[i]
	}

	out.Status = DeriveStatus(out.Outcomes)
	return out, updated, nil
}

// Remove drops a pending participant and closes the gap in positions.
func (s Snapshot) Remove(actor auth.Identity, userID uuid.UUID) (Snapshot, error) {
	if err := authorize(s, actor); err != nil {
		return s, err
	}
	if DeriveStatus(s.Outcomes) == StatusCompleted {
		return s, fmt.Errorf("%w: document is completed", ErrInvalidTransition)
	}
	if _, ok := s.Assignment(userID); !ok {
		return s, fmt.Errorf("%w: user %s is not assigned", ErrNotFound, userID)
	}
	if o, ok := s.Outcome(userID); ok && o.State != StatePending {
		return s, fmt.Errorf("%w: participant has already %s", ErrInvalidTransition, o.State)
	}
	if len(s.Assignments) == 1 {
		return s, fmt.Errorf("%w: a document keeps at least one signer", ErrConstraintViolation)
	}

	out := s.Clone()
	out.Assignments = slices.DeleteFunc(out.Assignments, func(a Assignment) bool { return a.UserID == userID })
	out.Outcomes = slices.DeleteFunc(out.Outcomes, func(o Outcome) bool { return o.UserID == userID })
	out.Assignments = Renumber(out.Assignments)
	out.Status = DeriveStatus(out.Outcomes)
	return out, nil
}

// Reorder rewrites positions to follow order, which must list every assigned
// participant exactly once. Participants that have acted may not move earlier.
func (s Snapshot) Reorder(actor auth.Identity, order []uuid.UUID) (Snapshot, error) {
	if err := authorize(s, actor); err != nil {
		return s, err
	}
	if len(order) != len(s.Assignments) {
		return s, fmt.Errorf("%w: expected %d participants, got %d", ErrInvalidReorder, len(s.Assignments), len(order))
	}

	next := make(map[uuid.UUID]int, len(order))
	for i, id := range order {
		if _, dup := next[id]; dup {
			return s, fmt.Errorf("%w: %s listed twice", ErrInvalidReorder, id)
		}
		if _, ok := s.Assignment(id); !ok {
			return s, fmt.Errorf("%w: %s is not assigned", ErrInvalidReorder, id)
		}
		next[id] = i + 1
	}

	st := states(s.Outcomes)
	out := s.Clone()
	for i, a := range out.Assignments {
		if st[a.UserID].Terminal() && next[a.UserID] < a.Position {
			return s, fmt.Errorf("%w: %s has already acted and cannot move earlier", ErrInvalidReorder, a.Name)
		}
		out.Assignments[i].Position = next[a.UserID]
	}

	out.Assignments = Renumber(out.Assignments)
	out.Status = DeriveStatus(out.Outcomes)
	return out, nil
}

func cloneMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	return maps.Clone(m)
}
