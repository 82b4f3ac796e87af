package signing

import (
	"slices"

	"github.com/google/uuid"

	"github.com/practicanteticPX/docuprex/pkg/broadcast"
)

// EffectKind identifies a side effect to run after a change commits.
type EffectKind string

const (
	NotifyTurn         EffectKind = "notify_turn"
	RevokeTurn         EffectKind = "revoke_turn"
	NotifyOwner        EffectKind = "notify_owner"
	RevokeAll          EffectKind = "revoke_all"
	RegenerateArtifact EffectKind = "regenerate_artifact"
	Broadcast          EffectKind = "broadcast"
)

// Effect is a side effect planned from a before/after pair. UserID is set for
// turn effects, Status for owner notifications and Event for broadcasts.
type Effect struct {
	Kind   EffectKind
	UserID uuid.UUID
	Status Status
	Event  string
}

// Change is a committed transition together with its planned effects.
type Change struct {
	Before  Snapshot
	After   Snapshot
	ActorID uuid.UUID
	Effects []Effect
}

// Has reports whether the change carries an effect of the given kind.
func (c Change) Has(kind EffectKind) bool {
	return slices.ContainsFunc(c.Effects, func(e Effect) bool { return e.Kind == kind })
}

// Of returns the effects of the given kind in planned order.
func (c Change) Of(kind EffectKind) []Effect {
	var out []Effect
	for _, e := range c.Effects {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// PlanEffects compares two snapshots of the same document and returns the
// side effects the transition requires. Identical snapshots plan nothing.
func PlanEffects(before, after Snapshot) []Effect {
	if !changed(before, after) {
		return nil
	}

	var effects []Effect

	was := OnTurn(before.Assignments, before.Outcomes)
	now := OnTurn(after.Assignments, after.Outcomes)

	beforeStatus := DeriveStatus(before.Outcomes)
	afterStatus := DeriveStatus(after.Outcomes)
	rejected := afterStatus == StatusRejected && beforeStatus != StatusRejected

	if rejected {
		effects = append(effects, Effect{Kind: RevokeAll})
	} else {
		for _, id := range was {
			if !slices.Contains(now, id) {
				effects = append(effects, Effect{Kind: RevokeTurn, UserID: id})
			}
		}
	}

	for _, id := range now {
		if !slices.Contains(was, id) {
			effects = append(effects, Effect{Kind: NotifyTurn, UserID: id})
		}
	}

	if afterStatus.Terminal() && afterStatus != beforeStatus {
		effects = append(effects, Effect{Kind: NotifyOwner, Status: afterStatus})
	}

	effects = append(effects, Effect{Kind: RegenerateArtifact})
	effects = append(effects, Effect{Kind: Broadcast, Event: eventFor(before, after, beforeStatus, afterStatus)})

	return effects
}

func eventFor(before, after Snapshot, from, to Status) string {
	if to != from {
		switch to {
		case StatusCompleted:
			return broadcast.DocumentCompleted
		case StatusRejected:
			return broadcast.DocumentRejected
		}
	}

	for _, o := range after.Outcomes {
		if o.State != StateApproved {
			continue
		}
		if prev, ok := before.Outcome(o.UserID); ok && prev.State == StatePending {
			return broadcast.DocumentSigned
		}
	}
	return broadcast.DocumentUpdated
}

func changed(before, after Snapshot) bool {
	if len(before.Assignments) != len(after.Assignments) || len(before.Outcomes) != len(after.Outcomes) {
		return true
	}

	for _, a := range after.Assignments {
		prev, ok := before.Assignment(a.UserID)
		if !ok || prev.Position != a.Position || prev.Required != a.Required || !slices.Equal(prev.RoleTags, a.RoleTags) {
			return true
		}
	}

	for _, o := range after.Outcomes {
		prev, ok := before.Outcome(o.UserID)
		if !ok || prev.State != o.State {
			return true
		}
	}
	return false
}
