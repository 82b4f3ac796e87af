// Package signing implements sequential multi-party approval of documents.
// Participants act in strict position order, the aggregate of their outcomes
// determines the document status, and every committed change produces a set
// of Effect values that are executed after the transaction.
package signing

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a document, derived from its outcomes.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
)

// Terminal reports whether no further outcome can change the status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// State is the state of a single participant's outcome.
type State string

const (
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateRejected State = "rejected"
)

// Terminal reports whether the outcome has been acted on.
func (s State) Terminal() bool {
	return s == StateApproved || s == StateRejected
}

// MaxRoleTags bounds the number of role tags a single assignment may carry.
const MaxRoleTags = 3

// Assignment places a participant at a position in the signing order.
type Assignment struct {
	UserID     uuid.UUID `json:"user_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Position   int       `json:"position"`
	Required   bool      `json:"required"`
	RoleTags   []string  `json:"role_tags"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Outcome records what a participant did. An outcome leaves the pending
// state at most once.
type Outcome struct {
	UserID   uuid.UUID         `json:"user_id"`
	State    State             `json:"state"`
	ActedAt  *time.Time        `json:"acted_at,omitempty"`
	Reason   string            `json:"reason,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Snapshot is the complete signing state of one document.
// Assignments are ordered by position; outcomes are looked up by user.
type Snapshot struct {
	DocumentID  uuid.UUID    `json:"document_id"`
	Title       string       `json:"title"`
	OwnerID     uuid.UUID    `json:"owner_id"`
	Status      Status       `json:"status"`
	Assignments []Assignment `json:"assignments"`
	Outcomes    []Outcome    `json:"outcomes"`
}

// Clone returns a deep copy so commands never alias the caller's slices.
func (s Snapshot) Clone() Snapshot {
	c := s
	c.Assignments = make([]Assignment, len(s.Assignments))
	for i, a := range s.Assignments {
		a.RoleTags = slices.Clone(a.RoleTags)
		c.Assignments[i] = a
	}
	c.Outcomes = make([]Outcome, len(s.Outcomes))
	for i, o := range s.Outcomes {
		if o.ActedAt != nil {
			t := *o.ActedAt
			o.ActedAt = &t
		}
		o.Metadata = maps.Clone(o.Metadata)
		c.Outcomes[i] = o
	}
	return c
}

// Assignment returns the assignment for a user.
func (s Snapshot) Assignment(userID uuid.UUID) (Assignment, bool) {
	for _, a := range s.Assignments {
		if a.UserID == userID {
			return a, true
		}
	}
	return Assignment{}, false
}

// Outcome returns the outcome for a user.
func (s Snapshot) Outcome(userID uuid.UUID) (Outcome, bool) {
	for _, o := range s.Outcomes {
		if o.UserID == userID {
			return o, true
		}
	}
	return Outcome{}, false
}

// View is the read model served by the snapshot endpoint.
type View struct {
	Snapshot
	OnTurn []uuid.UUID `json:"on_turn"`
}

// NewView derives the on-turn set for a snapshot.
func NewView(s Snapshot) View {
	return View{Snapshot: s, OnTurn: OnTurn(s.Assignments, s.Outcomes)}
}

// Participant is a user that can be assigned to a document.
type Participant struct {
	UserID   uuid.UUID `json:"user_id" validate:"required"`
	Required *bool     `json:"required,omitempty"`
	RoleTags []string  `json:"role_tags,omitempty" validate:"omitempty,dive,required,max=64"`
}

// User is the directory entry resolved for a participant before assignment.
type User struct {
	ID    uuid.UUID
	Name  string
	Email string
}

// Decision is the action a participant takes on their own outcome.
type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
)

// ActCommand carries an approval or rejection.
type ActCommand struct {
	Decision Decision
	Reason   string
	Metadata map[string]string
}
