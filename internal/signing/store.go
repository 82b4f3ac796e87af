package signing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/practicanteticPX/docuprex/pkg/query"
	"github.com/practicanteticPX/docuprex/pkg/repository"
)

// Store persists signing state. Update is the only write path: it locks the
// document row, applies fn to the current snapshot and persists the result in
// one transaction.
type Store interface {
	Snapshot(ctx context.Context, documentID uuid.UUID) (Snapshot, error)
	Update(
		ctx context.Context,
		documentID uuid.UUID,
		fn func(Snapshot) (Snapshot, error),
	) (before, after Snapshot, err error)
	Users(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]User, error)
	Open(ctx context.Context) ([]uuid.UUID, error)
}

type store struct {
	db *sql.DB
}

// NewStore creates a Postgres-backed Store.
func NewStore(db *sql.DB) Store {
	return &store{db: db}
}

func (s *store) Snapshot(ctx context.Context, documentID uuid.UUID) (Snapshot, error) {
	snap, err := load(ctx, s.db, documentID, false)
	if err != nil {
		return Snapshot{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return snap, nil
}

type transition struct {
	before Snapshot
	after  Snapshot
}

func (s *store) Update(
	ctx context.Context,
	documentID uuid.UUID,
	fn func(Snapshot) (Snapshot, error),
) (Snapshot, Snapshot, error) {
	t, err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) (transition, error) {
		before, err := load(ctx, tx, documentID, true)
		if err != nil {
			return transition{}, err
		}

		after, err := fn(before)
		if err != nil {
			return transition{}, err
		}
		after.Status = DeriveStatus(after.Outcomes)

		if err := persist(ctx, tx, before, after); err != nil {
			return transition{}, err
		}
		return transition{before: before, after: after}, nil
	})

	if err != nil {
		return Snapshot{}, Snapshot{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return t.before, t.after, nil
}

func (s *store) Users(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]User, error) {
	users := make(map[uuid.UUID]User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}

	q, args := query.
		NewBuilder(userProjection).
		WhereIn("ID", values...).
		WhereEquals("Active", true).
		Build()

	found, err := repository.QueryMany(ctx, s.db, q, args, scanUser)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}

	for _, u := range found {
		users[u.ID] = u
	}
	return users, nil
}

func (s *store) Open(ctx context.Context) ([]uuid.UUID, error) {
	q := `
		SELECT id FROM documents
		WHERE status IN ('pending', 'in_progress')
		  AND EXISTS (SELECT 1 FROM signature_assignments a WHERE a.document_id = documents.id)
		ORDER BY updated_at`

	return repository.QueryMany(ctx, s.db, q, nil, func(sc repository.Scanner) (uuid.UUID, error) {
		var id uuid.UUID
		err := sc.Scan(&id)
		return id, err
	})
}

func load(ctx context.Context, q repository.Querier, documentID uuid.UUID, lock bool) (Snapshot, error) {
	docSQL := "SELECT id, title, owner_id, status FROM documents WHERE id = $1"
	if lock {
		docSQL += " FOR UPDATE"
	}

	var snap Snapshot
	err := q.QueryRowContext(ctx, docSQL, documentID).Scan(
		&snap.DocumentID,
		&snap.Title,
		&snap.OwnerID,
		&snap.Status,
	)
	if err != nil {
		return Snapshot{}, err
	}

	rowsSQL, args := query.
		NewBuilder(assignmentProjection, assignmentSort).
		WhereRaw("a.document_id = ?", documentID).
		Build()

	rows, err := repository.QueryMany(ctx, q, rowsSQL, args, scanRow)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load assignments: %w", err)
	}

	snap.Assignments = make([]Assignment, 0, len(rows))
	snap.Outcomes = make([]Outcome, 0, len(rows))
	for _, r := range rows {
		snap.Assignments = append(snap.Assignments, r.assignment)
		snap.Outcomes = append(snap.Outcomes, r.outcome)
	}
	return snap, nil
}

// persist writes the difference between two snapshots. The positions unique
// constraint is deferred, so intermediate duplicates during a shift are fine.
func persist(ctx context.Context, tx repository.Executor, before, after Snapshot) error {
	id := after.DocumentID

	for _, a := range before.Assignments {
		if _, ok := after.Assignment(a.UserID); ok {
			continue
		}
		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM signature_assignments WHERE document_id = $1 AND user_id = $2",
			id, a.UserID,
		); err != nil {
			return fmt.Errorf("delete assignment: %w", err)
		}
	}

	for _, a := range after.Assignments {
		prev, existed := before.Assignment(a.UserID)
		if existed && prev.Position == a.Position {
			continue
		}

		if existed {
			if err := repository.ExecExpectOne(
				ctx, tx,
				"UPDATE signature_assignments SET position = $3 WHERE document_id = $1 AND user_id = $2",
				id, a.UserID, a.Position,
			); err != nil {
				return fmt.Errorf("update position: %w", err)
			}
			continue
		}

		tags := a.RoleTags
		if tags == nil {
			tags = []string{}
		}
		encoded, err := encodeJSON(tags)
		if err != nil {
			return fmt.Errorf("encode role tags: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO signature_assignments(document_id, user_id, position, required, role_tags, assigned_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			id, a.UserID, a.Position, a.Required, encoded, a.AssignedAt,
		); err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO signature_outcomes(document_id, user_id, state)
			VALUES ($1, $2, 'pending')`,
			id, a.UserID,
		); err != nil {
			return fmt.Errorf("insert outcome: %w", err)
		}
	}

	for _, o := range after.Outcomes {
		if o.State == StatePending {
			continue
		}
		if prev, ok := before.Outcome(o.UserID); ok && prev.State == o.State {
			continue
		}

		metadata := o.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		encoded, err := encodeJSON(metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}

		err = repository.ExecExpectOne(ctx, tx, `
			UPDATE signature_outcomes
			SET state = $3, acted_at = $4, reason = $5, metadata = $6
			WHERE document_id = $1 AND user_id = $2 AND state = 'pending'`,
			id, o.UserID, o.State, o.ActedAt, o.Reason, encoded,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: outcome for %s was already recorded", ErrInvalidTransition, o.UserID)
		}
		if err != nil {
			return fmt.Errorf("record outcome: %w", err)
		}
	}

	if err := repository.ExecExpectOne(
		ctx, tx,
		"UPDATE documents SET status = $2, updated_at = now() WHERE id = $1",
		id, after.Status,
	); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}
