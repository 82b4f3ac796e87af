package notifications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/practicanteticPX/docuprex/pkg/pagination"
	"github.com/practicanteticPX/docuprex/pkg/query"
	"github.com/practicanteticPX/docuprex/pkg/repository"
)

// Repository persists notification rows. Insert methods report whether a row
// was written so mail is sent only for new rows.
type Repository interface {
	Request(ctx context.Context, documentID, userID uuid.UUID) (bool, error)
	Notice(ctx context.Context, documentID, userID uuid.UUID, kind Kind) (bool, error)
	Revoke(ctx context.Context, documentID, userID uuid.UUID) (int64, error)
	// RevokeClosed deletes signature requests left on completed or rejected
	// documents.
	RevokeClosed(ctx context.Context) (int64, error)
	Requests(ctx context.Context, documentID uuid.UUID) ([]Request, error)
	Reminded(ctx context.Context, requestID uuid.UUID) error
	Recipient(ctx context.Context, userID uuid.UUID) (Recipient, error)

	List(ctx context.Context, userID uuid.UUID, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Notification], error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
}

type repo struct {
	db *sql.DB
}

// NewRepository creates a Postgres-backed Repository.
func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

// inserted interprets a guarded insert. A unique violation means a concurrent
// writer got there first, which is the same as the guard matching.
func inserted(n int64, err error) (bool, error) {
	if err != nil {
		if errors.Is(repository.MapError(err, ErrNotFound, ErrDuplicate), ErrDuplicate) {
			return false, nil
		}
		return false, err
	}
	return n > 0, nil
}

func (r *repo) Request(ctx context.Context, documentID, userID uuid.UUID) (bool, error) {
	return inserted(repository.ExecCount(ctx, r.db, `
		INSERT INTO notifications(id, document_id, user_id, kind)
		SELECT $1::uuid, $2::uuid, $3::uuid, 'signature_request'
		WHERE NOT EXISTS (
			SELECT 1 FROM notifications
			WHERE document_id = $2 AND user_id = $3 AND kind = 'signature_request'
		)`,
		uuid.New(), documentID, userID,
	))
}

func (r *repo) Notice(ctx context.Context, documentID, userID uuid.UUID, kind Kind) (bool, error) {
	return inserted(repository.ExecCount(ctx, r.db, `
		INSERT INTO notifications(id, document_id, user_id, kind)
		SELECT $1::uuid, $2::uuid, $3::uuid, $4::text
		WHERE NOT EXISTS (
			SELECT 1 FROM notifications
			WHERE document_id = $2 AND user_id = $3 AND kind = $4
		)`,
		uuid.New(), documentID, userID, string(kind),
	))
}

func (r *repo) Revoke(ctx context.Context, documentID, userID uuid.UUID) (int64, error) {
	return repository.ExecCount(
		ctx, r.db,
		"DELETE FROM notifications WHERE document_id = $1 AND user_id = $2 AND kind = 'signature_request'",
		documentID, userID,
	)
}

func (r *repo) RevokeClosed(ctx context.Context) (int64, error) {
	return repository.ExecCount(ctx, r.db, `
		DELETE FROM notifications n
		USING documents d
		WHERE n.document_id = d.id
		  AND n.kind = 'signature_request'
		  AND d.status IN ('completed', 'rejected')`,
	)
}

func (r *repo) Requests(ctx context.Context, documentID uuid.UUID) ([]Request, error) {
	q := `
		SELECT id, user_id, created_at, reminded_at FROM notifications
		WHERE document_id = $1 AND kind = 'signature_request'`
	return repository.QueryMany(ctx, r.db, q, []any{documentID}, scanRequest)
}

func (r *repo) Reminded(ctx context.Context, requestID uuid.UUID) error {
	err := repository.ExecExpectOne(
		ctx, r.db,
		"UPDATE notifications SET reminded_at = now() WHERE id = $1",
		requestID,
	)
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}

func (r *repo) Recipient(ctx context.Context, userID uuid.UUID) (Recipient, error) {
	rc, err := repository.QueryOne(
		ctx, r.db,
		"SELECT id, name, email FROM users WHERE id = $1",
		[]any{userID},
		func(s repository.Scanner) (Recipient, error) {
			var rc Recipient
			err := s.Scan(&rc.ID, &rc.Name, &rc.Email)
			return rc, err
		},
	)
	if err != nil {
		return Recipient{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return rc, nil
}

func (r *repo) List(
	ctx context.Context,
	userID uuid.UUID,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Notification], error) {
	qb := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("UserID", userID).
		WhereSearch(page.Search, "DocumentTitle")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanNotification)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	err := repository.ExecExpectOne(
		ctx, r.db,
		"UPDATE notifications SET read = true WHERE id = $1 AND user_id = $2",
		id, userID,
	)
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}
