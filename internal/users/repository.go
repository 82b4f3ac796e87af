package users

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/practicanteticPX/docuprex/pkg/auth"
	"github.com/practicanteticPX/docuprex/pkg/pagination"
	"github.com/practicanteticPX/docuprex/pkg/query"
	"github.com/practicanteticPX/docuprex/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates the Postgres-backed directory.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "users"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[User], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Name", "Email")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	users, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanUser)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}

	result := pagination.NewPageResult(users, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*User, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	u, err := repository.QueryOne(ctx, r.db, q, args, scanUser)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &u, nil
}

func (r *repo) Create(ctx context.Context, caller auth.Identity, cmd CreateCommand) (*User, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}

	id := uuid.New()
	if cmd.ID != nil {
		id = *cmd.ID
	}
	role := cmd.Role
	if role == "" {
		role = auth.RoleUser
	}

	u, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (User, error) {
		return repository.QueryOne(ctx, tx, `
			INSERT INTO users(id, name, email, role)
			VALUES ($1, $2, $3, $4)
			RETURNING `+columns,
			[]any{id, strings.TrimSpace(cmd.Name), strings.ToLower(strings.TrimSpace(cmd.Email)), role},
			scanUser,
		)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("user created", "id", u.ID, "email", u.Email, "by", caller.ID)
	return &u, nil
}

func (r *repo) SetActive(ctx context.Context, caller auth.Identity, id uuid.UUID, active bool) (*User, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	if id == caller.ID && !active {
		return nil, fmt.Errorf("%w: administrators cannot deactivate themselves", ErrInvalid)
	}

	u, err := repository.QueryOne(ctx, r.db, `
		UPDATE users SET active = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+columns,
		[]any{id, active},
		scanUser,
	)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("user activation changed", "id", id, "active", active, "by", caller.ID)
	return &u, nil
}

// Sync keeps name, email and role aligned with the token. An empty email
// claim leaves the stored address untouched.
func (r *repo) Sync(ctx context.Context, id auth.Identity) (*User, error) {
	role := id.Role
	if role == "" {
		role = auth.RoleUser
	}

	u, err := repository.QueryOne(ctx, r.db, `
		INSERT INTO users(id, name, email, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
			email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
			role = EXCLUDED.role,
			updated_at = now()
		RETURNING `+columns,
		[]any{id.ID, id.Name, strings.ToLower(id.Email), role},
		scanUser,
	)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &u, nil
}
