package users

import (
	"context"

	"github.com/google/uuid"

	"github.com/practicanteticPX/docuprex/pkg/auth"
	"github.com/practicanteticPX/docuprex/pkg/pagination"
)

// System defines the directory operations.
type System interface {
	Handler() *Handler

	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[User], error)
	Find(ctx context.Context, id uuid.UUID) (*User, error)
	Create(ctx context.Context, caller auth.Identity, cmd CreateCommand) (*User, error)
	SetActive(ctx context.Context, caller auth.Identity, id uuid.UUID, active bool) (*User, error)

	// Sync upserts the directory row for a verified identity and returns it.
	Sync(ctx context.Context, id auth.Identity) (*User, error)
}
