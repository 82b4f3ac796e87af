package documents

import (
	"context"

	"github.com/google/uuid"

	"github.com/practicanteticPX/docuprex/pkg/auth"
	"github.com/practicanteticPX/docuprex/pkg/pagination"
	"github.com/practicanteticPX/docuprex/pkg/storage"
)

// System defines the public contract for document domain operations.
type System interface {
	Handler(maxUploadSize int64) *Handler

	// List returns documents visible to caller: every document for an
	// administrator, otherwise those the caller owns or signs.
	List(
		ctx context.Context,
		caller auth.Identity,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Document], error)

	Find(ctx context.Context, id uuid.UUID) (*Document, error)
	// Content returns the stored PDF including any appended signature report.
	Content(ctx context.Context, id uuid.UUID) (*Document, *storage.Blob, error)
	Create(ctx context.Context, cmd CreateCommand) (*Document, error)
	Delete(ctx context.Context, caller auth.Identity, id uuid.UUID) error

	// StorageKey resolves the blob key of a document.
	StorageKey(ctx context.Context, id uuid.UUID) (string, error)
}
