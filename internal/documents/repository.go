package documents

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/practicanteticPX/docuprex/internal/reports"
	"github.com/practicanteticPX/docuprex/pkg/auth"
	"github.com/practicanteticPX/docuprex/pkg/pagination"
	"github.com/practicanteticPX/docuprex/pkg/query"
	"github.com/practicanteticPX/docuprex/pkg/repository"
	"github.com/practicanteticPX/docuprex/pkg/storage"
)

const contentTypePDF = "application/pdf"

type repo struct {
	db         *sql.DB
	storage    storage.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a document repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		logger:     logger.With("system", "documents"),
		pagination: pagination,
	}
}

func (r *repo) Handler(maxUploadSize int64) *Handler {
	return NewHandler(r, r.logger, r.pagination, maxUploadSize)
}

func (r *repo) List(
	ctx context.Context,
	caller auth.Identity,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Document], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Title", "Filename")

	if !caller.IsAdmin() {
		qb.WhereRaw(involved, caller.ID, caller.ID)
	}

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	docs, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanDocument)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	result := pagination.NewPageResult(docs, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Document, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	d, err := repository.QueryOne(ctx, r.db, q, args, scanDocument)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &d, nil
}

func (r *repo) Content(ctx context.Context, id uuid.UUID) (*Document, *storage.Blob, error) {
	doc, err := r.Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	blob, err := r.storage.Download(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: content missing", ErrNotFound)
		}
		return nil, nil, fmt.Errorf("download document: %w", err)
	}
	return doc, blob, nil
}

func (r *repo) StorageKey(ctx context.Context, id uuid.UUID) (string, error) {
	key, err := repository.QueryOne(ctx, r.db,
		"SELECT storage_key FROM documents WHERE id = $1",
		[]any{id},
		func(s repository.Scanner) (string, error) {
			var k string
			err := s.Scan(&k)
			return k, err
		},
	)
	if err != nil {
		return "", repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return key, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Document, error) {
	id := uuid.New()
	filename := sanitizeFilename(cmd.Filename)
	key := buildStorageKey(id, filename)

	metadata := map[string]string{reports.MetadataReportPages: "0"}
	if err := r.storage.Upload(ctx, key, bytes.NewReader(cmd.Data), contentTypePDF, metadata); err != nil {
		return nil, fmt.Errorf("upload document blob: %w", err)
	}

	title := strings.TrimSpace(cmd.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(cmd.Filename), filepath.Ext(cmd.Filename))
	}

	insertArgs := []any{
		id,
		title,
		cmd.OwnerID,
		cmd.Filename,
		contentTypePDF,
		int64(len(cmd.Data)),
		cmd.PageCount,
		key,
	}

	d, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Document, error) {
		if err := repository.ExecExpectOne(ctx, tx, `
			INSERT INTO documents(id, title, owner_id, filename, content_type, size_bytes, page_count, storage_key)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			insertArgs...,
		); err != nil {
			return Document{}, err
		}

		q, args := query.NewBuilder(projection).BuildSingle("ID", id)
		return repository.QueryOne(ctx, tx, q, args, scanDocument)
	})

	if err != nil {
		if delErr := r.storage.Delete(ctx, key); delErr != nil {
			r.logger.Warn("compensating blob delete failed", "key", key, "error", delErr)
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("document created", "id", d.ID, "title", d.Title, "owner_id", d.OwnerID, "pages", d.PageCount)
	return &d, nil
}

func (r *repo) Delete(ctx context.Context, caller auth.Identity, id uuid.UUID) error {
	doc, err := r.Find(ctx, id)
	if err != nil {
		return err
	}

	if doc.OwnerID != caller.ID && !caller.IsAdmin() {
		return ErrForbidden
	}

	_, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM documents WHERE id = $1",
			id,
		); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	if delErr := r.storage.Delete(ctx, doc.StorageKey); delErr != nil {
		r.logger.Warn(
			"blob delete failed after DB delete",
			"key", doc.StorageKey,
			"error", delErr,
		)
	}

	r.logger.Info("document deleted", "id", id, "by", caller.ID)
	return nil
}

func buildStorageKey(id uuid.UUID, filename string) string {
	return fmt.Sprintf("documents/%s/%s", id, filename)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == "" || name == "/" {
		name = "document.pdf"
	}
	return url.PathEscape(name)
}
