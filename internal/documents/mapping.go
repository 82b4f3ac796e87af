package documents

import (
	"net/url"

	"github.com/google/uuid"

	"github.com/practicanteticPX/docuprex/pkg/pagination"
	"github.com/practicanteticPX/docuprex/pkg/query"
	"github.com/practicanteticPX/docuprex/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "documents", "d").
	Project("id", "ID").
	Project("title", "Title").
	Project("owner_id", "OwnerID").
	Join("public", "users", "u", "JOIN", "u.id = d.owner_id").
	Project("name", "OwnerName").
	Project("status", "Status").
	Project("filename", "Filename").
	Project("content_type", "ContentType").
	Project("size_bytes", "SizeBytes").
	Project("page_count", "PageCount").
	Project("storage_key", "StorageKey").
	Project("uploaded_at", "UploadedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "UploadedAt",
	Descending: true,
}

var sortable = pagination.Sortable{
	"title":       "Title",
	"status":      "Status",
	"filename":    "Filename",
	"uploaded_at": "UploadedAt",
	"updated_at":  "UpdatedAt",
}

// involved limits rows to documents the user owns or signs.
const involved = "(d.owner_id = ? OR EXISTS (SELECT 1 FROM signature_assignments sa WHERE sa.document_id = d.id AND sa.user_id = ?))"

// Filters contains optional filtering criteria for document queries.
// Nil fields are ignored. Status and OwnerID match exactly, Title and Filename
// use case-insensitive contains matching, and Signer keeps documents the user
// is assigned to.
type Filters struct {
	Status   *string    `json:"status,omitempty"`
	Title    *string    `json:"title,omitempty"`
	Filename *string    `json:"filename,omitempty"`
	OwnerID  *uuid.UUID `json:"owner_id,omitempty"`
	Signer   *uuid.UUID `json:"signer,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	b.
		WhereEquals("Status", f.Status).
		WhereContains("Title", f.Title).
		WhereContains("Filename", f.Filename).
		WhereEquals("OwnerID", f.OwnerID)

	if f.Signer != nil {
		b.WhereRaw("EXISTS (SELECT 1 FROM signature_assignments sa WHERE sa.document_id = d.id AND sa.user_id = ?)", *f.Signer)
	}
	return b
}

// FiltersFromQuery extracts filter values from URL query parameters.
// Malformed UUIDs are ignored.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}

	if t := values.Get("title"); t != "" {
		f.Title = &t
	}

	if fn := values.Get("filename"); fn != "" {
		f.Filename = &fn
	}

	if id, err := uuid.Parse(values.Get("owner_id")); err == nil {
		f.OwnerID = &id
	}

	if id, err := uuid.Parse(values.Get("signer")); err == nil {
		f.Signer = &id
	}

	return f
}

func scanDocument(s repository.Scanner) (Document, error) {
	var d Document
	err := s.Scan(
		&d.ID,
		&d.Title,
		&d.OwnerID,
		&d.OwnerName,
		&d.Status,
		&d.Filename,
		&d.ContentType,
		&d.SizeBytes,
		&d.PageCount,
		&d.StorageKey,
		&d.UploadedAt,
		&d.UpdatedAt,
	)
	return d, err
}
