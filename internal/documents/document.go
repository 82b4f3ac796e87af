// Package documents implements the document registry for DocuPrex.
// It provides types, data access, and business logic for PDF upload,
// listing, download and removal, with the file itself kept in blob storage.
package documents

import (
	"time"

	"github.com/google/uuid"
)

// Document is a registered PDF and its signing status. Status is maintained
// by the signing workflow and is read-only here.
type Document struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	OwnerID     uuid.UUID `json:"owner_id"`
	OwnerName   string    `json:"owner_name"`
	Status      string    `json:"status"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	PageCount   int       `json:"page_count"`
	StorageKey  string    `json:"storage_key"`
	UploadedAt  time.Time `json:"uploaded_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateCommand carries the data needed to upload and register a new document.
// Data holds the raw PDF bytes; PageCount is extracted by the handler.
type CreateCommand struct {
	Data      []byte
	Title     string
	Filename  string
	OwnerID   uuid.UUID
	PageCount int
}
