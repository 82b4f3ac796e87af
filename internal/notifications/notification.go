// Package notifications records who has been asked to act on a document and
// delivers the matching mail. It executes the turn and owner effects planned
// by the signing engine and periodically reconciles the requests it holds
// against the derived on-turn set.
package notifications

import (
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/practicanteticPX/docuprex/pkg/query"
)

// Kind classifies a notification.
type Kind string

const (
	KindSignatureRequest  Kind = "signature_request"
	KindDocumentCompleted Kind = "document_completed"
	KindDocumentRejected  Kind = "document_rejected"
	KindReminder          Kind = "reminder"
)

// Notification is an inbox entry for a user.
type Notification struct {
	ID            uuid.UUID  `json:"id"`
	DocumentID    uuid.UUID  `json:"document_id"`
	UserID        uuid.UUID  `json:"user_id"`
	Kind          Kind       `json:"kind"`
	Read          bool       `json:"read"`
	CreatedAt     time.Time  `json:"created_at"`
	RemindedAt    *time.Time `json:"reminded_at"`
	DocumentTitle string     `json:"document_title"`
}

// Request is an outstanding signature request tracked by the sweep.
type Request struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	CreatedAt  time.Time
	RemindedAt *time.Time
}

// LastContact is the later of creation and the last reminder.
func (r Request) LastContact() time.Time {
	if r.RemindedAt != nil && r.RemindedAt.After(r.CreatedAt) {
		return *r.RemindedAt
	}
	return r.CreatedAt
}

// Recipient is the addressee of a mail.
type Recipient struct {
	ID    uuid.UUID
	Name  string
	Email string
}

// Filters narrows an inbox listing. Nil fields are ignored.
type Filters struct {
	Kind       *string    `json:"kind,omitempty"`
	Read       *bool      `json:"read,omitempty"`
	DocumentID *uuid.UUID `json:"document_id,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Kind", f.Kind).
		WhereEquals("Read", f.Read).
		WhereEquals("DocumentID", f.DocumentID)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if k := values.Get("kind"); k != "" {
		f.Kind = &k
	}
	if r := values.Get("read"); r != "" {
		if b, err := strconv.ParseBool(r); err == nil {
			f.Read = &b
		}
	}
	if d := values.Get("document_id"); d != "" {
		if id, err := uuid.Parse(d); err == nil {
			f.DocumentID = &id
		}
	}

	return f
}
