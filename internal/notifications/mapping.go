package notifications

import (
	"github.com/practicanteticPX/docuprex/pkg/pagination"
	"github.com/practicanteticPX/docuprex/pkg/query"
	"github.com/practicanteticPX/docuprex/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "notifications", "n").
	Project("id", "ID").
	Project("document_id", "DocumentID").
	Project("user_id", "UserID").
	Project("kind", "Kind").
	Project("read", "Read").
	Project("created_at", "CreatedAt").
	Project("reminded_at", "RemindedAt").
	Join("public", "documents", "d", "JOIN", "d.id = n.document_id").
	Project("title", "DocumentTitle")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

var sortable = pagination.Sortable{
	"created_at": "CreatedAt",
	"kind":       "Kind",
	"read":       "Read",
	"title":      "DocumentTitle",
}

func scanNotification(s repository.Scanner) (Notification, error) {
	var n Notification
	err := s.Scan(
		&n.ID,
		&n.DocumentID,
		&n.UserID,
		&n.Kind,
		&n.Read,
		&n.CreatedAt,
		&n.RemindedAt,
		&n.DocumentTitle,
	)
	return n, err
}

func scanRequest(s repository.Scanner) (Request, error) {
	var r Request
	err := s.Scan(&r.ID, &r.UserID, &r.CreatedAt, &r.RemindedAt)
	return r, err
}
