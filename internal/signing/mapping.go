package signing

import (
	"encoding/json"
	"fmt"

	"github.com/practicanteticPX/docuprex/pkg/query"
	"github.com/practicanteticPX/docuprex/pkg/repository"
)

var assignmentProjection = query.
	NewProjectionMap("public", "signature_assignments", "a").
	Project("user_id", "UserID").
	Project("position", "Position").
	Project("required", "Required").
	Project("role_tags", "RoleTags").
	Project("assigned_at", "AssignedAt").
	Join("public", "users", "u", "JOIN", "u.id = a.user_id").
	Project("name", "Name").
	Project("email", "Email").
	Join("public", "signature_outcomes", "o", "JOIN", "o.document_id = a.document_id AND o.user_id = a.user_id").
	Project("state", "State").
	Project("acted_at", "ActedAt").
	Project("reason", "Reason").
	Project("metadata", "Metadata")

var assignmentSort = query.SortField{Field: "Position"}

var userProjection = query.
	NewProjectionMap("public", "users", "u").
	Project("id", "ID").
	Project("name", "Name").
	Project("email", "Email").
	Project("active", "Active")

type row struct {
	assignment Assignment
	outcome    Outcome
}

func scanRow(s repository.Scanner) (row, error) {
	var (
		r        row
		tags     []byte
		metadata []byte
	)
	err := s.Scan(
		&r.assignment.UserID,
		&r.assignment.Position,
		&r.assignment.Required,
		&tags,
		&r.assignment.AssignedAt,
		&r.assignment.Name,
		&r.assignment.Email,
		&r.outcome.State,
		&r.outcome.ActedAt,
		&r.outcome.Reason,
		&metadata,
	)
	if err != nil {
		return r, err
	}

	if err := json.Unmarshal(tags, &r.assignment.RoleTags); err != nil {
		return r, fmt.Errorf("decode role tags: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &r.outcome.Metadata); err != nil {
			return r, fmt.Errorf("decode outcome metadata: %w", err)
		}
		if len(r.outcome.Metadata) == 0 {
			r.outcome.Metadata = nil
		}
	}
	r.outcome.UserID = r.assignment.UserID
	return r, nil
}

func scanUser(s repository.Scanner) (User, error) {
	var (
		u      User
		active bool
	)
	err := s.Scan(&u.ID, &u.Name, &u.Email, &active)
	return u, err
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
