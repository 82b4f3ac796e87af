package users

import (
	"net/url"
	"strconv"

	"github.com/practicanteticPX/docuprex/pkg/pagination"
	"github.com/practicanteticPX/docuprex/pkg/query"
	"github.com/practicanteticPX/docuprex/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "users", "u").
	Project("id", "ID").
	Project("name", "Name").
	Project("email", "Email").
	Project("role", "Role").
	Project("active", "Active").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

const columns = "id, name, email, role, active, created_at, updated_at"

var defaultSort = query.SortField{Field: "Name"}

var sortable = pagination.Sortable{
	"name":       "Name",
	"email":      "Email",
	"role":       "Role",
	"created_at": "CreatedAt",
}

// Filters narrows directory listings. Active defaults to true for the
// handler so pickers only offer assignable users.
type Filters struct {
	Role   *string `json:"role,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Role", f.Role).
		WhereEquals("Active", f.Active)
}

// FiltersFromQuery reads role and active. active=all lifts the active filter.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if r := values.Get("role"); r != "" {
		f.Role = &r
	}

	switch a := values.Get("active"); a {
	case "all":
	case "":
		t := true
		f.Active = &t
	default:
		if v, err := strconv.ParseBool(a); err == nil {
			f.Active = &v
		}
	}

	return f
}

func scanUser(s repository.Scanner) (User, error) {
	var u User
	err := s.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}
