// Package users is the participant directory. Rows are provisioned from
// verified tokens on first use and may be created or deactivated by
// administrators.
package users

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateCommand registers a user ahead of their first sign-in. ID is optional
// and should match the subject the identity provider will issue.
type CreateCommand struct {
	ID    *uuid.UUID `json:"id"`
	Name  string     `json:"name" validate:"required,max=200"`
	Email string     `json:"email" validate:"required,email,max=320"`
	Role  string     `json:"role" validate:"omitempty,oneof=admin user"`
}

// ActiveRequest toggles whether a user may sign in and be assigned.
type ActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}
