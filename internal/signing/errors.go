package signing

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors for signing operations.
var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrOutOfOrder          = errors.New("out of order")
	ErrInvalidReorder      = errors.New("invalid reorder")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrDuplicate           = errors.New("assignment already exists")
)

// OutOfOrderError names the predecessor blocking a participant.
type OutOfOrderError struct {
	Position int
	Name     string
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("%s: waiting on position %d (%s)", ErrOutOfOrder, e.Position, e.Name)
}

func (e *OutOfOrderError) Unwrap() error {
	return ErrOutOfOrder
}

// MapHTTPStatus maps signing domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrOutOfOrder), errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidReorder), errors.Is(err, ErrConstraintViolation):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
