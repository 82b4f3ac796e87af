package notifications

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/practicanteticPX/docuprex/pkg/auth"
	"github.com/practicanteticPX/docuprex/pkg/handlers"
	"github.com/practicanteticPX/docuprex/pkg/pagination"
	"github.com/practicanteticPX/docuprex/pkg/routes"
)

var errInvalidID = errors.New("invalid notification id")

// Handler serves the caller's notification inbox.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "notifications"),
		pagination: pagination,
	}
}

// Routes returns the route group for the inbox.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/notifications",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/stats", Handler: h.Stats},
			{Method: "POST", Pattern: "/{id}/read", Handler: h.MarkRead},
		},
	}
}

// List returns a page of the caller's notifications.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination, sortable)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), caller.ID, page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidID)
		return
	}

	caller, _ := auth.FromContext(r.Context())
	if err := h.sys.MarkRead(r.Context(), id, caller.ID); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Stats reports delivery counters. Administrators only.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	if !caller.IsAdmin() {
		handlers.RespondError(w, h.logger, http.StatusForbidden, errors.New("administrator role required"))
		return
	}
	handlers.RespondJSON(w, http.StatusOK, h.sys.Stats())
}
