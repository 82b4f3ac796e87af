package signing

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/practicanteticPX/docuprex/pkg/auth"
	"github.com/practicanteticPX/docuprex/pkg/handlers"
	"github.com/practicanteticPX/docuprex/pkg/routes"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var errBadRequest = errors.New("malformed request")

// AssignRequest is the body of the assign endpoint.
type AssignRequest struct {
	Participants []Participant `json:"participants" validate:"required,min=1,dive"`
}

// ActRequest is the body of the approve and reject endpoints.
type ActRequest struct {
	Reason   string            `json:"reason" validate:"max=2000"`
	Metadata map[string]string `json:"metadata" validate:"max=20,dive,keys,max=64,endkeys,max=1024"`
}

// ReorderRequest lists every participant in the desired order.
type ReorderRequest struct {
	Order []uuid.UUID `json:"order" validate:"required,min=1"`
}

// Handler provides HTTP endpoints for the signing workflow.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler for the given system.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "signing"),
	}
}

// Routes returns the route group for signer management and actions.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/documents/{id}",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/signers", Handler: h.Snapshot},
			{Method: "POST", Pattern: "/signers", Handler: h.Assign},
			{Method: "DELETE", Pattern: "/signers/{userId}", Handler: h.Remove},
			{Method: "PUT", Pattern: "/signers/order", Handler: h.Reorder},
			{Method: "POST", Pattern: "/approve", Handler: h.Approve},
			{Method: "POST", Pattern: "/reject", Handler: h.Reject},
		},
	}
}

func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	view, err := h.sys.Snapshot(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, view)
}

// Assign adds a batch of participants to the signing order.
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req AssignRequest
	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.sys.Assign(r.Context(), identity(r), id, req.Participants)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := h.pathID(w, r, "userId")
	if !ok {
		return
	}

	view, err := h.sys.Remove(r.Context(), identity(r), id, userID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req ReorderRequest
	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.sys.Reorder(r.Context(), identity(r), id, req.Order)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, Approve)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, Reject)
}

func (h *Handler) act(w http.ResponseWriter, r *http.Request, decision Decision) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req ActRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	cmd := ActCommand{
		Decision: decision,
		Reason:   req.Reason,
		Metadata: requestMetadata(r, req.Metadata),
	}

	outcome, err := h.sys.Act(r.Context(), identity(r), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, outcome)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: invalid %s", errBadRequest, name))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %v", errBadRequest, err))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		err = fmt.Errorf("%w: %v", ErrConstraintViolation, err)
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return false
	}
	return true
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

// requestMetadata stamps the caller's address and user agent onto the
// signature payload. Client-supplied keys never override them.
func requestMetadata(r *http.Request, extra map[string]string) map[string]string {
	m := make(map[string]string, len(extra)+2)
	for k, v := range extra {
		m[k] = v
	}

	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	m["ip"] = ip
	if ua := r.UserAgent(); ua != "" {
		m["user_agent"] = ua
	}
	return m
}
