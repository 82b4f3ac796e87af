package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/practicanteticPX/docuprex/pkg/broadcast"
	"github.com/practicanteticPX/docuprex/pkg/handlers"
	"github.com/practicanteticPX/docuprex/pkg/routes"
)

const heartbeatInterval = 25 * time.Second

// eventsHandler streams document change events as server-sent events.
type eventsHandler struct {
	broadcaster broadcast.System
	logger      *slog.Logger
	heartbeat   time.Duration
}

func newEventsHandler(b broadcast.System, logger *slog.Logger) *eventsHandler {
	return &eventsHandler{
		broadcaster: b,
		logger:      logger.With("handler", "events"),
		heartbeat:   heartbeatInterval,
	}
}

func (h *eventsHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/events",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/documents/{id}", Handler: h.document},
		},
	}
}

func (h *eventsHandler) document(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid document id: %w", err))
		return
	}

	rc := http.NewResponseController(w)
	// The server write timeout would otherwise cut long-lived streams.
	rc.SetWriteDeadline(time.Time{})

	events, cancel, err := h.broadcaster.Subscribe(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusServiceUnavailable, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, ": subscribed\n\n")
	if err := rc.Flush(); err != nil {
		h.logger.Warn("streaming unsupported", "error", err)
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
		case e, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				h.logger.Error("encode event failed", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
