package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quorum/internal/assembly/models"
	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	"quorum/pkg/platform/httputil"
	"quorum/pkg/requestcontext"
)

// Service defines the event operations exposed over HTTP.
type Service interface {
	CreateEvent(ctx context.Context, req *models.CreateEventRequest) (*models.Event, error)
	GetEvent(ctx context.Context, eventID id.EventID) (*models.Event, error)
	ListEvents(ctx context.Context) ([]*models.Event, error)
	UpdateEvent(ctx context.Context, eventID id.EventID, req *models.UpdateEventRequest) (*models.Event, error)
}

// Handler serves /events.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the event routes on r. The caller installs the shared
// middleware chain.
func (h *Handler) Register(r chi.Router) {
	r.Post("/events", h.handleCreate)
	r.Get("/events", h.handleList)
	r.Get("/events/{eventID}", h.handleGet)
	r.Patch("/events/{eventID}", h.handleUpdate)
}

type listResponse struct {
	Events []*models.Event `json:"events"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.CreateEventRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid create event request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	ev, err := h.service.CreateEvent(ctx, &req)
	if err != nil {
		h.writeServiceError(ctx, w, "create event", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, ev)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.ListEvents(r.Context())
	if err != nil {
		h.writeServiceError(r.Context(), w, "list events", err)
		return
	}
	if events == nil {
		events = []*models.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Events: events})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ev, err := h.service.GetEvent(r.Context(), eventID)
	if err != nil {
		h.writeServiceError(r.Context(), w, "get event", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ev)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.UpdateEventRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid update event request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	ev, err := h.service.UpdateEvent(ctx, eventID, &req)
	if err != nil {
		h.writeServiceError(ctx, w, "update event", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ev)
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "failed to "+op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
