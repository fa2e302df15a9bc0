package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quorum/internal/parity"
	"quorum/internal/report/models"
	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	"quorum/pkg/platform/httputil"
	"quorum/pkg/requestcontext"
)

// Service defines the read-only reports exposed over HTTP.
type Service interface {
	QuotaOverview(ctx context.Context, eventID id.EventID, state id.StateCode) (*models.QuotaOverview, error)
	StateParity(ctx context.Context, eventID id.EventID, state id.StateCode) (*parity.StateReport, error)
	NationalParity(ctx context.Context, nationalID id.EventID) (*models.NationalParity, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the report routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/events/{eventID}/states/{state}/quotas", h.handleQuotas)
	r.Get("/events/{eventID}/states/{state}/parity", h.handleStateParity)
	r.Get("/events/{eventID}/parity", h.handleNationalParity)
}

func (h *Handler) handleQuotas(w http.ResponseWriter, r *http.Request) {
	eventID, state, ok := parseRoster(w, r)
	if !ok {
		return
	}
	overview, err := h.service.QuotaOverview(r.Context(), eventID, state)
	if err != nil {
		h.writeServiceError(r.Context(), w, "build quota overview", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, overview)
}

func (h *Handler) handleStateParity(w http.ResponseWriter, r *http.Request) {
	eventID, state, ok := parseRoster(w, r)
	if !ok {
		return
	}
	report, err := h.service.StateParity(r.Context(), eventID, state)
	if err != nil {
		h.writeServiceError(r.Context(), w, "build state parity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleNationalParity(w http.ResponseWriter, r *http.Request) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := h.service.NationalParity(r.Context(), eventID)
	if err != nil {
		h.writeServiceError(r.Context(), w, "build national parity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func parseRoster(w http.ResponseWriter, r *http.Request) (id.EventID, id.StateCode, bool) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.EventID{}, "", false
	}
	state, err := id.ParseStateCode(chi.URLParam(r, "state"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.EventID{}, "", false
	}
	return eventID, state, true
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
