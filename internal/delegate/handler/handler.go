package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quorum/internal/delegate/models"
	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	"quorum/pkg/platform/httputil"
	"quorum/pkg/requestcontext"
)

// Service defines the roster operations exposed over HTTP.
type Service interface {
	RegisterDelegate(ctx context.Context, eventID id.EventID, req *models.RegisterRequest) (*models.Delegate, error)
	GetDelegate(ctx context.Context, delegateID id.DelegateID) (*models.Delegate, error)
	ListDelegates(ctx context.Context, eventID id.EventID, state id.StateCode) ([]*models.Delegate, error)
	UpdateDelegate(ctx context.Context, delegateID id.DelegateID, req *models.UpdateRequest) (*models.Delegate, error)
	DeleteDelegate(ctx context.Context, delegateID id.DelegateID) (*models.DeletionReport, error)
	CompleteRegistration(ctx context.Context, delegateID id.DelegateID, req *models.CompleteRegistrationRequest) (*models.Delegate, error)
	GetProfile(ctx context.Context, delegateID id.DelegateID) (*models.Profile, error)
	PromoteDelegate(ctx context.Context, delegateID id.DelegateID, req *models.PromoteRequest) (*models.Mirror, error)
}

// Handler serves the delegate roster.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the roster routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/events/{eventID}/delegates", h.handleRegister)
	r.Get("/events/{eventID}/states/{state}/delegates", h.handleList)
	r.Get("/delegates/{delegateID}", h.handleGet)
	r.Patch("/delegates/{delegateID}", h.handleUpdate)
	r.Delete("/delegates/{delegateID}", h.handleDelete)
	r.Post("/delegates/{delegateID}/registration", h.handleCompleteRegistration)
	r.Get("/delegates/{delegateID}/registration", h.handleGetProfile)
	r.Post("/delegates/{delegateID}/promote", h.handlePromote)
}

type listResponse struct {
	Delegates []*models.Delegate `json:"delegates"`
}

// duplicateResponse extends the error envelope with the existing record.
type duplicateResponse struct {
	Error         string `json:"error"`
	Description   string `json:"error_description"`
	ExistingID    string `json:"existing_id"`
	ExistingKind  string `json:"existing_kind"`
	ExistingState string `json:"existing_state"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid register request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	d, err := h.service.RegisterDelegate(ctx, eventID, &req)
	if err != nil {
		var dup *models.DuplicatePersonError
		if errors.As(err, &dup) {
			httputil.WriteJSON(w, http.StatusConflict, duplicateResponse{
				Error:         string(dErrors.CodeDuplicatePerson),
				Description:   dup.Error(),
				ExistingID:    dup.ExistingID.String(),
				ExistingKind:  string(dup.ExistingKind),
				ExistingState: dup.ExistingState.String(),
			})
			return
		}
		h.writeServiceError(ctx, w, "register delegate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, d)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	state, err := id.ParseStateCode(chi.URLParam(r, "state"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	roster, err := h.service.ListDelegates(ctx, eventID, state)
	if err != nil {
		h.writeServiceError(ctx, w, "list delegates", err)
		return
	}
	if roster == nil {
		roster = []*models.Delegate{}
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Delegates: roster})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	delegateID, ok := parseDelegateID(w, r)
	if !ok {
		return
	}
	d, err := h.service.GetDelegate(r.Context(), delegateID)
	if err != nil {
		h.writeServiceError(r.Context(), w, "get delegate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	delegateID, ok := parseDelegateID(w, r)
	if !ok {
		return
	}
	var req models.UpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	d, err := h.service.UpdateDelegate(ctx, delegateID, &req)
	if err != nil {
		h.writeServiceError(ctx, w, "update delegate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	delegateID, ok := parseDelegateID(w, r)
	if !ok {
		return
	}
	report, err := h.service.DeleteDelegate(r.Context(), delegateID)
	if err != nil {
		h.writeServiceError(r.Context(), w, "delete delegate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleCompleteRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	delegateID, ok := parseDelegateID(w, r)
	if !ok {
		return
	}
	var req models.CompleteRegistrationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	d, err := h.service.CompleteRegistration(ctx, delegateID, &req)
	if err != nil {
		h.writeServiceError(ctx, w, "complete registration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	delegateID, ok := parseDelegateID(w, r)
	if !ok {
		return
	}
	p, err := h.service.GetProfile(r.Context(), delegateID)
	if err != nil {
		h.writeServiceError(r.Context(), w, "get registration profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handlePromote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	delegateID, ok := parseDelegateID(w, r)
	if !ok {
		return
	}
	var req models.PromoteRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	m, err := h.service.PromoteDelegate(ctx, delegateID, &req)
	if err != nil {
		h.writeServiceError(ctx, w, "promote delegate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, m)
}

func parseDelegateID(w http.ResponseWriter, r *http.Request) (id.DelegateID, bool) {
	delegateID, err := id.ParseDelegateID(chi.URLParam(r, "delegateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.DelegateID{}, false
	}
	return delegateID, true
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
