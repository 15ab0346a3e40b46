package advances

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rumbo-tms/rumbo-tms/internal/platform/httpx"
	"github.com/rumbo-tms/rumbo-tms/internal/shared"
)

// CreateRequest is the JSON body for opening an advance.
type CreateRequest struct {
	ItineraryID int64   `json:"itinerary_id" validate:"required,gt=0"`
	DriverName  string  `json:"driver_name" validate:"required,max=100"`
	Purpose     string  `json:"purpose" validate:"max=200"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
}

// SettleRequest is the JSON body for settlement.
type SettleRequest struct {
	ActualExpenses float64 `json:"actual_expenses" validate:"gte=0"`
}

// Handler exposes expense advance endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/suggest", h.suggest)
	r.Get("/{id}", h.show)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/submit", h.transition(h.service.Submit))
	r.Post("/{id}/approve", h.transition(h.service.Approve))
	r.Post("/{id}/disburse", h.transition(h.service.Disburse))
	r.Post("/{id}/cancel", h.transition(h.service.Cancel))
	r.Post("/{id}/settle", h.settle)
	r.Post("/{id}/settle-balance", h.settleBalance)
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.Validationf("invalid id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	a, err := h.service.Create(ctx, shared.TenantFromContext(ctx), CreateInput{
		ItineraryID: req.ItineraryID,
		DriverName:  req.DriverName,
		Purpose:     req.Purpose,
		Amount:      req.Amount,
	})
	if err != nil {
		h.logger.Error("create advance failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler) suggest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	itineraryID, err := strconv.ParseInt(r.URL.Query().Get("itinerary_id"), 10, 64)
	if err != nil || itineraryID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "itinerary_id query parameter required")
		return
	}
	suggestion, err := h.service.Suggest(ctx, shared.TenantFromContext(ctx), itineraryID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, suggestion)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.Get(ctx, shared.TenantFromContext(ctx), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	items, err := h.service.List(ctx, shared.TenantFromContext(ctx), Status(r.URL.Query().Get("status")))
	if err != nil {
		h.logger.Error("list advances failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(ctx, shared.TenantFromContext(ctx), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) settle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req SettleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	a, err := h.service.Settle(ctx, shared.TenantFromContext(ctx), id, req.ActualExpenses)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) settleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.MarkBalanceSettled(ctx, shared.TenantFromContext(ctx), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) transition(op func(ctx context.Context, tenantID string, id int64) (*Advance, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := idParam(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		a, err := op(ctx, shared.TenantFromContext(ctx), id)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, a)
	}
}
