package quotations

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rumbo-tms/rumbo-tms/internal/platform/httpx"
	"github.com/rumbo-tms/rumbo-tms/internal/shared"
)

// Handler exposes quotation endpoints.
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
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.reprice)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/send", h.transition(h.service.Send))
	r.Post("/{id}/approve", h.transition(h.service.Approve))
	r.Post("/{id}/reject", h.transition(h.service.Reject))
	r.Post("/{id}/expire", h.transition(h.service.Expire))
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
	in, err := req.ToInput(h.validate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Create(ctx, shared.TenantFromContext(ctx), in)
	if err != nil {
		h.logger.Error("create quotation failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, NewResponse(q))
}

func (h *Handler) reprice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	in, err := req.ToInput(h.validate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Reprice(ctx, shared.TenantFromContext(ctx), id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewResponse(q))
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Get(ctx, shared.TenantFromContext(ctx), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewResponse(q))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var filter ListFilter
	if s := r.URL.Query().Get("status"); s != "" {
		filter.Status = Status(s)
	}
	if s := r.URL.Query().Get("created_before"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "created_before must be RFC3339")
			return
		}
		filter.CreatedBefore = t
	}
	items, err := h.service.List(ctx, shared.TenantFromContext(ctx), filter)
	if err != nil {
		h.logger.Error("list quotations failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	responses := make([]Response, 0, len(items))
	for i := range items {
		responses = append(responses, NewResponse(&items[i]))
	}
	httpx.JSON(w, http.StatusOK, responses)
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

func (h *Handler) transition(op func(ctx context.Context, tenantID string, id int64) (*Quotation, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := idParam(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		q, err := op(ctx, shared.TenantFromContext(ctx), id)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, NewResponse(q))
	}
}
