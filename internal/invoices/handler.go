package invoices

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

// CreateRequest is the JSON body for raising an invoice.
type CreateRequest struct {
	ItineraryID int64   `json:"itinerary_id" validate:"required,gt=0"`
	TaxPercent  float64 `json:"tax_percent" validate:"gte=0,lte=100"`
	DueDate     string  `json:"due_date" validate:"omitempty"`
}

// PaymentRequest is the JSON body for one ledger entry.
type PaymentRequest struct {
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Method    string  `json:"method" validate:"required,oneof=cash transfer card check"`
	Reference string  `json:"reference" validate:"max=100"`
	PaidAt    string  `json:"paid_at" validate:"omitempty"`
}

// Response is the invoice representation returned to clients. AmountHNL
// duplicates the local total for consumers still reading the legacy field.
type Response struct {
	Invoice
	AmountHNL float64 `json:"amount_hnl"`
}

// NewResponse wraps an invoice with its legacy alias field.
func NewResponse(inv *Invoice) Response {
	return Response{Invoice: *inv, AmountHNL: inv.Total.Local}
}

// Handler exposes invoice endpoints.
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
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/send", h.transition(h.service.Send))
	r.Post("/{id}/cancel", h.transition(h.service.Cancel))
	r.Post("/{id}/void", h.transition(h.service.Void))
	r.Post("/{id}/payments", h.recordPayment)
	r.Delete("/{id}/payments/{paymentID}", h.deletePayment)
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.Validationf("invalid %s %q", name, chi.URLParam(r, name))
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
	in := CreateInput{ItineraryID: req.ItineraryID, TaxPercent: req.TaxPercent}
	if req.DueDate != "" {
		due, err := time.Parse(time.DateOnly, req.DueDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "due_date must be YYYY-MM-DD")
			return
		}
		in.DueDate = due
	}

	inv, err := h.service.Create(ctx, shared.TenantFromContext(ctx), in)
	if err != nil {
		h.logger.Error("create invoice failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, NewResponse(inv))
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Get(ctx, shared.TenantFromContext(ctx), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewResponse(inv))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	items, err := h.service.List(ctx, shared.TenantFromContext(ctx), Status(r.URL.Query().Get("status")))
	if err != nil {
		h.logger.Error("list invoices failed", "error", err)
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
	id, err := idParam(r, "id")
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

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req PaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := PaymentInput{Amount: req.Amount, Method: req.Method, Reference: req.Reference}
	if req.PaidAt != "" {
		paidAt, err := time.Parse(time.RFC3339, req.PaidAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "paid_at must be RFC3339")
			return
		}
		in.PaidAt = paidAt
	}

	inv, err := h.service.RecordPayment(ctx, shared.TenantFromContext(ctx), id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewResponse(inv))
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	paymentID, err := idParam(r, "paymentID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.DeletePayment(ctx, shared.TenantFromContext(ctx), id, paymentID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewResponse(inv))
}

func (h *Handler) transition(op func(ctx context.Context, tenantID string, id int64) (*Invoice, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := idParam(r, "id")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		inv, err := op(ctx, shared.TenantFromContext(ctx), id)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, NewResponse(inv))
	}
}
