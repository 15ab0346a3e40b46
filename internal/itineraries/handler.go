package itineraries

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rumbo-tms/rumbo-tms/internal/platform/httpx"
	"github.com/rumbo-tms/rumbo-tms/internal/quotations"
	"github.com/rumbo-tms/rumbo-tms/internal/shared"
)

// ScheduleRequest is the JSON body for converting a quotation.
type ScheduleRequest struct {
	QuotationID int64  `json:"quotation_id" validate:"required,gt=0"`
	DriverName  string `json:"driver_name" validate:"required,max=100"`
	VehicleID   int64  `json:"vehicle_id" validate:"gte=0"`
	StartDate   string `json:"start_date" validate:"required"`
	EndDate     string `json:"end_date" validate:"required"`
}

// ManualRequest is the JSON body for direct itinerary creation.
type ManualRequest struct {
	ClientCode  string  `json:"client_code" validate:"required,max=10"`
	LeaderName  string  `json:"leader_name" validate:"max=100"`
	Origin      string  `json:"origin" validate:"required"`
	Destination string  `json:"destination" validate:"required"`
	GroupSize   int     `json:"group_size" validate:"required,gt=0"`
	DistanceKm  float64 `json:"distance_km" validate:"gte=0"`
	DriverName  string  `json:"driver_name" validate:"required,max=100"`
	VehicleID   int64   `json:"vehicle_id" validate:"gte=0"`
	AgreedPrice float64 `json:"agreed_price" validate:"required,gt=0"`
	Currency    string  `json:"currency" validate:"required,len=3,uppercase"`
	StartDate   string  `json:"start_date" validate:"required"`
	EndDate     string  `json:"end_date" validate:"required"`
}

func parseDate(value, field string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, shared.Validationf("%s must be YYYY-MM-DD, got %q", field, value)
	}
	return t, nil
}

// Handler exposes itinerary endpoints.
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
	r.Post("/", h.createManual)
	r.Post("/from-quotation", h.createFromQuotation)
	r.Get("/{id}", h.show)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/start", h.transition(h.service.Start))
	r.Post("/{id}/complete", h.transition(h.service.Complete))
	r.Post("/{id}/cancel", h.transition(h.service.Cancel))
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.Validationf("invalid id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func (h *Handler) createFromQuotation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ScheduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	start, err := parseDate(req.StartDate, "start_date")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	end, err := parseDate(req.EndDate, "end_date")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	it, err := h.service.CreateFromQuotation(ctx, shared.TenantFromContext(ctx), req.QuotationID, ScheduleInput{
		DriverName: req.DriverName,
		VehicleID:  req.VehicleID,
		StartDate:  start,
		EndDate:    end,
	})
	if err != nil {
		h.logger.Error("create itinerary from quotation failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, it)
}

func (h *Handler) createManual(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ManualRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	start, err := parseDate(req.StartDate, "start_date")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	end, err := parseDate(req.EndDate, "end_date")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	it, err := h.service.CreateManual(ctx, shared.TenantFromContext(ctx), ManualInput{
		ClientCode: req.ClientCode,
		LeaderName: req.LeaderName,
		Trip: quotations.TripDetails{
			Origin:          req.Origin,
			Destination:     req.Destination,
			GroupSize:       req.GroupSize,
			TotalDistanceKm: req.DistanceKm,
		},
		DriverName:  req.DriverName,
		VehicleID:   req.VehicleID,
		AgreedPrice: req.AgreedPrice,
		Currency:    req.Currency,
		StartDate:   start,
		EndDate:     end,
	})
	if err != nil {
		h.logger.Error("create itinerary failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, it)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	it, err := h.service.Get(ctx, shared.TenantFromContext(ctx), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, it)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	items, err := h.service.List(ctx, shared.TenantFromContext(ctx), Status(r.URL.Query().Get("status")))
	if err != nil {
		h.logger.Error("list itineraries failed", "error", err)
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

func (h *Handler) transition(op func(ctx context.Context, tenantID string, id int64) (*Itinerary, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := idParam(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		it, err := op(ctx, shared.TenantFromContext(ctx), id)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, it)
	}
}
