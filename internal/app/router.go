package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/rumbo-tms/rumbo-tms/internal/advances"
	"github.com/rumbo-tms/rumbo-tms/internal/invoices"
	"github.com/rumbo-tms/rumbo-tms/internal/itineraries"
	"github.com/rumbo-tms/rumbo-tms/internal/observability"
	"github.com/rumbo-tms/rumbo-tms/internal/quotations"
	"github.com/rumbo-tms/rumbo-tms/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	QuotationHandler *quotations.Handler
	ItineraryHandler *itineraries.Handler
	InvoiceHandler   *invoices.Handler
	AdvanceHandler   *advances.Handler

	JobHandler *jobs.Handler
	Metrics    *observability.Metrics
}

// NewRouter constructs the chi.Router with Rumbo defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.With(params.Metrics.CreationMiddleware("quotation")).Route("/quotations", params.QuotationHandler.MountRoutes)
	r.With(params.Metrics.CreationMiddleware("itinerary")).Route("/itineraries", params.ItineraryHandler.MountRoutes)
	r.With(params.Metrics.CreationMiddleware("invoice")).Route("/invoices", params.InvoiceHandler.MountRoutes)
	r.With(params.Metrics.CreationMiddleware("advance")).Route("/advances", params.AdvanceHandler.MountRoutes)

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
