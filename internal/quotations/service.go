package quotations

import (
	"context"
	"log/slog"
	"time"

	"github.com/rumbo-tms/rumbo-tms/internal/billing"
	"github.com/rumbo-tms/rumbo-tms/internal/costing"
	"github.com/rumbo-tms/rumbo-tms/internal/fx"
	"github.com/rumbo-tms/rumbo-tms/internal/numbering"
	"github.com/rumbo-tms/rumbo-tms/internal/pricing"
	"github.com/rumbo-tms/rumbo-tms/internal/shared"
	"github.com/rumbo-tms/rumbo-tms/internal/vehicles"
)

// ListFilter narrows quotation listings.
type ListFilter struct {
	Status        Status
	CreatedBefore time.Time
}

// Repository persists quotations. Create must allocate the document number
// and insert within one transaction under the tenant/type sequence lock.
type Repository interface {
	Create(ctx context.Context, q *Quotation) error
	Get(ctx context.Context, tenantID string, id int64) (*Quotation, error)
	List(ctx context.Context, tenantID string, filter ListFilter) ([]Quotation, error)
	Update(ctx context.Context, q *Quotation) error
	Delete(ctx context.Context, tenantID string, id int64) error
}

// ItineraryLookup answers whether an itinerary already references a
// quotation. Defined here to keep the dependency pointing downstream.
type ItineraryLookup interface {
	ExistsForQuotation(ctx context.Context, tenantID string, quotationID int64) (bool, error)
}

// CreateInput carries everything needed to price and freeze a quotation.
type CreateInput struct {
	ClientCode      string
	LeaderName      string
	Currency        string
	VehicleID       int64
	Trip            costing.TripParams
	FuelPrice       costing.FuelPrice
	PerDiem         costing.PerDiem
	Include         costing.Inclusions
	MarkupPercent   float64 // 0 derives a recommendation from the trip shape
	DiscountPercent float64
}

// Service implements the quotation operations.
type Service struct {
	repo            Repository
	vehicles        vehicles.Repository
	rates           fx.RateSource
	guard           billing.PlanGuard
	engine          *costing.Engine
	itineraries     ItineraryLookup
	logger          *slog.Logger
	roundUnit       float64
	defaultCurrency string
	now             func() time.Time
}

// NewService constructs a Service. roundUnit is the local-currency rounding
// step applied to sale prices; zero disables rounding. defaultCurrency is
// applied when a request omits the currency; empty selects HNL.
func NewService(
	repo Repository,
	vehicleRepo vehicles.Repository,
	rates fx.RateSource,
	guard billing.PlanGuard,
	engine *costing.Engine,
	itineraries ItineraryLookup,
	logger *slog.Logger,
	roundUnit float64,
	defaultCurrency string,
) *Service {
	if defaultCurrency == "" {
		defaultCurrency = "HNL"
	}
	return &Service{
		repo:            repo,
		vehicles:        vehicleRepo,
		rates:           rates,
		guard:           guard,
		engine:          engine,
		itineraries:     itineraries,
		logger:          logger,
		roundUnit:       roundUnit,
		defaultCurrency: defaultCurrency,
		now:             time.Now,
	}
}

// price runs the cost engine and markup application for the input, freezing
// everything against the given snapshot.
func (s *Service) price(ctx context.Context, tenantID string, in CreateInput, snap fx.Snapshot) (CostSnapshot, float64, fx.Pair, error) {
	vehicle, err := s.vehicles.Get(ctx, tenantID, in.VehicleID)
	if err != nil {
		return CostSnapshot{}, 0, fx.Pair{}, err
	}

	breakdown, err := s.engine.Calculate(in.Trip, vehicle.Spec(), in.FuelPrice, in.PerDiem, in.Include)
	if err != nil {
		return CostSnapshot{}, 0, fx.Pair{}, err
	}

	markup := in.MarkupPercent
	if markup <= 0 {
		markup = pricing.RecommendMarkup(in.Trip.DistanceKm, breakdown.Days, in.Trip.GroupSize)
	}

	sale := breakdown.Total * (1 + markup/100)
	if in.DiscountPercent > 0 {
		sale *= 1 - in.DiscountPercent/100
	}
	sale = fx.RoundTo(sale, s.roundUnit)

	return CostSnapshotFrom(breakdown, snap), markup, snap.PairFromLocal(sale), nil
}

// Create prices a trip and persists the quotation in draft, with the
// exchange rate and every cost component frozen at this moment.
func (s *Service) Create(ctx context.Context, tenantID string, in CreateInput) (*Quotation, error) {
	if tenantID == "" {
		return nil, shared.Validationf("tenant id required")
	}
	if err := s.guard.CanCreateQuotation(ctx, tenantID); err != nil {
		return nil, err
	}
	if in.Trip.GroupSize <= 0 {
		return nil, shared.Validationf("group size must be positive, got %d", in.Trip.GroupSize)
	}
	if in.Currency == "" {
		in.Currency = s.defaultCurrency
	}

	quote, err := s.rates.Rate(ctx, in.Currency)
	if err != nil {
		return nil, err
	}
	now := s.now()
	snap, err := fx.NewSnapshot(in.Currency, quote.Rate, now)
	if err != nil {
		return nil, err
	}

	costs, markup, sale, err := s.price(ctx, tenantID, in, snap)
	if err != nil {
		return nil, err
	}

	q := &Quotation{
		TenantID:   tenantID,
		ClientCode: in.ClientCode,
		LeaderName: in.LeaderName,
		Trip: TripDetails{
			Origin:          in.Trip.Origin,
			Destination:     in.Trip.Destination,
			GroupSize:       in.Trip.GroupSize,
			TotalDistanceKm: in.Trip.DistanceKm,
			TotalTimeMin:    in.Trip.TotalTimeMinutes,
			EstimatedDays:   in.Trip.Days,
		},
		Costs:         costs,
		Currency:      snap,
		MarkupPercent: markup,
		SalePrice:     sale,
		Include:       in.Include,
		Status:        StatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if q.Trip.EstimatedDays <= 0 {
		q.Trip.EstimatedDays = costing.DeriveDays(in.Trip.TotalTimeMinutes)
	}

	if err := s.repo.Create(ctx, q); err != nil {
		return nil, err
	}

	s.logger.Info("quotation created",
		slog.String("tenant", tenantID),
		slog.String("number", q.Number),
		slog.Float64("total_cost", q.Costs.Total.Local),
		slog.Float64("sale_price", q.SalePrice.Local),
	)
	return q, nil
}

// Reprice recomputes costs and sale price for a draft quotation at the
// current exchange rate. This is the only operation that replaces a frozen
// snapshot; any other state keeps its figures forever.
func (s *Service) Reprice(ctx context.Context, tenantID string, id int64, in CreateInput) (*Quotation, error) {
	q, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if q.Status != StatusDraft {
		return nil, shared.Statef("quotation %s is %s, only drafts can be repriced", q.Number, q.Status)
	}
	if in.Currency == "" {
		in.Currency = s.defaultCurrency
	}

	quote, err := s.rates.Rate(ctx, in.Currency)
	if err != nil {
		return nil, err
	}
	now := s.now()
	snap, err := fx.NewSnapshot(in.Currency, quote.Rate, now)
	if err != nil {
		return nil, err
	}

	costs, markup, sale, err := s.price(ctx, tenantID, in, snap)
	if err != nil {
		return nil, err
	}

	q.ClientCode = in.ClientCode
	q.LeaderName = in.LeaderName
	q.Trip = TripDetails{
		Origin:          in.Trip.Origin,
		Destination:     in.Trip.Destination,
		GroupSize:       in.Trip.GroupSize,
		TotalDistanceKm: in.Trip.DistanceKm,
		TotalTimeMin:    in.Trip.TotalTimeMinutes,
		EstimatedDays:   in.Trip.Days,
	}
	if q.Trip.EstimatedDays <= 0 {
		q.Trip.EstimatedDays = costing.DeriveDays(in.Trip.TotalTimeMinutes)
	}
	q.Costs = costs
	q.Currency = snap
	q.MarkupPercent = markup
	q.SalePrice = sale
	q.Include = in.Include
	q.UpdatedAt = now

	if err := s.repo.Update(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// Get returns a tenant's quotation by id.
func (s *Service) Get(ctx context.Context, tenantID string, id int64) (*Quotation, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// List returns a tenant's quotations, optionally filtered.
func (s *Service) List(ctx context.Context, tenantID string, filter ListFilter) ([]Quotation, error) {
	return s.repo.List(ctx, tenantID, filter)
}

// LongNumber is the full document code including client and leader tags.
func (q *Quotation) LongNumber() string {
	return numbering.LongCode(q.Number, q.ClientCode, q.LeaderName, q.Trip.GroupSize)
}

func (s *Service) transition(ctx context.Context, tenantID string, id int64, next Status, stamp func(*Quotation, time.Time)) (*Quotation, error) {
	q, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !q.Status.CanTransition(next) {
		return nil, shared.Statef("quotation %s cannot move %s -> %s", q.Number, q.Status, next)
	}
	now := s.now()
	q.Status = next
	q.UpdatedAt = now
	if stamp != nil {
		stamp(q, now)
	}
	if err := s.repo.Update(ctx, q); err != nil {
		return nil, err
	}
	s.logger.Info("quotation transitioned",
		slog.String("tenant", tenantID),
		slog.String("number", q.Number),
		slog.String("status", string(next)),
	)
	return q, nil
}

// Send marks the quotation as delivered to the client.
func (s *Service) Send(ctx context.Context, tenantID string, id int64) (*Quotation, error) {
	return s.transition(ctx, tenantID, id, StatusSent, func(q *Quotation, now time.Time) { q.SentAt = &now })
}

// Approve accepts the quotation. Allowed from draft directly for clients who
// confirm verbally before anything is sent.
func (s *Service) Approve(ctx context.Context, tenantID string, id int64) (*Quotation, error) {
	return s.transition(ctx, tenantID, id, StatusApproved, func(q *Quotation, now time.Time) { q.ApprovedAt = &now })
}

// Reject declines the quotation.
func (s *Service) Reject(ctx context.Context, tenantID string, id int64) (*Quotation, error) {
	return s.transition(ctx, tenantID, id, StatusRejected, func(q *Quotation, now time.Time) { q.RejectedAt = &now })
}

// Expire times out a sent quotation.
func (s *Service) Expire(ctx context.Context, tenantID string, id int64) (*Quotation, error) {
	return s.transition(ctx, tenantID, id, StatusExpired, func(q *Quotation, now time.Time) { q.ExpiredAt = &now })
}

// ExpireStale expires every sent quotation older than maxAge. Driven by the
// background sweep; returns how many were expired.
func (s *Service) ExpireStale(ctx context.Context, tenantID string, maxAge time.Duration) (int, error) {
	cutoff := s.now().Add(-maxAge)
	stale, err := s.repo.List(ctx, tenantID, ListFilter{Status: StatusSent, CreatedBefore: cutoff})
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range stale {
		if _, err := s.Expire(ctx, tenantID, stale[i].ID); err != nil {
			s.logger.Warn("stale quotation expiry failed",
				slog.String("number", stale[i].Number), slog.Any("error", err))
			continue
		}
		expired++
	}
	return expired, nil
}

// Delete removes a quotation. Blocked once an itinerary references it, in
// any state; the paper trail from that point on is the itinerary's.
func (s *Service) Delete(ctx context.Context, tenantID string, id int64) error {
	q, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if s.itineraries != nil {
		referenced, err := s.itineraries.ExistsForQuotation(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if referenced {
			return shared.Statef("quotation %s has an itinerary and cannot be deleted", q.Number)
		}
	}
	return s.repo.Delete(ctx, tenantID, id)
}
