package itineraries

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rumbo-tms/rumbo-tms/internal/fx"
	"github.com/rumbo-tms/rumbo-tms/internal/quotations"
	"github.com/rumbo-tms/rumbo-tms/internal/shared"
)

// Repository persists itineraries. Create allocates the document number and
// inserts within one transaction under the tenant/type sequence lock.
type Repository interface {
	Create(ctx context.Context, it *Itinerary) error
	Get(ctx context.Context, tenantID string, id int64) (*Itinerary, error)
	GetByQuotation(ctx context.Context, tenantID string, quotationID int64) (*Itinerary, error)
	List(ctx context.Context, tenantID string, status Status) ([]Itinerary, error)
	Update(ctx context.Context, it *Itinerary) error
	Delete(ctx context.Context, tenantID string, id int64) error
}

// ReferenceLookup answers whether a downstream document (invoice, expense
// advance) references an itinerary.
type ReferenceLookup interface {
	ExistsForItinerary(ctx context.Context, tenantID string, itineraryID int64) (bool, error)
}

// ScheduleInput carries the operational details added when an itinerary is
// created from a quotation.
type ScheduleInput struct {
	DriverName string
	VehicleID  int64
	StartDate  time.Time
	EndDate    time.Time
}

// ManualInput creates an itinerary without a quotation, for trips agreed
// outside the quoting flow. The price freezes at the current rate.
type ManualInput struct {
	ClientCode  string
	LeaderName  string
	Trip        quotations.TripDetails
	DriverName  string
	VehicleID   int64
	AgreedPrice float64
	Currency    string
	StartDate   time.Time
	EndDate     time.Time
}

// Service implements the itinerary operations.
type Service struct {
	repo       Repository
	quotations quotations.Repository
	rates      fx.RateSource
	downstream []ReferenceLookup
	logger     *slog.Logger
	now        func() time.Time
}

// NewService constructs a Service. downstream lists the document stores that
// may hold references blocking deletion.
func NewService(repo Repository, quotationRepo quotations.Repository, rates fx.RateSource, downstream []ReferenceLookup, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		quotations: quotationRepo,
		rates:      rates,
		downstream: downstream,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *Service) validateDates(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return shared.Validationf("start and end dates required")
	}
	if end.Before(start) {
		return shared.Validationf("end date %s precedes start date %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return nil
}

// CreateFromQuotation converts an approved quotation into a scheduled
// itinerary, carrying the agreed price and snapshot over unchanged. At most
// one itinerary may exist per quotation.
func (s *Service) CreateFromQuotation(ctx context.Context, tenantID string, quotationID int64, in ScheduleInput) (*Itinerary, error) {
	if err := s.validateDates(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	q, err := s.quotations.Get(ctx, tenantID, quotationID)
	if err != nil {
		return nil, err
	}
	if q.Status != quotations.StatusApproved {
		return nil, shared.Statef("quotation %s is %s, only approved quotations convert", q.Number, q.Status)
	}

	if existing, err := s.repo.GetByQuotation(ctx, tenantID, quotationID); err == nil {
		return nil, shared.Conflictf("quotation %s already has itinerary %s", q.Number, existing.Number)
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	now := s.now()
	it := &Itinerary{
		TenantID:    tenantID,
		QuotationID: &quotationID,
		ClientCode:  q.ClientCode,
		LeaderName:  q.LeaderName,
		Trip:        q.Trip,
		DriverName:  in.DriverName,
		VehicleID:   in.VehicleID,
		AgreedPrice: q.SalePrice,
		Currency:    q.Currency,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Status:      StatusScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, it); err != nil {
		return nil, err
	}
	s.logger.Info("itinerary created from quotation",
		slog.String("tenant", tenantID),
		slog.String("number", it.Number),
		slog.String("quotation", q.Number),
	)
	return it, nil
}

// CreateManual schedules an itinerary that has no quotation behind it. The
// currency snapshot freezes at the current rate.
func (s *Service) CreateManual(ctx context.Context, tenantID string, in ManualInput) (*Itinerary, error) {
	if err := s.validateDates(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}
	if in.AgreedPrice <= 0 {
		return nil, shared.Validationf("agreed price must be positive, got %g", in.AgreedPrice)
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

	it := &Itinerary{
		TenantID:    tenantID,
		ClientCode:  in.ClientCode,
		LeaderName:  in.LeaderName,
		Trip:        in.Trip,
		DriverName:  in.DriverName,
		VehicleID:   in.VehicleID,
		AgreedPrice: snap.PairFromLocal(in.AgreedPrice),
		Currency:    snap,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Status:      StatusScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, it); err != nil {
		return nil, err
	}
	s.logger.Info("itinerary created manually",
		slog.String("tenant", tenantID),
		slog.String("number", it.Number),
	)
	return it, nil
}

// Get returns a tenant's itinerary by id.
func (s *Service) Get(ctx context.Context, tenantID string, id int64) (*Itinerary, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// List returns a tenant's itineraries, optionally filtered by status.
func (s *Service) List(ctx context.Context, tenantID string, status Status) ([]Itinerary, error) {
	return s.repo.List(ctx, tenantID, status)
}

func (s *Service) transition(ctx context.Context, tenantID string, id int64, next Status, stamp func(*Itinerary, time.Time)) (*Itinerary, error) {
	it, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !it.Status.CanTransition(next) {
		return nil, shared.Statef("itinerary %s cannot move %s -> %s", it.Number, it.Status, next)
	}
	now := s.now()
	it.Status = next
	it.UpdatedAt = now
	if stamp != nil {
		stamp(it, now)
	}
	if err := s.repo.Update(ctx, it); err != nil {
		return nil, err
	}
	s.logger.Info("itinerary transitioned",
		slog.String("tenant", tenantID),
		slog.String("number", it.Number),
		slog.String("status", string(next)),
	)
	return it, nil
}

// Start marks the trip as departed.
func (s *Service) Start(ctx context.Context, tenantID string, id int64) (*Itinerary, error) {
	return s.transition(ctx, tenantID, id, StatusInProgress, func(it *Itinerary, now time.Time) { it.StartedAt = &now })
}

// Complete marks the trip as finished, making it invoiceable.
func (s *Service) Complete(ctx context.Context, tenantID string, id int64) (*Itinerary, error) {
	return s.transition(ctx, tenantID, id, StatusCompleted, func(it *Itinerary, now time.Time) { it.CompletedAt = &now })
}

// Cancel aborts a trip before or during execution.
func (s *Service) Cancel(ctx context.Context, tenantID string, id int64) (*Itinerary, error) {
	return s.transition(ctx, tenantID, id, StatusCancelled, func(it *Itinerary, now time.Time) { it.CancelledAt = &now })
}

// Delete removes an itinerary. Blocked once any invoice or expense advance
// references it, and for trips past the scheduled state (cancel those
// instead, the record is the audit trail).
func (s *Service) Delete(ctx context.Context, tenantID string, id int64) error {
	it, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if it.Status != StatusScheduled && it.Status != StatusCancelled {
		return shared.Statef("itinerary %s is %s and cannot be deleted", it.Number, it.Status)
	}
	for _, lookup := range s.downstream {
		referenced, err := lookup.ExistsForItinerary(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if referenced {
			return shared.Statef("itinerary %s has downstream documents and cannot be deleted", it.Number)
		}
	}
	return s.repo.Delete(ctx, tenantID, id)
}
