package advances

import (
	"context"
	"log/slog"
	"time"

	"github.com/rumbo-tms/rumbo-tms/internal/itineraries"
	"github.com/rumbo-tms/rumbo-tms/internal/quotations"
	"github.com/rumbo-tms/rumbo-tms/internal/shared"
	"github.com/rumbo-tms/rumbo-tms/internal/vehicles"
)

// Repository persists advances. Create allocates the document number and
// inserts within one transaction under the tenant/type sequence lock.
type Repository interface {
	Create(ctx context.Context, a *Advance) error
	Get(ctx context.Context, tenantID string, id int64) (*Advance, error)
	List(ctx context.Context, tenantID string, status Status) ([]Advance, error)
	Update(ctx context.Context, a *Advance) error
	Delete(ctx context.Context, tenantID string, id int64) error
	ActiveExistsForItinerary(ctx context.Context, tenantID string, itineraryID int64) (bool, error)
}

// ItinerarySource reads the itinerary an advance is issued against.
type ItinerarySource interface {
	Get(ctx context.Context, tenantID string, id int64) (*itineraries.Itinerary, error)
}

// QuotationSource reads the frozen quotation backing a suggestion.
type QuotationSource interface {
	Get(ctx context.Context, tenantID string, id int64) (*quotations.Quotation, error)
}

// CreateInput carries advance creation parameters.
type CreateInput struct {
	ItineraryID int64
	DriverName  string
	Purpose     string
	Amount      float64
}

// Service implements the expense advance operations.
type Service struct {
	repo        Repository
	itineraries ItinerarySource
	quotations  QuotationSource
	vehicles    vehicles.Repository
	logger      *slog.Logger
	now         func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, itinerarySource ItinerarySource, quotationSource QuotationSource, vehicleRepo vehicles.Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		itineraries: itinerarySource,
		quotations:  quotationSource,
		vehicles:    vehicleRepo,
		logger:      logger,
		now:         time.Now,
	}
}

// Create opens a draft advance against an itinerary that has not finished.
// The amount freezes at the itinerary's snapshot rate. One active advance
// per itinerary.
func (s *Service) Create(ctx context.Context, tenantID string, in CreateInput) (*Advance, error) {
	if in.Amount <= 0 {
		return nil, shared.Validationf("advance amount must be positive, got %g", in.Amount)
	}
	if in.DriverName == "" {
		return nil, shared.Validationf("driver name required")
	}

	it, err := s.itineraries.Get(ctx, tenantID, in.ItineraryID)
	if err != nil {
		return nil, err
	}
	if it.Status != itineraries.StatusScheduled && it.Status != itineraries.StatusInProgress {
		return nil, shared.Statef("itinerary %s is %s, advances apply to upcoming or running trips", it.Number, it.Status)
	}

	active, err := s.repo.ActiveExistsForItinerary(ctx, tenantID, in.ItineraryID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, shared.Conflictf("itinerary %s already has an active advance", it.Number)
	}

	now := s.now()
	a := &Advance{
		TenantID:    tenantID,
		ItineraryID: it.ID,
		DriverName:  in.DriverName,
		Purpose:     in.Purpose,
		Amount:      it.Currency.PairFromLocal(in.Amount),
		Currency:    it.Currency,
		Status:      StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("advance created",
		slog.String("tenant", tenantID),
		slog.String("number", a.Number),
		slog.String("itinerary", it.Number),
		slog.Float64("amount", a.Amount.Local),
	)
	return a, nil
}

// Suggest computes the recommended advance for a quoted itinerary from its
// frozen cost snapshot and the assigned vehicle's tank range.
func (s *Service) Suggest(ctx context.Context, tenantID string, itineraryID int64) (Suggestion, error) {
	it, err := s.itineraries.Get(ctx, tenantID, itineraryID)
	if err != nil {
		return Suggestion{}, err
	}
	if it.QuotationID == nil {
		return Suggestion{}, shared.Validationf("itinerary %s has no quotation to suggest from", it.Number)
	}
	q, err := s.quotations.Get(ctx, tenantID, *it.QuotationID)
	if err != nil {
		return Suggestion{}, err
	}

	vehicle, err := s.vehicles.Get(ctx, tenantID, it.VehicleID)
	if err != nil {
		return Suggestion{}, err
	}
	return Suggest(q, vehicle.Spec()), nil
}

// Get returns a tenant's advance by id.
func (s *Service) Get(ctx context.Context, tenantID string, id int64) (*Advance, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// List returns a tenant's advances, optionally filtered by status.
func (s *Service) List(ctx context.Context, tenantID string, status Status) ([]Advance, error) {
	return s.repo.List(ctx, tenantID, status)
}

func (s *Service) transition(ctx context.Context, tenantID string, id int64, next Status, stamp func(*Advance, time.Time)) (*Advance, error) {
	a, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !a.Status.CanTransition(next) {
		return nil, shared.Statef("advance %s cannot move %s -> %s", a.Number, a.Status, next)
	}
	now := s.now()
	a.Status = next
	a.UpdatedAt = now
	if stamp != nil {
		stamp(a, now)
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("advance transitioned",
		slog.String("tenant", tenantID),
		slog.String("number", a.Number),
		slog.String("status", string(next)),
	)
	return a, nil
}

// Submit sends the draft for approval.
func (s *Service) Submit(ctx context.Context, tenantID string, id int64) (*Advance, error) {
	return s.transition(ctx, tenantID, id, StatusPending, func(a *Advance, now time.Time) { a.SubmittedAt = &now })
}

// Approve authorizes the advance for disbursement.
func (s *Service) Approve(ctx context.Context, tenantID string, id int64) (*Advance, error) {
	return s.transition(ctx, tenantID, id, StatusApproved, func(a *Advance, now time.Time) { a.ApprovedAt = &now })
}

// Disburse records the cash handed to the driver.
func (s *Service) Disburse(ctx context.Context, tenantID string, id int64) (*Advance, error) {
	return s.transition(ctx, tenantID, id, StatusDisbursed, func(a *Advance, now time.Time) { a.DisbursedAt = &now })
}

// Settle records the driver's actual expenses and derives the balance:
// positive means the driver returns the difference, negative means the
// company reimburses the overrun.
func (s *Service) Settle(ctx context.Context, tenantID string, id int64, actualExpenses float64) (*Advance, error) {
	if actualExpenses < 0 {
		return nil, shared.Validationf("actual expenses cannot be negative, got %g", actualExpenses)
	}
	return s.transition(ctx, tenantID, id, StatusSettled, func(a *Advance, now time.Time) {
		actual := a.Currency.PairFromLocal(actualExpenses)
		a.ActualExpenses = &actual
		a.BalanceAmount = a.Currency.PairFromLocal(a.Amount.Local - actualExpenses)
		a.BalanceSettled = a.BalanceAmount.Local == 0
		a.SettledAt = &now
	})
}

// MarkBalanceSettled records that the settlement balance changed hands.
func (s *Service) MarkBalanceSettled(ctx context.Context, tenantID string, id int64) (*Advance, error) {
	a, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusSettled {
		return nil, shared.Statef("advance %s is %s, settle it first", a.Number, a.Status)
	}
	if a.BalanceSettled {
		return a, nil
	}
	a.BalanceSettled = true
	a.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Cancel aborts the advance from any non-terminal state.
func (s *Service) Cancel(ctx context.Context, tenantID string, id int64) (*Advance, error) {
	return s.transition(ctx, tenantID, id, StatusCancelled, func(a *Advance, now time.Time) { a.CancelledAt = &now })
}

// Delete removes an advance that never reached disbursement.
func (s *Service) Delete(ctx context.Context, tenantID string, id int64) error {
	a, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if !a.Status.Deletable() {
		return shared.Statef("advance %s is %s and cannot be deleted", a.Number, a.Status)
	}
	return s.repo.Delete(ctx, tenantID, id)
}
