package invoices

import (
	"context"
	"log/slog"
	"time"

	"github.com/rumbo-tms/rumbo-tms/internal/itineraries"
	"github.com/rumbo-tms/rumbo-tms/internal/notify"
	"github.com/rumbo-tms/rumbo-tms/internal/shared"
)

// DefaultTaxPercent is the sales-tax (ISV) rate applied when the caller
// leaves the rate unset.
const DefaultTaxPercent = 15

// DefaultDueDays is the payment term applied when sending without an
// explicit due date.
const DefaultDueDays = 30

// Repository persists invoices and their payment ledgers. Create allocates
// the document number and inserts within one transaction under the
// tenant/type sequence lock. AddPayment and RemovePayment persist the ledger
// entry together with the recalculated invoice columns atomically.
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, tenantID string, id int64) (*Invoice, error)
	List(ctx context.Context, tenantID string, status Status) ([]Invoice, error)
	ListOverdue(ctx context.Context, tenantID string, asOf time.Time) ([]Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	AddPayment(ctx context.Context, inv *Invoice, p *Payment) error
	RemovePayment(ctx context.Context, inv *Invoice, paymentID int64) error
	Delete(ctx context.Context, tenantID string, id int64) error
	ActiveExistsForItinerary(ctx context.Context, tenantID string, itineraryID int64) (bool, error)
}

// ItinerarySource reads the itinerary an invoice is raised against.
type ItinerarySource interface {
	Get(ctx context.Context, tenantID string, id int64) (*itineraries.Itinerary, error)
}

// CreateInput carries invoice creation parameters.
type CreateInput struct {
	ItineraryID int64
	TaxPercent  float64 // 0 applies the service default
	DueDate     time.Time
}

// PaymentInput carries one ledger entry.
type PaymentInput struct {
	Amount    float64
	Method    string
	Reference string
	PaidAt    time.Time
}

// Service implements the invoice operations.
type Service struct {
	repo        Repository
	itineraries ItinerarySource
	notifier    notify.Notifier
	reminders   notify.ReminderStore
	logger      *slog.Logger
	taxPercent  float64
	now         func() time.Time
}

// NewService constructs a Service. taxPercent is the deployment's sales-tax
// rate for invoices created without an explicit one; zero or negative
// selects DefaultTaxPercent.
func NewService(repo Repository, itinerarySource ItinerarySource, notifier notify.Notifier, reminders notify.ReminderStore, logger *slog.Logger, taxPercent float64) *Service {
	if taxPercent <= 0 {
		taxPercent = DefaultTaxPercent
	}
	return &Service{
		repo:        repo,
		itineraries: itinerarySource,
		notifier:    notifier,
		reminders:   reminders,
		logger:      logger,
		taxPercent:  taxPercent,
		now:         time.Now,
	}
}

// Create raises a draft invoice against a completed itinerary. The agreed
// price becomes the subtotal; tax and total derive from it once and freeze.
// At most one non-void invoice may exist per itinerary.
func (s *Service) Create(ctx context.Context, tenantID string, in CreateInput) (*Invoice, error) {
	it, err := s.itineraries.Get(ctx, tenantID, in.ItineraryID)
	if err != nil {
		return nil, err
	}
	if !it.Status.Invoiceable() {
		return nil, shared.Statef("itinerary %s is %s, only completed trips are invoiceable", it.Number, it.Status)
	}

	active, err := s.repo.ActiveExistsForItinerary(ctx, tenantID, in.ItineraryID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, shared.Conflictf("itinerary %s already has an active invoice", it.Number)
	}

	taxPercent := in.TaxPercent
	if taxPercent <= 0 {
		taxPercent = s.taxPercent
	}

	now := s.now()
	subtotal := it.AgreedPrice.Local
	tax := subtotal * taxPercent / 100
	inv := &Invoice{
		TenantID:      tenantID,
		ItineraryID:   it.ID,
		QuotationID:   it.QuotationID,
		ClientCode:    it.ClientCode,
		LeaderName:    it.LeaderName,
		Currency:      it.Currency,
		Subtotal:      it.Currency.PairFromLocal(subtotal),
		Tax:           it.Currency.PairFromLocal(tax),
		TaxPercent:    taxPercent,
		Total:         it.Currency.PairFromLocal(subtotal + tax),
		DueDate:       in.DueDate,
		Status:        StatusDraft,
		PaymentStatus: PaymentUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	inv.RecalculateLedger()

	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, err
	}
	s.logger.Info("invoice created",
		slog.String("tenant", tenantID),
		slog.String("number", inv.Number),
		slog.String("itinerary", it.Number),
		slog.Float64("total", inv.Total.Local),
	)
	return inv, nil
}

// Get returns a tenant's invoice with its payment ledger.
func (s *Service) Get(ctx context.Context, tenantID string, id int64) (*Invoice, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// List returns a tenant's invoices, optionally filtered by status.
func (s *Service) List(ctx context.Context, tenantID string, status Status) ([]Invoice, error) {
	return s.repo.List(ctx, tenantID, status)
}

// Send issues the invoice to the client and schedules the overdue reminder.
func (s *Service) Send(ctx context.Context, tenantID string, id int64) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !inv.Status.CanTransition(StatusSent) {
		return nil, shared.Statef("invoice %s cannot move %s -> %s", inv.Number, inv.Status, StatusSent)
	}
	now := s.now()
	inv.Status = StatusSent
	inv.SentAt = &now
	if inv.DueDate.IsZero() {
		inv.DueDate = now.AddDate(0, 0, DefaultDueDays)
	}
	inv.UpdatedAt = now
	if err := s.repo.Update(ctx, inv); err != nil {
		return nil, err
	}
	s.scheduleReminder(ctx, inv)
	return inv, nil
}

// Cancel abandons an invoice that has no money against it.
func (s *Service) Cancel(ctx context.Context, tenantID string, id int64) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !inv.Status.CanTransition(StatusCancelled) {
		return nil, shared.Statef("invoice %s cannot move %s -> %s", inv.Number, inv.Status, StatusCancelled)
	}
	if len(inv.Payments) > 0 {
		return nil, shared.Statef("invoice %s has recorded payments, void it instead", inv.Number)
	}
	now := s.now()
	inv.Status = StatusCancelled
	inv.CancelledAt = &now
	inv.UpdatedAt = now
	if err := s.repo.Update(ctx, inv); err != nil {
		return nil, err
	}
	s.cancelReminder(ctx, inv)
	return inv, nil
}

// Void annuls an issued or paid invoice while preserving its ledger for the
// audit trail. A voided invoice frees the itinerary for reinvoicing.
func (s *Service) Void(ctx context.Context, tenantID string, id int64) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !inv.Status.CanTransition(StatusVoid) {
		return nil, shared.Statef("invoice %s cannot move %s -> %s", inv.Number, inv.Status, StatusVoid)
	}
	now := s.now()
	inv.Status = StatusVoid
	inv.VoidedAt = &now
	inv.UpdatedAt = now
	if err := s.repo.Update(ctx, inv); err != nil {
		return nil, err
	}
	s.cancelReminder(ctx, inv)
	return inv, nil
}

// Delete removes an invoice. Only drafts may be deleted; everything issued
// is cancelled or voided instead.
func (s *Service) Delete(ctx context.Context, tenantID string, id int64) error {
	inv, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if inv.Status != StatusDraft {
		return shared.Statef("invoice %s is %s, only drafts can be deleted", inv.Number, inv.Status)
	}
	return s.repo.Delete(ctx, tenantID, id)
}

// RecordPayment appends a ledger entry. When the ledger reaches the total
// the invoice flips to paid, the overdue reminder is cancelled and a final
// notification goes out; partial payments notify without closing.
// Overpayment is tolerated: amount due floors at zero while amount paid
// keeps the true total received.
func (s *Service) RecordPayment(ctx context.Context, tenantID string, id int64, in PaymentInput) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusSent {
		return nil, shared.Statef("invoice %s is %s, payments apply to sent invoices", inv.Number, inv.Status)
	}
	if in.Amount <= 0 {
		return nil, shared.Validationf("payment amount must be positive, got %g", in.Amount)
	}

	now := s.now()
	paidAt := in.PaidAt
	if paidAt.IsZero() {
		paidAt = now
	}
	payment := &Payment{
		InvoiceID: inv.ID,
		Amount:    inv.Currency.PairFromLocal(in.Amount),
		Method:    in.Method,
		Reference: in.Reference,
		PaidAt:    paidAt,
		CreatedAt: now,
	}

	inv.Payments = append(inv.Payments, *payment)
	inv.RecalculateLedger()
	inv.UpdatedAt = now

	final := inv.Settled()
	if final {
		inv.Status = StatusPaid
		inv.PaidAt = &now
	}

	if err := s.repo.AddPayment(ctx, inv, payment); err != nil {
		return nil, err
	}
	// AddPayment fills the generated id.
	inv.Payments[len(inv.Payments)-1] = *payment

	if final {
		s.cancelReminder(ctx, inv)
	}
	s.notifyPayment(ctx, inv, payment.Amount.Local, final)

	s.logger.Info("payment recorded",
		slog.String("tenant", tenantID),
		slog.String("number", inv.Number),
		slog.Float64("amount", payment.Amount.Local),
		slog.String("payment_status", string(inv.PaymentStatus)),
	)
	return inv, nil
}

// DeletePayment removes a ledger entry and rederives the ledger. An invoice
// that was paid reopens as sent, never as draft, and its overdue reminder
// comes back.
func (s *Service) DeletePayment(ctx context.Context, tenantID string, id, paymentID int64) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusSent && inv.Status != StatusPaid {
		return nil, shared.Statef("invoice %s is %s, its ledger is closed", inv.Number, inv.Status)
	}

	idx := -1
	for i, p := range inv.Payments {
		if p.ID == paymentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, shared.NotFoundf("payment %d on invoice %s", paymentID, inv.Number)
	}

	now := s.now()
	inv.Payments = append(inv.Payments[:idx], inv.Payments[idx+1:]...)
	inv.RecalculateLedger()
	inv.UpdatedAt = now

	reopened := inv.Status == StatusPaid && !inv.Settled()
	if reopened {
		inv.Status = StatusSent
		inv.PaidAt = nil
	}

	if err := s.repo.RemovePayment(ctx, inv, paymentID); err != nil {
		return nil, err
	}
	if reopened {
		s.scheduleReminder(ctx, inv)
	}

	s.logger.Info("payment deleted",
		slog.String("tenant", tenantID),
		slog.String("number", inv.Number),
		slog.Int64("payment_id", paymentID),
		slog.String("payment_status", string(inv.PaymentStatus)),
	)
	return inv, nil
}

// SweepOverdue notifies every sent, unsettled, past-due invoice that still
// has a pending reminder. Driven by the background cron; returns the number
// of reminders fired.
func (s *Service) SweepOverdue(ctx context.Context, tenantID string) (int, error) {
	overdue, err := s.repo.ListOverdue(ctx, tenantID, s.now())
	if err != nil {
		return 0, err
	}
	fired := 0
	for i := range overdue {
		inv := &overdue[i]
		if s.reminders != nil {
			pending, err := s.reminders.Pending(ctx, tenantID, inv.ID)
			if err != nil || !pending {
				continue
			}
		}
		if err := s.notifier.Notify(ctx, notify.Event{
			Kind:           notify.KindInvoiceOverdue,
			TenantID:       tenantID,
			DocumentID:     inv.ID,
			DocumentNumber: inv.Number,
			Amount:         inv.AmountDue.Local,
			Currency:       inv.Currency.Currency,
		}); err != nil {
			s.logger.Warn("overdue notification failed",
				slog.String("number", inv.Number), slog.Any("error", err))
			continue
		}
		s.cancelReminder(ctx, inv)
		fired++
	}
	return fired, nil
}

func (s *Service) scheduleReminder(ctx context.Context, inv *Invoice) {
	if s.reminders == nil {
		return
	}
	if err := s.reminders.Schedule(ctx, inv.TenantID, inv.ID, inv.DueDate); err != nil {
		s.logger.Warn("reminder scheduling failed",
			slog.String("number", inv.Number), slog.Any("error", err))
	}
}

func (s *Service) cancelReminder(ctx context.Context, inv *Invoice) {
	if s.reminders == nil {
		return
	}
	if err := s.reminders.Cancel(ctx, inv.TenantID, inv.ID); err != nil {
		s.logger.Warn("reminder cancellation failed",
			slog.String("number", inv.Number), slog.Any("error", err))
	}
}

func (s *Service) notifyPayment(ctx context.Context, inv *Invoice, amount float64, final bool) {
	if s.notifier == nil {
		return
	}
	kind := notify.KindPaymentReceived
	if final {
		kind = notify.KindInvoicePaid
	}
	if err := s.notifier.Notify(ctx, notify.Event{
		Kind:           kind,
		TenantID:       inv.TenantID,
		DocumentID:     inv.ID,
		DocumentNumber: inv.Number,
		Amount:         amount,
		Currency:       inv.Currency.Currency,
		Final:          final,
	}); err != nil {
		s.logger.Warn("payment notification failed",
			slog.String("number", inv.Number), slog.Any("error", err))
	}
}
