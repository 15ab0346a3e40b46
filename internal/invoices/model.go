// Package invoices implements invoicing and the payment ledger.
package invoices

import (
	"time"

	"github.com/rumbo-tms/rumbo-tms/internal/fx"
)

// Status is the invoice lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
	StatusVoid      Status = "void"
)

var transitions = map[Status][]Status{
	StatusDraft: {StatusSent, StatusCancelled},
	StatusSent:  {StatusPaid, StatusCancelled, StatusVoid},
	StatusPaid:  {StatusVoid},
}

// CanTransition reports whether moving from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentStatus is the ledger-derived collection state, tracked separately
// from the document lifecycle.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

// Payment is one ledger entry against an invoice.
type Payment struct {
	ID        int64     `json:"id"`
	InvoiceID int64     `json:"invoice_id"`
	Amount    fx.Pair   `json:"amount"`
	Method    string    `json:"method"`
	Reference string    `json:"reference,omitempty"`
	PaidAt    time.Time `json:"paid_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Invoice is a billing document raised against a completed itinerary. Its
// amounts and currency snapshot are frozen at creation.
type Invoice struct {
	ID            int64         `json:"id"`
	TenantID      string        `json:"tenant_id"`
	Number        string        `json:"number"`
	ItineraryID   int64         `json:"itinerary_id"`
	QuotationID   *int64        `json:"quotation_id,omitempty"`
	ClientCode    string        `json:"client_code"`
	LeaderName    string        `json:"leader_name"`
	Currency      fx.Snapshot   `json:"currency"`
	Subtotal      fx.Pair       `json:"subtotal"`
	Tax           fx.Pair       `json:"tax"`
	TaxPercent    float64       `json:"tax_percent"`
	Total         fx.Pair       `json:"total"`
	AmountPaid    fx.Pair       `json:"amount_paid"`
	AmountDue     fx.Pair       `json:"amount_due"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	DueDate       time.Time     `json:"due_date"`
	Status        Status        `json:"status"`
	SentAt        *time.Time    `json:"sent_at,omitempty"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	CancelledAt   *time.Time    `json:"cancelled_at,omitempty"`
	VoidedAt      *time.Time    `json:"voided_at,omitempty"`
	Payments      []Payment     `json:"payments,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// RecalculateLedger rederives amount paid, amount due and the payment status
// from the payments slice using the frozen snapshot rate. Amount due never
// goes negative.
func (inv *Invoice) RecalculateLedger() {
	var paid float64
	for _, p := range inv.Payments {
		paid += p.Amount.Local
	}
	due := inv.Total.Local - paid
	if due < 0 {
		due = 0
	}
	inv.AmountPaid = inv.Currency.PairFromLocal(paid)
	inv.AmountDue = inv.Currency.PairFromLocal(due)

	switch {
	case len(inv.Payments) == 0 || paid <= 0:
		inv.PaymentStatus = PaymentUnpaid
	case due > ledgerEpsilon:
		inv.PaymentStatus = PaymentPartial
	default:
		inv.PaymentStatus = PaymentPaid
	}
}

// ledgerEpsilon absorbs float residue when comparing against the total.
const ledgerEpsilon = 0.005

// Settled reports whether the ledger fully covers the total.
func (inv *Invoice) Settled() bool {
	return inv.AmountDue.Local <= ledgerEpsilon
}

// Overdue reports whether the invoice is sent, unsettled and past due.
func (inv *Invoice) Overdue(now time.Time) bool {
	return inv.Status == StatusSent && !inv.Settled() && !inv.DueDate.IsZero() && now.After(inv.DueDate)
}
