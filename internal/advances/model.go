// Package advances implements driver expense advances: cash handed to the
// driver before a trip, reconciled against actual expenses afterwards.
package advances

import (
	"time"

	"github.com/rumbo-tms/rumbo-tms/internal/fx"
)

// Status is the advance lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDisbursed Status = "disbursed"
	StatusSettled   Status = "settled"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusDraft:     {StatusPending, StatusCancelled},
	StatusPending:   {StatusApproved, StatusCancelled},
	StatusApproved:  {StatusDisbursed, StatusCancelled},
	StatusDisbursed: {StatusSettled, StatusCancelled},
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

// Active reports whether the advance still occupies its itinerary's single
// active slot.
func (s Status) Active() bool {
	return s != StatusSettled && s != StatusCancelled
}

// Deletable reports whether the advance may be removed outright. Once money
// moves the record stays.
func (s Status) Deletable() bool {
	return s == StatusDraft || s == StatusPending || s == StatusCancelled
}

// Advance is an expense advance against an itinerary. The amount and
// snapshot freeze at creation; settlement adds actuals and the balance.
type Advance struct {
	ID             int64       `json:"id"`
	TenantID       string      `json:"tenant_id"`
	Number         string      `json:"number"`
	ItineraryID    int64       `json:"itinerary_id"`
	DriverName     string      `json:"driver_name"`
	Purpose        string      `json:"purpose,omitempty"`
	Amount         fx.Pair     `json:"amount"`
	Currency       fx.Snapshot `json:"currency"`
	Status         Status      `json:"status"`
	ActualExpenses *fx.Pair    `json:"actual_expenses,omitempty"`
	// BalanceAmount is advance minus actuals: positive means the driver
	// returns money, negative means the company owes the driver.
	BalanceAmount  fx.Pair    `json:"balance_amount"`
	BalanceSettled bool       `json:"balance_settled"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
	DisbursedAt    *time.Time `json:"disbursed_at,omitempty"`
	SettledAt      *time.Time `json:"settled_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
