// Package itineraries implements the operational trip document created from
// an approved quotation or scheduled directly.
package itineraries

import (
	"time"

	"github.com/rumbo-tms/rumbo-tms/internal/fx"
	"github.com/rumbo-tms/rumbo-tms/internal/quotations"
)

// Status is the itinerary lifecycle state.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusScheduled:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
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

// Invoiceable reports whether an invoice may be raised against this state.
func (s Status) Invoiceable() bool {
	return s == StatusCompleted
}

// Itinerary is a scheduled trip. The agreed price and currency snapshot are
// copied verbatim from the source quotation and never recomputed.
type Itinerary struct {
	ID          int64                  `json:"id"`
	TenantID    string                 `json:"tenant_id"`
	Number      string                 `json:"number"`
	QuotationID *int64                 `json:"quotation_id,omitempty"`
	ClientCode  string                 `json:"client_code"`
	LeaderName  string                 `json:"leader_name"`
	Trip        quotations.TripDetails `json:"trip"`
	DriverName  string                 `json:"driver_name"`
	VehicleID   int64                  `json:"vehicle_id"`
	AgreedPrice fx.Pair                `json:"agreed_price"`
	Currency    fx.Snapshot            `json:"currency"`
	StartDate   time.Time              `json:"start_date"`
	EndDate     time.Time              `json:"end_date"`
	Status      Status                 `json:"status"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	CancelledAt *time.Time             `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}
