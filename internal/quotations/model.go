// Package quotations implements the quotation document and its lifecycle.
package quotations

import (
	"time"

	"github.com/rumbo-tms/rumbo-tms/internal/costing"
	"github.com/rumbo-tms/rumbo-tms/internal/fx"
)

// Status is the quotation lifecycle state.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// transitions is the legal transition table. Approved, rejected and expired
// are terminal.
var transitions = map[Status][]Status{
	StatusDraft: {StatusSent, StatusApproved},
	StatusSent:  {StatusApproved, StatusRejected, StatusExpired},
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

// IsTerminal reports whether no transition leaves this state.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// TripDetails are the route parameters the quotation was priced against.
type TripDetails struct {
	Origin          string  `json:"origin"`
	Destination     string  `json:"destination"`
	BaseLocation    string  `json:"base_location"`
	GroupSize       int     `json:"group_size"`
	TotalDistanceKm float64 `json:"total_distance_km"`
	TotalTimeMin    float64 `json:"total_time_min"`
	ExtraMileageKm  float64 `json:"extra_mileage_km"`
	EstimatedDays   int     `json:"estimated_days"`
}

// CostSnapshot is the itemized cost breakdown frozen at creation, each
// component carried in local currency and USD.
type CostSnapshot struct {
	Fuel            fx.Pair `json:"fuel"`
	Refueling       fx.Pair `json:"refueling"`
	DriverMeals     fx.Pair `json:"driver_meals"`
	DriverLodging   fx.Pair `json:"driver_lodging"`
	DriverIncentive fx.Pair `json:"driver_incentive"`
	VehicleDistance fx.Pair `json:"vehicle_distance"`
	VehicleDaily    fx.Pair `json:"vehicle_daily"`
	Tolls           fx.Pair `json:"tolls"`
	Total           fx.Pair `json:"total"`
}

// CostSnapshotFrom freezes a costing breakdown using the snapshot rate.
func CostSnapshotFrom(b costing.Breakdown, snap fx.Snapshot) CostSnapshot {
	return CostSnapshot{
		Fuel:            snap.PairFromLocal(b.FuelCost),
		Refueling:       snap.PairFromLocal(b.RefuelingCost),
		DriverMeals:     snap.PairFromLocal(b.DriverMealsCost),
		DriverLodging:   snap.PairFromLocal(b.DriverLodgingCost),
		DriverIncentive: snap.PairFromLocal(b.DriverIncentiveCost),
		VehicleDistance: snap.PairFromLocal(b.VehicleDistanceCost),
		VehicleDaily:    snap.PairFromLocal(b.VehicleDailyCost),
		Tolls:           snap.PairFromLocal(b.TollCost),
		Total:           snap.PairFromLocal(b.Total),
	}
}

// Quotation is a priced trip offer. Monetary fields are frozen at creation
// and only change through explicit update operations.
type Quotation struct {
	ID            int64              `json:"id"`
	TenantID      string             `json:"tenant_id"`
	Number        string             `json:"number"`
	ClientCode    string             `json:"client_code"`
	LeaderName    string             `json:"leader_name"`
	Trip          TripDetails        `json:"trip"`
	Costs         CostSnapshot       `json:"costs"`
	Currency      fx.Snapshot        `json:"currency"`
	MarkupPercent float64            `json:"markup_percent"`
	SalePrice     fx.Pair            `json:"sale_price"`
	Include       costing.Inclusions `json:"include"`
	Status        Status             `json:"status"`
	SentAt        *time.Time         `json:"sent_at,omitempty"`
	ApprovedAt    *time.Time         `json:"approved_at,omitempty"`
	RejectedAt    *time.Time         `json:"rejected_at,omitempty"`
	ExpiredAt     *time.Time         `json:"expired_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}
