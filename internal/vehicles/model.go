// Package vehicles holds the vehicle master data consumed by costing and
// expense-advance suggestion.
package vehicles

import (
	"time"

	"github.com/rumbo-tms/rumbo-tms/internal/costing"
)

// Vehicle is a fleet unit.
type Vehicle struct {
	ID             int64                   `json:"id"`
	TenantID       string                  `json:"tenant_id"`
	Name           string                  `json:"name"`
	Plate          string                  `json:"plate"`
	Capacity       int                     `json:"capacity"`
	FuelEfficiency float64                 `json:"fuel_efficiency"`
	EfficiencyUnit costing.EfficiencyUnit  `json:"efficiency_unit"`
	TankCapacity   float64                 `json:"tank_capacity"`
	TankUnit       costing.FuelUnit        `json:"tank_unit"`
	CostPerKm      float64                 `json:"cost_per_km"`
	CostPerDay     float64                 `json:"cost_per_day"`
	Active         bool                    `json:"active"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

// Spec converts the master-data row into the costing engine's input shape.
func (v Vehicle) Spec() costing.VehicleSpec {
	return costing.VehicleSpec{
		FuelEfficiency: v.FuelEfficiency,
		EfficiencyUnit: v.EfficiencyUnit,
		TankCapacity:   v.TankCapacity,
		TankUnit:       v.TankUnit,
		CostPerKm:      v.CostPerKm,
		CostPerDay:     v.CostPerDay,
	}
}
