// Package costing computes trip cost breakdowns from trip parameters and
// vehicle specifications. All amounts are in local currency; USD pairs are
// derived by the caller from the document's frozen snapshot.
package costing

import (
	"math"

	"github.com/rumbo-tms/rumbo-tms/internal/shared"
)

// LitersPerGallon is the normalization constant for fuel units.
const LitersPerGallon = 3.78541

// OperatingDayMinutes is the length of one operating day used to derive trip
// day counts from route duration.
const OperatingDayMinutes = 8 * 60

// FuelUnit identifies the volume unit a quantity or price is expressed in.
type FuelUnit string

const (
	UnitGallon FuelUnit = "gallon"
	UnitLiter  FuelUnit = "liter"
)

// EfficiencyUnit identifies the distance-per-volume unit of a vehicle rating.
type EfficiencyUnit string

const (
	KmPerGallon EfficiencyUnit = "km_per_gallon"
	KmPerLiter  EfficiencyUnit = "km_per_liter"
)

// VehicleSpec carries the vehicle parameters the engine needs.
type VehicleSpec struct {
	FuelEfficiency float64
	EfficiencyUnit EfficiencyUnit
	TankCapacity   float64
	TankUnit       FuelUnit
	CostPerKm      float64
	CostPerDay     float64
}

// EfficiencyKmPerGallon normalizes the efficiency rating to km per gallon.
func (v VehicleSpec) EfficiencyKmPerGallon() float64 {
	if v.EfficiencyUnit == KmPerLiter {
		return v.FuelEfficiency * LitersPerGallon
	}
	return v.FuelEfficiency
}

// TankGallons normalizes the tank capacity to gallons.
func (v VehicleSpec) TankGallons() float64 {
	if v.TankUnit == UnitLiter {
		return v.TankCapacity / LitersPerGallon
	}
	return v.TankCapacity
}

// RangeKm is the one-tank driving range. Zero when either the tank or the
// efficiency rating is missing, which disables the refueling schedule.
func (v VehicleSpec) RangeKm() float64 {
	return v.TankGallons() * v.EfficiencyKmPerGallon()
}

// FuelPrice is a pump price in local currency per volume unit.
type FuelPrice struct {
	Amount float64
	Unit   FuelUnit
}

// PerGallon normalizes the price to local currency per gallon.
func (p FuelPrice) PerGallon() float64 {
	if p.Unit == UnitLiter {
		return p.Amount * LitersPerGallon
	}
	return p.Amount
}

// PerDiem carries the driver expense parameters.
type PerDiem struct {
	MealCostPerDay   float64
	HotelCostPerNight float64
	IncentivePerDay  float64
}

// Inclusions are the cost groups the quotation includes. Vehicle cost is
// always charged regardless of flags.
type Inclusions struct {
	Fuel      bool
	Meals     bool
	Tolls     bool
	Incentive bool
}

// TripParams are the route inputs consumed from the maps collaborator plus
// operator-supplied trip shape.
type TripParams struct {
	DistanceKm       float64
	TotalTimeMinutes float64
	Days             int // 0 derives from TotalTimeMinutes
	GroupSize        int
	Origin           string
	Destination      string
}

// Breakdown is the itemized cost result. Each component is local currency.
type Breakdown struct {
	FuelCost            float64 `json:"fuel_cost"`
	RefuelingCost       float64 `json:"refueling_cost"`
	DriverMealsCost     float64 `json:"driver_meals_cost"`
	DriverLodgingCost   float64 `json:"driver_lodging_cost"`
	DriverIncentiveCost float64 `json:"driver_incentive_cost"`
	VehicleDistanceCost float64 `json:"vehicle_distance_cost"`
	VehicleDailyCost    float64 `json:"vehicle_daily_cost"`
	TollCost            float64 `json:"toll_cost"`
	Days                int     `json:"days"`
	Total               float64 `json:"total"`
}

// TollEstimator estimates toll fees for a route. The default implementation
// matches location names against known toll points; it is an interface so it
// can later be swapped for route-geometry analysis.
type TollEstimator interface {
	Estimate(origin, destination string) float64
}

// Engine computes cost breakdowns.
type Engine struct {
	tolls TollEstimator
}

// NewEngine constructs an Engine.
func NewEngine(tolls TollEstimator) *Engine {
	return &Engine{tolls: tolls}
}

// DeriveDays converts route duration into trip days using 8-hour operating days.
func DeriveDays(totalTimeMinutes float64) int {
	if totalTimeMinutes <= 0 {
		return 1
	}
	return int(math.Ceil(totalTimeMinutes / OperatingDayMinutes))
}

// Calculate produces the itemized cost breakdown for a trip.
func (e *Engine) Calculate(trip TripParams, vehicle VehicleSpec, price FuelPrice, perDiem PerDiem, inc Inclusions) (Breakdown, error) {
	if trip.DistanceKm <= 0 {
		return Breakdown{}, shared.Validationf("trip distance must be positive, got %g", trip.DistanceKm)
	}

	days := trip.Days
	if days <= 0 {
		days = DeriveDays(trip.TotalTimeMinutes)
	}

	b := Breakdown{Days: days}

	pricePerGallon := price.PerGallon()
	efficiency := vehicle.EfficiencyKmPerGallon()
	if efficiency > 0 {
		b.FuelCost = trip.DistanceKm / efficiency * pricePerGallon
	}

	// Additional full-tank stops beyond the departure tank. A vehicle without
	// a usable range has no refueling schedule.
	if rangeKm := vehicle.RangeKm(); rangeKm > 0 && rangeKm < trip.DistanceKm {
		stops := math.Floor(trip.DistanceKm/rangeKm) - 1
		if stops > 0 {
			b.RefuelingCost = stops * vehicle.TankGallons() * pricePerGallon
		}
	}

	b.DriverMealsCost = float64(days) * perDiem.MealCostPerDay
	nights := days - 1
	if nights < 0 {
		nights = 0
	}
	b.DriverLodgingCost = float64(nights) * perDiem.HotelCostPerNight
	if inc.Incentive {
		b.DriverIncentiveCost = float64(days) * perDiem.IncentivePerDay
	}

	b.VehicleDistanceCost = trip.DistanceKm * vehicle.CostPerKm
	b.VehicleDailyCost = float64(days) * vehicle.CostPerDay

	if inc.Tolls && e.tolls != nil {
		b.TollCost = e.tolls.Estimate(trip.Origin, trip.Destination)
	}

	// Vehicle operating cost is never waived.
	total := b.VehicleDistanceCost + b.VehicleDailyCost
	if inc.Fuel {
		total += b.FuelCost + b.RefuelingCost
	}
	if inc.Meals {
		total += b.DriverMealsCost + b.DriverLodgingCost + b.DriverIncentiveCost
	}
	if inc.Tolls {
		total += b.TollCost
	}
	b.Total = total

	return b, nil
}
