package advances

import (
	"github.com/rumbo-tms/rumbo-tms/internal/costing"
	"github.com/rumbo-tms/rumbo-tms/internal/fx"
	"github.com/rumbo-tms/rumbo-tms/internal/quotations"
)

// SafeTankFraction is the share of tank capacity treated as usable when
// planning en-route refueling. The remainder is the reserve margin.
const SafeTankFraction = 0.85

// Suggestion is a recommended advance amount, itemized. Every component
// comes from the quotation's frozen cost snapshot; nothing is repriced.
type Suggestion struct {
	SafeRangeKm       float64 `json:"safe_range_km"`
	ExtraKm           float64 `json:"extra_km"`
	Days              int     `json:"days"`
	Nights            int     `json:"nights"`
	FuelAdvanceNeeded bool    `json:"fuel_advance_needed"`
	Fuel              fx.Pair `json:"fuel"`
	Meals             fx.Pair `json:"meals"`
	Lodging           fx.Pair `json:"lodging"`
	Tolls             fx.Pair `json:"tolls"`
	Total             fx.Pair `json:"total"`
}

// Suggest derives the advance the driver needs in cash for a quoted trip.
//
// The departure tank covers the first SafeTankFraction of the vehicle's
// range for free; only fuel beyond that range is advanced, prorated from the
// quotation's frozen fuel cost. A vehicle without usable range data falls
// back to advancing the full fuel cost. Meals, lodging and tolls are cash
// expenses en route and are advanced in full as frozen.
func Suggest(q *quotations.Quotation, vehicle costing.VehicleSpec) Suggestion {
	s := Suggestion{
		Days:    q.Trip.EstimatedDays,
		Meals:   q.Costs.DriverMeals,
		Lodging: q.Costs.DriverLodging,
		Tolls:   q.Costs.Tolls,
	}
	if s.Days > 1 {
		s.Nights = s.Days - 1
	}

	distance := q.Trip.TotalDistanceKm
	s.SafeRangeKm = vehicle.TankGallons() * SafeTankFraction * vehicle.EfficiencyKmPerGallon()

	switch {
	case s.SafeRangeKm <= 0:
		s.Fuel = addPairs(q.Costs.Fuel, q.Costs.Refueling)
	case s.SafeRangeKm >= distance:
		// The departure tank covers the whole route.
	default:
		s.ExtraKm = distance - s.SafeRangeKm
		if distance > 0 {
			fraction := s.ExtraKm / distance
			s.Fuel = fx.Pair{
				Local: q.Costs.Fuel.Local * fraction,
				USD:   q.Costs.Fuel.USD * fraction,
			}
		}
	}

	s.FuelAdvanceNeeded = s.Fuel.Local > 0
	s.Total = addPairs(addPairs(s.Fuel, s.Meals), addPairs(s.Lodging, s.Tolls))
	return s
}

func addPairs(a, b fx.Pair) fx.Pair {
	return fx.Pair{Local: a.Local + b.Local, USD: a.USD + b.USD}
}
