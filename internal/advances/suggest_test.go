package advances

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rumbo-tms/rumbo-tms/internal/costing"
	"github.com/rumbo-tms/rumbo-tms/internal/fx"
	"github.com/rumbo-tms/rumbo-tms/internal/quotations"
)

func frozenQuotation(distanceKm float64) *quotations.Quotation {
	snap := fx.Snapshot{Currency: "HNL", Rate: 25}
	return &quotations.Quotation{
		Trip: quotations.TripDetails{TotalDistanceKm: distanceKm, EstimatedDays: 2},
		Costs: quotations.CostSnapshot{
			Fuel:          snap.PairFromLocal(10000),
			Refueling:     snap.PairFromLocal(2000),
			DriverMeals:   snap.PairFromLocal(900),
			DriverLodging: snap.PairFromLocal(1200),
			Tolls:         snap.PairFromLocal(300),
		},
		Currency: snap,
	}
}

func TestSuggestOnlyFuelBeyondSafeRange(t *testing.T) {
	// 100 gal tank at 25 km/gal: safe range 100 * 0.85 * 25 = 2125 km.
	vehicle := costing.VehicleSpec{
		FuelEfficiency: 25,
		EfficiencyUnit: costing.KmPerGallon,
		TankCapacity:   100,
		TankUnit:       costing.UnitGallon,
	}
	s := Suggest(frozenQuotation(2500), vehicle)

	assert.InDelta(t, 2125, s.SafeRangeKm, 1e-9)
	assert.InDelta(t, 375, s.ExtraKm, 1e-9)
	// 375/2500 of the frozen 10000 fuel cost.
	assert.InDelta(t, 1500, s.Fuel.Local, 1e-9)
	assert.InDelta(t, 1500/25.0, s.Fuel.USD, 1e-9)
	assert.InDelta(t, 1500+900+1200+300, s.Total.Local, 1e-9)
	assert.True(t, s.FuelAdvanceNeeded)
	assert.Equal(t, 2, s.Days)
	assert.Equal(t, 1, s.Nights)
}

func TestSuggestNoFuelWithinSafeRange(t *testing.T) {
	vehicle := costing.VehicleSpec{
		FuelEfficiency: 25,
		EfficiencyUnit: costing.KmPerGallon,
		TankCapacity:   100,
		TankUnit:       costing.UnitGallon,
	}
	s := Suggest(frozenQuotation(1800), vehicle)

	assert.Zero(t, s.ExtraKm)
	assert.Zero(t, s.Fuel.Local)
	assert.False(t, s.FuelAdvanceNeeded)
	assert.InDelta(t, 900+1200+300, s.Total.Local, 1e-9)
}

func TestSuggestFallsBackToFullFuelWithoutRange(t *testing.T) {
	s := Suggest(frozenQuotation(2500), costing.VehicleSpec{})

	assert.Zero(t, s.SafeRangeKm)
	// Fuel plus refueling, as frozen.
	assert.InDelta(t, 12000, s.Fuel.Local, 1e-9)
	assert.True(t, s.FuelAdvanceNeeded)
	assert.InDelta(t, 12000+900+1200+300, s.Total.Local, 1e-9)
}

func TestSuggestNormalizesLiterRatings(t *testing.T) {
	// 378.541 L tank is 100 gal; 6.604 km/L is ~25 km/gal.
	vehicle := costing.VehicleSpec{
		FuelEfficiency: 25 / costing.LitersPerGallon,
		EfficiencyUnit: costing.KmPerLiter,
		TankCapacity:   100 * costing.LitersPerGallon,
		TankUnit:       costing.UnitLiter,
	}
	s := Suggest(frozenQuotation(2500), vehicle)
	assert.InDelta(t, 2125, s.SafeRangeKm, 1e-6)
}
