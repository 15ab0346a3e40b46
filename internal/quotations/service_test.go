package quotations

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumbo-tms/rumbo-tms/internal/billing"
	"github.com/rumbo-tms/rumbo-tms/internal/costing"
	"github.com/rumbo-tms/rumbo-tms/internal/fx"
	"github.com/rumbo-tms/rumbo-tms/internal/numbering"
	"github.com/rumbo-tms/rumbo-tms/internal/shared"
	"github.com/rumbo-tms/rumbo-tms/internal/vehicles"
)

type memRepo struct {
	seq   int64
	items map[int64]*Quotation
}

func newMemRepo() *memRepo {
	return &memRepo{items: make(map[int64]*Quotation)}
}

func (m *memRepo) Create(_ context.Context, q *Quotation) error {
	var existing []string
	for _, it := range m.items {
		if it.TenantID == q.TenantID {
			existing = append(existing, it.Number)
		}
	}
	seq := numbering.NextSequence(existing, numbering.DocQuotation)
	q.Number = numbering.ShortCode(numbering.DocQuotation, q.CreatedAt, seq)
	m.seq++
	q.ID = m.seq
	cp := *q
	m.items[q.ID] = &cp
	return nil
}

func (m *memRepo) Get(_ context.Context, tenantID string, id int64) (*Quotation, error) {
	q, ok := m.items[id]
	if !ok || q.TenantID != tenantID {
		return nil, shared.NotFoundf("quotation %d", id)
	}
	cp := *q
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, tenantID string, filter ListFilter) ([]Quotation, error) {
	var out []Quotation
	for _, q := range m.items {
		if q.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && q.Status != filter.Status {
			continue
		}
		if !filter.CreatedBefore.IsZero() && !q.CreatedAt.Before(filter.CreatedBefore) {
			continue
		}
		out = append(out, *q)
	}
	return out, nil
}

func (m *memRepo) Update(_ context.Context, q *Quotation) error {
	if _, ok := m.items[q.ID]; !ok {
		return shared.NotFoundf("quotation %d", q.ID)
	}
	cp := *q
	m.items[q.ID] = &cp
	return nil
}

func (m *memRepo) Delete(_ context.Context, tenantID string, id int64) error {
	q, ok := m.items[id]
	if !ok || q.TenantID != tenantID {
		return shared.NotFoundf("quotation %d", id)
	}
	delete(m.items, id)
	return nil
}

type stubVehicles struct{ vehicle vehicles.Vehicle }

func (s stubVehicles) Get(_ context.Context, _ string, id int64) (*vehicles.Vehicle, error) {
	if id != s.vehicle.ID {
		return nil, shared.NotFoundf("vehicle %d", id)
	}
	cp := s.vehicle
	return &cp, nil
}

func (s stubVehicles) List(_ context.Context, _ string) ([]vehicles.Vehicle, error) {
	return []vehicles.Vehicle{s.vehicle}, nil
}

type stubRates struct{ rate float64 }

func (s stubRates) Rate(_ context.Context, currency string) (fx.Quote, error) {
	if s.rate <= 0 {
		return fx.Quote{}, &fx.MissingRateError{Currency: currency}
	}
	return fx.Quote{Currency: currency, Rate: s.rate, FetchedAt: time.Now()}, nil
}

type stubItineraries struct{ exists bool }

func (s stubItineraries) ExistsForQuotation(context.Context, string, int64) (bool, error) {
	return s.exists, nil
}

type denyGuard struct{}

func (denyGuard) CanCreateQuotation(context.Context, string) error {
	return shared.Limitf("quotation limit 5 reached")
}
func (denyGuard) CanAddUser(context.Context, string) error { return nil }

const testTenant = "t-hotr"

func testVehicle() vehicles.Vehicle {
	return vehicles.Vehicle{
		ID:             7,
		TenantID:       testTenant,
		Name:           "Coaster 30",
		Capacity:       30,
		FuelEfficiency: 10,
		EfficiencyUnit: costing.KmPerGallon,
		TankCapacity:   40,
		TankUnit:       costing.UnitGallon,
		CostPerKm:      2,
		CostPerDay:     500,
		Active:         true,
	}
}

func testInput() CreateInput {
	return CreateInput{
		ClientCode: "HOTR",
		LeaderName: "Carlos Pérez",
		Currency:   "HNL",
		VehicleID:  7,
		Trip: costing.TripParams{
			DistanceKm:       250,
			TotalTimeMinutes: 300,
			GroupSize:        8,
			Origin:           "Tegucigalpa",
			Destination:      "La Ceiba",
		},
		FuelPrice:     costing.FuelPrice{Amount: 100, Unit: costing.UnitGallon},
		PerDiem:       costing.PerDiem{MealCostPerDay: 300, HotelCostPerNight: 600, IncentivePerDay: 200},
		Include:       costing.Inclusions{Fuel: true, Meals: true, Incentive: true},
		MarkupPercent: 20,
	}
}

func newTestService(repo Repository, guard billing.PlanGuard, lookup ItineraryLookup) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := costing.NewEngine(costing.NewSubstringTollEstimator(nil))
	return NewService(repo, stubVehicles{vehicle: testVehicle()}, stubRates{rate: 25}, guard, engine, lookup, logger, 0, "HNL")
}

func TestCreateFreezesCostsAndRate(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, billing.AllowAll{}, stubItineraries{})

	q, err := svc.Create(context.Background(), testTenant, testInput())
	require.NoError(t, err)

	assert.Equal(t, StatusDraft, q.Status)
	assert.Equal(t, "HNL", q.Currency.Currency)
	assert.Equal(t, 25.0, q.Currency.Rate)

	// 250km / 10km-gal * 100 = 2500 fuel, 1 day: meals 300, incentive 200,
	// vehicle 250*2 + 500 = 1000.
	assert.InDelta(t, 2500, q.Costs.Fuel.Local, 1e-9)
	assert.InDelta(t, 300, q.Costs.DriverMeals.Local, 1e-9)
	assert.InDelta(t, 200, q.Costs.DriverIncentive.Local, 1e-9)
	assert.InDelta(t, 4000, q.Costs.Total.Local, 1e-9)
	assert.InDelta(t, 4000*1.2, q.SalePrice.Local, 1e-9)
	assert.InDelta(t, 4800/25.0, q.SalePrice.USD, 1e-9)
	assert.InDelta(t, 4000/25.0, q.Costs.Total.USD, 1e-9)
}

func TestCreateDefaultsCurrencyWhenOmitted(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, billing.AllowAll{}, stubItineraries{})

	in := testInput()
	in.Currency = ""
	q, err := svc.Create(context.Background(), testTenant, in)
	require.NoError(t, err)
	assert.Equal(t, "HNL", q.Currency.Currency)
}

func TestCreateNumbersSequentially(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, billing.AllowAll{}, stubItineraries{})

	first, err := svc.Create(context.Background(), testTenant, testInput())
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), testTenant, testInput())
	require.NoError(t, err)

	require.True(t, strings.HasSuffix(first.Number, "C00001"), first.Number)
	require.True(t, strings.HasSuffix(second.Number, "C00002"), second.Number)
	assert.Contains(t, first.LongNumber(), "HOTR")
	assert.Contains(t, first.LongNumber(), "Carlos_Pérez")
	assert.Contains(t, first.LongNumber(), "_x_08")
}

func TestCreateDerivesRecommendedMarkup(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, billing.AllowAll{}, stubItineraries{})

	in := testInput()
	in.MarkupPercent = 0
	in.Trip.GroupSize = 3 // small group drives the higher band
	q, err := svc.Create(context.Background(), testTenant, in)
	require.NoError(t, err)
	assert.Equal(t, 25.0, q.MarkupPercent)
}

func TestCreateBlockedByPlanLimit(t *testing.T) {
	svc := newTestService(newMemRepo(), denyGuard{}, stubItineraries{})
	_, err := svc.Create(context.Background(), testTenant, testInput())
	require.ErrorIs(t, err, shared.ErrLimit)
}

func TestCreateRejectsMissingRate(t *testing.T) {
	repo := newMemRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := costing.NewEngine(nil)
	svc := NewService(repo, stubVehicles{vehicle: testVehicle()}, stubRates{rate: 0}, billing.AllowAll{}, engine, stubItineraries{}, logger, 0, "HNL")

	_, err := svc.Create(context.Background(), testTenant, testInput())
	var missing *fx.MissingRateError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "HNL", missing.Currency)
}

func TestTransitions(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, billing.AllowAll{}, stubItineraries{})
	ctx := context.Background()

	q, err := svc.Create(ctx, testTenant, testInput())
	require.NoError(t, err)

	q, err = svc.Send(ctx, testTenant, q.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, q.Status)
	require.NotNil(t, q.SentAt)

	q, err = svc.Approve(ctx, testTenant, q.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, q.Status)
	require.NotNil(t, q.ApprovedAt)

	// Approved is terminal.
	_, err = svc.Reject(ctx, testTenant, q.ID)
	require.ErrorIs(t, err, shared.ErrState)
}

func TestApproveDirectlyFromDraft(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, billing.AllowAll{}, stubItineraries{})
	ctx := context.Background()

	q, err := svc.Create(ctx, testTenant, testInput())
	require.NoError(t, err)
	q, err = svc.Approve(ctx, testTenant, q.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, q.Status)
}

func TestRejectRequiresSent(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, billing.AllowAll{}, stubItineraries{})
	ctx := context.Background()

	q, err := svc.Create(ctx, testTenant, testInput())
	require.NoError(t, err)
	_, err = svc.Reject(ctx, testTenant, q.ID)
	require.ErrorIs(t, err, shared.ErrState)
}

func TestRepriceOnlyDraft(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, billing.AllowAll{}, stubItineraries{})
	ctx := context.Background()

	q, err := svc.Create(ctx, testTenant, testInput())
	require.NoError(t, err)

	in := testInput()
	in.MarkupPercent = 30
	q, err = svc.Reprice(ctx, testTenant, q.ID, in)
	require.NoError(t, err)
	assert.Equal(t, 30.0, q.MarkupPercent)
	assert.InDelta(t, 4000*1.3, q.SalePrice.Local, 1e-9)

	_, err = svc.Send(ctx, testTenant, q.ID)
	require.NoError(t, err)
	_, err = svc.Reprice(ctx, testTenant, q.ID, in)
	require.ErrorIs(t, err, shared.ErrState)
}

func TestExpireStale(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, billing.AllowAll{}, stubItineraries{})
	ctx := context.Background()

	base := time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	q, err := svc.Create(ctx, testTenant, testInput())
	require.NoError(t, err)
	_, err = svc.Send(ctx, testTenant, q.ID)
	require.NoError(t, err)

	svc.now = func() time.Time { return base.Add(40 * 24 * time.Hour) }
	expired, err := svc.ExpireStale(ctx, testTenant, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	got, err := svc.Get(ctx, testTenant, q.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
}

func TestDeleteBlockedByItinerary(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, billing.AllowAll{}, stubItineraries{exists: true})
	ctx := context.Background()

	q, err := svc.Create(ctx, testTenant, testInput())
	require.NoError(t, err)
	err = svc.Delete(ctx, testTenant, q.ID)
	require.ErrorIs(t, err, shared.ErrState)
}

func TestDeleteDraft(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, billing.AllowAll{}, stubItineraries{})
	ctx := context.Background()

	q, err := svc.Create(ctx, testTenant, testInput())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, testTenant, q.ID))
	_, err = svc.Get(ctx, testTenant, q.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
