package advances

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumbo-tms/rumbo-tms/internal/costing"
	"github.com/rumbo-tms/rumbo-tms/internal/fx"
	"github.com/rumbo-tms/rumbo-tms/internal/itineraries"
	"github.com/rumbo-tms/rumbo-tms/internal/numbering"
	"github.com/rumbo-tms/rumbo-tms/internal/quotations"
	"github.com/rumbo-tms/rumbo-tms/internal/shared"
	"github.com/rumbo-tms/rumbo-tms/internal/vehicles"
)

type memRepo struct {
	seq   int64
	items map[int64]*Advance
}

func newMemRepo() *memRepo {
	return &memRepo{items: make(map[int64]*Advance)}
}

func (m *memRepo) Create(_ context.Context, a *Advance) error {
	var existing []string
	for _, cur := range m.items {
		if cur.TenantID == a.TenantID {
			existing = append(existing, cur.Number)
		}
	}
	seq := numbering.NextSequence(existing, numbering.DocAdvance)
	a.Number = numbering.ShortCode(numbering.DocAdvance, a.CreatedAt, seq)
	m.seq++
	a.ID = m.seq
	cp := *a
	m.items[a.ID] = &cp
	return nil
}

func (m *memRepo) Get(_ context.Context, tenantID string, id int64) (*Advance, error) {
	a, ok := m.items[id]
	if !ok || a.TenantID != tenantID {
		return nil, shared.NotFoundf("advance %d", id)
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, tenantID string, status Status) ([]Advance, error) {
	var out []Advance
	for _, a := range m.items {
		if a.TenantID != tenantID {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (m *memRepo) Update(_ context.Context, a *Advance) error {
	if _, ok := m.items[a.ID]; !ok {
		return shared.NotFoundf("advance %d", a.ID)
	}
	cp := *a
	m.items[a.ID] = &cp
	return nil
}

func (m *memRepo) Delete(_ context.Context, tenantID string, id int64) error {
	a, ok := m.items[id]
	if !ok || a.TenantID != tenantID {
		return shared.NotFoundf("advance %d", id)
	}
	delete(m.items, id)
	return nil
}

func (m *memRepo) ActiveExistsForItinerary(_ context.Context, tenantID string, itineraryID int64) (bool, error) {
	for _, a := range m.items {
		if a.TenantID == tenantID && a.ItineraryID == itineraryID && a.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

type stubItineraries struct{ itinerary *itineraries.Itinerary }

func (s stubItineraries) Get(_ context.Context, tenantID string, id int64) (*itineraries.Itinerary, error) {
	if s.itinerary == nil || s.itinerary.ID != id || s.itinerary.TenantID != tenantID {
		return nil, shared.NotFoundf("itinerary %d", id)
	}
	cp := *s.itinerary
	return &cp, nil
}

type stubQuotations struct{ quotation *quotations.Quotation }

func (s stubQuotations) Get(_ context.Context, tenantID string, id int64) (*quotations.Quotation, error) {
	if s.quotation == nil || s.quotation.ID != id || s.quotation.TenantID != tenantID {
		return nil, shared.NotFoundf("quotation %d", id)
	}
	cp := *s.quotation
	return &cp, nil
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

const testTenant = "t-hotr"

func scheduledItinerary() *itineraries.Itinerary {
	quotationID := int64(42)
	snap := fx.Snapshot{Currency: "HNL", Rate: 25, CapturedAt: time.Date(2025, 12, 3, 10, 0, 0, 0, time.UTC)}
	return &itineraries.Itinerary{
		ID:          9,
		TenantID:    testTenant,
		Number:      "2512-T00003",
		QuotationID: &quotationID,
		ClientCode:  "HOTR",
		VehicleID:   7,
		AgreedPrice: snap.PairFromLocal(5340),
		Currency:    snap,
		Status:      itineraries.StatusScheduled,
	}
}

func newTestService(repo Repository, it *itineraries.Itinerary) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	snap := fx.Snapshot{Currency: "HNL", Rate: 25}
	q := &quotations.Quotation{
		ID:       42,
		TenantID: testTenant,
		Trip:     quotations.TripDetails{TotalDistanceKm: 2500},
		Costs: quotations.CostSnapshot{
			Fuel:        snap.PairFromLocal(10000),
			DriverMeals: snap.PairFromLocal(900),
			Tolls:       snap.PairFromLocal(300),
		},
		Currency: snap,
		Status:   quotations.StatusApproved,
	}
	vehicle := vehicles.Vehicle{
		ID:             7,
		TenantID:       testTenant,
		FuelEfficiency: 25,
		EfficiencyUnit: costing.KmPerGallon,
		TankCapacity:   100,
		TankUnit:       costing.UnitGallon,
	}
	return NewService(repo, stubItineraries{itinerary: it}, stubQuotations{quotation: q}, stubVehicles{vehicle: vehicle}, logger)
}

func TestCreateFreezesAtItineraryRate(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, scheduledItinerary())

	a, err := svc.Create(context.Background(), testTenant, CreateInput{
		ItineraryID: 9,
		DriverName:  "Marvin Castro",
		Amount:      2500,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusDraft, a.Status)
	assert.True(t, strings.HasSuffix(a.Number, "A00001"), a.Number)
	assert.InDelta(t, 2500, a.Amount.Local, 1e-9)
	assert.InDelta(t, 100, a.Amount.USD, 1e-9)
	assert.Equal(t, 25.0, a.Currency.Rate)
}

func TestCreateRequiresUpcomingTrip(t *testing.T) {
	it := scheduledItinerary()
	it.Status = itineraries.StatusCompleted
	svc := newTestService(newMemRepo(), it)

	_, err := svc.Create(context.Background(), testTenant, CreateInput{ItineraryID: 9, DriverName: "Marvin", Amount: 1000})
	require.ErrorIs(t, err, shared.ErrState)
}

func TestCreateOneActivePerItinerary(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, scheduledItinerary())
	ctx := context.Background()

	_, err := svc.Create(ctx, testTenant, CreateInput{ItineraryID: 9, DriverName: "Marvin", Amount: 1000})
	require.NoError(t, err)
	_, err = svc.Create(ctx, testTenant, CreateInput{ItineraryID: 9, DriverName: "Marvin", Amount: 500})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCancelledAdvanceFreesSlot(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, scheduledItinerary())
	ctx := context.Background()

	a, err := svc.Create(ctx, testTenant, CreateInput{ItineraryID: 9, DriverName: "Marvin", Amount: 1000})
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, testTenant, a.ID)
	require.NoError(t, err)

	_, err = svc.Create(ctx, testTenant, CreateInput{ItineraryID: 9, DriverName: "Marvin", Amount: 800})
	require.NoError(t, err)
}

func TestSettledAdvanceFreesSlot(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, scheduledItinerary())
	ctx := context.Background()

	a, err := svc.Create(ctx, testTenant, CreateInput{ItineraryID: 9, DriverName: "Marvin", Amount: 1000})
	require.NoError(t, err)
	a, err = svc.Submit(ctx, testTenant, a.ID)
	require.NoError(t, err)
	a, err = svc.Approve(ctx, testTenant, a.ID)
	require.NoError(t, err)
	a, err = svc.Disburse(ctx, testTenant, a.ID)
	require.NoError(t, err)
	_, err = svc.Settle(ctx, testTenant, a.ID, 1000)
	require.NoError(t, err)

	// Nothing outstanding once settled; a follow-up advance may open.
	_, err = svc.Create(ctx, testTenant, CreateInput{ItineraryID: 9, DriverName: "Marvin", Amount: 500})
	require.NoError(t, err)
}

func TestLifecycleAndSettlement(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, scheduledItinerary())
	ctx := context.Background()

	a, err := svc.Create(ctx, testTenant, CreateInput{ItineraryID: 9, DriverName: "Marvin", Amount: 2500})
	require.NoError(t, err)

	a, err = svc.Submit(ctx, testTenant, a.ID)
	require.NoError(t, err)
	a, err = svc.Approve(ctx, testTenant, a.ID)
	require.NoError(t, err)
	a, err = svc.Disburse(ctx, testTenant, a.ID)
	require.NoError(t, err)
	require.NotNil(t, a.DisbursedAt)

	// Driver spent less than advanced: positive balance comes back.
	a, err = svc.Settle(ctx, testTenant, a.ID, 2100)
	require.NoError(t, err)
	assert.Equal(t, StatusSettled, a.Status)
	require.NotNil(t, a.ActualExpenses)
	assert.InDelta(t, 2100, a.ActualExpenses.Local, 1e-9)
	assert.InDelta(t, 400, a.BalanceAmount.Local, 1e-9)
	assert.InDelta(t, 16, a.BalanceAmount.USD, 1e-9)
	assert.False(t, a.BalanceSettled)

	a, err = svc.MarkBalanceSettled(ctx, testTenant, a.ID)
	require.NoError(t, err)
	assert.True(t, a.BalanceSettled)
}

func TestSettleOverrunYieldsNegativeBalance(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, scheduledItinerary())
	ctx := context.Background()

	a, err := svc.Create(ctx, testTenant, CreateInput{ItineraryID: 9, DriverName: "Marvin", Amount: 2000})
	require.NoError(t, err)
	for _, step := range []func(context.Context, string, int64) (*Advance, error){svc.Submit, svc.Approve, svc.Disburse} {
		a, err = step(ctx, testTenant, a.ID)
		require.NoError(t, err)
	}

	a, err = svc.Settle(ctx, testTenant, a.ID, 2350)
	require.NoError(t, err)
	assert.InDelta(t, -350, a.BalanceAmount.Local, 1e-9)
}

func TestSettleRequiresDisbursed(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, scheduledItinerary())
	ctx := context.Background()

	a, err := svc.Create(ctx, testTenant, CreateInput{ItineraryID: 9, DriverName: "Marvin", Amount: 1000})
	require.NoError(t, err)
	_, err = svc.Settle(ctx, testTenant, a.ID, 900)
	require.ErrorIs(t, err, shared.ErrState)
}

func TestDeleteBlockedAfterDisbursement(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, scheduledItinerary())
	ctx := context.Background()

	a, err := svc.Create(ctx, testTenant, CreateInput{ItineraryID: 9, DriverName: "Marvin", Amount: 1000})
	require.NoError(t, err)
	for _, step := range []func(context.Context, string, int64) (*Advance, error){svc.Submit, svc.Approve, svc.Disburse} {
		a, err = step(ctx, testTenant, a.ID)
		require.NoError(t, err)
	}
	err = svc.Delete(ctx, testTenant, a.ID)
	require.ErrorIs(t, err, shared.ErrState)
}

func TestDeleteDraft(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, scheduledItinerary())
	ctx := context.Background()

	a, err := svc.Create(ctx, testTenant, CreateInput{ItineraryID: 9, DriverName: "Marvin", Amount: 1000})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, testTenant, a.ID))
}

func TestServiceSuggestUsesAssignedVehicle(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, scheduledItinerary())

	s, err := svc.Suggest(context.Background(), testTenant, 9)
	require.NoError(t, err)
	assert.InDelta(t, 2125, s.SafeRangeKm, 1e-9)
	assert.InDelta(t, 1500, s.Fuel.Local, 1e-9)
	assert.InDelta(t, 1500+900+300, s.Total.Local, 1e-9)
}

func TestServiceSuggestRequiresQuotation(t *testing.T) {
	it := scheduledItinerary()
	it.QuotationID = nil
	svc := newTestService(newMemRepo(), it)

	_, err := svc.Suggest(context.Background(), testTenant, 9)
	require.ErrorIs(t, err, shared.ErrValidation)
}
