package itineraries

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumbo-tms/rumbo-tms/internal/fx"
	"github.com/rumbo-tms/rumbo-tms/internal/numbering"
	"github.com/rumbo-tms/rumbo-tms/internal/quotations"
	"github.com/rumbo-tms/rumbo-tms/internal/shared"
)

type memRepo struct {
	seq   int64
	items map[int64]*Itinerary
}

func newMemRepo() *memRepo {
	return &memRepo{items: make(map[int64]*Itinerary)}
}

func (m *memRepo) Create(_ context.Context, it *Itinerary) error {
	var existing []string
	for _, cur := range m.items {
		if cur.TenantID == it.TenantID {
			existing = append(existing, cur.Number)
		}
	}
	seq := numbering.NextSequence(existing, numbering.DocItinerary)
	it.Number = numbering.ShortCode(numbering.DocItinerary, it.CreatedAt, seq)
	m.seq++
	it.ID = m.seq
	cp := *it
	m.items[it.ID] = &cp
	return nil
}

func (m *memRepo) Get(_ context.Context, tenantID string, id int64) (*Itinerary, error) {
	it, ok := m.items[id]
	if !ok || it.TenantID != tenantID {
		return nil, shared.NotFoundf("itinerary %d", id)
	}
	cp := *it
	return &cp, nil
}

func (m *memRepo) GetByQuotation(_ context.Context, tenantID string, quotationID int64) (*Itinerary, error) {
	for _, it := range m.items {
		if it.TenantID == tenantID && it.QuotationID != nil && *it.QuotationID == quotationID {
			cp := *it
			return &cp, nil
		}
	}
	return nil, shared.NotFoundf("itinerary for quotation %d", quotationID)
}

func (m *memRepo) List(_ context.Context, tenantID string, status Status) ([]Itinerary, error) {
	var out []Itinerary
	for _, it := range m.items {
		if it.TenantID != tenantID {
			continue
		}
		if status != "" && it.Status != status {
			continue
		}
		out = append(out, *it)
	}
	return out, nil
}

func (m *memRepo) Update(_ context.Context, it *Itinerary) error {
	if _, ok := m.items[it.ID]; !ok {
		return shared.NotFoundf("itinerary %d", it.ID)
	}
	cp := *it
	m.items[it.ID] = &cp
	return nil
}

func (m *memRepo) Delete(_ context.Context, tenantID string, id int64) error {
	it, ok := m.items[id]
	if !ok || it.TenantID != tenantID {
		return shared.NotFoundf("itinerary %d", id)
	}
	delete(m.items, id)
	return nil
}

type memQuotations struct {
	items map[int64]*quotations.Quotation
}

func (m *memQuotations) Create(_ context.Context, q *quotations.Quotation) error { return nil }

func (m *memQuotations) Get(_ context.Context, tenantID string, id int64) (*quotations.Quotation, error) {
	q, ok := m.items[id]
	if !ok || q.TenantID != tenantID {
		return nil, shared.NotFoundf("quotation %d", id)
	}
	cp := *q
	return &cp, nil
}

func (m *memQuotations) List(context.Context, string, quotations.ListFilter) ([]quotations.Quotation, error) {
	return nil, nil
}
func (m *memQuotations) Update(context.Context, *quotations.Quotation) error      { return nil }
func (m *memQuotations) Delete(context.Context, string, int64) error              { return nil }

type stubRates struct{ rate float64 }

func (s stubRates) Rate(_ context.Context, currency string) (fx.Quote, error) {
	return fx.Quote{Currency: currency, Rate: s.rate, FetchedAt: time.Now()}, nil
}

type stubLookup struct{ exists bool }

func (s stubLookup) ExistsForItinerary(context.Context, string, int64) (bool, error) {
	return s.exists, nil
}

const testTenant = "t-hotr"

func approvedQuotation() *quotations.Quotation {
	approved := time.Date(2025, 12, 3, 10, 0, 0, 0, time.UTC)
	snap := fx.Snapshot{Currency: "HNL", Rate: 25, CapturedAt: approved}
	return &quotations.Quotation{
		ID:         42,
		TenantID:   testTenant,
		Number:     "2512-C00007",
		ClientCode: "HOTR",
		LeaderName: "Carlos Pérez",
		Trip:       quotations.TripDetails{Origin: "Tegucigalpa", Destination: "La Ceiba", GroupSize: 8, TotalDistanceKm: 250},
		Currency:   snap,
		SalePrice:  snap.PairFromLocal(5340),
		Status:     quotations.StatusApproved,
		ApprovedAt: &approved,
	}
}

func schedule() ScheduleInput {
	return ScheduleInput{
		DriverName: "Marvin Castro",
		VehicleID:  7,
		StartDate:  time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2025, 12, 11, 0, 0, 0, 0, time.UTC),
	}
}

func newTestService(repo Repository, q *quotations.Quotation, lookups ...ReferenceLookup) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	quotes := &memQuotations{items: map[int64]*quotations.Quotation{}}
	if q != nil {
		quotes.items[q.ID] = q
	}
	return NewService(repo, quotes, stubRates{rate: 25}, lookups, logger)
}

func TestCreateFromQuotationCopiesFrozenPrice(t *testing.T) {
	repo := newMemRepo()
	q := approvedQuotation()
	svc := newTestService(repo, q)

	it, err := svc.CreateFromQuotation(context.Background(), testTenant, q.ID, schedule())
	require.NoError(t, err)

	assert.Equal(t, StatusScheduled, it.Status)
	require.NotNil(t, it.QuotationID)
	assert.Equal(t, q.ID, *it.QuotationID)
	assert.Equal(t, q.SalePrice, it.AgreedPrice)
	assert.Equal(t, q.Currency, it.Currency)
	assert.Equal(t, q.ClientCode, it.ClientCode)
	assert.True(t, strings.HasSuffix(it.Number, "T00001"), it.Number)
}

func TestCreateFromQuotationRequiresApproved(t *testing.T) {
	repo := newMemRepo()
	q := approvedQuotation()
	q.Status = quotations.StatusSent
	svc := newTestService(repo, q)

	_, err := svc.CreateFromQuotation(context.Background(), testTenant, q.ID, schedule())
	require.ErrorIs(t, err, shared.ErrState)
}

func TestCreateFromQuotationOnlyOnce(t *testing.T) {
	repo := newMemRepo()
	q := approvedQuotation()
	svc := newTestService(repo, q)
	ctx := context.Background()

	_, err := svc.CreateFromQuotation(ctx, testTenant, q.ID, schedule())
	require.NoError(t, err)
	_, err = svc.CreateFromQuotation(ctx, testTenant, q.ID, schedule())
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateFromQuotationRejectsInvertedDates(t *testing.T) {
	repo := newMemRepo()
	q := approvedQuotation()
	svc := newTestService(repo, q)

	in := schedule()
	in.StartDate, in.EndDate = in.EndDate, in.StartDate
	_, err := svc.CreateFromQuotation(context.Background(), testTenant, q.ID, in)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateManualFreezesCurrentRate(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)

	it, err := svc.CreateManual(context.Background(), testTenant, ManualInput{
		ClientCode:  "HOTR",
		Trip:        quotations.TripDetails{Origin: "Tegucigalpa", Destination: "Copán", GroupSize: 12},
		DriverName:  "Marvin Castro",
		AgreedPrice: 9000,
		Currency:    "HNL",
		StartDate:   time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2025, 12, 21, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Nil(t, it.QuotationID)
	assert.Equal(t, 25.0, it.Currency.Rate)
	assert.InDelta(t, 9000, it.AgreedPrice.Local, 1e-9)
	assert.InDelta(t, 360, it.AgreedPrice.USD, 1e-9)
}

func TestLifecycle(t *testing.T) {
	repo := newMemRepo()
	q := approvedQuotation()
	svc := newTestService(repo, q)
	ctx := context.Background()

	it, err := svc.CreateFromQuotation(ctx, testTenant, q.ID, schedule())
	require.NoError(t, err)
	assert.False(t, it.Status.Invoiceable())

	it, err = svc.Start(ctx, testTenant, it.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, it.Status)

	it, err = svc.Complete(ctx, testTenant, it.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, it.Status)
	assert.True(t, it.Status.Invoiceable())
	require.NotNil(t, it.CompletedAt)

	// Completed is terminal.
	_, err = svc.Cancel(ctx, testTenant, it.ID)
	require.ErrorIs(t, err, shared.ErrState)
}

func TestCompleteRequiresInProgress(t *testing.T) {
	repo := newMemRepo()
	q := approvedQuotation()
	svc := newTestService(repo, q)
	ctx := context.Background()

	it, err := svc.CreateFromQuotation(ctx, testTenant, q.ID, schedule())
	require.NoError(t, err)
	_, err = svc.Complete(ctx, testTenant, it.ID)
	require.ErrorIs(t, err, shared.ErrState)
}

func TestDeleteBlockedByDownstream(t *testing.T) {
	repo := newMemRepo()
	q := approvedQuotation()
	svc := newTestService(repo, q, stubLookup{exists: true})
	ctx := context.Background()

	it, err := svc.CreateFromQuotation(ctx, testTenant, q.ID, schedule())
	require.NoError(t, err)
	err = svc.Delete(ctx, testTenant, it.ID)
	require.ErrorIs(t, err, shared.ErrState)
}

func TestDeleteBlockedInProgress(t *testing.T) {
	repo := newMemRepo()
	q := approvedQuotation()
	svc := newTestService(repo, q)
	ctx := context.Background()

	it, err := svc.CreateFromQuotation(ctx, testTenant, q.ID, schedule())
	require.NoError(t, err)
	_, err = svc.Start(ctx, testTenant, it.ID)
	require.NoError(t, err)
	err = svc.Delete(ctx, testTenant, it.ID)
	require.ErrorIs(t, err, shared.ErrState)
}

func TestDeleteScheduled(t *testing.T) {
	repo := newMemRepo()
	q := approvedQuotation()
	svc := newTestService(repo, q)
	ctx := context.Background()

	it, err := svc.CreateFromQuotation(ctx, testTenant, q.ID, schedule())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, testTenant, it.ID))
	_, err = svc.Get(ctx, testTenant, it.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
