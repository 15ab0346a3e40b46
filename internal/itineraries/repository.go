package itineraries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rumbo-tms/rumbo-tms/internal/numbering"
	"github.com/rumbo-tms/rumbo-tms/internal/platform/db"
	"github.com/rumbo-tms/rumbo-tms/internal/shared"
)

// PGRepository is the PostgreSQL implementation of Repository. It also
// satisfies quotations.ItineraryLookup for the quotation deletion guard.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const itineraryColumns = `id, tenant_id, number, quotation_id, client_code, leader_name, trip,
	driver_name, vehicle_id, agreed_price, agreed_price_usd, currency, start_date, end_date,
	status, started_at, completed_at, cancelled_at, created_at, updated_at`

func scanItinerary(row pgx.Row) (*Itinerary, error) {
	var (
		it             Itinerary
		trip, currency []byte
	)
	err := row.Scan(
		&it.ID, &it.TenantID, &it.Number, &it.QuotationID, &it.ClientCode, &it.LeaderName, &trip,
		&it.DriverName, &it.VehicleID, &it.AgreedPrice.Local, &it.AgreedPrice.USD, &currency,
		&it.StartDate, &it.EndDate, &it.Status,
		&it.StartedAt, &it.CompletedAt, &it.CancelledAt, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(trip, &it.Trip); err != nil {
		return nil, fmt.Errorf("itineraries: decode trip: %w", err)
	}
	if err := json.Unmarshal(currency, &it.Currency); err != nil {
		return nil, fmt.Errorf("itineraries: decode currency: %w", err)
	}
	return &it, nil
}

func (r *PGRepository) Create(ctx context.Context, it *Itinerary) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		lockKey := shared.SequenceLockKey(it.TenantID, string(numbering.DocItinerary))
		if err := db.AdvisoryLock(ctx, tx, lockKey); err != nil {
			return err
		}

		number, _, err := numbering.Next(ctx, numbering.TxSource{Tx: tx, Table: "itineraries"}, it.TenantID, numbering.DocItinerary, it.CreatedAt)
		if err != nil {
			return err
		}
		it.Number = number

		trip, err := json.Marshal(it.Trip)
		if err != nil {
			return err
		}
		currency, err := json.Marshal(it.Currency)
		if err != nil {
			return err
		}

		const query = `
			INSERT INTO itineraries (tenant_id, number, quotation_id, client_code, leader_name, trip,
				driver_name, vehicle_id, agreed_price, agreed_price_usd, currency, start_date, end_date,
				status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			RETURNING id`
		err = tx.QueryRow(ctx, query,
			it.TenantID, it.Number, it.QuotationID, it.ClientCode, it.LeaderName, trip,
			it.DriverName, it.VehicleID, it.AgreedPrice.Local, it.AgreedPrice.USD, currency,
			it.StartDate, it.EndDate, it.Status, it.CreatedAt, it.UpdatedAt,
		).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("itineraries: insert: %w", err)
		}
		return nil
	})
}

func (r *PGRepository) Get(ctx context.Context, tenantID string, id int64) (*Itinerary, error) {
	query := fmt.Sprintf("SELECT %s FROM itineraries WHERE tenant_id = $1 AND id = $2", itineraryColumns)
	it, err := scanItinerary(r.pool.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundf("itinerary %d", id)
		}
		return nil, fmt.Errorf("itineraries: get: %w", err)
	}
	return it, nil
}

func (r *PGRepository) GetByQuotation(ctx context.Context, tenantID string, quotationID int64) (*Itinerary, error) {
	query := fmt.Sprintf("SELECT %s FROM itineraries WHERE tenant_id = $1 AND quotation_id = $2", itineraryColumns)
	it, err := scanItinerary(r.pool.QueryRow(ctx, query, tenantID, quotationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundf("itinerary for quotation %d", quotationID)
		}
		return nil, fmt.Errorf("itineraries: get by quotation: %w", err)
	}
	return it, nil
}

func (r *PGRepository) List(ctx context.Context, tenantID string, status Status) ([]Itinerary, error) {
	query := fmt.Sprintf("SELECT %s FROM itineraries WHERE tenant_id = $1", itineraryColumns)
	args := []any{tenantID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY start_date DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("itineraries: list: %w", err)
	}
	defer rows.Close()

	var out []Itinerary
	for rows.Next() {
		it, err := scanItinerary(rows)
		if err != nil {
			return nil, fmt.Errorf("itineraries: scan: %w", err)
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (r *PGRepository) Update(ctx context.Context, it *Itinerary) error {
	const query = `
		UPDATE itineraries
		SET driver_name = $3, vehicle_id = $4, start_date = $5, end_date = $6,
			status = $7, started_at = $8, completed_at = $9, cancelled_at = $10, updated_at = $11
		WHERE tenant_id = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, query,
		it.TenantID, it.ID, it.DriverName, it.VehicleID, it.StartDate, it.EndDate,
		it.Status, it.StartedAt, it.CompletedAt, it.CancelledAt, it.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("itineraries: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("itinerary %d", it.ID)
	}
	return nil
}

func (r *PGRepository) Delete(ctx context.Context, tenantID string, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM itineraries WHERE tenant_id = $1 AND id = $2", tenantID, id)
	if err != nil {
		return fmt.Errorf("itineraries: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("itinerary %d", id)
	}
	return nil
}

// ExistsForQuotation reports whether any itinerary references the quotation.
func (r *PGRepository) ExistsForQuotation(ctx context.Context, tenantID string, quotationID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM itineraries WHERE tenant_id = $1 AND quotation_id = $2)",
		tenantID, quotationID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("itineraries: exists for quotation: %w", err)
	}
	return exists, nil
}
