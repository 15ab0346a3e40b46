package advances

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rumbo-tms/rumbo-tms/internal/fx"
	"github.com/rumbo-tms/rumbo-tms/internal/numbering"
	"github.com/rumbo-tms/rumbo-tms/internal/platform/db"
	"github.com/rumbo-tms/rumbo-tms/internal/shared"
)

// PGRepository is the PostgreSQL implementation of Repository. It also
// satisfies itineraries.ReferenceLookup for the itinerary deletion guard.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const advanceColumns = `id, tenant_id, number, itinerary_id, driver_name, purpose,
	amount, amount_usd, currency, status, actual_expenses, actual_expenses_usd,
	balance_amount, balance_amount_usd, balance_settled,
	submitted_at, approved_at, disbursed_at, settled_at, cancelled_at, created_at, updated_at`

func scanAdvance(row pgx.Row) (*Advance, error) {
	var (
		a                      Advance
		currency               []byte
		actualLocal, actualUSD *float64
	)
	err := row.Scan(
		&a.ID, &a.TenantID, &a.Number, &a.ItineraryID, &a.DriverName, &a.Purpose,
		&a.Amount.Local, &a.Amount.USD, &currency, &a.Status, &actualLocal, &actualUSD,
		&a.BalanceAmount.Local, &a.BalanceAmount.USD, &a.BalanceSettled,
		&a.SubmittedAt, &a.ApprovedAt, &a.DisbursedAt, &a.SettledAt, &a.CancelledAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(currency, &a.Currency); err != nil {
		return nil, fmt.Errorf("advances: decode currency: %w", err)
	}
	if actualLocal != nil && actualUSD != nil {
		a.ActualExpenses = &fx.Pair{Local: *actualLocal, USD: *actualUSD}
	}
	return &a, nil
}

func (r *PGRepository) Create(ctx context.Context, a *Advance) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		lockKey := shared.SequenceLockKey(a.TenantID, string(numbering.DocAdvance))
		if err := db.AdvisoryLock(ctx, tx, lockKey); err != nil {
			return err
		}

		number, _, err := numbering.Next(ctx, numbering.TxSource{Tx: tx, Table: "expense_advances"}, a.TenantID, numbering.DocAdvance, a.CreatedAt)
		if err != nil {
			return err
		}
		a.Number = number

		currency, err := json.Marshal(a.Currency)
		if err != nil {
			return err
		}

		const query = `
			INSERT INTO expense_advances (tenant_id, number, itinerary_id, driver_name, purpose,
				amount, amount_usd, currency, status, balance_amount, balance_amount_usd,
				balance_settled, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			RETURNING id`
		err = tx.QueryRow(ctx, query,
			a.TenantID, a.Number, a.ItineraryID, a.DriverName, a.Purpose,
			a.Amount.Local, a.Amount.USD, currency, a.Status,
			a.BalanceAmount.Local, a.BalanceAmount.USD, a.BalanceSettled, a.CreatedAt, a.UpdatedAt,
		).Scan(&a.ID)
		if err != nil {
			return fmt.Errorf("advances: insert: %w", err)
		}
		return nil
	})
}

func (r *PGRepository) Get(ctx context.Context, tenantID string, id int64) (*Advance, error) {
	query := fmt.Sprintf("SELECT %s FROM expense_advances WHERE tenant_id = $1 AND id = $2", advanceColumns)
	a, err := scanAdvance(r.pool.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundf("advance %d", id)
		}
		return nil, fmt.Errorf("advances: get: %w", err)
	}
	return a, nil
}

func (r *PGRepository) List(ctx context.Context, tenantID string, status Status) ([]Advance, error) {
	query := fmt.Sprintf("SELECT %s FROM expense_advances WHERE tenant_id = $1", advanceColumns)
	args := []any{tenantID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("advances: list: %w", err)
	}
	defer rows.Close()

	var out []Advance
	for rows.Next() {
		a, err := scanAdvance(rows)
		if err != nil {
			return nil, fmt.Errorf("advances: scan: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *PGRepository) Update(ctx context.Context, a *Advance) error {
	var actualLocal, actualUSD *float64
	if a.ActualExpenses != nil {
		actualLocal, actualUSD = &a.ActualExpenses.Local, &a.ActualExpenses.USD
	}
	const query = `
		UPDATE expense_advances
		SET status = $3, actual_expenses = $4, actual_expenses_usd = $5,
			balance_amount = $6, balance_amount_usd = $7, balance_settled = $8,
			submitted_at = $9, approved_at = $10, disbursed_at = $11, settled_at = $12,
			cancelled_at = $13, updated_at = $14
		WHERE tenant_id = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, query,
		a.TenantID, a.ID, a.Status, actualLocal, actualUSD,
		a.BalanceAmount.Local, a.BalanceAmount.USD, a.BalanceSettled,
		a.SubmittedAt, a.ApprovedAt, a.DisbursedAt, a.SettledAt, a.CancelledAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("advances: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("advance %d", a.ID)
	}
	return nil
}

func (r *PGRepository) Delete(ctx context.Context, tenantID string, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM expense_advances WHERE tenant_id = $1 AND id = $2", tenantID, id)
	if err != nil {
		return fmt.Errorf("advances: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("advance %d", id)
	}
	return nil
}

// ActiveExistsForItinerary reports whether a non-terminal advance holds the
// itinerary's active slot.
func (r *PGRepository) ActiveExistsForItinerary(ctx context.Context, tenantID string, itineraryID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM expense_advances WHERE tenant_id = $1 AND itinerary_id = $2 AND status NOT IN ('settled', 'cancelled'))",
		tenantID, itineraryID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("advances: active exists: %w", err)
	}
	return exists, nil
}

// ExistsForItinerary reports whether any advance references the itinerary.
func (r *PGRepository) ExistsForItinerary(ctx context.Context, tenantID string, itineraryID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM expense_advances WHERE tenant_id = $1 AND itinerary_id = $2)",
		tenantID, itineraryID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("advances: exists: %w", err)
	}
	return exists, nil
}
