package invoices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

const invoiceColumns = `id, tenant_id, number, itinerary_id, quotation_id, client_code, leader_name,
	currency, subtotal, subtotal_usd, tax, tax_usd, tax_percent, total, total_usd,
	amount_paid, amount_paid_usd, amount_due, amount_due_usd, payment_status, due_date,
	status, sent_at, paid_at, cancelled_at, voided_at, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var (
		inv      Invoice
		currency []byte
	)
	err := row.Scan(
		&inv.ID, &inv.TenantID, &inv.Number, &inv.ItineraryID, &inv.QuotationID, &inv.ClientCode, &inv.LeaderName,
		&currency, &inv.Subtotal.Local, &inv.Subtotal.USD, &inv.Tax.Local, &inv.Tax.USD, &inv.TaxPercent,
		&inv.Total.Local, &inv.Total.USD,
		&inv.AmountPaid.Local, &inv.AmountPaid.USD, &inv.AmountDue.Local, &inv.AmountDue.USD,
		&inv.PaymentStatus, &inv.DueDate,
		&inv.Status, &inv.SentAt, &inv.PaidAt, &inv.CancelledAt, &inv.VoidedAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(currency, &inv.Currency); err != nil {
		return nil, fmt.Errorf("invoices: decode currency: %w", err)
	}
	return &inv, nil
}

func (r *PGRepository) Create(ctx context.Context, inv *Invoice) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		lockKey := shared.SequenceLockKey(inv.TenantID, string(numbering.DocInvoice))
		if err := db.AdvisoryLock(ctx, tx, lockKey); err != nil {
			return err
		}

		number, _, err := numbering.Next(ctx, numbering.TxSource{Tx: tx, Table: "invoices"}, inv.TenantID, numbering.DocInvoice, inv.CreatedAt)
		if err != nil {
			return err
		}
		inv.Number = number

		currency, err := json.Marshal(inv.Currency)
		if err != nil {
			return err
		}

		const query = `
			INSERT INTO invoices (tenant_id, number, itinerary_id, quotation_id, client_code, leader_name,
				currency, subtotal, subtotal_usd, tax, tax_usd, tax_percent, total, total_usd,
				amount_paid, amount_paid_usd, amount_due, amount_due_usd, payment_status, due_date,
				status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
				$15, $16, $17, $18, $19, $20, $21, $22, $23)
			RETURNING id`
		err = tx.QueryRow(ctx, query,
			inv.TenantID, inv.Number, inv.ItineraryID, inv.QuotationID, inv.ClientCode, inv.LeaderName,
			currency, inv.Subtotal.Local, inv.Subtotal.USD, inv.Tax.Local, inv.Tax.USD, inv.TaxPercent,
			inv.Total.Local, inv.Total.USD,
			inv.AmountPaid.Local, inv.AmountPaid.USD, inv.AmountDue.Local, inv.AmountDue.USD,
			inv.PaymentStatus, inv.DueDate, inv.Status, inv.CreatedAt, inv.UpdatedAt,
		).Scan(&inv.ID)
		if err != nil {
			return fmt.Errorf("invoices: insert: %w", err)
		}
		return nil
	})
}

func (r *PGRepository) loadPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	const query = `
		SELECT id, invoice_id, amount, amount_usd, method, reference, paid_at, created_at
		FROM invoice_payments WHERE invoice_id = $1 ORDER BY paid_at, id`
	rows, err := r.pool.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoices: list payments: %w", err)
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount.Local, &p.Amount.USD, &p.Method, &p.Reference, &p.PaidAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("invoices: scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PGRepository) Get(ctx context.Context, tenantID string, id int64) (*Invoice, error) {
	query := fmt.Sprintf("SELECT %s FROM invoices WHERE tenant_id = $1 AND id = $2", invoiceColumns)
	inv, err := scanInvoice(r.pool.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundf("invoice %d", id)
		}
		return nil, fmt.Errorf("invoices: get: %w", err)
	}
	if inv.Payments, err = r.loadPayments(ctx, inv.ID); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *PGRepository) List(ctx context.Context, tenantID string, status Status) ([]Invoice, error) {
	query := fmt.Sprintf("SELECT %s FROM invoices WHERE tenant_id = $1", invoiceColumns)
	args := []any{tenantID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"
	return r.queryInvoices(ctx, query, args...)
}

func (r *PGRepository) ListOverdue(ctx context.Context, tenantID string, asOf time.Time) ([]Invoice, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoices
		WHERE tenant_id = $1 AND status = 'sent' AND amount_due > 0 AND due_date < $2`, invoiceColumns)
	return r.queryInvoices(ctx, query, tenantID, asOf)
}

func (r *PGRepository) queryInvoices(ctx context.Context, query string, args ...any) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("invoices: list: %w", err)
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("invoices: scan: %w", err)
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

const invoiceUpdate = `
	UPDATE invoices
	SET amount_paid = $3, amount_paid_usd = $4, amount_due = $5, amount_due_usd = $6,
		payment_status = $7, due_date = $8, status = $9,
		sent_at = $10, paid_at = $11, cancelled_at = $12, voided_at = $13, updated_at = $14
	WHERE tenant_id = $1 AND id = $2`

func invoiceUpdateArgs(inv *Invoice) []any {
	return []any{
		inv.TenantID, inv.ID,
		inv.AmountPaid.Local, inv.AmountPaid.USD, inv.AmountDue.Local, inv.AmountDue.USD,
		inv.PaymentStatus, inv.DueDate, inv.Status,
		inv.SentAt, inv.PaidAt, inv.CancelledAt, inv.VoidedAt, inv.UpdatedAt,
	}
}

func (r *PGRepository) Update(ctx context.Context, inv *Invoice) error {
	tag, err := r.pool.Exec(ctx, invoiceUpdate, invoiceUpdateArgs(inv)...)
	if err != nil {
		return fmt.Errorf("invoices: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("invoice %d", inv.ID)
	}
	return nil
}

// AddPayment inserts the ledger entry and the recalculated invoice columns
// in one transaction, filling the generated payment id.
func (r *PGRepository) AddPayment(ctx context.Context, inv *Invoice, p *Payment) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const insert = `
			INSERT INTO invoice_payments (invoice_id, amount, amount_usd, method, reference, paid_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`
		err := tx.QueryRow(ctx, insert,
			inv.ID, p.Amount.Local, p.Amount.USD, p.Method, p.Reference, p.PaidAt, p.CreatedAt,
		).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("invoices: insert payment: %w", err)
		}
		if _, err := tx.Exec(ctx, invoiceUpdate, invoiceUpdateArgs(inv)...); err != nil {
			return fmt.Errorf("invoices: update ledger: %w", err)
		}
		return nil
	})
}

// RemovePayment deletes the ledger entry and persists the recalculated
// invoice columns in one transaction.
func (r *PGRepository) RemovePayment(ctx context.Context, inv *Invoice, paymentID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "DELETE FROM invoice_payments WHERE invoice_id = $1 AND id = $2", inv.ID, paymentID)
		if err != nil {
			return fmt.Errorf("invoices: delete payment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.NotFoundf("payment %d", paymentID)
		}
		if _, err := tx.Exec(ctx, invoiceUpdate, invoiceUpdateArgs(inv)...); err != nil {
			return fmt.Errorf("invoices: update ledger: %w", err)
		}
		return nil
	})
}

func (r *PGRepository) Delete(ctx context.Context, tenantID string, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM invoices WHERE tenant_id = $1 AND id = $2", tenantID, id)
	if err != nil {
		return fmt.Errorf("invoices: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("invoice %d", id)
	}
	return nil
}

// ActiveExistsForItinerary reports whether a non-void invoice references the
// itinerary.
func (r *PGRepository) ActiveExistsForItinerary(ctx context.Context, tenantID string, itineraryID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM invoices WHERE tenant_id = $1 AND itinerary_id = $2 AND status <> 'void')",
		tenantID, itineraryID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("invoices: active exists: %w", err)
	}
	return exists, nil
}

// ExistsForItinerary reports whether any invoice, void included, references
// the itinerary.
func (r *PGRepository) ExistsForItinerary(ctx context.Context, tenantID string, itineraryID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM invoices WHERE tenant_id = $1 AND itinerary_id = $2)",
		tenantID, itineraryID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("invoices: exists: %w", err)
	}
	return exists, nil
}
