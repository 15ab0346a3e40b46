package quotations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rumbo-tms/rumbo-tms/internal/numbering"
	"github.com/rumbo-tms/rumbo-tms/internal/platform/db"
	"github.com/rumbo-tms/rumbo-tms/internal/shared"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a pgx-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const quotationColumns = `id, tenant_id, number, client_code, leader_name, trip, costs, currency,
	markup_percent, sale_price, sale_price_usd, include, status,
	sent_at, approved_at, rejected_at, expired_at, created_at, updated_at`

func scanQuotation(row pgx.Row) (*Quotation, error) {
	var (
		q                          Quotation
		trip, costs, currency, inc []byte
	)
	err := row.Scan(
		&q.ID, &q.TenantID, &q.Number, &q.ClientCode, &q.LeaderName, &trip, &costs, &currency,
		&q.MarkupPercent, &q.SalePrice.Local, &q.SalePrice.USD, &inc, &q.Status,
		&q.SentAt, &q.ApprovedAt, &q.RejectedAt, &q.ExpiredAt, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	for _, pair := range []struct {
		raw []byte
		dst any
	}{
		{trip, &q.Trip}, {costs, &q.Costs}, {currency, &q.Currency}, {inc, &q.Include},
	} {
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return nil, fmt.Errorf("quotations: decode row: %w", err)
		}
	}
	return &q, nil
}

func (r *repository) Create(ctx context.Context, q *Quotation) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		lockKey := shared.SequenceLockKey(q.TenantID, string(numbering.DocQuotation))
		if err := db.AdvisoryLock(ctx, tx, lockKey); err != nil {
			return err
		}

		number, _, err := numbering.Next(ctx, numbering.TxSource{Tx: tx, Table: "quotations"}, q.TenantID, numbering.DocQuotation, q.CreatedAt)
		if err != nil {
			return err
		}
		q.Number = number

		trip, costs, currency, inc, err := marshalQuotationDocs(q)
		if err != nil {
			return err
		}

		const query = `
			INSERT INTO quotations (tenant_id, number, client_code, leader_name, trip, costs, currency,
				markup_percent, sale_price, sale_price_usd, include, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			RETURNING id`
		err = tx.QueryRow(ctx, query,
			q.TenantID, q.Number, q.ClientCode, q.LeaderName, trip, costs, currency,
			q.MarkupPercent, q.SalePrice.Local, q.SalePrice.USD, inc, q.Status, q.CreatedAt, q.UpdatedAt,
		).Scan(&q.ID)
		if err != nil {
			return fmt.Errorf("quotations: insert: %w", err)
		}
		return nil
	})
}

func marshalQuotationDocs(q *Quotation) (trip, costs, currency, inc []byte, err error) {
	if trip, err = json.Marshal(q.Trip); err != nil {
		return
	}
	if costs, err = json.Marshal(q.Costs); err != nil {
		return
	}
	if currency, err = json.Marshal(q.Currency); err != nil {
		return
	}
	inc, err = json.Marshal(q.Include)
	return
}

func (r *repository) Get(ctx context.Context, tenantID string, id int64) (*Quotation, error) {
	query := fmt.Sprintf("SELECT %s FROM quotations WHERE tenant_id = $1 AND id = $2", quotationColumns)
	q, err := scanQuotation(r.pool.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundf("quotation %d", id)
		}
		return nil, fmt.Errorf("quotations: get: %w", err)
	}
	return q, nil
}

func (r *repository) List(ctx context.Context, tenantID string, filter ListFilter) ([]Quotation, error) {
	var (
		conds = []string{"tenant_id = $1"}
		args  = []any{tenantID}
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if !filter.CreatedBefore.IsZero() {
		args = append(args, filter.CreatedBefore)
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}
	query := fmt.Sprintf("SELECT %s FROM quotations WHERE %s ORDER BY created_at DESC",
		quotationColumns, strings.Join(conds, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("quotations: list: %w", err)
	}
	defer rows.Close()

	var out []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, fmt.Errorf("quotations: scan: %w", err)
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func (r *repository) Update(ctx context.Context, q *Quotation) error {
	trip, costs, currency, inc, err := marshalQuotationDocs(q)
	if err != nil {
		return err
	}
	const query = `
		UPDATE quotations
		SET client_code = $3, leader_name = $4, trip = $5, costs = $6, currency = $7,
			markup_percent = $8, sale_price = $9, sale_price_usd = $10, include = $11,
			status = $12, sent_at = $13, approved_at = $14, rejected_at = $15, expired_at = $16,
			updated_at = $17
		WHERE tenant_id = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, query,
		q.TenantID, q.ID, q.ClientCode, q.LeaderName, trip, costs, currency,
		q.MarkupPercent, q.SalePrice.Local, q.SalePrice.USD, inc,
		q.Status, q.SentAt, q.ApprovedAt, q.RejectedAt, q.ExpiredAt, q.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("quotations: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("quotation %d", q.ID)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, tenantID string, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM quotations WHERE tenant_id = $1 AND id = $2", tenantID, id)
	if err != nil {
		return fmt.Errorf("quotations: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("quotation %d", id)
	}
	return nil
}
