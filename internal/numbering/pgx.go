package numbering

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxSource adapts an open transaction into a NumberRepository, scanning the
// document table's numbers inside the caller's transaction so the read and
// the subsequent insert share the advisory lock.
type TxSource struct {
	Tx    pgx.Tx
	Table string
}

// ExistingNumbers lists every number the tenant holds in the table.
func (t TxSource) ExistingNumbers(ctx context.Context, tenantID string, _ DocType) ([]string, error) {
	query := fmt.Sprintf("SELECT number FROM %s WHERE tenant_id = $1", t.Table)
	rows, err := t.Tx.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("numbering: scan %s: %w", t.Table, err)
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}
