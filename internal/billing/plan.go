// Package billing exposes the plan-limit checks the state machines consult
// before allowing creation. Plan enforcement itself lives outside this core.
package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rumbo-tms/rumbo-tms/internal/shared"
)

// PlanGuard answers whether a tenant may create more of a resource.
type PlanGuard interface {
	CanCreateQuotation(ctx context.Context, tenantID string) error
	CanAddUser(ctx context.Context, tenantID string) error
}

// Guard is the PostgreSQL-backed PlanGuard reading the tenant plan rows the
// billing collaborator maintains.
type Guard struct {
	pool *pgxpool.Pool
}

// NewGuard constructs a Guard.
func NewGuard(pool *pgxpool.Pool) *Guard {
	return &Guard{pool: pool}
}

func (g *Guard) tenantCeiling(ctx context.Context, tenantID, column string) (active bool, ceiling, used int64, err error) {
	query := fmt.Sprintf(`
		SELECT t.active, p.%s, p.%s_used
		FROM tenants t
		JOIN tenant_plans p ON p.tenant_id = t.id
		WHERE t.id = $1`, column, column)
	err = g.pool.QueryRow(ctx, query, tenantID).Scan(&active, &ceiling, &used)
	if errors.Is(err, pgx.ErrNoRows) {
		err = shared.NotFoundf("tenant %s", tenantID)
	}
	return active, ceiling, used, err
}

// CanCreateQuotation checks the tenant is active and under its quotation cap.
func (g *Guard) CanCreateQuotation(ctx context.Context, tenantID string) error {
	active, ceiling, used, err := g.tenantCeiling(ctx, tenantID, "quotation_limit")
	if err != nil {
		return err
	}
	if !active {
		return shared.Limitf("tenant %s is not active", tenantID)
	}
	if ceiling > 0 && used >= ceiling {
		return shared.Limitf("quotation limit %d reached", ceiling)
	}
	return nil
}

// CanAddUser checks the tenant is active and under its seat cap.
func (g *Guard) CanAddUser(ctx context.Context, tenantID string) error {
	active, ceiling, used, err := g.tenantCeiling(ctx, tenantID, "user_limit")
	if err != nil {
		return err
	}
	if !active {
		return shared.Limitf("tenant %s is not active", tenantID)
	}
	if ceiling > 0 && used >= ceiling {
		return shared.Limitf("user limit %d reached", ceiling)
	}
	return nil
}

// ActiveTenantIDs lists the tenants periodic jobs iterate over.
func (g *Guard) ActiveTenantIDs(ctx context.Context) ([]string, error) {
	rows, err := g.pool.Query(ctx, `SELECT id FROM tenants WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("billing: list tenants: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AllowAll is a PlanGuard that never rejects; used in tests and for tenants
// on unmetered plans.
type AllowAll struct{}

func (AllowAll) CanCreateQuotation(ctx context.Context, tenantID string) error { return nil }
func (AllowAll) CanAddUser(ctx context.Context, tenantID string) error         { return nil }
