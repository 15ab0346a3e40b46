package vehicles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rumbo-tms/rumbo-tms/internal/shared"
)

// Repository provides vehicle lookups.
type Repository interface {
	Get(ctx context.Context, tenantID string, id int64) (*Vehicle, error)
	List(ctx context.Context, tenantID string) ([]Vehicle, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a pgx-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const vehicleColumns = `id, tenant_id, name, plate, capacity, fuel_efficiency, efficiency_unit,
	tank_capacity, tank_unit, cost_per_km, cost_per_day, active, created_at, updated_at`

func scanVehicle(row pgx.Row) (*Vehicle, error) {
	var v Vehicle
	err := row.Scan(
		&v.ID, &v.TenantID, &v.Name, &v.Plate, &v.Capacity, &v.FuelEfficiency, &v.EfficiencyUnit,
		&v.TankCapacity, &v.TankUnit, &v.CostPerKm, &v.CostPerDay, &v.Active, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *repository) Get(ctx context.Context, tenantID string, id int64) (*Vehicle, error) {
	query := fmt.Sprintf("SELECT %s FROM vehicles WHERE tenant_id = $1 AND id = $2", vehicleColumns)
	v, err := scanVehicle(r.pool.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundf("vehicle %d", id)
		}
		return nil, fmt.Errorf("vehicles: get: %w", err)
	}
	return v, nil
}

func (r *repository) List(ctx context.Context, tenantID string) ([]Vehicle, error) {
	query := fmt.Sprintf("SELECT %s FROM vehicles WHERE tenant_id = $1 AND active ORDER BY name", vehicleColumns)
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("vehicles: list: %w", err)
	}
	defer rows.Close()

	var out []Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("vehicles: scan: %w", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}
