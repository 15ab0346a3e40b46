package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"
)

// tenantFanout bounds how many tenants a periodic job works concurrently.
const tenantFanout = 4

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeOverdueSweep walks sent invoices past their due date and fires
	// overdue notifications for pending reminders.
	TaskTypeOverdueSweep = "invoice:overdue_sweep"
	// TaskTypeQuotationExpiry marks stale sent quotations as expired.
	TaskTypeQuotationExpiry = "quotation:expire_stale"
)

// TenantSource lists the tenants periodic jobs must iterate.
type TenantSource interface {
	ActiveTenantIDs(ctx context.Context) ([]string, error)
}

// OverdueSweeper is the slice of the invoice service the sweep task needs.
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context, tenantID string) (int, error)
}

// QuotationExpirer is the slice of the quotation service the expiry task needs.
type QuotationExpirer interface {
	ExpireStale(ctx context.Context, tenantID string, maxAge time.Duration) (int, error)
}

// NewOverdueSweepTask constructs the periodic overdue-invoice sweep task.
func NewOverdueSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeOverdueSweep, nil)
}

// NewQuotationExpiryTask constructs the periodic stale-quotation task.
func NewQuotationExpiryTask() *asynq.Task {
	return asynq.NewTask(TaskTypeQuotationExpiry, nil)
}

// HandleOverdueSweepTask processes TaskTypeOverdueSweep tasks. The sweep runs
// per tenant so one tenant's failure does not starve the rest.
func HandleOverdueSweepTask(tenants TenantSource, sweeper OverdueSweeper, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		ids, err := tenants.ActiveTenantIDs(ctx)
		if err != nil {
			return err
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(tenantFanout)
		for _, tenantID := range ids {
			g.Go(func() error {
				fired, err := sweeper.SweepOverdue(gctx, tenantID)
				if err != nil {
					logger.Error("overdue sweep", slog.String("tenant", tenantID), slog.Any("error", err))
					return nil
				}
				if fired > 0 {
					logger.Info("overdue sweep", slog.String("tenant", tenantID), slog.Int("fired", fired))
				}
				return nil
			})
		}
		return g.Wait()
	}
}

// DefaultCron returns the standing schedule: the overdue sweep every hour and
// the quotation expiry pass once a day after the sweep.
func DefaultCron() []CronRegistration {
	return []CronRegistration{
		{Spec: "0 * * * *", Task: NewOverdueSweepTask(), Options: []asynq.Option{asynq.Queue(QueueDefault)}},
		{Spec: "30 0 * * *", Task: NewQuotationExpiryTask(), Options: []asynq.Option{asynq.Queue(QueueDefault)}},
	}
}

// HandleQuotationExpiryTask processes TaskTypeQuotationExpiry tasks.
func HandleQuotationExpiryTask(tenants TenantSource, expirer QuotationExpirer, maxAge time.Duration, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		ids, err := tenants.ActiveTenantIDs(ctx)
		if err != nil {
			return err
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(tenantFanout)
		for _, tenantID := range ids {
			g.Go(func() error {
				expired, err := expirer.ExpireStale(gctx, tenantID, maxAge)
				if err != nil {
					logger.Error("quotation expiry", slog.String("tenant", tenantID), slog.Any("error", err))
					return nil
				}
				if expired > 0 {
					logger.Info("quotation expiry", slog.String("tenant", tenantID), slog.Int("expired", expired))
				}
				return nil
			})
		}
		return g.Wait()
	}
}
