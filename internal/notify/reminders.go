package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReminderStore tracks pending overdue reminders per invoice. Scheduling
// happens when an invoice is sent; cancellation when it is paid or voided.
type ReminderStore interface {
	Schedule(ctx context.Context, tenantID string, invoiceID int64, dueAt time.Time) error
	Cancel(ctx context.Context, tenantID string, invoiceID int64) error
	Pending(ctx context.Context, tenantID string, invoiceID int64) (bool, error)
}

// RedisReminderStore keeps reminders in Redis keyed per tenant and invoice.
type RedisReminderStore struct {
	client *redis.Client
}

// NewRedisReminderStore constructs a RedisReminderStore.
func NewRedisReminderStore(client *redis.Client) *RedisReminderStore {
	return &RedisReminderStore{client: client}
}

func reminderKey(tenantID string, invoiceID int64) string {
	return fmt.Sprintf("reminder:overdue:%s:%d", tenantID, invoiceID)
}

// Schedule records a pending reminder. The key survives until the due date
// plus a grace window so the sweep job can pick it up.
func (s *RedisReminderStore) Schedule(ctx context.Context, tenantID string, invoiceID int64, dueAt time.Time) error {
	ttl := time.Until(dueAt) + 30*24*time.Hour
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	payload := strconv.FormatInt(dueAt.UnixMilli(), 10)
	if err := s.client.Set(ctx, reminderKey(tenantID, invoiceID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("notify: schedule reminder: %w", err)
	}
	return nil
}

// Cancel removes the pending reminder, if any.
func (s *RedisReminderStore) Cancel(ctx context.Context, tenantID string, invoiceID int64) error {
	if err := s.client.Del(ctx, reminderKey(tenantID, invoiceID)).Err(); err != nil {
		return fmt.Errorf("notify: cancel reminder: %w", err)
	}
	return nil
}

// Pending reports whether a reminder is still scheduled for the invoice.
func (s *RedisReminderStore) Pending(ctx context.Context, tenantID string, invoiceID int64) (bool, error) {
	n, err := s.client.Exists(ctx, reminderKey(tenantID, invoiceID)).Result()
	if err != nil {
		return false, fmt.Errorf("notify: pending reminder: %w", err)
	}
	return n > 0, nil
}
