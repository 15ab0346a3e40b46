package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *RedisReminderStore {
	mr := miniredis.RunT(t)
	return NewRedisReminderStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestReminderScheduleAndCancel(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pending, err := store.Pending(ctx, "t1", 7)
	require.NoError(t, err)
	require.False(t, pending)

	require.NoError(t, store.Schedule(ctx, "t1", 7, time.Now().Add(14*24*time.Hour)))

	pending, err = store.Pending(ctx, "t1", 7)
	require.NoError(t, err)
	require.True(t, pending)

	// Another tenant's invoice with the same id is unaffected.
	pending, err = store.Pending(ctx, "t2", 7)
	require.NoError(t, err)
	require.False(t, pending)

	require.NoError(t, store.Cancel(ctx, "t1", 7))
	pending, err = store.Pending(ctx, "t1", 7)
	require.NoError(t, err)
	require.False(t, pending)
}

func TestReminderCancelIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Cancel(ctx, "t1", 99))
	require.NoError(t, store.Cancel(ctx, "t1", 99))
}

func TestEventDedupeKeyStable(t *testing.T) {
	a := Event{Kind: KindInvoicePaid, TenantID: "t1", DocumentID: 4, Amount: 6141}
	b := Event{Kind: KindInvoicePaid, TenantID: "t1", DocumentID: 4, Amount: 6141}
	require.Equal(t, a.DedupeKey(), b.DedupeKey())

	c := Event{Kind: KindPaymentReceived, TenantID: "t1", DocumentID: 4, Amount: 6141}
	require.NotEqual(t, a.DedupeKey(), c.DedupeKey())
}
