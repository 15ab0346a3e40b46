package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type staticTenants []string

func (s staticTenants) ActiveTenantIDs(ctx context.Context) ([]string, error) {
	return s, nil
}

type recordingSweeper struct {
	mu     sync.Mutex
	swept  []string
	failOn string
}

func (r *recordingSweeper) SweepOverdue(ctx context.Context, tenantID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tenantID == r.failOn {
		return 0, errors.New("boom")
	}
	r.swept = append(r.swept, tenantID)
	return 1, nil
}

type recordingExpirer struct {
	mu      sync.Mutex
	tenants []string
}

func (r *recordingExpirer) ExpireStale(ctx context.Context, tenantID string, maxAge time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants = append(r.tenants, tenantID)
	return 0, nil
}

func TestOverdueSweepVisitsAllTenants(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sweeper := &recordingSweeper{}
	handler := HandleOverdueSweepTask(staticTenants{"t1", "t2", "t3"}, sweeper, logger)

	require.NoError(t, handler(context.Background(), NewOverdueSweepTask()))
	require.ElementsMatch(t, []string{"t1", "t2", "t3"}, sweeper.swept)
}

func TestOverdueSweepOneTenantFailureDoesNotStopOthers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sweeper := &recordingSweeper{failOn: "t2"}
	handler := HandleOverdueSweepTask(staticTenants{"t1", "t2", "t3"}, sweeper, logger)

	require.NoError(t, handler(context.Background(), NewOverdueSweepTask()))
	require.ElementsMatch(t, []string{"t1", "t3"}, sweeper.swept)
}

func TestQuotationExpiryVisitsAllTenants(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	expirer := &recordingExpirer{}
	handler := HandleQuotationExpiryTask(staticTenants{"t1", "t2"}, expirer, 30*24*time.Hour, logger)

	require.NoError(t, handler(context.Background(), NewQuotationExpiryTask()))
	require.ElementsMatch(t, []string{"t1", "t2"}, expirer.tenants)
}
