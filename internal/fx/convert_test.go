package fx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestToLocalToUSDRoundTrip(t *testing.T) {
	rate := 24.68
	local := ToLocal(100, rate)
	require.InDelta(t, 2468.0, local, 1e-9)
	require.InDelta(t, 100.0, ToUSD(local, rate), 1e-9)
}

func TestConvertIdentity(t *testing.T) {
	got, err := Convert(512.33, "HNL", "HNL", 24.68)
	require.NoError(t, err)
	require.Equal(t, 512.33, got)
}

func TestConvertUnsupportedPair(t *testing.T) {
	_, err := Convert(10, "HNL", "GTQ", 24.68)
	require.Error(t, err)
}

func TestRoundTo(t *testing.T) {
	require.Equal(t, 4500.0, RoundTo(4461.7, 100))
	require.Equal(t, 45.0, RoundTo(43.2, 5))
	require.Equal(t, 43.2, RoundTo(43.2, 0))
}

func TestSnapshotRejectsZeroRate(t *testing.T) {
	_, err := NewSnapshot("HNL", 0, time.Now())
	require.Error(t, err)
}

func TestSnapshotFreezesRate(t *testing.T) {
	snap, err := NewSnapshot("HNL", 24.5, time.Now())
	require.NoError(t, err)

	pair := snap.PairFromLocal(2450)
	require.InDelta(t, 100.0, pair.USD, 1e-9)

	// A later rate change must not alter amounts derived from the snapshot.
	pairAgain := snap.PairFromLocal(2450)
	require.Equal(t, pair, pairAgain)
}

type staticRateSource struct {
	quote Quote
	calls int
}

func (s *staticRateSource) Rate(ctx context.Context, currency string) (Quote, error) {
	s.calls++
	if s.quote.Currency != currency {
		return Quote{}, &MissingRateError{Currency: currency}
	}
	return s.quote, nil
}

func TestCachedRateSource(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	source := &staticRateSource{quote: Quote{Currency: "HNL", Rate: 24.68, FetchedAt: time.Now()}}
	cached := NewCachedRateSource(source, client, time.Minute)

	ctx := context.Background()
	first, err := cached.Rate(ctx, "HNL")
	require.NoError(t, err)
	require.Equal(t, 24.68, first.Rate)

	second, err := cached.Rate(ctx, "HNL")
	require.NoError(t, err)
	require.Equal(t, 24.68, second.Rate)
	require.Equal(t, 1, source.calls)
}

func TestCachedRateSourceMissing(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	source := &staticRateSource{quote: Quote{Currency: "HNL", Rate: 24.68}}
	cached := NewCachedRateSource(source, client, time.Minute)

	_, err := cached.Rate(context.Background(), "NIO")
	require.Error(t, err)
	var missing *MissingRateError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "NIO", missing.Currency)
}
