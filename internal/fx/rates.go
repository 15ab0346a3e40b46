package fx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Quote is the current rate for a local currency, local units per USD.
type Quote struct {
	Currency  string
	Rate      float64
	FetchedAt time.Time
}

// RateSource looks up the current exchange rate for a local-currency code.
// Rate refreshing itself is an external concern; this is a read-only view.
type RateSource interface {
	Rate(ctx context.Context, currency string) (Quote, error)
}

// RateRepository reads exchange rates maintained by the external refresher.
type RateRepository struct {
	pool *pgxpool.Pool
}

// NewRateRepository constructs a RateRepository.
func NewRateRepository(pool *pgxpool.Pool) *RateRepository {
	return &RateRepository{pool: pool}
}

// Rate returns the most recently fetched quote for the currency.
func (r *RateRepository) Rate(ctx context.Context, currency string) (Quote, error) {
	const query = `
		SELECT currency, rate, fetched_at
		FROM exchange_rates
		WHERE currency = $1
		ORDER BY fetched_at DESC
		LIMIT 1`
	var q Quote
	err := r.pool.QueryRow(ctx, query, currency).Scan(&q.Currency, &q.Rate, &q.FetchedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, &MissingRateError{Currency: currency}
		}
		return Quote{}, fmt.Errorf("fx: query rate: %w", err)
	}
	return q, nil
}

// CachedRateSource wraps a RateSource with a Redis read-through cache.
type CachedRateSource struct {
	source RateSource
	client *redis.Client
	ttl    time.Duration
}

// NewCachedRateSource constructs a CachedRateSource.
func NewCachedRateSource(source RateSource, client *redis.Client, ttl time.Duration) *CachedRateSource {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedRateSource{source: source, client: client, ttl: ttl}
}

func rateCacheKey(currency string) string {
	return "fx:rate:" + currency
}

// Rate returns the cached quote when fresh, falling back to the source.
// Cache failures degrade to a direct lookup.
func (c *CachedRateSource) Rate(ctx context.Context, currency string) (Quote, error) {
	if c.client != nil {
		if raw, err := c.client.Get(ctx, rateCacheKey(currency)).Result(); err == nil {
			if rate, perr := strconv.ParseFloat(raw, 64); perr == nil && rate > 0 {
				return Quote{Currency: currency, Rate: rate, FetchedAt: time.Now()}, nil
			}
		}
	}

	quote, err := c.source.Rate(ctx, currency)
	if err != nil {
		return Quote{}, err
	}

	if c.client != nil {
		_ = c.client.Set(ctx, rateCacheKey(currency), strconv.FormatFloat(quote.Rate, 'f', -1, 64), c.ttl).Err()
	}
	return quote, nil
}
