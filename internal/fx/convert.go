// Package fx implements local-currency/USD conversion with frozen snapshots.
//
// A rate is always expressed as local units per USD. Conversions keep full
// floating precision; rounding happens only at the boundary where a value is
// persisted or displayed.
package fx

import (
	"fmt"
	"math"
	"time"

	"github.com/rumbo-tms/rumbo-tms/internal/shared"
)

// Pair is the canonical representation of a monetary amount: the local value
// and its USD equivalent, both derived from the same frozen rate.
type Pair struct {
	Local float64 `json:"local"`
	USD   float64 `json:"usd"`
}

// Snapshot captures the currency context frozen into a document at creation
// time. It is never recomputed from a live rate afterwards.
type Snapshot struct {
	Currency   string    `json:"currency"`
	Rate       float64   `json:"rate"`
	CapturedAt time.Time `json:"captured_at"`
}

// NewSnapshot validates and freezes a rate for a currency.
func NewSnapshot(currency string, rate float64, at time.Time) (Snapshot, error) {
	if currency == "" {
		return Snapshot{}, shared.Validationf("currency code required")
	}
	if rate <= 0 {
		return Snapshot{}, shared.Validationf("exchange rate must be positive, got %g", rate)
	}
	return Snapshot{Currency: currency, Rate: rate, CapturedAt: at}, nil
}

// PairFromLocal derives the USD side of an amount using the snapshot rate.
func (s Snapshot) PairFromLocal(local float64) Pair {
	return Pair{Local: local, USD: ToUSD(local, s.Rate)}
}

// PairFromUSD derives the local side of an amount using the snapshot rate.
func (s Snapshot) PairFromUSD(usd float64) Pair {
	return Pair{Local: ToLocal(usd, s.Rate), USD: usd}
}

// ToLocal converts a USD amount into local currency at the given rate.
func ToLocal(usd, rate float64) float64 {
	return usd * rate
}

// ToUSD converts a local-currency amount into USD at the given rate.
func ToUSD(local, rate float64) float64 {
	if rate == 0 {
		return 0
	}
	return local / rate
}

// Convert moves an amount between two currencies; identity when they match.
// Exactly one side of the conversion must be USD.
func Convert(amount float64, from, to string, rate float64) (float64, error) {
	if from == to {
		return amount, nil
	}
	switch {
	case from == "USD":
		return ToLocal(amount, rate), nil
	case to == "USD":
		return ToUSD(amount, rate), nil
	default:
		return 0, shared.Validationf("unsupported conversion %s->%s", from, to)
	}
}

// RoundTo rounds an amount to the nearest multiple of unit, e.g. nearest 100
// local units or nearest 5 USD. A non-positive unit leaves the amount as is.
func RoundTo(amount, unit float64) float64 {
	if unit <= 0 {
		return amount
	}
	return math.Round(amount/unit) * unit
}

// Round2 rounds to 2 decimals for persistence and display.
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// MissingRateError reports that no rate is available for a currency.
type MissingRateError struct {
	Currency string
}

func (e *MissingRateError) Error() string {
	return fmt.Sprintf("fx: no exchange rate for %s", e.Currency)
}
