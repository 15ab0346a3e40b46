// Package pricing turns a total trip cost into sale-price options.
package pricing

import (
	"github.com/rumbo-tms/rumbo-tms/internal/fx"
	"github.com/rumbo-tms/rumbo-tms/internal/shared"
)

// Option is one candidate sale price for a markup percentage.
type Option struct {
	MarkupPercent float64 `json:"markup_percent"`
	SalePrice     float64 `json:"sale_price"`
	SalePriceUSD  float64 `json:"sale_price_usd"`
	Recommended   bool    `json:"recommended"`
}

// DefaultMarkups are the candidate percentages offered to the operator.
var DefaultMarkups = []float64{10, 15, 20, 25, 30}

// Options returns a sale price per candidate markup, marking the recommended
// one. Rate is local units per USD.
func Options(totalCost, rate float64, markups []float64, recommended float64) ([]Option, error) {
	if totalCost <= 0 {
		return nil, shared.Validationf("total cost must be positive, got %g", totalCost)
	}
	if rate <= 0 {
		return nil, shared.Validationf("exchange rate must be positive, got %g", rate)
	}
	if len(markups) == 0 {
		markups = DefaultMarkups
	}

	options := make([]Option, 0, len(markups))
	for _, markup := range markups {
		price := totalCost * (1 + markup/100)
		options = append(options, Option{
			MarkupPercent: markup,
			SalePrice:     price,
			SalePriceUSD:  fx.ToUSD(price, rate),
			Recommended:   markup == recommended,
		})
	}
	return options, nil
}

// ApplyClientDiscount scales already-marked-up prices down by the discount
// percentage. Discount applies after markup, never blended into cost.
func ApplyClientDiscount(options []Option, discountPercent float64) []Option {
	if discountPercent <= 0 {
		return options
	}
	factor := 1 - discountPercent/100
	discounted := make([]Option, len(options))
	for i, opt := range options {
		opt.SalePrice *= factor
		opt.SalePriceUSD *= factor
		discounted[i] = opt
	}
	return discounted
}

// MarkupFromPrice is the inverse of the markup application, for reporting.
func MarkupFromPrice(totalCost, salePrice float64) float64 {
	if totalCost <= 0 {
		return 0
	}
	return (salePrice/totalCost - 1) * 100
}

// Profit is the absolute margin between sale price and cost.
func Profit(totalCost, salePrice float64) float64 {
	return salePrice - totalCost
}

// RecommendMarkup suggests a default markup from the trip shape. Short or
// small-group trips carry a higher markup, long multi-day trips a lower one.
// Advisory only; the operator picks the final percentage.
func RecommendMarkup(distanceKm float64, days, groupSize int) float64 {
	switch {
	case days > 1 || distanceKm > 600:
		return 15
	case distanceKm < 100 || (groupSize > 0 && groupSize <= 4):
		return 25
	default:
		return 20
	}
}
