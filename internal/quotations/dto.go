package quotations

import (
	"github.com/go-playground/validator/v10"

	"github.com/rumbo-tms/rumbo-tms/internal/costing"
	"github.com/rumbo-tms/rumbo-tms/internal/shared"
)

// CreateRequest is the JSON body for creating or repricing a quotation.
type CreateRequest struct {
	ClientCode      string  `json:"client_code" validate:"required,max=10"`
	LeaderName      string  `json:"leader_name" validate:"max=100"`
	Currency        string  `json:"currency" validate:"omitempty,len=3,uppercase"`
	VehicleID       int64   `json:"vehicle_id" validate:"required,gt=0"`
	Origin          string  `json:"origin" validate:"required"`
	Destination     string  `json:"destination" validate:"required"`
	GroupSize       int     `json:"group_size" validate:"required,gt=0"`
	DistanceKm      float64 `json:"distance_km" validate:"required,gt=0"`
	TotalTimeMin    float64 `json:"total_time_min" validate:"gte=0"`
	Days            int     `json:"days" validate:"gte=0"`
	FuelPrice       float64 `json:"fuel_price" validate:"required,gt=0"`
	FuelPriceUnit   string  `json:"fuel_price_unit" validate:"omitempty,oneof=gallon liter"`
	MealCost        float64 `json:"meal_cost_per_day" validate:"gte=0"`
	HotelCost       float64 `json:"hotel_cost_per_night" validate:"gte=0"`
	Incentive       float64 `json:"incentive_per_day" validate:"gte=0"`
	IncludeFuel     bool    `json:"include_fuel"`
	IncludeMeals    bool    `json:"include_meals"`
	IncludeTolls    bool    `json:"include_tolls"`
	IncludeIncent   bool    `json:"include_incentive"`
	MarkupPercent   float64 `json:"markup_percent" validate:"gte=0,lte=100"`
	DiscountPercent float64 `json:"discount_percent" validate:"gte=0,lt=100"`
}

// ToInput validates the request and maps it to the service input.
func (req CreateRequest) ToInput(validate *validator.Validate) (CreateInput, error) {
	if err := validate.Struct(req); err != nil {
		return CreateInput{}, shared.Validationf("%s", err.Error())
	}
	unit := costing.FuelUnit(req.FuelPriceUnit)
	if unit == "" {
		unit = costing.UnitGallon
	}
	return CreateInput{
		ClientCode: req.ClientCode,
		LeaderName: req.LeaderName,
		Currency:   req.Currency,
		VehicleID:  req.VehicleID,
		Trip: costing.TripParams{
			DistanceKm:       req.DistanceKm,
			TotalTimeMinutes: req.TotalTimeMin,
			Days:             req.Days,
			GroupSize:        req.GroupSize,
			Origin:           req.Origin,
			Destination:      req.Destination,
		},
		FuelPrice: costing.FuelPrice{Amount: req.FuelPrice, Unit: unit},
		PerDiem: costing.PerDiem{
			MealCostPerDay:    req.MealCost,
			HotelCostPerNight: req.HotelCost,
			IncentivePerDay:   req.Incentive,
		},
		Include: costing.Inclusions{
			Fuel:      req.IncludeFuel,
			Meals:     req.IncludeMeals,
			Tolls:     req.IncludeTolls,
			Incentive: req.IncludeIncent,
		},
		MarkupPercent:   req.MarkupPercent,
		DiscountPercent: req.DiscountPercent,
	}, nil
}

// Response is the quotation representation returned to clients. AmountHNL
// duplicates the local sale price for consumers still reading the legacy
// field; internally the fx.Pair is the only representation.
type Response struct {
	Quotation
	LongNumber string  `json:"long_number"`
	AmountHNL  float64 `json:"amount_hnl"`
}

// NewResponse wraps a quotation with its derived fields.
func NewResponse(q *Quotation) Response {
	return Response{Quotation: *q, LongNumber: q.LongNumber(), AmountHNL: q.SalePrice.Local}
}
