package booking

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrInvalidDuration = errors.New("booking: duration must be positive")

// VATRate is the UAE value added tax.
var VATRate = decimal.RequireFromString("0.05")

// Quote is the itemised server-side price of a booking. Amounts are in AED
// rounded to fils; Total is rounded once from the exact amount.
type Quote struct {
	BasePrice  decimal.Decimal `json:"base_price"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`
	Hours      decimal.Decimal `json:"hours"`
	Urgency    Urgency         `json:"urgency"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Adjusted   decimal.Decimal `json:"adjusted"`
	VAT        decimal.Decimal `json:"vat"`
	Total      decimal.Decimal `json:"total"`
}

// ComputeQuote prices (base + hourly*hours) * multiplier * (1 + VAT).
func ComputeQuote(base, hourly, hours decimal.Decimal, urgency Urgency) (Quote, error) {
	if !hours.IsPositive() {
		return Quote{}, ErrInvalidDuration
	}
	mult, err := urgency.Multiplier()
	if err != nil {
		return Quote{}, err
	}
	subtotal := base.Add(hourly.Mul(hours))
	adjusted := subtotal.Mul(mult)
	vat := adjusted.Mul(VATRate)
	return Quote{
		BasePrice:  base,
		HourlyRate: hourly,
		Hours:      hours,
		Urgency:    urgency,
		Multiplier: mult,
		Subtotal:   subtotal.Round(2),
		Adjusted:   adjusted.Round(2),
		VAT:        vat.Round(2),
		Total:      adjusted.Add(vat).Round(2),
	}, nil
}
