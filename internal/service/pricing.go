package service

import (
	"time"

	"rentwy-service/internal/models"
)

// ServiceFeeBasisPoints is the platform fee charged on the rental subtotal (10%)
const ServiceFeeBasisPoints = 1000

// Pricing is the cost breakdown of a rental. All amounts are in cents.
type Pricing struct {
	DailyRateCents   int64 `json:"daily_rate_cents"`
	TotalDays        int   `json:"total_days"`
	SubtotalCents    int64 `json:"subtotal_cents"`
	ServiceFeeCents  int64 `json:"service_fee_cents"`
	DeliveryFeeCents int64 `json:"delivery_fee_cents"`
	DepositCents     int64 `json:"deposit_cents"`
	TotalCents       int64 `json:"total_cents"`
}

// CalculatePricing computes the price of renting item over the inclusive date range.
// The delivery fee is zero; callers that deliver apply it with WithDeliveryFee.
func CalculatePricing(item *models.Item, start, end time.Time) Pricing {
	days := models.InclusiveDays(start, end)
	subtotal := item.PricePerDayCents * int64(days)

	p := Pricing{
		DailyRateCents:  item.PricePerDayCents,
		TotalDays:       days,
		SubtotalCents:   subtotal,
		ServiceFeeCents: serviceFee(subtotal),
		DepositCents:    item.DepositCents,
	}
	p.TotalCents = p.total()
	return p
}

// WithDeliveryFee returns a copy of p with the delivery fee replaced and the total recomputed
func (p Pricing) WithDeliveryFee(cents int64) Pricing {
	p.DeliveryFeeCents = cents
	p.TotalCents = p.total()
	return p
}

func (p Pricing) total() int64 {
	return p.SubtotalCents + p.ServiceFeeCents + p.DeliveryFeeCents + p.DepositCents
}

// applyTo copies the breakdown onto a booking snapshot
func (p Pricing) applyTo(b *models.Booking) {
	b.DailyRateCents = p.DailyRateCents
	b.TotalDays = p.TotalDays
	b.SubtotalCents = p.SubtotalCents
	b.ServiceFeeCents = p.ServiceFeeCents
	b.DeliveryFeeCents = p.DeliveryFeeCents
	b.DepositCents = p.DepositCents
	b.TotalCents = p.TotalCents
}

// serviceFee rounds half up to the cent
func serviceFee(subtotal int64) int64 {
	return (subtotal*ServiceFeeBasisPoints + 5000) / 10000
}
