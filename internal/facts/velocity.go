package facts

import (
	"math"
	"time"

	"github.com/outletx/merch-engine/internal/models"
)

// Lookback configures the four averaging windows of a sale-velocity
// calculation. Zero-valued fields fall back to the defaults.
type Lookback struct {
	Days   int // daily window length in days
	Weeks  int // weekly window length in weeks
	Months int // monthly window length in calendar months
	Years  int // yearly window length in calendar years
}

// DefaultLookback returns the standard 7d/4w/3m/1y windows.
func DefaultLookback() Lookback {
	return Lookback{Days: 7, Weeks: 4, Months: 3, Years: 1}
}

func (lb Lookback) withDefaults() Lookback {
	def := DefaultLookback()
	if lb.Days <= 0 {
		lb.Days = def.Days
	}
	if lb.Weeks <= 0 {
		lb.Weeks = def.Weeks
	}
	if lb.Months <= 0 {
		lb.Months = def.Months
	}
	if lb.Years <= 0 {
		lb.Years = def.Years
	}
	return lb
}

// SaleVelocity derives the average units sold per day, week, month and year
// from an order history. All four windows end at now; their starts are
// computed by calendar subtraction, and orders on either boundary count.
// Returns nil when there are no orders.
func SaleVelocity(orders []models.Order, now time.Time, lb Lookback) *models.SaleVelocity {
	if len(orders) == 0 {
		return nil
	}
	lb = lb.withDefaults()

	startDaily := now.AddDate(0, 0, -lb.Days)
	startWeekly := now.AddDate(0, 0, -lb.Weeks*7)
	startMonthly := now.AddDate(0, -lb.Months, 0)
	startYearly := now.AddDate(-lb.Years, 0, 0)

	var daily, weekly, monthly, yearly int
	for _, order := range orders {
		t := order.ProcessedAt
		if t.After(now) {
			continue
		}
		if !t.Before(startDaily) {
			daily += order.Quantity
		}
		if !t.Before(startWeekly) {
			weekly += order.Quantity
		}
		if !t.Before(startMonthly) {
			monthly += order.Quantity
		}
		if !t.Before(startYearly) {
			yearly += order.Quantity
		}
	}

	return &models.SaleVelocity{
		Daily:              round2(float64(daily) / float64(lb.Days)),
		Weekly:             round2(float64(weekly) / float64(lb.Weeks)),
		Monthly:            round2(float64(monthly) / float64(lb.Months)),
		Yearly:             round2(float64(yearly) / float64(lb.Years)),
		CalculationEndDate: now,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
