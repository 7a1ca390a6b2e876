// Package installment computes amortization schedules for invoices.
// All functions are pure: same inputs always produce the same schedule,
// and nothing here touches storage or the clock. Validation of request
// bounds is the caller's job (see service.InstallmentService).
//
// Values are integers: currency in IRR minor units, gold weight in
// milligrams. Division rounds half-up and the final installment absorbs
// the rounding remainder, so the schedule always sums exactly to the
// total.
package installment

import (
	"math"
	"time"

	"github.com/zarrinbook/zarrinbook/internal/domain"
)

// Allocate splits total into count nearly-equal parts. Installments
// 1..count-1 receive round-half-up(total/count); the last receives
// whatever remains, so the parts sum to total exactly.
//
// count must be >= 2 and CanSplit(total, count) must hold; callers
// enforce this before invoking. Outside that region the final part
// would go negative when the rounded base overshoots the total.
func Allocate(total int64, count int) []int64 {
	base := roundHalfUpDiv(total, int64(count))

	parts := make([]int64, count)
	for i := 0; i < count-1; i++ {
		parts[i] = base
	}
	parts[count-1] = total - base*int64(count-1)
	return parts
}

// CanSplit reports whether total divides into count parts that are all
// non-negative under the half-up base policy. Totals below count round
// the base to zero; totals slightly above can round it up far enough
// that base*(count-1) exceeds the total and the last part goes negative
// (90 across 60 gives a base of 2 and a final part of -28).
func CanSplit(total int64, count int) bool {
	if total < int64(count) {
		return false
	}
	return roundHalfUpDiv(total, int64(count))*int64(count-1) <= total
}

// DueDates returns count due dates starting at start and spaced
// intervalDays apart. The first installment is due on the start date
// itself (zero offset). Dates are calendar-day granular: the time of
// day is dropped, the location is kept.
func DueDates(start time.Time, intervalDays, count int) []time.Time {
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())

	dates := make([]time.Time, count)
	for i := 0; i < count; i++ {
		dates[i] = day.AddDate(0, 0, i*intervalDays)
	}
	return dates
}

// ApplyInterest inflates principal by a flat percentage and rounds
// half-up to minor units. A zero rate returns the principal unchanged.
func ApplyInterest(principal int64, ratePercent float64) int64 {
	if ratePercent == 0 {
		return principal
	}
	return principal + int64(math.Round(float64(principal)*ratePercent/100))
}

// BuildCurrency assembles a currency schedule: the principal is
// adjusted by the interest rate, allocated across count installments
// and zipped with due dates. It returns the adjusted total and the
// ordered descriptors, numbered from 1 in ascending date order.
func BuildCurrency(principal int64, ratePercent float64, start time.Time, intervalDays, count int) (int64, []domain.InstallmentDescriptor) {
	adjusted := ApplyInterest(principal, ratePercent)
	amounts := Allocate(adjusted, count)
	dates := DueDates(start, intervalDays, count)

	descriptors := make([]domain.InstallmentDescriptor, count)
	for i := range descriptors {
		descriptors[i] = domain.InstallmentDescriptor{
			Number:    i + 1,
			DueDate:   dates[i],
			AmountDue: amounts[i],
		}
	}
	return adjusted, descriptors
}

// BuildGold assembles a gold-weight schedule. No interest applies: the
// weight owed is fixed at invoice creation and only its currency value
// floats with the spot price at each payment.
func BuildGold(weightMg int64, start time.Time, intervalDays, count int) []domain.InstallmentDescriptor {
	weights := Allocate(weightMg, count)
	dates := DueDates(start, intervalDays, count)

	descriptors := make([]domain.InstallmentDescriptor, count)
	for i := range descriptors {
		descriptors[i] = domain.InstallmentDescriptor{
			Number:          i + 1,
			DueDate:         dates[i],
			GoldWeightDueMg: weights[i],
		}
	}
	return descriptors
}

// roundHalfUpDiv divides a by b rounding half-up, for a >= 0, b > 0.
// Integer-only so no precision is lost on large totals.
func roundHalfUpDiv(a, b int64) int64 {
	return (2*a + b) / (2 * b)
}
