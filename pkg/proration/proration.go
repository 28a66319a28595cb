package proration

import (
	"time"

	"github.com/shopspring/decimal"
)

// RatioPlaces is the precision used when reporting the remaining ratio.
const RatioPlaces = 6

// MoneyPlaces is the precision of every monetary result.
const MoneyPlaces = 2

// Input describes a plan change inside a billing window.
type Input struct {
	FromAmount  decimal.Decimal
	ToAmount    decimal.Decimal
	PeriodStart time.Time
	PeriodEnd   time.Time
	EffectiveAt time.Time
}

// Result holds the outcome of a proration.
type Result struct {
	// RemainingRatio is the unused share of the period in [0, 1], rounded to 6 places.
	RemainingRatio decimal.Decimal
	// Credit for the unused time on the old plan. Never negative.
	Credit decimal.Decimal
	// Charge for the remaining time on the new plan. Never negative.
	Charge decimal.Decimal
	// Total is Charge minus Credit and may be negative.
	Total decimal.Decimal
}

// Calculate computes credit, charge and total for the given input.
func Calculate(in Input) Result {
	totalMs := max(int64(1), in.PeriodEnd.Sub(in.PeriodStart).Milliseconds())
	usedMs := min(max(in.EffectiveAt.Sub(in.PeriodStart).Milliseconds(), 0), totalMs)

	// full precision ratio drives the money math; the rounded one is reported
	ratio := decimal.NewFromInt(totalMs-usedMs).DivRound(decimal.NewFromInt(totalMs), 16)

	credit := nonNegative(in.FromAmount).Mul(ratio).Round(MoneyPlaces)
	charge := nonNegative(in.ToAmount).Mul(ratio).Round(MoneyPlaces)

	return Result{
		RemainingRatio: ratio.Round(RatioPlaces),
		Credit:         credit,
		Charge:         charge,
		Total:          charge.Sub(credit).Round(MoneyPlaces),
	}
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
