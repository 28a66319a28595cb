// Package proration computes pro-rata credit and charge amounts for a
// mid-cycle plan change.
//
// The calculation is pure: inputs are clamped rather than rejected, so
// Calculate never fails. Money values use shopspring/decimal and are rounded
// half away from zero to two decimal places.
//
//	res := proration.Calculate(proration.Input{
//		FromAmount:  decimal.RequireFromString("99.00"),
//		ToAmount:    decimal.RequireFromString("249.00"),
//		PeriodStart: start,
//		PeriodEnd:   end,
//		EffectiveAt: time.Now(),
//	})
//	// res.Total == res.Charge - res.Credit
package proration
