// README: Fare engine; pure rate-table pricing, no I/O.
package fare

import (
	"math"

	"transit/internal/types"
)

// Published rates, in cents.
const (
	baseStandard = 200
	baseReduced  = 100 // senior / disabled / child
	baseStudent  = 150
	baseVeteran  = 0

	sameDaySurcharge = 100 // standard and student only
	perMileCents     = 250 // out-of-town miles
)

// Quote prices one ride request. Deterministic: the same input always
// yields the same amount, and the amount is never negative.
//
// Group rule: each rider past the first pays half the base rate whenever
// the base rate is non-zero. The half-price discount applies uniformly
// across categories; a free (veteran) base adds nothing per extra rider.
func Quote(in Input) types.Money {
	base := baseRate(in.Category, in.SameDay)

	total := base
	if in.Party > 1 && base > 0 {
		extra := int64(in.Party - 1)
		total += (base / 2) * extra
	}

	if in.OutOfTown && in.Miles > 0 {
		total += int64(math.Round(in.Miles * perMileCents))
	}

	if total < 0 {
		total = 0
	}
	return types.USD(total)
}

func baseRate(c Category, sameDay bool) int64 {
	var base int64
	switch c {
	case CategorySenior, CategoryDisabled, CategoryChild:
		base = baseReduced
	case CategoryStudent:
		base = baseStudent
	case CategoryVeteran:
		base = baseVeteran
	default:
		// Unrecognized categories bill at the standard rate.
		base = baseStandard
	}

	if sameDay && (c == CategoryStandard || c == CategoryStudent) {
		base += sameDaySurcharge
	}
	return base
}
