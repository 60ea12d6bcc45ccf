package core

import "github.com/shopspring/decimal"

// AccrueInterest brings a position's debt current at `now` using a simple
// (non-compounding) per-annum rate:
//
//	interest = debt * rateBps * elapsed / (BPS_DENOMINATOR * SECONDS_PER_YEAR)
//
// The division truncates toward zero, so sub-unit interest within a single
// accrual window rounds in the borrower's favor. Positions with no debt or
// no elapsed time come back unchanged. The input is not mutated.
func AccrueInterest(position Position, borrowRateBps decimal.Decimal, now int64) (Position, decimal.Decimal) {
	elapsed := now - position.LastUpdate
	if elapsed <= 0 || !position.Debt.IsPositive() || !borrowRateBps.IsPositive() {
		return position, decimal.Zero
	}

	interest := position.Debt.
		Mul(borrowRateBps).
		Mul(decimal.NewFromInt(elapsed)).
		Div(BPS_DENOMINATOR.Mul(SECONDS_PER_YEAR_DEC)).
		Truncate(0)

	position.Debt = position.Debt.Add(interest)
	position.LastUpdate = now
	return position, interest
}
