package core

import "github.com/shopspring/decimal"

// ComputeHealthFactor measures position solvency in RATE_PRECISION fixed
// point: RATE_PRECISION is exactly 1.0, below it the position is unsafe.
// Debt-free positions report MAX_HEALTH_FACTOR.
func ComputeHealthFactor(collateral, debt, exchangeRate, thresholdBps decimal.Decimal) decimal.Decimal {
	if !debt.IsPositive() {
		return MAX_HEALTH_FACTOR
	}
	return collateral.
		Mul(exchangeRate).
		Mul(thresholdBps).
		Div(BPS_DENOMINATOR.Mul(debt)).
		Truncate(0)
}

func IsSolvent(healthFactor decimal.Decimal) bool {
	return healthFactor.GreaterThanOrEqual(RATE_PRECISION)
}

// EnsureSolvent checks a position against the liquidation threshold and
// returns ErrHealthFactorTooLow when it is underwater.
func EnsureSolvent(collateral, debt, exchangeRate, thresholdBps decimal.Decimal) error {
	if !IsSolvent(ComputeHealthFactor(collateral, debt, exchangeRate, thresholdBps)) {
		return ErrHealthFactorTooLow
	}
	return nil
}

// ComputeMaxBorrow returns the debt ceiling a position's collateral supports
// under the given factor, in debt-asset base units.
func ComputeMaxBorrow(collateral, exchangeRate, collateralFactorBps decimal.Decimal) decimal.Decimal {
	return collateral.
		Mul(exchangeRate).
		Mul(collateralFactorBps).
		Div(BPS_DENOMINATOR.Mul(RATE_PRECISION)).
		Truncate(0)
}

// ComputeSeizeAmount converts repaid debt plus the liquidation bonus into
// collateral units, capped at the collateral actually held.
func ComputeSeizeAmount(debt, collateral, exchangeRate, bonusBps decimal.Decimal) decimal.Decimal {
	debtWithBonus := debt.
		Mul(BPS_DENOMINATOR.Add(bonusBps)).
		Div(BPS_DENOMINATOR).
		Truncate(0)
	seized := debtWithBonus.
		Mul(RATE_PRECISION).
		Div(exchangeRate).
		Truncate(0)
	return decimal.Min(collateral, seized)
}
