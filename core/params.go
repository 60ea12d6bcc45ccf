package core

import "github.com/shopspring/decimal"

// RiskParams holds the engine's risk configuration. Factors and rates are
// expressed in basis points, the exchange rate in RATE_PRECISION fixed point.
type RiskParams struct {
	// CollateralFactorBps caps borrow power at origination time.
	CollateralFactorBps decimal.Decimal `json:"collateralFactorBps"`
	// LiquidationThresholdBps is the looser bound used for liquidation
	// eligibility and health reporting. Must be >= CollateralFactorBps.
	LiquidationThresholdBps decimal.Decimal `json:"liquidationThresholdBps"`
	// LiquidationBonusBps is the liquidator's premium over repaid debt.
	LiquidationBonusBps decimal.Decimal `json:"liquidationBonusBps"`
	// BorrowRateBps is the simple per-annum interest rate.
	BorrowRateBps decimal.Decimal `json:"borrowRateBps"`
	// ExchangeRate prices collateral in debt-asset terms when no oracle is
	// wired. RATE_PRECISION means 1:1.
	ExchangeRate decimal.Decimal `json:"exchangeRate"`
}

func DefaultRiskParams() *RiskParams {
	return &RiskParams{
		CollateralFactorBps:     decimal.NewFromInt(DEFAULT_COLLATERAL_FACTOR_BPS),
		LiquidationThresholdBps: decimal.NewFromInt(DEFAULT_LIQUIDATION_THRESHOLD_BPS),
		LiquidationBonusBps:     decimal.NewFromInt(DEFAULT_LIQUIDATION_BONUS_BPS),
		BorrowRateBps:           decimal.NewFromInt(DEFAULT_BORROW_RATE_BPS),
		ExchangeRate:            RATE_PRECISION,
	}
}

// Configure overwrites only the fields set on update, then validates the
// merged result. A zero decimal means "leave unchanged".
func (p *RiskParams) Configure(update *RiskParams) error {
	merged := p.Clone()
	if update.CollateralFactorBps.IsPositive() {
		merged.CollateralFactorBps = update.CollateralFactorBps
	}
	if update.LiquidationThresholdBps.IsPositive() {
		merged.LiquidationThresholdBps = update.LiquidationThresholdBps
	}
	if update.LiquidationBonusBps.IsPositive() {
		merged.LiquidationBonusBps = update.LiquidationBonusBps
	}
	if update.BorrowRateBps.IsPositive() {
		merged.BorrowRateBps = update.BorrowRateBps
	}
	if update.ExchangeRate.IsPositive() {
		merged.ExchangeRate = update.ExchangeRate
	}

	if err := merged.Validate(); err != nil {
		return err
	}
	*p = *merged
	return nil
}

func (p *RiskParams) Validate() error {
	if !p.CollateralFactorBps.IsPositive() || p.CollateralFactorBps.GreaterThan(BPS_DENOMINATOR) {
		return ErrInvalidConfig
	}
	if !p.LiquidationThresholdBps.IsPositive() || p.LiquidationThresholdBps.GreaterThan(BPS_DENOMINATOR) {
		return ErrInvalidConfig
	}
	if p.LiquidationThresholdBps.LessThan(p.CollateralFactorBps) {
		return ErrInvalidConfig
	}
	if p.LiquidationBonusBps.IsNegative() || p.LiquidationBonusBps.GreaterThan(BPS_DENOMINATOR) {
		return ErrInvalidConfig
	}
	if p.BorrowRateBps.IsNegative() {
		return ErrInvalidConfig
	}
	if !p.ExchangeRate.IsPositive() {
		return ErrInvalidConfig
	}
	return nil
}

func (p *RiskParams) Clone() *RiskParams {
	return &RiskParams{
		CollateralFactorBps:     p.CollateralFactorBps.Copy(),
		LiquidationThresholdBps: p.LiquidationThresholdBps.Copy(),
		LiquidationBonusBps:     p.LiquidationBonusBps.Copy(),
		BorrowRateBps:           p.BorrowRateBps.Copy(),
		ExchangeRate:            p.ExchangeRate.Copy(),
	}
}
