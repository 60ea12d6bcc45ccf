package core

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	// SECONDS_PER_YEAR is the accrual year used for the per-annum borrow rate.
	SECONDS_PER_YEAR int64 = 31_536_000

	DEFAULT_COLLATERAL_FACTOR_BPS     int64 = 7_000
	DEFAULT_LIQUIDATION_THRESHOLD_BPS int64 = 8_000
	DEFAULT_LIQUIDATION_BONUS_BPS     int64 = 500
	DEFAULT_BORROW_RATE_BPS           int64 = 500
)

var (
	// BPS_DENOMINATOR scales basis-point parameters. 10_000 bps == 100%.
	BPS_DENOMINATOR = decimal.NewFromInt(10_000)

	// RATE_PRECISION is the fixed-point scale for exchange rates and health
	// factors. A value equal to RATE_PRECISION means exactly 1.0.
	RATE_PRECISION = decimal.NewFromInt(10_000_000)

	// MAX_HEALTH_FACTOR is returned for positions with no outstanding debt.
	MAX_HEALTH_FACTOR = decimal.NewFromInt(math.MaxInt64)

	SECONDS_PER_YEAR_DEC = decimal.NewFromInt(SECONDS_PER_YEAR)
)
