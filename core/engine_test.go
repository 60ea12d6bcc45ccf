package core

import (
	"context"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajdeep-singha/sXLM/token"
)

type engineFixture struct {
	engine *Engine
	ledger *token.Ledger
	clk    *clock.Mock

	admin         uuid.UUID
	engineAccount uuid.UUID
	xlm           uuid.UUID
	sxlm          uuid.UUID
}

func newEngineFixture(t *testing.T, opts ...OptionFunc) *engineFixture {
	t.Helper()

	admin := uuid.Must(uuid.NewV4())
	engineAccount := uuid.Must(uuid.NewV4())
	ledger := token.NewLedger()

	xlm, err := ledger.CreateAsset("XLM", admin)
	require.NoError(t, err)
	sxlm, err := ledger.CreateAsset("sXLM", admin)
	require.NoError(t, err)

	clk := clock.NewMock()
	opts = append([]OptionFunc{WithClock(clk)}, opts...)

	engine, err := NewEngine(Config{
		Admin:         admin,
		StakedAsset:   sxlm.Id,
		NativeAsset:   xlm.Id,
		EngineAccount: engineAccount,
	}, NewMemoryPositionStore(), ledger, opts...)
	require.NoError(t, err)

	// lendable liquidity
	require.NoError(t, ledger.Mint(context.Background(), xlm.Id, admin, engineAccount, decimal.NewFromInt(1_000_000)))

	return &engineFixture{
		engine:        engine,
		ledger:        ledger,
		clk:           clk,
		admin:         admin,
		engineAccount: engineAccount,
		xlm:           xlm.Id,
		sxlm:          sxlm.Id,
	}
}

func (f *engineFixture) newAccount(t *testing.T, collateralBalance int64) uuid.UUID {
	t.Helper()

	account := uuid.Must(uuid.NewV4())
	if collateralBalance > 0 {
		require.NoError(t, f.ledger.Mint(context.Background(), f.sxlm, f.admin, account, decimal.NewFromInt(collateralBalance)))
	}
	return account
}

func (f *engineFixture) fundNative(t *testing.T, account uuid.UUID, amount int64) {
	t.Helper()
	require.NoError(t, f.ledger.Mint(context.Background(), f.xlm, f.admin, account, decimal.NewFromInt(amount)))
}

func TestBorrowWithinCollateralFactor(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := f.newAccount(t, 1000)

	require.NoError(t, f.engine.Deposit(ctx, account, decimal.NewFromInt(1000)))

	err := f.engine.Borrow(ctx, account, decimal.NewFromInt(700))
	assert.NoError(t, err)

	balance, err := f.ledger.BalanceOf(ctx, f.xlm, account)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(700)), "expected 700, got %s", balance)
}

func TestBorrowBeyondCollateralFactor(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := f.newAccount(t, 1000)

	require.NoError(t, f.engine.Deposit(ctx, account, decimal.NewFromInt(1000)))

	err := f.engine.Borrow(ctx, account, decimal.NewFromInt(701))
	assert.ErrorIs(t, err, ErrBorrowLimitExceeded)

	// the failed borrow leaves no debt behind
	position, err := f.engine.GetPosition(ctx, account)
	require.NoError(t, err)
	assert.True(t, position.Debt.IsZero())
}

func TestBorrowWithoutPosition(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := f.newAccount(t, 0)

	err := f.engine.Borrow(ctx, account, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, ErrBorrowLimitExceeded)
}

func TestBorrowInsufficientLiquidity(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := f.newAccount(t, 10_000_000)

	require.NoError(t, f.engine.Deposit(ctx, account, decimal.NewFromInt(10_000_000)))

	err := f.engine.Borrow(ctx, account, decimal.NewFromInt(2_000_000))
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestDepositInvalidAmount(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := f.newAccount(t, 1000)

	assert.ErrorIs(t, f.engine.Deposit(ctx, account, decimal.Zero), ErrInvalidAmount)
	assert.ErrorIs(t, f.engine.Deposit(ctx, account, decimal.NewFromInt(-5)), ErrInvalidAmount)
}

func TestDepositWithoutBalance(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := f.newAccount(t, 0)

	err := f.engine.Deposit(ctx, account, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, ErrTransferFailed)
}

func TestWithdrawExceedsCollateral(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := f.newAccount(t, 1000)

	require.NoError(t, f.engine.Deposit(ctx, account, decimal.NewFromInt(1000)))

	err := f.engine.Withdraw(ctx, account, decimal.NewFromInt(1001))
	assert.ErrorIs(t, err, ErrInsufficientCollateral)
}

func TestWithdrawUnknownAccount(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	err := f.engine.Withdraw(ctx, uuid.Must(uuid.NewV4()), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrInsufficientCollateral)
}

func TestWithdrawGuardsOutstandingDebt(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := f.newAccount(t, 1000)

	require.NoError(t, f.engine.Deposit(ctx, account, decimal.NewFromInt(1000)))
	require.NoError(t, f.engine.Borrow(ctx, account, decimal.NewFromInt(700)))

	// any withdrawal would push debt past the 70% limit
	err := f.engine.Withdraw(ctx, account, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrUnhealthyWithdrawal)
}

func TestWithdrawLeavesHealthyPosition(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := f.newAccount(t, 1000)

	require.NoError(t, f.engine.Deposit(ctx, account, decimal.NewFromInt(1000)))
	require.NoError(t, f.engine.Borrow(ctx, account, decimal.NewFromInt(350)))

	// 500 remaining supports 350 of debt at a 70% factor
	assert.NoError(t, f.engine.Withdraw(ctx, account, decimal.NewFromInt(500)))

	err := f.engine.Withdraw(ctx, account, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrUnhealthyWithdrawal)
}

func TestWithdrawFullWithoutDebt(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := f.newAccount(t, 1000)

	require.NoError(t, f.engine.Deposit(ctx, account, decimal.NewFromInt(1000)))
	require.NoError(t, f.engine.Withdraw(ctx, account, decimal.NewFromInt(1000)))

	balance, err := f.ledger.BalanceOf(ctx, f.sxlm, account)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(1000)))

	position, err := f.engine.GetPosition(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, PositionStateEmpty, position.State())
}

func TestHealthFactorReporting(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := f.newAccount(t, 10_000)

	require.NoError(t, f.engine.Deposit(ctx, account, decimal.NewFromInt(10_000)))
	require.NoError(t, f.engine.Borrow(ctx, account, decimal.NewFromInt(7000)))

	healthFactor, err := f.engine.HealthFactor(ctx, account)
	require.NoError(t, err)
	assert.True(t, healthFactor.Equal(decimal.NewFromInt(11_428_571)), "expected 11428571, got %s", healthFactor)
	assert.True(t, IsSolvent(healthFactor))
}

func TestHealthFactorUnknownAccount(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	healthFactor, err := f.engine.HealthFactor(ctx, uuid.Must(uuid.NewV4()))
	require.NoError(t, err)
	assert.True(t, healthFactor.Equal(MAX_HEALTH_FACTOR))
}

func TestLiquidateUnsafePosition(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := f.newAccount(t, 10_000)
	liquidator := f.newAccount(t, 0)
	f.fundNative(t, liquidator, 7000)

	require.NoError(t, f.engine.Deposit(ctx, account, decimal.NewFromInt(10_000)))
	require.NoError(t, f.engine.Borrow(ctx, account, decimal.NewFromInt(7000)))

	// tighten the threshold until the position goes under water
	require.NoError(t, f.engine.SetParams(ctx, f.admin, &RiskParams{
		CollateralFactorBps:     decimal.NewFromInt(5000),
		LiquidationThresholdBps: decimal.NewFromInt(5000),
	}))

	healthFactor, err := f.engine.HealthFactor(ctx, account)
	require.NoError(t, err)
	assert.True(t, healthFactor.Equal(decimal.NewFromInt(7_142_857)), "expected 7142857, got %s", healthFactor)

	seized, err := f.engine.Liquidate(ctx, liquidator, account)
	require.NoError(t, err)
	assert.True(t, seized.Equal(decimal.NewFromInt(7350)), "expected 7350, got %s", seized)

	position, err := f.engine.GetPosition(ctx, account)
	require.NoError(t, err)
	assert.True(t, position.Debt.IsZero())
	assert.True(t, position.Collateral.Equal(decimal.NewFromInt(2650)), "expected 2650, got %s", position.Collateral)

	liquidatorStaked, err := f.ledger.BalanceOf(ctx, f.sxlm, liquidator)
	require.NoError(t, err)
	assert.True(t, liquidatorStaked.Equal(decimal.NewFromInt(7350)))

	liquidatorNative, err := f.ledger.BalanceOf(ctx, f.xlm, liquidator)
	require.NoError(t, err)
	assert.True(t, liquidatorNative.IsZero())
}

func TestLiquidateHealthyPosition(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := f.newAccount(t, 10_000)
	liquidator := f.newAccount(t, 0)
	f.fundNative(t, liquidator, 10_000)

	require.NoError(t, f.engine.Deposit(ctx, account, decimal.NewFromInt(10_000)))
	require.NoError(t, f.engine.Borrow(ctx, account, decimal.NewFromInt(7000)))

	_, err := f.engine.Liquidate(ctx, liquidator, account)
	assert.ErrorIs(t, err, ErrPositionHealthy)
}

func TestLiquidateDebtFreePosition(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := f.newAccount(t, 10_000)

	require.NoError(t, f.engine.Deposit(ctx, account, decimal.NewFromInt(10_000)))

	_, err := f.engine.Liquidate(ctx, f.admin, account)
	assert.ErrorIs(t, err, ErrNoDebt)
}

func TestRepayClipsOverpayment(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := f.newAccount(t, 10_000)
	f.fundNative(t, account, 10_000)

	require.NoError(t, f.engine.Deposit(ctx, account, decimal.NewFromInt(10_000)))
	require.NoError(t, f.engine.Borrow(ctx, account, decimal.NewFromInt(3000)))

	before, err := f.ledger.BalanceOf(ctx, f.xlm, account)
	require.NoError(t, err)

	applied, err := f.engine.Repay(ctx, account, decimal.NewFromInt(10_000))
	require.NoError(t, err)
	assert.True(t, applied.Equal(decimal.NewFromInt(3000)), "expected 3000, got %s", applied)

	after, err := f.ledger.BalanceOf(ctx, f.xlm, account)
	require.NoError(t, err)
	assert.True(t, before.Sub(after).Equal(decimal.NewFromInt(3000)), "only the owed 3000 should move")

	position, err := f.engine.GetPosition(ctx, account)
	require.NoError(t, err)
	assert.True(t, position.Debt.IsZero())
	assert.Equal(t, PositionStateCollateralized, position.State())
}

func TestRepayWithoutDebt(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := f.newAccount(t, 1000)
	f.fundNative(t, account, 1000)

	require.NoError(t, f.engine.Deposit(ctx, account, decimal.NewFromInt(1000)))

	_, err := f.engine.Repay(ctx, account, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, ErrNoDebt)

	_, err = f.engine.Repay(ctx, uuid.Must(uuid.NewV4()), decimal.NewFromInt(100))
	assert.ErrorIs(t, err, ErrNoDebt)
}

func TestInterestAccruesOverTime(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := f.newAccount(t, 10_000)

	require.NoError(t, f.engine.Deposit(ctx, account, decimal.NewFromInt(10_000)))
	require.NoError(t, f.engine.Borrow(ctx, account, decimal.NewFromInt(7000)))

	f.clk.Add(time.Duration(SECONDS_PER_YEAR) * time.Second)

	position, err := f.engine.GetPosition(ctx, account)
	require.NoError(t, err)
	assert.True(t, position.Debt.Equal(decimal.NewFromInt(7350)), "expected 7350 after a year at 5%%, got %s", position.Debt)

	// the view did not persist: reading twice yields the same debt
	again, err := f.engine.GetPosition(ctx, account)
	require.NoError(t, err)
	assert.True(t, again.Debt.Equal(position.Debt))
}

func TestInterestCapitalizedByRepay(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := f.newAccount(t, 10_000)
	f.fundNative(t, account, 10_000)

	require.NoError(t, f.engine.Deposit(ctx, account, decimal.NewFromInt(10_000)))
	require.NoError(t, f.engine.Borrow(ctx, account, decimal.NewFromInt(7000)))

	f.clk.Add(time.Duration(SECONDS_PER_YEAR) * time.Second)

	applied, err := f.engine.Repay(ctx, account, decimal.NewFromInt(100_000))
	require.NoError(t, err)
	assert.True(t, applied.Equal(decimal.NewFromInt(7350)), "expected 7350, got %s", applied)
	assert.True(t, f.engine.TotalBorrowed().IsZero(), "expected zero total borrowed, got %s", f.engine.TotalBorrowed())
}

func TestExchangeRateScalesBorrowLimit(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := f.newAccount(t, 1000)

	require.NoError(t, f.engine.SetExchangeRate(ctx, f.admin, RATE_PRECISION.Mul(decimal.NewFromInt(2))))
	require.NoError(t, f.engine.Deposit(ctx, account, decimal.NewFromInt(1000)))

	headroom, err := f.engine.MaxBorrow(ctx, account)
	require.NoError(t, err)
	assert.True(t, headroom.Equal(decimal.NewFromInt(1400)), "expected 1400, got %s", headroom)

	assert.NoError(t, f.engine.Borrow(ctx, account, decimal.NewFromInt(1400)))
	assert.ErrorIs(t, f.engine.Borrow(ctx, account, decimal.NewFromInt(1)), ErrBorrowLimitExceeded)
}

func TestSetParamsAuthorization(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	outsider := uuid.Must(uuid.NewV4())

	err := f.engine.SetParams(ctx, outsider, &RiskParams{BorrowRateBps: decimal.NewFromInt(100)})
	assert.ErrorIs(t, err, ErrUnauthorized)

	err = f.engine.SetExchangeRate(ctx, outsider, RATE_PRECISION)
	assert.ErrorIs(t, err, ErrUnauthorized)

	assert.NoError(t, f.engine.SetParams(ctx, f.admin, &RiskParams{BorrowRateBps: decimal.NewFromInt(100)}))
	assert.True(t, f.engine.Params().BorrowRateBps.Equal(decimal.NewFromInt(100)))
}

func TestNamedParamSetters(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	assert.NoError(t, f.engine.SetCollateralFactor(ctx, f.admin, decimal.NewFromInt(6000)))
	assert.NoError(t, f.engine.SetLiquidationThreshold(ctx, f.admin, decimal.NewFromInt(7500)))
	assert.NoError(t, f.engine.SetLiquidationBonus(ctx, f.admin, decimal.NewFromInt(800)))
	assert.NoError(t, f.engine.SetBorrowRate(ctx, f.admin, decimal.NewFromInt(250)))

	params := f.engine.Params()
	assert.True(t, params.CollateralFactorBps.Equal(decimal.NewFromInt(6000)))
	assert.True(t, params.LiquidationThresholdBps.Equal(decimal.NewFromInt(7500)))
	assert.True(t, params.LiquidationBonusBps.Equal(decimal.NewFromInt(800)))
	assert.True(t, params.BorrowRateBps.Equal(decimal.NewFromInt(250)))

	outsider := uuid.Must(uuid.NewV4())
	assert.ErrorIs(t, f.engine.SetBorrowRate(ctx, outsider, decimal.NewFromInt(100)), ErrUnauthorized)
}

func TestSetParamsRejectsInvalidMerge(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	// threshold may not fall below the collateral factor
	err := f.engine.SetParams(ctx, f.admin, &RiskParams{LiquidationThresholdBps: decimal.NewFromInt(5000)})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestAggregatesTrackOperations(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := f.newAccount(t, 10_000)
	f.fundNative(t, account, 10_000)

	require.NoError(t, f.engine.Deposit(ctx, account, decimal.NewFromInt(10_000)))
	assert.True(t, f.engine.TotalCollateral().Equal(decimal.NewFromInt(10_000)))

	require.NoError(t, f.engine.Borrow(ctx, account, decimal.NewFromInt(4000)))
	assert.True(t, f.engine.TotalBorrowed().Equal(decimal.NewFromInt(4000)))

	_, err := f.engine.Repay(ctx, account, decimal.NewFromInt(1500))
	require.NoError(t, err)
	assert.True(t, f.engine.TotalBorrowed().Equal(decimal.NewFromInt(2500)))

	require.NoError(t, f.engine.Withdraw(ctx, account, decimal.NewFromInt(1000)))
	assert.True(t, f.engine.TotalCollateral().Equal(decimal.NewFromInt(9000)))
}

func TestLoadAggregates(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := f.newAccount(t, 10_000)

	require.NoError(t, f.engine.Deposit(ctx, account, decimal.NewFromInt(10_000)))
	require.NoError(t, f.engine.Borrow(ctx, account, decimal.NewFromInt(4000)))

	require.NoError(t, f.engine.LoadAggregates(ctx))
	assert.True(t, f.engine.TotalCollateral().Equal(decimal.NewFromInt(10_000)))
	assert.True(t, f.engine.TotalBorrowed().Equal(decimal.NewFromInt(4000)))
}
