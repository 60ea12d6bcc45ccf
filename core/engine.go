package core

import (
	"context"
	"sync"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Config identifies the assets and accounts the engine settles against.
type Config struct {
	// Admin may update risk parameters and the fallback exchange rate.
	Admin uuid.UUID
	// StakedAsset is the collateral asset (sXLM).
	StakedAsset uuid.UUID
	// NativeAsset is the debt asset (XLM).
	NativeAsset uuid.UUID
	// EngineAccount custodies collateral and the lendable liquidity.
	EngineAccount uuid.UUID
}

// Engine is the collateralized lending core. Every state-changing operation
// accrues interest on the touched position first, settles asset movement
// through the gateway, then persists the position. A single mutex serializes
// operations; per-position locking is not worth it at this scale.
type Engine struct {
	mu sync.Mutex

	cfg     Config
	params  *RiskParams
	store   PositionStore
	gateway AssetGateway
	oracle  RateOracle

	clk  clock.Clock
	log  Log
	sink EventSink

	totalCollateral decimal.Decimal
	totalBorrowed   decimal.Decimal
}

type OptionFunc func(*Engine)

func WithClock(clk clock.Clock) OptionFunc {
	return func(e *Engine) {
		e.clk = clk
	}
}

func WithLog(log Log) OptionFunc {
	return func(e *Engine) {
		e.log = log
	}
}

func WithSink(sink EventSink) OptionFunc {
	return func(e *Engine) {
		e.sink = sink
	}
}

// WithOracle prices collateral from the oracle instead of the static
// RiskParams exchange rate.
func WithOracle(oracle RateOracle) OptionFunc {
	return func(e *Engine) {
		e.oracle = oracle
	}
}

func WithParams(params *RiskParams) OptionFunc {
	return func(e *Engine) {
		e.params = params
	}
}

func NewEngine(cfg Config, store PositionStore, gateway AssetGateway, opts ...OptionFunc) (*Engine, error) {
	engine := &Engine{
		cfg:             cfg,
		params:          DefaultRiskParams(),
		store:           store,
		gateway:         gateway,
		clk:             clock.New(),
		log:             nopLog{},
		sink:            nopSink{},
		totalCollateral: decimal.Zero,
		totalBorrowed:   decimal.Zero,
	}
	for _, opt := range opts {
		opt(engine)
	}

	if err := engine.params.Validate(); err != nil {
		return nil, err
	}
	return engine, nil
}

// LoadAggregates rebuilds the collateral and debt totals from the store.
// Call once after construction when the store holds prior state.
func (e *Engine) LoadAggregates(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	positions, err := e.store.ListPositions(ctx)
	if err != nil {
		return err
	}

	totalCollateral, totalBorrowed := decimal.Zero, decimal.Zero
	for _, position := range positions {
		totalCollateral = totalCollateral.Add(position.Collateral)
		totalBorrowed = totalBorrowed.Add(position.Debt)
	}
	e.totalCollateral = totalCollateral
	e.totalBorrowed = totalBorrowed
	return nil
}

// Deposit moves collateral from the account into engine custody.
func (e *Engine) Deposit(ctx context.Context, account uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	position, err := FindOrCreatePosition(ctx, e.clk, e.store, account)
	if err != nil {
		return err
	}

	now := e.clk.Now().Unix()
	accrued, interest := AccrueInterest(*position, e.params.BorrowRateBps, now)

	if err := e.gateway.Transfer(ctx, e.cfg.StakedAsset, account, e.cfg.EngineAccount, amount); err != nil {
		return errors.Wrapf(ErrTransferFailed, "deposit: %v", err)
	}

	accrued.Collateral = accrued.Collateral.Add(amount)
	accrued.LastUpdate = now
	if err := e.store.UpsertPosition(ctx, &accrued); err != nil {
		return err
	}

	e.totalCollateral = e.totalCollateral.Add(amount)
	e.totalBorrowed = e.totalBorrowed.Add(interest)

	e.emit(Event{
		Type:      EventDeposit,
		AccountId: account,
		Amount:    amount,
		Interest:  interest,
		CreatedAt: now,
	})
	e.log.Debug().Str("account", account.String()).Str("amount", amount.String()).Msg("collateral deposited")
	return nil
}

// Withdraw releases collateral back to the account. The remaining collateral
// must still cover outstanding debt under the collateral factor.
func (e *Engine) Withdraw(ctx context.Context, account uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	position, err := e.findPosition(ctx, account)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInsufficientCollateral
		}
		return err
	}

	now := e.clk.Now().Unix()
	accrued, interest := AccrueInterest(*position, e.params.BorrowRateBps, now)

	if amount.GreaterThan(accrued.Collateral) {
		return ErrInsufficientCollateral
	}

	remaining := accrued.Collateral.Sub(amount)
	if accrued.Debt.IsPositive() {
		rate, err := e.exchangeRate(ctx)
		if err != nil {
			return err
		}
		maxBorrow := ComputeMaxBorrow(remaining, rate, e.params.CollateralFactorBps)
		if accrued.Debt.GreaterThan(maxBorrow) {
			return ErrUnhealthyWithdrawal
		}
	}

	if err := e.gateway.Transfer(ctx, e.cfg.StakedAsset, e.cfg.EngineAccount, account, amount); err != nil {
		return errors.Wrapf(ErrTransferFailed, "withdraw: %v", err)
	}

	accrued.Collateral = remaining
	accrued.LastUpdate = now
	if err := e.store.UpsertPosition(ctx, &accrued); err != nil {
		return err
	}

	e.totalCollateral = e.totalCollateral.Sub(amount)
	e.totalBorrowed = e.totalBorrowed.Add(interest)

	e.emit(Event{
		Type:      EventWithdraw,
		AccountId: account,
		Amount:    amount,
		Interest:  interest,
		CreatedAt: now,
	})
	e.log.Debug().Str("account", account.String()).Str("amount", amount.String()).Msg("collateral withdrawn")
	return nil
}

// Borrow lends the debt asset against the account's collateral. Total debt
// after the borrow must stay within the collateral-factor limit.
func (e *Engine) Borrow(ctx context.Context, account uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	position, err := e.findPosition(ctx, account)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBorrowLimitExceeded
		}
		return err
	}

	now := e.clk.Now().Unix()
	accrued, interest := AccrueInterest(*position, e.params.BorrowRateBps, now)

	rate, err := e.exchangeRate(ctx)
	if err != nil {
		return err
	}

	newDebt := accrued.Debt.Add(amount)
	maxBorrow := ComputeMaxBorrow(accrued.Collateral, rate, e.params.CollateralFactorBps)
	if newDebt.GreaterThan(maxBorrow) {
		return ErrBorrowLimitExceeded
	}
	if err := EnsureSolvent(accrued.Collateral, newDebt, rate, e.params.LiquidationThresholdBps); err != nil {
		return err
	}

	liquidity, err := e.gateway.BalanceOf(ctx, e.cfg.NativeAsset, e.cfg.EngineAccount)
	if err != nil {
		return err
	}
	if amount.GreaterThan(liquidity) {
		return ErrInsufficientLiquidity
	}

	if err := e.gateway.Transfer(ctx, e.cfg.NativeAsset, e.cfg.EngineAccount, account, amount); err != nil {
		return errors.Wrapf(ErrTransferFailed, "borrow: %v", err)
	}

	accrued.Debt = newDebt
	accrued.LastUpdate = now
	if err := e.store.UpsertPosition(ctx, &accrued); err != nil {
		return err
	}

	e.totalBorrowed = e.totalBorrowed.Add(interest).Add(amount)

	e.emit(Event{
		Type:      EventBorrow,
		AccountId: account,
		Amount:    amount,
		Interest:  interest,
		CreatedAt: now,
	})
	e.log.Debug().Str("account", account.String()).Str("amount", amount.String()).Msg("debt drawn")
	return nil
}

// Repay settles up to `amount` of the account's debt. Overpayment is clipped
// to the outstanding debt so only what is owed actually moves.
func (e *Engine) Repay(ctx context.Context, account uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	position, err := e.findPosition(ctx, account)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, ErrNoDebt
		}
		return decimal.Zero, err
	}

	now := e.clk.Now().Unix()
	accrued, interest := AccrueInterest(*position, e.params.BorrowRateBps, now)

	if !accrued.Debt.IsPositive() {
		return decimal.Zero, ErrNoDebt
	}

	applied := decimal.Min(amount, accrued.Debt)
	if err := e.gateway.Transfer(ctx, e.cfg.NativeAsset, account, e.cfg.EngineAccount, applied); err != nil {
		return decimal.Zero, errors.Wrapf(ErrTransferFailed, "repay: %v", err)
	}

	accrued.Debt = accrued.Debt.Sub(applied)
	accrued.LastUpdate = now
	if err := e.store.UpsertPosition(ctx, &accrued); err != nil {
		return decimal.Zero, err
	}

	e.totalBorrowed = e.totalBorrowed.Add(interest).Sub(applied)

	e.emit(Event{
		Type:      EventRepay,
		AccountId: account,
		Amount:    applied,
		Interest:  interest,
		CreatedAt: now,
	})
	e.log.Debug().Str("account", account.String()).Str("applied", applied.String()).Msg("debt repaid")
	return applied, nil
}

// Liquidate closes an unsafe position: the liquidator covers the full
// accrued debt and receives collateral worth the debt plus the liquidation
// bonus, capped at what the position holds. Returns the seized collateral.
func (e *Engine) Liquidate(ctx context.Context, liquidator, account uuid.UUID) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	position, err := e.findPosition(ctx, account)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, ErrNoDebt
		}
		return decimal.Zero, err
	}

	now := e.clk.Now().Unix()
	accrued, interest := AccrueInterest(*position, e.params.BorrowRateBps, now)

	if !accrued.Debt.IsPositive() {
		return decimal.Zero, ErrNoDebt
	}

	rate, err := e.exchangeRate(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	healthFactor := ComputeHealthFactor(accrued.Collateral, accrued.Debt, rate, e.params.LiquidationThresholdBps)
	if IsSolvent(healthFactor) {
		return decimal.Zero, ErrPositionHealthy
	}

	debt := accrued.Debt
	seized := ComputeSeizeAmount(debt, accrued.Collateral, rate, e.params.LiquidationBonusBps)

	if err := e.gateway.Transfer(ctx, e.cfg.NativeAsset, liquidator, e.cfg.EngineAccount, debt); err != nil {
		return decimal.Zero, errors.Wrapf(ErrTransferFailed, "liquidate repay: %v", err)
	}
	if err := e.gateway.Transfer(ctx, e.cfg.StakedAsset, e.cfg.EngineAccount, liquidator, seized); err != nil {
		return decimal.Zero, errors.Wrapf(ErrTransferFailed, "liquidate seize: %v", err)
	}

	accrued.Debt = decimal.Zero
	accrued.Collateral = accrued.Collateral.Sub(seized)
	accrued.LastUpdate = now
	if err := e.store.UpsertPosition(ctx, &accrued); err != nil {
		return decimal.Zero, err
	}

	e.totalBorrowed = e.totalBorrowed.Add(interest).Sub(debt)
	e.totalCollateral = e.totalCollateral.Sub(seized)

	e.emit(Event{
		Type:           EventLiquidate,
		AccountId:      account,
		CounterpartyId: liquidator,
		Amount:         debt,
		Seized:         seized,
		Interest:       interest,
		CreatedAt:      now,
	})
	e.log.Info().
		Str("account", account.String()).
		Str("liquidator", liquidator.String()).
		Str("debt", debt.String()).
		Str("seized", seized.String()).
		Str("healthFactor", healthFactor.String()).
		Msg("position liquidated")
	return seized, nil
}

// SetParams merges a partial risk-parameter update. Admin only.
func (e *Engine) SetParams(ctx context.Context, caller uuid.UUID, update *RiskParams) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.Admin {
		return ErrUnauthorized
	}
	if err := e.params.Configure(update); err != nil {
		return err
	}

	e.emit(Event{
		Type:      EventParamsUpdated,
		AccountId: caller,
		CreatedAt: e.clk.Now().Unix(),
	})
	e.log.Info().Msg("risk parameters updated")
	return nil
}

// SetCollateralFactor updates the borrow-side collateral factor. Admin only.
func (e *Engine) SetCollateralFactor(ctx context.Context, caller uuid.UUID, bps decimal.Decimal) error {
	return e.SetParams(ctx, caller, &RiskParams{CollateralFactorBps: bps})
}

// SetLiquidationThreshold updates the liquidation threshold. Admin only.
func (e *Engine) SetLiquidationThreshold(ctx context.Context, caller uuid.UUID, bps decimal.Decimal) error {
	return e.SetParams(ctx, caller, &RiskParams{LiquidationThresholdBps: bps})
}

// SetLiquidationBonus updates the liquidator bonus. Admin only.
func (e *Engine) SetLiquidationBonus(ctx context.Context, caller uuid.UUID, bps decimal.Decimal) error {
	return e.SetParams(ctx, caller, &RiskParams{LiquidationBonusBps: bps})
}

// SetBorrowRate updates the annual borrow rate. Admin only.
func (e *Engine) SetBorrowRate(ctx context.Context, caller uuid.UUID, bps decimal.Decimal) error {
	return e.SetParams(ctx, caller, &RiskParams{BorrowRateBps: bps})
}

// SetExchangeRate updates the fallback rate used when no oracle is wired.
// Admin only.
func (e *Engine) SetExchangeRate(ctx context.Context, caller uuid.UUID, rate decimal.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.Admin {
		return ErrUnauthorized
	}
	if !rate.IsPositive() {
		return ErrInvalidConfig
	}
	e.params.ExchangeRate = rate
	return nil
}

// GetPosition returns the position with interest accrued to now, without
// persisting the accrual. Unknown accounts report an empty position.
func (e *Engine) GetPosition(ctx context.Context, account uuid.UUID) (*Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	accrued, _, err := e.viewPosition(ctx, account)
	if err != nil {
		return nil, err
	}
	return accrued, nil
}

// HealthFactor reports solvency against the liquidation threshold, with
// interest accrued to now.
func (e *Engine) HealthFactor(ctx context.Context, account uuid.UUID) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	accrued, rate, err := e.viewPosition(ctx, account)
	if err != nil {
		return decimal.Zero, err
	}
	return ComputeHealthFactor(accrued.Collateral, accrued.Debt, rate, e.params.LiquidationThresholdBps), nil
}

// MaxBorrow reports the remaining borrow headroom for the account.
func (e *Engine) MaxBorrow(ctx context.Context, account uuid.UUID) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	accrued, rate, err := e.viewPosition(ctx, account)
	if err != nil {
		return decimal.Zero, err
	}

	limit := ComputeMaxBorrow(accrued.Collateral, rate, e.params.CollateralFactorBps)
	headroom := limit.Sub(accrued.Debt)
	if headroom.IsNegative() {
		return decimal.Zero, nil
	}
	return headroom, nil
}

// AvailableLiquidity is the debt asset held by the engine account.
func (e *Engine) AvailableLiquidity(ctx context.Context) (decimal.Decimal, error) {
	return e.gateway.BalanceOf(ctx, e.cfg.NativeAsset, e.cfg.EngineAccount)
}

func (e *Engine) TotalCollateral() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalCollateral.Copy()
}

func (e *Engine) TotalBorrowed() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalBorrowed.Copy()
}

func (e *Engine) Params() *RiskParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params.Clone()
}

func (e *Engine) findPosition(ctx context.Context, account uuid.UUID) (*Position, error) {
	return e.store.FindPosition(ctx, account)
}

// viewPosition loads and accrues a position for read-only callers. The
// caller must hold e.mu.
func (e *Engine) viewPosition(ctx context.Context, account uuid.UUID) (*Position, decimal.Decimal, error) {
	rate, err := e.exchangeRate(ctx)
	if err != nil {
		return nil, decimal.Zero, err
	}

	position, err := e.findPosition(ctx, account)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Position{
				AccountId:  account,
				Collateral: decimal.Zero,
				Debt:       decimal.Zero,
				LastUpdate: e.clk.Now().Unix(),
			}, rate, nil
		}
		return nil, decimal.Zero, err
	}

	accrued, _ := AccrueInterest(*position, e.params.BorrowRateBps, e.clk.Now().Unix())
	return &accrued, rate, nil
}

func (e *Engine) exchangeRate(ctx context.Context) (decimal.Decimal, error) {
	if e.oracle != nil {
		return e.oracle.CurrentRate(ctx)
	}
	return e.params.ExchangeRate, nil
}

func (e *Engine) emit(event Event) {
	e.sink.Emit(event)
}
