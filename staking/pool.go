package staking

import (
	"context"
	"sync"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rajdeep-singha/sXLM/core"
)

var (
	ErrPaused              = errors.New("pool is paused")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidConfig       = errors.New("invalid pool configuration")
	ErrUnauthorized        = errors.New("caller is not authorized")
	ErrInsufficientBalance = errors.New("insufficient staked balance")
	ErrExcessiveSlash      = errors.New("slash exceeds total staked")
)

type (
	// AssetLedger is the slice of the token ledger the pool needs. The pool
	// account must be the registered minter of the staked asset.
	AssetLedger interface {
		Mint(ctx context.Context, asset, caller, to uuid.UUID, amount decimal.Decimal) error
		Burn(ctx context.Context, asset, caller, from uuid.UUID, amount decimal.Decimal) error
		Transfer(ctx context.Context, asset, from, to uuid.UUID, amount decimal.Decimal) error
		TotalSupply(ctx context.Context, asset uuid.UUID) (decimal.Decimal, error)
	}

	// StakeAllocator distributes newly staked funds across validators.
	// Callers authenticate as the pool account.
	StakeAllocator interface {
		AllocateStake(ctx context.Context, caller uuid.UUID, amount decimal.Decimal) error
	}

	// WithdrawalEnqueuer parks redemptions the liquidity buffer cannot
	// cover until unbonding completes. Callers authenticate as the pool
	// account.
	WithdrawalEnqueuer interface {
		Enqueue(ctx context.Context, caller, account uuid.UUID, amount decimal.Decimal) (uint64, error)
	}
)

type Config struct {
	Admin          uuid.UUID
	StakedAsset    uuid.UUID
	NativeAsset    uuid.UUID
	PoolAccount    uuid.UUID
	Treasury       uuid.UUID
	ProtocolFeeBps decimal.Decimal
}

// Pool mints sXLM against staked XLM. The exchange rate floats with rewards
// and slashing: rate = totalStaked * RATE_PRECISION / supply.
type Pool struct {
	mu sync.Mutex

	cfg       Config
	ledger    AssetLedger
	allocator StakeAllocator
	queue     WithdrawalEnqueuer

	clk clock.Clock
	log zerolog.Logger

	totalStaked     decimal.Decimal
	liquidityBuffer decimal.Decimal
	treasuryAccrued decimal.Decimal
	lastRewardAt    int64
	paused          bool
}

type OptionFunc func(*Pool)

func WithClock(clk clock.Clock) OptionFunc {
	return func(p *Pool) {
		p.clk = clk
	}
}

func WithLogger(log zerolog.Logger) OptionFunc {
	return func(p *Pool) {
		p.log = log
	}
}

func WithAllocator(allocator StakeAllocator) OptionFunc {
	return func(p *Pool) {
		p.allocator = allocator
	}
}

func WithWithdrawalQueue(queue WithdrawalEnqueuer) OptionFunc {
	return func(p *Pool) {
		p.queue = queue
	}
}

func NewPool(cfg Config, ledger AssetLedger, opts ...OptionFunc) (*Pool, error) {
	if cfg.ProtocolFeeBps.IsNegative() || cfg.ProtocolFeeBps.GreaterThan(core.BPS_DENOMINATOR) {
		return nil, ErrInvalidConfig
	}

	pool := &Pool{
		cfg:             cfg,
		ledger:          ledger,
		clk:             clock.New(),
		log:             zerolog.Nop(),
		totalStaked:     decimal.Zero,
		liquidityBuffer: decimal.Zero,
		treasuryAccrued: decimal.Zero,
	}
	for _, opt := range opts {
		opt(pool)
	}
	return pool, nil
}

// Stake deposits native XLM and mints sXLM at the current exchange rate.
// The first stake mints 1:1.
func (p *Pool) Stake(ctx context.Context, account uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused {
		return decimal.Zero, ErrPaused
	}

	supply, err := p.ledger.TotalSupply(ctx, p.cfg.StakedAsset)
	if err != nil {
		return decimal.Zero, err
	}

	minted := amount
	if supply.IsPositive() && p.totalStaked.IsPositive() {
		minted = amount.Mul(supply).Div(p.totalStaked).Truncate(0)
	}
	if !minted.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	if err := p.ledger.Transfer(ctx, p.cfg.NativeAsset, account, p.cfg.PoolAccount, amount); err != nil {
		return decimal.Zero, err
	}
	if err := p.ledger.Mint(ctx, p.cfg.StakedAsset, p.cfg.PoolAccount, account, minted); err != nil {
		return decimal.Zero, err
	}

	p.totalStaked = p.totalStaked.Add(amount)

	if p.allocator != nil {
		if err := p.allocator.AllocateStake(ctx, p.cfg.PoolAccount, amount); err != nil {
			p.log.Warn().Err(err).Msg("stake allocation deferred")
		}
	}

	p.log.Debug().
		Str("account", account.String()).
		Str("amount", amount.String()).
		Str("minted", minted.String()).
		Msg("stake accepted")
	return minted, nil
}

// RequestWithdrawal burns sXLM at the current exchange rate. If the
// liquidity buffer covers the redemption it pays out immediately and returns
// no request id; otherwise the redemption is queued for unbonding.
func (p *Pool) RequestWithdrawal(ctx context.Context, account uuid.UUID, stakedAmount decimal.Decimal) (decimal.Decimal, uint64, bool, error) {
	if !stakedAmount.IsPositive() {
		return decimal.Zero, 0, false, ErrInvalidAmount
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused {
		return decimal.Zero, 0, false, ErrPaused
	}

	supply, err := p.ledger.TotalSupply(ctx, p.cfg.StakedAsset)
	if err != nil {
		return decimal.Zero, 0, false, err
	}
	if !supply.IsPositive() || stakedAmount.GreaterThan(supply) {
		return decimal.Zero, 0, false, ErrInsufficientBalance
	}

	redemption := stakedAmount.Mul(p.totalStaked).Div(supply).Truncate(0)
	if !redemption.IsPositive() {
		return decimal.Zero, 0, false, ErrInvalidAmount
	}

	if err := p.ledger.Burn(ctx, p.cfg.StakedAsset, p.cfg.PoolAccount, account, stakedAmount); err != nil {
		return decimal.Zero, 0, false, err
	}
	p.totalStaked = p.totalStaked.Sub(redemption)

	if redemption.LessThanOrEqual(p.liquidityBuffer) {
		if err := p.ledger.Transfer(ctx, p.cfg.NativeAsset, p.cfg.PoolAccount, account, redemption); err != nil {
			return decimal.Zero, 0, false, err
		}
		p.liquidityBuffer = p.liquidityBuffer.Sub(redemption)
		p.log.Debug().
			Str("account", account.String()).
			Str("redemption", redemption.String()).
			Msg("instant withdrawal from buffer")
		return redemption, 0, true, nil
	}

	if p.queue == nil {
		return decimal.Zero, 0, false, errors.New("no withdrawal queue configured")
	}
	requestId, err := p.queue.Enqueue(ctx, p.cfg.PoolAccount, account, redemption)
	if err != nil {
		return decimal.Zero, 0, false, err
	}

	p.log.Debug().
		Str("account", account.String()).
		Str("redemption", redemption.String()).
		Uint64("requestId", requestId).
		Msg("withdrawal queued for unbonding")
	return redemption, requestId, false, nil
}

// AccrueRewards credits validator rewards to the pool, skimming the protocol
// fee for the treasury. Admin only.
func (p *Pool) AccrueRewards(ctx context.Context, caller uuid.UUID, reward decimal.Decimal) error {
	if !reward.IsPositive() {
		return ErrInvalidAmount
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.cfg.Admin {
		return ErrUnauthorized
	}

	fee := reward.Mul(p.cfg.ProtocolFeeBps).Div(core.BPS_DENOMINATOR).Truncate(0)
	p.treasuryAccrued = p.treasuryAccrued.Add(fee)
	p.totalStaked = p.totalStaked.Add(reward.Sub(fee))
	p.lastRewardAt = p.clk.Now().Unix()

	p.log.Info().
		Str("reward", reward.String()).
		Str("fee", fee.String()).
		Int64("at", p.lastRewardAt).
		Msg("rewards accrued")
	return nil
}

// LastRewardAt reports the unix time of the most recent reward accrual,
// zero if none has happened.
func (p *Pool) LastRewardAt() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRewardAt
}

// WithdrawFees pays accrued protocol fees to the treasury. Admin only.
func (p *Pool) WithdrawFees(ctx context.Context, caller uuid.UUID) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.cfg.Admin {
		return decimal.Zero, ErrUnauthorized
	}
	if !p.treasuryAccrued.IsPositive() {
		return decimal.Zero, nil
	}

	fees := p.treasuryAccrued
	if err := p.ledger.Transfer(ctx, p.cfg.NativeAsset, p.cfg.PoolAccount, p.cfg.Treasury, fees); err != nil {
		return decimal.Zero, err
	}
	p.treasuryAccrued = decimal.Zero
	return fees, nil
}

// ApplySlashing writes a validator slash down against the pool, cutting the
// exchange rate for all sXLM holders pro rata. Admin only.
func (p *Pool) ApplySlashing(ctx context.Context, caller uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.cfg.Admin {
		return ErrUnauthorized
	}
	if amount.GreaterThan(p.totalStaked) {
		return ErrExcessiveSlash
	}

	p.totalStaked = p.totalStaked.Sub(amount)
	p.log.Warn().Str("amount", amount.String()).Msg("slashing applied")
	return nil
}

// AddLiquidity tops up the instant-withdrawal buffer from the caller's
// native balance. Admin only.
func (p *Pool) AddLiquidity(ctx context.Context, caller uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.cfg.Admin {
		return ErrUnauthorized
	}

	if err := p.ledger.Transfer(ctx, p.cfg.NativeAsset, caller, p.cfg.PoolAccount, amount); err != nil {
		return err
	}
	p.liquidityBuffer = p.liquidityBuffer.Add(amount)
	return nil
}

// SetAdmin hands pool administration to a new account. Admin only.
func (p *Pool) SetAdmin(caller, newAdmin uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.cfg.Admin {
		return ErrUnauthorized
	}
	if newAdmin == uuid.Nil {
		return ErrInvalidConfig
	}
	p.cfg.Admin = newAdmin
	return nil
}

func (p *Pool) Pause(caller uuid.UUID) error {
	return p.setPaused(caller, true)
}

func (p *Pool) Unpause(caller uuid.UUID) error {
	return p.setPaused(caller, false)
}

func (p *Pool) setPaused(caller uuid.UUID, paused bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.cfg.Admin {
		return ErrUnauthorized
	}
	p.paused = paused
	return nil
}

// ExchangeRate reports the sXLM price in XLM, RATE_PRECISION fixed point.
// An empty pool prices 1:1.
func (p *Pool) ExchangeRate(ctx context.Context) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	supply, err := p.ledger.TotalSupply(ctx, p.cfg.StakedAsset)
	if err != nil {
		return decimal.Zero, err
	}
	if !supply.IsPositive() {
		return core.RATE_PRECISION, nil
	}
	return p.totalStaked.Mul(core.RATE_PRECISION).Div(supply).Truncate(0), nil
}

// CurrentRate satisfies core.RateOracle.
func (p *Pool) CurrentRate(ctx context.Context) (decimal.Decimal, error) {
	return p.ExchangeRate(ctx)
}

func (p *Pool) TotalStaked() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalStaked.Copy()
}

func (p *Pool) LiquidityBuffer() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.liquidityBuffer.Copy()
}

func (p *Pool) TreasuryAccrued() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.treasuryAccrued.Copy()
}

func (p *Pool) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}
