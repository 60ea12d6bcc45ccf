package swap

import (
	"context"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rajdeep-singha/sXLM/core"
	"github.com/rajdeep-singha/sXLM/utils"
)

var (
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrNoLiquidity           = errors.New("pool has no liquidity")
	ErrInsufficientLiquidity = errors.New("insufficient pool reserves")
	ErrInsufficientLpBalance = errors.New("insufficient lp balance")
	ErrSlippage              = errors.New("output below minimum")
	ErrZeroMint              = errors.New("liquidity too small to mint lp shares")
)

// AssetLedger is the slice of the token ledger the pool needs.
type AssetLedger interface {
	Transfer(ctx context.Context, asset, from, to uuid.UUID, amount decimal.Decimal) error
	BalanceOf(ctx context.Context, asset, account uuid.UUID) (decimal.Decimal, error)
}

// Pool is a constant-product XLM/sXLM market for exits that cannot wait for
// unbonding. The swap fee stays in the reserves, accruing to lp holders.
type Pool struct {
	mu sync.Mutex

	ledger      AssetLedger
	nativeAsset uuid.UUID
	stakedAsset uuid.UUID
	poolAccount uuid.UUID
	feeBps      decimal.Decimal
	log         zerolog.Logger

	reserveNative decimal.Decimal
	reserveStaked decimal.Decimal
	lpSupply      decimal.Decimal
	lpBalances    map[uuid.UUID]decimal.Decimal
}

func NewPool(ledger AssetLedger, nativeAsset, stakedAsset, poolAccount uuid.UUID, feeBps decimal.Decimal, log zerolog.Logger) *Pool {
	return &Pool{
		ledger:        ledger,
		nativeAsset:   nativeAsset,
		stakedAsset:   stakedAsset,
		poolAccount:   poolAccount,
		feeBps:        feeBps,
		log:           log,
		reserveNative: decimal.Zero,
		reserveStaked: decimal.Zero,
		lpSupply:      decimal.Zero,
		lpBalances:    make(map[uuid.UUID]decimal.Decimal),
	}
}

// AddLiquidity deposits both assets and mints lp shares. The first join
// mints isqrt(native * staked); later joins mint proportionally to the
// limiting side, so over-supplying one asset donates the excess to the pool.
func (p *Pool) AddLiquidity(ctx context.Context, account uuid.UUID, nativeAmount, stakedAmount decimal.Decimal) (decimal.Decimal, error) {
	if !nativeAmount.IsPositive() || !stakedAmount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var minted decimal.Decimal
	if !p.lpSupply.IsPositive() {
		minted = utils.Isqrt(nativeAmount.Mul(stakedAmount))
	} else {
		byNative := nativeAmount.Mul(p.lpSupply).Div(p.reserveNative).Truncate(0)
		byStaked := stakedAmount.Mul(p.lpSupply).Div(p.reserveStaked).Truncate(0)
		minted = decimal.Min(byNative, byStaked)
	}
	if !minted.IsPositive() {
		return decimal.Zero, ErrZeroMint
	}

	if err := p.ledger.Transfer(ctx, p.nativeAsset, account, p.poolAccount, nativeAmount); err != nil {
		return decimal.Zero, err
	}
	if err := p.ledger.Transfer(ctx, p.stakedAsset, account, p.poolAccount, stakedAmount); err != nil {
		return decimal.Zero, err
	}

	p.reserveNative = p.reserveNative.Add(nativeAmount)
	p.reserveStaked = p.reserveStaked.Add(stakedAmount)
	p.lpSupply = p.lpSupply.Add(minted)
	p.lpBalances[account] = p.lpBalance(account).Add(minted)

	p.log.Debug().
		Str("account", account.String()).
		Str("minted", minted.String()).
		Msg("liquidity added")
	return minted, nil
}

// RemoveLiquidity burns lp shares for a proportional cut of both reserves.
func (p *Pool) RemoveLiquidity(ctx context.Context, account uuid.UUID, lpAmount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if !lpAmount.IsPositive() {
		return decimal.Zero, decimal.Zero, ErrInvalidAmount
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if lpAmount.GreaterThan(p.lpBalance(account)) {
		return decimal.Zero, decimal.Zero, ErrInsufficientLpBalance
	}

	nativeOut := lpAmount.Mul(p.reserveNative).Div(p.lpSupply).Truncate(0)
	stakedOut := lpAmount.Mul(p.reserveStaked).Div(p.lpSupply).Truncate(0)

	if err := p.ledger.Transfer(ctx, p.nativeAsset, p.poolAccount, account, nativeOut); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := p.ledger.Transfer(ctx, p.stakedAsset, p.poolAccount, account, stakedOut); err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	p.reserveNative = p.reserveNative.Sub(nativeOut)
	p.reserveStaked = p.reserveStaked.Sub(stakedOut)
	p.lpSupply = p.lpSupply.Sub(lpAmount)
	p.lpBalances[account] = p.lpBalance(account).Sub(lpAmount)
	return nativeOut, stakedOut, nil
}

// SwapNativeForStaked sells XLM for sXLM against the reserves.
func (p *Pool) SwapNativeForStaked(ctx context.Context, account uuid.UUID, amountIn, minOut decimal.Decimal) (decimal.Decimal, error) {
	return p.swap(ctx, account, p.nativeAsset, p.stakedAsset, amountIn, minOut)
}

// SwapStakedForNative sells sXLM for XLM against the reserves.
func (p *Pool) SwapStakedForNative(ctx context.Context, account uuid.UUID, amountIn, minOut decimal.Decimal) (decimal.Decimal, error) {
	return p.swap(ctx, account, p.stakedAsset, p.nativeAsset, amountIn, minOut)
}

func (p *Pool) swap(ctx context.Context, account uuid.UUID, assetIn, assetOut uuid.UUID, amountIn, minOut decimal.Decimal) (decimal.Decimal, error) {
	if !amountIn.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	reserveIn, reserveOut := p.reserves(assetIn)
	if !reserveIn.IsPositive() || !reserveOut.IsPositive() {
		return decimal.Zero, ErrNoLiquidity
	}

	afterFee := amountIn.
		Mul(core.BPS_DENOMINATOR.Sub(p.feeBps)).
		Div(core.BPS_DENOMINATOR).
		Truncate(0)

	k := reserveIn.Mul(reserveOut)
	newReserveIn := reserveIn.Add(afterFee)
	amountOut := reserveOut.Sub(k.Div(newReserveIn).Truncate(0)).Truncate(0)

	if !amountOut.IsPositive() || amountOut.GreaterThanOrEqual(reserveOut) {
		return decimal.Zero, ErrInsufficientLiquidity
	}
	if amountOut.LessThan(minOut) {
		return decimal.Zero, ErrSlippage
	}

	if err := p.ledger.Transfer(ctx, assetIn, account, p.poolAccount, amountIn); err != nil {
		return decimal.Zero, err
	}
	if err := p.ledger.Transfer(ctx, assetOut, p.poolAccount, account, amountOut); err != nil {
		return decimal.Zero, err
	}

	if assetIn == p.nativeAsset {
		p.reserveNative = p.reserveNative.Add(amountIn)
		p.reserveStaked = p.reserveStaked.Sub(amountOut)
	} else {
		p.reserveStaked = p.reserveStaked.Add(amountIn)
		p.reserveNative = p.reserveNative.Sub(amountOut)
	}

	p.log.Debug().
		Str("account", account.String()).
		Str("amountIn", amountIn.String()).
		Str("amountOut", amountOut.String()).
		Msg("swap executed")
	return amountOut, nil
}

// SpotPrice quotes sXLM in XLM from the reserve ratio, RATE_PRECISION fixed
// point. An empty pool quotes 1:1.
func (p *Pool) SpotPrice() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.reserveStaked.IsPositive() {
		return core.RATE_PRECISION
	}
	return p.reserveNative.Mul(core.RATE_PRECISION).Div(p.reserveStaked).Truncate(0)
}

func (p *Pool) Reserves() (decimal.Decimal, decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reserveNative.Copy(), p.reserveStaked.Copy()
}

func (p *Pool) LpSupply() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lpSupply.Copy()
}

func (p *Pool) LpBalanceOf(account uuid.UUID) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lpBalance(account)
}

func (p *Pool) reserves(assetIn uuid.UUID) (decimal.Decimal, decimal.Decimal) {
	if assetIn == p.nativeAsset {
		return p.reserveNative, p.reserveStaked
	}
	return p.reserveStaked, p.reserveNative
}

func (p *Pool) lpBalance(account uuid.UUID) decimal.Decimal {
	if balance, ok := p.lpBalances[account]; ok {
		return balance
	}
	return decimal.Zero
}
