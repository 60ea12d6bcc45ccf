package staking

import (
	"context"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajdeep-singha/sXLM/core"
	"github.com/rajdeep-singha/sXLM/queue"
	"github.com/rajdeep-singha/sXLM/token"
)

type poolFixture struct {
	pool   *Pool
	ledger *token.Ledger
	queue  *queue.Queue
	clk    *clock.Mock

	admin       uuid.UUID
	poolAccount uuid.UUID
	treasury    uuid.UUID
	xlm         uuid.UUID
	sxlm        uuid.UUID
}

func newPoolFixture(t *testing.T, feeBps int64) *poolFixture {
	t.Helper()

	admin := uuid.Must(uuid.NewV4())
	poolAccount := uuid.Must(uuid.NewV4())
	treasury := uuid.Must(uuid.NewV4())
	ledger := token.NewLedger()

	xlm, err := ledger.CreateAsset("XLM", admin)
	require.NoError(t, err)
	sxlm, err := ledger.CreateAsset("sXLM", poolAccount)
	require.NoError(t, err)

	clk := clock.NewMock()
	withdrawals := queue.NewQueue(admin, poolAccount, xlm.Id, poolAccount, queue.NewMemoryRequestStore(), ledger,
		queue.WithClock(clk),
	)

	pool, err := NewPool(Config{
		Admin:          admin,
		StakedAsset:    sxlm.Id,
		NativeAsset:    xlm.Id,
		PoolAccount:    poolAccount,
		Treasury:       treasury,
		ProtocolFeeBps: decimal.NewFromInt(feeBps),
	}, ledger,
		WithClock(clk),
		WithWithdrawalQueue(withdrawals),
	)
	require.NoError(t, err)

	return &poolFixture{
		pool:        pool,
		ledger:      ledger,
		queue:       withdrawals,
		clk:         clk,
		admin:       admin,
		poolAccount: poolAccount,
		treasury:    treasury,
		xlm:         xlm.Id,
		sxlm:        sxlm.Id,
	}
}

func (f *poolFixture) fundNative(t *testing.T, account uuid.UUID, amount int64) {
	t.Helper()
	require.NoError(t, f.ledger.Mint(context.Background(), f.xlm, f.admin, account, decimal.NewFromInt(amount)))
}

func TestFirstStakeMintsOneToOne(t *testing.T) {
	ctx := context.Background()
	f := newPoolFixture(t, 0)
	staker := uuid.Must(uuid.NewV4())
	f.fundNative(t, staker, 1000)

	minted, err := f.pool.Stake(ctx, staker, decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.True(t, minted.Equal(decimal.NewFromInt(1000)), "expected 1000, got %s", minted)

	rate, err := f.pool.ExchangeRate(ctx)
	require.NoError(t, err)
	assert.True(t, rate.Equal(core.RATE_PRECISION))
}

func TestExchangeRateFloatsWithRewards(t *testing.T) {
	ctx := context.Background()
	f := newPoolFixture(t, 0)
	staker := uuid.Must(uuid.NewV4())
	f.fundNative(t, staker, 10_000)

	_, err := f.pool.Stake(ctx, staker, decimal.NewFromInt(10_000))
	require.NoError(t, err)

	require.NoError(t, f.pool.AccrueRewards(ctx, f.admin, decimal.NewFromInt(1000)))

	rate, err := f.pool.ExchangeRate(ctx)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(11_000_000)), "expected 1.1, got %s", rate)

	// later stakes mint fewer shares at the richer rate
	second := uuid.Must(uuid.NewV4())
	f.fundNative(t, second, 1100)
	minted, err := f.pool.Stake(ctx, second, decimal.NewFromInt(1100))
	require.NoError(t, err)
	assert.True(t, minted.Equal(decimal.NewFromInt(1000)), "expected 1000, got %s", minted)
}

func TestProtocolFeeSkim(t *testing.T) {
	ctx := context.Background()
	f := newPoolFixture(t, 1000)
	staker := uuid.Must(uuid.NewV4())
	f.fundNative(t, staker, 10_000)

	_, err := f.pool.Stake(ctx, staker, decimal.NewFromInt(10_000))
	require.NoError(t, err)

	require.NoError(t, f.pool.AccrueRewards(ctx, f.admin, decimal.NewFromInt(1000)))

	// 10% of 1000 goes to the treasury, the rest to stakers
	assert.True(t, f.pool.TreasuryAccrued().Equal(decimal.NewFromInt(100)))
	assert.True(t, f.pool.TotalStaked().Equal(decimal.NewFromInt(10_900)))

	// fees pay out from pool custody
	f.fundNative(t, f.poolAccount, 100)
	fees, err := f.pool.WithdrawFees(ctx, f.admin)
	require.NoError(t, err)
	assert.True(t, fees.Equal(decimal.NewFromInt(100)))

	treasuryBalance, err := f.ledger.BalanceOf(ctx, f.xlm, f.treasury)
	require.NoError(t, err)
	assert.True(t, treasuryBalance.Equal(decimal.NewFromInt(100)))
}

func TestAccrueRewardsStampsTime(t *testing.T) {
	ctx := context.Background()
	f := newPoolFixture(t, 0)
	staker := uuid.Must(uuid.NewV4())
	f.fundNative(t, staker, 1000)

	_, err := f.pool.Stake(ctx, staker, decimal.NewFromInt(1000))
	require.NoError(t, err)

	f.clk.Add(time.Hour)
	require.NoError(t, f.pool.AccrueRewards(ctx, f.admin, decimal.NewFromInt(100)))
	assert.Equal(t, f.clk.Now().Unix(), f.pool.LastRewardAt())
}

func TestSlashingCutsExchangeRate(t *testing.T) {
	ctx := context.Background()
	f := newPoolFixture(t, 0)
	staker := uuid.Must(uuid.NewV4())
	f.fundNative(t, staker, 10_000)

	_, err := f.pool.Stake(ctx, staker, decimal.NewFromInt(10_000))
	require.NoError(t, err)

	require.NoError(t, f.pool.ApplySlashing(ctx, f.admin, decimal.NewFromInt(1000)))

	rate, err := f.pool.ExchangeRate(ctx)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(9_000_000)), "expected 0.9, got %s", rate)

	err = f.pool.ApplySlashing(ctx, f.admin, decimal.NewFromInt(100_000))
	assert.ErrorIs(t, err, ErrExcessiveSlash)
}

func TestInstantWithdrawalFromBuffer(t *testing.T) {
	ctx := context.Background()
	f := newPoolFixture(t, 0)
	staker := uuid.Must(uuid.NewV4())
	f.fundNative(t, staker, 10_000)
	f.fundNative(t, f.admin, 5000)

	_, err := f.pool.Stake(ctx, staker, decimal.NewFromInt(10_000))
	require.NoError(t, err)
	require.NoError(t, f.pool.AddLiquidity(ctx, f.admin, decimal.NewFromInt(5000)))

	redemption, requestId, instant, err := f.pool.RequestWithdrawal(ctx, staker, decimal.NewFromInt(3000))
	require.NoError(t, err)
	assert.True(t, instant)
	assert.Zero(t, requestId)
	assert.True(t, redemption.Equal(decimal.NewFromInt(3000)))

	balance, err := f.ledger.BalanceOf(ctx, f.xlm, staker)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(3000)))
	assert.True(t, f.pool.LiquidityBuffer().Equal(decimal.NewFromInt(2000)))
}

func TestWithdrawalQueuedWhenBufferDry(t *testing.T) {
	ctx := context.Background()
	f := newPoolFixture(t, 0)
	staker := uuid.Must(uuid.NewV4())
	f.fundNative(t, staker, 10_000)

	_, err := f.pool.Stake(ctx, staker, decimal.NewFromInt(10_000))
	require.NoError(t, err)

	redemption, requestId, instant, err := f.pool.RequestWithdrawal(ctx, staker, decimal.NewFromInt(3000))
	require.NoError(t, err)
	assert.False(t, instant)
	assert.NotZero(t, requestId)
	assert.True(t, redemption.Equal(decimal.NewFromInt(3000)))

	// the sXLM burnt immediately, the XLM waits out unbonding
	stakedBalance, err := f.ledger.BalanceOf(ctx, f.sxlm, staker)
	require.NoError(t, err)
	assert.True(t, stakedBalance.Equal(decimal.NewFromInt(7000)))

	request, err := f.queue.GetRequest(ctx, requestId)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, request.Status)
	assert.True(t, request.Amount.Equal(decimal.NewFromInt(3000)))
}

func TestPauseBlocksStaking(t *testing.T) {
	ctx := context.Background()
	f := newPoolFixture(t, 0)
	staker := uuid.Must(uuid.NewV4())
	f.fundNative(t, staker, 1000)

	require.NoError(t, f.pool.Pause(f.admin))

	_, err := f.pool.Stake(ctx, staker, decimal.NewFromInt(1000))
	assert.ErrorIs(t, err, ErrPaused)

	_, _, _, err = f.pool.RequestWithdrawal(ctx, staker, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrPaused)

	require.NoError(t, f.pool.Unpause(f.admin))
	_, err = f.pool.Stake(ctx, staker, decimal.NewFromInt(1000))
	assert.NoError(t, err)
}

func TestAdminOnlyOperations(t *testing.T) {
	ctx := context.Background()
	f := newPoolFixture(t, 0)
	outsider := uuid.Must(uuid.NewV4())

	assert.ErrorIs(t, f.pool.AccrueRewards(ctx, outsider, decimal.NewFromInt(1)), ErrUnauthorized)
	assert.ErrorIs(t, f.pool.ApplySlashing(ctx, outsider, decimal.NewFromInt(1)), ErrUnauthorized)
	assert.ErrorIs(t, f.pool.AddLiquidity(ctx, outsider, decimal.NewFromInt(1)), ErrUnauthorized)
	assert.ErrorIs(t, f.pool.Pause(outsider), ErrUnauthorized)

	_, err := f.pool.WithdrawFees(ctx, outsider)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSetAdminHandsOver(t *testing.T) {
	f := newPoolFixture(t, 0)
	successor := uuid.Must(uuid.NewV4())

	assert.ErrorIs(t, f.pool.SetAdmin(successor, successor), ErrUnauthorized)
	assert.ErrorIs(t, f.pool.SetAdmin(f.admin, uuid.Nil), ErrInvalidConfig)
	require.NoError(t, f.pool.SetAdmin(f.admin, successor))

	// the old admin loses its powers
	assert.ErrorIs(t, f.pool.Pause(f.admin), ErrUnauthorized)
	assert.NoError(t, f.pool.Pause(successor))
}
