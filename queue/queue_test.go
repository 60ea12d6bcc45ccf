package queue

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

type queueFixture struct {
	queue  *Queue
	ledger *token.Ledger
	clk    *clock.Mock

	admin   uuid.UUID
	pool    uuid.UUID
	custody uuid.UUID
	xlm     uuid.UUID
}

func newQueueFixture(t *testing.T) *queueFixture {
	t.Helper()

	admin := uuid.Must(uuid.NewV4())
	pool := uuid.Must(uuid.NewV4())
	custody := uuid.Must(uuid.NewV4())
	ledger := token.NewLedger()

	xlm, err := ledger.CreateAsset("XLM", admin)
	require.NoError(t, err)
	require.NoError(t, ledger.Mint(context.Background(), xlm.Id, admin, custody, decimal.NewFromInt(1_000_000)))

	clk := clock.NewMock()
	q := NewQueue(admin, pool, xlm.Id, custody, NewMemoryRequestStore(), ledger, WithClock(clk))

	return &queueFixture{
		queue:   q,
		ledger:  ledger,
		clk:     clk,
		admin:   admin,
		pool:    pool,
		custody: custody,
		xlm:     xlm.Id,
	}
}

func TestEnqueueAssignsSequentialIds(t *testing.T) {
	ctx := context.Background()
	f := newQueueFixture(t)
	account := uuid.Must(uuid.NewV4())

	first, err := f.queue.Enqueue(ctx, f.pool, account, decimal.NewFromInt(100))
	require.NoError(t, err)
	second, err := f.queue.Enqueue(ctx, f.pool, account, decimal.NewFromInt(200))
	require.NoError(t, err)
	assert.Equal(t, first+1, second)

	size, err := f.queue.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), size)

	_, err = f.queue.Enqueue(ctx, f.pool, account, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestEnqueueRejectsNonPoolCallers(t *testing.T) {
	ctx := context.Background()
	f := newQueueFixture(t)
	account := uuid.Must(uuid.NewV4())

	// neither the beneficiary nor the queue admin may enqueue directly
	_, err := f.queue.Enqueue(ctx, account, account, decimal.NewFromInt(1_000_000))
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.queue.Enqueue(ctx, f.admin, account, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, ErrUnauthorized)

	size, err := f.queue.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}

func TestClaimAfterUnbonding(t *testing.T) {
	ctx := context.Background()
	f := newQueueFixture(t)
	account := uuid.Must(uuid.NewV4())

	id, err := f.queue.Enqueue(ctx, f.pool, account, decimal.NewFromInt(500))
	require.NoError(t, err)

	// pending requests cannot be claimed even after the clock runs out
	f.clk.Add(time.Duration(UNBONDING_PERIOD) * time.Second)
	_, err = f.queue.Claim(ctx, account, id)
	assert.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, f.queue.MarkReady(ctx, f.admin, id))

	amount, err := f.queue.Claim(ctx, account, id)
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.NewFromInt(500)))

	balance, err := f.ledger.BalanceOf(ctx, f.xlm, account)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(500)))

	// claimed requests stay claimed
	_, err = f.queue.Claim(ctx, account, id)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestClaimBeforeUnlockFails(t *testing.T) {
	ctx := context.Background()
	f := newQueueFixture(t)
	account := uuid.Must(uuid.NewV4())

	id, err := f.queue.Enqueue(ctx, f.pool, account, decimal.NewFromInt(500))
	require.NoError(t, err)
	require.NoError(t, f.queue.MarkReady(ctx, f.admin, id))

	f.clk.Add(time.Duration(UNBONDING_PERIOD-1) * time.Second)
	_, err = f.queue.Claim(ctx, account, id)
	assert.ErrorIs(t, err, ErrStillLocked)
}

func TestClaimOwnership(t *testing.T) {
	ctx := context.Background()
	f := newQueueFixture(t)
	account := uuid.Must(uuid.NewV4())
	stranger := uuid.Must(uuid.NewV4())

	id, err := f.queue.Enqueue(ctx, f.pool, account, decimal.NewFromInt(500))
	require.NoError(t, err)
	require.NoError(t, f.queue.MarkReady(ctx, f.admin, id))
	f.clk.Add(time.Duration(UNBONDING_PERIOD) * time.Second)

	_, err = f.queue.Claim(ctx, stranger, id)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCancelPendingOnly(t *testing.T) {
	ctx := context.Background()
	f := newQueueFixture(t)
	account := uuid.Must(uuid.NewV4())

	id, err := f.queue.Enqueue(ctx, f.pool, account, decimal.NewFromInt(500))
	require.NoError(t, err)

	assert.ErrorIs(t, f.queue.Cancel(ctx, uuid.Must(uuid.NewV4()), id), ErrUnauthorized)
	require.NoError(t, f.queue.Cancel(ctx, account, id))

	request, err := f.queue.GetRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, request.Status)

	// cancelled requests cannot be revived
	assert.ErrorIs(t, f.queue.MarkReady(ctx, f.admin, id), ErrNotReady)
	assert.ErrorIs(t, f.queue.Cancel(ctx, account, id), ErrCannotCancel)
}

func TestBatchMarkReady(t *testing.T) {
	ctx := context.Background()
	f := newQueueFixture(t)
	account := uuid.Must(uuid.NewV4())

	var ids []uint64
	for i := 0; i < 3; i++ {
		id, err := f.queue.Enqueue(ctx, f.pool, account, decimal.NewFromInt(100))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	assert.ErrorIs(t, f.queue.BatchMarkReady(ctx, account, ids), ErrUnauthorized)
	require.NoError(t, f.queue.BatchMarkReady(ctx, f.admin, ids))

	pending, err := f.queue.PendingRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	requests, err := f.queue.ListUserRequests(ctx, account)
	require.NoError(t, err)
	require.Len(t, requests, 3)
	for _, request := range requests {
		assert.Equal(t, StatusReady, request.Status)
	}
}

func TestGetRequestNotFound(t *testing.T) {
	ctx := context.Background()
	f := newQueueFixture(t)

	_, err := f.queue.GetRequest(ctx, 42)
	assert.ErrorIs(t, err, ErrRequestNotFound)
}
