package queue

import (
	"context"
	"sync"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UNBONDING_PERIOD is the minimum wait between enqueue and claim, in
// seconds. Seven days matches the network unbonding window.
const UNBONDING_PERIOD int64 = 604_800

var (
	ErrRequestNotFound = errors.New("withdrawal request not found")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrUnauthorized    = errors.New("caller is not authorized")
	ErrNotReady        = errors.New("request is not ready to claim")
	ErrStillLocked     = errors.New("unbonding period has not elapsed")
	ErrCannotCancel    = errors.New("only pending requests can be cancelled")
)

// Payer moves the claimed native asset out of custody.
type Payer interface {
	Transfer(ctx context.Context, asset, from, to uuid.UUID, amount decimal.Decimal) error
}

// Queue tracks withdrawal requests through Pending -> Ready -> Claimed, with
// Cancelled as the borrower-initiated exit from Pending. Marking Ready is an
// operator action taken once funds are unstaked from validators.
type Queue struct {
	mu sync.Mutex

	admin        uuid.UUID
	pool         uuid.UUID
	nativeAsset  uuid.UUID
	custody      uuid.UUID
	unbonding    int64
	store        RequestStore
	payer        Payer
	clk          clock.Clock
	log          zerolog.Logger
	nextId       uint64
	nextIdLoaded bool
}

type OptionFunc func(*Queue)

func WithClock(clk clock.Clock) OptionFunc {
	return func(q *Queue) {
		q.clk = clk
	}
}

func WithLogger(log zerolog.Logger) OptionFunc {
	return func(q *Queue) {
		q.log = log
	}
}

func WithUnbondingPeriod(seconds int64) OptionFunc {
	return func(q *Queue) {
		q.unbonding = seconds
	}
}

func NewQueue(admin, pool, nativeAsset, custody uuid.UUID, store RequestStore, payer Payer, opts ...OptionFunc) *Queue {
	queue := &Queue{
		admin:       admin,
		pool:        pool,
		nativeAsset: nativeAsset,
		custody:     custody,
		unbonding:   UNBONDING_PERIOD,
		store:       store,
		payer:       payer,
		clk:         clock.New(),
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(queue)
	}
	return queue
}

// Enqueue records a redemption and starts its unbonding clock. Only the
// staking pool may enqueue; requests draw on pool custody once marked ready.
func (q *Queue) Enqueue(ctx context.Context, caller, account uuid.UUID, amount decimal.Decimal) (uint64, error) {
	if !amount.IsPositive() {
		return 0, ErrInvalidAmount
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if caller != q.pool {
		return 0, ErrUnauthorized
	}

	id, err := q.allocateId(ctx)
	if err != nil {
		return 0, err
	}

	now := q.clk.Now().Unix()
	request := &Request{
		Id:        id,
		AccountId: account,
		Amount:    amount,
		Status:    StatusPending,
		CreatedAt: now,
		UnlockAt:  now + q.unbonding,
	}
	if err := q.store.UpsertRequest(ctx, request); err != nil {
		return 0, err
	}

	q.log.Debug().
		Uint64("requestId", id).
		Str("account", account.String()).
		Str("amount", amount.String()).
		Msg("withdrawal enqueued")
	return id, nil
}

// MarkReady flags a pending request as claimable. Admin only.
func (q *Queue) MarkReady(ctx context.Context, caller uuid.UUID, id uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if caller != q.admin {
		return ErrUnauthorized
	}
	return q.markReadyLocked(ctx, id)
}

// BatchMarkReady flags several pending requests in one pass; it stops on the
// first failure. Admin only.
func (q *Queue) BatchMarkReady(ctx context.Context, caller uuid.UUID, ids []uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if caller != q.admin {
		return ErrUnauthorized
	}
	for _, id := range ids {
		if err := q.markReadyLocked(ctx, id); err != nil {
			return errors.Wrapf(err, "request %d", id)
		}
	}
	return nil
}

func (q *Queue) markReadyLocked(ctx context.Context, id uint64) error {
	request, err := q.findRequest(ctx, id)
	if err != nil {
		return err
	}
	if request.Status != StatusPending {
		return ErrNotReady
	}

	request.Status = StatusReady
	return q.store.UpsertRequest(ctx, request)
}

// Claim pays out a ready request after unbonding. Only the request owner may
// claim.
func (q *Queue) Claim(ctx context.Context, caller uuid.UUID, id uint64) (decimal.Decimal, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	request, err := q.findRequest(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	if request.AccountId != caller {
		return decimal.Zero, ErrUnauthorized
	}
	if request.Status != StatusReady {
		return decimal.Zero, ErrNotReady
	}
	if q.clk.Now().Unix() < request.UnlockAt {
		return decimal.Zero, ErrStillLocked
	}

	if err := q.payer.Transfer(ctx, q.nativeAsset, q.custody, caller, request.Amount); err != nil {
		return decimal.Zero, err
	}

	request.Status = StatusClaimed
	if err := q.store.UpsertRequest(ctx, request); err != nil {
		return decimal.Zero, err
	}

	q.log.Debug().Uint64("requestId", id).Str("amount", request.Amount.String()).Msg("withdrawal claimed")
	return request.Amount, nil
}

// Cancel voids a pending request. Only the owner may cancel; callers are
// responsible for re-minting the burnt sXLM if they want to make the account
// whole.
func (q *Queue) Cancel(ctx context.Context, caller uuid.UUID, id uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	request, err := q.findRequest(ctx, id)
	if err != nil {
		return err
	}
	if request.AccountId != caller {
		return ErrUnauthorized
	}
	if request.Status != StatusPending {
		return ErrCannotCancel
	}

	request.Status = StatusCancelled
	return q.store.UpsertRequest(ctx, request)
}

func (q *Queue) GetRequest(ctx context.Context, id uint64) (*Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.findRequest(ctx, id)
}

func (q *Queue) ListUserRequests(ctx context.Context, account uuid.UUID) ([]*Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.ListRequestsByAccount(ctx, account)
}

func (q *Queue) PendingRequests(ctx context.Context) ([]*Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.ListRequestsByStatus(ctx, StatusPending)
}

func (q *Queue) Size(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.CountRequests(ctx)
}

func (q *Queue) findRequest(ctx context.Context, id uint64) (*Request, error) {
	request, err := q.store.FindRequest(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return request, nil
}

func (q *Queue) allocateId(ctx context.Context) (uint64, error) {
	if !q.nextIdLoaded {
		maxId, err := q.store.MaxRequestId(ctx)
		if err != nil {
			return 0, err
		}
		q.nextId = maxId
		q.nextIdLoaded = true
	}
	q.nextId++
	return q.nextId, nil
}
