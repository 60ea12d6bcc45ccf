package queue

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type Status uint8

const (
	StatusPending Status = iota
	StatusReady
	StatusClaimed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusReady:
		return "Ready"
	case StatusClaimed:
		return "Claimed"
	case StatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

type (
	RequestStore interface {
		FindRequest(ctx context.Context, id uint64) (*Request, error)
		UpsertRequest(ctx context.Context, request *Request) error
		ListRequestsByAccount(ctx context.Context, accountId uuid.UUID) ([]*Request, error)
		ListRequestsByStatus(ctx context.Context, status Status) ([]*Request, error)
		CountRequests(ctx context.Context) (int64, error)
		MaxRequestId(ctx context.Context) (uint64, error)
	}

	// Request is one queued redemption. Amount is native XLM owed, fixed at
	// enqueue time; later exchange-rate moves do not reprice it.
	Request struct {
		Id        uint64          `json:"id"`
		AccountId uuid.UUID       `json:"accountId"`
		Amount    decimal.Decimal `json:"amount"`
		Status    Status          `json:"status"`
		CreatedAt int64           `json:"createdAt"`
		UnlockAt  int64           `json:"unlockAt"`
	}
)

func (r *Request) Clone() *Request {
	return &Request{
		Id:        r.Id,
		AccountId: r.AccountId,
		Amount:    r.Amount.Copy(),
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
		UnlockAt:  r.UnlockAt,
	}
}
