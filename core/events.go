package core

import (
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type EventType uint8

const (
	EventDeposit EventType = iota
	EventWithdraw
	EventBorrow
	EventRepay
	EventLiquidate
	EventParamsUpdated
)

func (t EventType) String() string {
	switch t {
	case EventDeposit:
		return "deposit"
	case EventWithdraw:
		return "withdraw"
	case EventBorrow:
		return "borrow"
	case EventRepay:
		return "repay"
	case EventLiquidate:
		return "liquidate"
	case EventParamsUpdated:
		return "params_updated"
	default:
		return "unknown"
	}
}

// Event records a completed engine operation. For liquidations AccountId is
// the liquidated borrower, CounterpartyId the liquidator, Amount the repaid
// debt and Seized the collateral paid out.
type Event struct {
	Type           EventType       `json:"type"`
	AccountId      uuid.UUID       `json:"accountId"`
	CounterpartyId uuid.UUID       `json:"counterpartyId,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Seized         decimal.Decimal `json:"seized,omitempty"`
	Interest       decimal.Decimal `json:"interest,omitempty"`
	CreatedAt      int64           `json:"createdAt"`
}

// EventSink observes committed operations. Emit must not block; the engine
// calls it while holding its lock.
type EventSink interface {
	Emit(event Event)
}

type nopSink struct{}

func (nopSink) Emit(Event) {}
