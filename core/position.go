package core

import (
	"context"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PositionState uint8

const (
	PositionStateEmpty PositionState = iota
	PositionStateCollateralized
	PositionStateLeveraged
)

func (s PositionState) String() string {
	switch s {
	case PositionStateEmpty:
		return "Empty"
	case PositionStateCollateralized:
		return "Collateralized"
	case PositionStateLeveraged:
		return "Leveraged"
	default:
		return "Unknown"
	}
}

type (
	PositionStore interface {
		FindPosition(ctx context.Context, accountId uuid.UUID) (*Position, error)
		UpsertPosition(ctx context.Context, position *Position) error
		ListPositions(ctx context.Context) ([]*Position, error)
	}

	// Position tracks one account's collateral and debt, both denominated in
	// integral base units. Debt is only current after interest accrual.
	Position struct {
		AccountId  uuid.UUID       `json:"accountId"`
		Collateral decimal.Decimal `json:"collateral"`
		Debt       decimal.Decimal `json:"debt"`
		LastUpdate int64           `json:"lastUpdate"`
	}
)

func NewPosition(clk clock.Clock, accountId uuid.UUID) *Position {
	return &Position{
		AccountId:  accountId,
		Collateral: decimal.Zero,
		Debt:       decimal.Zero,
		LastUpdate: clk.Now().Unix(),
	}
}

func FindOrCreatePosition(ctx context.Context, clk clock.Clock, store PositionStore, accountId uuid.UUID) (*Position, error) {
	position, err := store.FindPosition(ctx, accountId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			position = NewPosition(clk, accountId)
			if err := store.UpsertPosition(ctx, position); err != nil {
				return nil, err
			}
			return position, nil
		}
		return nil, err
	}
	return position, nil
}

func (p *Position) State() PositionState {
	switch {
	case p.Debt.IsPositive():
		return PositionStateLeveraged
	case p.Collateral.IsPositive():
		return PositionStateCollateralized
	default:
		return PositionStateEmpty
	}
}

func (p *Position) Clone() *Position {
	return &Position{
		AccountId:  p.AccountId,
		Collateral: p.Collateral.Copy(),
		Debt:       p.Debt.Copy(),
		LastUpdate: p.LastUpdate,
	}
}
