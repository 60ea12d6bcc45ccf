package core

import (
	"context"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type (
	// AssetGateway settles asset movements for the engine. Implementations
	// must reject transfers that exceed the sender's balance.
	AssetGateway interface {
		Transfer(ctx context.Context, asset, from, to uuid.UUID, amount decimal.Decimal) error
		BalanceOf(ctx context.Context, asset, account uuid.UUID) (decimal.Decimal, error)
	}

	// RateOracle prices the collateral asset in debt-asset terms, scaled by
	// RATE_PRECISION.
	RateOracle interface {
		CurrentRate(ctx context.Context) (decimal.Decimal, error)
	}
)

// AdminRateOracle is a RateOracle whose rate is pushed by an operator rather
// than derived from market state.
type AdminRateOracle struct {
	mu   sync.RWMutex
	rate decimal.Decimal
}

func NewAdminRateOracle(rate decimal.Decimal) *AdminRateOracle {
	return &AdminRateOracle{rate: rate}
}

func (o *AdminRateOracle) SetRate(rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return ErrInvalidConfig
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.rate = rate
	return nil
}

func (o *AdminRateOracle) CurrentRate(_ context.Context) (decimal.Decimal, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.rate.Copy(), nil
}
