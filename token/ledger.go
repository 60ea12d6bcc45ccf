package token

import (
	"context"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/rajdeep-singha/sXLM/utils"
)

var (
	ErrAssetNotFound         = errors.New("asset not found")
	ErrAssetExists           = errors.New("asset already registered")
	ErrNotMinter             = errors.New("caller is not the asset minter")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

type Asset struct {
	Id     uuid.UUID       `json:"id"`
	Symbol string          `json:"symbol"`
	Minter uuid.UUID       `json:"minter"`
	Supply decimal.Decimal `json:"supply"`
}

type allowanceKey struct {
	asset   uuid.UUID
	owner   uuid.UUID
	spender uuid.UUID
}

// Ledger is an in-process fungible asset ledger. Balances are integral base
// units; transfers never create or destroy supply, only Mint and Burn do.
type Ledger struct {
	mu         sync.Mutex
	assets     map[uuid.UUID]*Asset
	balances   map[uuid.UUID]map[uuid.UUID]decimal.Decimal
	allowances map[allowanceKey]decimal.Decimal
}

func NewLedger() *Ledger {
	return &Ledger{
		assets:     make(map[uuid.UUID]*Asset),
		balances:   make(map[uuid.UUID]map[uuid.UUID]decimal.Decimal),
		allowances: make(map[allowanceKey]decimal.Decimal),
	}
}

// CreateAsset registers an asset under a deterministic id derived from its
// symbol, so repeated boots of the same deployment agree on asset ids.
func (l *Ledger) CreateAsset(symbol string, minter uuid.UUID) (*Asset, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := uuid.Must(uuid.FromString(utils.GenUuidFromStrings("asset", symbol)))
	if _, ok := l.assets[id]; ok {
		return nil, ErrAssetExists
	}

	asset := &Asset{
		Id:     id,
		Symbol: symbol,
		Minter: minter,
		Supply: decimal.Zero,
	}
	l.assets[id] = asset
	l.balances[id] = make(map[uuid.UUID]decimal.Decimal)
	return asset, nil
}

func (l *Ledger) Mint(_ context.Context, asset, caller, to uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.assets[asset]
	if !ok {
		return ErrAssetNotFound
	}
	if caller != a.Minter {
		return ErrNotMinter
	}

	l.balances[asset][to] = l.balanceLocked(asset, to).Add(amount)
	a.Supply = a.Supply.Add(amount)
	return nil
}

func (l *Ledger) Burn(_ context.Context, asset, caller, from uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.assets[asset]
	if !ok {
		return ErrAssetNotFound
	}
	if caller != a.Minter && caller != from {
		return ErrNotMinter
	}

	balance := l.balanceLocked(asset, from)
	if amount.GreaterThan(balance) {
		return ErrInsufficientBalance
	}
	l.balances[asset][from] = balance.Sub(amount)
	a.Supply = a.Supply.Sub(amount)
	return nil
}

func (l *Ledger) Transfer(_ context.Context, asset, from, to uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.transferLocked(asset, from, to, amount)
}

func (l *Ledger) Approve(_ context.Context, asset, owner, spender uuid.UUID, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.assets[asset]; !ok {
		return ErrAssetNotFound
	}
	l.allowances[allowanceKey{asset, owner, spender}] = amount
	return nil
}

func (l *Ledger) Allowance(_ context.Context, asset, owner, spender uuid.UUID) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.assets[asset]; !ok {
		return decimal.Zero, ErrAssetNotFound
	}
	if allowance, ok := l.allowances[allowanceKey{asset, owner, spender}]; ok {
		return allowance, nil
	}
	return decimal.Zero, nil
}

func (l *Ledger) TransferFrom(_ context.Context, asset, spender, from, to uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := allowanceKey{asset, from, spender}
	allowance, ok := l.allowances[key]
	if !ok || amount.GreaterThan(allowance) {
		return ErrInsufficientAllowance
	}

	if err := l.transferLocked(asset, from, to, amount); err != nil {
		return err
	}
	l.allowances[key] = allowance.Sub(amount)
	return nil
}

func (l *Ledger) BalanceOf(_ context.Context, asset, account uuid.UUID) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.assets[asset]; !ok {
		return decimal.Zero, ErrAssetNotFound
	}
	return l.balanceLocked(asset, account), nil
}

func (l *Ledger) TotalSupply(_ context.Context, asset uuid.UUID) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.assets[asset]
	if !ok {
		return decimal.Zero, ErrAssetNotFound
	}
	return a.Supply.Copy(), nil
}

func (l *Ledger) Asset(id uuid.UUID) (*Asset, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.assets[id]
	if !ok {
		return nil, ErrAssetNotFound
	}
	cloned := *a
	return &cloned, nil
}

func (l *Ledger) transferLocked(asset, from, to uuid.UUID, amount decimal.Decimal) error {
	if _, ok := l.assets[asset]; !ok {
		return ErrAssetNotFound
	}

	fromBalance := l.balanceLocked(asset, from)
	if amount.GreaterThan(fromBalance) {
		return ErrInsufficientBalance
	}
	l.balances[asset][from] = fromBalance.Sub(amount)
	l.balances[asset][to] = l.balanceLocked(asset, to).Add(amount)
	return nil
}

func (l *Ledger) balanceLocked(asset, account uuid.UUID) decimal.Decimal {
	if balance, ok := l.balances[asset][account]; ok {
		return balance
	}
	return decimal.Zero
}
