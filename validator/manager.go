package validator

import (
	"context"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	// MAX_VALIDATORS bounds the active set.
	MAX_VALIDATORS = 20
	// MIN_VALIDATOR_SCORE is the performance floor; validators scoring below
	// it are deactivated and excluded from new allocations.
	MIN_VALIDATOR_SCORE uint32 = 70
)

var (
	ErrTooManyValidators  = errors.New("validator set is full")
	ErrValidatorExists    = errors.New("validator already registered")
	ErrValidatorNotFound  = errors.New("validator not found")
	ErrScoreTooLow        = errors.New("validator score below minimum")
	ErrNoActiveValidators = errors.New("no active validators to allocate to")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrUnauthorized       = errors.New("caller is not authorized")
)

type Validator struct {
	Address uuid.UUID `json:"address"`
	Name    string    `json:"name"`
	Score   uint32    `json:"score"`
	Active  bool      `json:"active"`
}

// Manager tracks the validator set and splits staked funds evenly across
// active validators. Allocations are bookkeeping only; actual delegation
// happens off-process.
type Manager struct {
	mu sync.Mutex

	admin uuid.UUID
	pool  uuid.UUID
	log   zerolog.Logger

	validators     []*Validator
	allocations    map[uuid.UUID]decimal.Decimal
	totalAllocated decimal.Decimal
}

func NewManager(admin, pool uuid.UUID, log zerolog.Logger) *Manager {
	return &Manager{
		admin:          admin,
		pool:           pool,
		log:            log,
		allocations:    make(map[uuid.UUID]decimal.Decimal),
		totalAllocated: decimal.Zero,
	}
}

// Add registers a validator. Admin only; the score must clear the floor.
func (m *Manager) Add(ctx context.Context, caller, address uuid.UUID, name string, score uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.admin {
		return ErrUnauthorized
	}
	if len(m.validators) >= MAX_VALIDATORS {
		return ErrTooManyValidators
	}
	if score < MIN_VALIDATOR_SCORE {
		return ErrScoreTooLow
	}
	if m.find(address) != nil {
		return ErrValidatorExists
	}

	m.validators = append(m.validators, &Validator{
		Address: address,
		Name:    name,
		Score:   score,
		Active:  true,
	})
	m.log.Info().Str("validator", address.String()).Str("name", name).Msg("validator added")
	return nil
}

// Remove drops a validator; its allocation is folded back and redistributed
// across the remaining active set. Admin only.
func (m *Manager) Remove(ctx context.Context, caller, address uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.admin {
		return ErrUnauthorized
	}

	idx := -1
	for i, v := range m.validators {
		if v.Address == address {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrValidatorNotFound
	}

	m.validators = append(m.validators[:idx], m.validators[idx+1:]...)
	delete(m.allocations, address)
	m.rebalanceLocked()

	m.log.Info().Str("validator", address.String()).Msg("validator removed")
	return nil
}

// UpdateScore records a new performance score. Scores below the floor
// deactivate the validator; recovering above it reactivates. Admin only.
func (m *Manager) UpdateScore(ctx context.Context, caller, address uuid.UUID, score uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.admin {
		return ErrUnauthorized
	}

	validator := m.find(address)
	if validator == nil {
		return ErrValidatorNotFound
	}

	validator.Score = score
	wasActive := validator.Active
	validator.Active = score >= MIN_VALIDATOR_SCORE
	if wasActive != validator.Active {
		m.rebalanceLocked()
		m.log.Warn().
			Str("validator", address.String()).
			Uint32("score", score).
			Bool("active", validator.Active).
			Msg("validator activity changed")
	}
	return nil
}

// AllocateStake splits a new stake evenly over the active set, with the
// division remainder going to the first active validator. Only the staking
// pool may allocate.
func (m *Manager) AllocateStake(ctx context.Context, caller uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.pool {
		return ErrUnauthorized
	}

	active := m.activeLocked()
	if len(active) == 0 {
		return ErrNoActiveValidators
	}

	share := amount.Div(decimal.NewFromInt(int64(len(active)))).Truncate(0)
	remainder := amount.Sub(share.Mul(decimal.NewFromInt(int64(len(active)))))

	for i, v := range active {
		portion := share
		if i == 0 {
			portion = portion.Add(remainder)
		}
		m.allocations[v.Address] = m.allocationLocked(v.Address).Add(portion)
	}
	m.totalAllocated = m.totalAllocated.Add(amount)
	return nil
}

// Rebalance redistributes all allocated stake evenly across the active set.
// Admin only.
func (m *Manager) Rebalance(ctx context.Context, caller uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.admin {
		return ErrUnauthorized
	}
	if len(m.activeLocked()) == 0 {
		return ErrNoActiveValidators
	}
	m.rebalanceLocked()
	return nil
}

func (m *Manager) rebalanceLocked() {
	active := m.activeLocked()
	m.allocations = make(map[uuid.UUID]decimal.Decimal, len(active))
	if len(active) == 0 || !m.totalAllocated.IsPositive() {
		return
	}

	share := m.totalAllocated.Div(decimal.NewFromInt(int64(len(active)))).Truncate(0)
	remainder := m.totalAllocated.Sub(share.Mul(decimal.NewFromInt(int64(len(active)))))
	for i, v := range active {
		portion := share
		if i == 0 {
			portion = portion.Add(remainder)
		}
		m.allocations[v.Address] = portion
	}
}

func (m *Manager) Validators() []*Validator {
	m.mu.Lock()
	defer m.mu.Unlock()

	validators := make([]*Validator, 0, len(m.validators))
	for _, v := range m.validators {
		cloned := *v
		validators = append(validators, &cloned)
	}
	return validators
}

func (m *Manager) Allocation(address uuid.UUID) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allocationLocked(address)
}

func (m *Manager) TotalAllocated() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalAllocated.Copy()
}

func (m *Manager) find(address uuid.UUID) *Validator {
	for _, v := range m.validators {
		if v.Address == address {
			return v
		}
	}
	return nil
}

func (m *Manager) activeLocked() []*Validator {
	active := make([]*Validator, 0, len(m.validators))
	for _, v := range m.validators {
		if v.Active {
			active = append(active, v)
		}
	}
	return active
}

func (m *Manager) allocationLocked(address uuid.UUID) decimal.Decimal {
	if allocation, ok := m.allocations[address]; ok {
		return allocation
	}
	return decimal.Zero
}
