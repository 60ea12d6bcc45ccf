package gov

import (
	"context"
	"sort"
	"sync"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rajdeep-singha/sXLM/core"
)

const (
	// VOTING_PERIOD is how long a proposal accepts votes, in seconds.
	VOTING_PERIOD int64 = 604_800
	// EXECUTION_DELAY is the timelock between passing and execution.
	EXECUTION_DELAY int64 = 172_800
	// QUORUM_BPS is the share of the reference supply that must vote.
	QUORUM_BPS int64 = 1_000
)

var (
	ErrProposalNotFound  = errors.New("proposal not found")
	ErrProposalNotActive = errors.New("proposal is not active")
	ErrVotingEnded       = errors.New("voting period has ended")
	ErrVotingNotEnded    = errors.New("voting period has not ended")
	ErrAlreadyVoted      = errors.New("account has already voted")
	ErrNoVotingPower     = errors.New("account holds no voting power")
	ErrNotPassed         = errors.New("proposal has not passed")
	ErrTimelocked        = errors.New("execution delay has not elapsed")
	ErrUnauthorized      = errors.New("caller is not authorized")
	ErrEmptyProposal     = errors.New("proposal title must not be empty")
)

type ProposalStatus uint8

const (
	StatusActive ProposalStatus = iota
	StatusPassed
	StatusFailed
	StatusExecuted
	StatusCancelled
)

func (s ProposalStatus) String() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusPassed:
		return "Passed"
	case StatusFailed:
		return "Failed"
	case StatusExecuted:
		return "Executed"
	case StatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

type VoteChoice uint8

const (
	VoteFor VoteChoice = iota
	VoteAgainst
	VoteAbstain
)

type (
	Proposal struct {
		Id           uint64          `json:"id"`
		Proposer     uuid.UUID       `json:"proposer"`
		Title        string          `json:"title"`
		Description  string          `json:"description"`
		Status       ProposalStatus  `json:"status"`
		VotesFor     decimal.Decimal `json:"votesFor"`
		VotesAgainst decimal.Decimal `json:"votesAgainst"`
		VotesAbstain decimal.Decimal `json:"votesAbstain"`
		CreatedAt    int64           `json:"createdAt"`
		VotingEndsAt int64           `json:"votingEndsAt"`
		ExecutableAt int64           `json:"executableAt,omitempty"`
	}

	Vote struct {
		ProposalId uint64          `json:"proposalId"`
		Voter      uuid.UUID       `json:"voter"`
		Choice     VoteChoice      `json:"choice"`
		Power      decimal.Decimal `json:"power"`
		CastAt     int64           `json:"castAt"`
	}

	// VotingPower reads an account's sXLM balance at vote time.
	VotingPower interface {
		BalanceOf(ctx context.Context, asset, account uuid.UUID) (decimal.Decimal, error)
	}
)

// Registry runs token-weighted governance over sXLM holders. Voting power is
// sampled at vote time; there is no snapshotting.
type Registry struct {
	mu sync.Mutex

	admin           uuid.UUID
	stakedAsset     uuid.UUID
	token           VotingPower
	referenceSupply decimal.Decimal

	clk clock.Clock
	log zerolog.Logger

	proposals map[uint64]*Proposal
	votes     map[uint64]map[uuid.UUID]*Vote
	nextId    uint64
}

type OptionFunc func(*Registry)

func WithClock(clk clock.Clock) OptionFunc {
	return func(r *Registry) {
		r.clk = clk
	}
}

func WithLogger(log zerolog.Logger) OptionFunc {
	return func(r *Registry) {
		r.log = log
	}
}

func NewRegistry(admin, stakedAsset uuid.UUID, token VotingPower, opts ...OptionFunc) *Registry {
	registry := &Registry{
		admin:           admin,
		stakedAsset:     stakedAsset,
		token:           token,
		referenceSupply: decimal.Zero,
		clk:             clock.New(),
		log:             zerolog.Nop(),
		proposals:       make(map[uint64]*Proposal),
		votes:           make(map[uint64]map[uuid.UUID]*Vote),
	}
	for _, opt := range opts {
		opt(registry)
	}
	return registry
}

// SetReferenceSupply pins the supply quorum is measured against. Admin only.
func (r *Registry) SetReferenceSupply(ctx context.Context, caller uuid.UUID, supply decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.admin {
		return ErrUnauthorized
	}
	if supply.IsNegative() {
		return ErrNoVotingPower
	}
	r.referenceSupply = supply
	return nil
}

// CreateProposal opens a proposal for voting. The proposer must hold sXLM.
func (r *Registry) CreateProposal(ctx context.Context, proposer uuid.UUID, title, description string) (uint64, error) {
	if title == "" {
		return 0, ErrEmptyProposal
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	power, err := r.token.BalanceOf(ctx, r.stakedAsset, proposer)
	if err != nil {
		return 0, err
	}
	if !power.IsPositive() {
		return 0, ErrNoVotingPower
	}

	r.nextId++
	now := r.clk.Now().Unix()
	proposal := &Proposal{
		Id:           r.nextId,
		Proposer:     proposer,
		Title:        title,
		Description:  description,
		Status:       StatusActive,
		VotesFor:     decimal.Zero,
		VotesAgainst: decimal.Zero,
		VotesAbstain: decimal.Zero,
		CreatedAt:    now,
		VotingEndsAt: now + VOTING_PERIOD,
	}
	r.proposals[proposal.Id] = proposal
	r.votes[proposal.Id] = make(map[uuid.UUID]*Vote)

	r.log.Info().Uint64("proposalId", proposal.Id).Str("title", title).Msg("proposal created")
	return proposal.Id, nil
}

// CastVote records a vote weighted by the voter's current sXLM balance. One
// vote per account per proposal.
func (r *Registry) CastVote(ctx context.Context, voter uuid.UUID, proposalId uint64, choice VoteChoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	proposal, ok := r.proposals[proposalId]
	if !ok {
		return ErrProposalNotFound
	}
	if proposal.Status != StatusActive {
		return ErrProposalNotActive
	}

	now := r.clk.Now().Unix()
	if now >= proposal.VotingEndsAt {
		return ErrVotingEnded
	}
	if _, voted := r.votes[proposalId][voter]; voted {
		return ErrAlreadyVoted
	}

	power, err := r.token.BalanceOf(ctx, r.stakedAsset, voter)
	if err != nil {
		return err
	}
	if !power.IsPositive() {
		return ErrNoVotingPower
	}

	switch choice {
	case VoteFor:
		proposal.VotesFor = proposal.VotesFor.Add(power)
	case VoteAgainst:
		proposal.VotesAgainst = proposal.VotesAgainst.Add(power)
	case VoteAbstain:
		proposal.VotesAbstain = proposal.VotesAbstain.Add(power)
	}

	r.votes[proposalId][voter] = &Vote{
		ProposalId: proposalId,
		Voter:      voter,
		Choice:     choice,
		Power:      power,
		CastAt:     now,
	}
	return nil
}

// Finalize tallies an active proposal after voting closes. Passing requires
// quorum against the reference supply and a strict for-majority; a passed
// proposal becomes executable after the timelock.
func (r *Registry) Finalize(ctx context.Context, proposalId uint64) (ProposalStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	proposal, ok := r.proposals[proposalId]
	if !ok {
		return 0, ErrProposalNotFound
	}
	if proposal.Status != StatusActive {
		return 0, ErrProposalNotActive
	}

	now := r.clk.Now().Unix()
	if now < proposal.VotingEndsAt {
		return 0, ErrVotingNotEnded
	}

	quorum := r.referenceSupply.
		Mul(decimal.NewFromInt(QUORUM_BPS)).
		Div(core.BPS_DENOMINATOR).
		Truncate(0)
	turnout := proposal.VotesFor.Add(proposal.VotesAgainst).Add(proposal.VotesAbstain)

	if turnout.GreaterThanOrEqual(quorum) && proposal.VotesFor.GreaterThan(proposal.VotesAgainst) {
		proposal.Status = StatusPassed
		proposal.ExecutableAt = now + EXECUTION_DELAY
	} else {
		proposal.Status = StatusFailed
	}

	r.log.Info().
		Uint64("proposalId", proposalId).
		Str("status", proposal.Status.String()).
		Str("turnout", turnout.String()).
		Msg("proposal finalized")
	return proposal.Status, nil
}

// Execute marks a passed proposal executed once its timelock elapses.
func (r *Registry) Execute(ctx context.Context, proposalId uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	proposal, ok := r.proposals[proposalId]
	if !ok {
		return ErrProposalNotFound
	}
	if proposal.Status != StatusPassed {
		return ErrNotPassed
	}
	if r.clk.Now().Unix() < proposal.ExecutableAt {
		return ErrTimelocked
	}

	proposal.Status = StatusExecuted
	r.log.Info().Uint64("proposalId", proposalId).Msg("proposal executed")
	return nil
}

// Cancel voids an active proposal. Only the proposer or admin may cancel.
func (r *Registry) Cancel(ctx context.Context, caller uuid.UUID, proposalId uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	proposal, ok := r.proposals[proposalId]
	if !ok {
		return ErrProposalNotFound
	}
	if caller != proposal.Proposer && caller != r.admin {
		return ErrUnauthorized
	}
	if proposal.Status != StatusActive {
		return ErrProposalNotActive
	}

	proposal.Status = StatusCancelled
	return nil
}

func (r *Registry) GetProposal(proposalId uint64) (*Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	proposal, ok := r.proposals[proposalId]
	if !ok {
		return nil, ErrProposalNotFound
	}
	cloned := *proposal
	return &cloned, nil
}

func (r *Registry) GetVote(proposalId uint64, voter uuid.UUID) (*Vote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	votes, ok := r.votes[proposalId]
	if !ok {
		return nil, ErrProposalNotFound
	}
	vote, ok := votes[voter]
	if !ok {
		return nil, ErrProposalNotFound
	}
	cloned := *vote
	return &cloned, nil
}

func (r *Registry) ListProposals() []*Proposal {
	r.mu.Lock()
	defer r.mu.Unlock()

	proposals := make([]*Proposal, 0, len(r.proposals))
	for _, proposal := range r.proposals {
		cloned := *proposal
		proposals = append(proposals, &cloned)
	}
	sort.Slice(proposals, func(i, j int) bool { return proposals[i].Id < proposals[j].Id })
	return proposals
}

func (r *Registry) ActiveProposals() []*Proposal {
	proposals := r.ListProposals()
	active := proposals[:0]
	for _, proposal := range proposals {
		if proposal.Status == StatusActive {
			active = append(active, proposal)
		}
	}
	return active
}

// Stats summarizes the registry by proposal status.
type Stats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Passed    int `json:"passed"`
	Failed    int `json:"failed"`
	Executed  int `json:"executed"`
	Cancelled int `json:"cancelled"`
}

func (r *Registry) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{Total: len(r.proposals)}
	for _, proposal := range r.proposals {
		switch proposal.Status {
		case StatusActive:
			stats.Active++
		case StatusPassed:
			stats.Passed++
		case StatusFailed:
			stats.Failed++
		case StatusExecuted:
			stats.Executed++
		case StatusCancelled:
			stats.Cancelled++
		}
	}
	return stats
}
