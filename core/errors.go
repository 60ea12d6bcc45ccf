package core

import "github.com/pkg/errors"

var (
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidConfig          = errors.New("invalid risk parameters")
	ErrUnauthorized           = errors.New("caller is not authorized")
	ErrTransferFailed         = errors.New("asset transfer failed")
	ErrInsufficientCollateral = errors.New("insufficient collateral")
	ErrBorrowLimitExceeded    = errors.New("borrow would exceed collateral limit")
	ErrUnhealthyWithdrawal    = errors.New("withdrawal would leave position undercollateralized")
	ErrHealthFactorTooLow     = errors.New("health factor too low")
	ErrInsufficientLiquidity  = errors.New("insufficient engine liquidity")
	ErrNoDebt                 = errors.New("position has no outstanding debt")
	ErrPositionHealthy        = errors.New("position is healthy, not eligible for liquidation")
)
