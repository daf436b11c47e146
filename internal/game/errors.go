package game

import "errors"

var (
	ErrMissingUser       = errors.New("user id is required")
	ErrInvalidStake      = errors.New("invalid bet amount")
	ErrInvalidTarget     = errors.New("auto cashout must be above 1.00x")
	ErrBettingClosed     = errors.New("betting is closed")
	ErrDuplicateBet      = errors.New("already have a bet in this round")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrNoBet             = errors.New("no bet found for this round")
	ErrAlreadyCashedOut  = errors.New("already cashed out")
	ErrRoundNotActive    = errors.New("round is not active")
	ErrNotRunning        = errors.New("game manager is not running")
	ErrNegativeBalance   = errors.New("balance cannot be negative")

	// ErrSettlement wraps wallet failures during bet placement and cash-out.
	ErrSettlement = errors.New("settlement unavailable")
)

// IsRejection reports whether err is a validation outcome the caller caused,
// as opposed to a dependency failure.
func IsRejection(err error) bool {
	switch {
	case errors.Is(err, ErrMissingUser),
		errors.Is(err, ErrInvalidStake),
		errors.Is(err, ErrInvalidTarget),
		errors.Is(err, ErrBettingClosed),
		errors.Is(err, ErrDuplicateBet),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrAlreadyCashedOut),
		errors.Is(err, ErrRoundNotActive),
		errors.Is(err, ErrNegativeBalance):
		return true
	}
	return false
}
