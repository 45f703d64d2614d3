package domain

import "errors"

// Every public operation fails with exactly one of these sentinels (possibly
// wrapped). A failed operation leaves no partial state behind.
var (
	// Input validation.
	ErrInvalidDuration = errors.New("market duration must be positive")
	ErrMissingOracle   = errors.New("oracle reference is required")
	ErrStakeTooSmall   = errors.New("stake below minimum")

	// Temporal violations.
	ErrMarketEnded     = errors.New("market has ended")
	ErrResolveTooEarly = errors.New("market has not ended yet")

	// State conflicts.
	ErrAlreadyResolved = errors.New("market already resolved")
	ErrNotResolved     = errors.New("market not resolved")

	// Redemption.
	ErrNothingToClaim  = errors.New("no winning shares to claim")
	ErrNoWinningShares = errors.New("winning side has no shares")

	// Settlement re-entrancy guard.
	ErrSettlementInProgress = errors.New("settlement already in progress")

	// Lookup / access.
	ErrMarketNotFound = errors.New("market not found")
	ErrUnauthorized   = errors.New("unauthorized")

	// Collaborators.
	ErrOracleFailure     = errors.New("oracle read failed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrLockHeld          = errors.New("lock already held")
)
