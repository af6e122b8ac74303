package swap

import "errors"

var (
	// ErrReserveRead is the umbrella error for unreadable pool reserve data.
	ErrReserveRead = errors.New("swap: reserve read failed")
	// ErrReserveDataTooShort indicates an account payload shorter than the layout requires.
	ErrReserveDataTooShort = errors.New("swap: reserve data too short")
	// ErrPoolDisabled indicates the pool's enabled flag is cleared.
	ErrPoolDisabled = errors.New("swap: pool disabled")
	// ErrPoolUnusable indicates one side of the pool resolved to zero liquidity.
	ErrPoolUnusable = errors.New("swap: pool unusable")
	// ErrEstimateOutOfRange indicates the quoted output does not fit the reward token.
	ErrEstimateOutOfRange = errors.New("swap: estimate out of range")
	// ErrZeroDeposit indicates a settlement was requested for a zero amount.
	ErrZeroDeposit = errors.New("swap: deposit must be positive")

	ErrWrapFailed        = errors.New("swap: wrap native failed")
	ErrSwapFailed        = errors.New("swap: pool swap failed")
	ErrBurnFailed        = errors.New("swap: burn failed")
	ErrCloseFailed       = errors.New("swap: close account failed")
	ErrTransferFailed    = errors.New("swap: transfer failed")
	ErrBalanceReadFailed = errors.New("swap: balance read failed")
	// ErrNothingReceived indicates the settlement vault did not grow across a swap.
	ErrNothingReceived = errors.New("swap: swap produced no output")
	// ErrClaimExceedsEarned indicates a payout would break total_claimed <= total_earned.
	ErrClaimExceedsEarned = errors.New("swap: claim exceeds earned balance")
	// ErrNotConfigured indicates the settler is missing a collaborator.
	ErrNotConfigured = errors.New("swap: settler not configured")
)
