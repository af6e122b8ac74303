package program

import (
	"errors"

	"donutmatrix/core/pricing"
	"donutmatrix/native/common"
	"donutmatrix/native/epoch"
	"donutmatrix/native/matrix"
	"donutmatrix/native/registry"
	"donutmatrix/native/swap"
)

var (
	ErrAlreadyInitialized    = errors.New("program: already initialised")
	ErrNotInitialized        = errors.New("program: not initialised")
	ErrUnauthorized          = errors.New("program: caller is not authorised")
	ErrAirdropAlreadyStarted = errors.New("program: airdrop already started")
	ErrAirdropEnded          = errors.New("program: airdrop ended")
	ErrAlreadyRegistered     = errors.New("program: participant already registered")
	ErrNotRegistered         = errors.New("program: participant not registered")
	ErrNothingToClaim        = errors.New("program: nothing to claim")
	ErrMissingCollaborator   = errors.New("program: collaborator not configured")
)

// ErrorKind classifies a failed operation for callers.
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindAuthorization ErrorKind = "authorization"
	KindValidation    ErrorKind = "validation"
	KindArithmetic    ErrorKind = "arithmetic"
	KindExternalCall  ErrorKind = "external_call"
	KindState         ErrorKind = "state"
	KindInternal      ErrorKind = "internal"
)

// kindTable is checked in order; the first sentinel found in the chain wins.
// Reserve read failures are listed before collaborator failures because a
// short or disabled reserve payload is a validation problem even though it
// surfaces from a collaborator read.
var kindTable = []struct {
	kind      ErrorKind
	sentinels []error
}{
	{KindAuthorization, []error{ErrUnauthorized}},
	{KindValidation, []error{
		registry.ErrInvalidAddress,
		registry.ErrMissingAccount,
		swap.ErrReserveRead,
		swap.ErrPoolDisabled,
		swap.ErrPoolUnusable,
		swap.ErrZeroDeposit,
		matrix.ErrInvalidSlot,
		matrix.ErrSelfReferral,
		pricing.ErrInsufficientDeposit,
	}},
	{KindArithmetic, []error{
		swap.ErrEstimateOutOfRange,
		common.ErrArithmeticOverflow,
		common.ErrDivisionByZero,
		common.ErrUnderflow,
		epoch.ErrNoMatricesInWeek,
	}},
	{KindExternalCall, []error{
		pricing.ErrOracleUnavailable,
		pricing.ErrInvalidPrice,
		swap.ErrWrapFailed,
		swap.ErrSwapFailed,
		swap.ErrBurnFailed,
		swap.ErrCloseFailed,
		swap.ErrTransferFailed,
		swap.ErrBalanceReadFailed,
		swap.ErrNothingReceived,
	}},
	{KindState, []error{
		common.ErrReentrancy,
		ErrAirdropEnded,
		ErrAirdropAlreadyStarted,
		ErrNothingToClaim,
		ErrAlreadyInitialized,
		ErrNotInitialized,
		ErrAlreadyRegistered,
		ErrNotRegistered,
		matrix.ErrReferrerNotRegistered,
		swap.ErrClaimExceedsEarned,
	}},
}

// Kind maps err onto its error kind. Unclassified errors are KindInternal and
// a nil error is KindNone.
func Kind(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, entry := range kindTable {
		for _, sentinel := range entry.sentinels {
			if errors.Is(err, sentinel) {
				return entry.kind
			}
		}
	}
	return KindInternal
}
