package matrix

import "errors"

var (
	ErrNilLedger             = errors.New("matrix: ledger required")
	ErrNilRecord             = errors.New("matrix: participant record required")
	ErrReferrerNotRegistered = errors.New("matrix: referrer not registered")
	ErrSelfReferral          = errors.New("matrix: participant cannot refer itself")
	ErrInvalidSlot           = errors.New("matrix: invalid slot index")
)
