package common

import "errors"

var ErrReentrancy = errors.New("common: reentrant call rejected")

// Acquire flips the supplied lock flag from unlocked to locked and returns the
// matching release. Callers must defer the release immediately so the flag is
// cleared on every exit path:
//
//	release, err := common.Acquire(&ledger.Locked)
//	if err != nil {
//		return err
//	}
//	defer release()
func Acquire(locked *bool) (func(), error) {
	if locked == nil {
		return nil, errors.New("common: lock flag not configured")
	}
	if *locked {
		return nil, ErrReentrancy
	}
	*locked = true
	released := false
	return func() {
		if released {
			return
		}
		released = true
		*locked = false
	}, nil
}
