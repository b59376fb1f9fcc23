package stakes

import (
	"errors"
	"fmt"
)

// Category sentinels. Every operational error wraps exactly one of these so
// callers can branch on the failure class with errors.Is.
var (
	ErrValidation    = errors.New("stakes: invalid input")
	ErrAuthorization = errors.New("stakes: unauthorized")
	ErrState         = errors.New("stakes: invalid lifecycle state")
	ErrTransfer      = errors.New("stakes: value transfer failed")
	ErrResource      = errors.New("stakes: insufficient funds")
)

var (
	ErrAmountTooLow           = fmt.Errorf("%w: amount below minimum stake", ErrValidation)
	ErrAmountTooHigh          = fmt.Errorf("%w: amount above maximum stake", ErrValidation)
	ErrInsufficientReferences = fmt.Errorf("%w: at least two referenced ids required", ErrValidation)
	ErrEmptyRationale         = fmt.Errorf("%w: rationale must not be empty", ErrValidation)
	ErrPaymentMismatch        = fmt.Errorf("%w: attached payment must equal stake amount", ErrValidation)

	ErrNotOwner      = fmt.Errorf("%w: caller does not own the stake", ErrAuthorization)
	ErrNotAuthorized = fmt.Errorf("%w: caller lacks the required role", ErrAuthorization)

	ErrNotFound       = fmt.Errorf("%w: stake not found", ErrState)
	ErrNotActive      = fmt.Errorf("%w: stake is not active", ErrState)
	ErrNotResolved    = fmt.Errorf("%w: stake is not resolved", ErrState)
	ErrLockNotElapsed = fmt.Errorf("%w: lock duration has not elapsed", ErrState)
	ErrCreationPaused = fmt.Errorf("%w: stake creation is suspended", ErrState)
	ErrNoRewardsDue   = fmt.Errorf("%w: no claimable rewards", ErrState)

	ErrInsufficientReserve = fmt.Errorf("%w: reserve below claimable amount", ErrResource)
)

func transferErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrTransfer, err)
}
