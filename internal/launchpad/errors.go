// =============================
// File: internal/launchpad/errors.go
// =============================
package launchpad

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// Every error returned by the engine wraps one of these; match with errors.Is.
var (
	ErrValidation              = errors.New("validation failed")
	ErrSlippage                = errors.New("slippage exceeded")
	ErrDeadlineExpired         = errors.New("deadline expired")
	ErrDuplicateLaunch         = errors.New("source asset already launched")
	ErrInsufficientEscrow      = errors.New("insufficient escrow")
	ErrInactiveCurve           = errors.New("bonding curve is not active")
	ErrProtectedAsset          = errors.New("asset is protected from withdrawal")
	ErrInsufficientFreeBalance = errors.New("amount exceeds free balance")
	ErrExternalCall            = errors.New("external call failed")
	ErrUnknownToken            = errors.New("unknown wrapper token")
	ErrUnauthorized            = errors.New("caller is not the operator")
	ErrReentrantCall           = errors.New("reentrant call")
	ErrThresholdNotReached     = errors.New("graduation threshold not reached")
)

// SlippageError reports a trade whose settled amount violates the caller's bound.
type SlippageError struct {
	Side     string // "buy" or "sell"
	Bound    *uint256.Int
	Computed *uint256.Int
}

func (e *SlippageError) Error() string {
	if e.Side == "buy" {
		return fmt.Sprintf("slippage exceeded: total cost %s is above max cost %s",
			e.Computed.Dec(), e.Bound.Dec())
	}
	return fmt.Sprintf("slippage exceeded: net proceeds %s are below min proceeds %s",
		e.Computed.Dec(), e.Bound.Dec())
}

func (e *SlippageError) Unwrap() error {
	return ErrSlippage
}

// IsSlippageError reports whether err was caused by a violated slippage bound.
func IsSlippageError(err error) bool {
	var se *SlippageError
	return errors.As(err, &se)
}

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
