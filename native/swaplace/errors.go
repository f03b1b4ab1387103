package swaplace

import (
	"errors"
	"fmt"

	nativecommon "swaplace/native/common"
)

var (
	ErrInvalidAddress      = errors.New("swaplace: invalid address")
	ErrInvalidAmount       = errors.New("swaplace: invalid amount")
	ErrInvalidAssetsLength = errors.New("swaplace: invalid assets length")
	ErrMismatchingLengths  = errors.New("swaplace: mismatching lengths")
	ErrInvalidValue        = errors.New("swaplace: invalid native value")
	ErrUnauthorized        = errors.New("swaplace: caller not authorized")
	ErrInvalidExpiry       = errors.New("swaplace: invalid expiry")
	ErrUnknownContract     = errors.New("swaplace: unknown token contract")
	ErrUnsupportedTransfer = errors.New("swaplace: contract does not support transfer shape")

	errNilState = errors.New("swaplace: state not configured")
)

// ExpiryError reports a swap whose expiry has already passed. Consumed and
// never-created ids report an expiry of zero.
type ExpiryError struct {
	Expiry uint64
}

func (e *ExpiryError) Error() string {
	return fmt.Sprintf("swaplace: invalid expiry %d", e.Expiry)
}

func (e *ExpiryError) Unwrap() error { return ErrInvalidExpiry }

// ErrorClass groups failures for status mapping and metrics labels.
type ErrorClass string

const (
	ClassNone         ErrorClass = ""
	ClassValidation   ErrorClass = "validation"
	ClassUnauthorized ErrorClass = "unauthorized"
	ClassTemporal     ErrorClass = "temporal"
	ClassPaused       ErrorClass = "paused"
	ClassQuota        ErrorClass = "quota"
	ClassDownstream   ErrorClass = "downstream"
)

// Classify maps err onto its ErrorClass. Anything not raised by the engine
// itself is attributed to the token contracts or the environment.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrInvalidExpiry):
		return ClassTemporal
	case errors.Is(err, ErrUnauthorized):
		return ClassUnauthorized
	case errors.Is(err, nativecommon.ErrModulePaused):
		return ClassPaused
	case errors.Is(err, nativecommon.ErrQuotaSwapsExceeded),
		errors.Is(err, nativecommon.ErrQuotaEscrowExceeded),
		errors.Is(err, nativecommon.ErrQuotaCounterOverflow):
		return ClassQuota
	case errors.Is(err, ErrInvalidAddress),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidAssetsLength),
		errors.Is(err, ErrMismatchingLengths),
		errors.Is(err, ErrInvalidValue),
		errors.Is(err, ErrUnknownContract),
		errors.Is(err, ErrUnsupportedTransfer):
		return ClassValidation
	default:
		return ClassDownstream
	}
}
