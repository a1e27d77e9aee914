package domain

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
)

// Codespace scopes every error code raised by the marketplace.
const Codespace = "pat"

// Validation errors.
var (
	ErrInvalidWindow             = errorsmod.Register(Codespace, 2, "invalid window")
	ErrInvalidConfidence         = errorsmod.Register(Codespace, 3, "invalid confidence")
	ErrInvalidPrice              = errorsmod.Register(Codespace, 4, "invalid price")
	ErrInvalidSegmentType        = errorsmod.Register(Codespace, 5, "invalid segment type")
	ErrVestingDurationOutOfRange = errorsmod.Register(Codespace, 6, "vesting duration out of range")
	ErrInvalidAmount             = errorsmod.Register(Codespace, 7, "invalid amount")
	ErrInvalidRecipient          = errorsmod.Register(Codespace, 8, "invalid recipient")
)

// Authorization errors.
var (
	ErrNotAuthorized = errorsmod.Register(Codespace, 20, "not authorized")
	ErrNotProvider   = errorsmod.Register(Codespace, 21, "caller is not the segment provider")
)

// State-conflict errors.
var (
	ErrMarketPaused          = errorsmod.Register(Codespace, 40, "market paused")
	ErrSegmentNotActive      = errorsmod.Register(Codespace, 41, "segment not active")
	ErrAlreadyHasAccess      = errorsmod.Register(Codespace, 42, "already has access")
	ErrInsufficientAllowance = errorsmod.Register(Codespace, 43, "insufficient allowance")
	ErrInsufficientBalance   = errorsmod.Register(Codespace, 44, "insufficient balance")
	ErrInsufficientEarnings  = errorsmod.Register(Codespace, 45, "insufficient earnings")
	ErrAlreadyDistributed    = errorsmod.Register(Codespace, 46, "already distributed")
	ErrAlreadyAtFinalPhase   = errorsmod.Register(Codespace, 47, "already at final phase")
	ErrNothingToRelease      = errorsmod.Register(Codespace, 48, "nothing to release")
	ErrAlreadyInitialized    = errorsmod.Register(Codespace, 49, "already initialized")
	ErrNotInitialized        = errorsmod.Register(Codespace, 50, "not initialized")
	ErrReentrantCall         = errorsmod.Register(Codespace, 51, "reentrant call")
	ErrUnsupportedOperation  = errorsmod.Register(Codespace, 52, "operation not supported by running version")
	ErrNotDistributed        = errorsmod.Register(Codespace, 53, "allocation not distributed")
)

// Not-found errors.
var (
	ErrSegmentNotFound = errorsmod.Register(Codespace, 60, "segment not found")
)

// Configuration errors.
var (
	ErrInvalidConfiguration = errorsmod.Register(Codespace, 80, "invalid configuration")
	ErrInvalidVersion       = errorsmod.Register(Codespace, 81, "invalid version")
)

// ErrorCategory classifies failures for callers and transports.
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryAuthorization ErrorCategory = "authorization"
	CategoryStateConflict ErrorCategory = "state_conflict"
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryInternal      ErrorCategory = "internal"
)

// CategoryOf maps an error to its category by registered code range.
// Errors outside the codespace are internal.
func CategoryOf(err error) ErrorCategory {
	var coded *errorsmod.Error
	if !errors.As(err, &coded) || coded.Codespace() != Codespace {
		return CategoryInternal
	}
	switch code := coded.ABCICode(); {
	case code < 20:
		return CategoryValidation
	case code < 40:
		return CategoryAuthorization
	case code < 60:
		return CategoryStateConflict
	case code < 80:
		return CategoryNotFound
	default:
		return CategoryConfiguration
	}
}
