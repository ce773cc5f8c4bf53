package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrAuthenticationRequired means an operation was attempted without a
	// resolved identity. No mutation is attempted.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrSessionExpired means the caller's credential became invalid
	// mid-operation; the consuming flow should re-authenticate.
	ErrSessionExpired = errors.New("session expired")

	// ErrSelfAcceptForbidden means a user tried to accept their own offer.
	ErrSelfAcceptForbidden = errors.New("cannot accept your own offer")

	// ErrInsufficientBalance is the errors.Is target for
	// InsufficientBalanceError.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrOfferNoLongerAvailable means a conditional write matched zero rows:
	// the offer was claimed, resolved or deleted underneath the caller. It is
	// a soft failure; callers refresh their cached view and move on.
	ErrOfferNoLongerAvailable = errors.New("offer is no longer available")

	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailTaken means signup hit an existing account.
	ErrEmailTaken = errors.New("user with this email already exists")
)

// ValidationError is a creation-time field error. It is recovered locally by
// the caller re-prompting; nothing is sent to the persistence gateway.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InsufficientBalanceError reports how many hours the accept needed against
// how many the user actually has.
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("you need %s hours to accept this offer, your balance: %s hours",
		e.Required.String(), e.Available.String())
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}
