package domain

import (
	"errors"
	"fmt"
)

var (
	// Account errors
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountExists     = errors.New("account already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrConcurrentUpdate  = errors.New("account was modified concurrently")

	// Transaction errors
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrCurrencyMismatch    = errors.New("cannot transfer between different currencies")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidTransition   = errors.New("transaction is already in a terminal state")
	ErrTransactionLocked   = errors.New("transaction is locked by another worker")

	// Journal errors
	ErrConservationViolated = errors.New("journal entries violate conservation of money")

	// Request errors
	ErrInvalidReferenceID = errors.New("reference id is required")
	ErrMalformedRequest   = errors.New("malformed transfer request")
	ErrDuplicateRequest   = errors.New("duplicate request")
	ErrRequestInFlight    = fmt.Errorf("%w: earlier attempt still in flight", ErrDuplicateRequest)
)

// IsValidationError reports whether err is a deterministic business rule
// failure. Such failures end a transaction in FAILED and are never retried.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrCurrencyMismatch)
}
