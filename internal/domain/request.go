package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TransferRequest asks to move Amount from SourceAccount to TargetAccount.
// ReferenceID is the caller's idempotency key.
type TransferRequest struct {
	ReferenceID   string
	SourceAccount string
	TargetAccount string
	Amount        decimal.Decimal
}

// ValidateShape checks that every field is present and storable. Business
// rules on the amount and on account existence are checked later and end in a
// FAILED transaction.
func (r TransferRequest) ValidateShape() error {
	if strings.TrimSpace(r.ReferenceID) == "" {
		return ErrInvalidReferenceID
	}

	if len(r.ReferenceID) > MaxReferenceIDLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidReferenceID, MaxReferenceIDLength)
	}

	if err := checkStorableText(r.ReferenceID); err != nil {
		return fmt.Errorf("%w: reference id %w", ErrInvalidReferenceID, err)
	}

	if strings.TrimSpace(r.SourceAccount) == "" {
		return fmt.Errorf("%w: source account is required", ErrMalformedRequest)
	}

	if strings.TrimSpace(r.TargetAccount) == "" {
		return fmt.Errorf("%w: target account is required", ErrMalformedRequest)
	}

	if err := ValidateAccountNumber(r.SourceAccount); err != nil {
		return fmt.Errorf("%w: source account: %w", ErrMalformedRequest, err)
	}

	if err := ValidateAccountNumber(r.TargetAccount); err != nil {
		return fmt.Errorf("%w: target account: %w", ErrMalformedRequest, err)
	}

	return nil
}

// Matches reports whether txn was recorded from the same request fields.
func (r TransferRequest) Matches(txn *Transaction) bool {
	return r.SourceAccount == txn.SourceAccount &&
		r.TargetAccount == txn.TargetAccount &&
		r.Amount.Equal(txn.Amount)
}
