package dto

import (
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerflow/internal/domain"
)

// CreateTransferRequest represents a request to initiate a transfer.
// Currency is accepted for compatibility and checked against the accounts
// by the ledger, not here.
type CreateTransferRequest struct {
	IdempotencyKey string              `json:"idempotency_key"`
	SourceAccount  string              `json:"source_account"`
	TargetAccount  string              `json:"target_account"`
	Amount         decimal.NullDecimal `json:"amount"`
	Currency       string              `json:"currency,omitempty"`
}

// ToDomain converts to a domain transfer request.
func (r *CreateTransferRequest) ToDomain() domain.TransferRequest {
	return domain.TransferRequest{
		ReferenceID:   r.IdempotencyKey,
		SourceAccount: r.SourceAccount,
		TargetAccount: r.TargetAccount,
		Amount:        r.Amount.Decimal,
	}
}
