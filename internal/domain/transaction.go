package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// IsTerminal reports whether the status can no longer change.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed
}

// MessageTransferSuccessful is the outcome message of a completed transfer.
const MessageTransferSuccessful = "Transfer successful"

// Transaction is the durable record of one transfer request, keyed by the
// caller's reference ID.
type Transaction struct {
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ReferenceID   string
	SourceAccount string
	TargetAccount string
	Status        TransactionStatus
	Reason        string
	Amount        decimal.Decimal
}

// NewPendingTransaction records req as a PENDING transaction.
func NewPendingTransaction(req TransferRequest, now time.Time) *Transaction {
	return &Transaction{
		ReferenceID:   req.ReferenceID,
		SourceAccount: req.SourceAccount,
		TargetAccount: req.TargetAccount,
		Amount:        req.Amount,
		Status:        TransactionStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Complete moves a pending transaction to COMPLETED.
func (t *Transaction) Complete(now time.Time) error {
	if t.Status != TransactionStatusPending {
		return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, t.ReferenceID, t.Status)
	}

	t.Status = TransactionStatusCompleted
	t.Reason = ""
	t.UpdatedAt = now

	return nil
}

// Fail moves a pending transaction to FAILED with reason.
func (t *Transaction) Fail(reason string, now time.Time) error {
	if t.Status != TransactionStatusPending {
		return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, t.ReferenceID, t.Status)
	}

	t.Status = TransactionStatusFailed
	t.Reason = reason
	t.UpdatedAt = now

	return nil
}

// Result returns the outcome recorded for the transaction.
func (t *Transaction) Result() TransferResult {
	switch t.Status {
	case TransactionStatusCompleted:
		return TransferResult{ReferenceID: t.ReferenceID, Status: t.Status, Message: MessageTransferSuccessful}
	case TransactionStatusFailed:
		return TransferResult{ReferenceID: t.ReferenceID, Status: t.Status, Message: t.Reason}
	default:
		return InFlightResult(t.ReferenceID)
	}
}
