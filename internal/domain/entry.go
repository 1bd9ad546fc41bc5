package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind is the side of a journal entry.
type EntryKind string

const (
	EntryKindDebit  EntryKind = "DEBIT"
	EntryKindCredit EntryKind = "CREDIT"
)

// JournalEntry represents one immutable side of a transfer.
// Amount is signed: debits are negative, credits positive.
type JournalEntry struct {
	CreatedAt              time.Time
	ID                     string
	TransactionRef         string
	AccountNumber          string
	Kind                   EntryKind
	Amount                 decimal.Decimal
	AccountPreviousBalance decimal.Decimal
	AccountCurrentBalance  decimal.Decimal
	AccountVersion         int64
}

// NewJournalEntry posts amount against account and returns the entry with the
// balance snapshot the posting produces. The account is not modified.
func NewJournalEntry(id, transactionRef string, kind EntryKind, account *Account, amount decimal.Decimal, now time.Time) *JournalEntry {
	signed := amount
	next := account.ApplyCredit(amount)
	if kind == EntryKindDebit {
		signed = amount.Neg()
		next = account.ApplyDebit(amount)
	}

	return &JournalEntry{
		ID:                     id,
		TransactionRef:         transactionRef,
		AccountNumber:          account.AccountNumber,
		Kind:                   kind,
		Amount:                 signed,
		AccountPreviousBalance: account.Balance,
		AccountCurrentBalance:  next,
		AccountVersion:         account.Version + 1,
		CreatedAt:              now,
	}
}

// CheckConservation verifies the journal entries recorded for txn.
// A completed transaction has one debit and one credit that cancel out and
// match the amount; any other status has no entries.
func CheckConservation(txn *Transaction, entries []*JournalEntry) error {
	if txn.Status != TransactionStatusCompleted {
		if len(entries) != 0 {
			return fmt.Errorf("%w: %s transaction %s has %d entries",
				ErrConservationViolated, txn.Status, txn.ReferenceID, len(entries))
		}
		return nil
	}

	if len(entries) != 2 {
		return fmt.Errorf("%w: transaction %s has %d entries, want 2",
			ErrConservationViolated, txn.ReferenceID, len(entries))
	}

	sum := decimal.Zero
	kinds := make(map[EntryKind]int, 2)
	for _, e := range entries {
		if !e.Amount.Abs().Equal(txn.Amount) {
			return fmt.Errorf("%w: entry %s magnitude %s differs from amount %s",
				ErrConservationViolated, e.ID, e.Amount.Abs().String(), txn.Amount.String())
		}
		sum = sum.Add(e.Amount)
		kinds[e.Kind]++
	}

	if kinds[EntryKindDebit] != 1 || kinds[EntryKindCredit] != 1 {
		return fmt.Errorf("%w: transaction %s needs one debit and one credit",
			ErrConservationViolated, txn.ReferenceID)
	}

	if !sum.IsZero() {
		return fmt.Errorf("%w: transaction %s entries sum to %s",
			ErrConservationViolated, txn.ReferenceID, sum.String())
	}

	return nil
}
