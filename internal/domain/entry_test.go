package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewJournalEntry(t *testing.T) {
	now := time.Now().UTC()
	acc := &Account{AccountNumber: "ACC_ALICE", Balance: decimal.RequireFromString("1000.00"), Version: 3}
	amount := decimal.RequireFromString("100.00")

	debit := NewJournalEntry("e1", "R1", EntryKindDebit, acc, amount, now)
	if !debit.Amount.Equal(amount.Neg()) {
		t.Errorf("debit amount = %s, want -100.00", debit.Amount)
	}
	if !debit.AccountCurrentBalance.Equal(decimal.RequireFromString("900.00")) {
		t.Errorf("debit current balance = %s, want 900.00", debit.AccountCurrentBalance)
	}
	if debit.AccountVersion != 4 {
		t.Errorf("debit version = %d, want 4", debit.AccountVersion)
	}

	credit := NewJournalEntry("e2", "R1", EntryKindCredit, acc, amount, now)
	if !credit.Amount.Equal(amount) || !credit.AccountCurrentBalance.Equal(decimal.RequireFromString("1100.00")) {
		t.Errorf("unexpected credit %+v", credit)
	}
}

func TestCheckConservation(t *testing.T) {
	amount := decimal.RequireFromString("100.00")
	completed := &Transaction{ReferenceID: "R1", Status: TransactionStatusCompleted, Amount: amount}
	failed := &Transaction{ReferenceID: "R2", Status: TransactionStatusFailed, Amount: amount}

	debit := &JournalEntry{ID: "e1", Kind: EntryKindDebit, Amount: amount.Neg()}
	credit := &JournalEntry{ID: "e2", Kind: EntryKindCredit, Amount: amount}

	tests := []struct {
		name    string
		txn     *Transaction
		entries []*JournalEntry
		wantErr bool
	}{
		{name: "balanced pair", txn: completed, entries: []*JournalEntry{debit, credit}},
		{name: "failed without entries", txn: failed},
		{name: "failed with entries", txn: failed, entries: []*JournalEntry{debit, credit}, wantErr: true},
		{name: "single leg", txn: completed, entries: []*JournalEntry{debit}, wantErr: true},
		{name: "two debits", txn: completed, entries: []*JournalEntry{debit, debit}, wantErr: true},
		{
			name: "wrong magnitude",
			txn:  completed,
			entries: []*JournalEntry{
				debit,
				{ID: "e3", Kind: EntryKindCredit, Amount: decimal.RequireFromString("99.99")},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckConservation(tt.txn, tt.entries)
			if tt.wantErr && !errors.Is(err, ErrConservationViolated) {
				t.Errorf("expected ErrConservationViolated, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestResultEventRoundTrip(t *testing.T) {
	now := time.Now().UTC()
	res := TransferResult{ReferenceID: "R2", Status: TransactionStatusFailed, Message: "insufficient funds"}

	event := NewResultEvent("ev1", res, now)
	if event.EventType != EventTypeTransferFailed || event.AggregateID != "R2" {
		t.Fatalf("unexpected event %+v", event)
	}

	got, ok := ResultFromEvent(event)
	if !ok || got != res {
		t.Errorf("ResultFromEvent = %+v, %v", got, ok)
	}

	if _, ok := ResultFromEvent(&OutboxEvent{AggregateType: "account"}); ok {
		t.Error("foreign aggregate must not decode")
	}
}
