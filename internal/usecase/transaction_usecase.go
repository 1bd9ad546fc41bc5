package usecase

import (
	"context"

	"github.com/iho/ledgerflow/internal/domain"
)

// TransactionUseCase serves point lookups of recorded transactions.
type TransactionUseCase struct {
	txnRepo   TransactionRepository
	entryRepo EntryRepository
}

// NewTransactionUseCase creates a new TransactionUseCase.
func NewTransactionUseCase(txnRepo TransactionRepository, entryRepo EntryRepository) *TransactionUseCase {
	return &TransactionUseCase{
		txnRepo:   txnRepo,
		entryRepo: entryRepo,
	}
}

// TransactionDetails is a transaction with its journal entries.
type TransactionDetails struct {
	Transaction *domain.Transaction
	Entries     []*domain.JournalEntry
}

// GetTransaction retrieves a transaction and its entries by reference ID.
func (uc *TransactionUseCase) GetTransaction(ctx context.Context, referenceID string) (*TransactionDetails, error) {
	txn, err := uc.txnRepo.GetByReference(ctx, referenceID)
	if err != nil {
		return nil, err
	}

	entries, err := uc.entryRepo.GetByTransaction(ctx, referenceID)
	if err != nil {
		return nil, err
	}

	return &TransactionDetails{Transaction: txn, Entries: entries}, nil
}
