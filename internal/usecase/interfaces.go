package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerflow/internal/domain"
)

// AccountRepository defines data access for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByNumber(ctx context.Context, number string) (*domain.Account, error)
	// GetByNumbersForUpdate locks the accounts that exist among numbers, in
	// ascending order. Missing accounts are simply absent from the result.
	GetByNumbersForUpdate(ctx context.Context, tx Transaction, numbers []string) ([]*domain.Account, error)
	// UpdateBalance writes balance and bumps the version. It returns
	// domain.ErrConcurrentUpdate when the stored version is not expectedVersion.
	UpdateBalance(ctx context.Context, tx Transaction, number string, balance decimal.Decimal, expectedVersion int64, updatedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

// TransactionRepository defines data access for transactions.
type TransactionRepository interface {
	// Reserve inserts txn unless its reference ID is already recorded, in a
	// single atomic statement committed on its own. When the reference
	// exists, created is false and existing holds the stored record.
	Reserve(ctx context.Context, txn *domain.Transaction) (created bool, existing *domain.Transaction, err error)
	GetByReference(ctx context.Context, referenceID string) (*domain.Transaction, error)
	// GetByReferenceForUpdate locks the transaction row. With nowait set a
	// held lock yields domain.ErrTransactionLocked instead of blocking.
	GetByReferenceForUpdate(ctx context.Context, tx Transaction, referenceID string, nowait bool) (*domain.Transaction, error)
	// UpdateStatus persists a terminal status. Only PENDING rows change;
	// otherwise domain.ErrInvalidTransition is returned.
	UpdateStatus(ctx context.Context, tx Transaction, txn *domain.Transaction) error
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]*domain.Transaction, error)
}

// EntryRepository defines data access for journal entries.
type EntryRepository interface {
	Create(ctx context.Context, tx Transaction, entry *domain.JournalEntry) error
	GetByTransaction(ctx context.Context, referenceID string) ([]*domain.JournalEntry, error)
	SumByAccount(ctx context.Context, accountNumber string) (decimal.Decimal, error)
}

// LedgerRepository defines data access for ledger-wide operations.
type LedgerRepository interface {
	// CheckConsistency returns the drift of all balances from their opening
	// balances and the sum of all journal entries. Both are zero in a
	// consistent ledger.
	CheckConsistency(ctx context.Context) (balanceDrift, entryTotal decimal.Decimal, err error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int, createdBefore time.Time) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Retrier re-runs an operation on transient store errors.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}
