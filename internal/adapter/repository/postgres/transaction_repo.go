package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/ledgerflow/internal/domain"
	"github.com/iho/ledgerflow/internal/infrastructure/postgres/generated"
	"github.com/iho/ledgerflow/internal/usecase"
)

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	queries *generated.Queries
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return newTransactionRepository(pool)
}

func newTransactionRepository(db generated.DBTX) *TransactionRepository {
	return &TransactionRepository{queries: generated.New(db)}
}

// Reserve inserts txn unless its reference ID is already recorded. The
// insert commits on its own, so the reservation survives a failed settle.
func (r *TransactionRepository) Reserve(ctx context.Context, txn *domain.Transaction) (bool, *domain.Transaction, error) {
	n, err := r.queries.ReserveTransaction(ctx, generated.ReserveTransactionParams{
		ReferenceID:   txn.ReferenceID,
		SourceAccount: txn.SourceAccount,
		TargetAccount: txn.TargetAccount,
		Amount:        decimalToNumeric(txn.Amount),
		Status:        string(txn.Status),
		Reason:        txn.Reason,
		CreatedAt:     timeToPgTimestamptz(txn.CreatedAt),
		UpdatedAt:     timeToPgTimestamptz(txn.UpdatedAt),
	})
	if err != nil {
		return false, nil, err
	}

	if n == 1 {
		return true, nil, nil
	}

	existing, err := r.GetByReference(ctx, txn.ReferenceID)
	if err != nil {
		return false, nil, err
	}

	return false, existing, nil
}

// GetByReference retrieves a transaction by reference ID.
func (r *TransactionRepository) GetByReference(ctx context.Context, referenceID string) (*domain.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, referenceID)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrTransactionNotFound
		}

		return nil, err
	}

	return rowToTransaction(row), nil
}

// GetByReferenceForUpdate locks the transaction row for the rest of tx.
// With nowait a row held by another transaction yields
// domain.ErrTransactionLocked instead of blocking.
func (r *TransactionRepository) GetByReferenceForUpdate(ctx context.Context, tx usecase.Transaction, referenceID string, nowait bool) (*domain.Transaction, error) {
	queries := txQueries(tx)

	var (
		row generated.Transaction
		err error
	)
	if nowait {
		row, err = queries.GetTransactionForUpdateNowait(ctx, referenceID)
	} else {
		row, err = queries.GetTransactionForUpdate(ctx, referenceID)
	}

	switch {
	case err == nil:
		return rowToTransaction(row), nil
	case isNoRows(err):
		return nil, domain.ErrTransactionNotFound
	case hasCode(err, pgErrLockNotAvailable):
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionLocked, referenceID)
	default:
		return nil, err
	}
}

// UpdateStatus records the terminal status of a PENDING transaction.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	n, err := txQueries(tx).UpdateTransactionStatus(ctx, generated.UpdateTransactionStatusParams{
		ReferenceID: txn.ReferenceID,
		Status:      string(txn.Status),
		Reason:      txn.Reason,
		UpdatedAt:   timeToPgTimestamptz(txn.UpdatedAt),
	})
	if err != nil {
		return err
	}

	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidTransition, txn.ReferenceID)
	}

	return nil
}

// ListStalePending lists PENDING transactions last touched before the given time.
func (r *TransactionRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*domain.Transaction, error) {
	rows, err := r.queries.ListStalePendingTransactions(ctx, generated.ListStalePendingTransactionsParams{
		UpdatedAt: timeToPgTimestamptz(before),
		Limit:     int32(limit),
	})
	if err != nil {
		return nil, err
	}

	txns := make([]*domain.Transaction, 0, len(rows))
	for _, row := range rows {
		txns = append(txns, rowToTransaction(row))
	}

	return txns, nil
}

func rowToTransaction(row generated.Transaction) *domain.Transaction {
	return &domain.Transaction{
		ReferenceID:   row.ReferenceID,
		SourceAccount: row.SourceAccount,
		TargetAccount: row.TargetAccount,
		Amount:        numericToDecimal(row.Amount),
		Status:        domain.TransactionStatus(row.Status),
		Reason:        row.Reason,
		CreatedAt:     row.CreatedAt.Time,
		UpdatedAt:     row.UpdatedAt.Time,
	}
}
