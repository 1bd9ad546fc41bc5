package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerflow/internal/domain"
	"github.com/iho/ledgerflow/internal/infrastructure/postgres/generated"
	"github.com/iho/ledgerflow/internal/usecase"
)

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	queries *generated.Queries
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return newEntryRepository(pool)
}

func newEntryRepository(db generated.DBTX) *EntryRepository {
	return &EntryRepository{queries: generated.New(db)}
}

// Create creates a new journal entry.
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error {
	return txQueries(tx).CreateJournalEntry(ctx, generated.CreateJournalEntryParams{
		ID:                     entry.ID,
		TransactionRef:         entry.TransactionRef,
		AccountNumber:          entry.AccountNumber,
		Kind:                   string(entry.Kind),
		Amount:                 decimalToNumeric(entry.Amount),
		AccountPreviousBalance: decimalToNumeric(entry.AccountPreviousBalance),
		AccountCurrentBalance:  decimalToNumeric(entry.AccountCurrentBalance),
		AccountVersion:         entry.AccountVersion,
		CreatedAt:              timeToPgTimestamptz(entry.CreatedAt),
	})
}

// GetByTransaction retrieves the entries of a transaction, debit first.
func (r *EntryRepository) GetByTransaction(ctx context.Context, referenceID string) ([]*domain.JournalEntry, error) {
	rows, err := r.queries.GetJournalEntriesByTransaction(ctx, referenceID)
	if err != nil {
		return nil, err
	}

	entries := make([]*domain.JournalEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, &domain.JournalEntry{
			ID:                     row.ID,
			TransactionRef:         row.TransactionRef,
			AccountNumber:          row.AccountNumber,
			Kind:                   domain.EntryKind(row.Kind),
			Amount:                 numericToDecimal(row.Amount),
			AccountPreviousBalance: numericToDecimal(row.AccountPreviousBalance),
			AccountCurrentBalance:  numericToDecimal(row.AccountCurrentBalance),
			AccountVersion:         row.AccountVersion,
			CreatedAt:              row.CreatedAt.Time,
		})
	}

	return entries, nil
}

// SumByAccount sums the signed entries of an account.
func (r *EntryRepository) SumByAccount(ctx context.Context, accountNumber string) (decimal.Decimal, error) {
	total, err := r.queries.SumJournalEntriesByAccount(ctx, accountNumber)
	if err != nil {
		return decimal.Zero, err
	}

	return toDecimal(total)
}
