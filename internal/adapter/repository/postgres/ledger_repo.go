package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerflow/internal/infrastructure/postgres/generated"
)

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	queries *generated.Queries
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{queries: generated.New(pool)}
}

// CheckConsistency returns how far balances moved from their opening values
// and the sum of all journal entries. Both are zero on a consistent ledger.
func (r *LedgerRepository) CheckConsistency(ctx context.Context) (balanceDrift decimal.Decimal, entryTotal decimal.Decimal, err error) {
	result, err := r.queries.CheckLedgerConsistency(ctx)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	balanceDrift, err = toDecimal(result.BalanceDrift)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	entryTotal, err = toDecimal(result.EntryTotal)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	return balanceDrift, entryTotal, nil
}
