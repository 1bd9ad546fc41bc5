package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerflow/internal/domain"
	"github.com/iho/ledgerflow/internal/infrastructure/postgres/generated"
	"github.com/iho/ledgerflow/internal/usecase"
)

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	queries *generated.Queries
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return newAccountRepository(pool)
}

func newAccountRepository(db generated.DBTX) *AccountRepository {
	return &AccountRepository{queries: generated.New(db)}
}

// Create creates a new account.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	err := r.queries.CreateAccount(ctx, generated.CreateAccountParams{
		AccountNumber:  account.AccountNumber,
		Currency:       account.Currency,
		Balance:        decimalToNumeric(account.Balance),
		InitialBalance: decimalToNumeric(account.InitialBalance),
		Version:        account.Version,
		CreatedAt:      timeToPgTimestamptz(account.CreatedAt),
		UpdatedAt:      timeToPgTimestamptz(account.UpdatedAt),
	})
	if hasCode(err, pgErrUniqueViolation) {
		return fmt.Errorf("%w: %s", domain.ErrAccountExists, account.AccountNumber)
	}

	return err
}

// GetByNumber retrieves an account by number.
func (r *AccountRepository) GetByNumber(ctx context.Context, number string) (*domain.Account, error) {
	row, err := r.queries.GetAccount(ctx, number)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrAccountNotFound
		}

		return nil, err
	}

	return rowToAccount(row), nil
}

// GetByNumbersForUpdate locks the existing accounts among numbers with
// FOR UPDATE, in account number order. Missing numbers are skipped.
func (r *AccountRepository) GetByNumbersForUpdate(ctx context.Context, tx usecase.Transaction, numbers []string) ([]*domain.Account, error) {
	rows, err := txQueries(tx).GetAccountsForUpdate(ctx, numbers)
	if err != nil {
		return nil, err
	}

	accounts := make([]*domain.Account, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, rowToAccount(row))
	}

	return accounts, nil
}

// UpdateBalance writes a new balance if the account is still at expectedVersion.
func (r *AccountRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, number string, balance decimal.Decimal, expectedVersion int64, updatedAt time.Time) error {
	n, err := txQueries(tx).UpdateAccountBalance(ctx, generated.UpdateAccountBalanceParams{
		AccountNumber: number,
		Version:       expectedVersion,
		Balance:       decimalToNumeric(balance),
		UpdatedAt:     timeToPgTimestamptz(updatedAt),
	})
	if err != nil {
		return err
	}

	if n == 0 {
		return fmt.Errorf("%w: %s at version %d", domain.ErrConcurrentUpdate, number, expectedVersion)
	}

	return nil
}

// List lists accounts with pagination.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	rows, err := r.queries.ListAccounts(ctx, generated.ListAccountsParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, err
	}

	accounts := make([]*domain.Account, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, rowToAccount(row))
	}

	return accounts, nil
}

func rowToAccount(row generated.Account) *domain.Account {
	return &domain.Account{
		AccountNumber:  row.AccountNumber,
		Currency:       row.Currency,
		Balance:        numericToDecimal(row.Balance),
		InitialBalance: numericToDecimal(row.InitialBalance),
		Version:        row.Version,
		CreatedAt:      row.CreatedAt.Time,
		UpdatedAt:      row.UpdatedAt.Time,
	}
}
