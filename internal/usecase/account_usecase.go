package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerflow/internal/domain"
)

// AccountUseCase handles account business logic.
type AccountUseCase struct {
	accountRepo AccountRepository
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(accountRepo AccountRepository) *AccountUseCase {
	return &AccountUseCase{
		accountRepo: accountRepo,
	}
}

// CreateAccountInput represents input for creating an account.
type CreateAccountInput struct {
	AccountNumber  string
	Currency       string
	OpeningBalance decimal.Decimal
}

// CreateAccount creates a new account.
func (uc *AccountUseCase) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	account, err := domain.NewAccount(input.AccountNumber, input.Currency, input.OpeningBalance, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := uc.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

// GetAccount retrieves an account by number.
func (uc *AccountUseCase) GetAccount(ctx context.Context, number string) (*domain.Account, error) {
	return uc.accountRepo.GetByNumber(ctx, number)
}

// ListAccountsInput represents input for listing accounts.
type ListAccountsInput struct {
	Limit  int
	Offset int
}

// ListAccounts lists accounts with pagination.
func (uc *AccountUseCase) ListAccounts(ctx context.Context, input ListAccountsInput) ([]*domain.Account, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}
	return uc.accountRepo.List(ctx, input.Limit, input.Offset)
}

// DemoAccounts are provisioned by SeedDemoAccounts.
var DemoAccounts = []CreateAccountInput{
	{AccountNumber: "ACC_ALICE", Currency: "USD", OpeningBalance: decimal.RequireFromString("1000.00")},
	{AccountNumber: "ACC_BOB", Currency: "USD", OpeningBalance: decimal.RequireFromString("0.00")},
}

// SeedDemoAccounts creates DemoAccounts when the ledger has no accounts yet.
// It returns the number of accounts created.
func (uc *AccountUseCase) SeedDemoAccounts(ctx context.Context) (int, error) {
	existing, err := uc.accountRepo.List(ctx, 1, 0)
	if err != nil {
		return 0, err
	}

	if len(existing) > 0 {
		return 0, nil
	}

	created := 0
	for _, input := range DemoAccounts {
		_, err := uc.CreateAccount(ctx, input)
		if errors.Is(err, domain.ErrAccountExists) {
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}

	return created, nil
}
