package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Account represents a ledger account that holds a balance in one currency.
// Balance is a cached value; InitialBalance plus the account's journal
// entries always reproduces it.
type Account struct {
	AccountNumber  string
	Currency       string
	Balance        decimal.Decimal
	InitialBalance decimal.Decimal
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewAccount builds an account with an opening balance.
func NewAccount(number, currency string, opening decimal.Decimal, now time.Time) (*Account, error) {
	if err := ValidateAccountNumber(number); err != nil {
		return nil, err
	}

	currency = strings.ToUpper(strings.TrimSpace(currency))
	if err := ValidateCurrency(currency); err != nil {
		return nil, err
	}

	if opening.IsNegative() {
		return nil, fmt.Errorf("%w: opening balance cannot be negative", ErrInvalidAmount)
	}

	return &Account{
		AccountNumber:  number,
		Currency:       currency,
		Balance:        opening,
		InitialBalance: opening,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ValidateDebit checks if account can be debited by amount.
func (a *Account) ValidateDebit(amount decimal.Decimal) error {
	if a.Balance.LessThan(amount) {
		return fmt.Errorf("%w: account %s has %s, requested %s",
			ErrInsufficientFunds, a.AccountNumber, a.Balance.StringFixed(AmountScale), amount.StringFixed(AmountScale))
	}
	return nil
}

// ApplyDebit returns new balance after debit.
func (a *Account) ApplyDebit(amount decimal.Decimal) decimal.Decimal {
	return a.Balance.Sub(amount)
}

// ApplyCredit returns new balance after credit.
func (a *Account) ApplyCredit(amount decimal.Decimal) decimal.Decimal {
	return a.Balance.Add(amount)
}
