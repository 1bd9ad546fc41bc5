package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateAccountNumber(t *testing.T) {
	t.Parallel()

	if err := ValidateAccountNumber("ACC_ALICE"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := ValidateAccountNumber("   "); !errors.Is(err, ErrInvalidAccountNumber) {
		t.Fatalf("expected ErrInvalidAccountNumber for blank number, got %v", err)
	}

	if err := ValidateAccountNumber(strings.Repeat("a", MaxAccountNumberLength+1)); !errors.Is(err, ErrInvalidAccountNumber) {
		t.Fatalf("expected ErrInvalidAccountNumber for long number, got %v", err)
	}

	if err := ValidateAccountNumber("ACC ALICE"); !errors.Is(err, ErrInvalidAccountNumber) {
		t.Fatalf("expected ErrInvalidAccountNumber for embedded space, got %v", err)
	}

	for _, number := range []string{"ACC\x00ALICE", "ACC\x7fALICE", "ACC_\xc3"} {
		if err := ValidateAccountNumber(number); !errors.Is(err, ErrInvalidAccountNumber) {
			t.Fatalf("expected ErrInvalidAccountNumber for %q, got %v", number, err)
		}
	}
}

func TestValidateCurrency(t *testing.T) {
	t.Parallel()

	if err := ValidateCurrency("usd"); err != nil {
		t.Fatalf("expected uppercase conversion to succeed, got %v", err)
	}

	if err := ValidateCurrency("XYZ"); !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("expected ErrInvalidCurrency, got %v", err)
	}
}

func TestValidateAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		amount  string
		wantErr error
	}{
		{name: "valid", amount: "100.25"},
		{name: "minimum", amount: "0.01"},
		{name: "maximum", amount: MaxTransferAmount},
		{name: "trailing zeros are fine", amount: "5.000"},
		{name: "zero", amount: "0", wantErr: ErrInvalidAmount},
		{name: "negative", amount: "-10", wantErr: ErrInvalidAmount},
		{name: "three decimals", amount: "0.001", wantErr: ErrAmountPrecision},
		{name: "too large", amount: "1000000000000.01", wantErr: ErrAmountTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAmount(decimal.RequireFromString(tt.amount))
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected valid amount, got %v", err)
				}
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}

			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("every amount error should wrap ErrInvalidAmount, got %v", err)
			}
		})
	}
}
