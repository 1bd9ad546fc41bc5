package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidCurrency      = errors.New("invalid currency code")
	ErrInvalidAccountNumber = errors.New("invalid account number")
	ErrAmountTooLarge       = fmt.Errorf("%w: exceeds maximum allowed", ErrInvalidAmount)
	ErrAmountTooSmall       = fmt.Errorf("%w: below minimum allowed", ErrInvalidAmount)
	ErrAmountPrecision      = fmt.Errorf("%w: too many decimal places", ErrInvalidAmount)
)

// Validation constants
const (
	MaxAccountNumberLength = 64
	MaxReferenceIDLength   = 128
	MaxTransferAmount      = "1000000000000" // 1 trillion
	MinTransferAmount      = "0.01"
	AmountScale            = 2
)

var (
	minAmount = decimal.RequireFromString(MinTransferAmount)
	maxAmount = decimal.RequireFromString(MaxTransferAmount)
)

// Valid currency codes (ISO 4217)
var validCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true,
	"CNY": true, "AUD": true, "CAD": true, "CHF": true,
	"SEK": true, "NZD": true, "KRW": true, "SGD": true,
	"NOK": true, "MXN": true, "INR": true, "BRL": true,
	"ZAR": true, "RUB": true, "TRY": true, "HKD": true,
}

// ValidateAccountNumber validates an account number.
func ValidateAccountNumber(number string) error {
	if strings.TrimSpace(number) == "" {
		return fmt.Errorf("%w: number cannot be empty", ErrInvalidAccountNumber)
	}

	if len(number) > MaxAccountNumberLength {
		return fmt.Errorf("%w: number exceeds %d characters", ErrInvalidAccountNumber, MaxAccountNumberLength)
	}

	if strings.ContainsAny(number, " \t\r\n") {
		return fmt.Errorf("%w: number cannot contain whitespace", ErrInvalidAccountNumber)
	}

	if err := checkStorableText(number); err != nil {
		return fmt.Errorf("%w: number %w", ErrInvalidAccountNumber, err)
	}

	return nil
}

// checkStorableText rejects strings a TEXT column cannot hold or that would
// garble logs: invalid UTF-8 and control characters, NUL included.
func checkStorableText(s string) error {
	if !utf8.ValidString(s) {
		return errors.New("is not valid UTF-8")
	}

	for _, r := range s {
		if unicode.IsControl(r) {
			return fmt.Errorf("contains control character %U", r)
		}
	}

	return nil
}

// ValidateCurrency validates currency code
func ValidateCurrency(currency string) error {
	currency = strings.ToUpper(strings.TrimSpace(currency))

	if !validCurrencies[currency] {
		return fmt.Errorf("%w: %s is not a valid ISO 4217 currency code", ErrInvalidCurrency, currency)
	}

	return nil
}

// ValidateAmount validates a transfer amount. Amounts are positive, carry at
// most two fractional digits and stay within the configured bounds.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: %s is not positive", ErrInvalidAmount, amount.String())
	}

	if !amount.Equal(amount.Truncate(AmountScale)) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrAmountPrecision, amount.String(), AmountScale)
	}

	if amount.LessThan(minAmount) {
		return fmt.Errorf("%w: minimum amount is %s", ErrAmountTooSmall, MinTransferAmount)
	}

	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxTransferAmount)
	}

	return nil
}
