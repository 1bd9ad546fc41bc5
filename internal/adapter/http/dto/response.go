package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerflow/internal/domain"
	"github.com/iho/ledgerflow/internal/usecase"
)

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	AccountNumber  string          `json:"account_number"`
	Currency       string          `json:"currency"`
	Balance        decimal.Decimal `json:"balance"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		AccountNumber:  a.AccountNumber,
		Currency:       a.Currency,
		Balance:        a.Balance,
		InitialBalance: a.InitialBalance,
		Version:        a.Version,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

// EntryResponse represents a journal entry in API responses.
type EntryResponse struct {
	ID                     string          `json:"id"`
	AccountNumber          string          `json:"account_number"`
	Kind                   string          `json:"kind"`
	Amount                 decimal.Decimal `json:"amount"`
	AccountPreviousBalance decimal.Decimal `json:"account_previous_balance"`
	AccountCurrentBalance  decimal.Decimal `json:"account_current_balance"`
	AccountVersion         int64           `json:"account_version"`
	CreatedAt              time.Time       `json:"created_at"`
}

// TransactionResponse represents a transaction and its entries in API responses.
type TransactionResponse struct {
	ReferenceID   string           `json:"reference_id"`
	SourceAccount string           `json:"source_account"`
	TargetAccount string           `json:"target_account"`
	Amount        decimal.Decimal  `json:"amount"`
	Status        string           `json:"status"`
	Reason        string           `json:"reason,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	Entries       []*EntryResponse `json:"entries"`
}

// TransactionFromDomain converts transaction details to response.
func TransactionFromDomain(d *usecase.TransactionDetails) *TransactionResponse {
	t := d.Transaction
	entries := make([]*EntryResponse, len(d.Entries))
	for i, e := range d.Entries {
		entries[i] = &EntryResponse{
			ID:                     e.ID,
			AccountNumber:          e.AccountNumber,
			Kind:                   string(e.Kind),
			Amount:                 e.Amount,
			AccountPreviousBalance: e.AccountPreviousBalance,
			AccountCurrentBalance:  e.AccountCurrentBalance,
			AccountVersion:         e.AccountVersion,
			CreatedAt:              e.CreatedAt,
		}
	}

	return &TransactionResponse{
		ReferenceID:   t.ReferenceID,
		SourceAccount: t.SourceAccount,
		TargetAccount: t.TargetAccount,
		Amount:        t.Amount,
		Status:        string(t.Status),
		Reason:        t.Reason,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		Entries:       entries,
	}
}

// TransferAcceptedResponse is returned once a transfer request is queued.
type TransferAcceptedResponse struct {
	Message     string `json:"message"`
	ReferenceID string `json:"reference_id"`
}

// DiscrepancyResponse describes an account whose balance disagrees with its entries.
type DiscrepancyResponse struct {
	AccountNumber     string          `json:"account_number"`
	RecordedBalance   decimal.Decimal `json:"recorded_balance"`
	CalculatedBalance decimal.Decimal `json:"calculated_balance"`
	Difference        decimal.Decimal `json:"difference"`
}

// ConsistencyResponse is the reconciliation report in API responses.
type ConsistencyResponse struct {
	Consistent         bool                   `json:"consistent"`
	TotalAccounts      int                    `json:"total_accounts"`
	ReconciledAccounts int                    `json:"reconciled_accounts"`
	LedgerError        string                 `json:"ledger_error,omitempty"`
	Discrepancies      []*DiscrepancyResponse `json:"discrepancies"`
	CheckedAt          time.Time              `json:"checked_at"`
}

// ConsistencyFromReport converts a reconciliation report to response.
func ConsistencyFromReport(r *usecase.ReconciliationReport) *ConsistencyResponse {
	discrepancies := make([]*DiscrepancyResponse, len(r.Discrepancies))
	for i, d := range r.Discrepancies {
		discrepancies[i] = &DiscrepancyResponse{
			AccountNumber:     d.AccountNumber,
			RecordedBalance:   d.RecordedBalance,
			CalculatedBalance: d.CalculatedBalance,
			Difference:        d.Difference,
		}
	}

	return &ConsistencyResponse{
		Consistent:         r.LedgerConsistent && len(r.Discrepancies) == 0,
		TotalAccounts:      r.TotalAccounts,
		ReconciledAccounts: r.ReconciledAccounts,
		LedgerError:        r.LedgerError,
		Discrepancies:      discrepancies,
		CheckedAt:          r.CheckedAt,
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
