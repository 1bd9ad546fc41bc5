package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerflow/internal/domain"
)

// ErrInconsistentLedger is returned when balances and journal disagree.
var ErrInconsistentLedger = errors.New("ledger is inconsistent")

const reconcilePageSize = 500

// ReconciliationUseCase recomputes balances from the journal and checks them
// against the cached values.
type ReconciliationUseCase struct {
	accountRepo AccountRepository
	txnRepo     TransactionRepository
	entryRepo   EntryRepository
	ledgerRepo  LedgerRepository
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(
	accountRepo AccountRepository,
	txnRepo TransactionRepository,
	entryRepo EntryRepository,
	ledgerRepo LedgerRepository,
) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		accountRepo: accountRepo,
		txnRepo:     txnRepo,
		entryRepo:   entryRepo,
		ledgerRepo:  ledgerRepo,
	}
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	AccountNumber     string
	RecordedBalance   decimal.Decimal
	CalculatedBalance decimal.Decimal
	Difference        decimal.Decimal
	IsReconciled      bool
	LastChecked       time.Time
}

// ReconcileAccount compares the cached balance of an account with its
// opening balance plus the sum of its journal entries.
func (uc *ReconciliationUseCase) ReconcileAccount(ctx context.Context, number string) (*ReconciliationResult, error) {
	account, err := uc.accountRepo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	sum, err := uc.entryRepo.SumByAccount(ctx, number)
	if err != nil {
		return nil, err
	}

	calculated := account.InitialBalance.Add(sum)
	diff := account.Balance.Sub(calculated)

	return &ReconciliationResult{
		AccountNumber:     number,
		RecordedBalance:   account.Balance,
		CalculatedBalance: calculated,
		Difference:        diff,
		IsReconciled:      diff.IsZero(),
		LastChecked:       time.Now().UTC(),
	}, nil
}

// ReconcileAllAccounts reconciles all accounts in the system
func (uc *ReconciliationUseCase) ReconcileAllAccounts(ctx context.Context) ([]*ReconciliationResult, error) {
	var results []*ReconciliationResult

	for offset := 0; ; offset += reconcilePageSize {
		accounts, err := uc.accountRepo.List(ctx, reconcilePageSize, offset)
		if err != nil {
			return nil, err
		}

		for _, account := range accounts {
			result, err := uc.ReconcileAccount(ctx, account.AccountNumber)
			if err != nil {
				return nil, fmt.Errorf("failed to reconcile account %s: %w", account.AccountNumber, err)
			}
			results = append(results, result)
		}

		if len(accounts) < reconcilePageSize {
			return results, nil
		}
	}
}

// CheckTransaction verifies the journal of one transaction: two balanced
// entries when COMPLETED, none otherwise.
func (uc *ReconciliationUseCase) CheckTransaction(ctx context.Context, referenceID string) error {
	txn, err := uc.txnRepo.GetByReference(ctx, referenceID)
	if err != nil {
		return err
	}

	entries, err := uc.entryRepo.GetByTransaction(ctx, referenceID)
	if err != nil {
		return err
	}

	return domain.CheckConservation(txn, entries)
}

// CheckLedgerConsistency verifies double-entry bookkeeping consistency
func (uc *ReconciliationUseCase) CheckLedgerConsistency(ctx context.Context) error {
	drift, entryTotal, err := uc.ledgerRepo.CheckConsistency(ctx)
	if err != nil {
		return err
	}

	if !entryTotal.IsZero() || !drift.Equal(entryTotal) {
		return fmt.Errorf("%w: balance drift=%s entry total=%s",
			ErrInconsistentLedger, drift.String(), entryTotal.String())
	}

	return nil
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	TotalAccounts      int
	ReconciledAccounts int
	Discrepancies      []*ReconciliationResult
	LedgerConsistent   bool
	LedgerError        string
	CheckedAt          time.Time
}

// GenerateReconciliationReport generates a comprehensive reconciliation report
func (uc *ReconciliationUseCase) GenerateReconciliationReport(ctx context.Context) (*ReconciliationReport, error) {
	results, err := uc.ReconcileAllAccounts(ctx)
	if err != nil {
		return nil, err
	}

	ledgerErr := uc.CheckLedgerConsistency(ctx)
	if ledgerErr != nil && !errors.Is(ledgerErr, ErrInconsistentLedger) {
		return nil, ledgerErr
	}

	report := &ReconciliationReport{
		TotalAccounts:    len(results),
		Discrepancies:    make([]*ReconciliationResult, 0),
		LedgerConsistent: ledgerErr == nil,
		CheckedAt:        time.Now().UTC(),
	}

	if ledgerErr != nil {
		report.LedgerError = ledgerErr.Error()
	}

	for _, result := range results {
		if result.IsReconciled {
			report.ReconciledAccounts++
		} else {
			report.Discrepancies = append(report.Discrepancies, result)
		}
	}

	return report, nil
}
