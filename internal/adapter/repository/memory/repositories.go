package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerflow/internal/domain"
	"github.com/iho/ledgerflow/internal/usecase"
)

// ErrDuplicateEntry mirrors the unique (transaction, kind) constraint.
var ErrDuplicateEntry = errors.New("journal entry already exists for transaction and kind")

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	store *Store
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(store *Store) *AccountRepository {
	return &AccountRepository{store: store}
}

// Create creates a new account.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.AccountNumber]; ok {
		return fmt.Errorf("%w: %s", domain.ErrAccountExists, account.AccountNumber)
	}

	s.accounts[account.AccountNumber] = copyAccount(account)
	return nil
}

// GetByNumber retrieves an account by number.
func (r *AccountRepository) GetByNumber(ctx context.Context, number string) (*domain.Account, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[number]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return copyAccount(a), nil
}

// GetByNumbersForUpdate locks the existing accounts among numbers in ascending order.
func (r *AccountRepository) GetByNumbersForUpdate(ctx context.Context, tx usecase.Transaction, numbers []string) ([]*domain.Account, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	if err := r.store.fault(OpLockAccounts); err != nil {
		return nil, err
	}

	sorted := append([]string(nil), numbers...)
	sort.Strings(sorted)

	accounts := make([]*domain.Account, 0, len(sorted))
	for _, number := range sorted {
		if _, err := r.GetByNumber(ctx, number); err != nil {
			continue
		}

		if _, err := t.lock(ctx, &r.store.accountLocks, number, false); err != nil {
			return nil, err
		}

		if staged, ok := t.accounts[number]; ok {
			accounts = append(accounts, copyAccount(staged))
			continue
		}

		a, err := r.GetByNumber(ctx, number)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}

	return accounts, nil
}

// UpdateBalance stages a balance write guarded by the expected version.
func (r *AccountRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, number string, balance decimal.Decimal, expectedVersion int64, updatedAt time.Time) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	if err := r.store.fault(OpUpdateBalance); err != nil {
		return err
	}

	current, ok := t.accounts[number]
	if !ok {
		current, err = r.GetByNumber(ctx, number)
		if err != nil {
			return err
		}
	}

	if current.Version != expectedVersion {
		return fmt.Errorf("%w: %s at version %d, expected %d",
			domain.ErrConcurrentUpdate, number, current.Version, expectedVersion)
	}

	if balance.IsNegative() {
		return fmt.Errorf("memory: balance of %s would become negative", number)
	}

	next := copyAccount(current)
	next.Balance = balance
	next.Version++
	next.UpdatedAt = updatedAt
	t.accounts[number] = next

	return nil
}

// List lists accounts ordered by number.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	numbers := make([]string, 0, len(s.accounts))
	for n := range s.accounts {
		numbers = append(numbers, n)
	}
	sort.Strings(numbers)

	if offset >= len(numbers) {
		return []*domain.Account{}, nil
	}
	numbers = numbers[offset:]
	if limit > 0 && limit < len(numbers) {
		numbers = numbers[:limit]
	}

	accounts := make([]*domain.Account, 0, len(numbers))
	for _, n := range numbers {
		accounts = append(accounts, copyAccount(s.accounts[n]))
	}
	return accounts, nil
}

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	store *Store
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(store *Store) *TransactionRepository {
	return &TransactionRepository{store: store}
}

// Reserve records txn unless the reference exists.
func (r *TransactionRepository) Reserve(ctx context.Context, txn *domain.Transaction) (bool, *domain.Transaction, error) {
	if err := r.store.fault(OpReserve); err != nil {
		return false, nil, err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.transactions[txn.ReferenceID]; ok {
		return false, copyTransaction(existing), nil
	}

	s.transactions[txn.ReferenceID] = copyTransaction(txn)
	return true, nil, nil
}

// GetByReference retrieves a transaction by reference ID.
func (r *TransactionRepository) GetByReference(ctx context.Context, referenceID string) (*domain.Transaction, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn, ok := s.transactions[referenceID]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return copyTransaction(txn), nil
}

// GetByReferenceForUpdate locks the transaction for the rest of tx.
func (r *TransactionRepository) GetByReferenceForUpdate(ctx context.Context, tx usecase.Transaction, referenceID string, nowait bool) (*domain.Transaction, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	if err := r.store.fault(OpLockTransaction); err != nil {
		return nil, err
	}

	if _, err := r.GetByReference(ctx, referenceID); err != nil {
		return nil, err
	}

	locked, err := t.lock(ctx, &r.store.txnLocks, referenceID, nowait)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionLocked, referenceID)
	}

	if staged, ok := t.txns[referenceID]; ok {
		return copyTransaction(staged), nil
	}
	return r.GetByReference(ctx, referenceID)
}

// UpdateStatus stages the terminal status of a PENDING transaction.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	if err := r.store.fault(OpUpdateStatus); err != nil {
		return err
	}

	current, ok := t.txns[txn.ReferenceID]
	if !ok {
		current, err = r.GetByReference(ctx, txn.ReferenceID)
		if err != nil {
			return err
		}
	}

	if current.Status != domain.TransactionStatusPending {
		return fmt.Errorf("%w: %s is %s", domain.ErrInvalidTransition, txn.ReferenceID, current.Status)
	}

	next := copyTransaction(current)
	next.Status = txn.Status
	next.Reason = txn.Reason
	next.UpdatedAt = txn.UpdatedAt
	t.txns[txn.ReferenceID] = next

	return nil
}

// ListStalePending lists PENDING transactions last touched before the given time.
func (r *TransactionRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*domain.Transaction, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stale []*domain.Transaction
	for _, txn := range s.transactions {
		if txn.Status == domain.TransactionStatusPending && txn.UpdatedAt.Before(before) {
			stale = append(stale, copyTransaction(txn))
		}
	}

	sort.Slice(stale, func(i, j int) bool {
		if stale[i].CreatedAt.Equal(stale[j].CreatedAt) {
			return stale[i].ReferenceID < stale[j].ReferenceID
		}
		return stale[i].CreatedAt.Before(stale[j].CreatedAt)
	})

	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	store *Store
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(store *Store) *EntryRepository {
	return &EntryRepository{store: store}
}

// Create stages a journal entry.
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	if err := r.store.fault(OpCreateEntry); err != nil {
		return err
	}

	for _, e := range t.entries {
		if e.TransactionRef == entry.TransactionRef && e.Kind == entry.Kind {
			return ErrDuplicateEntry
		}
	}

	existing, err := r.GetByTransaction(ctx, entry.TransactionRef)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.Kind == entry.Kind {
			return ErrDuplicateEntry
		}
	}

	t.entries = append(t.entries, copyEntry(entry))
	return nil
}

// GetByTransaction returns the entries of a transaction in posting order.
func (r *EntryRepository) GetByTransaction(ctx context.Context, referenceID string) ([]*domain.JournalEntry, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := []*domain.JournalEntry{}
	for _, e := range s.entries {
		if e.TransactionRef == referenceID {
			entries = append(entries, copyEntry(e))
		}
	}
	return entries, nil
}

// SumByAccount sums the signed entries of an account.
func (r *EntryRepository) SumByAccount(ctx context.Context, accountNumber string) (decimal.Decimal, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := decimal.Zero
	for _, e := range s.entries {
		if e.AccountNumber == accountNumber {
			sum = sum.Add(e.Amount)
		}
	}
	return sum, nil
}

// OutboxRepository implements usecase.OutboxRepository.
type OutboxRepository struct {
	store *Store
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{store: store}
}

// Create stages an outbox event.
func (r *OutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	if err := r.store.fault(OpCreateEvent); err != nil {
		return err
	}

	t.events = append(t.events, copyEvent(event))
	return nil
}

// GetUnpublished returns unpublished events created at or before createdBefore, oldest first.
func (r *OutboxRepository) GetUnpublished(ctx context.Context, limit int, createdBefore time.Time) ([]*domain.OutboxEvent, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*domain.OutboxEvent
	for _, id := range s.eventOrder {
		e, ok := s.events[id]
		if !ok || e.Published || e.CreatedAt.After(createdBefore) {
			continue
		}
		events = append(events, copyEvent(e))
		if limit > 0 && len(events) == limit {
			break
		}
	}
	return events, nil
}

// MarkPublished marks an event as published.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.events[id]; ok {
		e.Published = true
		at := publishedAt
		e.PublishedAt = &at
	}
	return nil
}

// DeletePublished deletes published events older than the given time.
func (r *OutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.eventOrder[:0]
	for _, id := range s.eventOrder {
		e := s.events[id]
		if e.Published && e.PublishedAt != nil && e.PublishedAt.Before(before) {
			delete(s.events, id)
			continue
		}
		kept = append(kept, id)
	}
	s.eventOrder = kept
	return nil
}

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	store *Store
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(store *Store) *LedgerRepository {
	return &LedgerRepository{store: store}
}

// CheckConsistency returns the balance drift and the journal total.
func (r *LedgerRepository) CheckConsistency(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	drift := decimal.Zero
	for _, a := range s.accounts {
		drift = drift.Add(a.Balance.Sub(a.InitialBalance))
	}

	total := decimal.Zero
	for _, e := range s.entries {
		total = total.Add(e.Amount)
	}

	return drift, total, nil
}
