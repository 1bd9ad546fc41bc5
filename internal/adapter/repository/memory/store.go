// Package memory is an in-process ledger store. It mirrors the PostgreSQL
// adapter's semantics: a unique reference insert, row locks held until the
// end of a transaction, writes that become visible only on commit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/iho/ledgerflow/internal/domain"
	"github.com/iho/ledgerflow/internal/usecase"
)

// ErrTxDone is returned when a finished transaction is used again.
var ErrTxDone = errors.New("transaction already committed or rolled back")

// Store holds committed ledger state.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]*domain.Account
	transactions map[string]*domain.Transaction
	entries      []*domain.JournalEntry
	events       map[string]*domain.OutboxEvent
	eventOrder   []string

	accountLocks lockTable
	txnLocks     lockTable

	// InjectFault, when set, is consulted before every store operation with
	// the operation name. A non-nil return fails the operation.
	InjectFault func(op string) error
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		accounts:     make(map[string]*domain.Account),
		transactions: make(map[string]*domain.Transaction),
		events:       make(map[string]*domain.OutboxEvent),
		accountLocks: lockTable{name: "account", locks: make(map[string]rowLock)},
		txnLocks:     lockTable{name: "transaction", locks: make(map[string]rowLock)},
	}
}

// Operation names passed to InjectFault.
const (
	OpBegin           = "begin"
	OpCommit          = "commit"
	OpReserve         = "reserve"
	OpLockTransaction = "lock_transaction"
	OpLockAccounts    = "lock_accounts"
	OpUpdateBalance   = "update_balance"
	OpUpdateStatus    = "update_status"
	OpCreateEntry     = "create_entry"
	OpCreateEvent     = "create_event"
)

func (s *Store) fault(op string) error {
	if s.InjectFault == nil {
		return nil
	}
	return s.InjectFault(op)
}

// rowLock is a one-slot semaphore, so waiting for it can be abandoned when
// the caller's context ends.
type rowLock chan struct{}

func (l rowLock) acquire(ctx context.Context) error {
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l rowLock) tryAcquire() bool {
	select {
	case l <- struct{}{}:
		return true
	default:
		return false
	}
}

func (l rowLock) release() { <-l }

type lockTable struct {
	name  string
	mu    sync.Mutex
	locks map[string]rowLock
}

func (t *lockTable) get(key string) rowLock {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.locks[key]
	if !ok {
		l = make(rowLock, 1)
		t.locks[key] = l
	}
	return l
}

// heldKey tells an account lock from a transaction lock with the same name.
type heldKey struct {
	table string
	key   string
}

// TxManager implements usecase.TransactionManager.
type TxManager struct {
	store *Store
}

// NewTxManager creates a new TxManager.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin starts a new transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := m.store.fault(OpBegin); err != nil {
		return nil, err
	}

	return &Tx{
		store:    m.store,
		held:     make(map[heldKey]rowLock),
		accounts: make(map[string]*domain.Account),
		txns:     make(map[string]*domain.Transaction),
	}, nil
}

// Tx stages writes and holds row locks until Commit or Rollback.
type Tx struct {
	store    *Store
	held     map[heldKey]rowLock
	accounts map[string]*domain.Account
	txns     map[string]*domain.Transaction
	entries  []*domain.JournalEntry
	events   []*domain.OutboxEvent
	done     bool
}

// Commit applies staged writes atomically and releases locks.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}

	if err := t.store.fault(OpCommit); err != nil {
		return err
	}

	s := t.store
	s.mu.Lock()
	for number, a := range t.accounts {
		s.accounts[number] = a
	}
	for ref, txn := range t.txns {
		s.transactions[ref] = txn
	}
	s.entries = append(s.entries, t.entries...)
	for _, e := range t.events {
		s.events[e.ID] = e
		s.eventOrder = append(s.eventOrder, e.ID)
	}
	s.mu.Unlock()

	t.finish()
	return nil
}

// Rollback discards staged writes. It is a no-op after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}

	t.finish()
	return nil
}

func (t *Tx) finish() {
	t.done = true
	for _, l := range t.held {
		l.release()
	}
	t.held = nil
}

// lock takes the row lock for key. With nowait it reports false instead of
// waiting; otherwise it waits until ctx ends.
func (t *Tx) lock(ctx context.Context, table *lockTable, key string, nowait bool) (bool, error) {
	hk := heldKey{table: table.name, key: key}
	if _, ok := t.held[hk]; ok {
		return true, nil
	}

	l := table.get(key)
	if nowait {
		if !l.tryAcquire() {
			return false, nil
		}
	} else if err := l.acquire(ctx); err != nil {
		return false, fmt.Errorf("wait for %s lock %s: %w", table.name, key, err)
	}

	t.held[hk] = l
	return true, nil
}

func asTx(tx usecase.Transaction) (*Tx, error) {
	mt, ok := tx.(*Tx)
	if !ok {
		return nil, errors.New("memory: foreign transaction")
	}
	if mt.done {
		return nil, ErrTxDone
	}
	return mt, nil
}

func copyAccount(a *domain.Account) *domain.Account {
	c := *a
	return &c
}

func copyTransaction(t *domain.Transaction) *domain.Transaction {
	c := *t
	return &c
}

func copyEntry(e *domain.JournalEntry) *domain.JournalEntry {
	c := *e
	return &c
}

func copyEvent(e *domain.OutboxEvent) *domain.OutboxEvent {
	c := *e
	if e.Payload != nil {
		c.Payload = make(map[string]any, len(e.Payload))
		for k, v := range e.Payload {
			c.Payload[k] = v
		}
	}
	if e.PublishedAt != nil {
		at := *e.PublishedAt
		c.PublishedAt = &at
	}
	return &c
}
