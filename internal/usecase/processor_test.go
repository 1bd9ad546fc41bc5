package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/ledgerflow/internal/adapter/repository/memory"
	"github.com/iho/ledgerflow/internal/domain"
	"github.com/iho/ledgerflow/internal/usecase"
	"github.com/iho/ledgerflow/internal/usecase/mocks"
)

type recordingNotifier struct {
	mu      sync.Mutex
	results []domain.TransferResult
}

func (n *recordingNotifier) Notify(_ context.Context, res domain.TransferResult) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, res)
	return nil
}

func (n *recordingNotifier) sent() []domain.TransferResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.TransferResult(nil), n.results...)
}

type ledgerFixture struct {
	store     *memory.Store
	accounts  *memory.AccountRepository
	txns      *memory.TransactionRepository
	entries   *memory.EntryRepository
	outbox    *memory.OutboxRepository
	ledger    *memory.LedgerRepository
	notifier  *recordingNotifier
	processor *usecase.TransactionProcessor
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()

	store := memory.NewStore()
	f := &ledgerFixture{
		store:    store,
		accounts: memory.NewAccountRepository(store),
		txns:     memory.NewTransactionRepository(store),
		entries:  memory.NewEntryRepository(store),
		outbox:   memory.NewOutboxRepository(store),
		ledger:   memory.NewLedgerRepository(store),
		notifier: &recordingNotifier{},
	}

	f.addAccount(t, "ACC_ALICE", "USD", "1000.00")
	f.addAccount(t, "ACC_BOB", "USD", "0.00")
	f.addAccount(t, "ACC_CAROL", "USD", "0.00")

	f.processor = f.newProcessor(f.notifier)
	return f
}

func (f *ledgerFixture) newProcessor(n usecase.Notifier) *usecase.TransactionProcessor {
	return usecase.NewTransactionProcessor(
		memory.NewTxManager(f.store),
		f.accounts,
		f.txns,
		f.entries,
		f.outbox,
		mocks.NewMockIDGenerator(),
		n,
		zerolog.Nop(),
	)
}

func (f *ledgerFixture) addAccount(t *testing.T, number, currency, opening string) {
	t.Helper()
	acc, err := domain.NewAccount(number, currency, dec(opening), time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, f.accounts.Create(context.Background(), acc))
}

func (f *ledgerFixture) balance(t *testing.T, number string) decimal.Decimal {
	t.Helper()
	acc, err := f.accounts.GetByNumber(context.Background(), number)
	require.NoError(t, err)
	return acc.Balance
}

func (f *ledgerFixture) entriesOf(t *testing.T, ref string) []*domain.JournalEntry {
	t.Helper()
	entries, err := f.entries.GetByTransaction(context.Background(), ref)
	require.NoError(t, err)
	return entries
}

func transfer(ref, from, to, amount string) domain.TransferRequest {
	return domain.TransferRequest{ReferenceID: ref, SourceAccount: from, TargetAccount: to, Amount: dec(amount)}
}

func TestProcess_Scenarios(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	t.Run("A transfer completes", func(t *testing.T) {
		res, err := f.processor.Process(ctx, transfer("R1", "ACC_ALICE", "ACC_BOB", "100.00"))
		require.NoError(t, err)

		assert.Equal(t, domain.TransactionStatusCompleted, res.Status)
		assert.Equal(t, domain.MessageTransferSuccessful, res.Message)
		assert.False(t, res.Replayed)
		assert.True(t, f.balance(t, "ACC_ALICE").Equal(dec("900.00")))
		assert.True(t, f.balance(t, "ACC_BOB").Equal(dec("100.00")))

		entries := f.entriesOf(t, "R1")
		require.Len(t, entries, 2)
		assert.Equal(t, "ACC_ALICE", entries[0].AccountNumber)
		assert.True(t, entries[0].Amount.Equal(dec("-100.00")))
		assert.Equal(t, "ACC_BOB", entries[1].AccountNumber)
		assert.True(t, entries[1].Amount.Equal(dec("100.00")))

		require.Len(t, f.notifier.sent(), 1)
		assert.Equal(t, "R1", f.notifier.sent()[0].ReferenceID)

		pending, err := f.outbox.GetUnpublished(ctx, 10, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, pending, "notified results are marked published")
	})

	t.Run("B replay returns recorded outcome", func(t *testing.T) {
		res, err := f.processor.Process(ctx, transfer("R1", "ACC_ALICE", "ACC_BOB", "100.00"))
		require.NoError(t, err)

		assert.Equal(t, domain.TransactionStatusCompleted, res.Status)
		assert.True(t, res.Replayed)
		assert.ErrorIs(t, res.Cause, domain.ErrDuplicateRequest)
		assert.True(t, f.balance(t, "ACC_ALICE").Equal(dec("900.00")))
		assert.True(t, f.balance(t, "ACC_BOB").Equal(dec("100.00")))
		assert.Len(t, f.entriesOf(t, "R1"), 2)
		assert.Len(t, f.notifier.sent(), 1, "replays are not notified")
	})

	t.Run("C insufficient funds fails", func(t *testing.T) {
		res, err := f.processor.Process(ctx, transfer("R2", "ACC_ALICE", "ACC_BOB", "2000.00"))
		require.NoError(t, err)

		assert.Equal(t, domain.TransactionStatusFailed, res.Status)
		assert.Contains(t, res.Message, "insufficient funds")
		assert.ErrorIs(t, res.Cause, domain.ErrInsufficientFunds)
		assert.True(t, f.balance(t, "ACC_ALICE").Equal(dec("900.00")))
		assert.True(t, f.balance(t, "ACC_BOB").Equal(dec("100.00")))
		assert.Empty(t, f.entriesOf(t, "R2"))

		txn, err := f.txns.GetByReference(ctx, "R2")
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusFailed, txn.Status)
		assert.Equal(t, res.Message, txn.Reason)
	})

	t.Run("D unknown account fails", func(t *testing.T) {
		res, err := f.processor.Process(ctx, transfer("R3", "ACC_ALICE", "ACC_GHOST", "10.00"))
		require.NoError(t, err)

		assert.Equal(t, domain.TransactionStatusFailed, res.Status)
		assert.Contains(t, res.Message, "account not found")
		assert.Contains(t, res.Message, "ACC_GHOST")
		assert.ErrorIs(t, res.Cause, domain.ErrAccountNotFound)
		assert.True(t, f.balance(t, "ACC_ALICE").Equal(dec("900.00")))
		assert.Empty(t, f.entriesOf(t, "R3"))
	})

	t.Run("E concurrent overdraft", func(t *testing.T) {
		reqs := []domain.TransferRequest{
			transfer("R4", "ACC_ALICE", "ACC_BOB", "600.00"),
			transfer("R5", "ACC_ALICE", "ACC_CAROL", "600.00"),
		}

		results := make([]*domain.TransferResult, len(reqs))
		var wg sync.WaitGroup
		for i, req := range reqs {
			wg.Add(1)
			go func(i int, req domain.TransferRequest) {
				defer wg.Done()
				res, err := f.processor.Process(ctx, req)
				assert.NoError(t, err)
				results[i] = res
			}(i, req)
		}
		wg.Wait()

		completed, failed := 0, 0
		for _, res := range results {
			require.NotNil(t, res)
			switch res.Status {
			case domain.TransactionStatusCompleted:
				completed++
			case domain.TransactionStatusFailed:
				failed++
				assert.ErrorIs(t, res.Cause, domain.ErrInsufficientFunds)
			}
		}

		assert.Equal(t, 1, completed)
		assert.Equal(t, 1, failed)
		assert.True(t, f.balance(t, "ACC_ALICE").Equal(dec("300.00")))
		assert.True(t, f.balance(t, "ACC_BOB").Add(f.balance(t, "ACC_CAROL")).Equal(dec("700.00")))
	})
}

func TestProcess_ConcurrentDuplicatesApplyOnce(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	const workers = 16
	req := transfer("DUP-1", "ACC_ALICE", "ACC_BOB", "250.00")

	results := make([]*domain.TransferResult, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.processor.Process(ctx, req)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	fresh := 0
	for _, res := range results {
		require.NotNil(t, res)
		if !res.Replayed {
			fresh++
			assert.Equal(t, domain.TransactionStatusCompleted, res.Status)
			continue
		}
		assert.ErrorIs(t, res.Cause, domain.ErrDuplicateRequest)
	}

	assert.Equal(t, 1, fresh)
	assert.Len(t, f.entriesOf(t, "DUP-1"), 2)
	assert.Len(t, f.notifier.sent(), 1)
	assert.True(t, f.balance(t, "ACC_ALICE").Equal(dec("750.00")))
	assert.True(t, f.balance(t, "ACC_BOB").Equal(dec("250.00")))
}

func TestProcess_SequentialDuplicatesApplyOnce(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	for i := 0; i < 5; i++ {
		res, err := f.processor.Process(ctx, transfer("SEQ-1", "ACC_ALICE", "ACC_BOB", "10.00"))
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusCompleted, res.Status)
		assert.Equal(t, i > 0, res.Replayed)
	}

	assert.True(t, f.balance(t, "ACC_ALICE").Equal(dec("990.00")))
	assert.Len(t, f.entriesOf(t, "SEQ-1"), 2)
}

func TestProcess_LedgerInvariantsUnderLoad(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.addAccount(t, "ACC_DAVE", "USD", "500.00")

	numbers := []string{"ACC_ALICE", "ACC_BOB", "ACC_CAROL", "ACC_DAVE"}
	amounts := []string{"1.00", "12.34", "99.99", "250.00", "0.01", "700.00"}

	var wg sync.WaitGroup
	var refs []string
	for i := 0; i < 60; i++ {
		ref := fmt.Sprintf("LOAD-%03d", i)
		refs = append(refs, ref)
		req := transfer(ref, numbers[i%len(numbers)], numbers[(i*3+1)%len(numbers)], amounts[i%len(amounts)])

		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.processor.Process(ctx, req)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	total := decimal.Zero
	for _, n := range numbers {
		b := f.balance(t, n)
		assert.False(t, b.IsNegative(), "balance of %s went negative: %s", n, b)
		total = total.Add(b)
	}
	assert.True(t, total.Equal(dec("1500.00")), "money was created or destroyed: %s", total)

	recon := usecase.NewReconciliationUseCase(f.accounts, f.txns, f.entries, f.ledger)
	for _, ref := range refs {
		assert.NoError(t, recon.CheckTransaction(ctx, ref), ref)
	}

	report, err := recon.GenerateReconciliationReport(ctx)
	require.NoError(t, err)
	assert.True(t, report.LedgerConsistent, report.LedgerError)
	assert.Equal(t, report.TotalAccounts, report.ReconciledAccounts)
	assert.Empty(t, report.Discrepancies)
}

func TestProcess_FailureInjectionLeavesNoPartialState(t *testing.T) {
	ops := []string{
		memory.OpLockTransaction,
		memory.OpLockAccounts,
		memory.OpCreateEntry,
		memory.OpUpdateBalance,
		memory.OpUpdateStatus,
		memory.OpCreateEvent,
		memory.OpCommit,
	}

	for _, op := range ops {
		t.Run(op, func(t *testing.T) {
			ctx := context.Background()
			f := newLedgerFixture(t)

			boom := errors.New("store unavailable")
			var calls int
			f.store.InjectFault = func(got string) error {
				if got != op {
					return nil
				}
				calls++
				// Fail the credit leg where the operation runs once per leg.
				if (op == memory.OpCreateEntry || op == memory.OpUpdateBalance) && calls == 1 {
					return nil
				}
				return boom
			}

			req := transfer("FI-1", "ACC_ALICE", "ACC_BOB", "100.00")
			_, err := f.processor.Process(ctx, req)
			require.ErrorIs(t, err, boom)

			assert.True(t, f.balance(t, "ACC_ALICE").Equal(dec("1000.00")))
			assert.True(t, f.balance(t, "ACC_BOB").Equal(dec("0.00")))
			assert.Empty(t, f.entriesOf(t, "FI-1"))
			assert.Empty(t, f.notifier.sent())

			txn, err := f.txns.GetByReference(ctx, "FI-1")
			require.NoError(t, err)
			assert.Equal(t, domain.TransactionStatusPending, txn.Status)

			// Redelivery after the store recovers applies the transfer once.
			f.store.InjectFault = nil
			res, err := f.processor.Process(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, domain.TransactionStatusCompleted, res.Status)
			assert.False(t, res.Replayed)
			assert.True(t, f.balance(t, "ACC_ALICE").Equal(dec("900.00")))
			assert.Len(t, f.entriesOf(t, "FI-1"), 2)
		})
	}
}

func TestProcess_ReserveFailureIsReturned(t *testing.T) {
	f := newLedgerFixture(t)
	boom := errors.New("connection refused")
	f.store.InjectFault = func(op string) error {
		if op == memory.OpReserve {
			return boom
		}
		return nil
	}

	_, err := f.processor.Process(context.Background(), transfer("RF-1", "ACC_ALICE", "ACC_BOB", "1.00"))
	require.ErrorIs(t, err, boom)

	_, err = f.txns.GetByReference(context.Background(), "RF-1")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestProcess_DuplicateWhileInFlight(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	req := transfer("IF-1", "ACC_ALICE", "ACC_BOB", "5.00")
	created, _, err := f.txns.Reserve(ctx, domain.NewPendingTransaction(req, time.Now().UTC()))
	require.NoError(t, err)
	require.True(t, created)

	// Another worker holds the transaction row.
	tx, err := memory.NewTxManager(f.store).Begin(ctx)
	require.NoError(t, err)
	_, err = f.txns.GetByReferenceForUpdate(ctx, tx, "IF-1", false)
	require.NoError(t, err)

	res, err := f.processor.Process(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, res.Status)
	assert.ErrorIs(t, res.Cause, domain.ErrRequestInFlight)
	assert.ErrorIs(t, res.Cause, domain.ErrDuplicateRequest)
	assert.Empty(t, f.notifier.sent())

	require.NoError(t, tx.Rollback(ctx))

	// Once the holder is gone the redelivery takes the transaction over.
	res, err = f.processor.Process(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, res.Status)
	assert.False(t, res.Replayed)
	assert.Len(t, f.notifier.sent(), 1)
}

func TestProcess_SelfTransfer(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	res, err := f.processor.Process(ctx, transfer("SELF-1", "ACC_ALICE", "ACC_ALICE", "100.00"))
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, res.Status)

	acc, err := f.accounts.GetByNumber(ctx, "ACC_ALICE")
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(dec("1000.00")))
	assert.Equal(t, int64(2), acc.Version)

	entries := f.entriesOf(t, "SELF-1")
	require.Len(t, entries, 2)
	assert.True(t, entries[0].AccountCurrentBalance.Equal(dec("900.00")))
	assert.True(t, entries[1].AccountPreviousBalance.Equal(dec("900.00")))
	assert.True(t, entries[1].AccountCurrentBalance.Equal(dec("1000.00")))

	res, err = f.processor.Process(ctx, transfer("SELF-2", "ACC_ALICE", "ACC_ALICE", "1000.01"))
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, res.Status)
	assert.ErrorIs(t, res.Cause, domain.ErrInsufficientFunds)
}

func TestProcess_InvalidRequests(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.addAccount(t, "ACC_EURO", "EUR", "100.00")

	tests := []struct {
		name    string
		req     domain.TransferRequest
		wantErr error
	}{
		{name: "zero amount", req: transfer("INV-1", "ACC_ALICE", "ACC_BOB", "0"), wantErr: domain.ErrInvalidAmount},
		{name: "negative amount", req: transfer("INV-2", "ACC_ALICE", "ACC_BOB", "-5.00"), wantErr: domain.ErrInvalidAmount},
		{name: "sub cent amount", req: transfer("INV-3", "ACC_ALICE", "ACC_BOB", "0.001"), wantErr: domain.ErrInvalidAmount},
		{name: "missing source", req: transfer("INV-4", "ACC_GHOST", "ACC_BOB", "1.00"), wantErr: domain.ErrAccountNotFound},
		{name: "currency mismatch", req: transfer("INV-5", "ACC_ALICE", "ACC_EURO", "1.00"), wantErr: domain.ErrCurrencyMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.processor.Process(ctx, tt.req)
			require.NoError(t, err)
			assert.Equal(t, domain.TransactionStatusFailed, res.Status)
			assert.ErrorIs(t, res.Cause, tt.wantErr)
			assert.NotEmpty(t, res.Message)
			assert.Empty(t, f.entriesOf(t, tt.req.ReferenceID))

			txn, err := f.txns.GetByReference(ctx, tt.req.ReferenceID)
			require.NoError(t, err)
			assert.Equal(t, domain.TransactionStatusFailed, txn.Status)
		})
	}

	assert.True(t, f.balance(t, "ACC_ALICE").Equal(dec("1000.00")))
}

func TestProcess_MalformedRequestNeverReachesStore(t *testing.T) {
	f := newLedgerFixture(t)

	_, err := f.processor.Process(context.Background(), transfer("", "ACC_ALICE", "ACC_BOB", "1.00"))
	assert.ErrorIs(t, err, domain.ErrInvalidReferenceID)

	_, err = f.processor.Process(context.Background(), transfer("M-1", "", "ACC_BOB", "1.00"))
	assert.ErrorIs(t, err, domain.ErrMalformedRequest)

	_, err = f.txns.GetByReference(context.Background(), "M-1")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestProcess_MismatchedReplayKeepsRecordedOutcome(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	_, err := f.processor.Process(ctx, transfer("MM-1", "ACC_ALICE", "ACC_BOB", "10.00"))
	require.NoError(t, err)

	res, err := f.processor.Process(ctx, transfer("MM-1", "ACC_ALICE", "ACC_BOB", "999.00"))
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, domain.TransactionStatusCompleted, res.Status)
	assert.True(t, f.balance(t, "ACC_ALICE").Equal(dec("990.00")))
}

func TestProcess_NotificationFailureKeepsLedger(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	f := newLedgerFixture(t)

	notifier := mocks.NewMockNotifier(ctrl)
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	metrics := mocks.NewMockMetrics(ctrl)
	metrics.EXPECT().ObserveTransfer(gomock.Any(), gomock.Any()).AnyTimes()
	metrics.EXPECT().IncNotificationFailures().Times(1)

	p := f.newProcessor(notifier).WithMetrics(metrics)

	res, err := p.Process(ctx, transfer("NF-1", "ACC_ALICE", "ACC_BOB", "100.00"))
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, res.Status)
	assert.True(t, f.balance(t, "ACC_ALICE").Equal(dec("900.00")))

	pending, err := f.outbox.GetUnpublished(ctx, 10, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, pending, 1, "result stays in the outbox for the relay")

	relayed, ok := domain.ResultFromEvent(pending[0])
	require.True(t, ok)
	assert.Equal(t, "NF-1", relayed.ReferenceID)
	assert.Equal(t, domain.TransactionStatusCompleted, relayed.Status)
}

func TestProcess_ResultCache(t *testing.T) {
	ctx := context.Background()

	t.Run("hit short-circuits the store", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		f := newLedgerFixture(t)

		cache := mocks.NewMockResultCache(ctrl)
		cache.EXPECT().Get(gomock.Any(), "C-1").Return(&domain.TransferResult{
			ReferenceID: "C-1",
			Status:      domain.TransactionStatusCompleted,
			Message:     domain.MessageTransferSuccessful,
		}, nil)

		p := f.newProcessor(f.notifier).WithResultCache(cache)
		res, err := p.Process(ctx, transfer("C-1", "ACC_ALICE", "ACC_BOB", "1.00"))
		require.NoError(t, err)
		assert.True(t, res.Replayed)

		_, err = f.txns.GetByReference(ctx, "C-1")
		assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
	})

	t.Run("miss stores fresh result", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		f := newLedgerFixture(t)

		cache := mocks.NewMockResultCache(ctrl)
		cache.EXPECT().Get(gomock.Any(), "C-2").Return(nil, nil)
		cache.EXPECT().Set(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, res domain.TransferResult) error {
			assert.Equal(t, "C-2", res.ReferenceID)
			assert.Equal(t, domain.TransactionStatusCompleted, res.Status)
			return nil
		})

		p := f.newProcessor(f.notifier).WithResultCache(cache)
		res, err := p.Process(ctx, transfer("C-2", "ACC_ALICE", "ACC_BOB", "1.00"))
		require.NoError(t, err)
		assert.False(t, res.Replayed)
	})

	t.Run("cache errors fall back to the store", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		f := newLedgerFixture(t)

		cache := mocks.NewMockResultCache(ctrl)
		cache.EXPECT().Get(gomock.Any(), "C-3").Return(nil, errors.New("redis down"))
		cache.EXPECT().Set(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

		p := f.newProcessor(f.notifier).WithResultCache(cache)
		res, err := p.Process(ctx, transfer("C-3", "ACC_ALICE", "ACC_BOB", "1.00"))
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusCompleted, res.Status)
	})
}

type countingRetrier struct {
	attempts int
}

func (r *countingRetrier) Retry(ctx context.Context, op func() error) error {
	var err error
	for i := 0; i < 3; i++ {
		r.attempts++
		if err = op(); err == nil || !strings.Contains(err.Error(), "deadlock") {
			return err
		}
	}
	return err
}

func TestProcess_RetriesTransientSettleErrors(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	failures := 1
	f.store.InjectFault = func(op string) error {
		if op == memory.OpLockAccounts && failures > 0 {
			failures--
			return errors.New("deadlock detected")
		}
		return nil
	}

	retrier := &countingRetrier{}
	p := f.newProcessor(f.notifier).WithRetrier(retrier)

	res, err := p.Process(ctx, transfer("RT-1", "ACC_ALICE", "ACC_BOB", "1.00"))
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, res.Status)
	assert.Equal(t, 2, retrier.attempts)
	assert.Len(t, f.entriesOf(t, "RT-1"), 2)
}
