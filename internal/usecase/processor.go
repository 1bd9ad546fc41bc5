package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/ledgerflow/internal/domain"
)

// TransactionProcessor applies transfer requests to the ledger.
//
// Each reference ID is applied at most once: a unique insert reserves it as
// PENDING, then a separate store transaction settles it under a row lock on
// the transaction record. Balances and journal entries change only together
// with the COMPLETED status. The processor is safe for concurrent use.
type TransactionProcessor struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	txnRepo     TransactionRepository
	entryRepo   EntryRepository
	outboxRepo  OutboxRepository
	idGen       IDGenerator
	notifier    Notifier
	retrier     Retrier
	cache       ResultCache
	metrics     Metrics
	logger      zerolog.Logger
	now         func() time.Time
}

// NewTransactionProcessor creates a new TransactionProcessor.
func NewTransactionProcessor(
	txManager TransactionManager,
	accountRepo AccountRepository,
	txnRepo TransactionRepository,
	entryRepo EntryRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	notifier Notifier,
	logger zerolog.Logger,
) *TransactionProcessor {
	return &TransactionProcessor{
		txManager:   txManager,
		accountRepo: accountRepo,
		txnRepo:     txnRepo,
		entryRepo:   entryRepo,
		outboxRepo:  outboxRepo,
		idGen:       idGen,
		notifier:    notifier,
		metrics:     noopMetrics{},
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithRetrier retries the settle step on transient store errors.
func (p *TransactionProcessor) WithRetrier(r Retrier) *TransactionProcessor {
	p.retrier = r
	return p
}

// WithResultCache serves replays of terminal results from cache.
func (p *TransactionProcessor) WithResultCache(c ResultCache) *TransactionProcessor {
	p.cache = c
	return p
}

// WithMetrics records outcomes.
func (p *TransactionProcessor) WithMetrics(m Metrics) *TransactionProcessor {
	if m != nil {
		p.metrics = m
	}
	return p
}

// WithClock overrides the time source.
func (p *TransactionProcessor) WithClock(now func() time.Time) *TransactionProcessor {
	p.now = now
	return p
}

type settlement struct {
	result  domain.TransferResult
	eventID string
}

// Process handles one transfer request.
//
// Validation failures are returned as a FAILED result with a nil error.
// Duplicates return the recorded result marked as a replay, or an in-flight
// PENDING result while another worker holds the transaction. An error means
// nothing was committed by this call and the request may be retried as is.
func (p *TransactionProcessor) Process(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	start := time.Now()

	if err := req.ValidateShape(); err != nil {
		return nil, err
	}

	log := p.logger.With().Str("reference_id", req.ReferenceID).Logger()

	if cached := p.cachedResult(ctx, req.ReferenceID); cached != nil {
		p.metrics.ObserveTransfer(*cached, time.Since(start))
		return cached, nil
	}

	created, existing, err := p.txnRepo.Reserve(ctx, domain.NewPendingTransaction(req, p.now()))
	if err != nil {
		return nil, fmt.Errorf("reserve transaction %s: %w", req.ReferenceID, err)
	}

	nowait := false
	if !created {
		if !req.Matches(existing) {
			log.Warn().
				Str("source_account", req.SourceAccount).
				Str("target_account", req.TargetAccount).
				Str("amount", req.Amount.String()).
				Msg("duplicate reference id with different fields, keeping recorded transaction")
		}

		if existing.Status.IsTerminal() {
			res := existing.Result().AsReplay()
			p.remember(ctx, res)
			p.metrics.ObserveTransfer(res, time.Since(start))
			log.Debug().Str("status", string(res.Status)).Msg("replaying recorded result")
			return &res, nil
		}

		// A PENDING record belongs either to a live attempt, which holds its
		// row lock, or to one that died before commit.
		nowait = true
	}

	s, err := p.settle(ctx, req.ReferenceID, nowait)
	if errors.Is(err, domain.ErrTransactionLocked) {
		res := domain.InFlightResult(req.ReferenceID)
		p.metrics.ObserveTransfer(res, time.Since(start))
		log.Debug().Msg("duplicate request while first attempt is in flight")
		return &res, nil
	}
	if err != nil {
		return nil, err
	}

	p.emit(ctx, s)
	p.metrics.ObserveTransfer(s.result, time.Since(start))

	return &s.result, nil
}

// Resume settles a transaction that was left PENDING. It does not wait for a
// row held by another worker and returns domain.ErrTransactionLocked instead.
func (p *TransactionProcessor) Resume(ctx context.Context, referenceID string) (*domain.TransferResult, error) {
	s, err := p.settle(ctx, referenceID, true)
	if err != nil {
		return nil, err
	}

	p.emit(ctx, s)

	return &s.result, nil
}

func (p *TransactionProcessor) settle(ctx context.Context, referenceID string, nowait bool) (*settlement, error) {
	var out *settlement

	op := func() error {
		s, err := p.settleOnce(ctx, referenceID, nowait)
		if err != nil {
			return err
		}
		out = s
		return nil
	}

	var err error
	if p.retrier != nil {
		err = p.retrier.Retry(ctx, op)
	} else {
		err = op()
	}

	if err != nil {
		return nil, err
	}

	return out, nil
}

func (p *TransactionProcessor) settleOnce(ctx context.Context, referenceID string, nowait bool) (*settlement, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := p.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin settle %s: %w", referenceID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	txn, err := p.txnRepo.GetByReferenceForUpdate(ctx, tx, referenceID, nowait)
	if err != nil {
		return nil, err
	}

	if txn.Status.IsTerminal() {
		return &settlement{result: txn.Result().AsReplay()}, nil
	}

	now := p.now()

	cause := p.apply(ctx, tx, txn, now)
	switch {
	case cause == nil:
		err = txn.Complete(now)
	case domain.IsValidationError(cause):
		err = txn.Fail(cause.Error(), now)
	default:
		return nil, cause
	}
	if err != nil {
		return nil, err
	}

	if err := p.txnRepo.UpdateStatus(ctx, tx, txn); err != nil {
		return nil, err
	}

	result := txn.Result()
	result.Cause = cause

	event := domain.NewResultEvent(p.idGen.Generate(), result, now)
	if err := p.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit settle %s: %w", referenceID, err)
	}

	return &settlement{result: result, eventID: event.ID}, nil
}

// apply validates txn against the locked accounts and posts both legs.
// Validation errors are returned before anything is written.
func (p *TransactionProcessor) apply(ctx context.Context, tx Transaction, txn *domain.Transaction, now time.Time) error {
	if err := domain.ValidateAmount(txn.Amount); err != nil {
		return err
	}

	// Lock in a stable order so that two transfers over the same pair of
	// accounts cannot deadlock.
	numbers := []string{txn.SourceAccount}
	if txn.TargetAccount != txn.SourceAccount {
		numbers = append(numbers, txn.TargetAccount)
	}
	sort.Strings(numbers)

	accounts, err := p.accountRepo.GetByNumbersForUpdate(ctx, tx, numbers)
	if err != nil {
		return err
	}

	byNumber := make(map[string]*domain.Account, len(accounts))
	for _, a := range accounts {
		byNumber[a.AccountNumber] = a
	}

	source, ok := byNumber[txn.SourceAccount]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, txn.SourceAccount)
	}

	target, ok := byNumber[txn.TargetAccount]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, txn.TargetAccount)
	}

	if source.Currency != target.Currency {
		return fmt.Errorf("%w: %s is %s, %s is %s", domain.ErrCurrencyMismatch,
			source.AccountNumber, source.Currency, target.AccountNumber, target.Currency)
	}

	if err := source.ValidateDebit(txn.Amount); err != nil {
		return err
	}

	if err := p.post(ctx, tx, txn, domain.EntryKindDebit, source, now); err != nil {
		return err
	}

	// For a self-transfer target is the same pointer as source and sees the
	// debited balance.
	return p.post(ctx, tx, txn, domain.EntryKindCredit, target, now)
}

func (p *TransactionProcessor) post(ctx context.Context, tx Transaction, txn *domain.Transaction, kind domain.EntryKind, account *domain.Account, now time.Time) error {
	entry := domain.NewJournalEntry(p.idGen.Generate(), txn.ReferenceID, kind, account, txn.Amount, now)

	if err := p.entryRepo.Create(ctx, tx, entry); err != nil {
		return err
	}

	if err := p.accountRepo.UpdateBalance(ctx, tx, account.AccountNumber, entry.AccountCurrentBalance, account.Version, now); err != nil {
		return err
	}

	account.Balance = entry.AccountCurrentBalance
	account.Version = entry.AccountVersion
	account.UpdatedAt = now

	return nil
}

// emit hands a freshly committed result to the notifier. The ledger is
// already durable, so failures are logged and left to the outbox relay.
func (p *TransactionProcessor) emit(ctx context.Context, s *settlement) {
	if s.result.Replayed {
		return
	}

	p.remember(ctx, s.result)

	log := p.logger.With().
		Str("reference_id", s.result.ReferenceID).
		Str("status", string(s.result.Status)).
		Logger()

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultNotifyTimeout)
	defer cancel()

	if err := p.notifier.Notify(notifyCtx, s.result); err != nil {
		p.metrics.IncNotificationFailures()
		log.Error().Err(err).Str("event_id", s.eventID).Msg("result notification failed, outbox relay will retry")
		return
	}

	if err := p.outboxRepo.MarkPublished(notifyCtx, s.eventID, p.now()); err != nil {
		log.Warn().Err(err).Str("event_id", s.eventID).Msg("failed to mark result event published")
	}

	log.Info().Msg("transfer processed")
}

func (p *TransactionProcessor) cachedResult(ctx context.Context, referenceID string) *domain.TransferResult {
	if p.cache == nil {
		return nil
	}

	res, err := p.cache.Get(ctx, referenceID)
	if err != nil {
		p.logger.Warn().Err(err).Str("reference_id", referenceID).Msg("result cache lookup failed")
		return nil
	}

	if res == nil || !res.IsTerminal() {
		return nil
	}

	replay := res.AsReplay()
	return &replay
}

func (p *TransactionProcessor) remember(ctx context.Context, res domain.TransferResult) {
	if p.cache == nil || !res.IsTerminal() {
		return
	}

	if err := p.cache.Set(ctx, res); err != nil {
		p.logger.Warn().Err(err).Str("reference_id", res.ReferenceID).Msg("result cache write failed")
	}
}
