package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/ledgerflow/internal/domain"
)

// RecoveryConfig configures RecoveryUseCase.
type RecoveryConfig struct {
	TransactionRepo TransactionRepository
	Resumer         Resumer
	// Locker is optional. Without it every instance sweeps.
	Locker     Locker
	Logger     zerolog.Logger
	StaleAfter time.Duration
	BatchSize  int
	Interval   time.Duration
}

// SweepStats summarizes one recovery sweep.
type SweepStats struct {
	Scanned   int
	Completed int
	Failed    int
	Busy      int
	Errors    int
}

// RecoveryUseCase drives stale PENDING transactions to a terminal state.
// A transaction stays PENDING only when its worker died between reserving
// the reference and committing the outcome.
type RecoveryUseCase struct {
	txnRepo    TransactionRepository
	resumer    Resumer
	locker     Locker
	logger     zerolog.Logger
	staleAfter time.Duration
	batchSize  int
	interval   time.Duration
	now        func() time.Time
}

// NewRecoveryUseCase creates a new RecoveryUseCase.
func NewRecoveryUseCase(cfg RecoveryConfig) *RecoveryUseCase {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultRecoveryBatch
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}

	return &RecoveryUseCase{
		txnRepo:    cfg.TransactionRepo,
		resumer:    cfg.Resumer,
		locker:     cfg.Locker,
		logger:     cfg.Logger,
		staleAfter: cfg.StaleAfter,
		batchSize:  cfg.BatchSize,
		interval:   cfg.Interval,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start sweeps on every tick until ctx is cancelled.
func (uc *RecoveryUseCase) Start(ctx context.Context) error {
	uc.logger.Info().
		Dur("interval", uc.interval).
		Dur("stale_after", uc.staleAfter).
		Msg("recovery sweeper started")

	ticker := time.NewTicker(uc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			uc.logger.Info().Msg("recovery sweeper shutting down")
			return ctx.Err()
		case <-ticker.C:
			stats, err := uc.Sweep(ctx)
			switch {
			case errors.Is(err, ErrLockNotAcquired):
				uc.logger.Debug().Msg("recovery sweep skipped, another instance holds the lock")
			case err != nil:
				uc.logger.Error().Err(err).Msg("recovery sweep failed")
			case stats.Scanned > 0:
				uc.logger.Info().
					Int("scanned", stats.Scanned).
					Int("completed", stats.Completed).
					Int("failed", stats.Failed).
					Int("busy", stats.Busy).
					Int("errors", stats.Errors).
					Msg("recovery sweep finished")
			}
		}
	}
}

// Sweep resumes one batch of stale PENDING transactions.
func (uc *RecoveryUseCase) Sweep(ctx context.Context) (SweepStats, error) {
	if uc.locker == nil {
		return uc.sweep(ctx)
	}

	var stats SweepStats
	err := uc.locker.WithLock(ctx, RecoveryLockKey, func(ctx context.Context) error {
		var err error
		stats, err = uc.sweep(ctx)
		return err
	})

	return stats, err
}

func (uc *RecoveryUseCase) sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats

	stale, err := uc.txnRepo.ListStalePending(ctx, uc.now().Add(-uc.staleAfter), uc.batchSize)
	if err != nil {
		return stats, err
	}

	for _, txn := range stale {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		stats.Scanned++

		res, err := uc.resumer.Resume(ctx, txn.ReferenceID)
		switch {
		case errors.Is(err, domain.ErrTransactionLocked):
			stats.Busy++
		case err != nil:
			stats.Errors++
			uc.logger.Error().Err(err).Str("reference_id", txn.ReferenceID).Msg("failed to resume pending transaction")
		case res.Status == domain.TransactionStatusCompleted:
			stats.Completed++
		default:
			stats.Failed++
		}
	}

	return stats, nil
}
