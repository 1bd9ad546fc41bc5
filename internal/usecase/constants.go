package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultNotifyTimeout bounds one direct notification attempt after commit.
	DefaultNotifyTimeout = 5 * time.Second

	// RecoveryLockKey guards the stale PENDING sweep across instances.
	RecoveryLockKey = "ledgerflow:recovery"

	// DefaultRecoveryBatch is how many stale transactions one sweep resumes.
	DefaultRecoveryBatch = 100
)
