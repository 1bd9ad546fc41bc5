package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/iho/ledgerflow/internal/domain"
)

// Notifier delivers terminal results to subscribers.
type Notifier interface {
	Notify(ctx context.Context, result domain.TransferResult) error
}

// ResultCache keeps terminal results close to the processor.
// Get returns nil without error on a miss.
type ResultCache interface {
	Get(ctx context.Context, referenceID string) (*domain.TransferResult, error)
	Set(ctx context.Context, result domain.TransferResult) error
}

// ErrLockNotAcquired is returned by Locker when another instance holds the lock.
var ErrLockNotAcquired = errors.New("lock held by another instance")

// Locker runs fn while holding a lock shared by every instance.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Resumer settles transactions left PENDING.
type Resumer interface {
	Resume(ctx context.Context, referenceID string) (*domain.TransferResult, error)
}

// Metrics records processor outcomes.
type Metrics interface {
	ObserveTransfer(result domain.TransferResult, elapsed time.Duration)
	IncNotificationFailures()
}

type noopMetrics struct{}

func (noopMetrics) ObserveTransfer(domain.TransferResult, time.Duration) {}
func (noopMetrics) IncNotificationFailures()                            {}
