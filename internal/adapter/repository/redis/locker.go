package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/ledgerflow/internal/usecase"
)

// DefaultLockExpiry is how long a lock survives a holder that stops renewing it.
const DefaultLockExpiry = 2 * time.Minute

// Locker implements usecase.Locker with a Redis mutex. Acquisition is
// attempted once, so a busy lock is reported instead of waited for.
type Locker struct {
	rs     *redsync.Redsync
	expiry time.Duration
	logger zerolog.Logger
}

// NewLocker creates a new Locker.
func NewLocker(client *redis.Client, expiry time.Duration, logger zerolog.Logger) *Locker {
	if expiry <= 0 {
		expiry = DefaultLockExpiry
	}

	return &Locker{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
		logger: logger,
	}
}

// WithLock runs fn while holding the lock named key. It returns
// usecase.ErrLockNotAcquired when another holder has it.
func (l *Locker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	mutex := l.rs.NewMutex(key,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return usecase.ErrLockNotAcquired
		}
		return fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	defer func() {
		// The lock may have expired under a slow fn; that is only worth a warning.
		if ok, err := mutex.UnlockContext(context.WithoutCancel(ctx)); !ok || err != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("failed to release lock")
		}
	}()

	return fn(ctx)
}
