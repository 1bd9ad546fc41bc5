package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/iho/ledgerflow/internal/domain"
)

// NotifierConfig configures ResultNotifier.
type NotifierConfig struct {
	Exchange   string
	RoutingKey string
	// MaxElapsed bounds the retries of one notification.
	MaxElapsed time.Duration
	// FailureThreshold is how many consecutive failures open the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// ResultNotifier publishes terminal results to the result exchange.
// Publishes are retried with backoff behind a circuit breaker, so a broker
// outage fails fast and leaves delivery to the outbox relay.
type ResultNotifier struct {
	pub     Publisher
	cfg     NotifierConfig
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// NewResultNotifier creates a new ResultNotifier.
func NewResultNotifier(pub Publisher, cfg NotifierConfig, logger zerolog.Logger) *ResultNotifier {
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = 4 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	n := &ResultNotifier{
		pub:    pub,
		cfg:    cfg,
		logger: logger,
	}

	n.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "result-notifier",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	return n
}

// Notify publishes result.
func (n *ResultNotifier) Notify(ctx context.Context, result domain.TransferResult) error {
	body, err := EncodeResult(result)
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    result.ReferenceID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	operation := func() error {
		_, err := n.breaker.Execute(func() (any, error) {
			return nil, n.pub.Publish(ctx, n.cfg.Exchange, n.cfg.RoutingKey, msg)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = n.cfg.MaxElapsed

	notify := func(err error, wait time.Duration) {
		n.logger.Debug().Err(err).
			Str("reference_id", result.ReferenceID).
			Dur("retry_in", wait).
			Msg("result publish failed, retrying")
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		return fmt.Errorf("notify result %s: %w", result.ReferenceID, err)
	}

	return nil
}

// State reports the breaker state, for health checks.
func (n *ResultNotifier) State() gobreaker.State {
	return n.breaker.State()
}
