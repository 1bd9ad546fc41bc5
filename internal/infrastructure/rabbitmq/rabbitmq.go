package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Dial connects to the broker, retrying with exponential backoff until
// maxElapsed passes or ctx is cancelled.
func Dial(ctx context.Context, url string, maxElapsed time.Duration, logger zerolog.Logger) (*amqp.Connection, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = maxElapsed

	var conn *amqp.Connection
	operation := func() error {
		c, err := amqp.DialConfig(url, amqp.Config{
			Heartbeat:  10 * time.Second,
			Properties: amqp.Table{"connection_name": "ledgerflow"},
		})
		if err != nil {
			return err
		}
		conn = c
		return nil
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).Dur("retry_in", wait).Msg("failed to connect to rabbitmq, retrying")
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	return conn, nil
}

// DefaultDeliveryLimit is how many times the broker hands out a request
// before dead-lettering it.
const DefaultDeliveryLimit = 10

// Topology names the exchanges and queues the service uses.
type Topology struct {
	RequestQueue       string
	ResultExchange     string
	DeadLetterExchange string
	DeadLetterQueue    string
	DeliveryLimit      int
}

func (t Topology) withDefaults() Topology {
	if t.DeliveryLimit <= 0 {
		t.DeliveryLimit = DefaultDeliveryLimit
	}
	if t.DeadLetterExchange == "" {
		t.DeadLetterExchange = t.RequestQueue + ".dlx"
	}
	if t.DeadLetterQueue == "" {
		t.DeadLetterQueue = t.RequestQueue + ".dlq"
	}
	return t
}

// Declarer is the subset of *amqp.Channel used to declare topology.
type Declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// DeclareTopology declares the request queue, its dead-letter exchange and
// queue, and the topic exchange results are published to. The request queue
// is a quorum queue so the broker counts redeliveries: requests rejected by
// the consumer, or requeued more than DeliveryLimit times, land in the
// dead-letter queue.
func DeclareTopology(ch Declarer, t Topology) error {
	t = t.withDefaults()

	if err := ch.ExchangeDeclare(t.DeadLetterExchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead-letter exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(t.DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead-letter queue: %w", err)
	}

	if err := ch.QueueBind(t.DeadLetterQueue, "", t.DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("bind dead-letter queue: %w", err)
	}

	if _, err := ch.QueueDeclare(t.RequestQueue, true, false, false, false, amqp.Table{
		"x-queue-type":           "quorum",
		"x-delivery-limit":       int32(t.DeliveryLimit),
		"x-dead-letter-exchange": t.DeadLetterExchange,
	}); err != nil {
		return fmt.Errorf("declare request queue: %w", err)
	}

	if err := ch.ExchangeDeclare(t.ResultExchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare result exchange: %w", err)
	}

	return nil
}
