package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/iho/ledgerflow/internal/domain"
)

// ErrDeliveriesClosed is returned by Run when the broker closes the
// delivery stream while the consumer is still wanted.
var ErrDeliveriesClosed = errors.New("delivery channel closed by broker")

// TransferProcessor processes one decoded request.
type TransferProcessor interface {
	Process(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error)
}

// DeliverySource is the subset of *amqp.Channel the consumer reads from.
type DeliverySource interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// ConsumerMetrics records acknowledgements.
type ConsumerMetrics interface {
	ObserveMessage(ack string)
}

// Acknowledgement outcomes.
const (
	AckDone    = "ack"
	AckReject  = "reject"
	AckRequeue = "requeue"
)

// deliveryCountHeader is set by quorum queues on redelivered messages.
const deliveryCountHeader = "x-delivery-count"

// ConsumerConfig configures Consumer.
type ConsumerConfig struct {
	Queue    string
	Tag      string
	Workers  int
	Prefetch int
	// MaxDeliveries caps how often a failing message is requeued before it
	// is rejected to the dead-letter queue. Zero disables the cap.
	MaxDeliveries int
	Metrics       ConsumerMetrics // optional
}

// Consumer feeds request messages to the processor with a fixed pool of workers.
//
// A message is acked once the processor has an answer for it, including
// FAILED results and replays. Messages that can never be processed are
// rejected to the dead-letter queue. Store errors requeue the message; the
// gate makes the redelivery safe.
type Consumer struct {
	source    DeliverySource
	processor TransferProcessor
	cfg       ConsumerConfig
	logger    zerolog.Logger
}

// NewConsumer creates a new Consumer.
func NewConsumer(source DeliverySource, processor TransferProcessor, cfg ConsumerConfig, logger zerolog.Logger) *Consumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Prefetch < cfg.Workers {
		cfg.Prefetch = cfg.Workers
	}
	if cfg.Tag == "" {
		cfg.Tag = "ledgerflow"
	}

	return &Consumer{
		source:    source,
		processor: processor,
		cfg:       cfg,
		logger:    logger.With().Str("component", "consumer").Str("queue", cfg.Queue).Logger(),
	}
}

// Run consumes until ctx is cancelled, then waits for in-flight messages.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.source.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := c.source.ConsumeWithContext(ctx, c.cfg.Queue, c.cfg.Tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.cfg.Queue, err)
	}

	c.logger.Info().Int("workers", c.cfg.Workers).Int("prefetch", c.cfg.Prefetch).Msg("consumer started")

	var (
		wg     sync.WaitGroup
		closed = make(chan struct{}, c.cfg.Workers)
	)
	for range c.cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						closed <- struct{}{}
						return
					}
					c.handle(ctx, d)
				}
			}
		}()
	}
	wg.Wait()

	if ctx.Err() == nil && len(closed) > 0 {
		return ErrDeliveriesClosed
	}

	c.logger.Info().Msg("consumer stopped")
	return ctx.Err()
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	log := c.logger.With().Uint64("delivery_tag", d.DeliveryTag).Logger()

	req, err := DecodeRequest(d.Body)
	if err != nil {
		log.Warn().Err(err).Msg("rejecting malformed request")
		c.settle(log, d, AckReject)
		return
	}

	log = log.With().Str("reference_id", req.ReferenceID).Logger()

	// The message is acked after processing; a stop signal must not abandon
	// a settle halfway through.
	res, err := c.processor.Process(context.WithoutCancel(ctx), req)
	switch {
	case errors.Is(err, domain.ErrInvalidReferenceID), errors.Is(err, domain.ErrMalformedRequest):
		log.Warn().Err(err).Msg("rejecting invalid request")
		c.settle(log, d, AckReject)
	case err != nil && c.exhausted(d):
		log.Error().Err(err).Int64("deliveries", deliveryCount(d)+1).Msg("failed to process request, giving up")
		c.settle(log, d, AckReject)
	case err != nil:
		log.Error().Err(err).Msg("failed to process request, requeueing")
		c.settle(log, d, AckRequeue)
	default:
		log.Info().Str("status", string(res.Status)).Bool("replayed", res.Replayed).Msg("request processed")
		c.settle(log, d, AckDone)
	}
}

func (c *Consumer) exhausted(d amqp.Delivery) bool {
	return c.cfg.MaxDeliveries > 0 && deliveryCount(d)+1 >= int64(c.cfg.MaxDeliveries)
}

// deliveryCount returns how many times d was delivered before this attempt.
func deliveryCount(d amqp.Delivery) int64 {
	switch v := d.Headers[deliveryCountHeader].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	}
	return 0
}

func (c *Consumer) settle(log zerolog.Logger, d amqp.Delivery, outcome string) {
	var err error
	switch outcome {
	case AckDone:
		err = d.Ack(false)
	case AckReject:
		err = d.Nack(false, false)
	default:
		err = d.Nack(false, true)
	}
	if err != nil {
		log.Error().Err(err).Str("ack", outcome).Msg("failed to acknowledge message")
	}

	if c.cfg.Metrics != nil {
		c.cfg.Metrics.ObserveMessage(outcome)
	}
}
