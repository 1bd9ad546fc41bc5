package eventpublisher

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/ledgerflow/internal/domain"
	"github.com/iho/ledgerflow/internal/usecase"
)

// RelayMetrics is the subset of metrics the relay reports.
type RelayMetrics interface {
	IncOutboxRelayed()
}

// EventPublisher relays terminal results that the processor could not
// deliver directly. An event becomes eligible once it is older than the
// grace period, which leaves the direct notification time to finish.
type EventPublisher struct {
	outboxRepo usecase.OutboxRepository
	notifier   usecase.Notifier
	metrics    RelayMetrics
	logger     zerolog.Logger
	batchSize  int
	interval   time.Duration
	grace      time.Duration
	retention  time.Duration
	now        func() time.Time
}

// Config for EventPublisher.
type Config struct {
	OutboxRepo usecase.OutboxRepository
	Notifier   usecase.Notifier
	Metrics    RelayMetrics // optional
	Logger     zerolog.Logger
	BatchSize  int           // Number of events to fetch per batch
	Interval   time.Duration // Polling interval
	Grace      time.Duration // Minimum event age before relaying
	Retention  time.Duration // How long published events are kept; zero keeps them forever
}

// NewEventPublisher creates a new EventPublisher.
func NewEventPublisher(cfg Config) *EventPublisher {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Grace == 0 {
		cfg.Grace = 30 * time.Second
	}

	return &EventPublisher{
		outboxRepo: cfg.OutboxRepo,
		notifier:   cfg.Notifier,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.With().Str("component", "outbox_relay").Logger(),
		batchSize:  cfg.BatchSize,
		interval:   cfg.Interval,
		grace:      cfg.Grace,
		retention:  cfg.Retention,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the relay worker.
// It runs continuously until the context is cancelled.
func (ep *EventPublisher) Start(ctx context.Context) error {
	ep.logger.Info().
		Int("batch_size", ep.batchSize).
		Dur("interval", ep.interval).
		Dur("grace", ep.grace).
		Msg("outbox relay started")

	ticker := time.NewTicker(ep.interval)
	defer ticker.Stop()

	ep.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			ep.logger.Info().Msg("outbox relay shutting down")
			return ctx.Err()
		case <-ticker.C:
			ep.tick(ctx)
		}
	}
}

func (ep *EventPublisher) tick(ctx context.Context) {
	if err := ep.processEvents(ctx); err != nil {
		ep.logger.Error().Err(err).Msg("error processing events")
	}
	if err := ep.purge(ctx); err != nil {
		ep.logger.Error().Err(err).Msg("error purging published events")
	}
}

// processEvents fetches and relays a batch of unpublished events.
func (ep *EventPublisher) processEvents(ctx context.Context) error {
	events, err := ep.outboxRepo.GetUnpublished(ctx, ep.batchSize, ep.now().Add(-ep.grace))
	if err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	ep.logger.Info().Int("count", len(events)).Msg("relaying events")

	for _, event := range events {
		log := ep.logger.With().
			Str("event_id", event.ID).
			Str("event_type", event.EventType).
			Str("reference_id", event.AggregateID).
			Logger()

		result, ok := domain.ResultFromEvent(event)
		if !ok {
			// Nothing can ever deliver it; retire it so it stops blocking the batch.
			log.Warn().Msg("outbox event carries no result, marking published")
		} else if err := ep.notifier.Notify(ctx, result); err != nil {
			log.Error().Err(err).Msg("failed to relay event")
			// Continue processing other events even if one fails
			continue
		} else if ep.metrics != nil {
			ep.metrics.IncOutboxRelayed()
		}

		if err := ep.outboxRepo.MarkPublished(ctx, event.ID, ep.now()); err != nil {
			log.Error().Err(err).Msg("failed to mark event as published")
			continue
		}

		log.Debug().Msg("event relayed")
	}

	return nil
}

func (ep *EventPublisher) purge(ctx context.Context) error {
	if ep.retention <= 0 {
		return nil
	}
	return ep.outboxRepo.DeletePublished(ctx, ep.now().Add(-ep.retention))
}

// LogNotifier is a notifier that logs results. It stands in for the broker
// when the service runs without one.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a new LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the result.
func (n *LogNotifier) Notify(ctx context.Context, result domain.TransferResult) error {
	n.logger.Info().
		Str("reference_id", result.ReferenceID).
		Str("status", string(result.Status)).
		Str("message", result.Message).
		Msg("transfer result")

	return nil
}
