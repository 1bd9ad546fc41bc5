package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/ledgerflow/internal/adapter/http"
	"github.com/iho/ledgerflow/internal/adapter/http/handler"
	messaging "github.com/iho/ledgerflow/internal/adapter/messaging/rabbitmq"
	postgresRepo "github.com/iho/ledgerflow/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/ledgerflow/internal/adapter/repository/redis"
	"github.com/iho/ledgerflow/internal/infrastructure/config"
	"github.com/iho/ledgerflow/internal/infrastructure/eventpublisher"
	"github.com/iho/ledgerflow/internal/infrastructure/logger"
	"github.com/iho/ledgerflow/internal/infrastructure/metrics"
	"github.com/iho/ledgerflow/internal/infrastructure/postgres"
	"github.com/iho/ledgerflow/internal/infrastructure/rabbitmq"
	"github.com/iho/ledgerflow/internal/infrastructure/redis"
	"github.com/iho/ledgerflow/internal/usecase"
)

const brokerDialTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "ledgerflow",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if cfg.AutoMigrate {
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, log); err != nil {
			return err
		}
	}

	// Connect to PostgreSQL
	connectCtx, cancelConnect := context.WithTimeout(ctx, cfg.DatabaseTimeout)
	pool, err := postgres.NewPoolWithConfig(connectCtx, postgres.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DatabaseMaxConns,
		MinConns:    cfg.DatabaseMinConns,
	})
	cancelConnect()
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	// Connect to RabbitMQ
	conn, err := rabbitmq.Dial(ctx, cfg.AMQPURL, brokerDialTimeout, log)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Info().Msg("connected to rabbitmq")

	if err := declareTopology(conn, cfg); err != nil {
		return err
	}

	resultPublisher, err := newConfirmPublisher(conn, cfg.PublishConfirmWait)
	if err != nil {
		return err
	}
	defer resultPublisher.Close()

	requestPublisher, err := newConfirmPublisher(conn, cfg.PublishConfirmWait)
	if err != nil {
		return err
	}
	defer requestPublisher.Close()

	consumerCh, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	defer consumerCh.Close()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool)
	accountRepo := postgresRepo.NewAccountRepository(pool)
	txnRepo := postgresRepo.NewTransactionRepository(pool)
	entryRepo := postgresRepo.NewEntryRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	ledgerRepo := postgresRepo.NewLedgerRepository(pool)

	notifier := resolveNotifier(cfg, resultPublisher, log)

	// Initialize use cases
	processor := usecase.NewTransactionProcessor(
		txManager,
		accountRepo,
		txnRepo,
		entryRepo,
		outboxRepo,
		postgresRepo.NewULIDGenerator(),
		notifier,
		log,
	).
		WithRetrier(postgresRepo.NewRetrier(log)).
		WithResultCache(redisRepo.NewResultCache(redisClient, cfg.ResultCacheTTL)).
		WithMetrics(m)

	accountUC := usecase.NewAccountUseCase(accountRepo)
	txnUC := usecase.NewTransactionUseCase(txnRepo, entryRepo)
	reconUC := usecase.NewReconciliationUseCase(accountRepo, txnRepo, entryRepo, ledgerRepo)

	recovery := usecase.NewRecoveryUseCase(usecase.RecoveryConfig{
		TransactionRepo: txnRepo,
		Resumer:         processor,
		Locker:          redisRepo.NewLocker(redisClient, cfg.LockExpiry, log),
		Logger:          log,
		StaleAfter:      cfg.RecoveryStaleAfter,
		BatchSize:       cfg.RecoveryBatchSize,
		Interval:        cfg.RecoveryInterval,
	})

	relay := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: outboxRepo,
		Notifier:   notifier,
		Metrics:    m,
		Logger:     log,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxInterval,
		Grace:      cfg.OutboxGrace,
		Retention:  cfg.OutboxRetention,
	})

	consumer := messaging.NewConsumer(consumerCh, processor, messaging.ConsumerConfig{
		Queue:         cfg.RequestQueue,
		Workers:       cfg.ConsumerWorkers,
		Prefetch:      cfg.ConsumerPrefetch,
		MaxDeliveries: cfg.DeliveryLimit,
		Metrics:       m,
	}, log)

	// Create router
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AccountHandler:     handler.NewAccountHandler(accountUC),
		TransactionHandler: handler.NewTransactionHandler(txnUC),
		TransferHandler: handler.NewTransferHandler(
			messaging.NewRequestPublisher(requestPublisher, cfg.RequestQueue), log),
		LedgerHandler: handler.NewLedgerHandler(reconUC),
		HealthHandler: handler.NewHealthHandler(
			handler.Check{Name: "postgres", Ping: pool.Ping},
			handler.Check{Name: "redis", Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
			handler.Check{Name: "rabbitmq", Ping: brokerCheck(conn, resultPublisher, requestPublisher)},
		),
		Logger:   log,
		Metrics:  m,
		Gatherer: registry,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return ignoreCanceled(consumer.Run(gctx)) })
	g.Go(func() error { return ignoreCanceled(relay.Start(gctx)) })
	g.Go(func() error { return ignoreCanceled(recovery.Start(gctx)) })

	g.Go(func() error {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting http server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTPShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func declareTopology(conn *amqp.Connection, cfg *config.Config) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open topology channel: %w", err)
	}
	defer ch.Close()

	return rabbitmq.DeclareTopology(ch, rabbitmq.Topology{
		RequestQueue:   cfg.RequestQueue,
		ResultExchange: cfg.ResultExchange,
		DeliveryLimit:  cfg.DeliveryLimit,
	})
}

func newConfirmPublisher(conn *amqp.Connection, timeout time.Duration) (*rabbitmq.ConfirmPublisher, error) {
	openChannel := func() (rabbitmq.ConfirmChannel, error) {
		return conn.Channel()
	}

	ch, err := openChannel()
	if err != nil {
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}

	return rabbitmq.NewConfirmPublisher(ch, timeout, rabbitmq.WithChannelProvider(openChannel))
}

// brokerCheck reports the broker unhealthy when the connection is gone or a
// publisher cannot get its channel back.
func brokerCheck(conn interface{ IsClosed() bool }, publishers ...*rabbitmq.ConfirmPublisher) func(context.Context) error {
	return func(context.Context) error {
		if conn.IsClosed() {
			return amqp.ErrClosed
		}
		for _, pub := range publishers {
			if err := pub.Recover(); err != nil {
				return err
			}
		}
		return nil
	}
}

// resolveNotifier picks where results go. The log backend serves local runs
// where nothing subscribes to results.
func resolveNotifier(cfg *config.Config, pub messaging.Publisher, log zerolog.Logger) usecase.Notifier {
	if cfg.NotifierBackend == "log" {
		return eventpublisher.NewLogNotifier(log)
	}

	return messaging.NewResultNotifier(pub, messaging.NotifierConfig{
		Exchange:   cfg.ResultExchange,
		RoutingKey: cfg.ResultRoutingKey,
		MaxElapsed: cfg.NotifierMaxElapsed,
	}, log)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
