package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/ledgerflow/internal/domain"
)

type recordingAcker struct {
	mu       sync.Mutex
	outcomes map[uint64]string
}

func newRecordingAcker() *recordingAcker {
	return &recordingAcker{outcomes: map[uint64]string{}}
}

func (a *recordingAcker) record(tag uint64, outcome string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.outcomes[tag] = outcome
	return nil
}

func (a *recordingAcker) Ack(tag uint64, _ bool) error { return a.record(tag, AckDone) }

func (a *recordingAcker) Nack(tag uint64, _ bool, requeue bool) error {
	if requeue {
		return a.record(tag, AckRequeue)
	}
	return a.record(tag, AckReject)
}

func (a *recordingAcker) Reject(tag uint64, requeue bool) error { return a.Nack(tag, false, requeue) }

func (a *recordingAcker) get(tag uint64) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outcomes[tag]
}

type fakeSource struct {
	deliveries chan amqp.Delivery
	prefetch   int
	consumeErr error
}

func (f *fakeSource) Qos(prefetchCount, _ int, _ bool) error {
	f.prefetch = prefetchCount
	return nil
}

func (f *fakeSource) ConsumeWithContext(context.Context, string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	if f.consumeErr != nil {
		return nil, f.consumeErr
	}
	return f.deliveries, nil
}

type processorFunc func(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error)

func (f processorFunc) Process(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	return f(ctx, req)
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *countingMetrics) ObserveMessage(ack string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[ack]++
}

func delivery(acker amqp.Acknowledger, tag uint64, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: acker, DeliveryTag: tag, Body: []byte(body)}
}

func TestConsumer_AckPolicy(t *testing.T) {
	acker := newRecordingAcker()
	source := &fakeSource{deliveries: make(chan amqp.Delivery, 8)}
	metrics := &countingMetrics{}

	processor := processorFunc(func(_ context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
		switch req.ReferenceID {
		case "R-FAILED":
			return &domain.TransferResult{ReferenceID: req.ReferenceID, Status: domain.TransactionStatusFailed}, nil
		case "R-STORE":
			return nil, errors.New("connection reset")
		default:
			return &domain.TransferResult{ReferenceID: req.ReferenceID, Status: domain.TransactionStatusCompleted}, nil
		}
	})

	source.deliveries <- delivery(acker, 1, `{"idempotency_key":"R-OK","source_account":"A","target_account":"B","amount":1}`)
	source.deliveries <- delivery(acker, 2, `{"idempotency_key":"R-FAILED","source_account":"A","target_account":"B","amount":1}`)
	source.deliveries <- delivery(acker, 3, `{"idempotency_key":"R-STORE","source_account":"A","target_account":"B","amount":1}`)
	source.deliveries <- delivery(acker, 4, `garbage`)
	source.deliveries <- delivery(acker, 5, `{"source_account":"A","target_account":"B","amount":1}`)
	close(source.deliveries)

	c := NewConsumer(source, processor, ConsumerConfig{Queue: "transfer-requests", Workers: 3, Metrics: metrics}, zerolog.Nop())
	err := c.Run(context.Background())
	assert.ErrorIs(t, err, ErrDeliveriesClosed)

	assert.Equal(t, AckDone, acker.get(1))
	assert.Equal(t, AckDone, acker.get(2), "FAILED results are answers")
	assert.Equal(t, AckRequeue, acker.get(3))
	assert.Equal(t, AckReject, acker.get(4))
	assert.Equal(t, AckReject, acker.get(5))

	assert.Equal(t, 3, source.prefetch, "prefetch is raised to the worker count")
	assert.Equal(t, map[string]int{AckDone: 2, AckRequeue: 1, AckReject: 2}, metrics.counts)
}

func TestConsumer_RedeliveryCap(t *testing.T) {
	acker := newRecordingAcker()
	source := &fakeSource{deliveries: make(chan amqp.Delivery, 4)}

	processor := processorFunc(func(context.Context, domain.TransferRequest) (*domain.TransferResult, error) {
		return nil, errors.New("invalid byte sequence for encoding")
	})

	body := `{"idempotency_key":"R-POISON","source_account":"A","target_account":"B","amount":1}`
	first := delivery(acker, 1, body)
	retried := delivery(acker, 2, body)
	retried.Headers = amqp.Table{"x-delivery-count": int64(1)}
	last := delivery(acker, 3, body)
	last.Headers = amqp.Table{"x-delivery-count": int64(2)}

	source.deliveries <- first
	source.deliveries <- retried
	source.deliveries <- last
	close(source.deliveries)

	c := NewConsumer(source, processor, ConsumerConfig{Queue: "transfer-requests", MaxDeliveries: 3}, zerolog.Nop())
	assert.ErrorIs(t, c.Run(context.Background()), ErrDeliveriesClosed)

	assert.Equal(t, AckRequeue, acker.get(1))
	assert.Equal(t, AckRequeue, acker.get(2))
	assert.Equal(t, AckReject, acker.get(3), "third delivery goes to the dead-letter queue")
}

func TestConsumer_StopsOnCancel(t *testing.T) {
	source := &fakeSource{deliveries: make(chan amqp.Delivery)}
	c := NewConsumer(source, processorFunc(func(context.Context, domain.TransferRequest) (*domain.TransferResult, error) {
		return nil, nil
	}), ConsumerConfig{Queue: "q", Workers: 2, Prefetch: 4}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after cancel")
	}
	assert.Equal(t, 4, source.prefetch)
}

func TestConsumer_ConsumeError(t *testing.T) {
	boom := errors.New("queue not found")
	c := NewConsumer(&fakeSource{consumeErr: boom}, nil, ConsumerConfig{Queue: "q"}, zerolog.Nop())

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
