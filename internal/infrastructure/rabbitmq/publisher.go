package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	ErrPublisherClosed = errors.New("publisher is closed")
	ErrPublishNacked   = errors.New("broker rejected the message")
	ErrConfirmTimeout  = errors.New("confirmation timed out")
	ErrChannelLost     = errors.New("publisher channel lost")
)

// DefaultConfirmTimeout bounds the wait for a broker confirmation.
const DefaultConfirmTimeout = 5 * time.Second

// ConfirmChannel is the subset of *amqp.Channel used for confirmed publishing.
type ConfirmChannel interface {
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// ChannelProvider opens a fresh channel, typically wrapping
// (*amqp.Connection).Channel.
type ChannelProvider func() (ConfirmChannel, error)

// HealthState is the channel state of a ConfirmPublisher.
type HealthState int

const (
	HealthStateConnected HealthState = iota
	// HealthStateReconnecting means the channel was dropped and is reopened
	// on the next publish or Recover call.
	HealthStateReconnecting
	HealthStateClosed
)

func (h HealthState) String() string {
	switch h {
	case HealthStateConnected:
		return "connected"
	case HealthStateReconnecting:
		return "reconnecting"
	default:
		return "closed"
	}
}

// PublisherOption configures a ConfirmPublisher.
type PublisherOption func(*ConfirmPublisher)

// WithChannelProvider lets the publisher replace a channel it had to drop
// after a confirm timeout, a cancelled wait or a broker-side close.
func WithChannelProvider(provider ChannelProvider) PublisherOption {
	return func(p *ConfirmPublisher) {
		p.provider = provider
	}
}

// ConfirmPublisher publishes with publisher confirms enabled and waits for
// the broker to acknowledge each message. Publishes are serialized, so
// confirmations arrive in publish order.
//
// A confirmation that never arrived would be matched with the next publish,
// so the channel is dropped when a wait is abandoned. Without a
// ChannelProvider the publisher stays unusable after that.
type ConfirmPublisher struct {
	mu       sync.Mutex
	ch       ConfirmChannel
	confirms chan amqp.Confirmation
	timeout  time.Duration
	provider ChannelProvider
	state    HealthState
}

// NewConfirmPublisher puts ch into confirm mode.
func NewConfirmPublisher(ch ConfirmChannel, timeout time.Duration, opts ...PublisherOption) (*ConfirmPublisher, error) {
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}

	p := &ConfirmPublisher{timeout: timeout}
	for _, opt := range opts {
		opt(p)
	}

	if err := p.attach(ch); err != nil {
		return nil, err
	}

	return p, nil
}

// Publish sends msg and blocks until the broker confirms it, ctx is done or
// the confirm timeout passes.
func (p *ConfirmPublisher) Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannel(); err != nil {
		return err
	}

	if err := p.ch.PublishWithContext(ctx, exchange, key, false, false, msg); err != nil {
		if errors.Is(err, amqp.ErrClosed) {
			p.drop()
		}
		return fmt.Errorf("publish: %w", err)
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case confirmed, ok := <-p.confirms:
		if !ok {
			p.drop()
			return ErrChannelLost
		}
		if !confirmed.Ack {
			return fmt.Errorf("%w: delivery_tag=%d", ErrPublishNacked, confirmed.DeliveryTag)
		}
		return nil
	case <-timer.C:
		p.drop()
		return ErrConfirmTimeout
	case <-ctx.Done():
		p.drop()
		return fmt.Errorf("wait for confirmation: %w", ctx.Err())
	}
}

// Recover reopens a dropped channel. It is a no-op on a healthy publisher.
func (p *ConfirmPublisher) Recover() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ensureChannel()
}

// State reports the channel state.
func (p *ConfirmPublisher) State() HealthState {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

// Close closes the underlying channel. Later publishes fail with ErrPublisherClosed.
func (p *ConfirmPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == HealthStateClosed {
		return nil
	}
	p.state = HealthStateClosed

	if p.ch == nil {
		return nil
	}
	ch := p.ch
	p.ch = nil
	return ch.Close()
}

func (p *ConfirmPublisher) attach(ch ConfirmChannel) error {
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("enable publisher confirms: %w", err)
	}

	p.ch = ch
	p.confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.state = HealthStateConnected
	return nil
}

// ensureChannel must be called with mu held.
func (p *ConfirmPublisher) ensureChannel() error {
	switch p.state {
	case HealthStateConnected:
		return nil
	case HealthStateClosed:
		return ErrPublisherClosed
	}

	if p.provider == nil {
		return ErrPublisherClosed
	}

	ch, err := p.provider()
	if err != nil {
		return fmt.Errorf("%w: reopen channel: %w", ErrChannelLost, err)
	}

	return p.attach(ch)
}

// drop must be called with mu held.
func (p *ConfirmPublisher) drop() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	p.ch = nil
	p.confirms = nil
	p.state = HealthStateReconnecting
}
