package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iho/ledgerflow/internal/domain"
)

// RequestPublisher enqueues transfer requests on the request queue through
// the default exchange.
type RequestPublisher struct {
	pub   Publisher
	queue string
}

// NewRequestPublisher creates a new RequestPublisher.
func NewRequestPublisher(pub Publisher, queue string) *RequestPublisher {
	return &RequestPublisher{pub: pub, queue: queue}
}

// PublishTransfer enqueues req. The reference id doubles as the message id.
func (p *RequestPublisher) PublishTransfer(ctx context.Context, req domain.TransferRequest) error {
	body, err := EncodeRequest(req)
	if err != nil {
		return err
	}

	err = p.pub.Publish(ctx, "", p.queue, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    req.ReferenceID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish transfer request %s: %w", req.ReferenceID, err)
	}

	return nil
}
