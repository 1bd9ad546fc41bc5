package domain

import "time"

// Event types
const (
	EventTypeTransferCompleted = "transfer.completed"
	EventTypeTransferFailed    = "transfer.failed"
)

// Aggregate types
const (
	AggregateTypeTransaction = "transaction"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// Result payload keys, shared with the wire format.
const (
	payloadReferenceID = "referenceId"
	payloadStatus      = "status"
	payloadMessage     = "message"
)

// NewResultEvent builds the outbox event that carries a terminal result.
func NewResultEvent(id string, result TransferResult, now time.Time) *OutboxEvent {
	eventType := EventTypeTransferCompleted
	if result.Status == TransactionStatusFailed {
		eventType = EventTypeTransferFailed
	}

	return &OutboxEvent{
		ID:            id,
		AggregateID:   result.ReferenceID,
		AggregateType: AggregateTypeTransaction,
		EventType:     eventType,
		Payload: map[string]any{
			payloadReferenceID: result.ReferenceID,
			payloadStatus:      string(result.Status),
			payloadMessage:     result.Message,
		},
		CreatedAt: now,
	}
}

// ResultFromEvent restores the result carried by a result event.
func ResultFromEvent(event *OutboxEvent) (TransferResult, bool) {
	if event.AggregateType != AggregateTypeTransaction {
		return TransferResult{}, false
	}

	ref, _ := event.Payload[payloadReferenceID].(string)
	status, _ := event.Payload[payloadStatus].(string)
	message, _ := event.Payload[payloadMessage].(string)

	if ref == "" || !TransactionStatus(status).IsTerminal() {
		return TransferResult{}, false
	}

	return TransferResult{
		ReferenceID: ref,
		Status:      TransactionStatus(status),
		Message:     message,
	}, true
}
