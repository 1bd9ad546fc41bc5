package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerflow/internal/domain"
)

// Publisher sends one message and reports whether the broker accepted it.
type Publisher interface {
	Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error
}

// requestMessage is the wire form of a transfer request. The amount may be
// a JSON number or a decimal string.
type requestMessage struct {
	IdempotencyKey string              `json:"idempotency_key"`
	SourceAccount  string              `json:"source_account"`
	TargetAccount  string              `json:"target_account"`
	Amount         decimal.NullDecimal `json:"amount"`
}

type resultMessage struct {
	ReferenceID string `json:"referenceId"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

// DecodeRequest parses a request message. Undecodable bodies and missing
// amounts wrap domain.ErrMalformedRequest.
func DecodeRequest(body []byte) (domain.TransferRequest, error) {
	var msg requestMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return domain.TransferRequest{}, fmt.Errorf("%w: %v", domain.ErrMalformedRequest, err)
	}

	if !msg.Amount.Valid {
		return domain.TransferRequest{}, fmt.Errorf("%w: amount is required", domain.ErrMalformedRequest)
	}

	req := domain.TransferRequest{
		ReferenceID:   msg.IdempotencyKey,
		SourceAccount: msg.SourceAccount,
		TargetAccount: msg.TargetAccount,
		Amount:        msg.Amount.Decimal,
	}

	return req, req.ValidateShape()
}

// EncodeRequest renders req in the wire form DecodeRequest accepts.
func EncodeRequest(req domain.TransferRequest) ([]byte, error) {
	return json.Marshal(requestMessage{
		IdempotencyKey: req.ReferenceID,
		SourceAccount:  req.SourceAccount,
		TargetAccount:  req.TargetAccount,
		Amount:         decimal.NewNullDecimal(req.Amount),
	})
}

// EncodeResult renders a result notification.
func EncodeResult(result domain.TransferResult) ([]byte, error) {
	return json.Marshal(resultMessage{
		ReferenceID: result.ReferenceID,
		Status:      string(result.Status),
		Message:     result.Message,
	})
}
