package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/iho/ledgerflow/internal/adapter/http/dto"
	"github.com/iho/ledgerflow/internal/domain"
)

// MessageTransferInitiated is returned once a request is queued.
const MessageTransferInitiated = "Transfer initiated successfully"

// TransferGateway queues transfer requests for the ledger.
type TransferGateway interface {
	PublishTransfer(ctx context.Context, req domain.TransferRequest) error
}

// TransferHandler accepts transfer requests over HTTP and queues them.
// The outcome is delivered asynchronously as a result notification.
type TransferHandler struct {
	gateway TransferGateway
	logger  zerolog.Logger
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(gateway TransferGateway, logger zerolog.Logger) *TransferHandler {
	return &TransferHandler{gateway: gateway, logger: logger}
}

// Create validates and queues a transfer request.
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body dto.CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	req := body.ToDomain()
	if err := validateTransfer(body, req); err != nil {
		writeError(w, mapDomainError(err), "invalid transfer request", err.Error())
		return
	}

	// The publisher bounds the confirm wait itself. A client hanging up must
	// not abandon a confirm halfway.
	if err := h.gateway.PublishTransfer(context.WithoutCancel(r.Context()), req); err != nil {
		h.logger.Error().Err(err).Str("reference_id", req.ReferenceID).Msg("failed to queue transfer request")
		writeError(w, http.StatusServiceUnavailable, "failed to queue transfer", "")
		return
	}

	writeJSON(w, http.StatusAccepted, dto.TransferAcceptedResponse{
		Message:     MessageTransferInitiated,
		ReferenceID: req.ReferenceID,
	})
}

// validateTransfer rejects requests the ledger would never accept.
// Balance and account checks stay with the ledger.
func validateTransfer(body dto.CreateTransferRequest, req domain.TransferRequest) error {
	if err := req.ValidateShape(); err != nil {
		return err
	}
	if !body.Amount.Valid {
		return fmt.Errorf("%w: amount is required", domain.ErrMalformedRequest)
	}
	return domain.ValidateAmount(req.Amount)
}
