package domain

// TransferResult is the outcome of processing one transfer request.
type TransferResult struct {
	// Cause is the error behind a FAILED outcome produced by this call, or
	// ErrDuplicateRequest for replays. It never leaves the process.
	Cause       error
	ReferenceID string
	Status      TransactionStatus
	Message     string
	Replayed    bool
}

// MessageInFlight is reported while an earlier attempt still holds the transaction.
const MessageInFlight = "Transfer is still being processed"

// AsReplay marks r as the replay of an already recorded outcome.
func (r TransferResult) AsReplay() TransferResult {
	r.Replayed = true
	r.Cause = ErrDuplicateRequest
	return r
}

// IsTerminal reports whether r carries a final status.
func (r TransferResult) IsTerminal() bool {
	return r.Status.IsTerminal()
}

// InFlightResult is returned for a duplicate whose first attempt has not finished.
func InFlightResult(referenceID string) TransferResult {
	return TransferResult{
		ReferenceID: referenceID,
		Status:      TransactionStatusPending,
		Message:     MessageInFlight,
		Replayed:    true,
		Cause:       ErrRequestInFlight,
	}
}
