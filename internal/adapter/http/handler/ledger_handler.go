package handler

import (
	"context"
	"net/http"

	"github.com/iho/ledgerflow/internal/adapter/http/dto"
	"github.com/iho/ledgerflow/internal/usecase"
)

// ReconciliationService defines the behavior needed by LedgerHandler.
type ReconciliationService interface {
	GenerateReconciliationReport(ctx context.Context) (*usecase.ReconciliationReport, error)
}

// LedgerHandler handles ledger-wide operations.
type LedgerHandler struct {
	reconUC ReconciliationService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(reconUC ReconciliationService) *LedgerHandler {
	return &LedgerHandler{reconUC: reconUC}
}

// CheckConsistency reports whether balances agree with the journal.
// An inconsistent ledger answers 409 with the full report.
func (h *LedgerHandler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconUC.GenerateReconciliationReport(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check consistency", err.Error())
		return
	}

	resp := dto.ConsistencyFromReport(report)
	status := http.StatusOK
	if !resp.Consistent {
		status = http.StatusConflict
	}

	writeJSON(w, status, resp)
}
