package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/ledgerflow/internal/domain"
	"github.com/iho/ledgerflow/internal/usecase"
)

func TestTransactionUseCase_GetTransaction(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	_, err := f.processor.Process(ctx, transfer("TX-1", "ACC_ALICE", "ACC_BOB", "42.00"))
	require.NoError(t, err)

	uc := usecase.NewTransactionUseCase(f.txns, f.entries)

	details, err := uc.GetTransaction(ctx, "TX-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, details.Transaction.Status)
	assert.True(t, details.Transaction.Amount.Equal(dec("42.00")))
	assert.Len(t, details.Entries, 2)

	_, err = uc.GetTransaction(ctx, "TX-404")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}
