package worker

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fixora/wallet/internal/repository"
	"github.com/fixora/wallet/internal/withdrawal"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

type recordingTransfer struct {
	mu   sync.Mutex
	keys []string
}

func (tr *recordingTransfer) InitiateTransfer(_ context.Context, idempotencyKey, _ string, _ int64) (string, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.keys = append(tr.keys, idempotencyKey)
	return "transfer-1", nil
}

func (tr *recordingTransfer) count() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.keys)
}

func newTestWorker(t *testing.T) (*Worker, sqlmock.Sqlmock, *recordingTransfer) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	transfer := &recordingTransfer{}
	wk := New(&Worker{
		DB:       repository.NewFromDB(sqlx.NewDb(mockDB, "sqlmock")),
		Ctx:      context.Background(),
		Transfer: transfer,
	})

	return wk, mock, transfer
}

func withdrawalRow(id string, transferID any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "wallet_id", "bank_account_id", "amount", "commission_rate", "net_amount", "status", "debit_transaction_id", "transfer_id", "created_at"}).
		AddRow(id, "wallet-1", "bank-1", 100000, 15.0, 85000, repository.WithdrawalStatusApproved, "txn-1", transferID, time.Now())
}

func TestSettlePayout(t *testing.T) {
	wk, mock, transfer := newTestWorker(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM withdrawal_requests WHERE id=$1")).
		WithArgs("req-1").
		WillReturnRows(withdrawalRow("req-1", nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE withdrawal_requests SET transfer_id")).
		WithArgs("transfer-1", repository.WithdrawalStatusSettled, "req-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	wk.settlePayout(&withdrawal.PayoutMessage{
		RequestID: "req-1",
		WalletID:  "wallet-1",
		BankRef:   "0011223344",
		NetAmount: 85000,
	})

	// The request id is the transfer idempotency key, so the rails can
	// collapse duplicates we fail to catch ourselves.
	require.Equal(t, []string{"req-1"}, transfer.keys)
	require.NoError(t, mock.ExpectationsWereMet())
}

// A redelivered payout message for a settled request must not reach the
// bank a second time.
func TestSettlePayout_AlreadySettled(t *testing.T) {
	wk, mock, transfer := newTestWorker(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM withdrawal_requests WHERE id=$1")).
		WithArgs("req-1").
		WillReturnRows(withdrawalRow("req-1", "transfer-0"))

	wk.settlePayout(&withdrawal.PayoutMessage{
		RequestID: "req-1",
		WalletID:  "wallet-1",
		BankRef:   "0011223344",
		NetAmount: 85000,
	})

	require.Zero(t, transfer.count())
	require.NoError(t, mock.ExpectationsWereMet())
}
