package topup

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fixora/wallet/internal/ledger"
	"github.com/fixora/wallet/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newTestReconciler(t *testing.T) (*Reconciler, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := repository.NewFromDB(sqlx.NewDb(mockDB, "sqlmock"))
	ledgerStore := ledger.New(db, nil)

	return New(db, ledgerStore, nil, nil, testSecret, 10000), mock
}

func orderRow(id, walletID, gatewayRef string, amount int64, status string, transactionID any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "wallet_id", "gateway_ref", "amount", "status", "transaction_id", "created_at"}).
		AddRow(id, walletID, gatewayRef, amount, status, transactionID, time.Now())
}

func activeWalletRow(id string, balance int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "role", "balance", "currency", "status", "created_at"}).
		AddRow(id, "user-1", repository.WalletRoleCustomer, balance, "INR", repository.WalletActiveStatus, time.Now())
}

func creditRow(id, walletID string, amount, seq, balanceAfter int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "wallet_id", "amount", "kind", "description", "seq", "balance_after", "created_at"}).
		AddRow(id, walletID, amount, repository.TransactionKindTopup, nil, seq, balanceAfter, time.Now())
}

func TestCreateOrder_BelowMinimum(t *testing.T) {
	reconciler, _ := newTestReconciler(t)

	_, err := reconciler.CreateOrder(context.Background(), "wallet-1", 9999)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestVerifyAndCredit_PendingOrder(t *testing.T) {
	reconciler, mock := newTestReconciler(t)

	signature := Sign(testSecret, "gw-ref-1", "pay-1")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM topup_orders WHERE id=$1 FOR UPDATE")).
		WithArgs("order-1").
		WillReturnRows(orderRow("order-1", "wallet-1", "gw-ref-1", 50000, repository.TopupStatusPending, nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM wallets WHERE id=$1 FOR UPDATE")).
		WithArgs("wallet-1").
		WillReturnRows(activeWalletRow("wallet-1", 0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY seq DESC LIMIT 1")).
		WithArgs("wallet-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs("wallet-1", int64(50000), repository.TransactionKindTopup, sqlmock.AnyArg(), int64(1), int64(50000)).
		WillReturnRows(creditRow("txn-1", "wallet-1", 50000, 1, 50000))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE wallets SET balance")).
		WithArgs(int64(50000), "wallet-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE topup_orders SET status")).
		WithArgs(repository.TopupStatusVerified, "txn-1", "order-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	transaction, err := reconciler.VerifyAndCredit(context.Background(), "order-1", "pay-1", signature)
	require.NoError(t, err)
	require.Equal(t, "txn-1", transaction.ID)
	require.Equal(t, int64(50000), transaction.Amount)

	require.NoError(t, mock.ExpectationsWereMet())
}

// A retried callback for a verified order must return the original credit
// and never touch the ledger again.
func TestVerifyAndCredit_AlreadyVerified(t *testing.T) {
	reconciler, mock := newTestReconciler(t)

	signature := Sign(testSecret, "gw-ref-1", "pay-1")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM topup_orders WHERE id=$1 FOR UPDATE")).
		WithArgs("order-1").
		WillReturnRows(orderRow("order-1", "wallet-1", "gw-ref-1", 50000, repository.TopupStatusVerified, "txn-1"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM transactions WHERE id=$1")).
		WithArgs("txn-1").
		WillReturnRows(creditRow("txn-1", "wallet-1", 50000, 1, 50000))
	mock.ExpectRollback()

	transaction, err := reconciler.VerifyAndCredit(context.Background(), "order-1", "pay-1", signature)
	require.NoError(t, err)
	require.Equal(t, "txn-1", transaction.ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

// A forged callback against an already-verified order must be rejected,
// not absorbed as an idempotent retry. Only retries of the valid callback
// get the original credit back.
func TestVerifyAndCredit_ForgedSignatureOnVerifiedOrder(t *testing.T) {
	reconciler, mock := newTestReconciler(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM topup_orders WHERE id=$1 FOR UPDATE")).
		WithArgs("order-1").
		WillReturnRows(orderRow("order-1", "wallet-1", "gw-ref-1", 50000, repository.TopupStatusVerified, "txn-1"))
	mock.ExpectRollback()

	_, err := reconciler.VerifyAndCredit(context.Background(), "order-1", "pay-1", "totally-forged")
	require.ErrorIs(t, err, ErrSignatureInvalid)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyAndCredit_FailedOrder(t *testing.T) {
	reconciler, mock := newTestReconciler(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM topup_orders WHERE id=$1 FOR UPDATE")).
		WithArgs("order-1").
		WillReturnRows(orderRow("order-1", "wallet-1", "gw-ref-1", 50000, repository.TopupStatusFailed, nil))
	mock.ExpectRollback()

	_, err := reconciler.VerifyAndCredit(context.Background(), "order-1", "pay-1", Sign(testSecret, "gw-ref-1", "pay-1"))
	require.ErrorIs(t, err, ErrOrderClosed)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyAndCredit_BadSignature(t *testing.T) {
	reconciler, mock := newTestReconciler(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM topup_orders WHERE id=$1 FOR UPDATE")).
		WithArgs("order-1").
		WillReturnRows(orderRow("order-1", "wallet-1", "gw-ref-1", 50000, repository.TopupStatusPending, nil))
	mock.ExpectRollback()

	_, err := reconciler.VerifyAndCredit(context.Background(), "order-1", "pay-1", "forged")
	require.ErrorIs(t, err, ErrSignatureInvalid)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyAndCredit_OrderNotFound(t *testing.T) {
	reconciler, mock := newTestReconciler(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM topup_orders WHERE id=$1 FOR UPDATE")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := reconciler.VerifyAndCredit(context.Background(), "missing", "pay-1", "sig")
	require.ErrorIs(t, err, ErrOrderNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancel(t *testing.T) {
	t.Run("pending order is marked failed", func(t *testing.T) {
		reconciler, mock := newTestReconciler(t)

		mock.ExpectQuery(regexp.QuoteMeta("FROM topup_orders WHERE id=$1")).
			WithArgs("order-1").
			WillReturnRows(orderRow("order-1", "wallet-1", "gw-ref-1", 50000, repository.TopupStatusPending, nil))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE topup_orders SET status")).
			WithArgs(repository.TopupStatusFailed, "order-1", repository.TopupStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, reconciler.Cancel("order-1"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("verified order cannot be cancelled", func(t *testing.T) {
		reconciler, mock := newTestReconciler(t)

		mock.ExpectQuery(regexp.QuoteMeta("FROM topup_orders WHERE id=$1")).
			WithArgs("order-1").
			WillReturnRows(orderRow("order-1", "wallet-1", "gw-ref-1", 50000, repository.TopupStatusVerified, "txn-1"))

		require.ErrorIs(t, reconciler.Cancel("order-1"), ErrOrderClosed)
	})

	t.Run("cancelling a failed order is a no-op", func(t *testing.T) {
		reconciler, mock := newTestReconciler(t)

		mock.ExpectQuery(regexp.QuoteMeta("FROM topup_orders WHERE id=$1")).
			WithArgs("order-1").
			WillReturnRows(orderRow("order-1", "wallet-1", "gw-ref-1", 50000, repository.TopupStatusFailed, nil))

		require.NoError(t, reconciler.Cancel("order-1"))
	})
}
