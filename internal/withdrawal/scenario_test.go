package withdrawal

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fixora/wallet/internal/ledger"
	"github.com/fixora/wallet/internal/refund"
	"github.com/fixora/wallet/internal/repository"
	"github.com/fixora/wallet/internal/topup"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// One wallet through a full lifecycle: 50000 on hand, top up 100000,
// withdraw 100000 at 15% commission, then an automatic 30000 refund for a
// failed booking. The balance must land on 80000 and every intermediate
// entry must reconcile.
func TestWalletLifecycle(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := repository.NewFromDB(sqlx.NewDb(mockDB, "sqlmock"))
	ledgerStore := ledger.New(db, nil)
	producer := &recordingProducer{}
	engine := New(db, ledgerStore, producer, defaultConfig())
	reconciler := topup.New(db, ledgerStore, nil, nil, "test-secret", 10000)
	resolver := refund.New(db, ledgerStore)

	// Top-up verification credits 100000 onto the opening 50000.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM topup_orders WHERE id=$1 FOR UPDATE")).
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "wallet_id", "gateway_ref", "amount", "status", "transaction_id", "created_at"}).
			AddRow("order-1", "wallet-1", "gw-ref-1", 100000, repository.TopupStatusPending, nil, time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("FROM wallets WHERE id=$1 FOR UPDATE")).
		WithArgs("wallet-1").
		WillReturnRows(walletRow("wallet-1", "user-1", 50000))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY seq DESC LIMIT 1")).
		WithArgs("wallet-1").
		WillReturnRows(ledgerEntryRow("txn-0", "wallet-1", 50000, 1, 50000))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs("wallet-1", int64(100000), repository.TransactionKindTopup, sqlmock.AnyArg(), int64(2), int64(150000)).
		WillReturnRows(ledgerEntryRow("txn-1", "wallet-1", 100000, 2, 150000))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE wallets SET balance")).
		WithArgs(int64(150000), "wallet-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE topup_orders SET status")).
		WithArgs(repository.TopupStatusVerified, "txn-1", "order-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	credit, err := reconciler.VerifyAndCredit(context.Background(), "order-1", "pay-1",
		topup.Sign("test-secret", "gw-ref-1", "pay-1"))
	require.NoError(t, err)
	require.Equal(t, int64(150000), credit.BalanceAfter)

	// Withdrawing 100000 debits the full amount; the 15000 commission only
	// shrinks the payout.
	mock.ExpectQuery(regexp.QuoteMeta("FROM wallets WHERE id=$1")).
		WithArgs("wallet-1").
		WillReturnRows(walletRow("wallet-1", "user-1", 150000))
	mock.ExpectQuery(regexp.QuoteMeta("FROM bank_accounts WHERE user_id=$1 AND status=$2")).
		WithArgs("user-1", repository.BankAccountVerifiedStatus).
		WillReturnRows(bankAccountRow("bank-1", "user-1"))
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM wallets WHERE id=$1 FOR UPDATE")).
		WithArgs("wallet-1").
		WillReturnRows(walletRow("wallet-1", "user-1", 150000))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY seq DESC LIMIT 1")).
		WithArgs("wallet-1").
		WillReturnRows(ledgerEntryRow("txn-1", "wallet-1", 100000, 2, 150000))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs("wallet-1", int64(-100000), repository.TransactionKindWithdrawal, sqlmock.AnyArg(), int64(3), int64(50000)).
		WillReturnRows(ledgerEntryRow("txn-2", "wallet-1", -100000, 3, 50000))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE wallets SET balance")).
		WithArgs(int64(50000), "wallet-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO withdrawal_requests")).
		WithArgs("wallet-1", "bank-1", int64(100000), 15.0, int64(85000), repository.WithdrawalStatusAutoApproved, sqlmock.AnyArg()).
		WillReturnRows(requestRow("req-1", "wallet-1", 100000, 85000, repository.WithdrawalStatusAutoApproved))
	mock.ExpectCommit()

	request, err := engine.Request(context.Background(), "wallet-1", 100000)
	require.NoError(t, err)
	require.Equal(t, int64(85000), request.NetAmount)

	require.Eventually(t, func() bool { return producer.count() == 1 }, time.Second, 10*time.Millisecond)
	var payout PayoutMessage
	require.NoError(t, json.Unmarshal([]byte(producer.messages[0]), &payout))
	require.Equal(t, int64(85000), payout.NetAmount)

	// The failed booking refunds 30000 back onto the wallet.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings")).
		WithArgs("wallet-1", repository.BookingStatusFailed, repository.BookingStatusRejected, repository.BookingStatusCancelled).
		WillReturnRows(sqlmock.NewRows([]string{"id", "wallet_id", "service_name", "amount", "status", "refunded_at", "created_at"}).
			AddRow("booking-1", "wallet-1", "Deep cleaning", 30000, repository.BookingStatusFailed, nil, time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("FROM wallets WHERE id=$1 FOR UPDATE")).
		WithArgs("wallet-1").
		WillReturnRows(walletRow("wallet-1", "user-1", 50000))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY seq DESC LIMIT 1")).
		WithArgs("wallet-1").
		WillReturnRows(ledgerEntryRow("txn-2", "wallet-1", -100000, 3, 50000))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs("wallet-1", int64(30000), repository.TransactionKindRefund, sqlmock.AnyArg(), int64(4), int64(80000)).
		WillReturnRows(ledgerEntryRow("txn-3", "wallet-1", 30000, 4, 80000))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE wallets SET balance")).
		WithArgs(int64(80000), "wallet-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET refunded_at")).
		WithArgs("booking-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	refundCredit, err := resolver.IssueAutoRefund(context.Background(), "wallet-1")
	require.NoError(t, err)
	require.Equal(t, int64(30000), refundCredit.Amount)

	mock.ExpectQuery(regexp.QuoteMeta("FROM wallets WHERE id=$1")).
		WithArgs("wallet-1").
		WillReturnRows(walletRow("wallet-1", "user-1", 80000))

	balance, err := ledgerStore.Balance("wallet-1")
	require.NoError(t, err)
	require.Equal(t, int64(80000), balance)

	require.NoError(t, mock.ExpectationsWereMet())
}
