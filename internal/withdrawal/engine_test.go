package withdrawal

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fixora/wallet/internal/ledger"
	"github.com/fixora/wallet/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func TestCommission(t *testing.T) {
	tests := []struct {
		name       string
		amount     int64
		rate       float64
		commission int64
		net        int64
	}{
		{"flat case", 100000, 15, 15000, 85000},
		{"truncates toward zero", 1001, 15, 150, 851},
		{"zero rate", 100000, 0, 0, 100000},
		{"single paisa", 1, 15, 0, 1},
		{"full rate", 100000, 100, 100000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commission, net := Commission(tt.amount, tt.rate)
			require.Equal(t, tt.commission, commission)
			require.Equal(t, tt.net, net)
			require.Equal(t, tt.amount, commission+net)
		})
	}
}

type recordingProducer struct {
	mu       sync.Mutex
	topics   []string
	messages []string
}

func (p *recordingProducer) ProduceMessage(topic, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.messages = append(p.messages, message)
	return nil
}

func (p *recordingProducer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.topics)
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, sqlmock.Sqlmock, *recordingProducer) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := repository.NewFromDB(sqlx.NewDb(mockDB, "sqlmock"))
	producer := &recordingProducer{}

	return New(db, ledger.New(db, nil), producer, cfg), mock, producer
}

func defaultConfig() Config {
	return Config{
		MinAmount:          50000,
		MaxAmount:          100000000,
		CommissionRate:     15,
		AutoApproveCeiling: 5000000,
	}
}

func walletRow(id, userID string, balance int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "role", "balance", "currency", "status", "created_at"}).
		AddRow(id, userID, repository.WalletRoleProvider, balance, "INR", repository.WalletActiveStatus, time.Now())
}

func bankAccountRow(id, userID string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "account_name", "account_number", "bank_name", "ifsc_code", "document_url", "status", "created_at"}).
		AddRow(id, userID, "A Provider", "0011223344", "HDFC Bank", "HDFC0000123", nil, repository.BankAccountVerifiedStatus, time.Now())
}

func ledgerEntryRow(id, walletID string, amount, seq, balanceAfter int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "wallet_id", "amount", "kind", "description", "seq", "balance_after", "created_at"}).
		AddRow(id, walletID, amount, repository.TransactionKindWithdrawal, nil, seq, balanceAfter, time.Now())
}

func requestRow(id, walletID string, amount int64, net int64, status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "wallet_id", "bank_account_id", "amount", "commission_rate", "net_amount", "status", "debit_transaction_id", "transfer_id", "created_at"}).
		AddRow(id, walletID, "bank-1", amount, 15.0, net, status, "txn-1", nil, time.Now())
}

func TestRequest_Thresholds(t *testing.T) {
	engine, _, _ := newTestEngine(t, defaultConfig())

	_, err := engine.Request(context.Background(), "wallet-1", 49999)
	require.ErrorIs(t, err, ErrBelowMinimum)

	_, err = engine.Request(context.Background(), "wallet-1", 100000001)
	require.ErrorIs(t, err, ErrAboveMaximum)
}

// The wallet is debited the full requested amount; the commission only
// reduces what the payout transfers.
func TestRequest_AutoApproved(t *testing.T) {
	engine, mock, producer := newTestEngine(t, defaultConfig())

	mock.ExpectQuery(regexp.QuoteMeta("FROM wallets WHERE id=$1")).
		WithArgs("wallet-1").
		WillReturnRows(walletRow("wallet-1", "user-1", 500000))
	mock.ExpectQuery(regexp.QuoteMeta("FROM bank_accounts WHERE user_id=$1 AND status=$2")).
		WithArgs("user-1", repository.BankAccountVerifiedStatus).
		WillReturnRows(bankAccountRow("bank-1", "user-1"))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM wallets WHERE id=$1 FOR UPDATE")).
		WithArgs("wallet-1").
		WillReturnRows(walletRow("wallet-1", "user-1", 500000))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY seq DESC LIMIT 1")).
		WithArgs("wallet-1").
		WillReturnRows(ledgerEntryRow("txn-0", "wallet-1", 500000, 1, 500000))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs("wallet-1", int64(-100000), repository.TransactionKindWithdrawal, sqlmock.AnyArg(), int64(2), int64(400000)).
		WillReturnRows(ledgerEntryRow("txn-1", "wallet-1", -100000, 2, 400000))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE wallets SET balance")).
		WithArgs(int64(400000), "wallet-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO withdrawal_requests")).
		WithArgs("wallet-1", "bank-1", int64(100000), 15.0, int64(85000), repository.WithdrawalStatusAutoApproved, sqlmock.AnyArg()).
		WillReturnRows(requestRow("req-1", "wallet-1", 100000, 85000, repository.WithdrawalStatusAutoApproved))
	mock.ExpectCommit()

	request, err := engine.Request(context.Background(), "wallet-1", 100000)
	require.NoError(t, err)
	require.Equal(t, repository.WithdrawalStatusAutoApproved, request.Status)
	require.Equal(t, int64(85000), request.NetAmount)

	require.Eventually(t, func() bool { return producer.count() == 1 }, time.Second, 10*time.Millisecond)
	require.Equal(t, PayoutTopic, producer.topics[0])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequest_AboveCeilingQueuesForReview(t *testing.T) {
	cfg := defaultConfig()
	engine, mock, producer := newTestEngine(t, cfg)

	amount := cfg.AutoApproveCeiling + 100000

	mock.ExpectQuery(regexp.QuoteMeta("FROM wallets WHERE id=$1")).
		WithArgs("wallet-1").
		WillReturnRows(walletRow("wallet-1", "user-1", 2*amount))
	mock.ExpectQuery(regexp.QuoteMeta("FROM bank_accounts WHERE user_id=$1 AND status=$2")).
		WithArgs("user-1", repository.BankAccountVerifiedStatus).
		WillReturnRows(bankAccountRow("bank-1", "user-1"))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM wallets WHERE id=$1 FOR UPDATE")).
		WithArgs("wallet-1").
		WillReturnRows(walletRow("wallet-1", "user-1", 2*amount))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY seq DESC LIMIT 1")).
		WithArgs("wallet-1").
		WillReturnRows(ledgerEntryRow("txn-0", "wallet-1", 2*amount, 1, 2*amount))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs("wallet-1", -amount, repository.TransactionKindWithdrawal, sqlmock.AnyArg(), int64(2), amount).
		WillReturnRows(ledgerEntryRow("txn-1", "wallet-1", -amount, 2, amount))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE wallets SET balance")).
		WithArgs(amount, "wallet-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO withdrawal_requests")).
		WithArgs("wallet-1", "bank-1", amount, 15.0, sqlmock.AnyArg(), repository.WithdrawalStatusPendingReview, sqlmock.AnyArg()).
		WillReturnRows(requestRow("req-1", "wallet-1", amount, amount, repository.WithdrawalStatusPendingReview))
	mock.ExpectCommit()

	request, err := engine.Request(context.Background(), "wallet-1", amount)
	require.NoError(t, err)
	require.Equal(t, repository.WithdrawalStatusPendingReview, request.Status)

	// No payout until an admin approves.
	time.Sleep(50 * time.Millisecond)
	require.Zero(t, producer.count())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequest_NoVerifiedBankAccount(t *testing.T) {
	engine, mock, _ := newTestEngine(t, defaultConfig())

	mock.ExpectQuery(regexp.QuoteMeta("FROM wallets WHERE id=$1")).
		WithArgs("wallet-1").
		WillReturnRows(walletRow("wallet-1", "user-1", 500000))
	mock.ExpectQuery(regexp.QuoteMeta("FROM bank_accounts WHERE user_id=$1 AND status=$2")).
		WithArgs("user-1", repository.BankAccountVerifiedStatus).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "account_name", "account_number", "bank_name", "ifsc_code", "document_url", "status", "created_at"}))

	_, err := engine.Request(context.Background(), "wallet-1", 100000)
	require.ErrorIs(t, err, ErrBankDetailsMissing)
}

func TestRequest_InsufficientBalance(t *testing.T) {
	engine, mock, _ := newTestEngine(t, defaultConfig())

	mock.ExpectQuery(regexp.QuoteMeta("FROM wallets WHERE id=$1")).
		WithArgs("wallet-1").
		WillReturnRows(walletRow("wallet-1", "user-1", 50000))
	mock.ExpectQuery(regexp.QuoteMeta("FROM bank_accounts WHERE user_id=$1 AND status=$2")).
		WithArgs("user-1", repository.BankAccountVerifiedStatus).
		WillReturnRows(bankAccountRow("bank-1", "user-1"))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM wallets WHERE id=$1 FOR UPDATE")).
		WithArgs("wallet-1").
		WillReturnRows(walletRow("wallet-1", "user-1", 50000))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY seq DESC LIMIT 1")).
		WithArgs("wallet-1").
		WillReturnRows(ledgerEntryRow("txn-0", "wallet-1", 50000, 1, 50000))
	mock.ExpectRollback()

	_, err := engine.Request(context.Background(), "wallet-1", 100000)
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
}

func TestApprove(t *testing.T) {
	engine, mock, producer := newTestEngine(t, defaultConfig())

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM withdrawal_requests WHERE id=$1 FOR UPDATE")).
		WithArgs("req-1").
		WillReturnRows(requestRow("req-1", "wallet-1", 100000, 85000, repository.WithdrawalStatusPendingReview))
	mock.ExpectQuery(regexp.QuoteMeta("FROM bank_accounts WHERE id=$1")).
		WithArgs("bank-1").
		WillReturnRows(bankAccountRow("bank-1", "user-1"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE withdrawal_requests SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3")).
		WithArgs(repository.WithdrawalStatusApproved, "req-1", repository.WithdrawalStatusPendingReview).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	request, err := engine.Approve(context.Background(), "req-1")
	require.NoError(t, err)
	require.Equal(t, repository.WithdrawalStatusApproved, request.Status)

	require.Eventually(t, func() bool { return producer.count() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprove_NotPendingReview(t *testing.T) {
	engine, mock, _ := newTestEngine(t, defaultConfig())

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM withdrawal_requests WHERE id=$1 FOR UPDATE")).
		WithArgs("req-1").
		WillReturnRows(requestRow("req-1", "wallet-1", 100000, 85000, repository.WithdrawalStatusSettled))
	mock.ExpectRollback()

	_, err := engine.Approve(context.Background(), "req-1")
	require.ErrorIs(t, err, ErrNotPendingReview)
}

// A reviewer who loses the status race gets ErrNotPendingReview and never
// produces a second payout message, even if their read saw pending_review.
func TestApprove_LostStatusRace(t *testing.T) {
	engine, mock, producer := newTestEngine(t, defaultConfig())

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM withdrawal_requests WHERE id=$1 FOR UPDATE")).
		WithArgs("req-1").
		WillReturnRows(requestRow("req-1", "wallet-1", 100000, 85000, repository.WithdrawalStatusPendingReview))
	mock.ExpectQuery(regexp.QuoteMeta("FROM bank_accounts WHERE id=$1")).
		WithArgs("bank-1").
		WillReturnRows(bankAccountRow("bank-1", "user-1"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE withdrawal_requests SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3")).
		WithArgs(repository.WithdrawalStatusApproved, "req-1", repository.WithdrawalStatusPendingReview).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := engine.Approve(context.Background(), "req-1")
	require.ErrorIs(t, err, ErrNotPendingReview)

	time.Sleep(50 * time.Millisecond)
	require.Zero(t, producer.count())

	require.NoError(t, mock.ExpectationsWereMet())
}

// Rejection credits back the FULL original amount, not the net.
func TestReject_ReturnsFunds(t *testing.T) {
	engine, mock, producer := newTestEngine(t, defaultConfig())

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM withdrawal_requests WHERE id=$1 FOR UPDATE")).
		WithArgs("req-1").
		WillReturnRows(requestRow("req-1", "wallet-1", 100000, 85000, repository.WithdrawalStatusPendingReview))
	mock.ExpectQuery(regexp.QuoteMeta("FROM wallets WHERE id=$1 FOR UPDATE")).
		WithArgs("wallet-1").
		WillReturnRows(walletRow("wallet-1", "user-1", 400000))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY seq DESC LIMIT 1")).
		WithArgs("wallet-1").
		WillReturnRows(ledgerEntryRow("txn-1", "wallet-1", -100000, 2, 400000))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs("wallet-1", int64(100000), repository.TransactionKindCredit, sqlmock.AnyArg(), int64(3), int64(500000)).
		WillReturnRows(ledgerEntryRow("txn-2", "wallet-1", 100000, 3, 500000))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE wallets SET balance")).
		WithArgs(int64(500000), "wallet-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE withdrawal_requests SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3")).
		WithArgs(repository.WithdrawalStatusRejected, "req-1", repository.WithdrawalStatusPendingReview).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	request, err := engine.Reject(context.Background(), "req-1")
	require.NoError(t, err)
	require.Equal(t, repository.WithdrawalStatusRejected, request.Status)

	// A rejected request never reaches the payout queue.
	time.Sleep(50 * time.Millisecond)
	require.Zero(t, producer.count())

	require.NoError(t, mock.ExpectationsWereMet())
}
