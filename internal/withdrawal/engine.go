// Package withdrawal computes commission-adjusted payouts for provider
// withdrawals. The full requested amount is debited from the ledger at
// request time (funds are earmarked immediately); only the net amount ever
// leaves the system through the bank-transfer collaborator, and the
// difference is the platform commission.
package withdrawal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/fixora/wallet/internal/funcs"
	"github.com/fixora/wallet/internal/ledger"
	"github.com/fixora/wallet/internal/repository"
	"github.com/fixora/wallet/internal/stream"
)

var (
	ErrBelowMinimum       = errors.New("amount is below the minimum withdrawal")
	ErrAboveMaximum       = errors.New("amount is above the maximum withdrawal")
	ErrBankDetailsMissing = errors.New("no verified bank account on file")
	ErrRequestNotFound    = errors.New("withdrawal request not found")
	ErrNotPendingReview   = errors.New("withdrawal request is not pending review")
)

// PayoutTopic carries approved withdrawals to the payout worker.
const PayoutTopic = "withdrawal.payout"

// Config is snapshotted into each request at acceptance time. A later
// change to the rate never alters an already-accepted settlement.
type Config struct {
	MinAmount          int64
	MaxAmount          int64
	CommissionRate     float64 // percent
	AutoApproveCeiling int64
}

// PayoutMessage is the event consumed by the payout worker.
type PayoutMessage struct {
	RequestID string `json:"request_id"`
	WalletID  string `json:"wallet_id"`
	BankRef   string `json:"bank_ref"`
	NetAmount int64  `json:"net_amount"`
}

// Commission returns the commission and net amount for a requested amount
// in minor units. The commission truncates toward zero, so the provider is
// never short-changed by rounding.
func Commission(amount int64, rate float64) (commission, net int64) {
	commission = int64(math.Floor(float64(amount) * rate / 100))
	return commission, amount - commission
}

type Engine struct {
	db       repository.Database
	ledger   *ledger.Ledger
	producer stream.Producer
	cfg      Config
}

func New(db repository.Database, ledgerStore *ledger.Ledger, producer stream.Producer, cfg Config) *Engine {
	return &Engine{
		db:       db,
		ledger:   ledgerStore,
		producer: producer,
		cfg:      cfg,
	}
}

// MinAmount and MaxAmount expose the configured limits for user-facing
// messages.
func (e *Engine) MinAmount() int64 { return e.cfg.MinAmount }

func (e *Engine) MaxAmount() int64 { return e.cfg.MaxAmount }

// Request accepts a provider withdrawal: validates thresholds and payout
// destination (before any ledger mutation), debits the FULL amount, and
// either auto-approves or queues the request for manual review. The debit
// and the request row commit in one database transaction.
func (e *Engine) Request(ctx context.Context, walletID string, amount int64) (*repository.WithdrawalRequest, error) {
	if amount < e.cfg.MinAmount {
		return nil, ErrBelowMinimum
	}
	if amount > e.cfg.MaxAmount {
		return nil, ErrAboveMaximum
	}

	wallet, err := e.ledger.Wallet(walletID)
	if err != nil {
		return nil, err
	}

	bank, found, err := e.db.BankAccount().GetVerifiedByUserId(wallet.UserID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrBankDetailsMissing
	}

	commission, net := Commission(amount, e.cfg.CommissionRate)

	status := repository.WithdrawalStatusPendingReview
	if amount <= e.cfg.AutoApproveCeiling {
		status = repository.WithdrawalStatusAutoApproved
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	description := fmt.Sprintf("Withdrawal to %s (commission %s)", bank.BankName, funcs.FormatMoney(commission))
	debit, err := e.ledger.AppendTx(ctx, tx, walletID, -amount, repository.TransactionKindWithdrawal, description)
	if err != nil {
		return nil, err
	}

	request, err := e.db.Withdrawal().Insert(ctx, tx, &repository.WithdrawalRequest{
		WalletID:           walletID,
		BankAccountID:      bank.ID,
		Amount:             amount,
		CommissionRate:     e.cfg.CommissionRate,
		NetAmount:          net,
		Status:             status,
		DebitTransactionID: sql.NullString{String: debit.ID, Valid: true},
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if status == repository.WithdrawalStatusAutoApproved {
		e.producePayout(request, bank.AccountNumber)
	}

	return request, nil
}

// Approve releases a request that was queued for manual review. The ledger
// debit already happened at request time; approval only triggers the
// external payout. The row lock plus the guarded status transition make
// sure two racing reviewers produce exactly one payout message.
func (e *Engine) Approve(ctx context.Context, requestID string) (*repository.WithdrawalRequest, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	request, found, err := e.db.Withdrawal().GetForUpdate(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrRequestNotFound
	}
	if request.Status != repository.WithdrawalStatusPendingReview {
		return nil, ErrNotPendingReview
	}

	bank, found, err := e.db.BankAccount().GetOne(request.BankAccountID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrBankDetailsMissing
	}

	moved, err := e.db.Withdrawal().UpdateStatusFrom(ctx, tx, requestID,
		repository.WithdrawalStatusPendingReview, repository.WithdrawalStatusApproved)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, ErrNotPendingReview
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	request.Status = repository.WithdrawalStatusApproved

	e.producePayout(request, bank.AccountNumber)

	return request, nil
}

// Reject returns the earmarked funds: the original debit is reversed with
// a credit entry, atomically with the status change.
func (e *Engine) Reject(ctx context.Context, requestID string) (*repository.WithdrawalRequest, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	request, found, err := e.db.Withdrawal().GetForUpdate(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrRequestNotFound
	}
	if request.Status != repository.WithdrawalStatusPendingReview {
		return nil, ErrNotPendingReview
	}

	description := fmt.Sprintf("Withdrawal %s rejected, funds returned", request.ID)
	if _, err := e.ledger.AppendTx(ctx, tx, request.WalletID, request.Amount, repository.TransactionKindCredit, description); err != nil {
		return nil, err
	}

	moved, err := e.db.Withdrawal().UpdateStatusFrom(ctx, tx, requestID,
		repository.WithdrawalStatusPendingReview, repository.WithdrawalStatusRejected)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, ErrNotPendingReview
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	request.Status = repository.WithdrawalStatusRejected
	return request, nil
}

func (e *Engine) producePayout(request *repository.WithdrawalRequest, bankRef string) {
	message, err := json.Marshal(&PayoutMessage{
		RequestID: request.ID,
		WalletID:  request.WalletID,
		BankRef:   bankRef,
		NetAmount: request.NetAmount,
	})
	if err != nil {
		log.Printf("Error encoding payout message for request %s: %v", request.ID, err)
		return
	}

	go func() {
		if err := e.producer.ProduceMessage(PayoutTopic, string(message)); err != nil {
			log.Printf("Error producing payout message for request %s: %v", request.ID, err)
		}
	}()
}
