// Package ledger is the single write path for wallet balances. Every other
// component (top-ups, withdrawals, refunds) goes through Append/AppendTx;
// nothing else is allowed to mutate a balance.
package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fixora/wallet/internal/repository"
	"github.com/jmoiron/sqlx"
)

// AlertFunc is invoked when a reconciliation mismatch is detected, after
// the wallet has been placed on hold.
type AlertFunc func(walletID string, detail error)

type Ledger struct {
	db    repository.Database
	alert AlertFunc
}

func New(db repository.Database, alert AlertFunc) *Ledger {
	if alert == nil {
		alert = func(string, error) {}
	}
	return &Ledger{
		db:    db,
		alert: alert,
	}
}

// Balance returns the current balance in minor units.
func (l *Ledger) Balance(walletID string) (int64, error) {
	wallet, found, err := l.db.Wallet().GetOne(walletID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrWalletNotFound
	}

	return wallet.Balance, nil
}

// Wallet returns the full wallet record.
func (l *Ledger) Wallet(walletID string) (*repository.Wallet, error) {
	wallet, found, err := l.db.Wallet().GetOne(walletID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrWalletNotFound
	}

	return wallet, nil
}

// Append records one ledger entry in its own database transaction.
func (l *Ledger) Append(ctx context.Context, walletID string, amount int64, kind, description string) (*repository.Transaction, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	transaction, err := l.AppendTx(ctx, tx, walletID, amount, kind, description)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return transaction, nil
}

// AppendTx records one ledger entry inside the caller's transaction, so a
// caller can commit the entry atomically with its own rows (top-up order
// state, refund markers, withdrawal requests).
//
// The wallet row lock serializes concurrent appends per account; appends
// for unrelated accounts never contend.
func (l *Ledger) AppendTx(ctx context.Context, tx *sqlx.Tx, walletID string, amount int64, kind, description string) (*repository.Transaction, error) {
	wallet, found, err := l.db.Wallet().GetForUpdate(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrWalletNotFound
	}

	if wallet.Status != repository.WalletActiveStatus {
		return nil, ErrWalletOnHold
	}

	last, hasHistory, err := l.db.Transaction().Latest(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}

	// Reconciliation check before every write: the stored balance must
	// equal balance_after of the latest entry (or zero for a fresh wallet).
	var seq int64 = 1
	if hasHistory {
		if last.BalanceAfter != wallet.Balance {
			l.quarantine(walletID, fmt.Errorf("stored balance %d, last entry balance_after %d (seq %d)",
				wallet.Balance, last.BalanceAfter, last.Seq))
			return nil, ErrLedgerCorrupted
		}
		seq = last.Seq + 1
	} else if wallet.Balance != 0 {
		l.quarantine(walletID, fmt.Errorf("stored balance %d with no transaction history", wallet.Balance))
		return nil, ErrLedgerCorrupted
	}

	newBalance := wallet.Balance + amount
	if amount < 0 && newBalance < 0 {
		return nil, ErrInsufficientFunds
	}

	transaction, err := l.db.Transaction().Insert(ctx, tx, &repository.Transaction{
		WalletID:     walletID,
		Amount:       amount,
		Kind:         kind,
		Description:  sql.NullString{String: description, Valid: description != ""},
		Seq:          seq,
		BalanceAfter: newBalance,
	})
	if err != nil {
		return nil, err
	}

	if err := l.db.Wallet().SetBalance(ctx, tx, walletID, newBalance); err != nil {
		return nil, err
	}

	return transaction, nil
}

// VerifyWallet recomputes the running sum over the full history and compares
// it to the stored balance. Used by operational tooling and tests.
func (l *Ledger) VerifyWallet(walletID string) error {
	wallet, found, err := l.db.Wallet().GetOne(walletID)
	if err != nil {
		return err
	}
	if !found {
		return ErrWalletNotFound
	}

	sum, err := l.db.Transaction().SumAmounts(walletID)
	if err != nil {
		return err
	}

	if sum != wallet.Balance {
		l.quarantine(walletID, fmt.Errorf("stored balance %d, transaction sum %d", wallet.Balance, sum))
		return ErrLedgerCorrupted
	}

	return nil
}

// quarantine places the wallet on hold and raises the operator alert.
// Uses its own connection so the hold survives the caller's rollback.
func (l *Ledger) quarantine(walletID string, detail error) {
	if err := l.db.Wallet().SetStatus(walletID, repository.WalletOnHoldStatus); err != nil {
		l.alert(walletID, fmt.Errorf("failed to place wallet on hold: %w (original: %s)", err, detail))
		return
	}

	l.alert(walletID, detail)
}
