package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// Transaction is an immutable ledger entry. Amount is signed minor units:
// positive is a credit, negative is a debit. Rows are append-only; there is
// deliberately no update or delete method on this repository.
type Transaction struct {
	ID           string         `db:"id"`
	WalletID     string         `db:"wallet_id"`
	Amount       int64          `db:"amount"`
	Kind         string         `db:"kind"`
	Description  sql.NullString `db:"description"`
	Seq          int64          `db:"seq"`
	BalanceAfter int64          `db:"balance_after"`
	CreatedAt    time.Time      `db:"created_at"`
}

const (
	TransactionKindTopup      = "topup"
	TransactionKindDebit      = "debit"
	TransactionKindCredit     = "credit"
	TransactionKindRefund     = "refund"
	TransactionKindWithdrawal = "withdrawal"
)

type TransactionRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, transaction *Transaction) (*Transaction, error)
	Latest(ctx context.Context, tx *sqlx.Tx, walletID string) (*Transaction, bool, error)
	GetOne(id string) (*Transaction, bool, error)
	List(walletID string, limit, offset int) ([]Transaction, error)
	SumAmounts(walletID string) (int64, error)
}

type TransactionRepositoryImpl struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) TransactionRepository {
	return &TransactionRepositoryImpl{db: db}
}

func (repo *TransactionRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, transaction *Transaction) (*Transaction, error) {
	var trans Transaction

	query := `
		INSERT INTO transactions (wallet_id, amount, kind, description, seq, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, wallet_id, amount, kind, description, seq, balance_after, created_at`

	err := tx.GetContext(ctx, &trans, query,
		transaction.WalletID,
		transaction.Amount,
		transaction.Kind,
		transaction.Description,
		transaction.Seq,
		transaction.BalanceAfter,
	)

	if err != nil {
		return nil, err
	}

	return &trans, nil
}

// Latest returns the most recent entry for a wallet. Callers that hold the
// wallet row lock can rely on the result being stable for the duration of
// their transaction.
func (repo *TransactionRepositoryImpl) Latest(ctx context.Context, tx *sqlx.Tx, walletID string) (*Transaction, bool, error) {
	var trans Transaction

	query := `
        SELECT id, wallet_id, amount, kind, description, seq, balance_after, created_at
        FROM transactions WHERE wallet_id=$1 ORDER BY seq DESC LIMIT 1`

	err := tx.GetContext(ctx, &trans, query, walletID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &trans, true, nil
}

func (repo *TransactionRepositoryImpl) GetOne(id string) (*Transaction, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var trans Transaction

	query := `
        SELECT id, wallet_id, amount, kind, description, seq, balance_after, created_at
        FROM transactions WHERE id=$1`

	err := repo.db.GetContext(ctx, &trans, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &trans, true, nil
}

// List returns entries most-recent-first.
func (repo *TransactionRepositoryImpl) List(walletID string, limit, offset int) ([]Transaction, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var transactions []Transaction

	query := `
        SELECT id, wallet_id, amount, kind, description, seq, balance_after, created_at
        FROM transactions WHERE wallet_id=$1 ORDER BY seq DESC LIMIT $2 OFFSET $3`

	err := repo.db.SelectContext(ctx, &transactions, query, walletID, limit, offset)

	if err != nil {
		return nil, err
	}

	return transactions, nil
}

func (repo *TransactionRepositoryImpl) SumAmounts(walletID string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var sum int64

	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE wallet_id=$1`

	err := repo.db.GetContext(ctx, &sum, query, walletID)
	if err != nil {
		return 0, err
	}

	return sum, nil
}
