package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// Wallet balances are stored in minor units (paise). The balance column
// carries a non-negative check constraint as a last line of defence; the
// ledger enforces the same rule before it ever reaches the database.
type Wallet struct {
	ID        string       `db:"id"`
	UserID    string       `db:"user_id"`
	Role      string       `db:"role"`
	Balance   int64        `db:"balance"`
	Currency  string       `db:"currency"`
	Status    string       `db:"status"`
	CreatedAt time.Time    `db:"created_at"`
	UpdatedAt sql.NullTime `db:"updated_at"`
}

const (
	WalletActiveStatus = "active"
	WalletOnHoldStatus = "on-hold"
)

const (
	WalletRoleCustomer = "customer"
	WalletRoleProvider = "provider"
)

type WalletRepository interface {
	Insert(wallet *Wallet, tx *sqlx.Tx) (string, error)
	GetOne(id string) (*Wallet, bool, error)
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*Wallet, bool, error)
	SetBalance(ctx context.Context, tx *sqlx.Tx, id string, balance int64) error
	SetStatus(id string, status string) error
}

type WalletRepositoryImpl struct {
	db *sqlx.DB
}

func NewWalletRepository(db *sqlx.DB) WalletRepository {
	return &WalletRepositoryImpl{db: db}
}

func (repo *WalletRepositoryImpl) Insert(wallet *Wallet, tx *sqlx.Tx) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string

	query := `
		INSERT INTO wallets (user_id, role, currency)
		VALUES ($1, $2, $3)
		RETURNING id`
	if tx != nil {
		err := tx.QueryRowContext(ctx, query,
			wallet.UserID,
			wallet.Role,
			wallet.Currency,
		).Scan(&id)
		if err != nil {
			return "", err
		}
	} else {
		err := repo.db.GetContext(ctx, &id, query,
			wallet.UserID,
			wallet.Role,
			wallet.Currency,
		)

		if err != nil {
			return "", err
		}
	}

	return id, nil
}

func (repo *WalletRepositoryImpl) GetOne(id string) (*Wallet, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var wallet Wallet

	query := `
        SELECT id, user_id, role, balance, currency, status, created_at FROM wallets WHERE id=$1`

	err := repo.db.GetContext(ctx, &wallet, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &wallet, true, nil
}

// GetForUpdate takes a row lock on the wallet, serializing all
// balance-affecting writes for the same account without blocking writes
// on other accounts. Must be called inside a transaction.
func (repo *WalletRepositoryImpl) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*Wallet, bool, error) {
	var wallet Wallet

	query := `
        SELECT id, user_id, role, balance, currency, status, created_at FROM wallets WHERE id=$1 FOR UPDATE`

	err := tx.GetContext(ctx, &wallet, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &wallet, true, nil
}

func (repo *WalletRepositoryImpl) SetBalance(ctx context.Context, tx *sqlx.Tx, id string, balance int64) error {
	query := `
		UPDATE wallets SET balance=$1, updated_at=NOW() WHERE id=$2`

	_, err := tx.ExecContext(ctx, query, balance, id)
	return err
}

func (repo *WalletRepositoryImpl) SetStatus(id string, status string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `UPDATE wallets SET status = $1, updated_at=NOW() WHERE id = $2`

	_, err := repo.db.ExecContext(ctx, query, status, id)
	return err
}
