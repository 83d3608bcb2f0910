package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

type BankAccount struct {
	ID            string         `db:"id"`
	UserID        string         `db:"user_id"`
	AccountName   string         `db:"account_name"`
	AccountNumber string         `db:"account_number"`
	BankName      string         `db:"bank_name"`
	IfscCode      string         `db:"ifsc_code"`
	DocumentURL   sql.NullString `db:"document_url"`
	Status        string         `db:"status"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     sql.NullTime   `db:"updated_at"`
}

const (
	BankAccountPendingStatus  = "pending"
	BankAccountVerifiedStatus = "verified"
)

type BankAccountRepository interface {
	Insert(account *BankAccount) (string, error)
	GetOne(id string) (*BankAccount, bool, error)
	GetVerifiedByUserId(userID string) (*BankAccount, bool, error)
	Verify(id string) error
}

type BankAccountRepositoryImpl struct {
	db *sqlx.DB
}

func NewBankAccountRepository(db *sqlx.DB) BankAccountRepository {
	return &BankAccountRepositoryImpl{db: db}
}

func (repo *BankAccountRepositoryImpl) Insert(account *BankAccount) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string

	query := `
		INSERT INTO bank_accounts (user_id, account_name, account_number, bank_name, ifsc_code, document_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := repo.db.GetContext(ctx, &id, query,
		account.UserID,
		account.AccountName,
		account.AccountNumber,
		account.BankName,
		account.IfscCode,
		account.DocumentURL,
	)

	if err != nil {
		return "", err
	}

	return id, nil
}

func (repo *BankAccountRepositoryImpl) GetOne(id string) (*BankAccount, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var account BankAccount

	query := `
        SELECT id, user_id, account_name, account_number, bank_name, ifsc_code, document_url, status, created_at
        FROM bank_accounts WHERE id=$1`

	err := repo.db.GetContext(ctx, &account, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &account, true, nil
}

// GetVerifiedByUserId returns the user's verified payout destination, if any.
// Withdrawals are refused until one exists.
func (repo *BankAccountRepositoryImpl) GetVerifiedByUserId(userID string) (*BankAccount, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var account BankAccount

	query := `
        SELECT id, user_id, account_name, account_number, bank_name, ifsc_code, document_url, status, created_at
        FROM bank_accounts WHERE user_id=$1 AND status=$2
        ORDER BY created_at DESC LIMIT 1`

	err := repo.db.GetContext(ctx, &account, query, userID, BankAccountVerifiedStatus)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &account, true, nil
}

func (repo *BankAccountRepositoryImpl) Verify(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `UPDATE bank_accounts SET status=$1, updated_at=NOW() WHERE id=$2`

	_, err := repo.db.ExecContext(ctx, query, BankAccountVerifiedStatus, id)
	return err
}
