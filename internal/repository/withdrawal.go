package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// WithdrawalRequest snapshots the commission rate that applied when the
// request was made. A later configuration change never alters an accepted
// request.
type WithdrawalRequest struct {
	ID                 string         `db:"id"`
	WalletID           string         `db:"wallet_id"`
	BankAccountID      string         `db:"bank_account_id"`
	Amount             int64          `db:"amount"`
	CommissionRate     float64        `db:"commission_rate"`
	NetAmount          int64          `db:"net_amount"`
	Status             string         `db:"status"`
	DebitTransactionID sql.NullString `db:"debit_transaction_id"`
	TransferID         sql.NullString `db:"transfer_id"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          sql.NullTime   `db:"updated_at"`
}

const (
	WithdrawalStatusAutoApproved  = "auto_approved"
	WithdrawalStatusPendingReview = "pending_review"
	WithdrawalStatusApproved      = "approved"
	WithdrawalStatusRejected      = "rejected"
	WithdrawalStatusSettled       = "settled"
)

type WithdrawalRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, request *WithdrawalRequest) (*WithdrawalRequest, error)
	GetOne(id string) (*WithdrawalRequest, bool, error)
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*WithdrawalRequest, bool, error)
	UpdateStatusFrom(ctx context.Context, tx *sqlx.Tx, id, from, to string) (bool, error)
	SetTransferID(id, transferID string) error
	ListByWallet(walletID string, limit, offset int) ([]WithdrawalRequest, error)
}

type WithdrawalRepositoryImpl struct {
	db *sqlx.DB
}

func NewWithdrawalRepository(db *sqlx.DB) WithdrawalRepository {
	return &WithdrawalRepositoryImpl{db: db}
}

func (repo *WithdrawalRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, request *WithdrawalRequest) (*WithdrawalRequest, error) {
	var created WithdrawalRequest

	query := `
		INSERT INTO withdrawal_requests (wallet_id, bank_account_id, amount, commission_rate, net_amount, status, debit_transaction_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, wallet_id, bank_account_id, amount, commission_rate, net_amount, status, debit_transaction_id, transfer_id, created_at`

	err := tx.GetContext(ctx, &created, query,
		request.WalletID,
		request.BankAccountID,
		request.Amount,
		request.CommissionRate,
		request.NetAmount,
		request.Status,
		request.DebitTransactionID,
	)

	if err != nil {
		return nil, err
	}

	return &created, nil
}

func (repo *WithdrawalRepositoryImpl) GetOne(id string) (*WithdrawalRequest, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var request WithdrawalRequest

	query := `
        SELECT id, wallet_id, bank_account_id, amount, commission_rate, net_amount, status, debit_transaction_id, transfer_id, created_at
        FROM withdrawal_requests WHERE id=$1`

	err := repo.db.GetContext(ctx, &request, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &request, true, nil
}

func (repo *WithdrawalRepositoryImpl) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*WithdrawalRequest, bool, error) {
	var request WithdrawalRequest

	query := `
        SELECT id, wallet_id, bank_account_id, amount, commission_rate, net_amount, status, debit_transaction_id, transfer_id, created_at
        FROM withdrawal_requests WHERE id=$1 FOR UPDATE`

	err := tx.GetContext(ctx, &request, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &request, true, nil
}

// UpdateStatusFrom moves a request between statuses and reports whether
// the transition happened. The status guard in the WHERE clause makes the
// transition safe against a concurrent reviewer acting on the same row.
func (repo *WithdrawalRepositoryImpl) UpdateStatusFrom(ctx context.Context, tx *sqlx.Tx, id, from, to string) (bool, error) {
	query := `
        UPDATE withdrawal_requests SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`

	var result sql.Result
	var err error

	if tx != nil {
		result, err = tx.ExecContext(ctx, query, to, id, from)
	} else {
		result, err = repo.db.ExecContext(ctx, query, to, id, from)
	}
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (repo *WithdrawalRepositoryImpl) SetTransferID(id, transferID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
        UPDATE withdrawal_requests SET transfer_id=$1, status=$2, updated_at=NOW() WHERE id=$3`

	_, err := repo.db.ExecContext(ctx, query, transferID, WithdrawalStatusSettled, id)
	return err
}

func (repo *WithdrawalRepositoryImpl) ListByWallet(walletID string, limit, offset int) ([]WithdrawalRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var requests []WithdrawalRequest

	query := `
        SELECT id, wallet_id, bank_account_id, amount, commission_rate, net_amount, status, debit_transaction_id, transfer_id, created_at
        FROM withdrawal_requests WHERE wallet_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	err := repo.db.SelectContext(ctx, &requests, query, walletID, limit, offset)
	if err != nil {
		return nil, err
	}

	return requests, nil
}
