package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

type TopupOrder struct {
	ID            string         `db:"id"`
	WalletID      string         `db:"wallet_id"`
	GatewayRef    string         `db:"gateway_ref"`
	Amount        int64          `db:"amount"`
	Status        string         `db:"status"`
	TransactionID sql.NullString `db:"transaction_id"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     sql.NullTime   `db:"updated_at"`
}

const (
	TopupStatusPending  = "pending"
	TopupStatusVerified = "verified"
	TopupStatusFailed   = "failed"
)

type TopupRepository interface {
	Insert(order *TopupOrder) (*TopupOrder, error)
	GetOne(id string) (*TopupOrder, bool, error)
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*TopupOrder, bool, error)
	MarkVerified(ctx context.Context, tx *sqlx.Tx, id, transactionID string) error
	MarkFailed(id string) error
}

type TopupRepositoryImpl struct {
	db *sqlx.DB
}

func NewTopupRepository(db *sqlx.DB) TopupRepository {
	return &TopupRepositoryImpl{db: db}
}

func (repo *TopupRepositoryImpl) Insert(order *TopupOrder) (*TopupOrder, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var created TopupOrder

	query := `
		INSERT INTO topup_orders (wallet_id, gateway_ref, amount)
		VALUES ($1, $2, $3)
		RETURNING id, wallet_id, gateway_ref, amount, status, transaction_id, created_at`

	err := repo.db.GetContext(ctx, &created, query,
		order.WalletID,
		order.GatewayRef,
		order.Amount,
	)

	if err != nil {
		return nil, err
	}

	return &created, nil
}

func (repo *TopupRepositoryImpl) GetOne(id string) (*TopupOrder, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var order TopupOrder

	query := `
        SELECT id, wallet_id, gateway_ref, amount, status, transaction_id, created_at
        FROM topup_orders WHERE id=$1`

	err := repo.db.GetContext(ctx, &order, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &order, true, nil
}

// GetForUpdate locks the order row so two concurrent verification callbacks
// for the same order serialize; the loser sees the verified state and
// returns the original credit.
func (repo *TopupRepositoryImpl) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*TopupOrder, bool, error) {
	var order TopupOrder

	query := `
        SELECT id, wallet_id, gateway_ref, amount, status, transaction_id, created_at
        FROM topup_orders WHERE id=$1 FOR UPDATE`

	err := tx.GetContext(ctx, &order, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &order, true, nil
}

func (repo *TopupRepositoryImpl) MarkVerified(ctx context.Context, tx *sqlx.Tx, id, transactionID string) error {
	query := `
		UPDATE topup_orders SET status=$1, transaction_id=$2, updated_at=NOW() WHERE id=$3`

	_, err := tx.ExecContext(ctx, query, TopupStatusVerified, transactionID, id)
	return err
}

func (repo *TopupRepositoryImpl) MarkFailed(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE topup_orders SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`

	_, err := repo.db.ExecContext(ctx, query, TopupStatusFailed, id, TopupStatusPending)
	return err
}
