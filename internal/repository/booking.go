package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

// Booking mirrors the marketplace booking a wallet payment was captured
// for. Only the fields the refund resolver needs live here; the booking
// lifecycle itself belongs to the marketplace backend.
type Booking struct {
	ID          string       `db:"id"`
	WalletID    string       `db:"wallet_id"`
	ServiceName string       `db:"service_name"`
	Amount      int64        `db:"amount"`
	Status      string       `db:"status"`
	RefundedAt  sql.NullTime `db:"refunded_at"`
	CreatedAt   time.Time    `db:"created_at"`
}

const (
	BookingStatusCaptured  = "captured"
	BookingStatusCompleted = "completed"
	BookingStatusFailed    = "failed"
	BookingStatusRejected  = "rejected"
	BookingStatusCancelled = "cancelled"
)

type BookingRepository interface {
	Insert(booking *Booking) (string, error)
	RefundableTotal(walletID string) (int64, error)
	RefundableForUpdate(ctx context.Context, tx *sqlx.Tx, walletID string) ([]Booking, error)
	MarkRefunded(ctx context.Context, tx *sqlx.Tx, ids []string) error
}

type BookingRepositoryImpl struct {
	db *sqlx.DB
}

func NewBookingRepository(db *sqlx.DB) BookingRepository {
	return &BookingRepositoryImpl{db: db}
}

func (repo *BookingRepositoryImpl) Insert(booking *Booking) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string

	query := `
		INSERT INTO bookings (wallet_id, service_name, amount, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := repo.db.GetContext(ctx, &id, query,
		booking.WalletID,
		booking.ServiceName,
		booking.Amount,
		booking.Status,
	)

	if err != nil {
		return "", err
	}

	return id, nil
}

// RefundableTotal sums captured-but-failed booking payments that have not
// been refunded yet. Read-only; safe to call repeatedly.
func (repo *BookingRepositoryImpl) RefundableTotal(walletID string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var total int64

	query := `
        SELECT COALESCE(SUM(amount), 0) FROM bookings
        WHERE wallet_id=$1 AND status IN ($2, $3, $4) AND refunded_at IS NULL`

	err := repo.db.GetContext(ctx, &total, query, walletID,
		BookingStatusFailed, BookingStatusRejected, BookingStatusCancelled)
	if err != nil {
		return 0, err
	}

	return total, nil
}

// RefundableForUpdate locks the refundable rows so the amount cannot be
// claimed twice by concurrent refund issuers.
func (repo *BookingRepositoryImpl) RefundableForUpdate(ctx context.Context, tx *sqlx.Tx, walletID string) ([]Booking, error) {
	var bookings []Booking

	query := `
        SELECT id, wallet_id, service_name, amount, status, refunded_at, created_at
        FROM bookings
        WHERE wallet_id=$1 AND status IN ($2, $3, $4) AND refunded_at IS NULL
        FOR UPDATE`

	err := tx.SelectContext(ctx, &bookings, query, walletID,
		BookingStatusFailed, BookingStatusRejected, BookingStatusCancelled)
	if err != nil {
		return nil, err
	}

	return bookings, nil
}

func (repo *BookingRepositoryImpl) MarkRefunded(ctx context.Context, tx *sqlx.Tx, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`UPDATE bookings SET refunded_at=NOW() WHERE id IN (?)`, ids)
	if err != nil {
		return err
	}

	query = tx.Rebind(query)

	_, err = tx.ExecContext(ctx, query, args...)
	return err
}
