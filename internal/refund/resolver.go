// Package refund returns captured-but-unsettled funds from failed bookings
// to the customer's wallet.
package refund

import (
	"context"
	"errors"
	"fmt"

	"github.com/fixora/wallet/internal/ledger"
	"github.com/fixora/wallet/internal/repository"
)

var ErrNothingToRefund = errors.New("no refundable amount on this wallet")

// BookingFailedTopic carries failed-booking events from the marketplace
// backend to the refund worker.
const BookingFailedTopic = "booking.failed"

// BookingFailedMessage is the event shape on BookingFailedTopic.
type BookingFailedMessage struct {
	WalletID  string `json:"wallet_id"`
	BookingID string `json:"booking_id"`
}

type Resolver struct {
	db     repository.Database
	ledger *ledger.Ledger
}

func New(db repository.Database, ledgerStore *ledger.Ledger) *Resolver {
	return &Resolver{
		db:     db,
		ledger: ledgerStore,
	}
}

// RefundableAmount sums failed/rejected/cancelled bookings whose payment
// was captured and not yet refunded. Read-only and side-effect free.
func (rs *Resolver) RefundableAmount(walletID string) (int64, error) {
	if _, err := rs.ledger.Wallet(walletID); err != nil {
		return 0, err
	}

	return rs.db.Booking().RefundableTotal(walletID)
}

// IssueAutoRefund credits the wallet with the full refundable amount and
// marks the source bookings settled, atomically. The amount is re-derived
// here with the booking rows locked; a caller-supplied figure is never
// trusted, so a stale or already-claimed amount cannot be refunded twice.
func (rs *Resolver) IssueAutoRefund(ctx context.Context, walletID string) (*repository.Transaction, error) {
	tx, err := rs.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	bookings, err := rs.db.Booking().RefundableForUpdate(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}

	var total int64
	ids := make([]string, 0, len(bookings))
	for _, booking := range bookings {
		total += booking.Amount
		ids = append(ids, booking.ID)
	}

	if total == 0 {
		return nil, ErrNothingToRefund
	}

	description := fmt.Sprintf("Refund for %d failed booking(s)", len(ids))
	credit, err := rs.ledger.AppendTx(ctx, tx, walletID, total, repository.TransactionKindRefund, description)
	if err != nil {
		return nil, err
	}

	if err := rs.db.Booking().MarkRefunded(ctx, tx, ids); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return credit, nil
}
