// Package topup reconciles payment-gateway top-ups with the ledger.
// Order lifecycle: pending -> (gateway checkout) -> verified | failed.
// Verification is idempotent: a retried callback for an already-verified
// order returns the original credit without touching the ledger again.
package topup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fixora/wallet/internal/cache"
	"github.com/fixora/wallet/internal/ledger"
	"github.com/fixora/wallet/internal/repository"
)

var (
	ErrInvalidAmount    = errors.New("top-up amount is below the minimum")
	ErrOrderNotFound    = errors.New("top-up order not found")
	ErrOrderClosed      = errors.New("top-up order is already closed")
	ErrSignatureInvalid = errors.New("payment signature verification failed")
	ErrTransactionLost  = errors.New("verified order has no credit transaction on record")
)

// Gateway is the payment-gateway collaborator. It returns an order
// reference the client uses to run the external checkout. Retries, if any,
// are the gateway client's business, not ours.
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64) (string, error)
}

const verifiedCacheTTL = 24 * time.Hour

type Reconciler struct {
	db        repository.Database
	ledger    *ledger.Ledger
	gateway   Gateway
	cache     *cache.Cache
	secret    string
	minAmount int64
}

func New(db repository.Database, ledgerStore *ledger.Ledger, gateway Gateway, cache *cache.Cache, secret string, minAmount int64) *Reconciler {
	return &Reconciler{
		db:        db,
		ledger:    ledgerStore,
		gateway:   gateway,
		cache:     cache,
		secret:    secret,
		minAmount: minAmount,
	}
}

// CreateOrder opens a pending top-up order and hands back the gateway
// reference for the client checkout. No ledger effect until verification.
func (rc *Reconciler) CreateOrder(ctx context.Context, walletID string, amount int64) (*repository.TopupOrder, error) {
	if amount < rc.minAmount {
		return nil, ErrInvalidAmount
	}

	if _, err := rc.ledger.Wallet(walletID); err != nil {
		return nil, err
	}

	gatewayRef, err := rc.gateway.CreateOrder(ctx, amount)
	if err != nil {
		return nil, err
	}

	order, err := rc.db.Topup().Insert(&repository.TopupOrder{
		WalletID:   walletID,
		GatewayRef: gatewayRef,
		Amount:     amount,
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// VerifyAndCredit validates the gateway callback and credits the ledger
// exactly once. The order row lock makes racing callbacks serialize; the
// loser observes the verified state and gets the original transaction.
func (rc *Reconciler) VerifyAndCredit(ctx context.Context, orderID, paymentRef, signature string) (*repository.Transaction, error) {
	// Fast path for client retries: a recently verified order is cached
	// with its credit transaction id. The database state stays authoritative,
	// and the callback signature is checked on every path; the cache only
	// skips the row lock, never authentication.
	if rc.cache != nil {
		if txID, err := rc.cache.Get(verifiedCacheKey(orderID)); err == nil && txID != "" {
			order, found, err := rc.db.Topup().GetOne(orderID)
			if err == nil && found {
				if !VerifySignature(rc.secret, order.GatewayRef, paymentRef, signature) {
					return nil, ErrSignatureInvalid
				}
				transaction, found, err := rc.db.Transaction().GetOne(txID)
				if err == nil && found {
					return transaction, nil
				}
			}
		}
	}

	tx, err := rc.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, found, err := rc.db.Topup().GetForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrOrderNotFound
	}

	// The signature is validated before any state-based short-circuit. The
	// idempotency contract covers retries of the valid callback only; a
	// forged payload against a verified order is still tampering.
	if !VerifySignature(rc.secret, order.GatewayRef, paymentRef, signature) {
		return nil, ErrSignatureInvalid
	}

	switch order.Status {
	case repository.TopupStatusVerified:
		// Duplicate verification is not an error. Absorb it silently by
		// returning the original credit.
		if !order.TransactionID.Valid {
			return nil, ErrTransactionLost
		}
		transaction, found, err := rc.db.Transaction().GetOne(order.TransactionID.String)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, ErrTransactionLost
		}
		return transaction, nil

	case repository.TopupStatusFailed:
		return nil, ErrOrderClosed
	}

	description := fmt.Sprintf("Wallet top-up (ref %s)", order.GatewayRef)
	transaction, err := rc.ledger.AppendTx(ctx, tx, order.WalletID, order.Amount, repository.TransactionKindTopup, description)
	if err != nil {
		return nil, err
	}

	if err := rc.db.Topup().MarkVerified(ctx, tx, order.ID, transaction.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if rc.cache != nil {
		// Best effort; a cache failure only costs the fast path.
		_ = rc.cache.Set(verifiedCacheKey(orderID), transaction.ID, verifiedCacheTTL)
	}

	return transaction, nil
}

// Cancel marks an abandoned checkout as failed. Terminal no-op state; the
// ledger was never touched for a pending order, so nothing to roll back.
func (rc *Reconciler) Cancel(orderID string) error {
	order, found, err := rc.db.Topup().GetOne(orderID)
	if err != nil {
		return err
	}
	if !found {
		return ErrOrderNotFound
	}

	switch order.Status {
	case repository.TopupStatusVerified:
		return ErrOrderClosed
	case repository.TopupStatusFailed:
		return nil
	}

	return rc.db.Topup().MarkFailed(orderID)
}

func verifiedCacheKey(orderID string) string {
	return "topup:verified:" + orderID
}
