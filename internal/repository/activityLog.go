// Every wallet-affecting action (synchronous or asynchronous) is logged.
// This is used for audit and to trace activities after the fact.
// ...
// entity and entity_id are polymorphic so one table serves every part
// of the application.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

type ActivityRepository interface {
	Insert(log *ActivityLog) (*ActivityLog, error)
}

type ActivityLog struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	Entity      string    `db:"entity"`
	EntityId    string    `db:"entity_id"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

const (
	// ActivityLogWalletEntity is used in activities that affect a wallet balance
	ActivityLogWalletEntity = "wallet"

	// ActivityLogTopupEntity is used in activities on top-up orders
	ActivityLogTopupEntity = "topup_order"

	// ActivityLogWithdrawalEntity is used in activities on withdrawal requests
	ActivityLogWithdrawalEntity = "withdrawal_request"

	// ActivityLogBankAccountEntity is used in activities on payout destinations
	ActivityLogBankAccountEntity = "bank_account"
)

const (
	ActivityLogTopupCreatedDescription      = "Top-up order created"
	ActivityLogTopupVerifiedDescription     = "Top-up verified and credited"
	ActivityLogTopupCancelledDescription    = "Top-up cancelled"
	ActivityLogWithdrawalRequestDescription = "Withdrawal requested"
	ActivityLogWithdrawalApproveDescription = "Withdrawal approved"
	ActivityLogWithdrawalRejectDescription  = "Withdrawal rejected"
	ActivityLogRefundIssuedDescription      = "Automatic refund issued"
	ActivityLogBankAccountAddedDescription  = "Bank account added"
)

type ActivityRepositoryImpl struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) ActivityRepository {
	return &ActivityRepositoryImpl{db: db}
}

func (repo *ActivityRepositoryImpl) Insert(log *ActivityLog) (*ActivityLog, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var created ActivityLog

	query := `
		INSERT INTO activity_logs (user_id, entity, entity_id, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, entity, entity_id, description, created_at`

	err := repo.db.GetContext(ctx, &created, query,
		log.UserID,
		log.Entity,
		log.EntityId,
		log.Description,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &created, nil
}
