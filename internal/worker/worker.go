package worker

import (
	"context"

	"github.com/fixora/wallet/internal/bank"
	"github.com/fixora/wallet/internal/errHandler"
	"github.com/fixora/wallet/internal/refund"
	"github.com/fixora/wallet/internal/repository"
	"github.com/fixora/wallet/internal/stream"
)

type Worker struct {
	KafkaStream *stream.KafkaStream
	DB          repository.Database
	Ctx         context.Context
	Transfer    bank.Transfer
	Refund      *refund.Resolver
	ErrHandler  *errHandler.ErrorRepository
}

const (
	// payoutGroupID is used for workers that settle approved withdrawals
	// with the bank transfer provider
	payoutGroupID = "withdrawal-payout-group"

	// refundGroupID is used for workers that issue automatic refunds when
	// a booking fails
	refundGroupID = "booking-refund-group"
)

// Our workers typically need access to the database and the kafka event
// stream; worker-specific dependencies are carried on the struct.
func New(wk *Worker) *Worker {
	return &Worker{
		KafkaStream: wk.KafkaStream,
		DB:          wk.DB,
		Ctx:         wk.Ctx,
		Transfer:    wk.Transfer,
		Refund:      wk.Refund,
		ErrHandler:  wk.ErrHandler,
	}
}
