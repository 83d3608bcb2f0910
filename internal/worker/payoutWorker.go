package worker

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/fixora/wallet/internal/stream"
	"github.com/fixora/wallet/internal/withdrawal"
)

// PayoutWorker settles approved withdrawals with the bank transfer
// provider. A payout that fails is never retried from here; the money
// has already left the wallet, so a human has to look at it.
func (wk *Worker) PayoutWorker() {
	consumer, err := wk.KafkaStream.CreateConsumer(&stream.StreamConsumer{
		GroupId: payoutGroupID,
		Topic:   withdrawal.PayoutTopic,
	})

	if err != nil {
		log.Fatalf("Error creating consumer: %v", err)
	}
	for {
		event := consumer.Poll(100) // Poll every 100ms
		switch e := event.(type) {
		case *kafka.Message:
			log.Printf("Payout message received on %s: %s\n", e.TopicPartition, string(e.Value))

			var payout withdrawal.PayoutMessage
			if err := json.Unmarshal(e.Value, &payout); err != nil {
				log.Printf("Error decoding payout message: %v", err)
				continue
			}

			wk.settlePayout(&payout)
		case kafka.Error:
			log.Printf("Error: %v\n", e)
		default:
			// Handle other events if needed
		}
	}
}

func (wk *Worker) settlePayout(payout *withdrawal.PayoutMessage) {
	request, found, err := wk.DB.Withdrawal().GetOne(payout.RequestID)
	if err != nil {
		log.Printf("Error loading request %s for payout: %v", payout.RequestID, err)
		wk.ErrHandler.ReportReconciliationAlert(payout.WalletID, fmt.Errorf("payout for request %s could not be loaded: %w", payout.RequestID, err))
		return
	}
	if !found {
		log.Printf("Payout message for unknown request %s, skipping", payout.RequestID)
		wk.ErrHandler.ReportReconciliationAlert(payout.WalletID, fmt.Errorf("payout message references unknown request %s", payout.RequestID))
		return
	}

	// Redelivered messages are absorbed here: a request that already has a
	// transfer on record is never wired again.
	if request.TransferID.Valid {
		log.Printf("Request %s already settled with transfer %s, skipping", payout.RequestID, request.TransferID.String)
		return
	}

	// The request id doubles as the idempotency key, so even a duplicate
	// that slips past the transfer_id check collapses on the rails.
	transferID, err := wk.Transfer.InitiateTransfer(wk.Ctx, payout.RequestID, payout.BankRef, payout.NetAmount)
	if err != nil {
		log.Printf("Error initiating transfer for request %s: %v", payout.RequestID, err)
		wk.ErrHandler.ReportReconciliationAlert(payout.WalletID, fmt.Errorf("payout for request %s failed: %w", payout.RequestID, err))
		return
	}

	err = wk.DB.Withdrawal().SetTransferID(payout.RequestID, transferID)
	if err != nil {
		log.Printf("Error recording transfer id for request %s: %v", payout.RequestID, err)
		wk.ErrHandler.ReportReconciliationAlert(payout.WalletID, fmt.Errorf("transfer %s completed but could not be recorded on request %s: %w", transferID, payout.RequestID, err))
		return
	}

	log.Printf("Payout settled for request %s, transfer %s", payout.RequestID, transferID)
}
