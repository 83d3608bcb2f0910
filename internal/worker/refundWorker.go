package worker

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/fixora/wallet/internal/ledger"
	"github.com/fixora/wallet/internal/refund"
	"github.com/fixora/wallet/internal/stream"
)

// RefundWorker credits wallets for failed bookings. The resolver
// re-derives the amount from the booking rows, so replaying a message
// is harmless.
func (wk *Worker) RefundWorker() {
	consumer, err := wk.KafkaStream.CreateConsumer(&stream.StreamConsumer{
		GroupId: refundGroupID,
		Topic:   refund.BookingFailedTopic,
	})

	if err != nil {
		log.Fatalf("Error creating consumer: %v", err)
	}
	for {
		event := consumer.Poll(100) // Poll every 100ms
		switch e := event.(type) {
		case *kafka.Message:
			log.Printf("Booking failure received on %s: %s\n", e.TopicPartition, string(e.Value))

			var failed refund.BookingFailedMessage
			if err := json.Unmarshal(e.Value, &failed); err != nil {
				log.Printf("Error decoding booking failure message: %v", err)
				continue
			}

			wk.issueRefund(&failed)
		case kafka.Error:
			log.Printf("Error: %v\n", e)
		default:
			// Handle other events if needed
		}
	}
}

func (wk *Worker) issueRefund(failed *refund.BookingFailedMessage) {
	transaction, err := wk.Refund.IssueAutoRefund(wk.Ctx, failed.WalletID)
	if err != nil {
		// Another consumer already refunded these bookings.
		if errors.Is(err, refund.ErrNothingToRefund) {
			log.Printf("Nothing to refund on wallet %s for booking %s", failed.WalletID, failed.BookingID)
			return
		}
		if errors.Is(err, ledger.ErrWalletOnHold) {
			log.Printf("Wallet %s is on hold, refund for booking %s deferred", failed.WalletID, failed.BookingID)
			return
		}
		log.Printf("Error issuing refund on wallet %s: %v", failed.WalletID, err)
		return
	}

	log.Printf("Refund %s issued on wallet %s", transaction.ID, failed.WalletID)
}
