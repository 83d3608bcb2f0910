// Package bank is the bank-transfer collaborator client used for
// withdrawal payouts. Fire-and-forget from the ledger's perspective: we do
// not await settlement confirmation, and we never retry on our own; a
// downstream failure is surfaced as a reconciliation alert instead.
package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Transfer is the contract the payout worker depends on. The caller
// supplies the idempotency key; keying it to the withdrawal request the
// payout settles lets the rails collapse redelivered payout messages.
type Transfer interface {
	InitiateTransfer(ctx context.Context, idempotencyKey, bankRef string, netAmount int64) (string, error)
}

type Client struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type transferRequest struct {
	BankRef        string `json:"bank_ref"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	IdempotencyKey string `json:"idempotency_key"`
}

type transferResponse struct {
	TransferID string `json:"transfer_id"`
}

// InitiateTransfer asks the rails to wire netAmount to the given bank
// reference and returns the transfer id for the settlement record.
func (c *Client) InitiateTransfer(ctx context.Context, idempotencyKey, bankRef string, netAmount int64) (string, error) {
	body, err := json.Marshal(&transferRequest{
		BankRef:        bankRef,
		Amount:         netAmount,
		Currency:       "INR",
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transfers", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("bank transfer rails returned status %d", resp.StatusCode)
	}

	var decoded transferResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}

	return decoded.TransferID, nil
}
