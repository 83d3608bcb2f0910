// Package gateway is the payment-gateway collaborator client. The wallet
// service only depends on the narrow contract: create an order, and later
// check the signed confirmation the gateway posts back.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type Client struct {
	baseURL string
	secret  string
	client  *http.Client
}

func New(baseURL, secret string) *Client {
	return &Client{
		baseURL: baseURL,
		secret:  secret,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type createOrderRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	MerchantRef string `json:"merchant_ref"`
}

type createOrderResponse struct {
	OrderRef string `json:"order_ref"`
}

// CreateOrder registers a checkout with the gateway and returns its order
// reference. The merchant ref is ours, so a gateway-side retry of the same
// request cannot open two orders.
func (c *Client) CreateOrder(ctx context.Context, amount int64) (string, error) {
	body, err := json.Marshal(&createOrderRequest{
		Amount:      amount,
		Currency:    "INR",
		MerchantRef: uuid.NewString(),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secret)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var decoded createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}

	return decoded.OrderRef, nil
}
