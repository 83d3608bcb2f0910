package handler

import (
	"net/http"
	"time"

	"github.com/fixora/wallet/internal/context"
	"github.com/fixora/wallet/internal/errHandler"
	"github.com/fixora/wallet/internal/ledger"
	"github.com/fixora/wallet/internal/repository"
	"github.com/fixora/wallet/internal/response"
)

type TransactionResponseData struct {
	ID           string    `json:"id"`
	Amount       int64     `json:"amount"`
	Kind         string    `json:"kind"`
	Description  string    `json:"description,omitempty"`
	BalanceAfter int64     `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

type walletHandler struct {
	ledger     *ledger.Ledger
	errHandler *errHandler.ErrorRepository
}

func NewWalletHandler(ledgerStore *ledger.Ledger, errHandler *errHandler.ErrorRepository) *walletHandler {
	return &walletHandler{
		ledger:     ledgerStore,
		errHandler: errHandler,
	}
}

func (h *walletHandler) HandleWalletBalance(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	walletID := r.PathValue("id")

	wallet, err := h.ledger.Wallet(walletID)
	if err != nil {
		if err == ledger.ErrWalletNotFound {
			response.JSONErrorResponse(w, nil, err.Error(), http.StatusUnprocessableEntity, nil)
			return
		}
		h.errHandler.ServerError(w, r, err)
		return
	}

	if !walletOwnedBy(wallet, user) {
		message := "Access denied"
		response.JSONErrorResponse(w, nil, message, http.StatusForbidden, nil)
		return
	}

	message := "Balance fetched successfully"

	data := map[string]any{
		"balance":  wallet.Balance,
		"currency": wallet.Currency,
	}
	err = response.JSONOkResponse(w, data, message, nil)

	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func (h *walletHandler) HandleWalletTransactions(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	walletID := r.PathValue("id")

	queryValues, ok := retrieveUrlQueryValues(r)
	if !ok {
		response.JSONErrorResponse(w, nil, "Invalid page, limit or filter", http.StatusUnprocessableEntity, nil)
		return
	}

	wallet, err := h.ledger.Wallet(walletID)
	if err != nil {
		if err == ledger.ErrWalletNotFound {
			response.JSONErrorResponse(w, nil, err.Error(), http.StatusUnprocessableEntity, nil)
			return
		}
		h.errHandler.ServerError(w, r, err)
		return
	}

	if !walletOwnedBy(wallet, user) {
		message := "Access denied"
		response.JSONErrorResponse(w, nil, message, http.StatusForbidden, nil)
		return
	}

	page, err := h.ledger.ListPage(walletID, queryValues.Page, queryValues.Limit)
	if err != nil {
		if err == ledger.ErrInvalidPage {
			response.JSONErrorResponse(w, nil, err.Error(), http.StatusUnprocessableEntity, nil)
			return
		}
		h.errHandler.ServerError(w, r, err)
		return
	}

	// The filter is a view over the fetched page, never a different query.
	// While a credit/debit filter is active the client must not advance
	// pages, so has_more is suppressed.
	items := ledger.FilterEntries(page.Items, queryValues.Filter)
	hasMore := page.HasMore && queryValues.Filter.AllowsPaging()

	data := map[string]any{
		"items":    transactionResponseData(items),
		"has_more": hasMore,
		"page":     queryValues.Page,
	}

	message := "Transactions fetched successfully"
	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func transactionResponseData(items []repository.Transaction) []TransactionResponseData {
	data := make([]TransactionResponseData, len(items))
	for i, item := range items {
		data[i] = TransactionResponseData{
			ID:           item.ID,
			Amount:       item.Amount,
			Kind:         item.Kind,
			Description:  item.Description.String,
			BalanceAfter: item.BalanceAfter,
			CreatedAt:    item.CreatedAt,
		}
	}
	return data
}
