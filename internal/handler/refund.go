package handler

import (
	"errors"
	"net/http"

	"github.com/fixora/wallet/internal/context"
	"github.com/fixora/wallet/internal/errHandler"
	"github.com/fixora/wallet/internal/helper"
	"github.com/fixora/wallet/internal/ledger"
	"github.com/fixora/wallet/internal/refund"
	"github.com/fixora/wallet/internal/repository"
	"github.com/fixora/wallet/internal/response"
)

type refundHandler struct {
	db         repository.Database
	resolver   *refund.Resolver
	ledger     *ledger.Ledger
	errHandler *errHandler.ErrorRepository
	helper     *helper.HelperRepository
}

func NewRefundHandler(db repository.Database, resolver *refund.Resolver, ledgerStore *ledger.Ledger, errHandler *errHandler.ErrorRepository, helper *helper.HelperRepository) *refundHandler {
	return &refundHandler{
		db:         db,
		resolver:   resolver,
		ledger:     ledgerStore,
		errHandler: errHandler,
		helper:     helper,
	}
}

func (h *refundHandler) HandleRefundableAmount(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	walletID := r.PathValue("id")

	wallet, err := h.ledger.Wallet(walletID)
	if err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
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

	amount, err := h.resolver.RefundableAmount(walletID)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	data := map[string]any{
		"wallet_id": walletID,
		"amount":    amount,
	}

	message := "Refundable amount retrieved successfully"
	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func (h *refundHandler) HandleIssueRefund(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	walletID := r.PathValue("id")

	wallet, err := h.ledger.Wallet(walletID)
	if err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
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

	transaction, err := h.resolver.IssueAutoRefund(r.Context(), walletID)
	if err != nil {
		switch {
		case errors.Is(err, refund.ErrNothingToRefund):
			response.JSONErrorResponse(w, nil, err.Error(), http.StatusUnprocessableEntity, nil)
		case errors.Is(err, ledger.ErrWalletOnHold):
			response.JSONErrorResponse(w, nil, err.Error(), http.StatusUnprocessableEntity, nil)
		default:
			h.errHandler.ServerError(w, r, err)
		}
		return
	}

	h.helper.BackgroundTask(r, func() error {
		_, err := h.db.Activity().Insert(&repository.ActivityLog{
			UserID:      user.ID,
			Entity:      repository.ActivityLogWalletEntity,
			EntityId:    walletID,
			Description: repository.ActivityLogRefundIssuedDescription,
		})
		return err
	})

	message := "Refund issued successfully"
	err = response.JSONOkResponse(w, transactionResponseData([]repository.Transaction{*transaction})[0], message, nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}
