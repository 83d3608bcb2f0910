package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/fixora/wallet/internal/context"
	"github.com/fixora/wallet/internal/errHandler"
	"github.com/fixora/wallet/internal/funcs"
	"github.com/fixora/wallet/internal/helper"
	"github.com/fixora/wallet/internal/ledger"
	"github.com/fixora/wallet/internal/repository"
	"github.com/fixora/wallet/internal/request"
	"github.com/fixora/wallet/internal/response"
	"github.com/fixora/wallet/internal/topup"
	"github.com/fixora/wallet/internal/validator"
)

// Shown instead of the real reason when a callback fails an integrity
// check; the detail goes to operators only.
const genericVerifyFailedMessage = "We could not verify this payment, please try again"

type TopupOrderResponseData struct {
	ID         string    `json:"id"`
	WalletID   string    `json:"wallet_id"`
	GatewayRef string    `json:"gateway_ref"`
	Amount     int64     `json:"amount"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

type topupHandler struct {
	db         repository.Database
	reconciler *topup.Reconciler
	ledger     *ledger.Ledger
	errHandler *errHandler.ErrorRepository
	helper     *helper.HelperRepository
	minAmount  int64
}

func NewTopupHandler(db repository.Database, reconciler *topup.Reconciler, ledgerStore *ledger.Ledger, errHandler *errHandler.ErrorRepository, helper *helper.HelperRepository, minAmount int64) *topupHandler {
	return &topupHandler{
		db:         db,
		reconciler: reconciler,
		ledger:     ledgerStore,
		errHandler: errHandler,
		helper:     helper,
		minAmount:  minAmount,
	}
}

func (h *topupHandler) HandleCreateTopup(w http.ResponseWriter, r *http.Request) {
	type CreateTopupInput struct {
		WalletID  string              `json:"wallet_id"`
		Amount    int64               `json:"amount"`
		Validator validator.Validator `json:"-"`
	}

	var input CreateTopupInput

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.errHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(validator.NotBlank(input.WalletID), "Wallet id is required")
	input.Validator.Check(input.Amount > 0, "Amount is required")

	if input.Validator.HasErrors() {
		h.errHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	user := context.ContextGetAuthenticatedUser(r)

	wallet, err := h.ledger.Wallet(input.WalletID)
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

	order, err := h.reconciler.CreateOrder(r.Context(), input.WalletID, input.Amount)
	if err != nil {
		if errors.Is(err, topup.ErrInvalidAmount) {
			message := "Minimum top-up is " + funcs.FormatMoney(h.minAmount)
			response.JSONErrorResponse(w, nil, message, http.StatusUnprocessableEntity, nil)
			return
		}
		h.errHandler.ServerError(w, r, err)
		return
	}

	h.helper.BackgroundTask(r, func() error {
		_, err := h.db.Activity().Insert(&repository.ActivityLog{
			UserID:      user.ID,
			Entity:      repository.ActivityLogTopupEntity,
			EntityId:    order.ID,
			Description: repository.ActivityLogTopupCreatedDescription,
		})
		return err
	})

	message := "Top-up order created successfully"
	err = response.JSONCreatedResponse(w, topupOrderResponseData(order), message)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

// HandleVerifyTopup is the gateway callback. It is unauthenticated (the
// signature is the proof), so nothing here may leak order state to a
// caller that fails verification.
func (h *topupHandler) HandleVerifyTopup(w http.ResponseWriter, r *http.Request) {
	type VerifyTopupInput struct {
		OrderID    string              `json:"order_id"`
		PaymentRef string              `json:"payment_ref"`
		Signature  string              `json:"signature"`
		Validator  validator.Validator `json:"-"`
	}

	var input VerifyTopupInput

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.errHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(validator.NotBlank(input.OrderID), "Order id is required")
	input.Validator.Check(validator.NotBlank(input.PaymentRef), "Payment reference is required")
	input.Validator.Check(validator.NotBlank(input.Signature), "Signature is required")

	if input.Validator.HasErrors() {
		h.errHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	transaction, err := h.reconciler.VerifyAndCredit(r.Context(), input.OrderID, input.PaymentRef, input.Signature)
	if err != nil {
		switch {
		case errors.Is(err, topup.ErrOrderNotFound), errors.Is(err, topup.ErrSignatureInvalid):
			h.errHandler.ReportSecurityEvent(r, "topup_verification_failed", err)
			response.JSONErrorResponse(w, nil, genericVerifyFailedMessage, http.StatusUnprocessableEntity, nil)
		case errors.Is(err, topup.ErrOrderClosed):
			response.JSONErrorResponse(w, nil, err.Error(), http.StatusUnprocessableEntity, nil)
		default:
			h.errHandler.ServerError(w, r, err)
		}
		return
	}

	h.helper.BackgroundTask(r, func() error {
		wallet, err := h.ledger.Wallet(transaction.WalletID)
		if err != nil {
			return err
		}

		_, err = h.db.Activity().Insert(&repository.ActivityLog{
			UserID:      wallet.UserID,
			Entity:      repository.ActivityLogTopupEntity,
			EntityId:    input.OrderID,
			Description: repository.ActivityLogTopupVerifiedDescription,
		})
		return err
	})

	message := "Top-up verified successfully"
	err = response.JSONOkResponse(w, transactionResponseData([]repository.Transaction{*transaction})[0], message, nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func (h *topupHandler) HandleCancelTopup(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	orderID := r.PathValue("id")

	order, found, err := h.db.Topup().GetOne(orderID)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if !found {
		response.JSONErrorResponse(w, nil, topup.ErrOrderNotFound.Error(), http.StatusUnprocessableEntity, nil)
		return
	}

	wallet, err := h.ledger.Wallet(order.WalletID)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	if !walletOwnedBy(wallet, user) {
		message := "Access denied"
		response.JSONErrorResponse(w, nil, message, http.StatusForbidden, nil)
		return
	}

	err = h.reconciler.Cancel(orderID)
	if err != nil {
		if errors.Is(err, topup.ErrOrderClosed) {
			response.JSONErrorResponse(w, nil, err.Error(), http.StatusUnprocessableEntity, nil)
			return
		}
		h.errHandler.ServerError(w, r, err)
		return
	}

	h.helper.BackgroundTask(r, func() error {
		_, err := h.db.Activity().Insert(&repository.ActivityLog{
			UserID:      user.ID,
			Entity:      repository.ActivityLogTopupEntity,
			EntityId:    orderID,
			Description: repository.ActivityLogTopupCancelledDescription,
		})
		return err
	})

	message := "Top-up cancelled"
	err = response.JSONOkResponse(w, nil, message, nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func topupOrderResponseData(order *repository.TopupOrder) *TopupOrderResponseData {
	return &TopupOrderResponseData{
		ID:         order.ID,
		WalletID:   order.WalletID,
		GatewayRef: order.GatewayRef,
		Amount:     order.Amount,
		Status:     order.Status,
		CreatedAt:  order.CreatedAt,
	}
}
