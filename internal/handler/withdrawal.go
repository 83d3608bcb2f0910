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
	"github.com/fixora/wallet/internal/validator"
	"github.com/fixora/wallet/internal/withdrawal"
)

type WithdrawalResponseData struct {
	ID             string    `json:"id"`
	WalletID       string    `json:"wallet_id"`
	Amount         int64     `json:"amount"`
	CommissionRate float64   `json:"commission_rate"`
	NetAmount      int64     `json:"net_amount"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

type withdrawalHandler struct {
	db         repository.Database
	engine     *withdrawal.Engine
	ledger     *ledger.Ledger
	errHandler *errHandler.ErrorRepository
	helper     *helper.HelperRepository
}

func NewWithdrawalHandler(db repository.Database, engine *withdrawal.Engine, ledgerStore *ledger.Ledger, errHandler *errHandler.ErrorRepository, helper *helper.HelperRepository) *withdrawalHandler {
	return &withdrawalHandler{
		db:         db,
		engine:     engine,
		ledger:     ledgerStore,
		errHandler: errHandler,
		helper:     helper,
	}
}

func (h *withdrawalHandler) HandleRequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	type RequestWithdrawalInput struct {
		WalletID  string              `json:"wallet_id"`
		Amount    int64               `json:"amount"`
		Validator validator.Validator `json:"-"`
	}

	var input RequestWithdrawalInput

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

	wr, err := h.engine.Request(r.Context(), input.WalletID, input.Amount)
	if err != nil {
		switch {
		case errors.Is(err, withdrawal.ErrBelowMinimum):
			message := "Minimum withdrawal is " + funcs.FormatMoney(h.engine.MinAmount())
			response.JSONErrorResponse(w, nil, message, http.StatusUnprocessableEntity, nil)
		case errors.Is(err, withdrawal.ErrAboveMaximum):
			message := "Maximum withdrawal is " + funcs.FormatMoney(h.engine.MaxAmount())
			response.JSONErrorResponse(w, nil, message, http.StatusUnprocessableEntity, nil)
		case errors.Is(err, withdrawal.ErrBankDetailsMissing):
			message := "Add and verify a bank account before withdrawing"
			response.JSONErrorResponse(w, nil, message, http.StatusUnprocessableEntity, nil)
		case errors.Is(err, ledger.ErrInsufficientFunds):
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
			Entity:      repository.ActivityLogWithdrawalEntity,
			EntityId:    wr.ID,
			Description: repository.ActivityLogWithdrawalRequestDescription,
		})
		return err
	})

	message := "Withdrawal request received"
	err = response.JSONCreatedResponse(w, withdrawalResponseData(wr), message)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func (h *withdrawalHandler) HandleListWithdrawals(w http.ResponseWriter, r *http.Request) {
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

	queryValues, ok := retrieveUrlQueryValues(r)
	if !ok {
		message := "Invalid pagination parameters"
		response.JSONErrorResponse(w, nil, message, http.StatusUnprocessableEntity, nil)
		return
	}

	requests, err := h.db.Withdrawal().ListByWallet(walletID, queryValues.Limit, (queryValues.Page-1)*queryValues.Limit)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	items := make([]WithdrawalResponseData, 0, len(requests))
	for i := range requests {
		items = append(items, *withdrawalResponseData(&requests[i]))
	}

	message := "Withdrawal requests retrieved successfully"
	err = response.JSONOkResponse(w, items, message, nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func (h *withdrawalHandler) HandleApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.reviewWithdrawal(w, r, true)
}

func (h *withdrawalHandler) HandleRejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.reviewWithdrawal(w, r, false)
}

func (h *withdrawalHandler) reviewWithdrawal(w http.ResponseWriter, r *http.Request, approve bool) {
	user := context.ContextGetAuthenticatedUser(r)

	requestID := r.PathValue("id")

	var (
		wr  *repository.WithdrawalRequest
		err error
	)
	if approve {
		wr, err = h.engine.Approve(r.Context(), requestID)
	} else {
		wr, err = h.engine.Reject(r.Context(), requestID)
	}
	if err != nil {
		switch {
		case errors.Is(err, withdrawal.ErrRequestNotFound):
			response.JSONErrorResponse(w, nil, err.Error(), http.StatusUnprocessableEntity, nil)
		case errors.Is(err, withdrawal.ErrNotPendingReview):
			response.JSONErrorResponse(w, nil, err.Error(), http.StatusUnprocessableEntity, nil)
		default:
			h.errHandler.ServerError(w, r, err)
		}
		return
	}

	description := repository.ActivityLogWithdrawalApproveDescription
	message := "Withdrawal approved"
	if !approve {
		description = repository.ActivityLogWithdrawalRejectDescription
		message = "Withdrawal rejected, funds returned"
	}

	h.helper.BackgroundTask(r, func() error {
		_, err := h.db.Activity().Insert(&repository.ActivityLog{
			UserID:      user.ID,
			Entity:      repository.ActivityLogWithdrawalEntity,
			EntityId:    wr.ID,
			Description: description,
		})
		return err
	})

	err = response.JSONOkResponse(w, withdrawalResponseData(wr), message, nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func withdrawalResponseData(request *repository.WithdrawalRequest) *WithdrawalResponseData {
	return &WithdrawalResponseData{
		ID:             request.ID,
		WalletID:       request.WalletID,
		Amount:         request.Amount,
		CommissionRate: request.CommissionRate,
		NetAmount:      request.NetAmount,
		Status:         request.Status,
		CreatedAt:      request.CreatedAt,
	}
}
