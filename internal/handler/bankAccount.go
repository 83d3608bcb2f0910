package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/fixora/wallet/internal/context"
	"github.com/fixora/wallet/internal/errHandler"
	"github.com/fixora/wallet/internal/file"
	"github.com/fixora/wallet/internal/helper"
	"github.com/fixora/wallet/internal/repository"
	"github.com/fixora/wallet/internal/response"
	"github.com/fixora/wallet/internal/validator"
	"github.com/google/uuid"
)

type BankAccountResponseData struct {
	ID            string    `json:"id"`
	AccountName   string    `json:"account_name"`
	AccountNumber string    `json:"account_number"`
	BankName      string    `json:"bank_name"`
	IfscCode      string    `json:"ifsc_code"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

type bankAccountHandler struct {
	db         repository.Database
	uploader   file.Uploader
	errHandler *errHandler.ErrorRepository
	helper     *helper.HelperRepository
}

func NewBankAccountHandler(db repository.Database, uploader file.Uploader, errHandler *errHandler.ErrorRepository, helper *helper.HelperRepository) *bankAccountHandler {
	return &bankAccountHandler{
		db:         db,
		uploader:   uploader,
		errHandler: errHandler,
		helper:     helper,
	}
}

func (h *bankAccountHandler) HandleAddBankAccount(w http.ResponseWriter, r *http.Request) {
	err := r.ParseMultipartForm(10 << 20) // 10 MB
	if err != nil {
		h.errHandler.BadRequest(w, r, errors.New("invalid request data"))
		return
	}

	accountName := r.FormValue("account_name")
	accountNumber := r.FormValue("account_number")
	bankName := r.FormValue("bank_name")
	ifscCode := r.FormValue("ifsc_code")

	var v validator.Validator
	v.Check(validator.NotBlank(accountName), "Account name is required")
	v.Check(validator.NotBlank(accountNumber), "Account number is required")
	v.Check(validator.NotBlank(bankName), "Bank name is required")
	v.Check(validator.NotBlank(ifscCode), "IFSC code is required")

	if v.HasErrors() {
		h.errHandler.FailedValidation(w, r, v.Errors)
		return
	}

	user := context.ContextGetAuthenticatedUser(r)

	account := &repository.BankAccount{
		UserID:        user.ID,
		AccountName:   accountName,
		AccountNumber: accountNumber,
		BankName:      bankName,
		IfscCode:      ifscCode,
		Status:        repository.BankAccountPendingStatus,
	}

	// The proof-of-account document is optional at creation time;
	// verification will not pass without one.
	document, _, err := r.FormFile("document")
	if err == nil {
		defer document.Close()

		documentURL, err := h.uploader.Upload(r.Context(), document, uuid.New().String())
		if err != nil {
			h.errHandler.ServerError(w, r, err)
			return
		}
		account.DocumentURL = sql.NullString{String: documentURL, Valid: true}
	} else if !errors.Is(err, http.ErrMissingFile) {
		h.errHandler.BadRequest(w, r, errors.New("error retrieving the document"))
		return
	}

	id, err := h.db.BankAccount().Insert(account)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	account.ID = id

	h.helper.BackgroundTask(r, func() error {
		_, err := h.db.Activity().Insert(&repository.ActivityLog{
			UserID:      user.ID,
			Entity:      repository.ActivityLogBankAccountEntity,
			EntityId:    id,
			Description: repository.ActivityLogBankAccountAddedDescription,
		})
		return err
	})

	message := "Bank account added, pending verification"
	err = response.JSONCreatedResponse(w, bankAccountResponseData(account), message)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func (h *bankAccountHandler) HandleVerifyBankAccount(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")

	account, found, err := h.db.BankAccount().GetOne(accountID)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if !found {
		message := "Bank account not found"
		response.JSONErrorResponse(w, nil, message, http.StatusUnprocessableEntity, nil)
		return
	}

	if !account.DocumentURL.Valid {
		message := "Bank account has no proof-of-account document"
		response.JSONErrorResponse(w, nil, message, http.StatusUnprocessableEntity, nil)
		return
	}

	err = h.db.BankAccount().Verify(accountID)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	account.Status = repository.BankAccountVerifiedStatus

	message := "Bank account verified"
	err = response.JSONOkResponse(w, bankAccountResponseData(account), message, nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func bankAccountResponseData(account *repository.BankAccount) *BankAccountResponseData {
	return &BankAccountResponseData{
		ID:            account.ID,
		AccountName:   account.AccountName,
		AccountNumber: account.AccountNumber,
		BankName:      account.BankName,
		IfscCode:      account.IfscCode,
		Status:        account.Status,
		CreatedAt:     account.CreatedAt,
	}
}
