package app

import (
	"net/http"

	"github.com/fixora/wallet/internal/handler"
	"github.com/fixora/wallet/internal/middleware"
)

func (app *Application) routes() http.Handler {
	mux := http.NewServeMux()

	middlewareRepo := middleware.New(app.ErrHandler, app.Logger, &app.Config)

	healthHandler := handler.NewHealthCheckHandler(app.ErrHandler)
	walletHandler := handler.NewWalletHandler(app.Ledger, app.ErrHandler)
	topupHandler := handler.NewTopupHandler(app.DB, app.Topup, app.Ledger, app.ErrHandler, app.helper, app.Config.Topup.MinAmount)
	withdrawalHandler := handler.NewWithdrawalHandler(app.DB, app.Withdrawal, app.Ledger, app.ErrHandler, app.helper)
	refundHandler := handler.NewRefundHandler(app.DB, app.Refund, app.Ledger, app.ErrHandler, app.helper)
	bankAccountHandler := handler.NewBankAccountHandler(app.DB, app.FileUploader, app.ErrHandler, app.helper)
	pricingHandler := handler.NewPricingHandler(app.Pricing, app.ErrHandler)

	mux.HandleFunc("GET /status", healthHandler.HandleHealthCheck)
	mux.HandleFunc("GET /pricing/max-price", pricingHandler.HandleMaxPrice)

	// The gateway calls this back; the signature is its authentication.
	mux.HandleFunc("POST /topups/verify", topupHandler.HandleVerifyTopup)

	mux.Handle("GET /wallets/{id}/balance", middlewareRepo.RequireAuthenticatedUser(http.HandlerFunc(walletHandler.HandleWalletBalance)))
	mux.Handle("GET /wallets/{id}/transactions", middlewareRepo.RequireAuthenticatedUser(http.HandlerFunc(walletHandler.HandleWalletTransactions)))

	mux.Handle("POST /topups", middlewareRepo.RequireAuthenticatedUser(http.HandlerFunc(topupHandler.HandleCreateTopup)))
	mux.Handle("POST /topups/{id}/cancel", middlewareRepo.RequireAuthenticatedUser(http.HandlerFunc(topupHandler.HandleCancelTopup)))

	mux.Handle("POST /withdrawals", middlewareRepo.RequireAuthenticatedUser(http.HandlerFunc(withdrawalHandler.HandleRequestWithdrawal)))
	mux.Handle("GET /wallets/{id}/withdrawals", middlewareRepo.RequireAuthenticatedUser(http.HandlerFunc(withdrawalHandler.HandleListWithdrawals)))
	mux.Handle("POST /withdrawals/{id}/approve", middlewareRepo.RequireAdminUser(http.HandlerFunc(withdrawalHandler.HandleApproveWithdrawal)))
	mux.Handle("POST /withdrawals/{id}/reject", middlewareRepo.RequireAdminUser(http.HandlerFunc(withdrawalHandler.HandleRejectWithdrawal)))

	mux.Handle("GET /wallets/{id}/refundable", middlewareRepo.RequireAuthenticatedUser(http.HandlerFunc(refundHandler.HandleRefundableAmount)))
	mux.Handle("POST /wallets/{id}/refunds", middlewareRepo.RequireAuthenticatedUser(http.HandlerFunc(refundHandler.HandleIssueRefund)))

	mux.Handle("POST /bank-accounts", middlewareRepo.RequireAuthenticatedUser(http.HandlerFunc(bankAccountHandler.HandleAddBankAccount)))
	mux.Handle("POST /bank-accounts/{id}/verify", middlewareRepo.RequireAdminUser(http.HandlerFunc(bankAccountHandler.HandleVerifyBankAccount)))

	return middlewareRepo.LogAccess(middlewareRepo.RecoverPanic(middlewareRepo.Authenticate(mux)))
}
