package ledger

import "errors"

var (
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrWalletOnHold      = errors.New("wallet cannot process transactions at this time")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrInvalidPage       = errors.New("page and page size must be positive")

	// ErrLedgerCorrupted means the stored balance no longer matches the
	// transaction history. Fatal for the wallet: writes are refused and an
	// operator alert is raised. The number is never auto-corrected.
	ErrLedgerCorrupted = errors.New("wallet balance does not reconcile with its transaction history")
)
