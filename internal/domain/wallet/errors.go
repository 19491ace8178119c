package wallet

import "errors"

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrSameWallet        = errors.New("sender and recipient wallets are the same")
	ErrTransactionState  = errors.New("transaction is not in a finalizable state")
	ErrAlreadyCompleted  = errors.New("transaction already completed")
)
