package funding

import "errors"

var (
	ErrAmountTooLow   = errors.New("funding amount is below the minimum")
	ErrNotOwner       = errors.New("transaction does not belong to this user")
	ErrNotFunding     = errors.New("transaction is not a wallet funding")
	ErrPaymentFailed  = errors.New("payment was not successful")
	ErrAmountMismatch = errors.New("paid amount does not match the funding amount")
)
