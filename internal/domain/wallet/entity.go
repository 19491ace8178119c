package wallet

import (
	"time"

	"github.com/google/uuid"
)

// Direction marks which way a ledger entry moved the balance.
type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

// Wallet is the durable balance for one user. Balance is in kobo and never
// observable below zero; every change has a matching ledger entry.
type Wallet struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Balance   int64     `db:"balance" json:"balance"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// LedgerEntry is an immutable record of a single balance movement.
// balance_after = balance_before - amount for debits, + amount for credits.
type LedgerEntry struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	WalletID      uuid.UUID  `db:"wallet_id" json:"wallet_id"`
	TransactionID *uuid.UUID `db:"transaction_id" json:"transaction_id,omitempty"`
	Amount        int64      `db:"amount" json:"amount"`
	Direction     Direction  `db:"direction" json:"direction"`
	BalanceBefore int64      `db:"balance_before" json:"balance_before"`
	BalanceAfter  int64      `db:"balance_after" json:"balance_after"`
	Description   string     `db:"description" json:"description"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}
