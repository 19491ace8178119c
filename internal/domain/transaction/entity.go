package transaction

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a transaction.
// pending -> processing -> {completed | failed}; completed and failed are
// terminal and never transition again.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Type identifies what kind of operation a transaction records.
type Type string

const (
	TypeAirtimePurchase     Type = "airtime_purchase"
	TypeDataPurchase        Type = "data_purchase"
	TypeElectricityPurchase Type = "electricity_purchase"
	TypeTVPurchase          Type = "tv_purchase"
	TypeWalletFunding       Type = "wallet_funding"
	TypeWalletTransfer      Type = "wallet_transfer"
)

// Transaction is the durable record of one operation. Reference is the
// idempotency key for the whole operation: generated before any external call
// and never reused.
type Transaction struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	Reference    string          `db:"reference" json:"reference"`
	UserID       uuid.UUID       `db:"user_id" json:"user_id"`
	Type         Type            `db:"type" json:"type"`
	Amount       int64           `db:"amount" json:"amount"`
	Status       Status          `db:"status" json:"status"`
	ProviderUsed *string         `db:"provider_used" json:"provider_used,omitempty"`
	Metadata     json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}
