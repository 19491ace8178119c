package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Auditor receives best-effort audit events. Failures never surface here.
type Auditor interface {
	Record(userID uuid.UUID, action, entityType, entityID string, metadata map[string]interface{})
}

type Service struct {
	repo    *Repository
	auditor Auditor
}

func NewService(repo *Repository, auditor Auditor) *Service {
	return &Service{repo: repo, auditor: auditor}
}

// GetBalance returns the user's wallet balance.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	w, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return w.Balance, nil
}

// Ledger returns the user's ledger history, newest first.
func (s *Service) Ledger(ctx context.Context, userID uuid.UUID, limit, offset int) ([]LedgerEntry, error) {
	return s.repo.Ledger(ctx, userID, limit, offset)
}

// Transfer moves funds to another user's wallet and audits both sides.
func (s *Service) Transfer(ctx context.Context, senderID, recipientID uuid.UUID, amount int64, note string) (string, error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}

	reference := newTransferReference()
	_, _, err := s.repo.Transfer(ctx, TransferParams{
		SenderID:    senderID,
		RecipientID: recipientID,
		Amount:      amount,
		Reference:   reference,
		Note:        note,
	})
	if err != nil {
		return "", err
	}

	log.Info().
		Str("sender_id", senderID.String()).
		Str("recipient_id", recipientID.String()).
		Int64("amount", amount).
		Str("reference", reference).
		Msg("wallet transfer applied")

	if s.auditor != nil {
		s.auditor.Record(senderID, "wallet_transfer_sent", "transaction", reference, map[string]interface{}{
			"amount":       amount,
			"recipient_id": recipientID.String(),
		})
		s.auditor.Record(recipientID, "wallet_transfer_received", "transaction", reference+"_RCP", map[string]interface{}{
			"amount":    amount,
			"sender_id": senderID.String(),
		})
	}

	return reference, nil
}

func newTransferReference() string {
	return fmt.Sprintf("BB_TRF_%d_%s", time.Now().UnixMilli(), uuid.New().String()[:8])
}
