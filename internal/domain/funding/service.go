package funding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/billbridge/billbridge-api/internal/domain/transaction"
	"github.com/billbridge/billbridge-api/internal/domain/wallet"
	"github.com/billbridge/billbridge-api/internal/pkg/paystack"
)

// gateway is the slice of the payment gateway the funding flow needs.
type gateway interface {
	Initialize(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResponse, error)
	Verify(ctx context.Context, reference string) (*paystack.VerifyResponse, error)
}

type transactionStore interface {
	Create(ctx context.Context, p transaction.CreateParams) (*transaction.Transaction, error)
	GetByReference(ctx context.Context, reference string) (*transaction.Transaction, error)
	MarkFailed(ctx context.Context, reference string) error
}

type walletStore interface {
	CreditFunding(ctx context.Context, p wallet.CreditFundingParams) (*wallet.LedgerEntry, error)
}

// Auditor records funding events without blocking the request.
type Auditor interface {
	Record(userID uuid.UUID, action, entityType, entityID string, metadata map[string]interface{})
}

type Service struct {
	gateway   gateway
	txns      transactionStore
	wallets   walletStore
	auditor   Auditor
	minAmount int64
}

func NewService(gw gateway, txns transactionStore, wallets walletStore, auditor Auditor, minAmount int64) *Service {
	return &Service{
		gateway:   gw,
		txns:      txns,
		wallets:   wallets,
		auditor:   auditor,
		minAmount: minAmount,
	}
}

// Checkout is what the client needs to complete payment on the gateway's
// hosted page.
type Checkout struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Amount           int64  `json:"amount"`
}

// FundingResult is the settled state of a funding after verification.
type FundingResult struct {
	Reference string             `json:"reference"`
	Status    transaction.Status `json:"status"`
	Amount    int64              `json:"amount"`
	Balance   *int64             `json:"balance,omitempty"`
}

// Initiate records a pending funding transaction and opens a gateway checkout
// for it. No balance changes until the payment is verified.
func (s *Service) Initiate(ctx context.Context, userID uuid.UUID, email string, amount int64) (*Checkout, error) {
	if amount < s.minAmount {
		return nil, ErrAmountTooLow
	}

	reference := newFundingReference()
	if _, err := s.txns.Create(ctx, transaction.CreateParams{
		Reference: reference,
		UserID:    userID,
		Type:      transaction.TypeWalletFunding,
		Amount:    amount,
		Status:    transaction.StatusPending,
		Metadata:  map[string]interface{}{"email": email, "gateway": "paystack"},
	}); err != nil {
		return nil, fmt.Errorf("create funding transaction: %w", err)
	}

	init, err := s.gateway.Initialize(ctx, paystack.InitializeRequest{
		Email:     email,
		Amount:    amount,
		Reference: reference,
	})
	if err != nil {
		// The pending row stays: Verify can still settle it if the user
		// retries through the gateway, and the reconciler fails it otherwise.
		log.Error().Err(err).Str("reference", reference).Msg("paystack initialize failed")
		return nil, fmt.Errorf("initialize checkout: %w", err)
	}

	s.record(userID, "wallet_funding_initiated", reference, map[string]interface{}{
		"amount": amount,
	})

	return &Checkout{
		Reference:        reference,
		AuthorizationURL: init.AuthorizationURL,
		AccessCode:       init.AccessCode,
		Amount:           amount,
	}, nil
}

// Verify confirms a funding with the gateway and credits the wallet. The
// gateway is the source of truth for the paid amount; the credit is keyed on
// the reference so repeated verifies cannot double-credit.
func (s *Service) Verify(ctx context.Context, userID uuid.UUID, reference string) (*FundingResult, error) {
	txn, err := s.txns.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if txn.UserID != userID {
		return nil, ErrNotOwner
	}
	if txn.Type != transaction.TypeWalletFunding {
		return nil, ErrNotFunding
	}
	if txn.Status == transaction.StatusCompleted {
		return &FundingResult{Reference: reference, Status: txn.Status, Amount: txn.Amount}, nil
	}

	verified, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("verify payment: %w", err)
	}

	switch verified.Status {
	case "success":
	case "failed", "abandoned":
		if err := s.txns.MarkFailed(ctx, reference); err != nil && !errors.Is(err, transaction.ErrNotFound) {
			log.Error().Err(err).Str("reference", reference).Msg("failed to mark funding failed")
		}
		s.record(userID, "wallet_funding_failed", reference, map[string]interface{}{
			"gateway_status": verified.Status,
		})
		return nil, ErrPaymentFailed
	default:
		// still pending on the gateway side
		return &FundingResult{Reference: reference, Status: txn.Status, Amount: txn.Amount}, nil
	}

	if verified.Amount != txn.Amount {
		log.Error().
			Str("reference", reference).
			Int64("expected", txn.Amount).
			Int64("paid", verified.Amount).
			Msg("funding amount mismatch")
		return nil, ErrAmountMismatch
	}

	return s.settle(ctx, txn, verified.Channel)
}

// HandleWebhook settles a charge.success event delivered by the gateway. The
// caller has already checked the payload signature.
func (s *Service) HandleWebhook(ctx context.Context, reference string) error {
	txn, err := s.txns.GetByReference(ctx, reference)
	if err != nil {
		return err
	}
	if txn.Type != transaction.TypeWalletFunding {
		return ErrNotFunding
	}
	if txn.Status == transaction.StatusCompleted {
		return nil
	}

	verified, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return fmt.Errorf("verify payment: %w", err)
	}
	if verified.Status != "success" {
		return ErrPaymentFailed
	}
	if verified.Amount != txn.Amount {
		return ErrAmountMismatch
	}

	_, err = s.settle(ctx, txn, verified.Channel)
	return err
}

func (s *Service) settle(ctx context.Context, txn *transaction.Transaction, channel string) (*FundingResult, error) {
	entry, err := s.wallets.CreditFunding(ctx, wallet.CreditFundingParams{
		UserID:        txn.UserID,
		Amount:        txn.Amount,
		TransactionID: txn.ID,
		Reference:     txn.Reference,
		Description:   "Wallet funding via Paystack",
	})
	if errors.Is(err, wallet.ErrAlreadyCompleted) {
		// Lost the race against a concurrent verify or webhook; the wallet
		// was credited exactly once either way.
		return &FundingResult{Reference: txn.Reference, Status: transaction.StatusCompleted, Amount: txn.Amount}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credit wallet: %w", err)
	}

	s.record(txn.UserID, "wallet_funded", txn.Reference, map[string]interface{}{
		"amount":  txn.Amount,
		"channel": channel,
	})

	return &FundingResult{
		Reference: txn.Reference,
		Status:    transaction.StatusCompleted,
		Amount:    txn.Amount,
		Balance:   &entry.BalanceAfter,
	}, nil
}

func (s *Service) record(userID uuid.UUID, action, reference string, metadata map[string]interface{}) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(userID, action, "transaction", reference, metadata)
}

func newFundingReference() string {
	return fmt.Sprintf("BB_FND_%d_%s", time.Now().UnixMilli(), uuid.New().String()[:8])
}
