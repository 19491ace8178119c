package vtu

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/billbridge/billbridge-api/internal/domain/provider"
	"github.com/billbridge/billbridge-api/internal/domain/transaction"
	"github.com/billbridge/billbridge-api/internal/domain/wallet"
)

// walletStore is the slice of the wallet repository the coordinator needs.
type walletStore interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error)
	DebitPurchase(ctx context.Context, p wallet.DebitPurchaseParams) (*wallet.LedgerEntry, error)
}

// transactionStore records the durable transaction lifecycle.
type transactionStore interface {
	Create(ctx context.Context, p transaction.CreateParams) (*transaction.Transaction, error)
	MarkFailed(ctx context.Context, reference string) error
}

// providerSource snapshots the registry for one category.
type providerSource interface {
	ActiveByCategory(ctx context.Context, category provider.Category) ([]provider.Provider, error)
}

// Auditor receives best-effort audit events.
type Auditor interface {
	Record(userID uuid.UUID, action, entityType, entityID string, metadata map[string]interface{})
}

// Floors holds the per-category minimum purchase amount in kobo.
type Floors struct {
	Airtime     int64
	Data        int64
	Electricity int64
	TV          int64
}

// For returns the floor for a category.
func (f Floors) For(category provider.Category) int64 {
	switch category {
	case provider.CategoryAirtime:
		return f.Airtime
	case provider.CategoryData:
		return f.Data
	case provider.CategoryElectricity:
		return f.Electricity
	case provider.CategoryTV:
		return f.TV
	}
	return 0
}

// Receipt is returned to the caller for a finished purchase.
type Receipt struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
	Provider  string `json:"provider"`
	Message   string `json:"message"`
}

// Service is the transaction ledger coordinator: it validates a purchase,
// records the processing transaction before any provider call, drives the
// fallback executor and reconciles wallet, ledger and transaction state.
type Service struct {
	wallets   walletStore
	txns      transactionStore
	providers providerSource
	selector  *provider.Selector
	executor  *Executor
	auditor   Auditor
	floors    Floors
}

func NewService(wallets walletStore, txns transactionStore, providers providerSource, selector *provider.Selector, executor *Executor, auditor Auditor, floors Floors) *Service {
	return &Service{
		wallets:   wallets,
		txns:      txns,
		providers: providers,
		selector:  selector,
		executor:  executor,
		auditor:   auditor,
		floors:    floors,
	}
}

// Purchase runs one funded purchase to a terminal state.
//
// The transaction row is inserted with status processing before the first
// provider attempt, so a crash mid-operation leaves an auditable trace rather
// than a silent external charge. After that point the operation is detached
// from the caller's context and runs to completion even if the caller
// disconnects.
func (s *Service) Purchase(ctx context.Context, userID uuid.UUID, req OperationRequest) (*Receipt, error) {
	if !req.Valid() {
		return nil, fmt.Errorf("%w: malformed operation request", ErrValidation)
	}
	if floor := s.floors.For(req.Category); req.Amount < floor {
		return nil, fmt.Errorf("%w: minimum amount for %s is %d kobo", ErrValidation, req.Category, floor)
	}

	w, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	// Precheck only: the authoritative balance check happens again under the
	// wallet row lock when the debit is applied.
	if w.Balance < req.Amount {
		return nil, wallet.ErrInsufficientFunds
	}

	reference := newReference(req.Category)
	txn, err := s.txns.Create(ctx, transaction.CreateParams{
		Reference: reference,
		UserID:    userID,
		Type:      transactionType(req.Category),
		Amount:    req.Amount,
		Status:    transaction.StatusProcessing,
		Metadata:  req.Metadata(),
	})
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	// Processing is durably recorded; run to a terminal state regardless of
	// the caller.
	opCtx := context.WithoutCancel(ctx)

	providers, err := s.providers.ActiveByCategory(opCtx, req.Category)
	if err != nil {
		s.failTransaction(opCtx, reference)
		return nil, fmt.Errorf("load providers: %w", err)
	}
	ranked := s.selector.Rank(providers)
	if len(ranked) == 0 {
		s.failTransaction(opCtx, reference)
		return nil, ErrNoProviders
	}

	result, used, err := s.executor.Execute(opCtx, ranked, req, func(p provider.Provider, attemptErr error) {
		s.audit(userID, string(req.Category)+"_provider_failed", "transaction", reference, map[string]interface{}{
			"provider": p.Name,
			"error":    attemptErr.Error(),
		})
	})
	if err != nil {
		var exhausted *ExhaustedError
		if errors.As(err, &exhausted) {
			s.failTransaction(opCtx, reference)
			log.Error().
				Str("reference", reference).
				Int("attempts", exhausted.Attempts).
				Err(exhausted.Unwrap()).
				Msg("all providers failed")
			return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, exhausted)
		}
		s.failTransaction(opCtx, reference)
		return nil, err
	}

	entry, err := s.wallets.DebitPurchase(opCtx, wallet.DebitPurchaseParams{
		UserID:        userID,
		Amount:        req.Amount,
		TransactionID: txn.ID,
		Reference:     reference,
		ProviderUsed:  used.Name,
		Description:   req.Description(),
	})
	if err != nil {
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			// A concurrent operation drained the wallet between the
			// precheck and the provider success. The provider-side
			// charge for this reference becomes a reconciliation item.
			s.failTransaction(opCtx, reference)
			s.audit(userID, "purchase_debit_rejected", "transaction", reference, map[string]interface{}{
				"provider": used.Name,
				"amount":   req.Amount,
			})
			return nil, wallet.ErrInsufficientFunds
		}
		// Provider succeeded but the finalize failed; leave the row in
		// processing for the reconciler rather than declaring an outcome
		// the store does not reflect.
		log.Error().Err(err).Str("reference", reference).Msg("purchase finalize failed")
		s.audit(userID, "purchase_finalize_failed", "transaction", reference, map[string]interface{}{
			"provider": used.Name,
			"error":    err.Error(),
		})
		return nil, fmt.Errorf("finalize purchase: %w", err)
	}

	log.Info().
		Str("reference", reference).
		Str("user_id", userID.String()).
		Str("provider", used.Name).
		Int64("amount", req.Amount).
		Int64("balance_after", entry.BalanceAfter).
		Msg("purchase completed")

	s.audit(userID, string(req.Category)+"_purchased", "transaction", reference, map[string]interface{}{
		"provider":           used.Name,
		"amount":             req.Amount,
		"provider_reference": result.Reference,
	})

	message := result.Message
	if message == "" {
		message = "Purchase completed successfully"
	}
	return &Receipt{
		Reference: reference,
		Amount:    req.Amount,
		Status:    string(transaction.StatusCompleted),
		Provider:  used.Name,
		Message:   message,
	}, nil
}

func (s *Service) failTransaction(ctx context.Context, reference string) {
	if err := s.txns.MarkFailed(ctx, reference); err != nil {
		log.Error().Err(err).Str("reference", reference).Msg("failed to mark transaction failed")
	}
}

func (s *Service) audit(userID uuid.UUID, action, entityType, entityID string, metadata map[string]interface{}) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(userID, action, entityType, entityID, metadata)
}

func transactionType(category provider.Category) transaction.Type {
	switch category {
	case provider.CategoryAirtime:
		return transaction.TypeAirtimePurchase
	case provider.CategoryData:
		return transaction.TypeDataPurchase
	case provider.CategoryElectricity:
		return transaction.TypeElectricityPurchase
	case provider.CategoryTV:
		return transaction.TypeTVPurchase
	}
	return ""
}

func newReference(category provider.Category) string {
	return fmt.Sprintf("BB_%s_%d_%s",
		strings.ToUpper(string(category)), time.Now().UnixMilli(), uuid.New().String()[:8])
}
