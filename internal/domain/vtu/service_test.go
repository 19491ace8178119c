package vtu

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/billbridge/billbridge-api/internal/domain/provider"
	"github.com/billbridge/billbridge-api/internal/domain/transaction"
	"github.com/billbridge/billbridge-api/internal/domain/wallet"
)

type fakeWallets struct {
	mu      sync.Mutex
	balance int64
	ledger  []wallet.LedgerEntry
	txns    *fakeTxns
}

func (f *fakeWallets) GetByUserID(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &wallet.Wallet{ID: uuid.New(), UserID: userID, Balance: f.balance}, nil
}

func (f *fakeWallets) DebitPurchase(ctx context.Context, p wallet.DebitPurchaseParams) (*wallet.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balance < p.Amount {
		return nil, wallet.ErrInsufficientFunds
	}
	before := f.balance
	f.balance -= p.Amount
	entry := wallet.LedgerEntry{
		ID:            uuid.New(),
		Amount:        p.Amount,
		Direction:     wallet.DirectionDebit,
		BalanceBefore: before,
		BalanceAfter:  f.balance,
		Description:   p.Description,
	}
	f.ledger = append(f.ledger, entry)
	if f.txns != nil {
		f.txns.complete(p.Reference, p.ProviderUsed)
	}
	return &entry, nil
}

type fakeTxns struct {
	mu      sync.Mutex
	rows    map[string]*transaction.Transaction
	created []string
}

func newFakeTxns() *fakeTxns {
	return &fakeTxns{rows: map[string]*transaction.Transaction{}}
}

func (f *fakeTxns) Create(ctx context.Context, p transaction.CreateParams) (*transaction.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn := &transaction.Transaction{
		ID:        uuid.New(),
		Reference: p.Reference,
		UserID:    p.UserID,
		Type:      p.Type,
		Amount:    p.Amount,
		Status:    p.Status,
		CreatedAt: time.Now(),
	}
	f.rows[p.Reference] = txn
	f.created = append(f.created, p.Reference)
	return txn, nil
}

func (f *fakeTxns) MarkFailed(ctx context.Context, reference string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn, ok := f.rows[reference]
	if !ok {
		return transaction.ErrNotFound
	}
	txn.Status = transaction.StatusFailed
	return nil
}

func (f *fakeTxns) complete(reference, providerUsed string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if txn, ok := f.rows[reference]; ok {
		txn.Status = transaction.StatusCompleted
		txn.ProviderUsed = &providerUsed
	}
}

func (f *fakeTxns) status(reference string) transaction.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if txn, ok := f.rows[reference]; ok {
		return txn.Status
	}
	return ""
}

type fakeProviderSource struct {
	providers []provider.Provider
}

func (f *fakeProviderSource) ActiveByCategory(ctx context.Context, category provider.Category) ([]provider.Provider, error) {
	return f.providers, nil
}

type auditEvent struct {
	Action   string
	EntityID string
}

type fakeAuditor struct {
	mu     sync.Mutex
	events []auditEvent
}

func (f *fakeAuditor) Record(userID uuid.UUID, action, entityType, entityID string, metadata map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, auditEvent{Action: action, EntityID: entityID})
}

func (f *fakeAuditor) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Action
	}
	return out
}

type serviceFixture struct {
	svc     *Service
	wallets *fakeWallets
	txns    *fakeTxns
	auditor *fakeAuditor
	client  *scriptedClient
}

func newServiceFixture(balance int64, providers []provider.Provider, results map[string]func() (Result, error)) *serviceFixture {
	txns := newFakeTxns()
	wallets := &fakeWallets{balance: balance, txns: txns}
	auditor := &fakeAuditor{}
	client := &scriptedClient{results: results}
	selector := provider.NewSelector(rand.New(rand.NewSource(1)))
	svc := NewService(
		wallets,
		txns,
		&fakeProviderSource{providers: providers},
		selector,
		NewExecutor(client, time.Second),
		auditor,
		Floors{Airtime: 10000, Data: 10000, Electricity: 100000, TV: 100000},
	)
	return &serviceFixture{svc: svc, wallets: wallets, txns: txns, auditor: auditor, client: client}
}

func TestPurchaseCompletesAndDebitsWallet(t *testing.T) {
	fix := newServiceFixture(100000, []provider.Provider{activeProvider("alpha")},
		map[string]func() (Result, error){
			"alpha": func() (Result, error) { return Result{Success: true, Reference: "ext-1"}, nil },
		})

	receipt, err := fix.svc.Purchase(context.Background(), uuid.New(), airtimeOp(50000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Status != string(transaction.StatusCompleted) {
		t.Fatalf("expected completed receipt, got %s", receipt.Status)
	}
	if receipt.Provider != "alpha" {
		t.Fatalf("expected provider alpha, got %s", receipt.Provider)
	}

	if fix.wallets.balance != 50000 {
		t.Fatalf("expected balance 50000 after debit, got %d", fix.wallets.balance)
	}
	if len(fix.wallets.ledger) != 1 {
		t.Fatalf("expected exactly one ledger entry, got %d", len(fix.wallets.ledger))
	}
	entry := fix.wallets.ledger[0]
	if entry.Direction != wallet.DirectionDebit || entry.BalanceBefore != 100000 || entry.BalanceAfter != 50000 {
		t.Fatalf("unexpected ledger entry: %+v", entry)
	}
	if got := fix.txns.status(receipt.Reference); got != transaction.StatusCompleted {
		t.Fatalf("expected transaction completed, got %s", got)
	}

	actions := fix.auditor.actions()
	if len(actions) != 1 || actions[0] != "airtime_purchased" {
		t.Fatalf("expected single airtime_purchased audit event, got %v", actions)
	}
}

func TestPurchaseInsufficientFundsRejectedBeforeProviders(t *testing.T) {
	fix := newServiceFixture(20000, []provider.Provider{activeProvider("alpha")},
		map[string]func() (Result, error){
			"alpha": func() (Result, error) { return Result{Success: true}, nil },
		})

	_, err := fix.svc.Purchase(context.Background(), uuid.New(), airtimeOp(50000))
	if !errors.Is(err, wallet.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if len(fix.client.calls) != 0 {
		t.Fatalf("no provider may be called on a failed precheck, calls = %v", fix.client.calls)
	}
	if len(fix.txns.created) != 0 {
		t.Fatalf("no transaction row may be created on a failed precheck, got %v", fix.txns.created)
	}
	if fix.wallets.balance != 20000 {
		t.Fatalf("balance must be unchanged, got %d", fix.wallets.balance)
	}
}

func TestPurchaseBelowFloorRejected(t *testing.T) {
	fix := newServiceFixture(100000, []provider.Provider{activeProvider("alpha")}, nil)

	_, err := fix.svc.Purchase(context.Background(), uuid.New(), airtimeOp(5000))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for below-minimum amount, got %v", err)
	}
	if len(fix.txns.created) != 0 {
		t.Fatalf("no transaction row may be created for an invalid request")
	}
}

func TestPurchaseAllProvidersFail(t *testing.T) {
	fail := func() (Result, error) { return Result{}, errors.New("upstream down") }
	fix := newServiceFixture(100000,
		[]provider.Provider{activeProvider("alpha"), activeProvider("beta"), activeProvider("gamma")},
		map[string]func() (Result, error){"alpha": fail, "beta": fail, "gamma": fail})

	_, err := fix.svc.Purchase(context.Background(), uuid.New(), airtimeOp(50000))
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}

	if fix.wallets.balance != 100000 {
		t.Fatalf("balance must be unchanged when all providers fail, got %d", fix.wallets.balance)
	}
	if len(fix.wallets.ledger) != 0 {
		t.Fatalf("no ledger entry may be written when all providers fail")
	}
	if len(fix.txns.created) != 1 {
		t.Fatalf("expected one transaction row, got %d", len(fix.txns.created))
	}
	if got := fix.txns.status(fix.txns.created[0]); got != transaction.StatusFailed {
		t.Fatalf("expected transaction failed, got %s", got)
	}

	actions := fix.auditor.actions()
	if len(actions) != 3 {
		t.Fatalf("expected one provider-failed audit event per attempt, got %v", actions)
	}
	for _, a := range actions {
		if a != "airtime_provider_failed" {
			t.Fatalf("unexpected audit action %q", a)
		}
	}
}

func TestPurchaseNoProvidersConfigured(t *testing.T) {
	fix := newServiceFixture(100000, nil, nil)

	_, err := fix.svc.Purchase(context.Background(), uuid.New(), airtimeOp(50000))
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
	if len(fix.txns.created) != 1 {
		t.Fatalf("expected the processing row to exist before the registry check")
	}
	if got := fix.txns.status(fix.txns.created[0]); got != transaction.StatusFailed {
		t.Fatalf("expected transaction failed, got %s", got)
	}
}

func TestPurchaseDebitRejectedAtFinalize(t *testing.T) {
	fix := newServiceFixture(100000, []provider.Provider{activeProvider("alpha")},
		map[string]func() (Result, error){
			"alpha": func() (Result, error) { return Result{Success: true}, nil },
		})

	// Drain the wallet between the precheck and the provider success.
	fix.client.results["alpha"] = func() (Result, error) {
		fix.wallets.mu.Lock()
		fix.wallets.balance = 1000
		fix.wallets.mu.Unlock()
		return Result{Success: true}, nil
	}

	_, err := fix.svc.Purchase(context.Background(), uuid.New(), airtimeOp(50000))
	if !errors.Is(err, wallet.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds at finalize, got %v", err)
	}
	if fix.wallets.balance != 1000 {
		t.Fatalf("wallet must never be overdrawn, got %d", fix.wallets.balance)
	}
	if got := fix.txns.status(fix.txns.created[0]); got != transaction.StatusFailed {
		t.Fatalf("expected transaction failed, got %s", got)
	}

	actions := fix.auditor.actions()
	found := false
	for _, a := range actions {
		if a == "purchase_debit_rejected" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected purchase_debit_rejected audit event, got %v", actions)
	}
}

func TestPurchaseReferenceFormat(t *testing.T) {
	fix := newServiceFixture(200000, []provider.Provider{activeProvider("alpha")},
		map[string]func() (Result, error){
			"alpha": func() (Result, error) { return Result{Success: true}, nil },
		})

	receipt, err := fix.svc.Purchase(context.Background(), uuid.New(), airtimeOp(50000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(receipt.Reference, "BB_AIRTIME_") {
		t.Fatalf("unexpected reference format: %q", receipt.Reference)
	}
}
