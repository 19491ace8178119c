package vtu

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/billbridge/billbridge-api/internal/domain/transaction"
)

type fakeSweeper struct {
	mu     sync.Mutex
	swept  []transaction.Transaction
	sweeps int
}

func (f *fakeSweeper) SweepStuckProcessing(ctx context.Context, olderThan time.Duration) ([]transaction.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	if f.sweeps == 1 {
		return f.swept, nil
	}
	return nil, nil
}

func (f *fakeSweeper) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweeps
}

func TestReconcilerAuditsSweptTransactions(t *testing.T) {
	userID := uuid.New()
	sweeper := &fakeSweeper{swept: []transaction.Transaction{
		{ID: uuid.New(), Reference: "BB_AIRTIME_1_AAAA", UserID: userID, Type: transaction.TypeAirtimePurchase, Amount: 50000},
		{ID: uuid.New(), Reference: "BB_DATA_2_BBBB", UserID: userID, Type: transaction.TypeDataPurchase, Amount: 100000},
	}}
	auditor := &fakeAuditor{}

	rec := NewReconciler(sweeper, auditor, time.Hour, 15*time.Minute)
	rec.Start()
	defer rec.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for sweeper.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sweeper.count() == 0 {
		t.Fatal("expected an immediate sweep on start")
	}

	auditor.mu.Lock()
	defer auditor.mu.Unlock()
	if len(auditor.events) != 2 {
		t.Fatalf("expected one audit event per swept transaction, got %d", len(auditor.events))
	}
	for _, e := range auditor.events {
		if e.Action != "transaction_timed_out" {
			t.Fatalf("unexpected audit action %q", e.Action)
		}
	}
}

func TestReconcilerStopEndsLoop(t *testing.T) {
	sweeper := &fakeSweeper{}
	rec := NewReconciler(sweeper, nil, 10*time.Millisecond, time.Minute)
	rec.Start()

	deadline := time.Now().Add(2 * time.Second)
	for sweeper.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	rec.Stop()

	if sweeper.count() < 2 {
		t.Fatalf("expected periodic sweeps, got %d", sweeper.count())
	}
}
