package vtu

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/billbridge/billbridge-api/internal/domain/transaction"
)

// sweeper is the slice of the transaction repository the reconciler uses.
type sweeper interface {
	SweepStuckProcessing(ctx context.Context, olderThan time.Duration) ([]transaction.Transaction, error)
}

// Reconciler periodically fails purchase transactions stuck in processing for
// longer than the TTL.
//
// A row can be stranded in processing by a crash between the durable insert
// and the finalize, or by a finalize failure after provider success. The debit
// only ever commits together with the completed status, so timing a stuck row
// out to failed never strands user funds; any provider-side charge for the
// reference is surfaced through the audit trail for manual reconciliation.
type Reconciler struct {
	txns     sweeper
	auditor  Auditor
	interval time.Duration
	ttl      time.Duration
	stopCh   chan struct{}
}

func NewReconciler(txns sweeper, auditor Auditor, interval, ttl time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Reconciler{
		txns:     txns,
		auditor:  auditor,
		interval: interval,
		ttl:      ttl,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (r *Reconciler) Start() {
	log.Info().Dur("interval", r.interval).Dur("ttl", r.ttl).Msg("Starting transaction reconciler")
	go r.loop()
}

// Stop gracefully stops the reconciler.
func (r *Reconciler) Stop() {
	log.Info().Msg("Stopping transaction reconciler")
	close(r.stopCh)
}

func (r *Reconciler) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.sweep()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Reconciler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	swept, err := r.txns.SweepStuckProcessing(ctx, r.ttl)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sweep stuck transactions")
		return
	}
	if len(swept) == 0 {
		return
	}

	log.Warn().Int("count", len(swept)).Msg("Timed out stuck processing transactions")
	for _, txn := range swept {
		if r.auditor != nil {
			r.auditor.Record(txn.UserID, "transaction_timed_out", "transaction", txn.Reference, map[string]interface{}{
				"type":   string(txn.Type),
				"amount": txn.Amount,
			})
		}
	}
}
