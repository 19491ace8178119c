package transaction

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrNotFound           = errors.New("transaction not found")
	ErrDuplicateReference = errors.New("duplicate transaction reference")
)

const queryTimeout = 3 * time.Second

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// CreateParams describes a new transaction row.
type CreateParams struct {
	Reference string
	UserID    uuid.UUID
	Type      Type
	Amount    int64
	Status    Status
	Metadata  map[string]interface{}
}

// Create inserts a transaction row. Purchases insert with status processing
// before any provider call so a crash leaves an auditable trace; funding
// inserts with status pending before the gateway redirect.
func (r *Repository) Create(ctx context.Context, p CreateParams) (*Transaction, error) {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	txn := Transaction{
		ID:        uuid.New(),
		Reference: p.Reference,
		UserID:    p.UserID,
		Type:      p.Type,
		Amount:    p.Amount,
		Status:    p.Status,
		Metadata:  metadata,
	}
	err = r.db.GetContext(ctx2, &txn.CreatedAt, `
		INSERT INTO transactions (id, reference, user_id, type, amount, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, txn.ID, txn.Reference, txn.UserID, string(txn.Type), txn.Amount, string(txn.Status), metadata)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrDuplicateReference
		}
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	txn.UpdatedAt = txn.CreatedAt
	return &txn, nil
}

// MarkFailed moves a transaction to failed. Terminal states are left alone:
// the update is conditional on the row still being pending or processing.
func (r *Repository) MarkFailed(ctx context.Context, reference string) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE transactions
		SET status = 'failed', updated_at = now()
		WHERE reference = $1 AND status IN ('pending', 'processing')
	`, reference)
	if err != nil {
		return fmt.Errorf("mark transaction failed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark transaction failed: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByReference loads a transaction by its reference.
func (r *Repository) GetByReference(ctx context.Context, reference string) (*Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var txn Transaction
	err := r.db.GetContext(ctx2, &txn, `
		SELECT id, reference, user_id, type, amount, status, provider_used, metadata, created_at, updated_at
		FROM transactions
		WHERE reference = $1
	`, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &txn, nil
}

// ListByUser returns the user's transactions, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 20
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	txns := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &txns, `
		SELECT id, reference, user_id, type, amount, status, provider_used, metadata, created_at, updated_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txns, nil
}

// SweepStuckProcessing fails purchase transactions that have sat in processing
// longer than the cutoff and returns the affected rows. The wallet is never
// debited before finalize, so failing a stuck row cannot strand funds.
func (r *Repository) SweepStuckProcessing(ctx context.Context, olderThan time.Duration) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	txns := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &txns, `
		UPDATE transactions
		SET status = 'failed', updated_at = now()
		WHERE status = 'processing' AND updated_at < now() - $1::interval
		RETURNING id, reference, user_id, type, amount, status, provider_used, metadata, created_at, updated_at
	`, fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return nil, fmt.Errorf("sweep stuck transactions: %w", err)
	}
	return txns, nil
}
