package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository owns the wallets and wallets_ledger tables. Every balance change
// happens inside a transaction holding a row lock on the wallet, with the
// ledger entry and the owning transaction row written under the same commit.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// EnsureWallet creates a zero-balance wallet for the user if none exists.
func (r *Repository) EnsureWallet(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wallets (id, user_id, balance)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.New(), userID)
	return err
}

// GetByUserID loads a user's wallet.
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	var w Wallet
	err := r.db.GetContext(ctx, &w, `
		SELECT id, user_id, balance, updated_at
		FROM wallets
		WHERE user_id = $1
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return &w, nil
}

// Ledger returns the wallet's ledger entries, newest first.
func (r *Repository) Ledger(ctx context.Context, userID uuid.UUID, limit, offset int) ([]LedgerEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	entries := make([]LedgerEntry, 0)
	err := r.db.SelectContext(ctx, &entries, `
		SELECT l.id, l.wallet_id, l.transaction_id, l.amount, l.direction,
		       l.balance_before, l.balance_after, l.description, l.created_at
		FROM wallets_ledger l
		JOIN wallets w ON w.id = l.wallet_id
		WHERE w.user_id = $1
		ORDER BY l.created_at DESC, l.id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	return entries, nil
}

func (r *Repository) beginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

func (r *Repository) lockWallet(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (*Wallet, error) {
	var w Wallet
	err := tx.GetContext(ctx, &w, `
		SELECT id, user_id, balance, updated_at
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	return &w, nil
}

func (r *Repository) updateBalance(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, balance int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets SET balance = $2, updated_at = now() WHERE id = $1
	`, walletID, balance)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	return nil
}

func (r *Repository) insertLedger(ctx context.Context, tx *sqlx.Tx, entry *LedgerEntry) error {
	err := tx.GetContext(ctx, &entry.CreatedAt, `
		INSERT INTO wallets_ledger
			(id, wallet_id, transaction_id, amount, direction, balance_before, balance_after, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, entry.ID, entry.WalletID, entry.TransactionID, entry.Amount,
		string(entry.Direction), entry.BalanceBefore, entry.BalanceAfter, entry.Description)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// DebitPurchaseParams finalizes a successful provider purchase.
type DebitPurchaseParams struct {
	UserID        uuid.UUID
	Amount        int64
	TransactionID uuid.UUID
	Reference     string
	ProviderUsed  string
	Description   string
}

// DebitPurchase debits the wallet, appends the debit ledger entry and flips the
// transaction row to completed, all in one database transaction. The balance is
// re-checked under the row lock, so a concurrent purchase that drained the
// wallet after the coordinator's precheck fails here instead of overdrawing.
func (r *Repository) DebitPurchase(ctx context.Context, p DebitPurchaseParams) (*LedgerEntry, error) {
	if p.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := r.beginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	w, err := r.lockWallet(ctx, tx, p.UserID)
	if err != nil {
		return nil, err
	}

	if w.Balance < p.Amount {
		return nil, ErrInsufficientFunds
	}

	after := w.Balance - p.Amount
	if err := r.updateBalance(ctx, tx, w.ID, after); err != nil {
		return nil, err
	}

	txnID := p.TransactionID
	entry := &LedgerEntry{
		ID:            uuid.New(),
		WalletID:      w.ID,
		TransactionID: &txnID,
		Amount:        p.Amount,
		Direction:     DirectionDebit,
		BalanceBefore: w.Balance,
		BalanceAfter:  after,
		Description:   p.Description,
	}
	if err := r.insertLedger(ctx, tx, entry); err != nil {
		return nil, err
	}

	// Completed and failed are terminal; only a processing transaction may
	// be finalized.
	result, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET status = 'completed', provider_used = $2, updated_at = now()
		WHERE reference = $1 AND status = 'processing'
	`, p.Reference, p.ProviderUsed)
	if err != nil {
		return nil, fmt.Errorf("complete transaction: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("complete transaction: %w", err)
	}
	if rows == 0 {
		return nil, ErrTransactionState
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return entry, nil
}

// CreditFundingParams applies a verified gateway funding to a wallet.
type CreditFundingParams struct {
	UserID        uuid.UUID
	Amount        int64
	TransactionID uuid.UUID
	Reference     string
	Description   string
}

// CreditFunding credits the wallet for a verified funding transaction. The
// reference is the idempotency key: a funding that already completed returns
// ErrAlreadyCompleted without touching the balance.
func (r *Repository) CreditFunding(ctx context.Context, p CreditFundingParams) (*LedgerEntry, error) {
	if p.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := r.beginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.GetContext(ctx, &status, `
		SELECT status FROM transactions WHERE reference = $1 FOR UPDATE
	`, p.Reference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionState
	}
	if err != nil {
		return nil, fmt.Errorf("lock transaction: %w", err)
	}
	switch status {
	case "completed":
		return nil, ErrAlreadyCompleted
	case "pending", "processing":
	default:
		return nil, ErrTransactionState
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (id, user_id, balance)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.New(), p.UserID); err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}

	w, err := r.lockWallet(ctx, tx, p.UserID)
	if err != nil {
		return nil, err
	}

	after := w.Balance + p.Amount
	if err := r.updateBalance(ctx, tx, w.ID, after); err != nil {
		return nil, err
	}

	txnID := p.TransactionID
	entry := &LedgerEntry{
		ID:            uuid.New(),
		WalletID:      w.ID,
		TransactionID: &txnID,
		Amount:        p.Amount,
		Direction:     DirectionCredit,
		BalanceBefore: w.Balance,
		BalanceAfter:  after,
		Description:   p.Description,
	}
	if err := r.insertLedger(ctx, tx, entry); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE transactions SET status = 'completed', updated_at = now()
		WHERE reference = $1
	`, p.Reference); err != nil {
		return nil, fmt.Errorf("complete transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return entry, nil
}

// TransferParams moves funds between two user wallets.
type TransferParams struct {
	SenderID    uuid.UUID
	RecipientID uuid.UUID
	Amount      int64
	Reference   string
	Note        string
}

// Transfer debits the sender and credits the recipient in one transaction,
// writing both transaction rows and both ledger entries. Wallets are locked in
// user-id order so two opposing transfers cannot deadlock.
func (r *Repository) Transfer(ctx context.Context, p TransferParams) (*LedgerEntry, *LedgerEntry, error) {
	if p.Amount <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	if p.SenderID == p.RecipientID {
		return nil, nil, ErrSameWallet
	}

	tx, err := r.beginTx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	first, second := p.SenderID, p.RecipientID
	if strings.Compare(second.String(), first.String()) < 0 {
		first, second = second, first
	}

	locked := map[uuid.UUID]*Wallet{}
	for _, userID := range []uuid.UUID{first, second} {
		w, err := r.lockWallet(ctx, tx, userID)
		if err != nil {
			return nil, nil, err
		}
		locked[userID] = w
	}
	sender, recipient := locked[p.SenderID], locked[p.RecipientID]

	if sender.Balance < p.Amount {
		return nil, nil, ErrInsufficientFunds
	}

	senderTxnID, recipientTxnID := uuid.New(), uuid.New()
	rows := []struct {
		id        uuid.UUID
		userID    uuid.UUID
		reference string
		direction string
		peer      uuid.UUID
	}{
		{senderTxnID, p.SenderID, p.Reference, "out", p.RecipientID},
		{recipientTxnID, p.RecipientID, p.Reference + "_RCP", "in", p.SenderID},
	}
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (id, reference, user_id, type, amount, status, metadata)
			VALUES ($1, $2, $3, 'wallet_transfer', $4, 'completed',
			        jsonb_build_object('direction', $5::text, 'peer_id', $6::text, 'note', $7::text))
		`, row.id, row.reference, row.userID, p.Amount, row.direction, row.peer, p.Note); err != nil {
			return nil, nil, fmt.Errorf("insert transfer transaction: %w", err)
		}
	}

	if err := r.updateBalance(ctx, tx, sender.ID, sender.Balance-p.Amount); err != nil {
		return nil, nil, err
	}
	if err := r.updateBalance(ctx, tx, recipient.ID, recipient.Balance+p.Amount); err != nil {
		return nil, nil, err
	}

	debit := &LedgerEntry{
		ID:            uuid.New(),
		WalletID:      sender.ID,
		TransactionID: &senderTxnID,
		Amount:        p.Amount,
		Direction:     DirectionDebit,
		BalanceBefore: sender.Balance,
		BalanceAfter:  sender.Balance - p.Amount,
		Description:   transferDescription("Transfer to user", p.RecipientID, p.Note),
	}
	credit := &LedgerEntry{
		ID:            uuid.New(),
		WalletID:      recipient.ID,
		TransactionID: &recipientTxnID,
		Amount:        p.Amount,
		Direction:     DirectionCredit,
		BalanceBefore: recipient.Balance,
		BalanceAfter:  recipient.Balance + p.Amount,
		Description:   transferDescription("Transfer from user", p.SenderID, p.Note),
	}
	for _, entry := range []*LedgerEntry{debit, credit} {
		if err := r.insertLedger(ctx, tx, entry); err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit tx: %w", err)
	}
	return debit, credit, nil
}

func transferDescription(prefix string, peer uuid.UUID, note string) string {
	desc := prefix + " " + peer.String()
	if note != "" {
		desc += ": " + note
	}
	return desc
}
