package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const insertTimeout = 3 * time.Second

// Store persists audit entries.
type Store interface {
	Insert(ctx context.Context, entry Entry) error
}

// Repository appends audit entries to the audit_logs table. Rows are never
// updated or deleted.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, entry Entry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("encode audit metadata: %w", err)
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	ctx2, cancel := context.WithTimeout(ctx, insertTimeout)
	defer cancel()

	_, err = r.db.ExecContext(ctx2, `
		INSERT INTO audit_logs (id, user_id, action, entity_type, entity_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.UserID, entry.Action, entry.EntityType, entry.EntityID, metadata)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
