package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry is a single append-only audit record. Writes are best-effort: losing
// one never changes the outcome of the operation it describes.
type Entry struct {
	ID         uuid.UUID              `db:"id"`
	UserID     *uuid.UUID             `db:"user_id"`
	Action     string                 `db:"action"`
	EntityType string                 `db:"entity_type"`
	EntityID   *string                `db:"entity_id"`
	Metadata   map[string]interface{} `db:"-"`
	CreatedAt  time.Time              `db:"created_at"`
}
