package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// Repository provides access to the configured provider registry.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// ActiveByCategory returns the active providers for a category in insertion
// order. Callers treat the result as a read-only snapshot for the duration of
// an operation.
func (r *Repository) ActiveByCategory(ctx context.Context, category Category) ([]Provider, error) {
	if !category.Valid() {
		return nil, ErrInvalidCategory
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	providers := make([]Provider, 0)
	err := r.db.SelectContext(ctx2, &providers, `
		SELECT id, name, category, weight, is_active, created_at
		FROM providers
		WHERE category = $1 AND is_active = true
		ORDER BY created_at, id
	`, string(category))
	if err != nil {
		return nil, fmt.Errorf("list active providers: %w", err)
	}

	return providers, nil
}

// List returns every configured provider, optionally filtered by category.
func (r *Repository) List(ctx context.Context, category *Category) ([]Provider, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	providers := make([]Provider, 0)
	if category != nil {
		if !category.Valid() {
			return nil, ErrInvalidCategory
		}
		err := r.db.SelectContext(ctx2, &providers, `
			SELECT id, name, category, weight, is_active, created_at
			FROM providers
			WHERE category = $1
			ORDER BY created_at, id
		`, string(*category))
		if err != nil {
			return nil, fmt.Errorf("list providers: %w", err)
		}
		return providers, nil
	}

	err := r.db.SelectContext(ctx2, &providers, `
		SELECT id, name, category, weight, is_active, created_at
		FROM providers
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	return providers, nil
}

// Upsert inserts or updates a provider row by name and category.
func (r *Repository) Upsert(ctx context.Context, p Provider) (uuid.UUID, error) {
	if !p.Category.Valid() {
		return uuid.Nil, ErrInvalidCategory
	}
	if p.Weight < 0 {
		return uuid.Nil, ErrInvalidWeight
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var id uuid.UUID
	err := r.db.GetContext(ctx2, &id, `
		INSERT INTO providers (id, name, category, weight, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name, category) DO UPDATE
		SET weight = EXCLUDED.weight, is_active = EXCLUDED.is_active
		RETURNING id
	`, p.ID, p.Name, string(p.Category), p.Weight, p.IsActive)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert provider: %w", err)
	}
	return id, nil
}

// SetActive toggles a provider's activity flag.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE providers SET is_active = $2 WHERE id = $1
	`, id, active)
	if err != nil {
		return fmt.Errorf("set provider active: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set provider active: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID looks up a single provider.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Provider
	err := r.db.GetContext(ctx2, &p, `
		SELECT id, name, category, weight, is_active, created_at
		FROM providers
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get provider: %w", err)
	}
	return &p, nil
}
