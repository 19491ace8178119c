package provider

import (
	"time"

	"github.com/google/uuid"
)

// Category identifies the service category a provider fulfills.
type Category string

const (
	CategoryAirtime     Category = "airtime"
	CategoryData        Category = "data"
	CategoryElectricity Category = "electricity"
	CategoryTV          Category = "tv"
)

// Valid reports whether the category is a known service category.
func (c Category) Valid() bool {
	switch c {
	case CategoryAirtime, CategoryData, CategoryElectricity, CategoryTV:
		return true
	}
	return false
}

// Provider is an upstream VTU aggregator configured for one category.
// Selection treats a loaded slice as an immutable snapshot: an admin toggling
// is_active mid-operation does not affect attempts already in flight.
type Provider struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Category  Category  `db:"category" json:"category"`
	Weight    int       `db:"weight" json:"weight"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
