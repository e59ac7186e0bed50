package domain

import (
	"time"

	"github.com/google/uuid"
)

// Collection is a product grouping. With a parent it behaves as a category
// in a hierarchy; without one it is a flat, optionally time-bounded
// collection. The parent chain must stay acyclic and within the configured
// maximum depth.
type Collection struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Slug        string     `json:"slug" db:"slug"`
	Name        string     `json:"name" db:"name"`
	Description string     `json:"description" db:"description"`
	ParentSlug  *string    `json:"parent_slug,omitempty" db:"parent_slug"`
	ValidFrom   *time.Time `json:"valid_from,omitempty" db:"valid_from"`
	ValidUntil  *time.Time `json:"valid_until,omitempty" db:"valid_until"`
	SortOrder   int        `json:"sort_order" db:"sort_order"`
	Active      bool       `json:"active" db:"active"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// ValidAt reports whether the collection is active and inside its window.
func (c *Collection) ValidAt(t time.Time) bool {
	if !c.Active {
		return false
	}
	if c.ValidFrom != nil && t.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidUntil != nil && t.After(*c.ValidUntil) {
		return false
	}
	return true
}

// CollectionMembership places a product in a collection. At most one
// membership per product may be primary, across all collections.
type CollectionMembership struct {
	CollectionSlug string `json:"collection_slug" db:"collection_slug"`
	ProductSKU     string `json:"product_sku" db:"product_sku"`
	IsPrimary      bool   `json:"is_primary" db:"is_primary"`
	SortOrder      int    `json:"sort_order" db:"sort_order"`
}
