package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Listing is a named pricing context for a sales channel. By convention the
// listing code matches the channel code (loose coupling, no FK).
type Listing struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Code        string     `json:"code" db:"code"`
	Name        string     `json:"name" db:"name"`
	Description string     `json:"description" db:"description"`
	ValidFrom   *time.Time `json:"valid_from,omitempty" db:"valid_from"`
	ValidUntil  *time.Time `json:"valid_until,omitempty" db:"valid_until"`
	// Priority orders listings for display; it never drives automatic
	// cross-listing selection.
	Priority  int       `json:"priority" db:"priority"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ValidAt reports whether the listing is usable at the given instant:
// active, and inside the optionally open-ended validity window.
func (l *Listing) ValidAt(t time.Time) bool {
	if !l.Active {
		return false
	}
	if l.ValidFrom != nil && t.Before(*l.ValidFrom) {
		return false
	}
	if l.ValidUntil != nil && t.After(*l.ValidUntil) {
		return false
	}
	return true
}

// ListingEntry is one quantity-tier price point for a product inside a
// listing. Several entries with distinct MinQty values form a volume
// discount ladder; MinQty values are unique per (listing, product) by
// construction.
type ListingEntry struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	ListingID  uuid.UUID       `json:"listing_id" db:"listing_id"`
	ProductSKU string          `json:"product_sku" db:"product_sku"`
	MinQty     decimal.Decimal `json:"min_qty" db:"min_qty"`
	PriceQ     QuantizedAmount `json:"price_q" db:"price_q"`
	Published  bool            `json:"published" db:"published"`
	Available  bool            `json:"available" db:"available"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}
