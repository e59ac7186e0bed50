package domain

// Event is a domain event emitted at a defined write point.
type Event interface {
	// EventName is the stable event identifier used for routing.
	EventName() string
}

// ProductCreated is emitted exactly once, the first time a product row is
// persisted. Subsequent updates never re-emit it.
type ProductCreated struct {
	SKU string `json:"sku"`
}

func (ProductCreated) EventName() string { return "product_created" }

// PriceChanged is emitted when a listing entry's stored price actually
// changes. It is not emitted on the creating save or on a no-op re-save.
type PriceChanged struct {
	ListingCode string `json:"listing_code"`
	SKU         string `json:"sku"`
	OldPriceQ   int64  `json:"old_price_q"`
	NewPriceQ   int64  `json:"new_price_q"`
}

func (PriceChanged) EventName() string { return "price_changed" }
