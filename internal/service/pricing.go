package service

import (
	"context"
	"time"

	"pricebook/internal/domain"
	"pricebook/internal/repository"

	"github.com/shopspring/decimal"
)

// PriceResolver selects the unit price for a product through the layered
// pipeline: base price, then listing override, then quantity-tier
// selection. Listing-level misses are never errors; they fall back to the
// base price so a price always resolves when the SKU exists.
type PriceResolver struct {
	listings repository.ListingRepository
	now      func() time.Time
}

// NewPriceResolver creates a resolver. now is injectable for tests; nil
// means time.Now.
func NewPriceResolver(listings repository.ListingRepository, now func() time.Time) *PriceResolver {
	if now == nil {
		now = time.Now
	}
	return &PriceResolver{listings: listings, now: now}
}

// UnitPrice resolves the unit price in minor units. An empty listing code
// short-circuits to the base price. An unknown or currently invalid listing,
// or one with no qualifying tier, silently degrades to the base price.
func (r *PriceResolver) UnitPrice(ctx context.Context, product *domain.Product, qty decimal.Decimal, listingCode string) (domain.QuantizedAmount, error) {
	if listingCode == "" {
		return product.BasePriceQ, nil
	}

	price, ok, err := r.listingPrice(ctx, product, qty, listingCode)
	if err != nil {
		return 0, err
	}
	if !ok {
		return product.BasePriceQ, nil
	}
	return price, nil
}

// listingPrice returns the tier price for (listing, product, qty), or
// ok=false when the listing or a qualifying tier is absent.
func (r *PriceResolver) listingPrice(ctx context.Context, product *domain.Product, qty decimal.Decimal, listingCode string) (domain.QuantizedAmount, bool, error) {
	listing, err := r.listings.FindByCode(ctx, listingCode)
	if err != nil {
		if err == repository.ErrListingNotFound {
			return 0, false, nil
		}
		return 0, false, err
	}
	if !listing.ValidAt(r.now()) {
		return 0, false, nil
	}

	entries, err := r.listings.EntriesFor(ctx, listing.ID, product.SKU)
	if err != nil {
		return 0, false, err
	}

	// Pick the tier with the largest minQty still <= qty. MinQty values are
	// distinct per (listing, product) by construction, so there is no tie.
	var best *domain.ListingEntry
	for _, entry := range entries {
		if !entry.Published || !entry.Available {
			continue
		}
		if entry.MinQty.GreaterThan(qty) {
			continue
		}
		if best == nil || entry.MinQty.GreaterThan(best.MinQty) {
			best = entry
		}
	}
	if best == nil {
		return 0, false, nil
	}
	return best.PriceQ, true, nil
}
