package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pricebook/internal/domain"
	"pricebook/internal/events"

	"github.com/google/uuid"
)

var (
	ErrListingNotFound = errors.New("listing not found")
	ErrEntryNotFound   = errors.New("listing entry not found")
)

// ListingRepository defines data access for listings and their quantity-tier
// price entries.
type ListingRepository interface {
	Create(ctx context.Context, listing *domain.Listing) error
	FindByCode(ctx context.Context, code string) (*domain.Listing, error)
	// SaveEntry upserts a tier keyed by (listing, product, minQty) and emits
	// PriceChanged when an existing tier's stored price actually changes.
	SaveEntry(ctx context.Context, entry *domain.ListingEntry) error
	// EntriesFor returns all tiers of a product within a listing, ordered by
	// ascending minQty.
	EntriesFor(ctx context.Context, listingID uuid.UUID, productSKU string) ([]*domain.ListingEntry, error)
	// AvailableProducts returns products satisfying the five-flag
	// availability conjunction for the listing.
	AvailableProducts(ctx context.Context, code string) ([]*domain.Product, error)
	// EntryAvailable reports whether at least one published+available entry
	// exists for the product in an active listing with the given code.
	EntryAvailable(ctx context.Context, code, productSKU string) (bool, error)
}

type listingRepository struct {
	db   *sql.DB
	sink events.Sink
}

// NewListingRepository creates a new instance of ListingRepository
func NewListingRepository(db *sql.DB, sink events.Sink) ListingRepository {
	return &listingRepository{db: db, sink: sink}
}

// Create inserts a new listing
func (r *listingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	query := `
		INSERT INTO listings (id, code, name, description, valid_from, valid_until,
			priority, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		listing.ID,
		listing.Code,
		listing.Name,
		listing.Description,
		listing.ValidFrom,
		listing.ValidUntil,
		listing.Priority,
		listing.Active,
		listing.CreatedAt,
		listing.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}

	return nil
}

// FindByCode retrieves a listing by its unique code
func (r *listingRepository) FindByCode(ctx context.Context, code string) (*domain.Listing, error) {
	query := `
		SELECT id, code, name, description, valid_from, valid_until,
			priority, active, created_at, updated_at
		FROM listings
		WHERE code = $1
	`

	listing := &domain.Listing{}
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&listing.ID,
		&listing.Code,
		&listing.Name,
		&listing.Description,
		&listing.ValidFrom,
		&listing.ValidUntil,
		&listing.Priority,
		&listing.Active,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to find listing by code: %w", err)
	}

	return listing, nil
}

// SaveEntry inserts or updates a quantity tier. A creating save never emits
// an event; an updating save emits PriceChanged only when the stored price
// differs. The row lock linearizes concurrent saves of the same tier.
func (r *listingRepository) SaveEntry(ctx context.Context, entry *domain.ListingEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		existingID  uuid.UUID
		oldPrice    int64
		listingCode string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT e.id, e.price_q, l.code
		FROM listing_entries e
		JOIN listings l ON l.id = e.listing_id
		WHERE e.listing_id = $1 AND e.product_sku = $2 AND e.min_qty = $3
		FOR UPDATE OF e
	`, entry.ListingID, entry.ProductSKU, entry.MinQty).Scan(&existingID, &oldPrice, &listingCode)

	switch {
	case err == sql.ErrNoRows:
		if entry.ID == uuid.Nil {
			entry.ID = uuid.New()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO listing_entries (id, listing_id, product_sku, min_qty,
				price_q, published, available, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, entry.ID, entry.ListingID, entry.ProductSKU, entry.MinQty,
			entry.PriceQ.Int64(), entry.Published, entry.Available,
			entry.CreatedAt, entry.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert listing entry: %w", err)
		}
		return tx.Commit()

	case err != nil:
		return fmt.Errorf("failed to look up listing entry: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE listing_entries
		SET price_q = $2, published = $3, available = $4, updated_at = $5
		WHERE id = $1
	`, existingID, entry.PriceQ.Int64(), entry.Published, entry.Available, entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update listing entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit listing entry: %w", err)
	}

	entry.ID = existingID
	if oldPrice != entry.PriceQ.Int64() {
		event := domain.PriceChanged{
			ListingCode: listingCode,
			SKU:         entry.ProductSKU,
			OldPriceQ:   oldPrice,
			NewPriceQ:   entry.PriceQ.Int64(),
		}
		if err := r.sink.Publish(ctx, event); err != nil {
			return fmt.Errorf("failed to publish price_changed: %w", err)
		}
	}

	return nil
}

// EntriesFor returns the tier ladder for a (listing, product) pair
func (r *listingRepository) EntriesFor(ctx context.Context, listingID uuid.UUID, productSKU string) ([]*domain.ListingEntry, error) {
	query := `
		SELECT id, listing_id, product_sku, min_qty, price_q,
			published, available, created_at, updated_at
		FROM listing_entries
		WHERE listing_id = $1 AND product_sku = $2
		ORDER BY min_qty
	`

	rows, err := r.db.QueryContext(ctx, query, listingID, productSKU)
	if err != nil {
		return nil, fmt.Errorf("failed to list listing entries: %w", err)
	}
	defer rows.Close()

	entries := []*domain.ListingEntry{}
	for rows.Next() {
		entry := &domain.ListingEntry{}
		var price int64
		err := rows.Scan(
			&entry.ID,
			&entry.ListingID,
			&entry.ProductSKU,
			&entry.MinQty,
			&price,
			&entry.Published,
			&entry.Available,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing entry: %w", err)
		}
		entry.PriceQ = domain.QuantizedAmount(price)
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listing entries: %w", err)
	}

	return entries, nil
}

// AvailableProducts applies the availability conjunction in one query:
// product published+available, listing active, entry published+available.
func (r *listingRepository) AvailableProducts(ctx context.Context, code string) ([]*domain.Product, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT %s
		FROM products p
		JOIN listing_entries e ON e.product_sku = p.sku
		JOIN listings l ON l.id = e.listing_id
		WHERE l.code = $1
		  AND l.active
		  AND p.published AND p.available
		  AND e.published AND e.available
		ORDER BY 2
	`, productColumnsP)

	rows, err := r.db.QueryContext(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("failed to list available products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating available products: %w", err)
	}

	return products, nil
}

// EntryAvailable checks the per-channel half of the availability conjunction
func (r *listingRepository) EntryAvailable(ctx context.Context, code, productSKU string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM listing_entries e
			JOIN listings l ON l.id = e.listing_id
			WHERE l.code = $1 AND l.active
			  AND e.product_sku = $2
			  AND e.published AND e.available
		)
	`

	var available bool
	if err := r.db.QueryRowContext(ctx, query, code, productSKU).Scan(&available); err != nil {
		return false, fmt.Errorf("failed to check entry availability: %w", err)
	}

	return available, nil
}
