package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pricebook/internal/dag"
	"pricebook/internal/domain"
	"pricebook/internal/events"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrComponentExists  = errors.New("component edge already exists")
	ErrComponentMissing = errors.New("component edge not found")
)

const productColumns = `id, sku, name, short_description, long_description,
		array_to_string(keywords, ','), unit, base_price_q, availability_policy,
		reference_cost_q, shelflife_days, published, available, batch_produced,
		metadata, created_at, updated_at`

// productColumnsP is productColumns qualified with the "p" table alias for
// joined queries.
const productColumnsP = `p.id, p.sku, p.name, p.short_description, p.long_description,
		array_to_string(p.keywords, ','), p.unit, p.base_price_q, p.availability_policy,
		p.reference_cost_q, p.shelflife_days, p.published, p.available, p.batch_produced,
		p.metadata, p.created_at, p.updated_at`

// SearchFilter narrows a product search. Zero values mean "no constraint"
// except the visibility flags, which default to true at the facade.
type SearchFilter struct {
	Query          string
	CollectionSlug string
	Keywords       []string
	OnlyPublished  bool
	OnlyAvailable  bool
	Limit          int
}

// ProductRepository defines data access for products and their composition
// edges. Edge writes run the bounded-DAG validation inside the insert
// transaction; a rejected edge leaves no observable state behind.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	FindBySKU(ctx context.Context, sku string) (*domain.Product, error)
	FindBySKUs(ctx context.Context, skus []string) (map[string]*domain.Product, error)
	Search(ctx context.Context, filter SearchFilter) ([]*domain.Product, error)
	Components(ctx context.Context, parentSKU string) ([]*domain.ComponentEdge, error)
	AddComponent(ctx context.Context, edge *domain.ComponentEdge) error
	RemoveComponent(ctx context.Context, parentSKU, componentSKU string) error
}

type productRepository struct {
	db             *sql.DB
	sink           events.Sink
	bundleMaxDepth int
}

// NewProductRepository creates a new instance of ProductRepository.
// bundleMaxDepth bounds the composition graph (see config.CatalogConfig).
func NewProductRepository(db *sql.DB, sink events.Sink, bundleMaxDepth int) ProductRepository {
	return &productRepository{db: db, sink: sink, bundleMaxDepth: bundleMaxDepth}
}

// Create inserts a new product and emits ProductCreated. The event fires
// only here, never on Update, so it is emitted once per product lifetime.
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (id, sku, name, short_description, long_description,
			keywords, unit, base_price_q, availability_policy, reference_cost_q,
			shelflife_days, published, available, batch_produced, metadata,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, string_to_array(NULLIF($6, ''), ','), $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17)
	`

	metadata, err := metadataValue(product.Metadata)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.SKU,
		product.Name,
		product.ShortDescription,
		product.LongDescription,
		strings.Join(product.Keywords, ","),
		product.Unit,
		product.BasePriceQ.Int64(),
		product.Policy,
		quantizedPtr(product.ReferenceCostQ),
		product.ShelflifeDays,
		product.Published,
		product.Available,
		product.BatchProduced,
		metadata,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	if err := r.sink.Publish(ctx, domain.ProductCreated{SKU: product.SKU}); err != nil {
		return fmt.Errorf("failed to publish product_created: %w", err)
	}

	return nil
}

// Update updates an existing product. No creation event is emitted.
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, short_description = $3, long_description = $4,
		    keywords = string_to_array(NULLIF($5, ''), ','), unit = $6,
		    base_price_q = $7, availability_policy = $8, reference_cost_q = $9,
		    shelflife_days = $10, published = $11, available = $12,
		    batch_produced = $13, metadata = $14, updated_at = $15
		WHERE sku = $1
	`

	metadata, err := metadataValue(product.Metadata)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(
		ctx,
		query,
		product.SKU,
		product.Name,
		product.ShortDescription,
		product.LongDescription,
		strings.Join(product.Keywords, ","),
		product.Unit,
		product.BasePriceQ.Int64(),
		product.Policy,
		quantizedPtr(product.ReferenceCostQ),
		product.ShelflifeDays,
		product.Published,
		product.Available,
		product.BatchProduced,
		metadata,
		product.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindBySKU retrieves a product by its SKU.
func (r *productRepository) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE sku = $1`, productColumns)

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, sku))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by SKU: %w", err)
	}

	return product, nil
}

// FindBySKUs retrieves a batch of products keyed by SKU. SKUs that do not
// resolve are silently omitted from the result map.
func (r *productRepository) FindBySKUs(ctx context.Context, skus []string) (map[string]*domain.Product, error) {
	result := make(map[string]*domain.Product, len(skus))
	if len(skus) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(skus))
	args := make([]interface{}, len(skus))
	for i, sku := range skus {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = sku
	}

	query := fmt.Sprintf(`SELECT %s FROM products WHERE sku IN (%s)`,
		productColumns, strings.Join(placeholders, ", "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find products by SKUs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		result[product.SKU] = product
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return result, nil
}

// Search filters products by text query, collection membership, keywords
// and visibility flags.
func (r *productRepository) Search(ctx context.Context, filter SearchFilter) ([]*domain.Product, error) {
	conditions := []string{}
	args := []interface{}{}
	argIndex := 1

	if filter.OnlyPublished {
		conditions = append(conditions, "p.published")
	}
	if filter.OnlyAvailable {
		conditions = append(conditions, "p.available")
	}
	if strings.TrimSpace(filter.Query) != "" {
		conditions = append(conditions,
			fmt.Sprintf("(p.sku ILIKE $%d OR p.name ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+filter.Query+"%")
		argIndex++
	}
	if filter.CollectionSlug != "" {
		conditions = append(conditions, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM collection_memberships m
				WHERE m.product_sku = p.sku AND m.collection_slug = $%d)`, argIndex))
		args = append(args, filter.CollectionSlug)
		argIndex++
	}
	if len(filter.Keywords) > 0 {
		conditions = append(conditions,
			fmt.Sprintf("p.keywords && string_to_array($%d, ',')", argIndex))
		args = append(args, strings.Join(filter.Keywords, ","))
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM products p
		%s
		ORDER BY p.name
		LIMIT $%d
	`, productColumnsP, whereClause, argIndex)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
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
		return nil, fmt.Errorf("error iterating search results: %w", err)
	}

	return products, nil
}

// Components returns the direct component edges of a product in their
// declaration order.
func (r *productRepository) Components(ctx context.Context, parentSKU string) ([]*domain.ComponentEdge, error) {
	query := `
		SELECT parent_sku, component_sku, qty, position
		FROM product_components
		WHERE parent_sku = $1
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, parentSKU)
	if err != nil {
		return nil, fmt.Errorf("failed to list components: %w", err)
	}
	defer rows.Close()

	edges := []*domain.ComponentEdge{}
	for rows.Next() {
		edge := &domain.ComponentEdge{}
		if err := rows.Scan(&edge.ParentSKU, &edge.ComponentSKU, &edge.Qty, &edge.Position); err != nil {
			return nil, fmt.Errorf("failed to scan component edge: %w", err)
		}
		edges = append(edges, edge)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating components: %w", err)
	}

	return edges, nil
}

// AddComponent inserts a composition edge after validating that the graph
// stays an acyclic DAG within the configured depth. Validation and insert
// share one transaction holding the graph lock and row locks on both
// products, so concurrent writers cannot race a cycle past the check, even
// ones whose edges touch disjoint rows.
func (r *productRepository) AddComponent(ctx context.Context, edge *domain.ComponentEdge) error {
	// A self edge needs no lookup and would confuse the two-row lock below.
	if edge.ParentSKU == edge.ComponentSKU {
		return domain.NewCatalogError(domain.CodeSelfReference, edge.ParentSKU)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockGraph(ctx, tx, componentGraphLockID); err != nil {
		return err
	}

	// Lock both product rows in deterministic order.
	rows, err := tx.QueryContext(ctx,
		`SELECT sku FROM products WHERE sku IN ($1, $2) ORDER BY sku FOR UPDATE`,
		edge.ParentSKU, edge.ComponentSKU)
	if err != nil {
		return fmt.Errorf("failed to lock products: %w", err)
	}
	locked := 0
	for rows.Next() {
		var sku string
		if err := rows.Scan(&sku); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan locked product: %w", err)
		}
		locked++
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return fmt.Errorf("error locking products: %w", err)
	}
	if locked != 2 {
		return ErrProductNotFound
	}

	validator := dag.New(func(ctx context.Context, sku string) ([]string, error) {
		return componentTargets(ctx, tx, sku)
	}, r.bundleMaxDepth)

	if err := validator.Validate(ctx, edge.ParentSKU, edge.ComponentSKU); err != nil {
		return mapDagError(err, edge.ParentSKU, domain.CodeCircularComponent)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO product_components (parent_sku, component_sku, qty, position)
		VALUES ($1, $2, $3,
			COALESCE((SELECT MAX(position) + 1 FROM product_components WHERE parent_sku = $1), 0))
		ON CONFLICT (parent_sku, component_sku) DO NOTHING
	`, edge.ParentSKU, edge.ComponentSKU, edge.Qty)
	if err != nil {
		return fmt.Errorf("failed to insert component edge: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if inserted == 0 {
		return ErrComponentExists
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit component edge: %w", err)
	}

	return nil
}

// RemoveComponent deletes a composition edge.
func (r *productRepository) RemoveComponent(ctx context.Context, parentSKU, componentSKU string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM product_components WHERE parent_sku = $1 AND component_sku = $2`,
		parentSKU, componentSKU)
	if err != nil {
		return fmt.Errorf("failed to remove component edge: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrComponentMissing
	}

	return nil
}

func componentTargets(ctx context.Context, tx *sql.Tx, sku string) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT component_sku FROM product_components WHERE parent_sku = $1`, sku)
	if err != nil {
		return nil, fmt.Errorf("failed to read component edges: %w", err)
	}
	defer rows.Close()

	targets := []string{}
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("failed to scan component edge: %w", err)
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

// Advisory lock keys, one per edge table. Row locks alone cannot stop two
// writers from joining disjoint chains into a cycle, since those writers
// touch disjoint row sets; a transaction-scoped graph lock serializes all
// edge writes against the same table.
const (
	componentGraphLockID  int64 = 0x70627263 // "pbrc"
	collectionGraphLockID int64 = 0x70627268 // "pbrh"
)

func lockGraph(ctx context.Context, tx *sql.Tx, lockID int64) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, lockID); err != nil {
		return fmt.Errorf("failed to acquire graph lock: %w", err)
	}
	return nil
}

// mapDagError converts validator sentinels into the catalog error taxonomy.
// cycleCode distinguishes CIRCULAR_COMPONENT (composition) from
// CYCLE_DETECTED (hierarchy).
func mapDagError(err error, sku string, cycleCode domain.ErrorCode) error {
	switch {
	case errors.Is(err, dag.ErrSelfReference):
		return domain.NewCatalogError(domain.CodeSelfReference, sku)
	case errors.Is(err, dag.ErrCycle):
		return domain.NewCatalogError(cycleCode, sku)
	case errors.Is(err, dag.ErrDepthExceeded):
		return domain.NewCatalogError(domain.CodeDepthExceeded, sku)
	default:
		return err
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	var keywords string
	var refCost sql.NullInt64
	var basePrice int64
	var metadata []byte

	err := row.Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.ShortDescription,
		&product.LongDescription,
		&keywords,
		&product.Unit,
		&basePrice,
		&product.Policy,
		&refCost,
		&product.ShelflifeDays,
		&product.Published,
		&product.Available,
		&product.BatchProduced,
		&metadata,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	product.BasePriceQ = domain.QuantizedAmount(basePrice)
	if keywords != "" {
		product.Keywords = strings.Split(keywords, ",")
	}
	if refCost.Valid {
		cost := domain.QuantizedAmount(refCost.Int64)
		product.ReferenceCostQ = &cost
	}
	if len(metadata) > 0 {
		m := map[string]string{}
		if err := json.Unmarshal(metadata, &m); err != nil {
			return nil, fmt.Errorf("failed to decode product metadata: %w", err)
		}
		if len(m) > 0 {
			product.Metadata = m
		}
	}

	return product, nil
}

// metadataValue serializes the metadata map for the JSONB column. A nil map
// stores an empty object.
func metadataValue(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode product metadata: %w", err)
	}
	return payload, nil
}

func quantizedPtr(a *domain.QuantizedAmount) interface{} {
	if a == nil {
		return nil
	}
	return a.Int64()
}
