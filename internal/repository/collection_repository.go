package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"pricebook/internal/dag"
	"pricebook/internal/domain"
)

var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrMembershipNotFound = errors.New("collection membership not found")
)

// CollectionRepository defines data access for collections, their hierarchy
// and product memberships. Parent-edge writes run the same bounded-DAG
// validation as product composition, with the collection depth bound.
type CollectionRepository interface {
	Create(ctx context.Context, collection *domain.Collection) error
	FindBySlug(ctx context.Context, slug string) (*domain.Collection, error)
	Children(ctx context.Context, slug string) ([]*domain.Collection, error)
	// Ancestors returns the parent chain from the direct parent up to the
	// root, capped at the configured depth.
	Ancestors(ctx context.Context, slug string) ([]*domain.Collection, error)
	// Descendants returns the subtree below a collection breadth-first,
	// capped at the configured depth.
	Descendants(ctx context.Context, slug string) ([]*domain.Collection, error)
	// FullPath renders the display path from the root, e.g. "Food > Pizza".
	FullPath(ctx context.Context, slug string) (string, error)
	// SetParent rewires the parent edge of a collection (nil detaches it).
	SetParent(ctx context.Context, slug string, parentSlug *string) error
	AddMembership(ctx context.Context, membership *domain.CollectionMembership) error
	// SetPrimary atomically clears any prior primary membership for the
	// product and marks the given membership primary.
	SetPrimary(ctx context.Context, collectionSlug, productSKU string) error
	PrimaryFor(ctx context.Context, productSKU string) (*domain.CollectionMembership, error)
	MembershipsFor(ctx context.Context, productSKU string) ([]*domain.CollectionMembership, error)
}

type collectionRepository struct {
	db       *sql.DB
	maxDepth int
}

// NewCollectionRepository creates a new instance of CollectionRepository.
// maxDepth bounds the hierarchy (see config.CatalogConfig).
func NewCollectionRepository(db *sql.DB, maxDepth int) CollectionRepository {
	return &collectionRepository{db: db, maxDepth: maxDepth}
}

const collectionColumns = `id, slug, name, description, parent_slug,
		valid_from, valid_until, sort_order, active, created_at, updated_at`

// Create inserts a collection, validating the parent chain when one is set.
func (r *collectionRepository) Create(ctx context.Context, collection *domain.Collection) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if collection.ParentSlug != nil {
		if err := r.validateParent(ctx, tx, collection.Slug, *collection.ParentSlug); err != nil {
			return err
		}
	}

	query := fmt.Sprintf(`
		INSERT INTO collections (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, collectionColumns)

	_, err = tx.ExecContext(
		ctx,
		query,
		collection.ID,
		collection.Slug,
		collection.Name,
		collection.Description,
		collection.ParentSlug,
		collection.ValidFrom,
		collection.ValidUntil,
		collection.SortOrder,
		collection.Active,
		collection.CreatedAt,
		collection.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return tx.Commit()
}

// FindBySlug retrieves a collection by its slug
func (r *collectionRepository) FindBySlug(ctx context.Context, slug string) (*domain.Collection, error) {
	query := fmt.Sprintf(`SELECT %s FROM collections WHERE slug = $1`, collectionColumns)

	collection, err := scanCollection(r.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCollectionNotFound
		}
		return nil, fmt.Errorf("failed to find collection by slug: %w", err)
	}

	return collection, nil
}

// Children returns the direct children of a collection ordered for display
func (r *collectionRepository) Children(ctx context.Context, slug string) ([]*domain.Collection, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM collections
		WHERE parent_slug = $1
		ORDER BY sort_order, name
	`, collectionColumns)

	rows, err := r.db.QueryContext(ctx, query, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to list child collections: %w", err)
	}
	defer rows.Close()

	children := []*domain.Collection{}
	for rows.Next() {
		collection, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		children = append(children, collection)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating child collections: %w", err)
	}

	return children, nil
}

// Ancestors walks the parent chain upward. The depth cap mirrors the write
// side validation, so a chain corrupted past the bound cannot loop the walk.
func (r *collectionRepository) Ancestors(ctx context.Context, slug string) ([]*domain.Collection, error) {
	collection, err := r.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	ancestors := []*domain.Collection{}
	for i := 0; i < r.maxDepth && collection.ParentSlug != nil; i++ {
		parent, err := r.FindBySlug(ctx, *collection.ParentSlug)
		if err != nil {
			if errors.Is(err, ErrCollectionNotFound) {
				break
			}
			return nil, err
		}
		ancestors = append(ancestors, parent)
		collection = parent
	}

	return ancestors, nil
}

// Descendants collects the subtree breadth-first, level by level.
func (r *collectionRepository) Descendants(ctx context.Context, slug string) ([]*domain.Collection, error) {
	if _, err := r.FindBySlug(ctx, slug); err != nil {
		return nil, err
	}

	descendants := []*domain.Collection{}
	frontier := []string{slug}
	for level := 0; level < r.maxDepth && len(frontier) > 0; level++ {
		next := []string{}
		for _, current := range frontier {
			children, err := r.Children(ctx, current)
			if err != nil {
				return nil, err
			}
			for _, child := range children {
				descendants = append(descendants, child)
				next = append(next, child.Slug)
			}
		}
		frontier = next
	}

	return descendants, nil
}

// FullPath renders the ancestor names root-first followed by the
// collection's own name.
func (r *collectionRepository) FullPath(ctx context.Context, slug string) (string, error) {
	collection, err := r.FindBySlug(ctx, slug)
	if err != nil {
		return "", err
	}

	ancestors, err := r.Ancestors(ctx, slug)
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		names = append(names, ancestors[i].Name)
	}
	names = append(names, collection.Name)

	return strings.Join(names, " > "), nil
}

// SetParent rewires the parent edge inside a transaction that locks the
// collection row, validates the resulting chain and applies the update.
func (r *collectionRepository) SetParent(ctx context.Context, slug string, parentSlug *string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockGraph(ctx, tx, collectionGraphLockID); err != nil {
		return err
	}

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT slug FROM collections WHERE slug = $1 FOR UPDATE`, slug).Scan(&current)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrCollectionNotFound
		}
		return fmt.Errorf("failed to lock collection: %w", err)
	}

	if parentSlug != nil {
		if err := r.validateParent(ctx, tx, slug, *parentSlug); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE collections SET parent_slug = $2, updated_at = NOW() WHERE slug = $1`,
		slug, parentSlug)
	if err != nil {
		return fmt.Errorf("failed to set collection parent: %w", err)
	}

	return tx.Commit()
}

// validateParent checks the proposed child -> parent edge against the
// hierarchy DAG invariant, reading edges through the transaction.
func (r *collectionRepository) validateParent(ctx context.Context, tx *sql.Tx, slug, parentSlug string) error {
	validator := dag.New(func(ctx context.Context, id string) ([]string, error) {
		var parent sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT parent_slug FROM collections WHERE slug = $1`, id).Scan(&parent)
		if err == sql.ErrNoRows {
			return nil, ErrCollectionNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read collection parent: %w", err)
		}
		if !parent.Valid {
			return nil, nil
		}
		return []string{parent.String}, nil
	}, r.maxDepth)

	return mapDagError(validator.Validate(ctx, slug, parentSlug), "", domain.CodeCycleDetected)
}

// AddMembership inserts a product membership. A primary membership goes
// through the same atomic clear-then-set as SetPrimary.
func (r *collectionRepository) AddMembership(ctx context.Context, membership *domain.CollectionMembership) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if membership.IsPrimary {
		if err := lockProduct(ctx, tx, membership.ProductSKU); err != nil {
			return err
		}
		if err := clearPrimary(ctx, tx, membership.ProductSKU); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO collection_memberships (collection_slug, product_sku, is_primary, sort_order)
		VALUES ($1, $2, $3, $4)
	`, membership.CollectionSlug, membership.ProductSKU, membership.IsPrimary, membership.SortOrder)
	if err != nil {
		return fmt.Errorf("failed to add collection membership: %w", err)
	}

	return tx.Commit()
}

// SetPrimary promotes an existing membership to primary. The prior primary
// for the product, wherever it lives, is demoted in the same transaction.
func (r *collectionRepository) SetPrimary(ctx context.Context, collectionSlug, productSKU string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockProduct(ctx, tx, productSKU); err != nil {
		return err
	}
	if err := clearPrimary(ctx, tx, productSKU); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE collection_memberships
		SET is_primary = TRUE
		WHERE collection_slug = $1 AND product_sku = $2
	`, collectionSlug, productSKU)
	if err != nil {
		return fmt.Errorf("failed to set primary membership: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMembershipNotFound
	}

	return tx.Commit()
}

// PrimaryFor returns the product's primary membership, if any.
func (r *collectionRepository) PrimaryFor(ctx context.Context, productSKU string) (*domain.CollectionMembership, error) {
	query := `
		SELECT collection_slug, product_sku, is_primary, sort_order
		FROM collection_memberships
		WHERE product_sku = $1 AND is_primary
	`

	membership := &domain.CollectionMembership{}
	err := r.db.QueryRowContext(ctx, query, productSKU).Scan(
		&membership.CollectionSlug,
		&membership.ProductSKU,
		&membership.IsPrimary,
		&membership.SortOrder,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to find primary membership: %w", err)
	}

	return membership, nil
}

// MembershipsFor lists every membership of a product
func (r *collectionRepository) MembershipsFor(ctx context.Context, productSKU string) ([]*domain.CollectionMembership, error) {
	query := `
		SELECT collection_slug, product_sku, is_primary, sort_order
		FROM collection_memberships
		WHERE product_sku = $1
		ORDER BY sort_order
	`

	rows, err := r.db.QueryContext(ctx, query, productSKU)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	memberships := []*domain.CollectionMembership{}
	for rows.Next() {
		m := &domain.CollectionMembership{}
		if err := rows.Scan(&m.CollectionSlug, &m.ProductSKU, &m.IsPrimary, &m.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memberships: %w", err)
	}

	return memberships, nil
}

func lockProduct(ctx context.Context, tx *sql.Tx, sku string) error {
	var locked string
	err := tx.QueryRowContext(ctx,
		`SELECT sku FROM products WHERE sku = $1 FOR UPDATE`, sku).Scan(&locked)
	if err == sql.ErrNoRows {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock product: %w", err)
	}
	return nil
}

func clearPrimary(ctx context.Context, tx *sql.Tx, sku string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE collection_memberships
		SET is_primary = FALSE
		WHERE product_sku = $1 AND is_primary
	`, sku)
	if err != nil {
		return fmt.Errorf("failed to clear primary membership: %w", err)
	}
	return nil
}

func scanCollection(row rowScanner) (*domain.Collection, error) {
	collection := &domain.Collection{}
	var parent sql.NullString

	err := row.Scan(
		&collection.ID,
		&collection.Slug,
		&collection.Name,
		&collection.Description,
		&parent,
		&collection.ValidFrom,
		&collection.ValidUntil,
		&collection.SortOrder,
		&collection.Active,
		&collection.CreatedAt,
		&collection.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if parent.Valid {
		collection.ParentSlug = &parent.String
	}

	return collection, nil
}
