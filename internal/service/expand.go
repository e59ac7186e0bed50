package service

import (
	"context"

	"pricebook/internal/domain"
	"pricebook/internal/repository"

	"github.com/shopspring/decimal"
)

// Expander flattens one level of a bundle's composition. It never recurses:
// a component that is itself a bundle comes back as a single line with its
// multiplied quantity, and the caller expands it with another call if it
// wants to go deeper.
type Expander struct {
	products repository.ProductRepository
}

func NewExpander(products repository.ProductRepository) *Expander {
	return &Expander{products: products}
}

// Expand returns the direct components of a bundle, each quantity
// multiplied by the requested quantity with exact decimal arithmetic.
// Records keep the edges' declaration order.
func (e *Expander) Expand(ctx context.Context, sku string, qty decimal.Decimal) ([]domain.BundleComponent, error) {
	if qty.Sign() <= 0 {
		return nil, domain.NewCatalogError(domain.CodeInvalidQuantity, sku)
	}

	if _, err := e.products.FindBySKU(ctx, sku); err != nil {
		if err == repository.ErrProductNotFound {
			return nil, domain.NewCatalogError(domain.CodeSKUNotFound, sku)
		}
		return nil, err
	}

	edges, err := e.products.Components(ctx, sku)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return nil, domain.NewCatalogError(domain.CodeNotABundle, sku)
	}

	skus := make([]string, len(edges))
	for i, edge := range edges {
		skus[i] = edge.ComponentSKU
	}
	components, err := e.products.FindBySKUs(ctx, skus)
	if err != nil {
		return nil, err
	}

	result := make([]domain.BundleComponent, 0, len(edges))
	for _, edge := range edges {
		name := ""
		if component, ok := components[edge.ComponentSKU]; ok {
			name = component.Name
		}
		result = append(result, domain.BundleComponent{
			SKU:  edge.ComponentSKU,
			Name: name,
			Qty:  edge.Qty.Mul(qty),
		})
	}

	return result, nil
}
