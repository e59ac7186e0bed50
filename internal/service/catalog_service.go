package service

import (
	"context"
	"fmt"
	"time"

	"pricebook/internal/domain"
	"pricebook/internal/repository"

	"github.com/shopspring/decimal"
)

// SkuValidation is the structured result of validating a SKU. A missing SKU
// is a negative result, not an error.
type SkuValidation struct {
	Valid     bool   `json:"valid"`
	SKU       string `json:"sku"`
	Name      string `json:"name,omitempty"`
	Published bool   `json:"published"`
	Available bool   `json:"available"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// PriceDetail carries a resolved price with its unit/total split. The unit
// price is back-computed from the total with half-up rounding so fractional
// quantities never lose minor units.
type PriceDetail struct {
	SKU         string          `json:"sku"`
	UnitPriceQ  int64           `json:"unit_price_q"`
	TotalPriceQ int64           `json:"total_price_q"`
	Qty         decimal.Decimal `json:"qty"`
	ListingCode string          `json:"listing_code,omitempty"`
}

// CatalogService is the read-only facade over the catalog: lookups, price
// resolution, bundle expansion, validation and per-channel availability.
// Every method is a pure function of repository contents and arguments.
type CatalogService interface {
	// Get returns the product, or nil when the SKU does not resolve.
	Get(ctx context.Context, sku string) (*domain.Product, error)
	// GetMany returns products keyed by SKU; missing SKUs are omitted.
	GetMany(ctx context.Context, skus []string) (map[string]*domain.Product, error)
	// Price returns the total price in minor units: resolved unit price
	// multiplied by qty with half-up rounding. priceList overrides channel.
	Price(ctx context.Context, sku string, qty decimal.Decimal, channel, priceList string) (domain.QuantizedAmount, error)
	// PriceDetail is the strict variant: the product must be active and an
	// explicitly requested listing must exist and be currently valid.
	PriceDetail(ctx context.Context, sku string, qty decimal.Decimal, listingCode string) (*PriceDetail, error)
	// Expand flattens one level of a bundle.
	Expand(ctx context.Context, sku string, qty decimal.Decimal) ([]domain.BundleComponent, error)
	// Validate reports structured SKU information without erroring on a
	// missing SKU.
	Validate(ctx context.Context, sku string) (*SkuValidation, error)
	ValidateMany(ctx context.Context, skus []string) (map[string]*SkuValidation, error)
	Search(ctx context.Context, filter repository.SearchFilter) ([]*domain.Product, error)
	// IsProductAvailable holds only when product.published, product.available,
	// listing active-and-in-window, entry.published and entry.available all
	// hold at once.
	IsProductAvailable(ctx context.Context, product *domain.Product, listingCode string) (bool, error)
	AvailableProducts(ctx context.Context, listingCode string) ([]*domain.Product, error)
	// Margin returns the margin percent over the configured cost provider's
	// cost, or ok=false when cost or base price is unknown.
	Margin(ctx context.Context, sku string) (decimal.Decimal, bool, error)
}

type catalogService struct {
	products    repository.ProductRepository
	listings    repository.ListingRepository
	collections repository.CollectionRepository
	resolver    *PriceResolver
	expander    *Expander
	cost        CostProvider
	now         func() time.Time
}

// NewCatalogService wires the facade. cost may be nil, in which case the
// process-wide default provider is used.
func NewCatalogService(
	products repository.ProductRepository,
	listings repository.ListingRepository,
	collections repository.CollectionRepository,
	cost CostProvider,
) CatalogService {
	if cost == nil {
		cost = DefaultCostProvider()
	}
	return &catalogService{
		products:    products,
		listings:    listings,
		collections: collections,
		resolver:    NewPriceResolver(listings, nil),
		expander:    NewExpander(products),
		cost:        cost,
		now:         time.Now,
	}
}

func (s *catalogService) Get(ctx context.Context, sku string) (*domain.Product, error) {
	product, err := s.products.FindBySKU(ctx, sku)
	if err != nil {
		if err == repository.ErrProductNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

func (s *catalogService) GetMany(ctx context.Context, skus []string) (map[string]*domain.Product, error) {
	return s.products.FindBySKUs(ctx, skus)
}

func (s *catalogService) Price(ctx context.Context, sku string, qty decimal.Decimal, channel, priceList string) (domain.QuantizedAmount, error) {
	if qty.Sign() <= 0 {
		return 0, domain.NewCatalogError(domain.CodeInvalidQuantity, sku)
	}

	product, err := s.products.FindBySKU(ctx, sku)
	if err != nil {
		if err == repository.ErrProductNotFound {
			return 0, domain.NewCatalogError(domain.CodeSKUNotFound, sku)
		}
		return 0, err
	}

	// A price-list argument overrides the channel convention; both name a
	// listing code.
	listingCode := priceList
	if listingCode == "" {
		listingCode = channel
	}

	unit, err := s.resolver.UnitPrice(ctx, product, qty, listingCode)
	if err != nil {
		return 0, err
	}

	return unit.MulQty(qty), nil
}

func (s *catalogService) PriceDetail(ctx context.Context, sku string, qty decimal.Decimal, listingCode string) (*PriceDetail, error) {
	if qty.Sign() <= 0 {
		return nil, domain.NewCatalogError(domain.CodeInvalidQuantity, sku)
	}

	product, err := s.products.FindBySKU(ctx, sku)
	if err != nil {
		if err == repository.ErrProductNotFound {
			return nil, domain.NewCatalogError(domain.CodeSKUNotFound, sku)
		}
		return nil, err
	}
	if !product.Active() {
		return nil, domain.NewCatalogError(domain.CodeSKUInactive, sku)
	}

	if listingCode != "" {
		listing, err := s.listings.FindByCode(ctx, listingCode)
		if err != nil {
			if err == repository.ErrListingNotFound {
				return nil, domain.NewCatalogError(domain.CodeInvalidPriceList, sku)
			}
			return nil, err
		}
		if !listing.ValidAt(s.now()) {
			return nil, domain.NewCatalogError(domain.CodePriceListExpired, sku)
		}
	}

	unit, err := s.resolver.UnitPrice(ctx, product, qty, listingCode)
	if err != nil {
		return nil, err
	}

	total := unit.MulQty(qty)
	return &PriceDetail{
		SKU:         sku,
		UnitPriceQ:  total.DivQty(qty).Int64(),
		TotalPriceQ: total.Int64(),
		Qty:         qty,
		ListingCode: listingCode,
	}, nil
}

func (s *catalogService) Expand(ctx context.Context, sku string, qty decimal.Decimal) ([]domain.BundleComponent, error) {
	return s.expander.Expand(ctx, sku, qty)
}

func (s *catalogService) Validate(ctx context.Context, sku string) (*SkuValidation, error) {
	product, err := s.products.FindBySKU(ctx, sku)
	if err != nil {
		if err == repository.ErrProductNotFound {
			return &SkuValidation{
				Valid:     false,
				SKU:       sku,
				ErrorCode: "not_found",
				Message:   fmt.Sprintf("SKU %q not found", sku),
			}, nil
		}
		return nil, fmt.Errorf("failed to validate SKU: %w", err)
	}

	return &SkuValidation{
		Valid:     true,
		SKU:       sku,
		Name:      product.Name,
		Published: product.Published,
		Available: product.Available,
		Message:   validationMessage(product),
	}, nil
}

func (s *catalogService) ValidateMany(ctx context.Context, skus []string) (map[string]*SkuValidation, error) {
	products, err := s.products.FindBySKUs(ctx, skus)
	if err != nil {
		return nil, fmt.Errorf("failed to validate SKUs: %w", err)
	}

	result := make(map[string]*SkuValidation, len(skus))
	for _, sku := range skus {
		product, ok := products[sku]
		if !ok {
			result[sku] = &SkuValidation{
				Valid:     false,
				SKU:       sku,
				ErrorCode: "not_found",
				Message:   fmt.Sprintf("SKU %q not found", sku),
			}
			continue
		}
		result[sku] = &SkuValidation{
			Valid:     true,
			SKU:       sku,
			Name:      product.Name,
			Published: product.Published,
			Available: product.Available,
			Message:   validationMessage(product),
		}
	}
	return result, nil
}

func (s *catalogService) Search(ctx context.Context, filter repository.SearchFilter) ([]*domain.Product, error) {
	return s.products.Search(ctx, filter)
}

func (s *catalogService) IsProductAvailable(ctx context.Context, product *domain.Product, listingCode string) (bool, error) {
	if product == nil || !product.Published || !product.Available {
		return false, nil
	}

	listing, err := s.listings.FindByCode(ctx, listingCode)
	if err != nil {
		if err == repository.ErrListingNotFound {
			return false, nil
		}
		return false, err
	}
	if !listing.ValidAt(s.now()) {
		return false, nil
	}

	return s.listings.EntryAvailable(ctx, listingCode, product.SKU)
}

func (s *catalogService) AvailableProducts(ctx context.Context, listingCode string) ([]*domain.Product, error) {
	listing, err := s.listings.FindByCode(ctx, listingCode)
	if err != nil {
		if err == repository.ErrListingNotFound {
			return []*domain.Product{}, nil
		}
		return nil, err
	}
	if !listing.ValidAt(s.now()) {
		return []*domain.Product{}, nil
	}

	return s.listings.AvailableProducts(ctx, listingCode)
}

func (s *catalogService) Margin(ctx context.Context, sku string) (decimal.Decimal, bool, error) {
	product, err := s.products.FindBySKU(ctx, sku)
	if err != nil {
		if err == repository.ErrProductNotFound {
			return decimal.Decimal{}, false, domain.NewCatalogError(domain.CodeSKUNotFound, sku)
		}
		return decimal.Decimal{}, false, err
	}

	cost, ok, err := s.cost.Cost(ctx, sku)
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("failed to fetch cost: %w", err)
	}
	if !ok {
		return decimal.Decimal{}, false, nil
	}

	margin, ok := product.MarginPercent(cost)
	return margin, ok, nil
}

func validationMessage(product *domain.Product) string {
	if !product.Published {
		return "product is not published in catalog"
	}
	if !product.Available {
		return "product is not available for purchase"
	}
	return ""
}
