package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AvailabilityPolicy controls how stock checks treat a product.
type AvailabilityPolicy string

const (
	AvailabilityStockOnly AvailabilityPolicy = "stock_only"
	AvailabilityPlannedOK AvailabilityPolicy = "planned_ok"
	AvailabilityDemandOK  AvailabilityPolicy = "demand_ok"
)

// Product is a sellable catalog item identified by its SKU.
//
// Visibility is two independent flags: Published (shown in the catalog at
// all) and Available (can currently be purchased). An unpublished product
// may still be available as an ingredient of a bundle.
type Product struct {
	ID               uuid.UUID          `json:"id" db:"id"`
	SKU              string             `json:"sku" db:"sku"`
	Name             string             `json:"name" db:"name"`
	ShortDescription string             `json:"short_description" db:"short_description"`
	LongDescription  string             `json:"long_description" db:"long_description"`
	Keywords         []string           `json:"keywords" db:"keywords"`
	Unit             string             `json:"unit" db:"unit"`
	BasePriceQ       QuantizedAmount    `json:"base_price_q" db:"base_price_q"`
	Policy           AvailabilityPolicy `json:"availability_policy" db:"availability_policy"`
	ReferenceCostQ   *QuantizedAmount   `json:"reference_cost_q,omitempty" db:"reference_cost_q"`
	ShelflifeDays    *int               `json:"shelflife_days,omitempty" db:"shelflife_days"`
	Published        bool               `json:"published" db:"published"`
	Available        bool               `json:"available" db:"available"`
	BatchProduced    bool               `json:"batch_produced" db:"batch_produced"`
	Metadata         map[string]string  `json:"metadata,omitempty" db:"metadata"`
	CreatedAt        time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at" db:"updated_at"`
}

// BasePrice is the base price in major units.
func (p *Product) BasePrice() decimal.Decimal {
	return p.BasePriceQ.Major()
}

// Active reports whether the product is both published and available.
func (p *Product) Active() bool {
	return p.Published && p.Available
}

// MarginPercent computes the margin over a production cost as a percentage
// with one decimal place. Returns false when either the cost or the base
// price is missing/zero.
func (p *Product) MarginPercent(cost QuantizedAmount) (decimal.Decimal, bool) {
	if cost == 0 || p.BasePriceQ == 0 {
		return decimal.Decimal{}, false
	}
	margin := decimal.NewFromInt(int64(p.BasePriceQ - cost)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(p.BasePriceQ)), 1)
	return margin, true
}

// ComponentEdge links a bundle product to one of its components with a
// positive decimal quantity. A product with at least one outgoing edge IS
// a bundle; there is no separate bundle entity.
type ComponentEdge struct {
	ParentSKU    string          `json:"parent_sku" db:"parent_sku"`
	ComponentSKU string          `json:"component_sku" db:"component_sku"`
	Qty          decimal.Decimal `json:"qty" db:"qty"`
	Position     int             `json:"position" db:"position"`
}

// BundleComponent is one line of a single-level bundle expansion. Qty is
// the edge quantity multiplied by the requested quantity, exact decimal,
// never currency-quantized.
type BundleComponent struct {
	SKU  string          `json:"sku"`
	Name string          `json:"name"`
	Qty  decimal.Decimal `json:"qty"`
}
