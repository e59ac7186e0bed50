package service

import (
	"context"
	"sync"

	"pricebook/internal/domain"
)

// CostProvider supplies the production cost of a product. The catalog never
// computes costs itself; an external system owns them. Implementations
// return ok=false when no cost is known for the SKU.
type CostProvider interface {
	Cost(ctx context.Context, sku string) (cost domain.QuantizedAmount, ok bool, err error)
}

// NoopCostProvider reports no cost for any SKU. It is the default when no
// cost system is configured: margin computations return absent, nothing
// errors.
type NoopCostProvider struct{}

func (NoopCostProvider) Cost(ctx context.Context, sku string) (domain.QuantizedAmount, bool, error) {
	return 0, false, nil
}

var (
	costProviderOnce sync.Once
	costProviderMu   sync.Mutex
	costProvider     CostProvider
)

// DefaultCostProvider returns the process-wide cost provider, lazily
// initializing it to the noop provider on first use.
func DefaultCostProvider() CostProvider {
	costProviderOnce.Do(func() {
		costProviderMu.Lock()
		defer costProviderMu.Unlock()
		if costProvider == nil {
			costProvider = NoopCostProvider{}
		}
	})
	costProviderMu.Lock()
	defer costProviderMu.Unlock()
	return costProvider
}

// SetDefaultCostProvider installs a cost provider before first use, e.g.
// from main after reading configuration. Passing nil resets to noop.
func SetDefaultCostProvider(p CostProvider) {
	costProviderMu.Lock()
	defer costProviderMu.Unlock()
	if p == nil {
		p = NoopCostProvider{}
	}
	costProvider = p
}
