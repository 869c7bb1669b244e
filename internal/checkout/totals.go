package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/vastralabs/vastra-backend/internal/cart"
	"github.com/vastralabs/vastra-backend/pkg/config"
)

// Totals is the priced breakdown of an order before persistence.
type Totals struct {
	SubtotalPaise int64
	TaxPaise      int64
	ShippingPaise int64
	DiscountPaise int64
	TotalPaise    int64
}

// ComputeTotals prices a resolved cart. Tax is computed on the subtotal with
// decimal arithmetic and rounded half away from zero at paise precision, so
// the same cart always produces the same total.
func ComputeTotals(lines []cart.ResolvedLine, cfg config.CheckoutConfig) Totals {
	var subtotal int64
	for _, line := range lines {
		subtotal += line.LineTotalPaise
	}

	taxRate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		taxRate = decimal.Zero
	}
	tax := decimal.NewFromInt(subtotal).Mul(taxRate).Round(0).IntPart()

	// Free shipping only strictly above the threshold; exact equality still
	// pays the flat fee.
	var shipping int64
	if subtotal > 0 && subtotal <= cfg.FreeShippingAbovePaise {
		shipping = cfg.FlatShippingFeePaise
	}

	return Totals{
		SubtotalPaise: subtotal,
		TaxPaise:      tax,
		ShippingPaise: shipping,
		TotalPaise:    subtotal + tax + shipping,
	}
}
