// Package pricing computes order monetary totals. It is pure: the same item
// set, discount and configuration always produce the same Summary, so callers
// recompute on every item change instead of caching.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/bristywardah/R-Nold/internal/domain"
)

// FeeTable maps a delivery type to its configured fee.
type FeeTable map[domain.DeliveryType]decimal.Decimal

type Summary struct {
	Subtotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	DeliveryFee decimal.Decimal
	TotalAmount decimal.Decimal
	ItemCount   int64
}

// Totals derives subtotal, tax, delivery fee and total from the order's item
// set. The discount floors the taxable amount at zero; all money is rounded
// half-up to two decimal places. feeOverride, when non-nil, wins over the
// configured fee for the order's delivery type.
func Totals(items []domain.OrderItem, discount decimal.Decimal, taxRate decimal.Decimal, deliveryType domain.DeliveryType, fees FeeTable, feeOverride *decimal.Decimal) Summary {
	subtotal := decimal.Zero
	var itemCount int64
	for _, it := range items {
		subtotal = subtotal.Add(it.Price.Mul(decimal.NewFromInt(it.Quantity)))
		itemCount += it.Quantity
	}
	subtotal = subtotal.Round(2)

	taxable := subtotal.Sub(discount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	tax := taxRate.Mul(taxable).Round(2)

	var fee decimal.Decimal
	if feeOverride != nil {
		fee = *feeOverride
	} else {
		fee = fees[deliveryType]
	}

	return Summary{
		Subtotal:    subtotal,
		TaxAmount:   tax,
		DeliveryFee: fee,
		TotalAmount: taxable.Add(tax).Add(fee).Round(2),
		ItemCount:   itemCount,
	}
}
