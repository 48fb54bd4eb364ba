package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductStatus string

const (
	ProductStatusPending  ProductStatus = "pending"
	ProductStatusApproved ProductStatus = "approved"
	ProductStatusRejected ProductStatus = "rejected"
)

// Product is read-only priced inventory from the checkout pipeline's point of
// view; catalog management lives elsewhere.
type Product struct {
	ID            int64           `db:"id" json:"id"`
	VendorID      int64           `db:"vendor_id" json:"vendor_id"`
	Name          string          `db:"name" json:"name"`
	SKU           string          `db:"sku" json:"sku"`
	Price         decimal.Decimal `db:"price" json:"price"`
	StockTracked  bool            `db:"stock_tracked" json:"stock_tracked"`
	StockQuantity int64           `db:"stock_quantity" json:"stock_quantity"`
	Status        ProductStatus   `db:"status" json:"status"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

func (p *Product) Sellable() bool {
	return p.Status == ProductStatusApproved
}
