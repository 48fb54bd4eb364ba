package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one (user, product) pair in a cart. The unit price is snapshotted
// when the line is created or its quantity replaced, so later product price
// changes do not move an already-built cart.
type CartLine struct {
	ID            int64           `db:"id" json:"id"`
	UserID        int64           `db:"user_id" json:"user_id"`
	ProductID     int64           `db:"product_id" json:"product_id"`
	Quantity      int64           `db:"quantity" json:"quantity"`
	PriceSnapshot decimal.Decimal `db:"price_snapshot" json:"price_snapshot"`
	SavedForLater bool            `db:"saved_for_later" json:"saved_for_later"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`

	// Populated by list queries for vendor resolution and stock checks.
	ProductVendorID int64 `db:"product_vendor_id" json:"-"`
	ProductName     string `db:"product_name" json:"product_name,omitempty"`
}

func (c *CartLine) Subtotal() decimal.Decimal {
	return c.PriceSnapshot.Mul(decimal.NewFromInt(c.Quantity))
}
