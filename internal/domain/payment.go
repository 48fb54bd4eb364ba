package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentRecordStatus string

const (
	PaymentRecordPending   PaymentRecordStatus = "pending"
	PaymentRecordCompleted PaymentRecordStatus = "completed"
	PaymentRecordFailed    PaymentRecordStatus = "failed"
	PaymentRecordRefunded  PaymentRecordStatus = "refunded"
)

// Payment is the provider-side settlement record, at most one per order.
// It is written only by webhook processing.
type Payment struct {
	ID            int64               `db:"id" json:"id"`
	OrderID       int64               `db:"order_id" json:"-"`
	CustomerID    int64               `db:"customer_id" json:"customer_id"`
	VendorID      int64               `db:"vendor_id" json:"vendor_id"`
	Amount        decimal.Decimal     `db:"amount" json:"amount"`
	PaymentMethod string              `db:"payment_method" json:"payment_method"`
	TransactionID string              `db:"transaction_id" json:"transaction_id"`
	Status        PaymentRecordStatus `db:"status" json:"status"`
	CreatedAt     time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time           `db:"updated_at" json:"updated_at"`
}
