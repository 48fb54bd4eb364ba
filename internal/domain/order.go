package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type DeliveryType string

const (
	DeliveryStandard DeliveryType = "standard"
	DeliveryExpress  DeliveryType = "express"
	DeliveryPickup   DeliveryType = "pickup"
)

func ParseDeliveryType(s string) (DeliveryType, error) {
	switch DeliveryType(s) {
	case DeliveryStandard, DeliveryExpress, DeliveryPickup:
		return DeliveryType(s), nil
	}
	return "", fmt.Errorf("invalid delivery type %q", s)
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return OrderStatus(s), nil
	}
	return "", fmt.Errorf("invalid order status %q", s)
}

type Order struct {
	ID                   int64           `db:"id" json:"-"`
	OrderID              string          `db:"order_id" json:"order_id"`
	CustomerID           int64           `db:"customer_id" json:"customer_id"`
	VendorID             int64           `db:"vendor_id" json:"vendor_id"`
	Subtotal             decimal.Decimal `db:"subtotal" json:"subtotal"`
	DiscountAmount       decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	PromoCode            string          `db:"promo_code" json:"promo_code,omitempty"`
	TaxAmount            decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	DeliveryFee          decimal.Decimal `db:"delivery_fee" json:"delivery_fee"`
	TotalAmount          decimal.Decimal `db:"total_amount" json:"total_amount"`
	ItemCount            int64           `db:"item_count" json:"item_count"`
	DeliveryType         DeliveryType    `db:"delivery_type" json:"delivery_type"`
	DeliveryInstructions string          `db:"delivery_instructions" json:"delivery_instructions,omitempty"`
	PaymentMethod        string          `db:"payment_method" json:"payment_method,omitempty"`
	OrderStatus          OrderStatus     `db:"order_status" json:"order_status"`
	PaymentStatus        PaymentStatus   `db:"payment_status" json:"payment_status"`
	ShippingAddressID    *int64          `db:"shipping_address_id" json:"shipping_address_id,omitempty"`
	EstimatedDelivery    *time.Time      `db:"estimated_delivery" json:"estimated_delivery,omitempty"`
	DeliveryDate         *time.Time      `db:"delivery_date" json:"delivery_date,omitempty"`
	Notes                string          `db:"notes" json:"notes,omitempty"`
	OrderDate            time.Time       `db:"order_date" json:"order_date"`

	Items []OrderItem `db:"-" json:"items,omitempty"`
}

// OrderItem freezes the unit price at assembly time. Items are permanent
// history; they are never updated or deleted after the order exists.
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"-"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Quantity  int64           `db:"quantity" json:"quantity"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Status    OrderStatus     `db:"status" json:"status"`
}

// NewOrderID builds the public order reference: date stamp plus the first
// uuid segment, e.g. ORD20260829A1B2C3D4.
func NewOrderID(now time.Time) string {
	suffix := strings.ToUpper(strings.SplitN(uuid.New().String(), "-", 2)[0])
	return "ORD" + now.Format("20060102") + suffix
}

type ShippingAddress struct {
	ID            int64     `db:"id" json:"id"`
	UserID        *int64    `db:"user_id" json:"user_id,omitempty"`
	FullName      string    `db:"full_name" json:"full_name"`
	PhoneNumber   string    `db:"phone_number" json:"phone_number"`
	Email         string    `db:"email" json:"email,omitempty"`
	StreetAddress string    `db:"street_address" json:"street_address"`
	City          string    `db:"city" json:"city"`
	ZipCode       string    `db:"zip_code" json:"zip_code"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
