package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Notification kinds; meta_data carries a matching "type" discriminator so
// consumers know how to read the rest of the envelope.
const (
	NotificationChat    = "chat"
	NotificationOrder   = "order"
	NotificationPayment = "payment"
	NotificationProduct = "product"
	NotificationPayout  = "payout"
)

const chatPreviewLimit = 50

type Notification struct {
	ID        int64           `db:"id" json:"id"`
	UserID    int64           `db:"user_id" json:"user_id"`
	SenderID  *int64          `db:"sender_id" json:"sender_id,omitempty"`
	Message   string          `db:"message" json:"message"`
	MetaData  json.RawMessage `db:"meta_data" json:"meta_data,omitempty"`
	Seen      bool            `db:"seen" json:"seen"`
	EventTime time.Time       `db:"event_time" json:"event_time"`
}

// Meta builds the typed meta_data envelope: the type discriminator first,
// optional sender, then event-specific keys.
func Meta(ntype string, sender *User, extras map[string]string) json.RawMessage {
	m := make(map[string]string, len(extras)+3)
	for k, v := range extras {
		m[k] = v
	}
	m["type"] = ntype
	if sender != nil {
		m["sender_id"] = strconv.FormatInt(sender.ID, 10)
		m["sender_email"] = sender.Email
	}
	raw, _ := json.Marshal(m)
	return raw
}

// OrderMeta is the envelope shared by all order-lifecycle notifications.
func OrderMeta(order *Order, sender *User) json.RawMessage {
	return Meta(NotificationOrder, sender, map[string]string{
		"order_id":     order.OrderID,
		"order_status": string(order.OrderStatus),
		"total_amount": order.TotalAmount.StringFixed(2),
		"vendor_id":    strconv.FormatInt(order.VendorID, 10),
		"customer_id":  strconv.FormatInt(order.CustomerID, 10),
	})
}

// ChatPreview truncates a chat message for its notification line. Cutting by
// runes keeps multi-byte characters intact.
func ChatPreview(message string) string {
	runes := []rune(message)
	if len(runes) > chatPreviewLimit {
		return string(runes[:chatPreviewLimit-3]) + "..."
	}
	return message
}

func OrderPaidCustomerMessage(o *Order) string {
	return fmt.Sprintf("Your payment for order #%s was successful.", o.OrderID)
}

func OrderPaidVendorMessage(o *Order, customer *User) string {
	return fmt.Sprintf("You have received a paid order #%s from %s.", o.OrderID, customer.Email)
}

func OrderPaidAdminMessage(o *Order, customer, vendor *User) string {
	return fmt.Sprintf("Order #%s has been paid by %s for vendor %s.", o.OrderID, customer.Email, vendor.Email)
}

func OrderCancelledCustomerMessage(o *Order) string {
	return fmt.Sprintf("Your payment for order #%s was cancelled or expired.", o.OrderID)
}

func OrderCancelledVendorMessage(o *Order, customer *User) string {
	return fmt.Sprintf("Payment for order #%s from %s was cancelled/expired.", o.OrderID, customer.Email)
}

func ChatMessageText(sender *User, preview string) string {
	return fmt.Sprintf("New message from %s: %s", sender.FullName(), preview)
}
