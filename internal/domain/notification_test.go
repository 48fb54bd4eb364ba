package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetaEnvelope(t *testing.T) {
	sender := &User{ID: 7, Email: "vendor@example.com", Role: RoleVendor}

	raw := Meta(NotificationPayout, sender, map[string]string{"amount": "50.00"})

	var m map[string]string
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, NotificationPayout, m["type"])
	assert.Equal(t, "7", m["sender_id"])
	assert.Equal(t, "vendor@example.com", m["sender_email"])
	assert.Equal(t, "50.00", m["amount"])
}

func TestMetaWithoutSender(t *testing.T) {
	raw := Meta(NotificationOrder, nil, nil)

	var m map[string]string
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, NotificationOrder, m["type"])
	_, ok := m["sender_id"]
	assert.False(t, ok)
}

func TestOrderMeta(t *testing.T) {
	order := &Order{
		OrderID:     "ORD20260101AAAA1111",
		OrderStatus: OrderStatusProcessing,
		TotalAmount: decimal.RequireFromString("29.78"),
		VendorID:    3,
		CustomerID:  9,
	}

	var m map[string]string
	require.NoError(t, json.Unmarshal(OrderMeta(order, nil), &m))
	assert.Equal(t, "ORD20260101AAAA1111", m["order_id"])
	assert.Equal(t, "processing", m["order_status"])
	assert.Equal(t, "29.78", m["total_amount"])
	assert.Equal(t, "3", m["vendor_id"])
	assert.Equal(t, "9", m["customer_id"])
}

func TestChatPreview(t *testing.T) {
	short := "hello there"
	assert.Equal(t, short, ChatPreview(short))

	long := strings.Repeat("x", 80)
	preview := ChatPreview(long)
	assert.Len(t, preview, 50)
	assert.True(t, strings.HasSuffix(preview, "..."))
}

func TestChatPreviewMultiByte(t *testing.T) {
	long := strings.Repeat("héllo wörld ", 10)
	preview := ChatPreview(long)
	assert.True(t, utf8.ValidString(preview))
	assert.Equal(t, 50, utf8.RuneCountInString(preview))
	assert.True(t, strings.HasSuffix(preview, "..."))

	exact := strings.Repeat("é", 50)
	assert.Equal(t, exact, ChatPreview(exact))
}

func TestNotificationGroup(t *testing.T) {
	assert.Equal(t, "notifications_admins", (&User{ID: 1, Role: RoleAdmin}).NotificationGroup())
	assert.Equal(t, "notifications_vendor_5", (&User{ID: 5, Role: RoleVendor}).NotificationGroup())
	assert.Equal(t, "notifications_user_9", (&User{ID: 9, Role: RoleCustomer}).NotificationGroup())
}

func TestNewOrderIDFormat(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	id := NewOrderID(now)
	assert.True(t, strings.HasPrefix(id, "ORD20260829"), id)
	suffix := strings.TrimPrefix(id, "ORD20260829")
	assert.Len(t, suffix, 8)
	assert.Equal(t, strings.ToUpper(suffix), suffix)

	assert.NotEqual(t, id, NewOrderID(now), "ids must be unique")
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", (&User{FirstName: "Ada", LastName: "Lovelace"}).FullName())
	assert.Equal(t, "Ada", (&User{FirstName: "Ada"}).FullName())
	assert.Equal(t, "a@b.c", (&User{Email: "a@b.c"}).FullName())
}
