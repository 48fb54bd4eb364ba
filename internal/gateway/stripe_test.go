package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bristywardah/R-Nold/internal/domain"
)

const testWebhookSecret = "whsec_test_secret"

func testGateway() PaymentGateway {
	return NewStripeGateway(StripeConfig{
		SecretKey:     "sk_test_key",
		WebhookSecret: testWebhookSecret,
		SuccessURL:    "http://localhost/success",
		CancelURL:     "http://localhost/cancel",
	}, zap.NewNop())
}

// signPayload builds the provider's signature header for a raw body.
func signPayload(secret string, payload []byte, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyEventAcceptsValidSignature(t *testing.T) {
	gw := testGateway()
	payload := []byte(`{"id":"evt_123","type":"checkout.session.completed","data":{"object":{"id":"cs_1","metadata":{"order_id":"ORD20260829AAAA1111"}}}}`)

	event, err := gw.VerifyEvent(payload, signPayload(testWebhookSecret, payload, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "evt_123", event.ID)
	assert.Equal(t, EventCheckoutCompleted, string(event.Type))
}

func TestVerifyEventRejectsBadSignature(t *testing.T) {
	gw := testGateway()
	payload := []byte(`{"id":"evt_123","type":"checkout.session.completed"}`)

	_, err := gw.VerifyEvent(payload, signPayload("whsec_other_secret", payload, time.Now()))
	assert.Error(t, err)
}

func TestVerifyEventRejectsTamperedPayload(t *testing.T) {
	gw := testGateway()
	payload := []byte(`{"id":"evt_123","type":"checkout.session.completed"}`)
	header := signPayload(testWebhookSecret, payload, time.Now())

	tampered := []byte(`{"id":"evt_999","type":"checkout.session.completed"}`)
	_, err := gw.VerifyEvent(tampered, header)
	assert.Error(t, err)
}

func TestSessionParamsMetadataOnSessionAndIntent(t *testing.T) {
	gw := testGateway().(*stripeGateway)
	order := &domain.Order{
		OrderID:    "ORD20260829AAAA1111",
		CustomerID: 9,
		VendorID:   3,
	}
	lines := []CheckoutLine{{Name: "Widget", UnitAmount: 2550, Quantity: 1}}

	params := gw.sessionParams(order, lines)

	assert.Equal(t, "ORD20260829AAAA1111", params.Metadata["order_id"])
	assert.Equal(t, "9", params.Metadata["customer_id"])
	assert.Equal(t, "3", params.Metadata["vendor_id"])

	require.NotNil(t, params.PaymentIntentData)
	assert.Equal(t, "ORD20260829AAAA1111", params.PaymentIntentData.Metadata["order_id"])
	assert.Equal(t, "9", params.PaymentIntentData.Metadata["customer_id"])
	assert.Equal(t, "3", params.PaymentIntentData.Metadata["vendor_id"])

	require.Len(t, params.LineItems, 1)
	assert.Equal(t, int64(2550), *params.LineItems[0].PriceData.UnitAmount)
}

func TestToCents(t *testing.T) {
	assert.Equal(t, int64(2978), ToCents(decimal.RequireFromString("29.78")))
	assert.Equal(t, int64(0), ToCents(decimal.Zero))
	assert.Equal(t, int64(100), ToCents(decimal.RequireFromString("1")))
	assert.Equal(t, int64(10), ToCents(decimal.RequireFromString("0.1")))
}
