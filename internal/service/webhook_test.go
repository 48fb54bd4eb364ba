package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"github.com/bristywardah/R-Nold/internal/domain"
)

func makeEvent(t *testing.T, eventType string, object any) *stripe.Event {
	t.Helper()

	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return &stripe.Event{
		ID:   "evt_test",
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestExtractFactsCheckoutCompleted(t *testing.T) {
	event := makeEvent(t, "checkout.session.completed", map[string]any{
		"id":           "cs_123",
		"amount_total": 2978,
		"metadata":     map[string]string{"order_id": "ORD20260829AAAA1111"},
		"payment_intent": map[string]any{
			"id": "pi_456",
		},
	})

	facts, err := extractFacts(event)
	require.NoError(t, err)
	require.NotNil(t, facts)
	assert.Equal(t, domain.TriggerCheckoutCompleted, facts.trigger)
	assert.Equal(t, "ORD20260829AAAA1111", facts.orderID)
	assert.Equal(t, "pi_456", facts.transactionID)
	require.NotNil(t, facts.amount)
	assert.Equal(t, "29.78", facts.amount.StringFixed(2))
}

func TestExtractFactsCheckoutExpired(t *testing.T) {
	event := makeEvent(t, "checkout.session.expired", map[string]any{
		"id":       "cs_123",
		"metadata": map[string]string{"order_id": "ORD20260829AAAA1111"},
	})

	facts, err := extractFacts(event)
	require.NoError(t, err)
	require.NotNil(t, facts)
	assert.Equal(t, domain.TriggerCheckoutExpired, facts.trigger)
	assert.Equal(t, "cs_123", facts.transactionID, "session id stands in without a payment intent")
	assert.Nil(t, facts.amount)
}

func TestExtractFactsPaymentFailed(t *testing.T) {
	event := makeEvent(t, "payment_intent.payment_failed", map[string]any{
		"id":       "pi_789",
		"metadata": map[string]string{"order_id": "ORD20260829BBBB2222"},
	})

	facts, err := extractFacts(event)
	require.NoError(t, err)
	require.NotNil(t, facts)
	assert.Equal(t, domain.TriggerPaymentFailed, facts.trigger)
	assert.Equal(t, "pi_789", facts.transactionID)
}

func TestExtractFactsIgnoresUnknownTypes(t *testing.T) {
	event := makeEvent(t, "customer.created", map[string]any{"id": "cus_1"})

	facts, err := extractFacts(event)
	require.NoError(t, err)
	assert.Nil(t, facts)
}

func TestExtractFactsMissingOrderID(t *testing.T) {
	event := makeEvent(t, "checkout.session.completed", map[string]any{
		"id":       "cs_123",
		"metadata": map[string]string{},
	})

	_, err := extractFacts(event)
	assert.ErrorIs(t, err, ErrEventMalformed)
}

func TestExtractFactsMissingIntentOrderID(t *testing.T) {
	event := makeEvent(t, "payment_intent.payment_failed", map[string]any{
		"id":       "pi_123",
		"metadata": map[string]string{},
	})

	_, err := extractFacts(event)
	assert.ErrorIs(t, err, ErrEventMalformed)
}
