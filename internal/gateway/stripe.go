package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bristywardah/R-Nold/internal/domain"
)

// Event types the webhook pipeline reacts to. Anything else is acknowledged
// and ignored.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
	EventPaymentFailed     = "payment_intent.payment_failed"
)

// CheckoutLine is one display row on the hosted payment page. UnitAmount is
// in the currency's smallest unit.
type CheckoutLine struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

type CheckoutSession struct {
	ID  string
	URL string
}

type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, order *domain.Order, lines []CheckoutLine) (*CheckoutSession, error)
	VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

type stripeGateway struct {
	api           *client.API
	webhookSecret string
	successURL    string
	cancelURL     string
	cb            *gobreaker.CircuitBreaker
	tracer        trace.Tracer
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

func NewStripeGateway(cfg StripeConfig, logger *zap.Logger) PaymentGateway {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)

	settings := gobreaker.Settings{
		Name:        "Stripe",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn(
				"Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &stripeGateway{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
		cb:            gobreaker.NewCircuitBreaker(settings),
		tracer:        otel.Tracer("gateway/stripe"),
	}
}

func (g *stripeGateway) CreateCheckoutSession(ctx context.Context, order *domain.Order, lines []CheckoutLine) (*CheckoutSession, error) {
	ctx, span := g.tracer.Start(ctx, "StripeGateway.CreateCheckoutSession")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", order.OrderID))

	params := g.sessionParams(order, lines)
	params.Context = ctx

	result, err := g.cb.Execute(func() (interface{}, error) {
		return g.api.CheckoutSessions.New(params)
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	sess := result.(*stripe.CheckoutSession)
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// sessionParams stamps the order reference onto both the session and the
// payment intent it creates. Failure events arrive on the intent, which does
// not inherit session metadata.
func (g *stripeGateway) sessionParams(order *domain.Order, lines []CheckoutLine) *stripe.CheckoutSessionParams {
	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(lines))
	for _, line := range lines {
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyUSD)),
				UnitAmount: stripe.Int64(line.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(line.Name),
				},
			},
			Quantity: stripe.Int64(line.Quantity),
		})
	}

	metadata := map[string]string{
		"order_id":    order.OrderID,
		"customer_id": fmt.Sprintf("%d", order.CustomerID),
		"vendor_id":   fmt.Sprintf("%d", order.VendorID),
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:  items,
		SuccessURL: stripe.String(g.successURL),
		CancelURL:  stripe.String(g.cancelURL),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	params.Metadata = metadata
	return params
}

// VerifyEvent checks the webhook signature before anything else looks at the
// payload. API version mismatch is tolerated so the dashboard can move ahead
// of the pinned SDK version.
func (g *stripeGateway) VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("verify webhook signature: %w", err)
	}
	return event, nil
}

// ToCents converts a decimal amount into the smallest currency unit.
func ToCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}
