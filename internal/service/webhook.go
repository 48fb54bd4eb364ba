package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bristywardah/R-Nold/internal/domain"
	"github.com/bristywardah/R-Nold/internal/gateway"
	"github.com/bristywardah/R-Nold/internal/repository"
	"github.com/bristywardah/R-Nold/pkg/ctxlog"
	"github.com/bristywardah/R-Nold/pkg/outbox"
)

// WebhookService turns verified provider events into order state changes,
// payment records and notification fan-out, all in one transaction keyed by
// the provider event id.
type WebhookService interface {
	ProcessEvent(ctx context.Context, payload []byte, sigHeader string) error
}

type webhookService struct {
	pool        *pgxpool.Pool
	logger      *zap.Logger
	gateway     gateway.PaymentGateway
	orderRepo   repository.OrderRepository
	paymentRepo repository.PaymentRepository
	userRepo    repository.UserRepository
	notifier    NotificationService
	tracer      trace.Tracer
}

func NewWebhookService(
	pool *pgxpool.Pool,
	logger *zap.Logger,
	gw gateway.PaymentGateway,
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentRepository,
	userRepo repository.UserRepository,
	notifier NotificationService,
) WebhookService {
	return &webhookService{
		pool:        pool,
		logger:      logger,
		gateway:     gw,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		tracer:      otel.Tracer("webhook_service"),
	}
}

// eventFacts is what the pipeline needs from a provider event, independent of
// which object type carried it.
type eventFacts struct {
	trigger       domain.Trigger
	orderID       string
	transactionID string
	amount        *decimal.Decimal
}

func (s *webhookService) ProcessEvent(ctx context.Context, payload []byte, sigHeader string) error {
	ctx, span := s.tracer.Start(ctx, "WebhookService.ProcessEvent")
	defer span.End()

	event, err := s.gateway.VerifyEvent(payload, sigHeader)
	if err != nil {
		ctxlog.Warn(ctx, s.logger, "Webhook signature verification failed", zap.Error(err))
		return err
	}
	span.SetAttributes(
		attribute.String("event_id", event.ID),
		attribute.String("event_type", string(event.Type)),
	)

	facts, err := extractFacts(&event)
	if err != nil {
		ctxlog.Warn(
			ctx,
			s.logger,
			"Webhook event missing required data",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)

		return err
	}
	if facts == nil {
		ctxlog.Debug(
			ctx,
			s.logger,
			"Ignoring webhook event type",
			zap.String("event_type", string(event.Type)),
		)

		return nil
	}

	return s.apply(ctx, event.ID, facts)
}

// extractFacts returns nil facts for event types the pipeline does not react
// to, and an error when a handled type lacks the order reference.
func extractFacts(event *stripe.Event) (*eventFacts, error) {
	switch string(event.Type) {
	case gateway.EventCheckoutCompleted, gateway.EventCheckoutExpired:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("unmarshal checkout session: %v: %w", err, ErrEventMalformed)
		}
		orderID := session.Metadata["order_id"]
		if orderID == "" {
			return nil, fmt.Errorf("checkout session has no order_id metadata: %w", ErrEventMalformed)
		}

		facts := &eventFacts{orderID: orderID, transactionID: session.ID}
		if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
			facts.transactionID = session.PaymentIntent.ID
		}
		if string(event.Type) == gateway.EventCheckoutCompleted {
			facts.trigger = domain.TriggerCheckoutCompleted
			amount := decimal.New(session.AmountTotal, -2)
			facts.amount = &amount
		} else {
			facts.trigger = domain.TriggerCheckoutExpired
		}
		return facts, nil

	case gateway.EventPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, fmt.Errorf("unmarshal payment intent: %v: %w", err, ErrEventMalformed)
		}
		orderID := intent.Metadata["order_id"]
		if orderID == "" {
			return nil, fmt.Errorf("payment intent has no order_id metadata: %w", ErrEventMalformed)
		}
		return &eventFacts{
			trigger:       domain.TriggerPaymentFailed,
			orderID:       orderID,
			transactionID: intent.ID,
		}, nil
	}

	return nil, nil
}

func (s *webhookService) apply(ctx context.Context, eventID string, facts *eventFacts) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		shutdownCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(shutdownCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			ctxlog.Warn(shutdownCtx, s.logger, "Error rolling back transaction", zap.Error(err))
		}
	}()

	fresh, err := outbox.RecordProcessed(ctx, tx, eventID)
	if err != nil {
		return err
	}
	if !fresh {
		ctxlog.Info(
			ctx,
			s.logger,
			"Webhook event already processed",
			zap.String("event_id", eventID),
		)

		return nil
	}

	// An unknown order rolls everything back, dedup row included, so the
	// provider keeps redelivering until the order exists or support steps in.
	order, err := s.orderRepo.GetByOrderIDForUpdate(ctx, tx, facts.orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			ctxlog.Warn(
				ctx,
				s.logger,
				"Webhook references unknown order",
				zap.String("order_id", facts.orderID),
			)
		}
		return err
	}

	nextOS, nextPS, err := domain.Apply(order, facts.trigger)
	if err != nil {
		var te *domain.TransitionError
		if errors.As(err, &te) {
			// The event arrived for an order that already moved on. Remember
			// the event id so redelivery stops, but change nothing.
			ctxlog.Warn(
				ctx,
				s.logger,
				"Webhook trigger rejected by order state",
				zap.String("order_id", facts.orderID),
				zap.String("trigger", string(facts.trigger)),
				zap.Error(err),
			)

			return tx.Commit(ctx)
		}
		return err
	}

	changed := nextOS != order.OrderStatus || nextPS != order.PaymentStatus
	if !changed {
		ctxlog.Info(
			ctx,
			s.logger,
			"Webhook replay landed on current state",
			zap.String("order_id", facts.orderID),
			zap.String("trigger", string(facts.trigger)),
		)

		return tx.Commit(ctx)
	}

	if err := s.orderRepo.UpdateStatuses(ctx, tx, order.ID, nextOS, nextPS); err != nil {
		return err
	}
	order.OrderStatus, order.PaymentStatus = nextOS, nextPS

	if err := s.recordPayment(ctx, tx, order, facts); err != nil {
		return err
	}

	if err := s.fanOut(ctx, tx, order, facts.trigger); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		ctxlog.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	ctxlog.Info(
		ctx,
		s.logger,
		"Webhook event applied",
		zap.String("event_id", eventID),
		zap.String("order_id", order.OrderID),
		zap.String("order_status", string(order.OrderStatus)),
		zap.String("payment_status", string(order.PaymentStatus)),
	)

	return nil
}

func (s *webhookService) recordPayment(ctx context.Context, tx pgx.Tx, order *domain.Order, facts *eventFacts) error {
	var status domain.PaymentRecordStatus
	amount := order.TotalAmount

	switch facts.trigger {
	case domain.TriggerCheckoutCompleted:
		status = domain.PaymentRecordCompleted
		if facts.amount != nil {
			amount = *facts.amount
		}
	case domain.TriggerPaymentFailed:
		status = domain.PaymentRecordFailed
	default:
		// Expiry means the customer never paid; there is nothing to settle.
		return nil
	}

	if status == domain.PaymentRecordCompleted && !amount.Equal(order.TotalAmount) {
		ctxlog.Warn(
			ctx,
			s.logger,
			"Charged amount does not match order total",
			zap.String("order_id", order.OrderID),
			zap.String("charged", amount.StringFixed(2)),
			zap.String("order_total", order.TotalAmount.StringFixed(2)),
		)
	}

	payment := &domain.Payment{
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		VendorID:      order.VendorID,
		Amount:        amount,
		PaymentMethod: "stripe",
		TransactionID: facts.transactionID,
		Status:        status,
	}
	return s.paymentRepo.Upsert(ctx, tx, payment)
}

// fanOut writes the lifecycle notifications for the applied trigger. Admins
// are told about successful payments only.
func (s *webhookService) fanOut(ctx context.Context, tx pgx.Tx, order *domain.Order, trigger domain.Trigger) error {
	customer, err := s.userRepo.Get(ctx, order.CustomerID)
	if err != nil {
		return err
	}
	vendor, err := s.userRepo.Get(ctx, order.VendorID)
	if err != nil {
		return err
	}

	switch trigger {
	case domain.TriggerCheckoutCompleted:
		if err := s.notifier.Notify(ctx, tx, customer, domain.OrderPaidCustomerMessage(order), domain.OrderMeta(order, nil)); err != nil {
			return err
		}
		if err := s.notifier.Notify(ctx, tx, vendor, domain.OrderPaidVendorMessage(order, customer), domain.OrderMeta(order, customer)); err != nil {
			return err
		}

		admins, err := s.userRepo.ActiveAdmins(ctx)
		if err != nil {
			return err
		}
		for i := range admins {
			admin := &admins[i]
			if err := s.notifier.Notify(ctx, tx, admin, domain.OrderPaidAdminMessage(order, customer, vendor), domain.OrderMeta(order, nil)); err != nil {
				return err
			}
		}

	case domain.TriggerCheckoutExpired, domain.TriggerPaymentFailed:
		if err := s.notifier.Notify(ctx, tx, customer, domain.OrderCancelledCustomerMessage(order), domain.OrderMeta(order, nil)); err != nil {
			return err
		}
		if err := s.notifier.Notify(ctx, tx, vendor, domain.OrderCancelledVendorMessage(order, customer), domain.OrderMeta(order, customer)); err != nil {
			return err
		}
	}

	return nil
}
