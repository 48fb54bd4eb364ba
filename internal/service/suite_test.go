package service_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	kafkaContainer "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/bristywardah/R-Nold/internal/auth"
	"github.com/bristywardah/R-Nold/internal/domain"
	"github.com/bristywardah/R-Nold/internal/gateway"
	"github.com/bristywardah/R-Nold/internal/pricing"
	"github.com/bristywardah/R-Nold/internal/repository"
	"github.com/bristywardah/R-Nold/internal/service"
	transportkafka "github.com/bristywardah/R-Nold/internal/transport/kafka"
	"github.com/bristywardah/R-Nold/internal/transport/ws"
	pkgkafka "github.com/bristywardah/R-Nold/pkg/kafka"
	"github.com/bristywardah/R-Nold/pkg/outbox"
)

const (
	webhookSecret     = "whsec_integration_secret"
	jwtSecret         = "integration-jwt-secret"
	notificationTopic = "notification_events"
)

type IntegrationTestSuite struct {
	suite.Suite
	PgContainer    *postgres.PostgresContainer
	KafkaContainer *kafkaContainer.KafkaContainer
	KafkaBrokers   []string
	DbPool         *pgxpool.Pool
	Ctx            context.Context

	CartService     service.CartService
	OrderService    service.OrderService
	CheckoutService service.CheckoutService
	WebhookService  service.WebhookService
	PayoutService   service.PayoutService
	NotificationSvc service.NotificationService

	customerID int64
	vendorID   int64
	adminID    int64

	customer *domain.User
	vendor   *domain.User
	admin    *domain.User
}

func (s *IntegrationTestSuite) SetupSuite() {
	s.Ctx = context.Background()

	var err error
	s.PgContainer, err = postgres.Run(
		s.Ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second),
		),
	)
	s.Require().NoError(err)

	connStr, err := s.PgContainer.ConnectionString(s.Ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.KafkaContainer, err = kafkaContainer.Run(
		s.Ctx,
		"confluentinc/cp-kafka:7.5.0",
		kafkaContainer.WithClusterID("test-cluster"),
	)
	s.Require().NoError(err)

	s.KafkaBrokers, err = s.KafkaContainer.Brokers(s.Ctx)
	s.Require().NoError(err)

	cwd, err := os.Getwd()
	s.Require().NoError(err)

	migrationsPath := filepath.Join(cwd, "..", "..", "migrations")
	sourceURL := "file://" + migrationsPath

	log.Printf("migrations path: %s", sourceURL)

	m, err := migrate.New(sourceURL, connStr)
	s.Require().NoError(err)
	s.Require().NoError(m.Up())

	s.DbPool, err = pgxpool.New(s.Ctx, connStr)
	s.Require().NoError(err)
}

func (s *IntegrationTestSuite) TearDownSuite() {
	if s.DbPool != nil {
		s.DbPool.Close()
	}
	if s.PgContainer != nil {
		if err := s.PgContainer.Terminate(s.Ctx); err != nil {
			s.T().Fatalf("failed to terminate postgres container: %v", err)
		}
	}
	if s.KafkaContainer != nil {
		if err := s.KafkaContainer.Terminate(s.Ctx); err != nil {
			s.T().Fatalf("failed to terminate kafka container: %v", err)
		}
	}
}

func (s *IntegrationTestSuite) SetupTest() {
	_, err := s.DbPool.Exec(s.Ctx, "TRUNCATE users CASCADE")
	s.Require().NoError(err)
	_, err = s.DbPool.Exec(s.Ctx, "TRUNCATE outbox, processed_events")
	s.Require().NoError(err)

	logger := zap.NewNop()

	userRepo := repository.NewUserRepository(s.DbPool)
	productRepo := repository.NewProductRepository(s.DbPool)
	cartRepo := repository.NewCartRepository(s.DbPool)
	orderRepo := repository.NewOrderRepository(s.DbPool)
	paymentRepo := repository.NewPaymentRepository(s.DbPool)
	notificationRepo := repository.NewNotificationRepository(s.DbPool)
	payoutRepo := repository.NewPayoutRepository(s.DbPool)
	outboxStore := outbox.NewStore()

	gw := gateway.NewStripeGateway(gateway.StripeConfig{
		SecretKey:     "sk_test_key",
		WebhookSecret: webhookSecret,
		SuccessURL:    "http://localhost/success",
		CancelURL:     "http://localhost/cancel",
	}, logger)

	taxRate := decimal.RequireFromString("0.05")
	fees := pricing.FeeTable{
		domain.DeliveryStandard: decimal.RequireFromString("3.00"),
		domain.DeliveryExpress:  decimal.RequireFromString("10.00"),
		domain.DeliveryPickup:   decimal.Zero,
	}

	s.NotificationSvc = service.NewNotificationService(s.DbPool, logger, notificationRepo, userRepo, outboxStore, notificationTopic)
	s.CartService = service.NewCartService(logger, cartRepo, productRepo, taxRate, fees)
	s.OrderService = service.NewOrderService(s.DbPool, logger, orderRepo, cartRepo, productRepo, userRepo, s.NotificationSvc, taxRate, fees)
	s.CheckoutService = service.NewCheckoutService(logger, orderRepo, productRepo, userRepo, gw)
	s.WebhookService = service.NewWebhookService(s.DbPool, logger, gw, orderRepo, paymentRepo, userRepo, s.NotificationSvc)
	s.PayoutService = service.NewPayoutService(s.DbPool, logger, payoutRepo, paymentRepo, userRepo, s.NotificationSvc)

	s.customerID = s.seedUser("customer@example.com", domain.RoleCustomer)
	s.vendorID = s.seedUser("vendor@example.com", domain.RoleVendor)
	s.adminID = s.seedUser("admin@example.com", domain.RoleAdmin)

	s.customer = &domain.User{ID: s.customerID, Email: "customer@example.com", Role: domain.RoleCustomer, IsActive: true}
	s.vendor = &domain.User{ID: s.vendorID, Email: "vendor@example.com", Role: domain.RoleVendor, IsActive: true}
	s.admin = &domain.User{ID: s.adminID, Email: "admin@example.com", Role: domain.RoleAdmin, IsActive: true}
}

func (s *IntegrationTestSuite) seedUser(email string, role domain.Role) int64 {
	var id int64
	err := s.DbPool.QueryRow(s.Ctx, `
		INSERT INTO users (email, role) VALUES ($1, $2) RETURNING id
	`, email, role).Scan(&id)
	s.Require().NoError(err)
	return id
}

func (s *IntegrationTestSuite) seedProduct(name, price string, stock int64) int64 {
	var id int64
	err := s.DbPool.QueryRow(s.Ctx, `
		INSERT INTO products (vendor_id, name, price, stock_quantity, status)
		VALUES ($1, $2, $3, $4, 'approved')
		RETURNING id
	`, s.vendorID, name, price, stock).Scan(&id)
	s.Require().NoError(err)
	return id
}

func (s *IntegrationTestSuite) createPaidOrder() *domain.Order {
	productID := s.seedProduct("Widget", "10.00", 10)
	_, err := s.CartService.AddItem(s.Ctx, s.customerID, productID, 2)
	s.Require().NoError(err)

	order, err := s.OrderService.CreateFromCart(s.Ctx, s.customerID, service.CreateOrderRequest{
		DeliveryType: domain.DeliveryStandard,
	})
	s.Require().NoError(err)

	s.processEvent("evt_paid_"+order.OrderID, "checkout.session.completed", s.completedEventPayload(order))
	return order
}

// signPayload builds the provider signature header over the raw body.
func signPayload(payload []byte, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func (s *IntegrationTestSuite) eventPayload(eventID, eventType string, object map[string]any) []byte {
	payload, err := json.Marshal(map[string]any{
		"id":   eventID,
		"type": eventType,
		"data": map[string]any{"object": object},
	})
	s.Require().NoError(err)
	return payload
}

func (s *IntegrationTestSuite) completedEventPayload(order *domain.Order) map[string]any {
	return map[string]any{
		"id":           "cs_" + order.OrderID,
		"amount_total": gateway.ToCents(order.TotalAmount),
		"metadata":     map[string]string{"order_id": order.OrderID},
		"payment_intent": map[string]any{
			"id": "pi_" + order.OrderID,
		},
	}
}

func (s *IntegrationTestSuite) processEvent(eventID, eventType string, object map[string]any) {
	payload := s.eventPayload(eventID, eventType, object)
	s.Require().NoError(s.WebhookService.ProcessEvent(s.Ctx, payload, signPayload(payload, time.Now())))
}

func (s *IntegrationTestSuite) countNotifications() int {
	var n int
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM notifications`).Scan(&n))
	return n
}

func (s *IntegrationTestSuite) orderStatuses(orderID string) (domain.OrderStatus, domain.PaymentStatus) {
	var os domain.OrderStatus
	var ps domain.PaymentStatus
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `
		SELECT order_status, payment_status FROM orders WHERE order_id = $1
	`, orderID).Scan(&os, &ps))
	return os, ps
}

func (s *IntegrationTestSuite) TestCreateOrderFromCart() {
	widgetID := s.seedProduct("Widget", "10.00", 5)
	gadgetID := s.seedProduct("Gadget", "5.50", 5)

	_, err := s.CartService.AddItem(s.Ctx, s.customerID, widgetID, 2)
	s.Require().NoError(err)
	_, err = s.CartService.AddItem(s.Ctx, s.customerID, gadgetID, 1)
	s.Require().NoError(err)

	order, err := s.OrderService.CreateFromCart(s.Ctx, s.customerID, service.CreateOrderRequest{
		DeliveryType: domain.DeliveryStandard,
	})
	s.Require().NoError(err)

	s.Equal(domain.OrderStatusPending, order.OrderStatus)
	s.Equal(domain.PaymentStatusPending, order.PaymentStatus)
	s.Equal("25.50", order.Subtotal.StringFixed(2))
	s.Equal("1.28", order.TaxAmount.StringFixed(2))
	s.Equal("3.00", order.DeliveryFee.StringFixed(2))
	s.Equal("29.78", order.TotalAmount.StringFixed(2))
	s.Equal(int64(3), order.ItemCount)
	s.Len(order.Items, 2)

	// Active cart lines are consumed by assembly.
	view, err := s.CartService.View(s.Ctx, s.customerID)
	s.Require().NoError(err)
	s.Empty(view.Lines)

	var stock int64
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT stock_quantity FROM products WHERE id = $1`, widgetID).Scan(&stock))
	s.Equal(int64(3), stock)
}

func (s *IntegrationTestSuite) TestCreateOrderEmptyCart() {
	_, err := s.OrderService.CreateFromCart(s.Ctx, s.customerID, service.CreateOrderRequest{
		DeliveryType: domain.DeliveryStandard,
	})
	s.ErrorIs(err, service.ErrEmptyCart)
}

func (s *IntegrationTestSuite) TestSavedForLaterLinesSurviveCheckout() {
	widgetID := s.seedProduct("Widget", "10.00", 5)
	gadgetID := s.seedProduct("Gadget", "5.50", 5)

	_, err := s.CartService.AddItem(s.Ctx, s.customerID, widgetID, 1)
	s.Require().NoError(err)
	saved, err := s.CartService.AddItem(s.Ctx, s.customerID, gadgetID, 1)
	s.Require().NoError(err)
	s.Require().NoError(s.CartService.SaveForLater(s.Ctx, s.customerID, saved.ID, true))

	order, err := s.OrderService.CreateFromCart(s.Ctx, s.customerID, service.CreateOrderRequest{
		DeliveryType: domain.DeliveryPickup,
	})
	s.Require().NoError(err)
	s.Len(order.Items, 1)

	view, err := s.CartService.View(s.Ctx, s.customerID)
	s.Require().NoError(err)
	s.Require().Len(view.Lines, 1)
	s.True(view.Lines[0].SavedForLater)
}

func (s *IntegrationTestSuite) TestCheckoutBlockedByUnapprovedProduct() {
	productID := s.seedProduct("Widget", "10.00", 10)
	_, err := s.CartService.AddItem(s.Ctx, s.customerID, productID, 1)
	s.Require().NoError(err)

	order, err := s.OrderService.CreateFromCart(s.Ctx, s.customerID, service.CreateOrderRequest{
		DeliveryType: domain.DeliveryStandard,
	})
	s.Require().NoError(err)

	// The product was pulled after the order was assembled.
	_, err = s.DbPool.Exec(s.Ctx, `UPDATE products SET status = 'rejected' WHERE id = $1`, productID)
	s.Require().NoError(err)

	_, err = s.CheckoutService.CreateSession(s.Ctx, s.customerID, order.OrderID)
	s.ErrorIs(err, service.ErrProductNotSellable)

	// The consolidated-line path with a discount checks the same thing.
	_, err = s.DbPool.Exec(s.Ctx, `UPDATE orders SET discount_amount = 2.00 WHERE id = $1`, order.ID)
	s.Require().NoError(err)

	_, err = s.CheckoutService.CreateSession(s.Ctx, s.customerID, order.OrderID)
	s.ErrorIs(err, service.ErrProductNotSellable)
}

func (s *IntegrationTestSuite) TestCreateOrderInsufficientStock() {
	productID := s.seedProduct("Widget", "10.00", 2)
	_, err := s.CartService.AddItem(s.Ctx, s.customerID, productID, 2)
	s.Require().NoError(err)

	// Stock drained between carting and checkout.
	_, err = s.DbPool.Exec(s.Ctx, `UPDATE products SET stock_quantity = 1 WHERE id = $1`, productID)
	s.Require().NoError(err)

	_, err = s.OrderService.CreateFromCart(s.Ctx, s.customerID, service.CreateOrderRequest{
		DeliveryType: domain.DeliveryStandard,
	})
	s.ErrorIs(err, service.ErrInsufficientStock)

	// Nothing was committed: no order, stock untouched.
	var orders int
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM orders`).Scan(&orders))
	s.Equal(0, orders)

	var stock int64
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT stock_quantity FROM products WHERE id = $1`, productID).Scan(&stock))
	s.Equal(int64(1), stock)
}

func (s *IntegrationTestSuite) TestWebhookRejectsUnusableEvents() {
	// A handled event type without an order reference is not acknowledged.
	payload := s.eventPayload("evt_blank", "checkout.session.completed", map[string]any{
		"id":       "cs_blank",
		"metadata": map[string]string{},
	})
	err := s.WebhookService.ProcessEvent(s.Ctx, payload, signPayload(payload, time.Now()))
	s.ErrorIs(err, service.ErrEventMalformed)

	// An order we do not have fails too, so the provider keeps redelivering.
	payload = s.eventPayload("evt_ghost", "checkout.session.completed", map[string]any{
		"id":       "cs_ghost",
		"metadata": map[string]string{"order_id": "ORD20260829GHOST000"},
	})
	err = s.WebhookService.ProcessEvent(s.Ctx, payload, signPayload(payload, time.Now()))
	s.ErrorIs(err, repository.ErrOrderNotFound)

	// Neither attempt left a dedup row behind, so a later redelivery can
	// still succeed once the order exists.
	var recorded int
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM processed_events`).Scan(&recorded))
	s.Equal(0, recorded)
}

func (s *IntegrationTestSuite) TestWebhookCompletedIsIdempotent() {
	productID := s.seedProduct("Widget", "10.00", 10)
	_, err := s.CartService.AddItem(s.Ctx, s.customerID, productID, 2)
	s.Require().NoError(err)

	order, err := s.OrderService.CreateFromCart(s.Ctx, s.customerID, service.CreateOrderRequest{
		DeliveryType: domain.DeliveryStandard,
	})
	s.Require().NoError(err)

	object := s.completedEventPayload(order)
	s.processEvent("evt_1", "checkout.session.completed", object)

	os, ps := s.orderStatuses(order.OrderID)
	s.Equal(domain.OrderStatusProcessing, os)
	s.Equal(domain.PaymentStatusPaid, ps)

	// Customer, vendor and the single admin.
	s.Equal(3, s.countNotifications())

	var paymentStatus string
	var amount decimal.Decimal
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `
		SELECT status, amount FROM payments WHERE order_id = $1
	`, order.ID).Scan(&paymentStatus, &amount))
	s.Equal("completed", paymentStatus)
	s.True(amount.Equal(order.TotalAmount))

	// Same event id redelivered: nothing moves.
	s.processEvent("evt_1", "checkout.session.completed", object)
	s.Equal(3, s.countNotifications())

	// A distinct event id replaying the same trigger is a no-op too.
	s.processEvent("evt_2", "checkout.session.completed", object)
	s.Equal(3, s.countNotifications())

	var payments int
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM payments WHERE order_id = $1`, order.ID).Scan(&payments))
	s.Equal(1, payments)
}

func (s *IntegrationTestSuite) TestWebhookExpiredCancelsOrder() {
	productID := s.seedProduct("Widget", "10.00", 10)
	_, err := s.CartService.AddItem(s.Ctx, s.customerID, productID, 1)
	s.Require().NoError(err)

	order, err := s.OrderService.CreateFromCart(s.Ctx, s.customerID, service.CreateOrderRequest{
		DeliveryType: domain.DeliveryStandard,
	})
	s.Require().NoError(err)

	s.processEvent("evt_exp", "checkout.session.expired", map[string]any{
		"id":       "cs_" + order.OrderID,
		"metadata": map[string]string{"order_id": order.OrderID},
	})

	os, ps := s.orderStatuses(order.OrderID)
	s.Equal(domain.OrderStatusCancelled, os)
	s.Equal(domain.PaymentStatusCancelled, ps)

	// Customer and vendor only; nothing was settled.
	s.Equal(2, s.countNotifications())

	var payments int
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM payments WHERE order_id = $1`, order.ID).Scan(&payments))
	s.Equal(0, payments)

	// A late completed event for the cancelled order is acknowledged but
	// changes nothing.
	s.processEvent("evt_late", "checkout.session.completed", s.completedEventPayload(order))
	os, ps = s.orderStatuses(order.OrderID)
	s.Equal(domain.OrderStatusCancelled, os)
	s.Equal(domain.PaymentStatusCancelled, ps)
}

func (s *IntegrationTestSuite) TestVendorStatusUpdates() {
	order := s.createPaidOrder()

	s.Require().NoError(s.OrderService.SetStatus(s.Ctx, s.vendor, order.OrderID, domain.OrderStatusShipped))
	os, _ := s.orderStatuses(order.OrderID)
	s.Equal(domain.OrderStatusShipped, os)

	// Shipping an already-shipped order is rejected by the transition graph.
	err := s.OrderService.SetStatus(s.Ctx, s.vendor, order.OrderID, domain.OrderStatusProcessing)
	var te *domain.TransitionError
	s.ErrorAs(err, &te)
}

func (s *IntegrationTestSuite) TestBulkSetStatusSkipsInvalid() {
	paid := s.createPaidOrder()

	productID := s.seedProduct("Gadget", "5.50", 10)
	_, err := s.CartService.AddItem(s.Ctx, s.customerID, productID, 1)
	s.Require().NoError(err)
	unpaid, err := s.OrderService.CreateFromCart(s.Ctx, s.customerID, service.CreateOrderRequest{
		DeliveryType: domain.DeliveryStandard,
	})
	s.Require().NoError(err)

	result, err := s.OrderService.BulkSetStatus(s.Ctx, s.vendor,
		[]string{paid.OrderID, unpaid.OrderID, "ORD00000000MISSING0"}, domain.OrderStatusShipped)
	s.Require().NoError(err)

	// Only the paid (processing) order can move to shipped.
	s.Equal(1, result.Updated)
	s.Len(result.Skipped, 2)
}

func (s *IntegrationTestSuite) TestCustomerCancel() {
	productID := s.seedProduct("Widget", "10.00", 10)
	_, err := s.CartService.AddItem(s.Ctx, s.customerID, productID, 1)
	s.Require().NoError(err)
	order, err := s.OrderService.CreateFromCart(s.Ctx, s.customerID, service.CreateOrderRequest{
		DeliveryType: domain.DeliveryStandard,
	})
	s.Require().NoError(err)

	s.Require().NoError(s.OrderService.Cancel(s.Ctx, s.customerID, order.OrderID))
	os, _ := s.orderStatuses(order.OrderID)
	s.Equal(domain.OrderStatusCancelled, os)

	// Another customer's order is invisible to this one.
	other := s.seedUser("other@example.com", domain.RoleCustomer)
	err = s.OrderService.Cancel(s.Ctx, other, order.OrderID)
	s.ErrorIs(err, repository.ErrOrderNotFound)
}

func (s *IntegrationTestSuite) TestPayoutFlow() {
	order := s.createPaidOrder()

	summary, err := s.PayoutService.Earnings(s.Ctx, s.vendorID)
	s.Require().NoError(err)
	s.True(summary.Earned.Equal(order.TotalAmount), "earned %s", summary.Earned)
	s.True(summary.Available.Equal(order.TotalAmount))

	// More than earned is rejected.
	_, err = s.PayoutService.Request(s.Ctx, s.vendor, order.TotalAmount.Add(decimal.NewFromInt(1)), "bank", "")
	s.ErrorIs(err, service.ErrPayoutTooLarge)

	req, err := s.PayoutService.Request(s.Ctx, s.vendor, decimal.RequireFromString("10.00"), "bank", "first payout")
	s.Require().NoError(err)
	s.Equal(domain.PayoutStatusPending, req.Status)

	// The open request reduces what can still be asked for.
	summary, err = s.PayoutService.Earnings(s.Ctx, s.vendorID)
	s.Require().NoError(err)
	s.True(summary.Available.Equal(order.TotalAmount.Sub(decimal.RequireFromString("10.00"))))

	s.Require().NoError(s.PayoutService.Resolve(s.Ctx, s.admin, req.ID, true))

	resolved, err := s.PayoutService.List(s.Ctx, s.vendor)
	s.Require().NoError(err)
	s.Require().Len(resolved, 1)
	s.Equal(domain.PayoutStatusApproved, resolved[0].Status)

	// Deciding twice is rejected.
	s.ErrorIs(s.PayoutService.Resolve(s.Ctx, s.admin, req.ID, false), service.ErrPayoutResolved)
}

func (s *IntegrationTestSuite) TestNotificationLifecycle() {
	s.createPaidOrder()

	notifications, err := s.NotificationSvc.List(s.Ctx, s.customerID, true)
	s.Require().NoError(err)
	s.Require().Len(notifications, 1)
	s.False(notifications[0].Seen)

	s.Require().NoError(s.NotificationSvc.MarkSeen(s.Ctx, notifications[0].ID, s.customerID))

	unseen, err := s.NotificationSvc.List(s.Ctx, s.customerID, true)
	s.Require().NoError(err)
	s.Empty(unseen)

	all, err := s.NotificationSvc.List(s.Ctx, s.customerID, false)
	s.Require().NoError(err)
	s.Len(all, 1)

	// Another user cannot touch it.
	err = s.NotificationSvc.Delete(s.Ctx, all[0].ID, s.vendorID)
	s.ErrorIs(err, repository.ErrNotificationNotFound)
}

func (s *IntegrationTestSuite) TestChatNotification() {
	long := strings.Repeat("hello ", 20)
	s.Require().NoError(s.NotificationSvc.NotifyChat(s.Ctx, s.customer, s.vendorID, long))

	notifications, err := s.NotificationSvc.List(s.Ctx, s.vendorID, true)
	s.Require().NoError(err)
	s.Require().Len(notifications, 1)
	s.Contains(notifications[0].Message, "customer@example.com: ")
	s.Contains(notifications[0].Message, "...", "long messages arrive as a preview")

	err = s.NotificationSvc.NotifyChat(s.Ctx, s.customer, 999999, "hi")
	s.ErrorIs(err, repository.ErrUserNotFound)
}

func (s *IntegrationTestSuite) TestOutboxRowsWrittenWithFanOut() {
	s.createPaidOrder()

	var events int
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `
		SELECT COUNT(*) FROM outbox WHERE event_type = 'NotificationCreated' AND published_at IS NULL
	`).Scan(&events))
	s.Equal(3, events, "one outbox event per notification")
}

func (s *IntegrationTestSuite) TestNotificationPushEndToEnd() {
	logger := zap.NewNop()

	producer, err := pkgkafka.NewProducer(s.KafkaBrokers)
	s.Require().NoError(err)
	defer producer.Close()

	workerCtx, cancel := context.WithCancel(s.Ctx)
	defer cancel()

	processor := outbox.NewProcessor(s.DbPool, outbox.NewStore(), producer, logger)
	go processor.Start(workerCtx)

	hub := ws.NewHub(logger)
	consumer := transportkafka.NewNotificationConsumer(s.KafkaBrokers, notificationTopic, hub, logger)
	go func() {
		_ = consumer.Run(workerCtx)
	}()

	manager := auth.NewManager(jwtSecret, repository.NewUserRepository(s.DbPool))
	server := httptest.NewServer(ws.Handler(hub, manager, logger))
	defer server.Close()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": strconv.FormatInt(s.customerID, 10),
	}).SignedString([]byte(jwtSecret))
	s.Require().NoError(err)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	defer conn.Close()

	// The full path: notification row and outbox event in one transaction,
	// processor to the broker, consumer group to the hub, hub to this
	// connection.
	order := s.createPaidOrder()

	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(60 * time.Second)))
	_, payload, err := conn.ReadMessage()
	s.Require().NoError(err)

	var n domain.Notification
	s.Require().NoError(json.Unmarshal(payload, &n))
	s.Equal(s.customerID, n.UserID)
	s.Contains(n.Message, order.OrderID)
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationTestSuite))
}
