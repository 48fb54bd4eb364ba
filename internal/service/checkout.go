package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bristywardah/R-Nold/internal/domain"
	"github.com/bristywardah/R-Nold/internal/gateway"
	"github.com/bristywardah/R-Nold/internal/repository"
	"github.com/bristywardah/R-Nold/pkg/ctxlog"
)

// CheckoutPage is the created session plus the order breakdown the customer
// sees next to the redirect.
type CheckoutPage struct {
	Session   *gateway.CheckoutSession
	Order     *domain.Order
	Customer  *domain.User
	Vendor    *domain.User
	Addresses []domain.ShippingAddress
}

type CheckoutService interface {
	// CreateSession builds a hosted payment page for an order that is still
	// awaiting payment and returns its redirect URL with the order breakdown.
	CreateSession(ctx context.Context, customerID int64, orderID string) (*CheckoutPage, error)
}

type checkoutService struct {
	logger      *zap.Logger
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	gateway     gateway.PaymentGateway
	tracer      trace.Tracer
}

func NewCheckoutService(
	logger *zap.Logger,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	gw gateway.PaymentGateway,
) CheckoutService {
	return &checkoutService{
		logger:      logger,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		gateway:     gw,
		tracer:      otel.Tracer("checkout_service"),
	}
}

func (s *checkoutService) CreateSession(ctx context.Context, customerID int64, orderID string) (*CheckoutPage, error) {
	ctx, span := s.tracer.Start(ctx, "CheckoutService.CreateSession")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", orderID))

	order, err := s.orderRepo.GetForCustomer(ctx, orderID, customerID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != domain.PaymentStatusPending || order.OrderStatus != domain.OrderStatusPending {
		ctxlog.Warn(
			ctx,
			s.logger,
			"Checkout attempted on non-payable order",
			zap.String("order_id", orderID),
			zap.String("order_status", string(order.OrderStatus)),
			zap.String("payment_status", string(order.PaymentStatus)),
		)

		return nil, ErrOrderNotPayable
	}

	lines, items, err := s.checkoutLines(ctx, order)
	if err != nil {
		return nil, err
	}
	order.Items = items

	session, err := s.gateway.CreateCheckoutSession(ctx, order, lines)
	if err != nil {
		return nil, err
	}

	customer, err := s.userRepo.Get(ctx, order.CustomerID)
	if err != nil {
		return nil, err
	}
	vendor, err := s.userRepo.Get(ctx, order.VendorID)
	if err != nil {
		return nil, err
	}
	addresses, err := s.orderRepo.ListShippingAddresses(ctx, order.CustomerID)
	if err != nil {
		return nil, err
	}

	ctxlog.Info(
		ctx,
		s.logger,
		"Checkout session created",
		zap.String("order_id", orderID),
		zap.String("session_id", session.ID),
	)

	return &CheckoutPage{
		Session:   session,
		Order:     order,
		Customer:  customer,
		Vendor:    vendor,
		Addresses: addresses,
	}, nil
}

// checkoutLines itemizes the payment page from the order's frozen prices.
// Every product must still be approved for sale; an order assembled before a
// product was pulled does not get a payment page. With a discount in play the
// page collapses to a single consolidated line, so the charged amount always
// equals total_amount exactly.
func (s *checkoutService) checkoutLines(ctx context.Context, order *domain.Order) ([]gateway.CheckoutLine, []domain.OrderItem, error) {
	items, err := s.orderRepo.ItemsOf(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}

	var lines []gateway.CheckoutLine
	for _, item := range items {
		product, err := s.productRepo.Get(ctx, item.ProductID)
		if err != nil {
			return nil, nil, err
		}
		if !product.Sellable() {
			ctxlog.Warn(
				ctx,
				s.logger,
				"Checkout blocked by unapproved product",
				zap.String("order_id", order.OrderID),
				zap.Int64("product_id", product.ID),
				zap.String("status", string(product.Status)),
			)

			return nil, nil, ErrProductNotSellable
		}
		lines = append(lines, gateway.CheckoutLine{
			Name:       product.Name,
			UnitAmount: gateway.ToCents(item.Price),
			Quantity:   item.Quantity,
		})
	}

	if order.DiscountAmount.IsPositive() {
		return []gateway.CheckoutLine{{
			Name:       fmt.Sprintf("Order #%s", order.OrderID),
			UnitAmount: gateway.ToCents(order.TotalAmount),
			Quantity:   1,
		}}, items, nil
	}

	if order.TaxAmount.IsPositive() {
		lines = append(lines, gateway.CheckoutLine{Name: "Tax", UnitAmount: gateway.ToCents(order.TaxAmount), Quantity: 1})
	}
	if order.DeliveryFee.IsPositive() {
		lines = append(lines, gateway.CheckoutLine{Name: "Delivery fee", UnitAmount: gateway.ToCents(order.DeliveryFee), Quantity: 1})
	}
	return lines, items, nil
}
