package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bristywardah/R-Nold/internal/domain"
	"github.com/bristywardah/R-Nold/internal/pricing"
	"github.com/bristywardah/R-Nold/internal/repository"
	"github.com/bristywardah/R-Nold/pkg/ctxlog"
)

// CreateOrderRequest carries the customer-supplied parts of order assembly.
// Monetary fields are already parsed; handlers own the string validation.
type CreateOrderRequest struct {
	DeliveryType         domain.DeliveryType
	DeliveryInstructions string
	PromoCode            string
	DiscountAmount       decimal.Decimal
	DeliveryFeeOverride  *decimal.Decimal
	PaymentMethod        string
	Notes                string
}

type BulkStatusResult struct {
	Updated int      `json:"updated_count"`
	Skipped []string `json:"skipped,omitempty"`
}

type OrderService interface {
	CreateFromCart(ctx context.Context, customerID int64, req CreateOrderRequest) (*domain.Order, error)
	CreateSingleProduct(ctx context.Context, customerID, productID, quantity int64, req CreateOrderRequest) (*domain.Order, error)
	Get(ctx context.Context, user *domain.User, orderID string) (*domain.Order, error)
	List(ctx context.Context, user *domain.User) ([]domain.Order, error)
	SetStatus(ctx context.Context, user *domain.User, orderID string, next domain.OrderStatus) error
	// BulkSetStatus applies the same status to many orders, skipping the ones
	// whose current state forbids it instead of failing the batch.
	BulkSetStatus(ctx context.Context, user *domain.User, orderIDs []string, next domain.OrderStatus) (*BulkStatusResult, error)
	Cancel(ctx context.Context, customerID int64, orderID string) error
	CreateShippingAddress(ctx context.Context, userID int64, addr *domain.ShippingAddress) error
	AttachShippingAddress(ctx context.Context, customerID int64, orderID string, addressID int64) error
}

type orderService struct {
	pool        *pgxpool.Pool
	logger      *zap.Logger
	orderRepo   repository.OrderRepository
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	notifier    NotificationService
	taxRate     decimal.Decimal
	fees        pricing.FeeTable
	tracer      trace.Tracer
}

func NewOrderService(
	pool *pgxpool.Pool,
	logger *zap.Logger,
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	notifier NotificationService,
	taxRate decimal.Decimal,
	fees pricing.FeeTable,
) OrderService {
	return &orderService{
		pool:        pool,
		logger:      logger,
		orderRepo:   orderRepo,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		taxRate:     taxRate,
		fees:        fees,
		tracer:      otel.Tracer("order_service"),
	}
}

func (s *orderService) rollback(ctx context.Context, tx pgx.Tx) {
	shutdownCtx := context.WithoutCancel(ctx)

	if err := tx.Rollback(shutdownCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		ctxlog.Warn(
			shutdownCtx,
			s.logger,
			"Error rolling back transaction",
			zap.Error(err),
		)
	}
}

func (s *orderService) CreateFromCart(ctx context.Context, customerID int64, req CreateOrderRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateFromCart")
	defer span.End()
	span.SetAttributes(attribute.Int64("customer_id", customerID))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	lines, err := s.cartRepo.ListActive(ctx, tx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	// Orders are single-vendor. A mixed cart keeps working but the whole
	// order is attributed to the first line's vendor.
	vendorID := lines[0].ProductVendorID
	for _, line := range lines[1:] {
		if line.ProductVendorID != vendorID {
			ctxlog.Warn(
				ctx,
				s.logger,
				"Cart spans multiple vendors, attributing order to first",
				zap.Int64("customer_id", customerID),
				zap.Int64("vendor_id", vendorID),
				zap.Int64("other_vendor_id", line.ProductVendorID),
			)

			break
		}
	}

	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.PriceSnapshot,
		})
	}

	order, err := s.assemble(ctx, tx, customerID, vendorID, items, req)
	if err != nil {
		return nil, err
	}

	if err := s.cartRepo.DeleteActive(ctx, tx, customerID); err != nil {
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		ctxlog.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return order, nil
}

func (s *orderService) CreateSingleProduct(ctx context.Context, customerID, productID, quantity int64, req CreateOrderRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateSingleProduct")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("customer_id", customerID),
		attribute.Int64("product_id", productID),
	)

	product, err := s.productRepo.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Sellable() {
		return nil, ErrProductNotSellable
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	items := []domain.OrderItem{{
		ProductID: productID,
		Quantity:  quantity,
		Price:     product.Price,
	}}

	order, err := s.assemble(ctx, tx, customerID, product.VendorID, items, req)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		ctxlog.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return order, nil
}

// assemble creates the order row, freezes its items, reserves stock and
// writes the computed totals, all inside the caller's transaction.
func (s *orderService) assemble(ctx context.Context, tx pgx.Tx, customerID, vendorID int64, items []domain.OrderItem, req CreateOrderRequest) (*domain.Order, error) {
	order := &domain.Order{
		OrderID:              domain.NewOrderID(time.Now().UTC()),
		CustomerID:           customerID,
		VendorID:             vendorID,
		DiscountAmount:       req.DiscountAmount,
		PromoCode:            req.PromoCode,
		DeliveryType:         req.DeliveryType,
		DeliveryInstructions: req.DeliveryInstructions,
		PaymentMethod:        req.PaymentMethod,
		OrderStatus:          domain.OrderStatusPending,
		PaymentStatus:        domain.PaymentStatusPending,
		Notes:                req.Notes,
	}

	if err := s.orderRepo.Create(ctx, tx, order); err != nil {
		ctxlog.Error(
			ctx,
			s.logger,
			"Failed to create order",
			zap.Int64("customer_id", customerID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if err := s.orderRepo.InsertItems(ctx, tx, order.ID, items); err != nil {
		return nil, fmt.Errorf("failed to insert order items: %w", err)
	}

	for _, item := range items {
		if err := s.productRepo.DecreaseStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
	}

	totals := pricing.Totals(items, order.DiscountAmount, s.taxRate, order.DeliveryType, s.fees, req.DeliveryFeeOverride)
	if err := s.orderRepo.UpdateTotals(ctx, tx, order.ID, totals); err != nil {
		return nil, err
	}

	order.Subtotal = totals.Subtotal
	order.TaxAmount = totals.TaxAmount
	order.DeliveryFee = totals.DeliveryFee
	order.TotalAmount = totals.TotalAmount
	order.ItemCount = totals.ItemCount
	order.Items = items

	ctxlog.Info(
		ctx,
		s.logger,
		"Order assembled",
		zap.String("order_id", order.OrderID),
		zap.Int64("customer_id", customerID),
		zap.Int64("vendor_id", vendorID),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)),
	)

	return order, nil
}

func (s *orderService) Get(ctx context.Context, user *domain.User, orderID string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", orderID))

	order, err := s.orderRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeOrderRead(user, order); err != nil {
		return nil, err
	}

	items, err := s.orderRepo.ItemsOf(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func authorizeOrderRead(user *domain.User, order *domain.Order) error {
	switch user.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleVendor:
		if order.VendorID == user.ID {
			return nil
		}
	default:
		if order.CustomerID == user.ID {
			return nil
		}
	}
	return repository.ErrOrderNotFound
}

func (s *orderService) List(ctx context.Context, user *domain.User) ([]domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.List")
	defer span.End()

	return s.orderRepo.ListForRole(ctx, user)
}

func (s *orderService) SetStatus(ctx context.Context, user *domain.User, orderID string, next domain.OrderStatus) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.SetStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("order_id", orderID),
		attribute.String("next_status", string(next)),
	)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	if err := s.setStatusInTx(ctx, tx, user, orderID, next); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		ctxlog.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *orderService) setStatusInTx(ctx context.Context, tx pgx.Tx, user *domain.User, orderID string, next domain.OrderStatus) error {
	order, err := s.orderRepo.GetByOrderIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if user.Role == domain.RoleVendor && order.VendorID != user.ID {
		return repository.ErrOrderNotFound
	}
	if user.Role != domain.RoleVendor && user.Role != domain.RoleAdmin {
		return ErrForbidden
	}

	if err := domain.ValidateOrderStatusChange(order, next); err != nil {
		return err
	}
	if order.OrderStatus == next {
		return nil
	}

	if err := s.orderRepo.SetOrderStatus(ctx, tx, order.ID, next); err != nil {
		return err
	}
	order.OrderStatus = next

	customer, err := s.userRepo.Get(ctx, order.CustomerID)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("Your order #%s is now %s.", order.OrderID, next)
	if err := s.notifier.Notify(ctx, tx, customer, msg, domain.OrderMeta(order, user)); err != nil {
		return err
	}
	return nil
}

func (s *orderService) BulkSetStatus(ctx context.Context, user *domain.User, orderIDs []string, next domain.OrderStatus) (*BulkStatusResult, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.BulkSetStatus")
	defer span.End()
	span.SetAttributes(attribute.Int("orders_count", len(orderIDs)))

	result := &BulkStatusResult{}
	for _, orderID := range orderIDs {
		err := s.SetStatus(ctx, user, orderID, next)
		if err == nil {
			result.Updated++
			continue
		}

		var te *domain.TransitionError
		if errors.As(err, &te) || errors.Is(err, repository.ErrOrderNotFound) {
			ctxlog.Warn(
				ctx,
				s.logger,
				"Skipping order in bulk status update",
				zap.String("order_id", orderID),
				zap.Error(err),
			)

			result.Skipped = append(result.Skipped, orderID)
			continue
		}
		return nil, err
	}
	return result, nil
}

func (s *orderService) Cancel(ctx context.Context, customerID int64, orderID string) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.Cancel")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", orderID))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	order, err := s.orderRepo.GetByOrderIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if order.CustomerID != customerID {
		return repository.ErrOrderNotFound
	}

	os, ps, err := domain.Apply(order, domain.TriggerCancelled)
	if err != nil {
		return err
	}
	if err := s.orderRepo.UpdateStatuses(ctx, tx, order.ID, os, ps); err != nil {
		return err
	}
	order.OrderStatus, order.PaymentStatus = os, ps

	vendor, err := s.userRepo.Get(ctx, order.VendorID)
	if err != nil {
		return err
	}
	customer, err := s.userRepo.Get(ctx, order.CustomerID)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("Order #%s was cancelled by %s.", order.OrderID, customer.Email)
	if err := s.notifier.Notify(ctx, tx, vendor, msg, domain.OrderMeta(order, customer)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		ctxlog.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *orderService) CreateShippingAddress(ctx context.Context, userID int64, addr *domain.ShippingAddress) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateShippingAddress")
	defer span.End()

	addr.UserID = &userID
	return s.orderRepo.CreateShippingAddress(ctx, addr)
}

func (s *orderService) AttachShippingAddress(ctx context.Context, customerID int64, orderID string, addressID int64) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.AttachShippingAddress")
	defer span.End()

	if _, err := s.orderRepo.GetShippingAddress(ctx, addressID, customerID); err != nil {
		return err
	}
	return s.orderRepo.AttachShippingAddress(ctx, orderID, customerID, addressID)
}
