package service

import (
	"context"
	"fmt"

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

// CartView is the cart plus a totals preview over its active lines. The
// preview uses the standard delivery fee; the real figure is fixed at
// assembly time when the customer picks a delivery type.
type CartView struct {
	Lines   []domain.CartLine `json:"lines"`
	Preview pricing.Summary   `json:"preview"`
}

type CartService interface {
	View(ctx context.Context, userID int64) (*CartView, error)
	AddItem(ctx context.Context, userID, productID, quantity int64) (*domain.CartLine, error)
	UpdateQuantity(ctx context.Context, userID, lineID, quantity int64) error
	SaveForLater(ctx context.Context, userID, lineID int64, saved bool) error
	Remove(ctx context.Context, userID, lineID int64) error
}

type cartService struct {
	logger      *zap.Logger
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	taxRate     decimal.Decimal
	fees        pricing.FeeTable
	tracer      trace.Tracer
}

func NewCartService(
	logger *zap.Logger,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	taxRate decimal.Decimal,
	fees pricing.FeeTable,
) CartService {
	return &cartService{
		logger:      logger,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		taxRate:     taxRate,
		fees:        fees,
		tracer:      otel.Tracer("cart_service"),
	}
}

func (s *cartService) View(ctx context.Context, userID int64) (*CartView, error) {
	ctx, span := s.tracer.Start(ctx, "CartService.View")
	defer span.End()

	lines, err := s.cartRepo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart: %w", err)
	}

	var items []domain.OrderItem
	for _, line := range lines {
		if line.SavedForLater {
			continue
		}
		items = append(items, domain.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.PriceSnapshot,
		})
	}

	preview := pricing.Totals(items, decimal.Zero, s.taxRate, domain.DeliveryStandard, s.fees, nil)
	return &CartView{Lines: lines, Preview: preview}, nil
}

func (s *cartService) AddItem(ctx context.Context, userID, productID, quantity int64) (*domain.CartLine, error) {
	ctx, span := s.tracer.Start(ctx, "CartService.AddItem")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("product_id", productID),
		attribute.Int64("quantity", quantity),
	)

	product, err := s.productRepo.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Sellable() {
		ctxlog.Warn(
			ctx,
			s.logger,
			"Rejected unapproved product",
			zap.Int64("product_id", productID),
			zap.String("status", string(product.Status)),
		)

		return nil, ErrProductNotSellable
	}
	if product.StockTracked && quantity > product.StockQuantity {
		return nil, ErrInsufficientStock
	}

	line := &domain.CartLine{
		UserID:        userID,
		ProductID:     productID,
		Quantity:      quantity,
		PriceSnapshot: product.Price,
	}
	if err := s.cartRepo.Upsert(ctx, line); err != nil {
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}
	line.ProductVendorID = product.VendorID
	line.ProductName = product.Name
	return line, nil
}

func (s *cartService) UpdateQuantity(ctx context.Context, userID, lineID, quantity int64) error {
	ctx, span := s.tracer.Start(ctx, "CartService.UpdateQuantity")
	defer span.End()

	line, err := s.cartRepo.Get(ctx, lineID, userID)
	if err != nil {
		return err
	}
	product, err := s.productRepo.Get(ctx, line.ProductID)
	if err != nil {
		return err
	}
	if product.StockTracked && quantity > product.StockQuantity {
		return ErrInsufficientStock
	}

	return s.cartRepo.SetQuantity(ctx, lineID, userID, quantity)
}

func (s *cartService) SaveForLater(ctx context.Context, userID, lineID int64, saved bool) error {
	ctx, span := s.tracer.Start(ctx, "CartService.SaveForLater")
	defer span.End()

	return s.cartRepo.SetSavedForLater(ctx, lineID, userID, saved)
}

func (s *cartService) Remove(ctx context.Context, userID, lineID int64) error {
	ctx, span := s.tracer.Start(ctx, "CartService.Remove")
	defer span.End()

	return s.cartRepo.Delete(ctx, lineID, userID)
}
