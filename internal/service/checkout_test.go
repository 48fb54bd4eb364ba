package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"github.com/bristywardah/R-Nold/internal/domain"
	"github.com/bristywardah/R-Nold/internal/gateway"
	"github.com/bristywardah/R-Nold/internal/repository"
)

// Stubs embed the repository interfaces so only the methods CreateSession
// touches need bodies.

type stubOrderRepo struct {
	repository.OrderRepository
	order     *domain.Order
	items     []domain.OrderItem
	addresses []domain.ShippingAddress
}

func (r *stubOrderRepo) GetForCustomer(_ context.Context, _ string, _ int64) (*domain.Order, error) {
	return r.order, nil
}

func (r *stubOrderRepo) ItemsOf(_ context.Context, _ int64) ([]domain.OrderItem, error) {
	return r.items, nil
}

func (r *stubOrderRepo) ListShippingAddresses(_ context.Context, _ int64) ([]domain.ShippingAddress, error) {
	return r.addresses, nil
}

type stubProductRepo struct {
	repository.ProductRepository
	products map[int64]*domain.Product
}

func (r *stubProductRepo) Get(_ context.Context, id int64) (*domain.Product, error) {
	if p, ok := r.products[id]; ok {
		return p, nil
	}
	return nil, repository.ErrProductNotFound
}

type stubUserRepo struct {
	repository.UserRepository
	users map[int64]*domain.User
}

func (r *stubUserRepo) Get(_ context.Context, id int64) (*domain.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

type stubGateway struct {
	calls int
	lines []gateway.CheckoutLine
}

func (g *stubGateway) CreateCheckoutSession(_ context.Context, _ *domain.Order, lines []gateway.CheckoutLine) (*gateway.CheckoutSession, error) {
	g.calls++
	g.lines = lines
	return &gateway.CheckoutSession{ID: "cs_stub", URL: "https://pay.example/cs_stub"}, nil
}

func (g *stubGateway) VerifyEvent([]byte, string) (stripe.Event, error) {
	return stripe.Event{}, nil
}

func checkoutFixture() (*stubOrderRepo, *stubProductRepo, *stubUserRepo, *stubGateway) {
	orders := &stubOrderRepo{
		order: &domain.Order{
			ID:            1,
			OrderID:       "ORD20260829AAAA1111",
			CustomerID:    9,
			VendorID:      3,
			Subtotal:      decimal.RequireFromString("25.50"),
			TaxAmount:     decimal.RequireFromString("1.28"),
			DeliveryFee:   decimal.RequireFromString("3.00"),
			TotalAmount:   decimal.RequireFromString("29.78"),
			ItemCount:     3,
			OrderStatus:   domain.OrderStatusPending,
			PaymentStatus: domain.PaymentStatusPending,
		},
		items: []domain.OrderItem{
			{ID: 1, OrderID: 1, ProductID: 10, Quantity: 2, Price: decimal.RequireFromString("10.00")},
			{ID: 2, OrderID: 1, ProductID: 11, Quantity: 1, Price: decimal.RequireFromString("5.50")},
		},
		addresses: []domain.ShippingAddress{{ID: 1, FullName: "Ada Lovelace", City: "London"}},
	}
	products := &stubProductRepo{products: map[int64]*domain.Product{
		10: {ID: 10, Name: "Widget", Status: domain.ProductStatusApproved},
		11: {ID: 11, Name: "Gadget", Status: domain.ProductStatusApproved},
	}}
	users := &stubUserRepo{users: map[int64]*domain.User{
		9: {ID: 9, Email: "customer@example.com", Role: domain.RoleCustomer},
		3: {ID: 3, Email: "vendor@example.com", Role: domain.RoleVendor},
	}}
	return orders, products, users, &stubGateway{}
}

func TestCreateSessionReturnsPageBreakdown(t *testing.T) {
	orders, products, users, gw := checkoutFixture()
	svc := NewCheckoutService(zap.NewNop(), orders, products, users, gw)

	page, err := svc.CreateSession(context.Background(), 9, orders.order.OrderID)
	require.NoError(t, err)

	assert.Equal(t, "cs_stub", page.Session.ID)
	assert.Equal(t, "https://pay.example/cs_stub", page.Session.URL)
	assert.Equal(t, orders.order.OrderID, page.Order.OrderID)
	assert.Len(t, page.Order.Items, 2)
	assert.Equal(t, "customer@example.com", page.Customer.Email)
	assert.Equal(t, "vendor@example.com", page.Vendor.Email)
	require.Len(t, page.Addresses, 1)
	assert.Equal(t, "Ada Lovelace", page.Addresses[0].FullName)

	// Two product rows plus tax and delivery fee.
	require.Len(t, gw.lines, 4)
	assert.Equal(t, "Widget", gw.lines[0].Name)
	assert.Equal(t, int64(1000), gw.lines[0].UnitAmount)
	assert.Equal(t, int64(2), gw.lines[0].Quantity)
	assert.Equal(t, "Tax", gw.lines[2].Name)
	assert.Equal(t, "Delivery fee", gw.lines[3].Name)
}

func TestCreateSessionRejectsUnsellableProduct(t *testing.T) {
	orders, products, users, gw := checkoutFixture()
	products.products[11].Status = domain.ProductStatusRejected
	svc := NewCheckoutService(zap.NewNop(), orders, products, users, gw)

	_, err := svc.CreateSession(context.Background(), 9, orders.order.OrderID)
	assert.ErrorIs(t, err, ErrProductNotSellable)
	assert.Zero(t, gw.calls, "gateway must not be reached")

	// The consolidated discount line is guarded the same way.
	orders.order.DiscountAmount = decimal.RequireFromString("2.00")
	_, err = svc.CreateSession(context.Background(), 9, orders.order.OrderID)
	assert.ErrorIs(t, err, ErrProductNotSellable)
	assert.Zero(t, gw.calls)
}

func TestCreateSessionDiscountConsolidatesToTotal(t *testing.T) {
	orders, products, users, gw := checkoutFixture()
	orders.order.DiscountAmount = decimal.RequireFromString("2.00")
	orders.order.TotalAmount = decimal.RequireFromString("27.78")
	svc := NewCheckoutService(zap.NewNop(), orders, products, users, gw)

	page, err := svc.CreateSession(context.Background(), 9, orders.order.OrderID)
	require.NoError(t, err)
	assert.Len(t, page.Order.Items, 2, "breakdown keeps the itemized view")

	require.Len(t, gw.lines, 1)
	assert.Equal(t, "Order #"+orders.order.OrderID, gw.lines[0].Name)
	assert.Equal(t, int64(2778), gw.lines[0].UnitAmount)
	assert.Equal(t, int64(1), gw.lines[0].Quantity)
}

func TestCreateSessionRejectsNonPendingOrder(t *testing.T) {
	orders, products, users, gw := checkoutFixture()
	orders.order.OrderStatus = domain.OrderStatusProcessing
	orders.order.PaymentStatus = domain.PaymentStatusPaid
	svc := NewCheckoutService(zap.NewNop(), orders, products, users, gw)

	_, err := svc.CreateSession(context.Background(), 9, orders.order.OrderID)
	assert.ErrorIs(t, err, ErrOrderNotPayable)
	assert.Zero(t, gw.calls)
}
