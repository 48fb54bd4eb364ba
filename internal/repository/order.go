package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bristywardah/R-Nold/internal/domain"
	"github.com/bristywardah/R-Nold/internal/pricing"
)

type OrderRepository interface {
	Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	InsertItems(ctx context.Context, tx pgx.Tx, orderID int64, items []domain.OrderItem) error
	UpdateTotals(ctx context.Context, tx pgx.Tx, orderID int64, totals pricing.Summary) error
	GetByOrderID(ctx context.Context, orderID string) (*domain.Order, error)
	// GetByOrderIDForUpdate row-locks the order inside tx so concurrent
	// webhook deliveries for the same order serialize.
	GetByOrderIDForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (*domain.Order, error)
	GetForCustomer(ctx context.Context, orderID string, customerID int64) (*domain.Order, error)
	GetForUpdateByID(ctx context.Context, tx pgx.Tx, id int64) (*domain.Order, error)
	ItemsOf(ctx context.Context, orderID int64) ([]domain.OrderItem, error)
	ListForRole(ctx context.Context, user *domain.User) ([]domain.Order, error)
	UpdateStatuses(ctx context.Context, tx pgx.Tx, id int64, os domain.OrderStatus, ps domain.PaymentStatus) error
	SetOrderStatus(ctx context.Context, tx pgx.Tx, id int64, os domain.OrderStatus) error
	AttachShippingAddress(ctx context.Context, orderID string, customerID, addressID int64) error
	CreateShippingAddress(ctx context.Context, addr *domain.ShippingAddress) error
	GetShippingAddress(ctx context.Context, id, userID int64) (*domain.ShippingAddress, error)
	ListShippingAddresses(ctx context.Context, userID int64) ([]domain.ShippingAddress, error)
}

type orderRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &orderRepo{pool: pool, tracer: otel.Tracer("repository/order")}
}

const orderColumns = `id, order_id, customer_id, vendor_id, subtotal, discount_amount, promo_code,
	tax_amount, delivery_fee, total_amount, item_count, delivery_type, delivery_instructions,
	payment_method, order_status, payment_status, shipping_address_id, estimated_delivery,
	delivery_date, notes, order_date`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var promo, instructions, method, notes *string
	err := row.Scan(&o.ID, &o.OrderID, &o.CustomerID, &o.VendorID, &o.Subtotal, &o.DiscountAmount,
		&promo, &o.TaxAmount, &o.DeliveryFee, &o.TotalAmount, &o.ItemCount, &o.DeliveryType,
		&instructions, &method, &o.OrderStatus, &o.PaymentStatus, &o.ShippingAddressID,
		&o.EstimatedDelivery, &o.DeliveryDate, &notes, &o.OrderDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	if promo != nil {
		o.PromoCode = *promo
	}
	if instructions != nil {
		o.DeliveryInstructions = *instructions
	}
	if method != nil {
		o.PaymentMethod = *method
	}
	if notes != nil {
		o.Notes = *notes
	}
	return &o, nil
}

func (r *orderRepo) Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.Create")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", order.OrderID))

	err := tx.QueryRow(ctx, `
		INSERT INTO orders (order_id, customer_id, vendor_id, discount_amount, promo_code,
			delivery_type, delivery_instructions, payment_method, order_status, payment_status,
			estimated_delivery, delivery_date, notes)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11, $12, NULLIF($13, ''))
		RETURNING id, order_date
	`, order.OrderID, order.CustomerID, order.VendorID, order.DiscountAmount, order.PromoCode,
		order.DeliveryType, order.DeliveryInstructions, order.PaymentMethod,
		order.OrderStatus, order.PaymentStatus, order.EstimatedDelivery, order.DeliveryDate, order.Notes).
		Scan(&order.ID, &order.OrderDate)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *orderRepo) InsertItems(ctx context.Context, tx pgx.Tx, orderID int64, items []domain.OrderItem) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.InsertItems")
	defer span.End()
	span.SetAttributes(attribute.Int("items_count", len(items)))

	for i := range items {
		item := &items[i]
		err := tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, price, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, orderID, item.ProductID, item.Quantity, item.Price, domain.OrderStatusPending).
			Scan(&item.ID)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("insert order item: %w", err)
		}
		item.OrderID = orderID
	}
	return nil
}

func (r *orderRepo) UpdateTotals(ctx context.Context, tx pgx.Tx, orderID int64, totals pricing.Summary) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.UpdateTotals")
	defer span.End()

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET subtotal = $2, tax_amount = $3, delivery_fee = $4, total_amount = $5,
		    item_count = $6, updated_at = NOW()
		WHERE id = $1
	`, orderID, totals.Subtotal, totals.TaxAmount, totals.DeliveryFee, totals.TotalAmount, totals.ItemCount)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("update totals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByOrderID")
	defer span.End()

	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id = $1`, orderID))
}

func (r *orderRepo) GetByOrderIDForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByOrderIDForUpdate")
	defer span.End()

	return scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id = $1 FOR UPDATE`, orderID))
}

func (r *orderRepo) GetForCustomer(ctx context.Context, orderID string, customerID int64) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetForCustomer")
	defer span.End()

	return scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_id = $1 AND customer_id = $2`, orderID, customerID))
}

func (r *orderRepo) GetForUpdateByID(ctx context.Context, tx pgx.Tx, id int64) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetForUpdateByID")
	defer span.End()

	return scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
}

func (r *orderRepo) ItemsOf(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ItemsOf")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price, status
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price, &it.Status); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *orderRepo) ListForRole(ctx context.Context, user *domain.User) ([]domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ListForRole")
	defer span.End()

	query := `SELECT ` + orderColumns + ` FROM orders`
	var args []any
	switch user.Role {
	case domain.RoleAdmin:
	case domain.RoleVendor:
		query += ` WHERE vendor_id = $1`
		args = append(args, user.ID)
	default:
		query += ` WHERE customer_id = $1`
		args = append(args, user.ID)
	}
	query += ` ORDER BY order_date DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (r *orderRepo) UpdateStatuses(ctx context.Context, tx pgx.Tx, id int64, os domain.OrderStatus, ps domain.PaymentStatus) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.UpdateStatuses")
	defer span.End()

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET order_status = $2, payment_status = $3, updated_at = NOW()
		WHERE id = $1
	`, id, os, ps)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("update statuses: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepo) SetOrderStatus(ctx context.Context, tx pgx.Tx, id int64, os domain.OrderStatus) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.SetOrderStatus")
	defer span.End()

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET order_status = $2, updated_at = NOW()
		WHERE id = $1
	`, id, os)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("set order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepo) AttachShippingAddress(ctx context.Context, orderID string, customerID, addressID int64) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.AttachShippingAddress")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET shipping_address_id = $3, updated_at = NOW()
		WHERE order_id = $1 AND customer_id = $2
	`, orderID, customerID, addressID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("attach shipping address: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepo) CreateShippingAddress(ctx context.Context, addr *domain.ShippingAddress) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.CreateShippingAddress")
	defer span.End()

	err := r.pool.QueryRow(ctx, `
		INSERT INTO shipping_addresses (user_id, full_name, phone_number, email, street_address, city, zip_code)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
		RETURNING id, created_at
	`, addr.UserID, addr.FullName, addr.PhoneNumber, addr.Email, addr.StreetAddress, addr.City, addr.ZipCode).
		Scan(&addr.ID, &addr.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("insert shipping address: %w", err)
	}
	return nil
}

func (r *orderRepo) GetShippingAddress(ctx context.Context, id, userID int64) (*domain.ShippingAddress, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetShippingAddress")
	defer span.End()

	var a domain.ShippingAddress
	var email *string
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, full_name, phone_number, email, street_address, city, zip_code, created_at
		FROM shipping_addresses
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&a.ID, &a.UserID, &a.FullName, &a.PhoneNumber, &email, &a.StreetAddress, &a.City, &a.ZipCode, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("get shipping address: %w", err)
	}
	if email != nil {
		a.Email = *email
	}
	return &a, nil
}

func (r *orderRepo) ListShippingAddresses(ctx context.Context, userID int64) ([]domain.ShippingAddress, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ListShippingAddresses")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, full_name, phone_number, email, street_address, city, zip_code, created_at
		FROM shipping_addresses
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query shipping addresses: %w", err)
	}
	defer rows.Close()

	var addresses []domain.ShippingAddress
	for rows.Next() {
		var a domain.ShippingAddress
		var email *string
		if err := rows.Scan(&a.ID, &a.UserID, &a.FullName, &a.PhoneNumber, &email,
			&a.StreetAddress, &a.City, &a.ZipCode, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan shipping address: %w", err)
		}
		if email != nil {
			a.Email = *email
		}
		addresses = append(addresses, a)
	}
	return addresses, rows.Err()
}
