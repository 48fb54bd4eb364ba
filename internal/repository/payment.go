package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bristywardah/R-Nold/internal/domain"
)

type PaymentRepository interface {
	// Upsert writes the settlement record for an order. The unique constraint
	// on order_id turns webhook redelivery into an update instead of a
	// duplicate row.
	Upsert(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error
	GetByOrder(ctx context.Context, orderID int64) (*domain.Payment, error)
	// CompletedEarnings sums a vendor's completed payments.
	CompletedEarnings(ctx context.Context, vendorID int64) (decimal.Decimal, error)
}

type paymentRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

func NewPaymentRepository(pool *pgxpool.Pool) PaymentRepository {
	return &paymentRepo{pool: pool, tracer: otel.Tracer("repository/payment")}
}

func (r *paymentRepo) Upsert(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error {
	ctx, span := r.tracer.Start(ctx, "PaymentRepository.Upsert")
	defer span.End()
	span.SetAttributes(attribute.Int64("order_ref", payment.OrderID))

	err := tx.QueryRow(ctx, `
		INSERT INTO payments (order_id, customer_id, vendor_id, amount, payment_method, transaction_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id) DO UPDATE
		SET customer_id = EXCLUDED.customer_id,
		    vendor_id = EXCLUDED.vendor_id,
		    amount = EXCLUDED.amount,
		    payment_method = EXCLUDED.payment_method,
		    transaction_id = EXCLUDED.transaction_id,
		    status = EXCLUDED.status,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, payment.OrderID, payment.CustomerID, payment.VendorID, payment.Amount,
		payment.PaymentMethod, payment.TransactionID, payment.Status).
		Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("upsert payment: %w", err)
	}
	return nil
}

func (r *paymentRepo) GetByOrder(ctx context.Context, orderID int64) (*domain.Payment, error) {
	ctx, span := r.tracer.Start(ctx, "PaymentRepository.GetByOrder")
	defer span.End()

	var p domain.Payment
	var txID *string
	err := r.pool.QueryRow(ctx, `
		SELECT id, order_id, customer_id, vendor_id, amount, payment_method, transaction_id, status, created_at, updated_at
		FROM payments
		WHERE order_id = $1
	`, orderID).Scan(&p.ID, &p.OrderID, &p.CustomerID, &p.VendorID, &p.Amount, &p.PaymentMethod, &txID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if txID != nil {
		p.TransactionID = *txID
	}
	return &p, nil
}

func (r *paymentRepo) CompletedEarnings(ctx context.Context, vendorID int64) (decimal.Decimal, error) {
	ctx, span := r.tracer.Start(ctx, "PaymentRepository.CompletedEarnings")
	defer span.End()

	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM payments
		WHERE vendor_id = $1 AND status = $2
	`, vendorID, domain.PaymentRecordCompleted).Scan(&total)
	if err != nil {
		span.RecordError(err)
		return decimal.Zero, fmt.Errorf("sum completed payments: %w", err)
	}
	return total, nil
}
