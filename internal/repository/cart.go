package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/bristywardah/R-Nold/internal/domain"
)

type CartRepository interface {
	List(ctx context.Context, userID int64) ([]domain.CartLine, error)
	// ListActive returns the checkout-eligible lines (saved_for_later=false)
	// with the owning vendor joined in, inside the caller's transaction.
	ListActive(ctx context.Context, tx pgx.Tx, userID int64) ([]domain.CartLine, error)
	Upsert(ctx context.Context, line *domain.CartLine) error
	Get(ctx context.Context, id, userID int64) (*domain.CartLine, error)
	SetQuantity(ctx context.Context, id, userID, quantity int64) error
	SetSavedForLater(ctx context.Context, id, userID int64, saved bool) error
	Delete(ctx context.Context, id, userID int64) error
	DeleteActive(ctx context.Context, tx pgx.Tx, userID int64) error
}

type cartRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

func NewCartRepository(pool *pgxpool.Pool) CartRepository {
	return &cartRepo{pool: pool, tracer: otel.Tracer("repository/cart")}
}

func (r *cartRepo) List(ctx context.Context, userID int64) ([]domain.CartLine, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.List")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.user_id, c.product_id, c.quantity, c.price_snapshot,
		       c.saved_for_later, c.created_at, c.updated_at, p.vendor_id, p.name
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	defer rows.Close()
	return scanCartLines(rows)
}

func (r *cartRepo) ListActive(ctx context.Context, tx pgx.Tx, userID int64) ([]domain.CartLine, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.ListActive")
	defer span.End()

	rows, err := tx.Query(ctx, `
		SELECT c.id, c.user_id, c.product_id, c.quantity, c.price_snapshot,
		       c.saved_for_later, c.created_at, c.updated_at, p.vendor_id, p.name
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1 AND NOT c.saved_for_later
		ORDER BY c.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query active cart: %w", err)
	}
	defer rows.Close()
	return scanCartLines(rows)
}

func scanCartLines(rows pgx.Rows) ([]domain.CartLine, error) {
	var lines []domain.CartLine
	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(&l.ID, &l.UserID, &l.ProductID, &l.Quantity, &l.PriceSnapshot,
			&l.SavedForLater, &l.CreatedAt, &l.UpdatedAt, &l.ProductVendorID, &l.ProductName); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *cartRepo) Upsert(ctx context.Context, line *domain.CartLine) error {
	ctx, span := r.tracer.Start(ctx, "CartRepository.Upsert")
	defer span.End()

	err := r.pool.QueryRow(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity, price_snapshot)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id) DO UPDATE
		SET quantity = EXCLUDED.quantity,
		    price_snapshot = EXCLUDED.price_snapshot,
		    saved_for_later = FALSE,
		    updated_at = NOW()
		RETURNING id, saved_for_later, created_at, updated_at
	`, line.UserID, line.ProductID, line.Quantity, line.PriceSnapshot).
		Scan(&line.ID, &line.SavedForLater, &line.CreatedAt, &line.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("upsert cart line: %w", err)
	}
	return nil
}

func (r *cartRepo) Get(ctx context.Context, id, userID int64) (*domain.CartLine, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.Get")
	defer span.End()

	var l domain.CartLine
	err := r.pool.QueryRow(ctx, `
		SELECT c.id, c.user_id, c.product_id, c.quantity, c.price_snapshot,
		       c.saved_for_later, c.created_at, c.updated_at, p.vendor_id, p.name
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.id = $1 AND c.user_id = $2
	`, id, userID).Scan(&l.ID, &l.UserID, &l.ProductID, &l.Quantity, &l.PriceSnapshot,
		&l.SavedForLater, &l.CreatedAt, &l.UpdatedAt, &l.ProductVendorID, &l.ProductName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartLineNotFound
		}
		return nil, fmt.Errorf("get cart line: %w", err)
	}
	return &l, nil
}

func (r *cartRepo) SetQuantity(ctx context.Context, id, userID, quantity int64) error {
	return r.exec(ctx, "CartRepository.SetQuantity", `
		UPDATE cart_items
		SET quantity = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`, id, userID, quantity)
}

func (r *cartRepo) SetSavedForLater(ctx context.Context, id, userID int64, saved bool) error {
	return r.exec(ctx, "CartRepository.SetSavedForLater", `
		UPDATE cart_items
		SET saved_for_later = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`, id, userID, saved)
}

func (r *cartRepo) Delete(ctx context.Context, id, userID int64) error {
	return r.exec(ctx, "CartRepository.Delete", `
		DELETE FROM cart_items
		WHERE id = $1 AND user_id = $2
	`, id, userID)
}

func (r *cartRepo) exec(ctx context.Context, op, query string, args ...any) error {
	ctx, span := r.tracer.Start(ctx, op)
	defer span.End()

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCartLineNotFound
	}
	return nil
}

func (r *cartRepo) DeleteActive(ctx context.Context, tx pgx.Tx, userID int64) error {
	ctx, span := r.tracer.Start(ctx, "CartRepository.DeleteActive")
	defer span.End()

	if _, err := tx.Exec(ctx, `
		DELETE FROM cart_items
		WHERE user_id = $1 AND NOT saved_for_later
	`, userID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
