package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/bristywardah/R-Nold/internal/domain"
)

type ProductRepository interface {
	Get(ctx context.Context, id int64) (*domain.Product, error)
	DecreaseStock(ctx context.Context, tx pgx.Tx, id, quantity int64) error
}

type productRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &productRepo{pool: pool, tracer: otel.Tracer("repository/product")}
}

func (r *productRepo) Get(ctx context.Context, id int64) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Get")
	defer span.End()

	var p domain.Product
	err := r.pool.QueryRow(ctx, `
		SELECT id, vendor_id, name, sku, price, stock_tracked, stock_quantity, status, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.VendorID, &p.Name, &p.SKU, &p.Price, &p.StockTracked, &p.StockQuantity, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

func (r *productRepo) DecreaseStock(ctx context.Context, tx pgx.Tx, id, quantity int64) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.DecreaseStock")
	defer span.End()

	tag, err := tx.Exec(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2, updated_at = NOW()
		WHERE id = $1 AND (NOT stock_tracked OR stock_quantity >= $2)
	`, id, quantity)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("decrease stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d, quantity %d: %w", id, quantity, ErrInsufficientStock)
	}
	return nil
}

// cachedProductRepo is a read-through cache in front of product lookups.
// Stock mutation invalidates the cached entry.
type cachedProductRepo struct {
	next        ProductRepository
	redisClient *redis.Client
	cacheTTL    time.Duration
}

func NewCachedProductRepository(next ProductRepository, redisClient *redis.Client) ProductRepository {
	return &cachedProductRepo{
		next:        next,
		redisClient: redisClient,
		cacheTTL:    10 * time.Minute,
	}
}

func (r *cachedProductRepo) key(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

func (r *cachedProductRepo) Get(ctx context.Context, id int64) (*domain.Product, error) {
	if val, err := r.redisClient.Get(ctx, r.key(id)).Result(); err == nil {
		var p domain.Product
		if err := json.Unmarshal([]byte(val), &p); err == nil {
			return &p, nil
		}
	}

	p, err := r.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(p); err == nil {
		r.redisClient.Set(ctx, r.key(id), data, r.cacheTTL)
	}
	return p, nil
}

func (r *cachedProductRepo) DecreaseStock(ctx context.Context, tx pgx.Tx, id, quantity int64) error {
	if err := r.next.DecreaseStock(ctx, tx, id, quantity); err != nil {
		return err
	}
	r.redisClient.Del(ctx, r.key(id))
	return nil
}
