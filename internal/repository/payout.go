package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/bristywardah/R-Nold/internal/domain"
)

type PayoutRepository interface {
	Create(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) error
	Get(ctx context.Context, id int64) (*domain.PayoutRequest, error)
	// GetForUpdate row-locks the request so concurrent admin decisions
	// serialize.
	GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.PayoutRequest, error)
	ListForVendor(ctx context.Context, vendorID int64) ([]domain.PayoutRequest, error)
	ListAll(ctx context.Context) ([]domain.PayoutRequest, error)
	SetStatus(ctx context.Context, tx pgx.Tx, id int64, status domain.PayoutStatus) error
	// RequestedTotal sums a vendor's pending and approved requests; the
	// difference against completed earnings caps new requests.
	RequestedTotal(ctx context.Context, vendorID int64) (decimal.Decimal, error)
}

type payoutRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

func NewPayoutRepository(pool *pgxpool.Pool) PayoutRepository {
	return &payoutRepo{pool: pool, tracer: otel.Tracer("repository/payout")}
}

const payoutColumns = `id, vendor_id, amount, payment_method, COALESCE(note, ''), status, created_at, updated_at`

func (r *payoutRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) error {
	ctx, span := r.tracer.Start(ctx, "PayoutRepository.Create")
	defer span.End()

	err := tx.QueryRow(ctx, `
		INSERT INTO payout_requests (vendor_id, amount, payment_method, note, status)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		RETURNING id, created_at, updated_at
	`, p.VendorID, p.Amount, p.PaymentMethod, p.Note, p.Status).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("insert payout request: %w", err)
	}
	return nil
}

func (r *payoutRepo) Get(ctx context.Context, id int64) (*domain.PayoutRequest, error) {
	ctx, span := r.tracer.Start(ctx, "PayoutRepository.Get")
	defer span.End()

	var p domain.PayoutRequest
	err := r.pool.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1`, id).
		Scan(&p.ID, &p.VendorID, &p.Amount, &p.PaymentMethod, &p.Note, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPayoutNotFound
		}
		return nil, fmt.Errorf("get payout request: %w", err)
	}
	return &p, nil
}

func (r *payoutRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.PayoutRequest, error) {
	ctx, span := r.tracer.Start(ctx, "PayoutRepository.GetForUpdate")
	defer span.End()

	var p domain.PayoutRequest
	err := tx.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1 FOR UPDATE`, id).
		Scan(&p.ID, &p.VendorID, &p.Amount, &p.PaymentMethod, &p.Note, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPayoutNotFound
		}
		return nil, fmt.Errorf("get payout request: %w", err)
	}
	return &p, nil
}

func (r *payoutRepo) ListForVendor(ctx context.Context, vendorID int64) ([]domain.PayoutRequest, error) {
	return r.list(ctx, `SELECT `+payoutColumns+` FROM payout_requests WHERE vendor_id = $1 ORDER BY created_at DESC`, vendorID)
}

func (r *payoutRepo) ListAll(ctx context.Context) ([]domain.PayoutRequest, error) {
	return r.list(ctx, `SELECT `+payoutColumns+` FROM payout_requests ORDER BY created_at DESC`)
}

func (r *payoutRepo) list(ctx context.Context, query string, args ...any) ([]domain.PayoutRequest, error) {
	ctx, span := r.tracer.Start(ctx, "PayoutRepository.list")
	defer span.End()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query payout requests: %w", err)
	}
	defer rows.Close()

	var out []domain.PayoutRequest
	for rows.Next() {
		var p domain.PayoutRequest
		if err := rows.Scan(&p.ID, &p.VendorID, &p.Amount, &p.PaymentMethod, &p.Note, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan payout request: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *payoutRepo) SetStatus(ctx context.Context, tx pgx.Tx, id int64, status domain.PayoutStatus) error {
	ctx, span := r.tracer.Start(ctx, "PayoutRepository.SetStatus")
	defer span.End()

	tag, err := tx.Exec(ctx, `
		UPDATE payout_requests
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`, id, status)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("set payout status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPayoutNotFound
	}
	return nil
}

func (r *payoutRepo) RequestedTotal(ctx context.Context, vendorID int64) (decimal.Decimal, error) {
	ctx, span := r.tracer.Start(ctx, "PayoutRepository.RequestedTotal")
	defer span.End()

	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM payout_requests
		WHERE vendor_id = $1 AND status IN ($2, $3)
	`, vendorID, domain.PayoutStatusPending, domain.PayoutStatusApproved).Scan(&total)
	if err != nil {
		span.RecordError(err)
		return decimal.Zero, fmt.Errorf("sum requested payouts: %w", err)
	}
	return total, nil
}
