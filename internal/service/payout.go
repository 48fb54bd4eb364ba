package service

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
	"go.uber.org/zap"

	"github.com/bristywardah/R-Nold/internal/domain"
	"github.com/bristywardah/R-Nold/internal/repository"
	"github.com/bristywardah/R-Nold/pkg/ctxlog"
)

// EarningsSummary is a vendor's settlement position: what their completed
// payments add up to, what is already tied up in open payout requests, and
// the remainder they can still request.
type EarningsSummary struct {
	Earned    decimal.Decimal `json:"earned"`
	Requested decimal.Decimal `json:"requested"`
	Available decimal.Decimal `json:"available"`
}

type PayoutService interface {
	Earnings(ctx context.Context, vendorID int64) (*EarningsSummary, error)
	Request(ctx context.Context, vendor *domain.User, amount decimal.Decimal, paymentMethod, note string) (*domain.PayoutRequest, error)
	List(ctx context.Context, user *domain.User) ([]domain.PayoutRequest, error)
	Resolve(ctx context.Context, admin *domain.User, id int64, approve bool) error
}

type payoutService struct {
	pool        *pgxpool.Pool
	logger      *zap.Logger
	payoutRepo  repository.PayoutRepository
	paymentRepo repository.PaymentRepository
	userRepo    repository.UserRepository
	notifier    NotificationService
	tracer      trace.Tracer
}

func NewPayoutService(
	pool *pgxpool.Pool,
	logger *zap.Logger,
	payoutRepo repository.PayoutRepository,
	paymentRepo repository.PaymentRepository,
	userRepo repository.UserRepository,
	notifier NotificationService,
) PayoutService {
	return &payoutService{
		pool:        pool,
		logger:      logger,
		payoutRepo:  payoutRepo,
		paymentRepo: paymentRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		tracer:      otel.Tracer("payout_service"),
	}
}

func (s *payoutService) rollback(ctx context.Context, tx pgx.Tx) {
	shutdownCtx := context.WithoutCancel(ctx)

	if err := tx.Rollback(shutdownCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		ctxlog.Warn(shutdownCtx, s.logger, "Error rolling back transaction", zap.Error(err))
	}
}

func (s *payoutService) Earnings(ctx context.Context, vendorID int64) (*EarningsSummary, error) {
	ctx, span := s.tracer.Start(ctx, "PayoutService.Earnings")
	defer span.End()
	span.SetAttributes(attribute.Int64("vendor_id", vendorID))

	earned, err := s.paymentRepo.CompletedEarnings(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	requested, err := s.payoutRepo.RequestedTotal(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	return &EarningsSummary{
		Earned:    earned,
		Requested: requested,
		Available: earned.Sub(requested),
	}, nil
}

func (s *payoutService) Request(ctx context.Context, vendor *domain.User, amount decimal.Decimal, paymentMethod, note string) (*domain.PayoutRequest, error) {
	ctx, span := s.tracer.Start(ctx, "PayoutService.Request")
	defer span.End()
	span.SetAttributes(attribute.Int64("vendor_id", vendor.ID))

	if !amount.IsPositive() {
		return nil, fmt.Errorf("payout amount must be positive: %w", ErrPayoutTooLarge)
	}

	summary, err := s.Earnings(ctx, vendor.ID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(summary.Available) {
		ctxlog.Warn(
			ctx,
			s.logger,
			"Payout request exceeds available earnings",
			zap.Int64("vendor_id", vendor.ID),
			zap.String("amount", amount.StringFixed(2)),
			zap.String("available", summary.Available.StringFixed(2)),
		)

		return nil, ErrPayoutTooLarge
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	req := &domain.PayoutRequest{
		VendorID:      vendor.ID,
		Amount:        amount,
		PaymentMethod: paymentMethod,
		Note:          note,
		Status:        domain.PayoutStatusPending,
	}
	if err := s.payoutRepo.Create(ctx, tx, req); err != nil {
		return nil, err
	}

	admins, err := s.userRepo.ActiveAdmins(ctx)
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("Vendor %s requested a payout of %s.", vendor.Email, amount.StringFixed(2))
	meta := domain.Meta(domain.NotificationPayout, vendor, map[string]string{
		"amount": amount.StringFixed(2),
	})
	for i := range admins {
		if err := s.notifier.Notify(ctx, tx, &admins[i], msg, meta); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		ctxlog.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return req, nil
}

func (s *payoutService) List(ctx context.Context, user *domain.User) ([]domain.PayoutRequest, error) {
	ctx, span := s.tracer.Start(ctx, "PayoutService.List")
	defer span.End()

	switch user.Role {
	case domain.RoleAdmin:
		return s.payoutRepo.ListAll(ctx)
	case domain.RoleVendor:
		return s.payoutRepo.ListForVendor(ctx, user.ID)
	}
	return nil, ErrForbidden
}

func (s *payoutService) Resolve(ctx context.Context, admin *domain.User, id int64, approve bool) error {
	ctx, span := s.tracer.Start(ctx, "PayoutService.Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("payout_id", id),
		attribute.Bool("approve", approve),
	)

	if admin.Role != domain.RoleAdmin {
		return ErrForbidden
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	req, err := s.payoutRepo.GetForUpdate(ctx, tx, id)
	if err != nil {
		return err
	}
	if req.Status != domain.PayoutStatusPending {
		return fmt.Errorf("payout request %d already %s: %w", id, req.Status, ErrPayoutResolved)
	}

	status := domain.PayoutStatusRejected
	if approve {
		status = domain.PayoutStatusApproved
	}
	if err := s.payoutRepo.SetStatus(ctx, tx, id, status); err != nil {
		return err
	}

	vendor, err := s.userRepo.Get(ctx, req.VendorID)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("Your payout request of %s was %s.", req.Amount.StringFixed(2), status)
	meta := domain.Meta(domain.NotificationPayout, admin, map[string]string{
		"amount": req.Amount.StringFixed(2),
		"status": string(status),
	})
	if err := s.notifier.Notify(ctx, tx, vendor, msg, meta); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		ctxlog.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
