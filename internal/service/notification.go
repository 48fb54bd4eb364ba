package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bristywardah/R-Nold/internal/domain"
	"github.com/bristywardah/R-Nold/internal/repository"
	"github.com/bristywardah/R-Nold/pkg/ctxlog"
	"github.com/bristywardah/R-Nold/pkg/outbox"
)

// PushMessage is the payload of every event on the notification topic. Group
// is the real-time routing key derived from the recipient's role.
type PushMessage struct {
	Group        string              `json:"group"`
	Notification domain.Notification `json:"notification"`
}

type NotificationService interface {
	// Notify persists a notification and queues its real-time push inside the
	// caller's transaction. The push is delivered only if the caller commits.
	Notify(ctx context.Context, tx pgx.Tx, recipient *domain.User, message string, meta json.RawMessage) error
	// NotifyChat records a chat-message notification for the receiver, the
	// message cut down to a preview line with the sender in front.
	NotifyChat(ctx context.Context, sender *domain.User, receiverID int64, message string) error
	List(ctx context.Context, userID int64, onlyUnseen bool) ([]domain.Notification, error)
	MarkSeen(ctx context.Context, id, userID int64) error
	MarkAllSeen(ctx context.Context, userID int64) error
	Delete(ctx context.Context, id, userID int64) error
}

type notificationService struct {
	pool             *pgxpool.Pool
	logger           *zap.Logger
	notificationRepo repository.NotificationRepository
	userRepo         repository.UserRepository
	outboxStore      outbox.Store
	topic            string
	tracer           trace.Tracer
}

func NewNotificationService(
	pool *pgxpool.Pool,
	logger *zap.Logger,
	notificationRepo repository.NotificationRepository,
	userRepo repository.UserRepository,
	outboxStore outbox.Store,
	topic string,
) NotificationService {
	return &notificationService{
		pool:             pool,
		logger:           logger,
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		outboxStore:      outboxStore,
		topic:            topic,
		tracer:           otel.Tracer("notification_service"),
	}
}

func (s *notificationService) rollback(ctx context.Context, tx pgx.Tx) {
	shutdownCtx := context.WithoutCancel(ctx)

	if err := tx.Rollback(shutdownCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		ctxlog.Warn(shutdownCtx, s.logger, "Error rolling back transaction", zap.Error(err))
	}
}

func (s *notificationService) Notify(ctx context.Context, tx pgx.Tx, recipient *domain.User, message string, meta json.RawMessage) error {
	ctx, span := s.tracer.Start(ctx, "NotificationService.Notify")
	defer span.End()

	n := &domain.Notification{
		UserID:   recipient.ID,
		Message:  message,
		MetaData: meta,
	}
	if err := s.notificationRepo.Create(ctx, tx, n); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create notification: %w", err)
	}

	envelope := map[string]any{
		"event": "NotificationCreated",
		"payload": PushMessage{
			Group:        recipient.NotificationGroup(),
			Notification: *n,
		},
	}
	payloadBytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	event := &outbox.Event{
		Topic:     s.topic,
		EventType: "NotificationCreated",
		Payload:   payloadBytes,
	}
	if err := s.outboxStore.Save(ctx, tx, event); err != nil {
		ctxlog.Error(
			ctx,
			s.logger,
			"Failed to save outbox event",
			zap.Error(err),
		)

		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	return nil
}

func (s *notificationService) NotifyChat(ctx context.Context, sender *domain.User, receiverID int64, message string) error {
	ctx, span := s.tracer.Start(ctx, "NotificationService.NotifyChat")
	defer span.End()

	receiver, err := s.userRepo.Get(ctx, receiverID)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	msg := fmt.Sprintf("%s: %s", sender.FullName(), domain.ChatPreview(message))
	if err := s.Notify(ctx, tx, receiver, msg, domain.Meta(domain.NotificationChat, sender, nil)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		ctxlog.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *notificationService) List(ctx context.Context, userID int64, onlyUnseen bool) ([]domain.Notification, error) {
	ctx, span := s.tracer.Start(ctx, "NotificationService.List")
	defer span.End()

	return s.notificationRepo.ListForUser(ctx, userID, onlyUnseen)
}

func (s *notificationService) MarkSeen(ctx context.Context, id, userID int64) error {
	ctx, span := s.tracer.Start(ctx, "NotificationService.MarkSeen")
	defer span.End()

	if err := s.notificationRepo.MarkSeen(ctx, id, userID); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return err
		}
		return fmt.Errorf("failed to mark notification seen: %w", err)
	}
	return nil
}

func (s *notificationService) MarkAllSeen(ctx context.Context, userID int64) error {
	ctx, span := s.tracer.Start(ctx, "NotificationService.MarkAllSeen")
	defer span.End()

	return s.notificationRepo.MarkAllSeen(ctx, userID)
}

func (s *notificationService) Delete(ctx context.Context, id, userID int64) error {
	ctx, span := s.tracer.Start(ctx, "NotificationService.Delete")
	defer span.End()

	return s.notificationRepo.Delete(ctx, id, userID)
}
