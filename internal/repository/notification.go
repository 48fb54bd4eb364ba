package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/bristywardah/R-Nold/internal/domain"
)

type NotificationRepository interface {
	Create(ctx context.Context, tx pgx.Tx, n *domain.Notification) error
	ListForUser(ctx context.Context, userID int64, onlyUnseen bool) ([]domain.Notification, error)
	MarkSeen(ctx context.Context, id, userID int64) error
	MarkAllSeen(ctx context.Context, userID int64) error
	Delete(ctx context.Context, id, userID int64) error
}

type notificationRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepo{pool: pool, tracer: otel.Tracer("repository/notification")}
}

func (r *notificationRepo) Create(ctx context.Context, tx pgx.Tx, n *domain.Notification) error {
	ctx, span := r.tracer.Start(ctx, "NotificationRepository.Create")
	defer span.End()

	err := tx.QueryRow(ctx, `
		INSERT INTO notifications (user_id, sender_id, message, meta_data)
		VALUES ($1, $2, $3, $4)
		RETURNING id, seen, event_time
	`, n.UserID, n.SenderID, n.Message, n.MetaData).Scan(&n.ID, &n.Seen, &n.EventTime)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *notificationRepo) ListForUser(ctx context.Context, userID int64, onlyUnseen bool) ([]domain.Notification, error) {
	ctx, span := r.tracer.Start(ctx, "NotificationRepository.ListForUser")
	defer span.End()

	query := `
		SELECT id, user_id, sender_id, message, meta_data, seen, event_time
		FROM notifications
		WHERE user_id = $1
	`
	if onlyUnseen {
		query += ` AND NOT seen`
	}
	query += ` ORDER BY event_time DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.SenderID, &n.Message, &n.MetaData, &n.Seen, &n.EventTime); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *notificationRepo) MarkSeen(ctx context.Context, id, userID int64) error {
	return r.exec(ctx, "NotificationRepository.MarkSeen", `
		UPDATE notifications SET seen = TRUE WHERE id = $1 AND user_id = $2
	`, id, userID)
}

func (r *notificationRepo) MarkAllSeen(ctx context.Context, userID int64) error {
	ctx, span := r.tracer.Start(ctx, "NotificationRepository.MarkAllSeen")
	defer span.End()

	if _, err := r.pool.Exec(ctx, `
		UPDATE notifications SET seen = TRUE WHERE user_id = $1 AND NOT seen
	`, userID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("mark all seen: %w", err)
	}
	return nil
}

func (r *notificationRepo) Delete(ctx context.Context, id, userID int64) error {
	return r.exec(ctx, "NotificationRepository.Delete", `
		DELETE FROM notifications WHERE id = $1 AND user_id = $2
	`, id, userID)
}

func (r *notificationRepo) exec(ctx context.Context, op, query string, args ...any) error {
	ctx, span := r.tracer.Start(ctx, op)
	defer span.End()

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
