// Package outbox implements the transactional outbox: events are written in
// the same transaction as the state change that caused them, and a background
// processor publishes them to Kafka afterwards. The durable row, not the
// publish, is the source of truth.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const maxAttempts = 10

type Event struct {
	ID          int64           `db:"id"`
	Topic       string          `db:"topic"`
	EventType   string          `db:"event_type"`
	Payload     json.RawMessage `db:"payload"`
	Attempts    int64           `db:"attempts"`
	LastError   *string         `db:"last_error"`
	PublishedAt *time.Time      `db:"published_at"`
	CreatedAt   time.Time       `db:"created_at"`
}

type Store interface {
	Save(ctx context.Context, tx pgx.Tx, event *Event) error
	Unpublished(ctx context.Context, tx pgx.Tx, batchSize int) ([]*Event, error)
	MarkPublished(ctx context.Context, tx pgx.Tx, eventID int64) error
	MarkFailed(ctx context.Context, tx pgx.Tx, eventID int64, errMsg string) error
}

type store struct {
	tracer trace.Tracer
}

func NewStore() Store {
	return &store{tracer: otel.Tracer("outbox/store")}
}

func (s *store) Save(ctx context.Context, tx pgx.Tx, event *Event) error {
	ctx, span := s.tracer.Start(ctx, "OutboxStore.Save")
	defer span.End()

	query := `
		INSERT INTO outbox (topic, event_type, payload)
		VALUES ($1, $2, $3)
	`
	if _, err := tx.Exec(ctx, query, event.Topic, event.EventType, event.Payload); err != nil {
		span.RecordError(err)
		return fmt.Errorf("save outbox event: %w", err)
	}
	return nil
}

func (s *store) Unpublished(ctx context.Context, tx pgx.Tx, batchSize int) ([]*Event, error) {
	ctx, span := s.tracer.Start(ctx, "OutboxStore.Unpublished")
	defer span.End()

	query := `
		SELECT id, topic, event_type, payload, attempts, created_at
		FROM outbox
		WHERE published_at IS NULL AND attempts < $2
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := tx.Query(ctx, query, batchSize, maxAttempts)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query unpublished events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Topic, &e.EventType, &e.Payload, &e.Attempts, &e.CreatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (s *store) MarkPublished(ctx context.Context, tx pgx.Tx, eventID int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE outbox
		SET published_at = NOW(), last_error = NULL
		WHERE id = $1
	`, eventID)
	return err
}

func (s *store) MarkFailed(ctx context.Context, tx pgx.Tx, eventID int64, errMsg string) error {
	_, err := tx.Exec(ctx, `
		UPDATE outbox
		SET last_error = $1, attempts = attempts + 1
		WHERE id = $2
	`, errMsg, eventID)
	return err
}

// RecordProcessed inserts the provider event id into processed_events inside
// tx. It returns false when the id was already recorded, which is how webhook
// redelivery is detected without a second round trip.
func RecordProcessed(ctx context.Context, tx pgx.Tx, eventID string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO processed_events (event_id)
		VALUES ($1)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID)
	if err != nil {
		return false, fmt.Errorf("record processed event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
