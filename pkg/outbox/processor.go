package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bristywardah/R-Nold/pkg/ctxlog"
)

type Publisher interface {
	Produce(ctx context.Context, topic string, message any) error
}

// Processor polls for unpublished events and pushes them to the broker.
// A publish failure bumps the attempt counter; the row is retried until
// maxAttempts and then left for inspection.
type Processor struct {
	pool      *pgxpool.Pool
	store     Store
	publisher Publisher
	logger    *zap.Logger
	batchSize int
	interval  time.Duration
	tracer    trace.Tracer
}

func NewProcessor(pool *pgxpool.Pool, store Store, publisher Publisher, logger *zap.Logger) *Processor {
	return &Processor{
		pool:      pool,
		store:     store,
		publisher: publisher,
		logger:    logger,
		batchSize: 50,
		interval:  500 * time.Millisecond,
		tracer:    otel.Tracer("outbox/processor"),
	}
}

func (p *Processor) Start(ctx context.Context) {
	ctxlog.Info(ctx, p.logger, "outbox processor started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ctxlog.Info(ctx, p.logger, "outbox processor stopping")
			return
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil {
				ctxlog.Error(ctx, p.logger, "outbox batch failed", zap.Error(err))
			}
		}
	}
}

func (p *Processor) processBatch(ctx context.Context) error {
	ctx, span := p.tracer.Start(ctx, "OutboxProcessor.processBatch")
	defer span.End()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			ctxlog.Error(cleanupCtx, p.logger, "outbox rollback failed", zap.Error(err))
		}
	}()

	events, err := p.store.Unpublished(ctx, tx, p.batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	for _, event := range events {
		if err := p.publisher.Produce(ctx, event.Topic, event.Payload); err != nil {
			ctxlog.Warn(ctx, p.logger, "outbox publish failed",
				zap.Int64("event_id", event.ID),
				zap.String("topic", event.Topic),
				zap.Error(err),
			)
			if dbErr := p.store.MarkFailed(ctx, tx, event.ID, err.Error()); dbErr != nil {
				return dbErr
			}
			continue
		}
		if err := p.store.MarkPublished(ctx, tx, event.ID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
