package kafka

import (
	"context"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bristywardah/R-Nold/pkg/ctxlog"
)

type HandlerFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

// ConsumerGroup runs a sarama consumer group over the given topics, marking a
// message only after the handler returns nil.
type ConsumerGroup struct {
	brokers []string
	groupID string
	topics  []string
	handler HandlerFunc
	logger  *zap.Logger
}

func NewConsumerGroup(brokers []string, groupID string, topics []string, handler HandlerFunc, logger *zap.Logger) *ConsumerGroup {
	return &ConsumerGroup{
		brokers: brokers,
		groupID: groupID,
		topics:  topics,
		handler: handler,
		logger:  logger,
	}
}

func (c *ConsumerGroup) Run(ctx context.Context) error {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_0_0_0
	cfg.Consumer.Return.Errors = true
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.BalanceStrategyRoundRobin}

	group, err := sarama.NewConsumerGroup(c.brokers, c.groupID, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := group.Close(); err != nil {
			c.logger.Error("closing consumer group", zap.Error(err))
		}
	}()

	h := &groupHandler{handler: c.handler, logger: c.logger}
	for {
		if err := group.Consume(ctx, c.topics, h); err != nil {
			ctxlog.Error(ctx, c.logger, "consumer loop error", zap.Error(err))
		}
		if ctx.Err() != nil {
			ctxlog.Info(ctx, c.logger, "consumer shutting down")
			return nil
		}
	}
}

type groupHandler struct {
	handler HandlerFunc
	logger  *zap.Logger
}

func (h *groupHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		ctx := extractTracing(session.Context(), msg)
		if err := h.handler(ctx, msg); err != nil {
			ctxlog.Error(ctx, h.logger, "message handler failed",
				zap.String("topic", msg.Topic),
				zap.Int32("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			continue
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

func extractTracing(ctx context.Context, msg *sarama.ConsumerMessage) context.Context {
	carrier := propagation.MapCarrier{}
	for _, header := range msg.Headers {
		carrier[string(header.Key)] = string(header.Value)
	}
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)

	ctx, _ = otel.Tracer("pkg/kafka").Start(ctx, "kafka_process",
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
	return ctx
}
