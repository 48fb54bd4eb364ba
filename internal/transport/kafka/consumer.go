// Package kafka bridges the notification topic to the WebSocket hub. The
// events it consumes were committed through the outbox, so everything seen
// here is already durable.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/bristywardah/R-Nold/internal/service"
	"github.com/bristywardah/R-Nold/internal/transport/ws"
	"github.com/bristywardah/R-Nold/pkg/ctxlog"
	"github.com/bristywardah/R-Nold/pkg/kafka"
)

type eventEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// NewNotificationConsumer returns a consumer group that pushes every
// NotificationCreated event to its routing group on the hub.
func NewNotificationConsumer(brokers []string, topic string, hub *ws.Hub, logger *zap.Logger) *kafka.ConsumerGroup {
	handler := func(ctx context.Context, msg *sarama.ConsumerMessage) error {
		var envelope eventEnvelope
		if err := json.Unmarshal(msg.Value, &envelope); err != nil {
			// Malformed messages are logged and marked, retrying cannot fix them.
			ctxlog.Warn(
				ctx,
				logger,
				"Skipping malformed notification event",
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)

			return nil
		}
		if envelope.Event != "NotificationCreated" {
			return nil
		}

		var push service.PushMessage
		if err := json.Unmarshal(envelope.Payload, &push); err != nil {
			return fmt.Errorf("unmarshal push message: %w", err)
		}

		payload, err := json.Marshal(push.Notification)
		if err != nil {
			return fmt.Errorf("marshal notification: %w", err)
		}
		hub.Broadcast(push.Group, payload)

		ctxlog.Debug(
			ctx,
			logger,
			"Notification pushed",
			zap.String("group", push.Group),
			zap.Int64("notification_id", push.Notification.ID),
		)

		return nil
	}

	return kafka.NewConsumerGroup(brokers, "notification-push", []string{topic}, handler, logger)
}
