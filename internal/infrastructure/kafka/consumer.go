package kafka

import (
	"context"
	"encoding/json"

	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventHandler processes one decoded event. Errors are logged and the
// message is still committed.
type EventHandler func(ctx context.Context, e store.Event) error

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader messageReader
	logger *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, logger: logger}
}

// Consume blocks until ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Error("kafka_read_failed", zap.Error(err))
				continue
			}

			var event store.Event
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				c.logger.Warn("kafka_message_undecodable",
					zap.ByteString("key", msg.Key),
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
				continue
			}

			if err := handler(ctx, event); err != nil {
				c.logger.Error("kafka_handle_failed",
					zap.String("event_id", event.ID),
					zap.String("event_type", event.EventType),
					zap.Error(err),
				)
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
