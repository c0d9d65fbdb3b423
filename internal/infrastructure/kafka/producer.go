package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/segmentio/kafka-go"
)

const headerEventType = "event_type"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes outbox events keyed by aggregate ID, so events of one
// order land on one partition in order.
type Producer struct {
	writer messageWriter
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: writer}
}

func toMessage(e store.Event) (kafka.Message, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:     []byte(e.AggregateID),
		Value:   data,
		Time:    e.Timestamp,
		Headers: []kafka.Header{{Key: headerEventType, Value: []byte(e.EventType)}},
	}, nil
}

// Publish writes events as a single batch.
func (p *Producer) Publish(ctx context.Context, events ...store.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		msg, err := toMessage(e)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
