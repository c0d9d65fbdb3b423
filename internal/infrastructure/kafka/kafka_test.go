package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeWriter struct {
	written []kafka.Message
	err     error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

// fakeReader replays msgs and then cancels the consumer.
type fakeReader struct {
	msgs   []kafka.Message
	cancel context.CancelFunc
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) Close() error { return nil }

func newTestEvent(t *testing.T, eventType string) store.Event {
	t.Helper()
	e, err := store.NewEvent("order-1", "Order", eventType, map[string]string{"k": "v"})
	require.NoError(t, err)
	return e
}

// ============================================
// Producer Tests
// ============================================

func TestProducer_Publish_KeysByAggregate(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w}
	e := newTestEvent(t, "OrderPlaced")

	require.NoError(t, p.Publish(context.Background(), e))

	require.Len(t, w.written, 1)
	msg := w.written[0]
	assert.Equal(t, "order-1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "OrderPlaced", string(msg.Headers[0].Value))

	var decoded store.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, e.ID, decoded.ID)
}

func TestProducer_Publish_Empty(t *testing.T) {
	w := &fakeWriter{err: errors.New("should not be called")}
	p := &Producer{writer: w}

	assert.NoError(t, p.Publish(context.Background()))
}

func TestProducer_Publish_WriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := &Producer{writer: &fakeWriter{err: boom}}

	err := p.Publish(context.Background(), newTestEvent(t, "OrderPlaced"))

	assert.ErrorIs(t, err, boom)
}

// ============================================
// Consumer Tests
// ============================================

func TestConsumer_Consume_DecodesAndSkipsGarbage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	good, err := toMessage(newTestEvent(t, "OrderCancelled"))
	require.NoError(t, err)

	core, logs := observer.New(zap.DebugLevel)
	c := &Consumer{
		reader: &fakeReader{msgs: []kafka.Message{{Value: []byte("not json")}, good}, cancel: cancel},
		logger: zap.New(core),
	}

	var handled []string
	err = c.Consume(ctx, func(ctx context.Context, e store.Event) error {
		handled = append(handled, e.EventType)
		return errors.New("handler failed")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"OrderCancelled"}, handled)
	assert.Equal(t, 1, logs.FilterMessage("kafka_message_undecodable").Len())
	assert.Equal(t, 1, logs.FilterMessage("kafka_handle_failed").Len())
}
