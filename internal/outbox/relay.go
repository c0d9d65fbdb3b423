// Package outbox moves events recorded in the store's outbox onto the
// message broker.
package outbox

import (
	"context"
	"time"

	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/metrics"
	"go.uber.org/zap"
)

const defaultBatchSize = 100

// Publisher delivers a batch of events. *kafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, events ...store.Event) error
}

// Relay polls the outbox and publishes pending events in insertion order.
// Delivery is at-least-once: an event is marked published only after the
// publisher accepted it.
type Relay struct {
	outbox    store.OutboxRepository
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewRelay(outbox store.OutboxRepository, publisher Publisher, interval time.Duration, logger *zap.Logger, m *metrics.Metrics) *Relay {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		outbox:    outbox,
		publisher: publisher,
		interval:  interval,
		batchSize: defaultBatchSize,
		logger:    logger,
		metrics:   m,
	}
}

// Run flushes the outbox every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("outbox_relay_start", zap.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox_relay_stop")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("outbox_flush_failed", zap.Error(err))
			}
		}
	}
}

// Flush publishes pending events until the outbox is drained or an error
// occurs, and reports how many were published.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	published := 0
	for {
		events, err := r.outbox.Pending(ctx, r.batchSize)
		if err != nil {
			return published, err
		}
		if len(events) == 0 {
			return published, nil
		}

		if err := r.publisher.Publish(ctx, events...); err != nil {
			if r.metrics != nil {
				for _, e := range events {
					r.metrics.OutboxPublishFailed.WithLabelValues(e.EventType).Inc()
				}
			}
			return published, err
		}

		ids := make([]string, len(events))
		for i, e := range events {
			ids[i] = e.ID
		}
		if err := r.outbox.MarkPublished(ctx, ids, time.Now().UTC()); err != nil {
			return published, err
		}

		published += len(events)
		if r.metrics != nil {
			r.metrics.OutboxPublished.Add(float64(len(events)))
		}
		r.logger.Debug("outbox_batch_published", zap.Int("count", len(events)))

		if len(events) < r.batchSize {
			return published, nil
		}
	}
}
