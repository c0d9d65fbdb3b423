// Package command implements every state-changing operation: the order
// workflow, product maintenance, cart and address edits, and registration.
package command

import (
	"context"
	"time"

	"github.com/example/ec-storefront/internal/apperr"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/logging"
	"github.com/example/ec-storefront/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	tracerName = "github.com/example/ec-storefront/internal/command"
	spanPrefix = "UC."
)

const (
	useCaseRegister      = "account.register"
	useCaseAuthenticate  = "account.authenticate"
	useCaseAddAddress    = "address.add"
	useCaseRemoveAddress = "address.remove"
	useCaseCartAdd       = "cart.add"
	useCaseCartIncrease  = "cart.increase"
	useCaseCartDecrease  = "cart.decrease"
	useCaseCartRemove    = "cart.remove"
	useCaseCartClear     = "cart.clear"
	useCaseProductCreate = "product.create"
	useCaseProductUpdate = "product.update"
	useCaseProductDelete = "product.delete"
	useCaseProductStock  = "product.adjust_stock"
	useCaseOrderCreate   = "order.create"
	useCaseOrderCancel   = "order.cancel"
	useCaseOrderShip     = "order.ship"
	useCaseOrderDeliver  = "order.deliver"
)

type Handler struct {
	store   store.Store
	logger  *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

func NewHandler(s store.Store, logger *zap.Logger, m *metrics.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Handler{
		store:   s,
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer(tracerName),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// begin opens a span for useCase and returns the derived context, a logger
// bound to the use case, and a finish func that records the outcome.
func (h *Handler) begin(ctx context.Context, useCase string, attrs ...attribute.KeyValue) (context.Context, *zap.Logger, func(error)) {
	attrs = append(attrs, attribute.String("use_case", useCase))
	ctx, span := h.tracer.Start(ctx, spanPrefix+useCase, trace.WithAttributes(attrs...))
	logger := logging.FromContextOr(ctx, h.logger).With(zap.String("use_case", useCase))
	start := time.Now()

	return ctx, logger, func(err error) {
		outcome := "success"
		if err != nil {
			kind := apperr.KindOf(err)
			outcome = string(kind)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if kind == apperr.KindInternal {
				logger.Error("use_case_failed", zap.Error(err))
			} else {
				logger.Info("use_case_rejected", zap.String("kind", string(kind)), zap.Error(err))
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
		h.metrics.ObserveUseCase(useCase, outcome, time.Since(start).Seconds())
		span.End()
	}
}
