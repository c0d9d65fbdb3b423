package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/example/ec-storefront/internal/logging"
	"github.com/example/ec-storefront/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	RequestIDHeader = "X-Request-ID"
	tracerName      = "github.com/example/ec-storefront/internal/api"
	unmatchedRoute  = "unmatched"
)

// Observability combines:
// - W3C trace context extraction and a server span per request
// - X-Request-ID generation + echo
// - a request-scoped zap logger stored on the request context
// - HTTP metrics labelled by route template, never by raw path
func Observability(base *zap.Logger, m *metrics.Metrics) gin.HandlerFunc {
	if base == nil {
		base = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	prop := otel.GetTextMapPropagator()
	tracer := otel.Tracer(tracerName)

	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}

		ctx := prop.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()

		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header(RequestIDHeader, rid)

		fields := []zap.Field{
			zap.String("request_id", rid),
			zap.String("method", method),
			zap.String("path", c.Request.URL.Path),
		}
		if sc := span.SpanContext(); sc.IsValid() {
			fields = append(fields,
				zap.String("trace_id", sc.TraceID().String()),
				zap.String("span_id", sc.SpanID().String()),
			)
		}
		reqLogger := base.With(fields...)
		c.Request = c.Request.WithContext(logging.ContextWithLogger(ctx, reqLogger))

		c.Next()

		status := c.Writer.Status()
		elapsed := time.Since(start)
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())

		reqLogger.Info("http_request",
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", elapsed),
		)
	}
}
