package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/ec-storefront/internal/logging"
	"github.com/example/ec-storefront/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedRouter() (*gin.Engine, *metrics.Metrics, *observer.ObservedLogs) {
	core, logs := observer.New(zap.InfoLevel)
	m := metrics.New(prometheus.NewRegistry())

	r := gin.New()
	r.Use(Observability(zap.New(core), m))
	r.GET("/items/:id", func(c *gin.Context) {
		logging.FromContext(c.Request.Context()).Info("inside_handler")
		c.Status(http.StatusNoContent)
	})
	return r, m, logs
}

func TestObservability_AssignsRequestID(t *testing.T) {
	r, _, logs := newObservedRouter()

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	rid := rec.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, rid)

	inside := logs.FilterMessage("inside_handler").All()
	require.Len(t, inside, 1)
	assert.Equal(t, rid, inside[0].ContextMap()["request_id"])
}

func TestObservability_EchoesRequestID(t *testing.T) {
	r, _, _ := newObservedRouter()
	req := httptest.NewRequest(http.MethodGet, "/items/42", nil)
	req.Header.Set(RequestIDHeader, "req-fixed")

	rec := serve(r, req)

	assert.Equal(t, "req-fixed", rec.Header().Get(RequestIDHeader))
}

func TestObservability_RecordsRouteTemplate(t *testing.T) {
	r, m, logs := newObservedRouter()

	serve(r, httptest.NewRequest(http.MethodGet, "/items/1", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/items/2", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.HTTPRequests.WithLabelValues(http.MethodGet, "/items/:id", "204")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequests.WithLabelValues(http.MethodGet, unmatchedRoute, "404")))
	assert.Equal(t, 3, logs.FilterMessage("http_request").Len())
}
