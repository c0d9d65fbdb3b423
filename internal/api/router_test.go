package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/ec-storefront/internal/apperr"
	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/command"
	"github.com/example/ec-storefront/internal/domain/account"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/infrastructure/store/memory"
	"github.com/example/ec-storefront/internal/metrics"
	"github.com/example/ec-storefront/internal/query"
	"github.com/example/ec-storefront/internal/readmodel"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	store  *memory.Store
	jwt    *auth.JWTService
}

func newTestServer() *testServer {
	s := memory.New()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	jwtService := auth.NewJWTService("test-secret-key-at-least-32-characters", 15*time.Minute)

	cmdHandler := command.NewHandler(s, zap.NewNop(), m)
	queryHandler := query.NewHandler(s, zap.NewNop())
	router := NewRouter(
		NewHandlers(cmdHandler, queryHandler),
		NewAuthHandlers(cmdHandler, queryHandler, jwtService),
		jwtService,
		RouterConfig{Logger: zap.NewNop(), Metrics: m, Gatherer: reg},
	)
	return &testServer{router: router, store: s, jwt: jwtService}
}

// seedAccount stores an account directly and returns a bearer token for it.
func (ts *testServer) seedAccount(t *testing.T, email, role string) (*account.Account, string) {
	t.Helper()
	a, err := account.New(email, "Test", "unused")
	require.NoError(t, err)
	a.Role = role
	require.NoError(t, ts.store.Accounts().Create(context.Background(), a))

	token, _, err := ts.jwt.GenerateAccessToken(a.ID, a.Email, a.Role)
	require.NoError(t, err)
	return a, token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, kind apperr.Kind) ErrorDetail {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	body := decode[ErrorBody](t, rec)
	assert.Equal(t, kind, body.Error.Kind)
	return body.Error
}

// shopper seeds a customer with a complete address and a product owned by
// someone else.
func (ts *testServer) shopper(t *testing.T, price string, stock int) (token, addressID string, p *product.Product) {
	t.Helper()
	_, token = ts.seedAccount(t, "shopper@example.com", account.RoleCustomer)

	rec := ts.do(t, http.MethodPost, "/addresses", token, map[string]string{
		"country": "IN", "city": "Pune", "address1": "12 MG Road", "postal_code": "411001", "type": "home",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	addressID = decode[account.Address](t, rec).ID

	p, err := product.New("seller", product.Fields{
		Name: "Widget", Price: decimal.RequireFromString(price), Stock: stock, Images: []string{"widget.png"},
	})
	require.NoError(t, err)
	require.NoError(t, ts.store.Products().Create(context.Background(), p))
	return token, addressID, p
}

// ============================================
// Public Endpoint Tests
// ============================================

func TestRouter_Healthz(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Metrics(t *testing.T) {
	ts := newTestServer()
	ts.do(t, http.MethodGet, "/healthz", "", nil)

	rec := ts.do(t, http.MethodGet, "/metrics", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_http_requests_total")
}

func TestRouter_ProtectedRequiresToken(t *testing.T) {
	ts := newTestServer()

	for _, path := range []string{"/me", "/cart", "/orders", "/addresses"} {
		rec := ts.do(t, http.MethodGet, path, "", nil)
		assertError(t, rec, http.StatusUnauthorized, apperr.KindUnauthorized)
	}
}

// ============================================
// Auth Handler Tests
// ============================================

func TestAuthHandlers_RegisterLoginMe(t *testing.T) {
	ts := newTestServer()
	creds := map[string]string{"email": "new@example.com", "name": "New", "password": "password123"}

	rec := ts.do(t, http.MethodPost, "/auth/register", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")

	rec = ts.do(t, http.MethodPost, "/auth/register", "", creds)
	assertError(t, rec, http.StatusConflict, apperr.KindConflict)

	rec = ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "new@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[LoginResponse](t, rec)
	assert.NotEmpty(t, login.Token)
	assert.True(t, login.ExpiresAt.After(time.Now()))
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "access_token=")

	rec = ts.do(t, http.MethodGet, "/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new@example.com", decode[readmodel.AccountReadModel](t, rec).Email)

	rec = ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "new@example.com", "password": "wrong-password"})
	assertError(t, rec, http.StatusUnauthorized, apperr.KindUnauthorized)
}

func TestAuthHandlers_InvalidBody(t *testing.T) {
	ts := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()

	ts.router.ServeHTTP(rec, req)

	assertError(t, rec, http.StatusBadRequest, apperr.KindValidation)
}

// ============================================
// Product Handler Tests
// ============================================

func TestHandlers_ProductLifecycle(t *testing.T) {
	ts := newTestServer()
	_, owner := ts.seedAccount(t, "owner@example.com", account.RoleCustomer)
	_, intruder := ts.seedAccount(t, "intruder@example.com", account.RoleCustomer)

	rec := ts.do(t, http.MethodPost, "/products", owner, map[string]any{"name": "Lamp", "price": "19.99", "stock": 3})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[product.Product](t, rec)

	rec = ts.do(t, http.MethodGet, "/products/"+p.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPut, "/products/"+p.ID, intruder, map[string]any{"name": "Mine now"})
	assertError(t, rec, http.StatusNotFound, apperr.KindNotFound)

	rec = ts.do(t, http.MethodPut, "/products/"+p.ID, owner, map[string]any{"price": "-1"})
	assertError(t, rec, http.StatusBadRequest, apperr.KindValidation)

	rec = ts.do(t, http.MethodPost, "/products/"+p.ID+"/stock", owner, map[string]int{"delta": -5})
	assertError(t, rec, http.StatusConflict, apperr.KindInsufficientStock)

	rec = ts.do(t, http.MethodPost, "/products/"+p.ID+"/stock", owner, map[string]int{"delta": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, decode[product.Product](t, rec).Stock)

	rec = ts.do(t, http.MethodGet, "/me/products", owner, nil)
	assert.Len(t, decode[[]product.Product](t, rec), 1)

	rec = ts.do(t, http.MethodDelete, "/products/"+p.ID, owner, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/products/"+p.ID, "", nil)
	assertError(t, rec, http.StatusNotFound, apperr.KindNotFound)
}

func TestHandlers_CreateProduct_NegativeStock(t *testing.T) {
	ts := newTestServer()
	_, owner := ts.seedAccount(t, "owner@example.com", account.RoleCustomer)

	rec := ts.do(t, http.MethodPost, "/products", owner, map[string]any{"name": "Lamp", "price": "1", "stock": -1})

	assertError(t, rec, http.StatusBadRequest, apperr.KindValidation)
}

// ============================================
// Cart and Address Handler Tests
// ============================================

func TestHandlers_CartFlow(t *testing.T) {
	ts := newTestServer()
	token, _, p := ts.shopper(t, "2.50", 10)

	rec := ts.do(t, http.MethodPost, "/cart/items", token, map[string]any{"productId": p.ID, "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/cart/items/"+p.ID+"/increase", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decode[readmodel.CartReadModel](t, rec)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, "7.50", cart.Total.StringFixed(2))

	rec = ts.do(t, http.MethodPost, "/cart/items", token, map[string]any{"productId": "missing", "quantity": 1})
	assertError(t, rec, http.StatusNotFound, apperr.KindNotFound)

	rec = ts.do(t, http.MethodDelete, "/cart/items/"+p.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[readmodel.CartReadModel](t, rec).Items)
}

func TestHandlers_Addresses(t *testing.T) {
	ts := newTestServer()
	token, addressID, _ := ts.shopper(t, "1.00", 1)

	rec := ts.do(t, http.MethodPost, "/addresses", token, map[string]string{
		"country": "IN", "city": "Pune", "address1": "1 Road", "postal_code": "1", "type": "castle",
	})
	assertError(t, rec, http.StatusBadRequest, apperr.KindValidation)

	rec = ts.do(t, http.MethodDelete, "/addresses/"+addressID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, http.MethodDelete, "/addresses/"+addressID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/addresses", token, nil)
	assert.Empty(t, decode[[]account.Address](t, rec))
}

// ============================================
// Order Handler Tests
// ============================================

func TestHandlers_OrderFromCartThenCancel(t *testing.T) {
	ts := newTestServer()
	token, addressID, p := ts.shopper(t, "10.00", 5)
	ts.do(t, http.MethodPost, "/cart/items", token, map[string]any{"productId": p.ID, "quantity": 2})

	rec := ts.do(t, http.MethodPost, "/orders", token, map[string]any{"shippingAddressId": addressID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	orderID := decode[struct {
		OrderID string `json:"orderId"`
	}](t, rec).OrderID
	require.NotEmpty(t, orderID)

	rec = ts.do(t, http.MethodGet, "/orders", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Orders []readmodel.OrderReadModel `json:"orders"`
	}](t, rec)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, "20.00", list.Orders[0].Total.StringFixed(2))

	rec = ts.do(t, http.MethodGet, "/orders/"+orderID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPut, "/orders/"+orderID+"/cancel", token, map[string]string{"reason": "too slow"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cancelled := decode[struct {
		Order readmodel.OrderReadModel `json:"order"`
	}](t, rec).Order
	assert.Equal(t, order.StatusCancelled, cancelled.Status)
	assert.Equal(t, "too slow", cancelled.CancelReason)

	rec = ts.do(t, http.MethodPut, "/orders/"+orderID+"/cancel", token, nil)
	assertError(t, rec, http.StatusBadRequest, apperr.KindInvalidTransition)

	restocked, err := ts.store.Products().GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, restocked.Stock)
}

func TestHandlers_PlaceOrder_InsufficientStock(t *testing.T) {
	ts := newTestServer()
	token, addressID, p := ts.shopper(t, "1.00", 1)

	rec := ts.do(t, http.MethodPost, "/orders", token, map[string]any{
		"shippingAddressId": addressID,
		"items":             []map[string]any{{"productId": p.ID, "quantity": 2}},
	})

	detail := assertError(t, rec, http.StatusConflict, apperr.KindInsufficientStock)
	assert.Contains(t, detail.Message, "Widget")
}

func TestHandlers_PlaceOrder_UnknownAddress(t *testing.T) {
	ts := newTestServer()
	token, _, p := ts.shopper(t, "1.00", 1)

	rec := ts.do(t, http.MethodPost, "/orders", token, map[string]any{
		"shippingAddressId": "nope",
		"items":             []map[string]any{{"productId": p.ID, "quantity": 1}},
	})

	assertError(t, rec, http.StatusNotFound, apperr.KindNotFound)
}

func TestHandlers_PlaceOrder_IdempotencyKey(t *testing.T) {
	ts := newTestServer()
	token, addressID, p := ts.shopper(t, "1.00", 5)
	body := map[string]any{
		"shippingAddressId": addressID,
		"items":             []map[string]any{{"productId": p.ID, "quantity": 1}},
	}

	first := ts.do(t, http.MethodPost, "/orders", token, body, IdempotencyKeyHeader, "k-1")
	second := ts.do(t, http.MethodPost, "/orders", token, body, IdempotencyKeyHeader, "k-1")

	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestHandlers_GetOrder_OtherAccount(t *testing.T) {
	ts := newTestServer()
	token, addressID, p := ts.shopper(t, "1.00", 5)
	_, other := ts.seedAccount(t, "other@example.com", account.RoleCustomer)
	rec := ts.do(t, http.MethodPost, "/orders", token, map[string]any{
		"shippingAddressId": addressID,
		"items":             []map[string]any{{"productId": p.ID, "quantity": 1}},
	})
	orderID := decode[map[string]string](t, rec)["orderId"]

	rec = ts.do(t, http.MethodGet, "/orders/"+orderID, other, nil)
	assertError(t, rec, http.StatusNotFound, apperr.KindNotFound)

	rec = ts.do(t, http.MethodPut, "/orders/"+orderID+"/cancel", other, nil)
	assertError(t, rec, http.StatusNotFound, apperr.KindNotFound)
}

func TestHandlers_AdminShipping(t *testing.T) {
	ts := newTestServer()
	token, addressID, p := ts.shopper(t, "1.00", 5)
	_, admin := ts.seedAccount(t, "admin@example.com", account.RoleAdmin)
	rec := ts.do(t, http.MethodPost, "/orders", token, map[string]any{
		"shippingAddressId": addressID,
		"items":             []map[string]any{{"productId": p.ID, "quantity": 1}},
	})
	orderID := decode[map[string]string](t, rec)["orderId"]

	rec = ts.do(t, http.MethodPut, "/admin/orders/"+orderID+"/ship", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPut, "/admin/orders/"+orderID+"/ship", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPut, "/orders/"+orderID+"/cancel", token, nil)
	detail := assertError(t, rec, http.StatusBadRequest, apperr.KindInvalidTransition)
	assert.Equal(t, order.ErrOrderShipped.Error(), detail.Message)

	rec = ts.do(t, http.MethodPut, "/admin/orders/"+orderID+"/deliver", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

// ============================================
// Error Mapping Tests
// ============================================

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.KindNotFound, http.StatusNotFound},
		{apperr.KindValidation, http.StatusBadRequest},
		{apperr.KindInsufficientStock, http.StatusConflict},
		{apperr.KindInvalidTransition, http.StatusBadRequest},
		{apperr.KindConflict, http.StatusConflict},
		{apperr.KindUnauthorized, http.StatusUnauthorized},
		{apperr.KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.kind))
		})
	}
}

func TestRespondError_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	respondError(c, errors.New("pq: connection refused on 10.0.0.5"))

	body := decode[ErrorBody](t, rec)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apperr.KindInternal, body.Error.Kind)
	assert.Equal(t, internalMessage, body.Error.Message)
}
