package transport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartapp "github.com/ecofinds/marketplace/application/cart"
	orderapp "github.com/ecofinds/marketplace/application/order"
	productapp "github.com/ecofinds/marketplace/application/product"
	"github.com/ecofinds/marketplace/cmd/config"
	"github.com/ecofinds/marketplace/constant"
	"github.com/ecofinds/marketplace/model"
	"github.com/ecofinds/marketplace/pkg/metrics"
	"github.com/ecofinds/marketplace/repository/memory"
	"github.com/ecofinds/marketplace/transport"
	"github.com/ecofinds/marketplace/utils/errors"
)

// stubAuth maps bearer tokens straight to user ids.
type stubAuth map[string]uint64

func (s stubAuth) ValidateToken(_ context.Context, token string) (uint64, error) {
	id, ok := s[token]
	if !ok {
		return 0, errors.SetCustomError(constant.ErrUnauthorize)
	}
	return id, nil
}

type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type server struct {
	t       *testing.T
	handler http.Handler
	store   *memory.Store
	lamp    uint64
}

func newServer(t *testing.T) *server {
	t.Helper()
	store := memory.NewStore()
	store.AddUser(model.UserEntity{ID: 1, Username: "buyer", IsActive: true})
	store.AddUser(model.UserEntity{ID: 2, Username: "seller", IsActive: true})
	store.AddUser(model.UserEntity{ID: 3, Username: "stranger", IsActive: true})
	lamp := store.AddProduct(model.ProductDetail{
		SellerID: 2,
		Title:    "Brass Lamp",
		Category: "home",
		Price:    decimal.RequireFromString("25.00"),
	})

	cfg := &config.Config{Order: config.OrderConfig{TaxRate: constant.DefaultTaxRate}}
	productRepo := memory.NewProductRepository(store)
	cartRepo := memory.NewCartRepository(store)
	reg := prometheus.NewRegistry()

	handler := transport.NewTransport(
		stubAuth{"buyer-token": 1, "seller-token": 2, "stranger-token": 3},
		productapp.NewProductApp(productRepo),
		cartapp.NewCartApp(cartRepo, productRepo),
		orderapp.NewOrderApp(cfg, memory.NewTxRepository(store), memory.NewOrderRepository(store), cartRepo, productRepo, nil, nil, metrics.NewOrderMetrics(reg)),
		transport.Options{
			Metrics:      metrics.NewServerMetrics(reg),
			Gatherer:     reg,
			MetricsToken: "ops",
		},
	)
	return &server{t: t, handler: handler, store: store, lamp: lamp}
}

func (s *server) do(method, path, token string, body interface{}, headers ...string) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestHealthAndRequestID(t *testing.T) {
	s := newServer(t)

	rec, env := s.do(http.MethodGet, "/healthz", "", nil, constant.HeaderRequestID, "req-42")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0000", env.Code)
	assert.Equal(t, "req-42", rec.Header().Get(constant.HeaderRequestID))

	rec, _ = s.do(http.MethodGet, "/healthz", "", nil)
	assert.NotEmpty(t, rec.Header().Get(constant.HeaderRequestID))
}

func TestAuthRequired(t *testing.T) {
	s := newServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/cart"},
		{http.MethodPost, "/checkout"},
		{http.MethodGet, "/orders"},
		{http.MethodPatch, "/orders/1/status"},
	} {
		rec, env := s.do(tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
		assert.Equal(t, "0004", env.Code, tc.path)
	}

	rec, _ := s.do(http.MethodGet, "/cart", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(http.MethodGet, "/products", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProductEndpoints(t *testing.T) {
	s := newServer(t)

	rec, env := s.do(http.MethodGet, "/products?category=home&per_page=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list model.ProductListResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, int64(1), list.TotalCount)
	assert.Equal(t, 5, list.PerPage)
	assert.Equal(t, "seller", list.Items[0].SellerName)

	rec, env = s.do(http.MethodGet, fmt.Sprintf("/products/%d", s.lamp), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail model.ProductDetail
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, "Brass Lamp", detail.Title)

	rec, env = s.do(http.MethodGet, "/products/999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "0002", env.Code)
}

func TestCheckoutFlow(t *testing.T) {
	s := newServer(t)

	rec, env := s.do(http.MethodPost, "/cart/items", "seller-token", model.AddCartItemRequest{ProductID: s.lamp, Quantity: 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "0009", env.Code)

	rec, _ = s.do(http.MethodPost, "/cart/items", "buyer-token", map[string]int{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = s.do(http.MethodPost, "/cart/items", "buyer-token", model.AddCartItemRequest{ProductID: s.lamp, Quantity: 1})
	require.Equal(t, http.StatusOK, rec.Code)
	var cart model.CartResponse
	require.NoError(t, json.Unmarshal(env.Data, &cart))
	assert.Equal(t, 1, cart.ItemCount)

	rec, env = s.do(http.MethodPost, "/checkout", "buyer-token", model.CheckoutRequest{PaymentMethod: "crypto"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "0003", env.Code)

	rec, env = s.do(http.MethodPost, "/checkout", "buyer-token", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order model.Order
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("27")), "total %s", order.TotalAmount)
	assert.Equal(t, constant.OrderStatusConfirmed, order.Status)
	require.Len(t, order.Items, 1)

	rec, env = s.do(http.MethodPost, "/checkout", "buyer-token", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "0005", env.Code)

	orderPath := fmt.Sprintf("/orders/%d", order.ID)

	rec, env = s.do(http.MethodGet, orderPath, "stranger-token", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "0007", env.Code)

	rec, _ = s.do(http.MethodGet, orderPath, "seller-token", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodPatch, orderPath+"/status", "seller-token", map[string]string{"status": "shipped", "tracking_number": "TRK-1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(http.MethodPatch, orderPath+"/status", "seller-token", map[string]string{"status": "confirmed"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "0008", env.Code)

	rec, _ = s.do(http.MethodPatch, orderPath+"/status", "seller-token", map[string]string{"status": "teleported"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = s.do(http.MethodGet, "/orders", "buyer-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var orders model.OrderListResponse
	require.NoError(t, json.Unmarshal(env.Data, &orders))
	require.Len(t, orders.Items, 1)
	assert.Equal(t, "TRK-1", orders.Items[0].TrackingNumber)

	rec, env = s.do(http.MethodGet, "/sales", "stranger-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &orders))
	assert.Empty(t, orders.Items)
}

func TestCheckoutRejectsOversizedIdempotencyKey(t *testing.T) {
	s := newServer(t)
	s.store.AddCartLine(1, s.lamp, 1)

	rec, _ := s.do(http.MethodPost, "/checkout", "buyer-token", nil, constant.HeaderIdempotencyKey, strings.Repeat("k", 129))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, s.store.OrderCount())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t)
	s.do(http.MethodGet, "/healthz", "", nil)

	rec, _ := s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(http.MethodGet, "/metrics", "ops", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ecofinds_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}
