package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"raffle/internal/api"
	"raffle/internal/middleware"
	"raffle/internal/models"
	"raffle/internal/service"
	"raffle/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	router  *gin.Engine
	svc     *service.Services
	gateway *testutil.FakeGateway
}

func setupRouter(t *testing.T, checks ...api.HealthCheck) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gateway := testutil.NewFakeGateway()
	svc := service.NewServices(testutil.NewMemStore(), testutil.NewFakeCart(), gateway, &testutil.RecordingPublisher{},
		service.CheckoutConfig{Currency: "gbp", PaymentTimeout: time.Second, MaxDeposit: decimal.NewFromInt(500)})

	return &fixture{router: api.NewRouter(svc, checks...), svc: svc, gateway: gateway}
}

func (f *fixture) do(t *testing.T, method, path string, userID int64, body any) *httptest.ResponseRecorder {
	t.Helper()
	return f.doAs(t, method, path, userID, "", body)
}

func (f *fixture) doAs(t *testing.T, method, path string, userID int64, role string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		req.Header.Set(middleware.HeaderUserID, fmt.Sprint(userID))
	}
	if role != "" {
		req.Header.Set(middleware.HeaderUserRole, role)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) createCompetition(t *testing.T, price string, total int) int64 {
	t.Helper()
	w := f.doAs(t, http.MethodPost, "/api/admin/competitions", 1, middleware.RoleAdmin, map[string]any{
		"title":         "Weekend car",
		"ticket_price":  price,
		"total_tickets": total,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.CreateCompetitionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.ID
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	msg, _ := body["error"].(string)
	return msg
}

func TestIdentityRequired(t *testing.T) {
	f := setupRouter(t)

	w := f.do(t, http.MethodGet, "/api/orders", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPost, "/api/admin/competitions", 1, map[string]any{"title": "x"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCheckoutFlow(t *testing.T) {
	f := setupRouter(t)
	compID := f.createCompetition(t, "2.50", 10)

	w := f.do(t, http.MethodPost, "/api/cart", 7, models.AddCartItemRequest{CompetitionID: compID, Quantity: 4})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/api/cart", 7, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cart models.CartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cart))
	assert.Equal(t, "10.00", cart.Subtotal.StringFixed(2))

	w = f.do(t, http.MethodPost, "/api/checkout", 7, models.CheckoutRequest{})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var result models.CheckoutResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.RequiresPayment)
	assert.Equal(t, "10.00", result.AmountToCharge.StringFixed(2))

	path := fmt.Sprintf("/api/orders/%d", result.Order.ID)

	w = f.do(t, http.MethodPost, path+"/payment-intent", 7, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var intent models.PaymentIntentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &intent))
	assert.NotEmpty(t, intent.ClientSecret)
	assert.Equal(t, "gbp", intent.Currency)

	w = f.do(t, http.MethodPost, path+"/confirm", 7, models.ConfirmOrderRequest{PaymentIntentID: intent.PaymentIntentID})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	f.gateway.SetStatus(intent.PaymentIntentID, models.IntentStatusSucceeded)
	w = f.do(t, http.MethodPost, path+"/confirm", 7, models.ConfirmOrderRequest{PaymentIntentID: intent.PaymentIntentID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodGet, path, 7, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var order models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.Equal(t, models.OrderPaid, order.Status)

	w = f.do(t, http.MethodGet, path, 8, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, fmt.Sprintf("/api/competitions/%d/progress", compID), 8, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats models.PoolStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 4, stats.Sold)
}

func TestCheckoutErrors(t *testing.T) {
	f := setupRouter(t)
	compID := f.createCompetition(t, "1", 3)

	w := f.do(t, http.MethodPost, "/api/checkout", 7, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/cart", 7, models.AddCartItemRequest{CompetitionID: compID, Quantity: 5})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodPost, "/api/checkout", 7, models.CheckoutRequest{})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Only 3 tickets available", errorBody(t, w))

	w = f.do(t, http.MethodPost, "/api/cart", 7, models.AddCartItemRequest{CompetitionID: 999, Quantity: 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/api/orders/abc/cancel", 7, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPromoValidateEndpoint(t *testing.T) {
	f := setupRouter(t)

	w := f.do(t, http.MethodPost, "/api/promo/validate", 7, map[string]any{"code": "NOPE", "order_total": "20"})
	require.Equal(t, http.StatusOK, w.Code)

	var result models.PromoResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.Valid)
	assert.Equal(t, "Invalid promo code", result.Error)
}

func TestWalletEndpoints(t *testing.T) {
	f := setupRouter(t)

	w := f.doAs(t, http.MethodPost, "/api/admin/wallets/7/adjust", 1, middleware.RoleAdmin, map[string]any{
		"amount":      "12.50",
		"description": "goodwill",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.doAs(t, http.MethodPost, "/api/admin/wallets/7/adjust", 1, middleware.RoleAdmin, map[string]any{
		"amount":      "-100",
		"description": "too much",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Insufficient balance", errorBody(t, w))

	w = f.do(t, http.MethodGet, "/api/wallet", 7, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var wallet models.WalletResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &wallet))
	assert.Equal(t, "12.50", wallet.Balance.StringFixed(2))

	w = f.do(t, http.MethodGet, "/api/wallet/transactions?type=admin_credit", 7, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var txns []models.WalletTransaction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &txns))
	assert.Len(t, txns, 1)

	w = f.do(t, http.MethodGet, "/api/wallet/transactions?type=bonus", 7, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/wallet/deposit", 7, map[string]any{"amount": "1000"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/wallet/deposit", 7, map[string]any{"amount": "20"})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestStripeWebhookEndpoint(t *testing.T) {
	f := setupRouter(t)

	body := testutil.Event("evt_1", "customer.created", map[string]string{"id": "cus_1"})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(body))
	req.Header.Set("Stripe-Signature", "forged")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(body))
	req.Header.Set("Stripe-Signature", f.gateway.Secret)
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminRefundAndDraw(t *testing.T) {
	f := setupRouter(t)
	compID := f.createCompetition(t, "1", 5)

	w := f.doAs(t, http.MethodPost, "/api/admin/wallets/7/adjust", 1, middleware.RoleAdmin, map[string]any{"amount": "2", "description": "seed"})
	require.Equal(t, http.StatusOK, w.Code)

	f.do(t, http.MethodPost, "/api/cart", 7, models.AddCartItemRequest{CompetitionID: compID, Quantity: 2})
	w = f.do(t, http.MethodPost, "/api/checkout", 7, models.CheckoutRequest{UseWalletBalance: true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var result models.CheckoutResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Equal(t, models.OrderPaid, result.Order.Status)

	w = f.doAs(t, http.MethodPost, fmt.Sprintf("/api/admin/competitions/%d/draw", compID), 1, middleware.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.doAs(t, http.MethodPost, fmt.Sprintf("/api/admin/orders/%d/refund", result.Order.ID), 1, middleware.RoleAdmin, models.RefundRequest{Reason: "duplicate"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var order models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.Equal(t, models.OrderRefunded, order.Status)

	w = f.doAs(t, http.MethodPost, fmt.Sprintf("/api/admin/orders/%d/refund", 999), 1, middleware.RoleAdmin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := setupRouter(t,
		api.HealthCheck{Name: "database", Check: func(context.Context) error { return nil }},
		api.HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
	)

	w := f.do(t, http.MethodGet, "/health", 0, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	w = f.do(t, http.MethodGet, "/metrics", 0, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "raffle_"), "custom collectors are registered")
}
