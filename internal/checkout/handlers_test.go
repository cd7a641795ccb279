package checkout_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flip-id/flip-checkout-service/internal/checkout"
	"github.com/flip-id/flip-checkout-service/internal/common"
	"github.com/flip-id/flip-checkout-service/internal/flip"
	"github.com/flip-id/flip-checkout-service/internal/order"
)

func newHandler(orders *stubOrders, gw *stubGateway) *checkout.Handler {
	cfg := testConfig()
	cfg.CartURL = "/checkout/cart"
	return &checkout.Handler{
		Cfg:    cfg,
		Svc:    newService(orders, gw),
		Orders: orders,
		Logger: zerolog.Nop(),
	}
}

func TestCheckoutEndpointCreatesBill(t *testing.T) {
	o := pendingOrder("ORD-1001")
	orders := &stubOrders{orders: map[string]*order.Order{"ORD-1001": o}}
	gw := &stubGateway{result: flip.BillResult{LinkID: 42, LinkURL: "flip.id/pwf/abc", Status: "ACTIVE"}}
	h := newHandler(orders, gw)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/checkout",
		strings.NewReader(`{"order_reference": "ORD-1001"}`))
	rec := httptest.NewRecorder()
	h.Checkout(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var env common.Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.Equal(t, http.StatusOK, env.StatusCode)
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, "https://flip.id/pwf/abc", env.PaymentURL)
}

func TestCheckoutEndpointUnknownOrder(t *testing.T) {
	h := newHandler(&stubOrders{orders: map[string]*order.Order{}}, &stubGateway{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/checkout",
		strings.NewReader(`{"order_reference": "NOPE"}`))
	rec := httptest.NewRecorder()
	h.Checkout(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var env common.Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, http.StatusNotFound, env.StatusCode)
}

func TestCheckoutEndpointRejectsBadBody(t *testing.T) {
	h := newHandler(&stubOrders{}, &stubGateway{})

	for _, body := range []string{"", "{not json", `{"order_reference": "  "}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/checkout",
			strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.Checkout(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestCheckoutEndpointGatewayErrorMessageSurfaces(t *testing.T) {
	o := pendingOrder("ORD-1001")
	orders := &stubOrders{orders: map[string]*order.Order{"ORD-1001": o}}
	gw := &stubGateway{err: &flip.GatewayError{Status: "422", Message: "amount below minimum"}}
	h := newHandler(orders, gw)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/checkout",
		strings.NewReader(`{"order_reference": "ORD-1001"}`))
	rec := httptest.NewRecorder()
	h.Checkout(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var env common.Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.Equal(t, http.StatusInternalServerError, env.StatusCode)
	assert.Equal(t, "amount below minimum", env.Message)
}

func TestFinishRendersConfirmation(t *testing.T) {
	o := pendingOrder("ORD-1001")
	o.State = order.StateProcessing
	o.SetAdditionalInfo(order.InfoPaymentURL, "https://flip.id/pwf/abc")
	o.SetAdditionalInfo(order.InfoFlipTrxID, "TRX-1")
	orders := &stubOrders{
		orders: map[string]*order.Order{"ORD-1001": o},
		entries: []order.HistoryEntry{
			{OrderID: o.ID, Title: "Payment received", Comment: "Payment received. Transaction id: TRX-1", State: order.StateProcessing},
			{OrderID: o.ID, Title: "Awaiting payment", State: order.StatePendingPayment},
		},
	}
	h := newHandler(orders, &stubGateway{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payment/finish?state=ORD-1001", nil)
	rec := httptest.NewRecorder()
	h.Finish(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ORD-1001", body["reference"])
	assert.Equal(t, "processing", body["state"])
	assert.Equal(t, "TRX-1", body["transaction_id"])
	hist, ok := body["history"].([]any)
	require.True(t, ok, "confirmation should carry the status history")
	require.Len(t, hist, 2)
	first, ok := hist[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Payment received", first["title"])
}

func TestFinishRedirectsToCartOnFailure(t *testing.T) {
	canceled := pendingOrder("ORD-GONE")
	canceled.State = order.StateCanceled
	orders := &stubOrders{orders: map[string]*order.Order{"ORD-GONE": canceled}}
	h := newHandler(orders, &stubGateway{})

	// missing reference, unknown order, canceled order
	for _, target := range []string{
		"/api/v1/payment/finish",
		"/api/v1/payment/finish?state=NOPE",
		"/api/v1/payment/finish?state=ORD-GONE",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		h.Finish(rec, req)
		assert.Equal(t, http.StatusFound, rec.Code, target)
		assert.Equal(t, "/checkout/cart", rec.Header().Get("Location"), target)
	}
}

func TestConfigInfoExposesCallbackURL(t *testing.T) {
	h := newHandler(&stubOrders{}, &stubGateway{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payment/config", nil)
	rec := httptest.NewRecorder()
	h.ConfigInfo(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "https://shop.example/api/v1/payment/callback", body["callback_url"])
	assert.Equal(t, "sandbox", body["mode"])
	assert.Equal(t, "BIZ9", body["business_id"])
}
