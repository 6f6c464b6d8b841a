package paymob

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/tutor-marketplace/internal/config"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.PaymobConfig{
		BaseURL:       srv.URL,
		APIKey:        "api-key",
		PayoutAPIKey:  "payout-key",
		IntegrationID: 77,
		IframeID:      "900",
		HMACSecret:    testSecret,
		Currency:      "EGP",
		Timeout:       2 * time.Second,
	}, zap.NewNop())
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestCreatePaymentLink(t *testing.T) {
	var calls []string
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/tokens", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		assert.Equal(t, "api-key", decodeBody(t, r)["api_key"])
		_, _ = w.Write([]byte(`{"token":"auth-tok"}`))
	})
	mux.HandleFunc("/ecommerce/orders", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "auth-tok", body["auth_token"])
		assert.Equal(t, float64(10000), body["amount_cents"])
		assert.Equal(t, "42-abc", body["merchant_order_id"])
		assert.Equal(t, "EGP", body["currency"])
		_, _ = w.Write([]byte(`{"id":5551}`))
	})
	mux.HandleFunc("/acceptance/payment_keys", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "5551", body["order_id"])
		assert.Equal(t, float64(77), body["integration_id"])
		assert.Equal(t, float64(3600), body["expiration"])
		billing := body["billing_data"].(map[string]any)
		assert.Equal(t, "s@example.com", billing["email"])
		assert.Equal(t, "NA", billing["phone_number"])
		_, _ = w.Write([]byte(`{"token":"pay-tok"}`))
	})
	c := newTestClient(t, mux)

	link, err := c.CreatePaymentLink(context.Background(), OrderRequest{
		AmountCents:     10000,
		MerchantOrderID: "42-abc",
		Billing:         Billing{FirstName: "Sara", Email: "s@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/auth/tokens", "/ecommerce/orders", "/acceptance/payment_keys"}, calls)
	assert.Equal(t, "5551", link.OrderID)
	assert.Equal(t, "pay-tok", link.PaymentToken)
	assert.Contains(t, link.URL, "/acceptance/iframes/900?payment_token=pay-tok")
}

func TestCreatePaymentLink_AuthRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/tokens", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"bad key"}`))
	})
	c := newTestClient(t, mux)

	_, err := c.CreatePaymentLink(context.Background(), OrderRequest{AmountCents: 100, MerchantOrderID: "1-x"})
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "auth", gwErr.Op)
	assert.Equal(t, http.StatusUnauthorized, gwErr.Status)
}

func TestPayout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/acceptance/payout", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer payout-key", r.Header.Get("Authorization"))
		body := decodeBody(t, r)
		assert.Equal(t, "rcp_1", body["recipient"])
		assert.Equal(t, float64(9000), body["amount"])
		_, _ = w.Write([]byte(`{"id":"po_9"}`))
	})
	c := newTestClient(t, mux)

	id, err := c.Payout(context.Background(), PayoutRequest{AmountCents: 9000, RecipientID: "rcp_1", Description: "lesson 1"})
	require.NoError(t, err)
	assert.Equal(t, "po_9", id)
}

func TestPayout_ServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/acceptance/payout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	c := newTestClient(t, mux)

	_, err := c.Payout(context.Background(), PayoutRequest{AmountCents: 1, RecipientID: "r"})
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusBadGateway, gwErr.Status)
}

func TestRegisterRecipient_NumericID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/acceptance/payouts/recipients", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, "wallet", body["type"])
		_, _ = w.Write([]byte(`{"id": 31337}`))
	})
	c := newTestClient(t, mux)

	id, err := c.RegisterRecipient(context.Background(), RecipientRequest{Name: "T", Type: "wallet"})
	require.NoError(t, err)
	assert.Equal(t, "31337", id)
}

func TestVerifyCallback_UsesConfiguredSecret(t *testing.T) {
	c := newTestClient(t, http.NewServeMux())
	obj := sampleObj(t)
	assert.True(t, c.VerifyCallback(obj, Sign(testSecret, obj)))
	assert.False(t, c.VerifyCallback(obj, Sign("wrong", obj)))
}
