package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateChargeSendsPesosWithBasicAuth(t *testing.T) {
	var got ChargeRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/m-test/charges", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		auth = user + ":" + pass
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ChargeResponse{ID: "tx-99", Status: "completed", OrderID: got.OrderID})
	}))
	defer srv.Close()

	g := NewOpenpayClient("m-test", "sk-test", false)
	g.SetBaseURL(srv.URL)

	charge, err := g.CreateCharge(context.Background(), "card", 95000, "Mensualidad 1/10", "31",
		Customer{Name: "Ana Torres", Email: "ana@example.com"}, "tok_abc")
	require.NoError(t, err)

	assert.Equal(t, "sk-test:", auth)
	// 95000 cents travel as 950.00 pesos.
	assert.Equal(t, 950.0, got.Amount)
	assert.Equal(t, "MXN", got.Currency)
	assert.Equal(t, "tok_abc", got.SourceID)
	assert.Equal(t, "31", got.OrderID)
	assert.Equal(t, "tx-99", charge.ID)
	assert.Equal(t, "completed", charge.Status)
}

func TestCreateChargeOmitsSourceForStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChargeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Empty(t, req.SourceID)
		assert.Equal(t, "store", req.Method)
		_, _ = w.Write([]byte(`{"id":"tx-5","status":"in_progress","payment_method":{"type":"store","reference":"010101","barcode_url":"https://s.example/b.png"}}`))
	}))
	defer srv.Close()

	g := NewOpenpayClient("m-test", "sk-test", false)
	g.SetBaseURL(srv.URL)

	charge, err := g.CreateCharge(context.Background(), "store", 50000, "Pago inicial", "30", Customer{}, "")
	require.NoError(t, err)
	require.NotNil(t, charge.PaymentMethod)
	assert.Equal(t, "010101", charge.PaymentMethod.Reference)
	assert.Equal(t, "https://s.example/b.png", charge.PaymentMethod.BarcodeURL)
}

func TestCreateChargeSurfacesGatewayErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"description":"card declined","http_code":402,"request_id":"req-1"}`))
	}))
	defer srv.Close()

	g := NewOpenpayClient("m-test", "sk-test", false)
	g.SetBaseURL(srv.URL)

	_, err := g.CreateCharge(context.Background(), "card", 95000, "d", "31", Customer{}, "tok_bad")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusPaymentRequired, apiErr.StatusCode)
	assert.Equal(t, "card declined", apiErr.Description)
}

func TestGetCharge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/m-test/charges/tx-99", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"tx-99","status":"completed"}`))
	}))
	defer srv.Close()

	g := NewOpenpayClient("m-test", "sk-test", false)
	g.SetBaseURL(srv.URL)

	charge, err := g.GetCharge(context.Background(), "tx-99")
	require.NoError(t, err)
	assert.Equal(t, "completed", charge.Status)
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"type":"charge.succeeded"}`)
	mac := hmac.New(sha256.New, []byte("whsec"))
	mac.Write(payload)
	sig := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, VerifyWebhookSignature("whsec", payload, sig))
	assert.False(t, VerifyWebhookSignature("other", payload, sig))
	assert.False(t, VerifyWebhookSignature("whsec", []byte(`tampered`), sig))
	assert.False(t, VerifyWebhookSignature("whsec", payload, ""))
}
