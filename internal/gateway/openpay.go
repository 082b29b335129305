// Package gateway holds the Openpay payment gateway client.  It is a thin
// REST client over the charges API plus webhook signature verification; the
// rest of the payment lifecycle lives in the payments handler.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	sandboxBaseURL    = "https://sandbox-api.openpay.mx/v1"
	productionBaseURL = "https://api.openpay.mx/v1"
)

// OpenpayClient talks to the Openpay charges API for one merchant.
type OpenpayClient struct {
	merchantID string
	privateKey string
	baseURL    string
	http       *http.Client
}

// NewOpenpayClient builds a client for the given merchant.  Production mode
// switches the base URL from the sandbox to the live API.
func NewOpenpayClient(merchantID, privateKey string, production bool) *OpenpayClient {
	base := sandboxBaseURL
	if production {
		base = productionBaseURL
	}
	return &OpenpayClient{
		merchantID: merchantID,
		privateKey: privateKey,
		baseURL:    base,
		http:       &http.Client{Timeout: 15 * time.Second},
	}
}

// SetBaseURL overrides the API endpoint. Used by tests.
func (g *OpenpayClient) SetBaseURL(url string) { g.baseURL = url }

// Customer identifies the payer on a charge.
type Customer struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

// ChargeRequest is the JSON body for POST /charges.  SourceID is only set for
// card charges (a token minted client-side); bank_account and store charges
// produce payment instructions instead of settling immediately.
type ChargeRequest struct {
	SourceID    string   `json:"source_id,omitempty"`
	Method      string   `json:"method"`
	Amount      float64  `json:"amount"`
	Currency    string   `json:"currency"`
	Description string   `json:"description"`
	OrderID     string   `json:"order_id"`
	Customer    Customer `json:"customer"`
	Use3DSecure bool     `json:"use_3d_secure,omitempty"`
}

// ChargeResponse is the subset of the Openpay charge object the service uses.
type ChargeResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Method        string `json:"method"`
	OrderID       string `json:"order_id"`
	ErrorMessage  string `json:"error_message"`
	PaymentMethod *struct {
		Type       string `json:"type"`
		Reference  string `json:"reference"`
		BarcodeURL string `json:"barcode_url"`
		Clabe      string `json:"clabe"`
		BankName   string `json:"name"`
	} `json:"payment_method,omitempty"`
}

// APIError is a non-2xx response from the gateway.
type APIError struct {
	StatusCode  int    `json:"http_code"`
	Description string `json:"description"`
	RequestID   string `json:"request_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openpay: %s (http %d)", e.Description, e.StatusCode)
}

// CreateCharge posts a charge request.  Amounts are in cents; Openpay expects
// decimal pesos, so the conversion happens here.
func (g *OpenpayClient) CreateCharge(ctx context.Context, method string, amountCents uint32, description, orderID string, cust Customer, cardToken string) (*ChargeResponse, error) {
	req := ChargeRequest{
		Method:      method,
		Amount:      float64(amountCents) / 100.0,
		Currency:    "MXN",
		Description: description,
		OrderID:     orderID,
		Customer:    cust,
	}
	if method == "card" {
		req.SourceID = cardToken
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s/charges", g.baseURL, g.merchantID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	// Openpay uses basic auth with the private key as username, empty password.
	httpReq.SetBasicAuth(g.privateKey, "")

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openpay: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("openpay: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Description: "gateway error"}
		_ = json.Unmarshal(raw, apiErr)
		apiErr.StatusCode = resp.StatusCode
		return nil, apiErr
	}

	var out ChargeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("openpay: decode response: %w", err)
	}
	return &out, nil
}

// GetCharge fetches a charge by id.
func (g *OpenpayClient) GetCharge(ctx context.Context, chargeID string) (*ChargeResponse, error) {
	url := fmt.Sprintf("%s/%s/charges/%s", g.baseURL, g.merchantID, chargeID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(g.privateKey, "")

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openpay: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("openpay: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Description: "gateway error"}
		_ = json.Unmarshal(raw, apiErr)
		apiErr.StatusCode = resp.StatusCode
		return nil, apiErr
	}

	var out ChargeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("openpay: decode response: %w", err)
	}
	return &out, nil
}

// VerifyWebhookSignature checks the HMAC-SHA256 signature Openpay sends in
// the X-Openpay-Signature header against the raw request body.
func VerifyWebhookSignature(privateKey string, payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(privateKey))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
