package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvaldes/gradgala/internal/config"
	"github.com/dvaldes/gradgala/internal/gateway"
	"github.com/dvaldes/gradgala/internal/repository"
)

const webhookKey = "whsec-test"

func newPaymentsHandler(t *testing.T) (*PaymentsHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	h := NewPaymentsHandler(
		repository.NewPaymentRepo(db),
		repository.NewGraduateRepo(db),
		repository.NewEventRepo(db),
		repository.NewTicketRepo(db),
		gateway.NewOpenpayClient("m-test", "sk-test", false),
		config.Config{OpenpayWebhookKey: webhookKey, OpenpayMerchantID: "m-test", OpenpayPublicKey: "pk-test"},
	)
	return h, mock, func() { db.Close() }
}

func paymentRows(id, graduateID, amount uint64, payType, status, txID string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "graduate_id", "amount_cents", "type", "status",
		"month_number", "gateway_tx_id", "payment_date", "created_at",
	})
	var tx interface{}
	if txID != "" {
		tx = txID
	}
	return rows.AddRow(id, graduateID, amount, payType, status, nil, tx, nil, time.Now().UTC())
}

func signBody(key, body string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookRequest(body, signature string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/openpay", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set("X-Openpay-Signature", signature)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h, _, done := newPaymentsHandler(t)
	defer done()

	body := `{"type":"charge.succeeded","transaction":{"id":"tx-1"}}`
	c, rec := webhookRequest(body, signBody("wrong-key", body))
	require.NoError(t, h.Webhook(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = webhookRequest(body, "")
	require.NoError(t, h.Webhook(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookSettlesCharge(t *testing.T) {
	h, mock, done := newPaymentsHandler(t)
	defer done()

	mock.ExpectQuery("FROM payments WHERE gateway_tx_id = \\?").
		WithArgs("tx-1").
		WillReturnRows(paymentRows(31, 7, 95000, "monthly", "pending", "tx-1"))
	mock.ExpectQuery("FROM payments WHERE id = \\?").
		WithArgs(uint64(31)).
		WillReturnRows(paymentRows(31, 7, 95000, "monthly", "pending", "tx-1"))
	mock.ExpectExec("UPDATE payments SET status = 'paid'").
		WithArgs(uint64(31)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM graduates WHERE id = \\?").
		WithArgs(uint64(7)).
		WillReturnRows(graduateRows(7, 1))
	mock.ExpectQuery("FROM events WHERE id = \\?").
		WithArgs(uint64(1)).
		WillReturnRows(eventRows(1))
	mock.ExpectQuery("FROM ticket_orders WHERE graduate_id = \\?").
		WithArgs(uint64(7)).
		WillReturnRows(ticketOrderRows(21, 7, 4, 250000, 1000000))
	mock.ExpectQuery("COALESCE\\(SUM\\(amount_cents\\), 0\\)").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(300000))
	// 30% paid is below the 60% threshold, so only the payments step moves.
	mock.ExpectExec("UPDATE graduates SET payments_step = \\? WHERE id = \\?").
		WithArgs("in_progress", uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"type":"charge.succeeded","transaction":{"id":"tx-1"}}`
	c, rec := webhookRequest(body, signBody(webhookKey, body))
	require.NoError(t, h.Webhook(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"progress_percent":30`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookRedeliveryIsIdempotent(t *testing.T) {
	h, mock, done := newPaymentsHandler(t)
	defer done()

	mock.ExpectQuery("FROM payments WHERE gateway_tx_id = \\?").
		WithArgs("tx-1").
		WillReturnRows(paymentRows(31, 7, 95000, "monthly", "paid", "tx-1"))

	body := `{"type":"charge.succeeded","transaction":{"id":"tx-1"}}`
	c, rec := webhookRequest(body, signBody(webhookKey, body))
	require.NoError(t, h.Webhook(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "already processed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookChargeFailedMarksFailed(t *testing.T) {
	h, mock, done := newPaymentsHandler(t)
	defer done()

	mock.ExpectQuery("FROM payments WHERE gateway_tx_id = \\?").
		WithArgs("tx-2").
		WillReturnRows(paymentRows(32, 7, 95000, "monthly", "pending", "tx-2"))
	mock.ExpectExec("UPDATE payments SET status = 'failed'").
		WithArgs(uint64(32)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"type":"charge.failed","transaction":{"id":"tx-2"}}`
	c, rec := webhookRequest(body, signBody(webhookKey, body))
	require.NoError(t, h.Webhook(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "marked as failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookAcksUnknownEventTypes(t *testing.T) {
	h, mock, done := newPaymentsHandler(t)
	defer done()

	body := `{"type":"verification","verification_code":"abc"}`
	c, rec := webhookRequest(body, signBody(webhookKey, body))
	require.NoError(t, h.Webhook(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "event processed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateChargeRequiresTokenForCard(t *testing.T) {
	h, mock, done := newPaymentsHandler(t)
	defer done()

	mock.ExpectQuery("FROM graduates WHERE id = \\?").
		WithArgs(uint64(7)).
		WillReturnRows(graduateRows(7, 1))
	mock.ExpectQuery("FROM ticket_orders WHERE graduate_id = \\?").
		WithArgs(uint64(7)).
		WillReturnRows(ticketOrderRows(21, 7, 4, 250000, 1000000))
	mock.ExpectQuery("FROM events WHERE id = \\?").
		WithArgs(uint64(1)).
		WillReturnRows(eventRows(1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM payments").
		WithArgs(uint64(7), "initial").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))

	c, rec := jsonRequest(http.MethodPost, "/v1/graduates/me/payments/charge",
		`{"payment_method":"card","payment_type":"initial"}`, 7)
	require.NoError(t, h.CreateCharge(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "token is required")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateChargeRejectsDoubleInitial(t *testing.T) {
	h, mock, done := newPaymentsHandler(t)
	defer done()

	mock.ExpectQuery("FROM graduates WHERE id = \\?").
		WithArgs(uint64(7)).
		WillReturnRows(graduateRows(7, 1))
	mock.ExpectQuery("FROM ticket_orders WHERE graduate_id = \\?").
		WithArgs(uint64(7)).
		WillReturnRows(ticketOrderRows(21, 7, 4, 250000, 1000000))
	mock.ExpectQuery("FROM events WHERE id = \\?").
		WithArgs(uint64(1)).
		WillReturnRows(eventRows(1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM payments").
		WithArgs(uint64(7), "initial").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	c, rec := jsonRequest(http.MethodPost, "/v1/graduates/me/payments/charge",
		`{"payment_method":"card","payment_type":"initial","token":"tok_x"}`, 7)
	require.NoError(t, h.CreateCharge(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already made")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateChargeMonthlyRequiresInitialFirst(t *testing.T) {
	h, mock, done := newPaymentsHandler(t)
	defer done()

	mock.ExpectQuery("FROM graduates WHERE id = \\?").
		WithArgs(uint64(7)).
		WillReturnRows(graduateRows(7, 1))
	mock.ExpectQuery("FROM ticket_orders WHERE graduate_id = \\?").
		WithArgs(uint64(7)).
		WillReturnRows(ticketOrderRows(21, 7, 4, 250000, 1000000))
	mock.ExpectQuery("FROM events WHERE id = \\?").
		WithArgs(uint64(1)).
		WillReturnRows(eventRows(1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM payments").
		WithArgs(uint64(7), "initial").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))

	c, rec := jsonRequest(http.MethodPost, "/v1/graduates/me/payments/charge",
		`{"payment_method":"card","payment_type":"monthly","month_number":1,"token":"tok_x"}`, 7)
	require.NoError(t, h.CreateCharge(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "initial payment must be made first")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentsSummary(t *testing.T) {
	h, mock, done := newPaymentsHandler(t)
	defer done()

	mock.ExpectQuery("FROM graduates WHERE id = \\?").
		WithArgs(uint64(7)).
		WillReturnRows(graduateRows(7, 1))
	mock.ExpectQuery("FROM events WHERE id = \\?").
		WithArgs(uint64(1)).
		WillReturnRows(eventRows(1))
	mock.ExpectQuery("FROM ticket_orders WHERE graduate_id = \\?").
		WithArgs(uint64(7)).
		WillReturnRows(ticketOrderRows(21, 7, 4, 250000, 1000000))
	mock.ExpectQuery("COALESCE\\(SUM\\(amount_cents\\), 0\\)").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(240000))
	mock.ExpectQuery("FROM payments WHERE graduate_id = \\? AND status = 'paid'").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"paid", "monthly"}).AddRow(3, 2))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM payments").
		WithArgs(uint64(7), "initial").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	c, rec := jsonRequest(http.MethodGet, "/v1/graduates/me/payments/summary", "", 7)
	require.NoError(t, h.Summary(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"paid_amount":240000`)
	assert.Contains(t, body, `"pending_amount":760000`)
	assert.Contains(t, body, `"progress_percent":24`)
	assert.Contains(t, body, `"has_initial_payment":true`)
	assert.Contains(t, body, `"next_month":3`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentsConfigExposesPublicCredentialsOnly(t *testing.T) {
	h, mock, done := newPaymentsHandler(t)
	defer done()

	c, rec := jsonRequest(http.MethodGet, "/v1/payments/config", "", 7)
	require.NoError(t, h.Config(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"merchant_id":"m-test"`)
	assert.Contains(t, rec.Body.String(), `"public_key":"pk-test"`)
	assert.NotContains(t, rec.Body.String(), "sk-test")
	assert.NoError(t, mock.ExpectationsWereMet())
}
