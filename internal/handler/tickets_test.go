package handler

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvaldes/gradgala/internal/repository"
)

func newTicketsHandler(t *testing.T) (*TicketsHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	h := NewTicketsHandler(
		repository.NewTicketRepo(db),
		repository.NewGuestRepo(db),
		repository.NewGraduateRepo(db),
		repository.NewEventRepo(db),
		repository.NewPaymentRepo(db),
		repository.NewSelectionRepo(db),
	)
	return h, mock, func() { db.Close() }
}

func jsonRequest(method, target, body string, graduateID uint64) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", float64(graduateID))
	return c, rec
}

func TestCreateTicketsComputesPlan(t *testing.T) {
	h, mock, done := newTicketsHandler(t)
	defer done()

	mock.ExpectQuery("FROM graduates WHERE id = \\?").
		WithArgs(uint64(7)).
		WillReturnRows(graduateRows(7, 1))
	mock.ExpectQuery("FROM ticket_orders WHERE graduate_id = \\?").
		WithArgs(uint64(7)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("FROM events WHERE id = \\?").
		WithArgs(uint64(1)).
		WillReturnRows(eventRows(1))
	mock.ExpectExec("INSERT INTO ticket_orders").
		WithArgs(uint64(7), uint32(4), uint64(250000), uint64(1000000)).
		WillReturnResult(sqlmock.NewResult(21, 1))
	mock.ExpectExec("INSERT INTO guests").
		WillReturnResult(sqlmock.NewResult(1, 4))
	mock.ExpectExec("UPDATE graduates SET tickets_step").
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, rec := jsonRequest(http.MethodPost, "/v1/graduates/me/tickets", `{"tickets_count":4}`, 7)
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := rec.Body.String()
	// 4 x 250000 = 1000000 total; (1000000-50000)/10 months -> 95000 monthly.
	assert.Contains(t, body, `"total_amount":1000000`)
	assert.Contains(t, body, `"monthly_payment":95000`)
	assert.Contains(t, body, `"initial_payment":50000`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTicketsRejectsSecondOrder(t *testing.T) {
	h, mock, done := newTicketsHandler(t)
	defer done()

	mock.ExpectQuery("FROM graduates WHERE id = \\?").
		WithArgs(uint64(7)).
		WillReturnRows(graduateRows(7, 1))
	mock.ExpectQuery("FROM ticket_orders WHERE graduate_id = \\?").
		WithArgs(uint64(7)).
		WillReturnRows(ticketOrderRows(21, 7, 4, 250000, 1000000))

	c, rec := jsonRequest(http.MethodPost, "/v1/graduates/me/tickets", `{"tickets_count":2}`, 7)
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "add guests instead")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTicketsBoundsCount(t *testing.T) {
	h, _, done := newTicketsHandler(t)
	defer done()

	for _, body := range []string{`{"tickets_count":0}`, `{"tickets_count":21}`} {
		c, rec := jsonRequest(http.MethodPost, "/v1/graduates/me/tickets", body, 7)
		require.NoError(t, h.Create(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
}

func TestAddGuestsChargesRetroactives(t *testing.T) {
	h, mock, done := newTicketsHandler(t)
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
	// 3 settled payments, 2 of them monthly installments.
	mock.ExpectQuery("FROM payments WHERE graduate_id = \\? AND status = 'paid'").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"paid", "monthly"}).AddRow(3, 2))
	mock.ExpectQuery("COALESCE\\(SUM\\(amount_cents\\), 0\\)").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(240000))
	mock.ExpectExec("UPDATE ticket_orders SET tickets_count").
		WithArgs(uint32(6), uint64(1500000), uint64(21)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM guests").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(4))
	mock.ExpectExec("INSERT INTO guests").
		WillReturnResult(sqlmock.NewResult(5, 2))
	// Two guests joining after 2 collected months: ceil(250000*2/10) = 50000
	// retroactive each.
	mock.ExpectExec("INSERT INTO payments").
		WithArgs(uint64(7), uint64(100000), "retroactive", "pending", nil).
		WillReturnResult(sqlmock.NewResult(31, 1))

	c, rec := jsonRequest(http.MethodPost, "/v1/graduates/me/guests", `{"additional_guests":2}`, 7)
	require.NoError(t, h.AddGuests(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"retroactive_amount":100000`)
	assert.Contains(t, body, `"updated_total_amount":1500000`)
	// (1500000 - 240000 paid) over 8 remaining months.
	assert.Contains(t, body, `"updated_monthly_payment":157500`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddGuestsRequiresExistingOrder(t *testing.T) {
	h, mock, done := newTicketsHandler(t)
	defer done()

	mock.ExpectQuery("FROM graduates WHERE id = \\?").
		WithArgs(uint64(7)).
		WillReturnRows(graduateRows(7, 1))
	mock.ExpectQuery("FROM ticket_orders WHERE graduate_id = \\?").
		WithArgs(uint64(7)).
		WillReturnError(sql.ErrNoRows)

	c, rec := jsonRequest(http.MethodPost, "/v1/graduates/me/guests", `{"additional_guests":1}`, 7)
	require.NoError(t, h.AddGuests(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "precondition_failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetDropsSelectionGuestsAndOrder(t *testing.T) {
	h, mock, done := newTicketsHandler(t)
	defer done()

	mock.ExpectExec("DELETE FROM table_selections WHERE graduate_id = \\?").
		WithArgs(uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM guests WHERE graduate_id = \\?").
		WithArgs(uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec("DELETE FROM ticket_orders WHERE graduate_id = \\?").
		WithArgs(uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE graduates SET tickets_step").
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, rec := jsonRequest(http.MethodDelete, "/v1/graduates/me/tickets", "", 7)
	require.NoError(t, h.Reset(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
